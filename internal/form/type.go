// Package form maps schema records to a typed tree of editable fields,
// renders that tree as HTML widgets and collects submitted values back
// into plain records.
package form

import (
	"fmt"
	"strings"
)

// Type tags a form node with the widget and value kind it carries.
type Type int

const (
	Unknown Type = iota
	String
	Int
	Float
	Bool
	List
	Dict
	SecretString
	LongString
	ImagePath
	StringChoice
)

var typeNames = [...]string{
	Unknown:      "UNKNOWN",
	String:       "STRING",
	Int:          "INT",
	Float:        "FLOAT",
	Bool:         "BOOL",
	List:         "LIST",
	Dict:         "DICT",
	SecretString: "SECRET_STRING",
	LongString:   "LONG_STRING",
	ImagePath:    "IMAGE_PATH",
	StringChoice: "STRING_CHOICE",
}

// AddableTypes are the types a user may pick when adding a list item or
// dict entry.
var AddableTypes = []Type{String, Int, Float, Bool, List, Dict, SecretString, LongString, ImagePath}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return typeNames[Unknown]
	}
	return typeNames[t]
}

// ParseType converts a tag name such as "SECRET_STRING" to a Type.
func ParseType(s string) (Type, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range typeNames {
		if Type(i) != Unknown && n == name {
			return Type(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown field type %q", s)
}

// IsContainer reports whether nodes of this type hold children.
func (t Type) IsContainer() bool {
	return t == List || t == Dict
}

// Zero returns the value a new or create-mode field of this type starts with.
func (t Type) Zero() any {
	switch t {
	case Int:
		return 0
	case Float:
		return 0.0
	case Bool:
		return false
	case List:
		return []any{}
	case Dict:
		return map[string]any{}
	default:
		return ""
	}
}

func addable(t Type) bool {
	for _, a := range AddableTypes {
		if a == t {
			return true
		}
	}
	return false
}
