package form

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Mode selects which field subset a record exposes and how it is seeded.
type Mode int

const (
	ViewMode Mode = iota
	EditMode
	CreateMode
)

// Field is the descriptor a record declares for one of its fields.
type Field struct {
	Name          string
	Title         string
	Type          Type
	Choices       []string
	ResetOnCreate bool
}

// Record is implemented by schema types that can be edited through a form.
type Record interface {
	Fields(mode Mode) []Field
	Value(name string) any
	SetValue(name string, v any) error
	Validate() error
}

// Node is one field in a form tree. Leaf nodes carry Value; List and Dict
// nodes carry ordered Children instead.
type Node struct {
	Name     string
	Title    string
	Type     Type
	Value    any
	Choices  []string
	Children []*Node
}

// Serialize builds the form tree for rec. In CreateMode every field flagged
// ResetOnCreate starts at its type's zero value.
func Serialize(rec Record, mode Mode) (*Node, error) {
	root := &Node{Type: Dict}
	for _, f := range rec.Fields(mode) {
		v := rec.Value(f.Name)
		if mode == CreateMode && f.ResetOnCreate {
			v = f.Type.Zero()
		}
		title := f.Title
		if title == "" {
			title = f.Name
		}
		child, err := build(f.Name, title, f.Type, v, f.Choices)
		if err != nil {
			return nil, fmt.Errorf("serialize field %s: %w", f.Name, err)
		}
		root.Children = append(root.Children, child)
	}
	return root, nil
}

// NewNode builds a standalone subtree, inferring child types from values.
func NewNode(name, title string, t Type, v any) (*Node, error) {
	return build(name, title, t, v, nil)
}

func build(name, title string, t Type, v any, choices []string) (*Node, error) {
	if t == Unknown {
		t = Infer(title, v, fileExists)
	}
	n := &Node{Name: name, Title: title, Type: t, Choices: choices}
	switch t {
	case List:
		items, err := asList(v)
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			label := strconv.Itoa(i)
			child, err := build(label, label, Unknown, item, nil)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
	case Dict:
		m, err := asDict(v)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.Contains(k, Separator) {
				return nil, fmt.Errorf("%q: %w", k, ErrInvalidKey)
			}
			child, err := build(k, k, Unknown, m[k], nil)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
	default:
		cv, err := coerce(t, v)
		if err != nil {
			return nil, err
		}
		n.Value = cv
	}
	return n, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// coerce converts v to the canonical Go value for t: int, float64, bool or
// string.
func coerce(t Type, v any) (any, error) {
	switch t {
	case Int:
		switch x := v.(type) {
		case nil:
			return 0, nil
		case int:
			return x, nil
		case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return int(reflect.ValueOf(x).Convert(reflect.TypeOf(int64(0))).Int()), nil
		case float32, float64:
			f := reflect.ValueOf(x).Float()
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("%v is not an integer", x)
			}
			return int(f), nil
		case string:
			i, err := strconv.Atoi(x)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", x)
			}
			return i, nil
		}
	case Float:
		switch x := v.(type) {
		case nil:
			return 0.0, nil
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int, int8, int16, int32, int64:
			return float64(reflect.ValueOf(x).Int()), nil
		case uint, uint8, uint16, uint32, uint64:
			return float64(reflect.ValueOf(x).Uint()), nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", x)
			}
			return f, nil
		}
	case Bool:
		switch x := v.(type) {
		case nil:
			return false, nil
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", x)
			}
			return b, nil
		}
	default:
		switch x := v.(type) {
		case nil:
			return "", nil
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		default:
			return fmt.Sprint(x), nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

func asList(v any) ([]any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return x, nil
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot use %T as %s", v, List)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func asDict(v any) (map[string]any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return x, nil
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("cannot use %T as %s", v, Dict)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
	}
	return out, nil
}
