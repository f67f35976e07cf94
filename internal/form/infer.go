package form

import (
	"reflect"
	"strings"
	"unicode/utf8"
)

// longStringThreshold is the rune count at which a plain string is shown as
// a textarea.
const longStringThreshold = 20

// Infer picks a type for a value that has no declared one. exists reports
// whether a string names a file on disk; it may be nil.
func Infer(title string, v any, exists func(string) bool) Type {
	switch x := v.(type) {
	case nil:
		return String
	case bool:
		return Bool
	case string:
		if exists != nil && strings.Contains(strings.ToLower(title), "icon") && exists(x) {
			return ImagePath
		}
		if utf8.RuneCountInString(x) < longStringThreshold {
			return String
		}
		return LongString
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int
	case reflect.Float32, reflect.Float64:
		return Float
	case reflect.Slice, reflect.Array:
		return List
	case reflect.Map:
		return Dict
	}
	return String
}
