package catalog

import (
	"fmt"
	"reflect"

	"github.com/user/chatverse/internal/schema"
)

type kind int

const (
	kindOther kind = iota
	kindInt
	kindFloat
	kindString
	kindBool
	kindList
	kindDict
)

func kindOf(v any) kind {
	switch v.(type) {
	case int, int64:
		return kindInt
	case float64:
		return kindFloat
	case string:
		return kindString
	case bool:
		return kindBool
	case []any:
		return kindList
	case map[string]any:
		return kindDict
	}
	return kindOther
}

// clearDefaults drops scalars that carry no information so they do not hide
// the base model's values.
func clearDefaults(m map[string]any) map[string]any {
	for k, v := range m {
		switch x := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if x == "" || (k == "icon" && x == schema.DefaultIcon) {
				delete(m, k)
			}
		}
	}
	return m
}

// mergeMaps lays override on top of base. Scalars of the same kind keep the
// override and lists are unioned with override items first. Nested dicts are
// merged one level deep with override keys winning. Anything else, including
// an integer against a float, is a conflict.
func mergeMaps(base, override map[string]any) (map[string]any, error) {
	out := schema.CloneMap(override)
	for k, bv := range base {
		ov, ok := out[k]
		if !ok {
			out[k] = bv
			continue
		}
		merged, err := mergeValue(k, bv, ov)
		if err != nil {
			return nil, err
		}
		out[k] = merged
	}
	return out, nil
}

func mergeValue(key string, base, override any) (any, error) {
	bk, ok := kindOf(base), kindOf(override)
	if bk != ok || bk == kindOther {
		return nil, fmt.Errorf("key %s has value %v of type %T but base has value %v of type %T",
			key, override, override, base, base)
	}
	switch bk {
	case kindList:
		return union(override.([]any), base.([]any)), nil
	case kindDict:
		out := schema.CloneMap(base.(map[string]any))
		if out == nil {
			out = make(map[string]any)
		}
		for k, v := range override.(map[string]any) {
			out[k] = v
		}
		return out, nil
	}
	return override, nil
}

func union(first, second []any) []any {
	out := make([]any, 0, len(first)+len(second))
	add := func(v any) {
		for _, have := range out {
			if reflect.DeepEqual(have, v) {
				return
			}
		}
		out = append(out, v)
	}
	for _, v := range first {
		add(v)
	}
	for _, v := range second {
		add(v)
	}
	return out
}
