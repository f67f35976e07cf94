package form

import (
	"fmt"
	"strconv"
	"strings"
)

// Inputs is the transient state of rendered widgets, keyed by path string.
type Inputs interface {
	Lookup(path string) (string, bool)
}

// Values is an Inputs backed by a plain map.
type Values map[string]string

func (v Values) Lookup(path string) (string, bool) {
	s, ok := v[path]
	return s, ok
}

// PrefixedInputs strips a widget name prefix before looking up a path.
type PrefixedInputs struct {
	Prefix string
	Inputs Inputs
}

func (p PrefixedInputs) Lookup(path string) (string, bool) {
	return p.Inputs.Lookup(p.Prefix + path)
}

// InputsOf returns the widget state the renderer writes for root.
func InputsOf(root *Node) Values {
	out := Values{}
	walkLeaves(root, Path{}, func(p Path, n *Node) {
		if n.Type == ImagePath {
			return
		}
		out[p.String()] = FormatValue(n.Type, n.Value)
	})
	return out
}

// FormatValue renders a leaf value the way its widget displays it.
func FormatValue(t Type, v any) string {
	switch t {
	case Bool:
		if b, _ := v.(bool); b {
			return "True"
		}
		return "False"
	case Float:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	case Int:
		if i, ok := v.(int); ok {
			return strconv.Itoa(i)
		}
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Collect rebuilds the plain values of root's fields. Leaves take the input
// at their path when present and keep their stored value otherwise.
func Collect(root *Node, in Inputs) (map[string]any, error) {
	var errs ValidationErrors
	out := make(map[string]any, len(root.Children))
	for _, c := range root.Children {
		out[c.Name] = collect(c, Path{Key(c.Name)}, in, &errs)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func collect(n *Node, p Path, in Inputs, errs *ValidationErrors) any {
	switch n.Type {
	case List:
		items := make([]any, 0, len(n.Children))
		for i, c := range n.Children {
			items = append(items, collect(c, p.Child(Index(i)), in, errs))
		}
		return items
	case Dict:
		m := make(map[string]any, len(n.Children))
		for _, c := range n.Children {
			m[c.Name] = collect(c, p.Child(Key(c.Name)), in, errs)
		}
		return m
	}
	v, err := leafValue(n, p, in)
	if err != nil {
		errs.Add(p.String(), "%v", err)
		return n.Value
	}
	return v
}

// Absorb copies the current inputs into the tree so that in-progress edits
// survive a structural mutation. Unparseable inputs leave the stored value.
func Absorb(root *Node, in Inputs) error {
	var errs ValidationErrors
	walkLeaves(root, Path{}, func(p Path, n *Node) {
		v, err := leafValue(n, p, in)
		if err != nil {
			errs.Add(p.String(), "%v", err)
			return
		}
		n.Value = v
	})
	return errs.Err()
}

func leafValue(n *Node, p Path, in Inputs) (any, error) {
	if n.Type == ImagePath || in == nil {
		return n.Value, nil
	}
	raw, ok := in.Lookup(p.String())
	if !ok {
		return n.Value, nil
	}
	return ParseValue(n, raw)
}

// ParseValue converts a submitted widget string to n's canonical value.
func ParseValue(n *Node, raw string) (any, error) {
	switch n.Type {
	case Int:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return i, nil
	case Float:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%q is not True or False", raw)
		}
		return b, nil
	case StringChoice:
		for _, c := range n.Choices {
			if c == raw {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", raw, strings.Join(n.Choices, ", "))
	case LongString:
		return strings.ReplaceAll(raw, "\r\n", "\n"), nil
	}
	return raw, nil
}

func walkLeaves(n *Node, p Path, fn func(Path, *Node)) {
	for i, c := range n.Children {
		var cp Path
		if n.Type == List {
			cp = p.Child(Index(i))
		} else {
			cp = p.Child(Key(c.Name))
		}
		if c.Type.IsContainer() {
			walkLeaves(c, cp, fn)
			continue
		}
		fn(cp, c)
	}
}
