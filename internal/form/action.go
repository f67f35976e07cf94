package form

import (
	"fmt"
	"strings"
)

// ApplyAction handles an add or delete button submitted from a form rendered
// with prefix. Current inputs are absorbed first so that edits made before
// the click are kept. It reports whether action was structural; other verbs
// such as save or cancel are left to the caller.
func ApplyAction(root *Node, prefix, action string, in Inputs) (bool, error) {
	verb, name := ParseAction(action)
	if verb != "add" && verb != "delete" {
		return false, nil
	}
	if !strings.HasPrefix(name, prefix) {
		return true, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	if err := Absorb(root, PrefixedInputs{Prefix: prefix, Inputs: in}); err != nil {
		return true, err
	}
	p, err := root.ParsePath(strings.TrimPrefix(name, prefix))
	if err != nil {
		return true, err
	}
	if verb == "delete" {
		return true, Mutate(root, p, Op{Kind: Delete})
	}

	target, err := root.Lookup(p)
	if err != nil {
		return true, err
	}
	raw, _ := in.Lookup(AddTypeInput(name))
	t, err := ParseType(raw)
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrInvalidType, err)
	}
	op := Op{Kind: InsertEnd, Type: t}
	if target.Type == Dict {
		key, _ := in.Lookup(AddKeyInput(name))
		op = Op{Kind: InsertKey, Key: key, Type: t}
	}
	return true, Mutate(root, p, op)
}
