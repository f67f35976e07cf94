package form

import (
	"fmt"
	"strconv"
	"strings"
)

// OpKind selects a structural change applied by Mutate.
type OpKind int

const (
	// InsertKey adds a named entry to a dict.
	InsertKey OpKind = iota
	// InsertEnd appends an item to a list.
	InsertEnd
	// Delete removes the addressed node from its parent.
	Delete
)

// Op describes one structural change.
type Op struct {
	Kind OpKind
	Key  string
	Type Type
}

// Mutate applies op at p. For inserts p addresses the container; for Delete
// it addresses the node to remove. The tree is untouched when an error is
// returned.
func Mutate(root *Node, p Path, op Op) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	switch op.Kind {
	case InsertKey, InsertEnd:
		target, err := root.Lookup(p)
		if err != nil {
			return err
		}
		return insert(target, op)
	case Delete:
		if len(p) == 1 {
			return fmt.Errorf("%w: cannot delete record field %s", ErrInvalidPath, p)
		}
		parent, err := root.Lookup(p[:len(p)-1])
		if err != nil {
			return err
		}
		_, idx, err := parent.child(p[len(p)-1])
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPath, p, err)
		}
		parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)
		if parent.Type == List {
			renumber(parent)
		}
		return nil
	}
	return fmt.Errorf("unknown op %d", op.Kind)
}

func insert(target *Node, op Op) error {
	if !addable(op.Type) {
		return fmt.Errorf("%w: %s", ErrInvalidType, op.Type)
	}
	switch target.Type {
	case List:
		label := strconv.Itoa(len(target.Children))
		child, err := build(label, label, op.Type, op.Type.Zero(), nil)
		if err != nil {
			return err
		}
		target.Children = append(target.Children, child)
		return nil
	case Dict:
		key := strings.TrimSpace(op.Key)
		if key == "" {
			return ErrEmptyKey
		}
		if strings.Contains(key, Separator) {
			return ErrInvalidKey
		}
		for _, c := range target.Children {
			if c.Name == key {
				return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
			}
		}
		child, err := build(key, key, op.Type, op.Type.Zero(), nil)
		if err != nil {
			return err
		}
		target.Children = append(target.Children, child)
		return nil
	}
	return fmt.Errorf("%w: %s is not a container", ErrInvalidPath, target.Name)
}

func renumber(list *Node) {
	for i, c := range list.Children {
		label := strconv.Itoa(i)
		c.Name = label
		c.Title = label
	}
}
