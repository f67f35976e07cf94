package form

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator joins path segments in input names.
const Separator = "|"

// Segment addresses one child: a dict key or a list index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a segment addressing a dict entry or record field.
func Key(k string) Segment {
	return Segment{key: k}
}

// Index returns a segment addressing a list item.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

func (s Segment) IsIndex() bool { return s.isIndex }
func (s Segment) Key() string   { return s.key }
func (s Segment) Index() int    { return s.index }

func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// Path addresses a node from the root of a tree.
type Path []Segment

// Child returns a new path extended by seg. The receiver is not modified.
func (p Path) Child(seg Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, Separator)
}

// ParsePath resolves a joined path string against the tree. Segments under
// a list become indices, all others keys.
func (n *Node) ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	var p Path
	cur := n
	for _, part := range strings.Split(s, Separator) {
		var seg Segment
		if cur.Type == List {
			i, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a list index in %q", ErrInvalidPath, part, s)
			}
			seg = Index(i)
		} else {
			seg = Key(part)
		}
		next, _, err := cur.child(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, s, err)
		}
		p = append(p, seg)
		cur = next
	}
	return p, nil
}

// Lookup walks p one segment at a time.
func (n *Node) Lookup(p Path) (*Node, error) {
	cur := n
	for _, seg := range p {
		next, _, err := cur.child(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, p, err)
		}
		cur = next
	}
	return cur, nil
}

func (n *Node) child(seg Segment) (*Node, int, error) {
	if seg.IsIndex() {
		if n.Type != List {
			return nil, -1, fmt.Errorf("%s is not a list", n.Name)
		}
		if seg.index < 0 || seg.index >= len(n.Children) {
			return nil, -1, fmt.Errorf("index %d out of range", seg.index)
		}
		return n.Children[seg.index], seg.index, nil
	}
	if n.Type != Dict {
		return nil, -1, fmt.Errorf("%s is not a dict", n.Name)
	}
	for i, c := range n.Children {
		if c.Name == seg.key {
			return c, i, nil
		}
	}
	return nil, -1, fmt.Errorf("key %q not found", seg.key)
}
