package gatt

import (
	"errors"
	"strings"
)

// ErrStopWalk may be returned from a Walk callback to end the walk early
// without reporting an error.
var ErrStopWalk = errors.New("stop walk")

// Tree is a finalized GATT hierarchy. It is immutable and safe for concurrent
// readers.
type Tree struct {
	root     string
	services []*Node
	nodes    []*Node // depth-first declaration order
	index    map[string]*Node
	events   []*Node
}

func newTree(root string, services []*Node) *Tree {
	t := &Tree{
		root:     root,
		services: services,
		index:    make(map[string]*Node),
	}
	var visit func(n *Node)
	visit = func(n *Node) {
		t.nodes = append(t.nodes, n)
		t.index[n.path] = n
		if n.binding.Event != nil {
			t.events = append(t.events, n)
		}
		for _, c := range n.Children() {
			visit(c)
		}
	}
	for _, s := range services {
		visit(s)
	}
	return t
}

// Root returns the object path prefix, e.g. "/com/gattsrv".
func (t *Tree) Root() string { return t.root }

// Services returns the top-level services in declaration order.
func (t *Tree) Services() []*Node {
	return append([]*Node(nil), t.services...)
}

// Len returns the total number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Walk calls fn for each node depth-first in declaration order. Returning
// ErrStopWalk ends the walk with a nil error; any other error is returned.
func (t *Tree) Walk(fn func(n *Node) error) error {
	for _, n := range t.nodes {
		if err := fn(n); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Lookup resolves a root-relative path ("battery/level") or a full object
// path ("/com/gattsrv/battery/level").
func (t *Tree) Lookup(path string) (*Node, bool) {
	p := path
	if strings.HasPrefix(p, "/") {
		rest, ok := strings.CutPrefix(p, t.root+"/")
		if !ok {
			return nil, false
		}
		p = rest
	}
	n, ok := t.index[p]
	return n, ok
}

// Events returns the nodes with an event binding, in declaration order.
func (t *Tree) Events() []*Node {
	return append([]*Node(nil), t.events...)
}
