package gatt

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the protocol role of a node.
type Kind uint8

const (
	KindService Kind = iota + 1
	KindCharacteristic
	KindDescriptor
)

func (k Kind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindCharacteristic:
		return "characteristic"
	case KindDescriptor:
		return "descriptor"
	default:
		return "unknown"
	}
}

// EventBinding is a periodic handler attached to a node.
type EventBinding struct {
	Interval int // ticks between invocations, >= 1
	UserData any
	Handler  EventHandler
}

// Binding holds the handlers attached to a node. It is fixed once the tree is built.
type Binding struct {
	Read   ReadHandler
	Write  WriteHandler
	Update UpdateHandler
	Event  *EventBinding
}

// Node is a service, characteristic or descriptor in a Tree.
type Node struct {
	name     string
	uuid     UUID
	kind     Kind
	flags    Flags
	parent   *Node
	children *orderedmap.OrderedMap[string, *Node]
	path     string
	objPath  string
	binding  Binding
}

func newNode(parent *Node, root, name string, kind Kind, u UUID, flags Flags) *Node {
	n := &Node{
		name:     name,
		uuid:     u,
		kind:     kind,
		flags:    flags,
		parent:   parent,
		children: orderedmap.New[string, *Node](),
	}
	if parent == nil {
		n.path = name
	} else {
		n.path = parent.path + "/" + name
	}
	n.objPath = root + "/" + n.path
	return n
}

// Name returns the node's path segment.
func (n *Node) Name() string { return n.name }

func (n *Node) UUID() UUID { return n.uuid }

func (n *Node) Kind() Kind { return n.kind }

func (n *Node) Flags() Flags { return n.flags }

// Path returns the root-relative path, e.g. "battery/level".
func (n *Node) Path() string { return n.path }

// ObjectPath returns the full path including the root, e.g. "/com/gattsrv/battery/level".
func (n *Node) ObjectPath() string { return n.objPath }

// Parent returns the owning node, or nil for services.
func (n *Node) Parent() *Node { return n.parent }

// Service returns the service that owns n, or n itself for services.
func (n *Node) Service() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Depth returns 0 for services, 1 for characteristics and 2 for descriptors.
func (n *Node) Depth() int { return int(n.kind) - 1 }

// Children returns the direct children in declaration order.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, n.children.Len())
	for pair := n.children.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Child returns the direct child with the given path segment.
func (n *Node) Child(name string) (*Node, bool) {
	return n.children.Get(name)
}

// Binding returns a copy of the handlers attached to n.
func (n *Node) Binding() Binding {
	b := n.binding
	if b.Event != nil {
		ev := *b.Event
		b.Event = &ev
	}
	return b
}

func (n *Node) HasRead() bool   { return n.binding.Read != nil }
func (n *Node) HasWrite() bool  { return n.binding.Write != nil }
func (n *Node) HasUpdate() bool { return n.binding.Update != nil }
func (n *Node) HasEvent() bool  { return n.binding.Event != nil }

func (n *Node) String() string { return n.kind.String() + " " + n.path + " (" + n.uuid.String() + ")" }
