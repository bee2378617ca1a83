package gatt

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Builder assembles a Tree from begin/end pairs. Every method returns the
// builder so declarations can be chained; the first error is kept and every
// later call becomes a no-op. Build reports it.
//
//	b := gatt.NewBuilder("/com/gattsrv")
//	b.BeginService("battery", "180F").
//		BeginCharacteristic("level", "2A19", "read", "notify").
//		OnReadFunc(readLevel).
//		OnUpdatedFunc(notifyLevel).
//		EndCharacteristic().
//		EndService()
//	tree, err := b.Build()
type Builder struct {
	root     string
	services *orderedmap.OrderedMap[string, *Node]
	stack    []*Node
	err      error
	built    bool
}

// NewBuilder returns a builder whose nodes live under root, e.g. "/com/gattsrv".
func NewBuilder(root string) *Builder {
	return &Builder{
		root:     strings.TrimRight(root, "/"),
		services: orderedmap.New[string, *Node](),
	}
}

// Err returns the first error recorded so far.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(e *BuildError) *Builder {
	if b.err == nil {
		b.err = e
	}
	return b
}

// usable reports whether the builder can accept another declaration.
func (b *Builder) usable() bool {
	if b.built {
		b.fail(buildErr(KindFinalized, "", "builder already finalized"))
		return false
	}
	return b.err == nil
}

func (b *Builder) top() *Node {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

func (b *Builder) pathOf(name string) string {
	if t := b.top(); t != nil {
		return t.path + "/" + name
	}
	return name
}

func (b *Builder) begin(kind Kind, name, uuidStr string, tags []string) *Builder {
	if !b.usable() {
		return b
	}
	path := b.pathOf(name)

	if name == "" || strings.Contains(name, "/") {
		return b.fail(buildErr(KindInvalidName, path, "path segment must be non-empty and contain no '/'"))
	}

	parent := b.top()
	var want Kind
	if parent != nil {
		want = parent.kind + 1
	} else {
		want = KindService
	}
	if kind != want {
		where := "at top level"
		if parent != nil {
			where = "inside " + parent.kind.String() + " " + parent.path
		}
		return b.fail(buildErr(KindNesting, path, "cannot begin %s %s", kind, where))
	}

	u, err := ParseUUID(uuidStr)
	if err != nil {
		return b.fail(buildErr(KindInvalidUUID, path, "%v", err))
	}
	flags, err := ParseFlags(kind, tags...)
	if err != nil {
		return b.fail(buildErr(KindInvalidFlag, path, "%v", err))
	}

	siblings := b.services
	if parent != nil {
		siblings = parent.children
	}
	if _, exists := siblings.Get(name); exists {
		return b.fail(buildErr(KindDuplicate, path, "duplicate %s name", kind))
	}

	n := newNode(parent, b.root, name, kind, u, flags)
	siblings.Set(name, n)
	b.stack = append(b.stack, n)
	return b
}

func (b *Builder) end(kind Kind) *Builder {
	if !b.usable() {
		return b
	}
	t := b.top()
	if t == nil {
		return b.fail(buildErr(KindNesting, "", "end %s without a matching begin", kind))
	}
	if t.kind != kind {
		return b.fail(buildErr(KindNesting, t.path, "end %s while %s is open", kind, t.kind))
	}
	b.stack = b.stack[:len(b.stack)-1]
	return b
}

// BeginService opens a service. Services take no flags.
func (b *Builder) BeginService(name, uuid string) *Builder {
	return b.begin(KindService, name, uuid, nil)
}

func (b *Builder) EndService() *Builder { return b.end(KindService) }

// BeginCharacteristic opens a characteristic inside the current service.
func (b *Builder) BeginCharacteristic(name, uuid string, flags ...string) *Builder {
	return b.begin(KindCharacteristic, name, uuid, flags)
}

func (b *Builder) EndCharacteristic() *Builder { return b.end(KindCharacteristic) }

// BeginDescriptor opens a descriptor inside the current characteristic.
func (b *Builder) BeginDescriptor(name, uuid string, flags ...string) *Builder {
	return b.begin(KindDescriptor, name, uuid, flags)
}

func (b *Builder) EndDescriptor() *Builder { return b.end(KindDescriptor) }

// attach validates that the open node may carry a handler of the given type
// and returns it.
func (b *Builder) attach(op string, present bool, capable func(n *Node) string) *Node {
	if !b.usable() {
		return nil
	}
	n := b.top()
	if n == nil {
		b.fail(buildErr(KindNesting, "", "%s handler outside of any node", op))
		return nil
	}
	if n.kind == KindService {
		b.fail(buildErr(KindCapability, n.path, "services carry no handlers"))
		return nil
	}
	if !present {
		b.fail(buildErr(KindCapability, n.path, "nil %s handler", op))
		return nil
	}
	if msg := capable(n); msg != "" {
		b.fail(buildErr(KindCapability, n.path, "%s", msg))
		return nil
	}
	return n
}

func duplicate(b *Builder, n *Node, op string) *Builder {
	return b.fail(buildErr(KindDuplicate, n.path, "%s handler already bound", op))
}

// OnRead binds the read handler of the open node, which must be readable.
func (b *Builder) OnRead(h ReadHandler) *Builder {
	n := b.attach("read", h != nil, func(n *Node) string {
		if !n.flags.Readable() {
			return "read handler on a node without a read flag"
		}
		return ""
	})
	if n == nil {
		return b
	}
	if n.binding.Read != nil {
		return duplicate(b, n, "read")
	}
	n.binding.Read = h
	return b
}

func (b *Builder) OnReadFunc(f func(w ResponseWriter, r *Request)) *Builder {
	if f == nil {
		return b.OnRead(nil)
	}
	return b.OnRead(ReadHandlerFunc(f))
}

// OnWrite binds the write handler of the open node, which must be writable.
func (b *Builder) OnWrite(h WriteHandler) *Builder {
	n := b.attach("write", h != nil, func(n *Node) string {
		if !n.flags.Writable() {
			return "write handler on a node without a write flag"
		}
		return ""
	})
	if n == nil {
		return b
	}
	if n.binding.Write != nil {
		return duplicate(b, n, "write")
	}
	n.binding.Write = h
	return b
}

func (b *Builder) OnWriteFunc(f func(w ResponseWriter, r *Request)) *Builder {
	if f == nil {
		return b.OnWrite(nil)
	}
	return b.OnWrite(WriteHandlerFunc(f))
}

func notifyingCharacteristic(op string) func(n *Node) string {
	return func(n *Node) string {
		if n.kind != KindCharacteristic {
			return op + " handler on a " + n.kind.String()
		}
		if !n.flags.Notifies() {
			return op + " handler on a characteristic without notify or indicate"
		}
		return ""
	}
}

// OnUpdated binds the update handler of the open characteristic, which must
// notify or indicate.
func (b *Builder) OnUpdated(h UpdateHandler) *Builder {
	n := b.attach("update", h != nil, notifyingCharacteristic("update"))
	if n == nil {
		return b
	}
	if n.binding.Update != nil {
		return duplicate(b, n, "update")
	}
	n.binding.Update = h
	return b
}

func (b *Builder) OnUpdatedFunc(f func(u *Update) bool) *Builder {
	if f == nil {
		return b.OnUpdated(nil)
	}
	return b.OnUpdated(UpdateHandlerFunc(f))
}

// OnEvent binds a periodic handler fired every intervalTicks ticks. userData is
// passed back unchanged in Event.UserData.
func (b *Builder) OnEvent(intervalTicks int, userData any, h EventHandler) *Builder {
	check := notifyingCharacteristic("event")
	n := b.attach("event", h != nil, func(n *Node) string {
		if msg := check(n); msg != "" {
			return msg
		}
		if intervalTicks < 1 {
			return "event interval must be at least one tick"
		}
		return ""
	})
	if n == nil {
		return b
	}
	if n.binding.Event != nil {
		return duplicate(b, n, "event")
	}
	n.binding.Event = &EventBinding{Interval: intervalTicks, UserData: userData, Handler: h}
	return b
}

func (b *Builder) OnEventFunc(intervalTicks int, userData any, f func(e *Event)) *Builder {
	if f == nil {
		return b.OnEvent(intervalTicks, userData, nil)
	}
	return b.OnEvent(intervalTicks, userData, EventHandlerFunc(f))
}

// Handle binds every one of ReadHandler, WriteHandler and UpdateHandler that h
// implements. Event handlers need an interval and are bound with OnEvent.
func (b *Builder) Handle(h any) *Builder {
	bound := false
	if rh, ok := h.(ReadHandler); ok {
		b.OnRead(rh)
		bound = true
	}
	if wh, ok := h.(WriteHandler); ok {
		b.OnWrite(wh)
		bound = true
	}
	if uh, ok := h.(UpdateHandler); ok {
		b.OnUpdated(uh)
		bound = true
	}
	if !bound && b.usable() {
		path := ""
		if t := b.top(); t != nil {
			path = t.path
		}
		b.fail(buildErr(KindCapability, path, "%T implements no handler interface", h))
	}
	return b
}

// Build finalizes the hierarchy. It succeeds at most once; later calls, and
// any declaration made after it, report KindFinalized.
func (b *Builder) Build() (*Tree, error) {
	if b.built {
		b.fail(buildErr(KindFinalized, "", "builder already finalized"))
		return nil, b.err
	}
	b.built = true

	if b.err != nil {
		return nil, b.err
	}
	if t := b.top(); t != nil {
		b.fail(buildErr(KindNesting, t.path, "%s was never ended", t.kind))
		return nil, b.err
	}
	if b.services.Len() == 0 {
		b.fail(buildErr(KindEmpty, "", "no services declared"))
		return nil, b.err
	}

	services := make([]*Node, 0, b.services.Len())
	for pair := b.services.Oldest(); pair != nil; pair = pair.Next() {
		services = append(services, pair.Value)
	}
	return newTree(b.root, services), nil
}
