package gatt

import (
	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/registry"
)

// Status is an ATT error code returned to the peer.
type Status uint8

const (
	StatusSuccess                Status = 0x00
	StatusInvalidHandle          Status = 0x01
	StatusReadNotPermitted       Status = 0x02
	StatusWriteNotPermitted      Status = 0x03
	StatusRequestNotSupported    Status = 0x06
	StatusInvalidOffset          Status = 0x07
	StatusInvalidAttrValueLength Status = 0x0D
	StatusUnlikely               Status = 0x0E
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidHandle:
		return "invalid handle"
	case StatusReadNotPermitted:
		return "read not permitted"
	case StatusWriteNotPermitted:
		return "write not permitted"
	case StatusRequestNotSupported:
		return "request not supported"
	case StatusInvalidOffset:
		return "invalid offset"
	case StatusInvalidAttrValueLength:
		return "invalid attribute value length"
	case StatusUnlikely:
		return "unlikely error"
	default:
		return "unknown status"
	}
}

// Reply is the outcome of a request, as handed to the transport.
type Reply struct {
	Status Status
	Value  []byte
}

// Peer identifies the remote side of a request.
type Peer struct {
	Address string
	MTU     int
}

func (p *Peer) String() string {
	if p == nil {
		return "<internal>"
	}
	return p.Address
}

// Env is what handlers reach through their request values: the data
// accessor, the notification primitive and a logger. The server builds one
// per run.
type Env struct {
	Data   *registry.Accessor
	Notify func(n *Node, value []byte) int // returns the number of subscribers reached
	Logger *logrus.Logger
}

func (e *Env) notify(n *Node, value []byte) bool {
	if e.Notify == nil {
		return false
	}
	return e.Notify(n, value) > 0
}

// Request is an inbound read or write.
type Request struct {
	Node         *Node
	Peer         *Peer // nil for internally generated requests
	Offset       int
	Value        []byte // write payload
	WithResponse bool
	Data         *registry.Accessor

	env *Env
}

// NotifyUpdated runs the node's own update handler synchronously. It returns
// false when the node has no update handler.
func (r *Request) NotifyUpdated() bool {
	if r.env == nil {
		return false
	}
	return InvokeUpdate(r.env, r.Node)
}

// ResponseWriter sends the single reply to a read or write.
type ResponseWriter interface {
	Reply(v registry.Value) error
	ReplyBytes(b []byte) error
	ReplyEmpty() error
	ReplyStatus(s Status) error
}

// Update is passed to update handlers when a bound value may have changed.
type Update struct {
	Node *Node
	Data *registry.Accessor

	env *Env
}

// Notify sends v to subscribers of the node and reports whether any was reached.
func (u *Update) Notify(v registry.Value) bool { return u.env.notify(u.Node, v.Encode()) }

// NotifyBytes sends raw bytes to subscribers of the node.
func (u *Update) NotifyBytes(b []byte) bool { return u.env.notify(u.Node, b) }

// Event is passed to periodic handlers.
type Event struct {
	Node     *Node
	Tick     uint64
	Interval int
	UserData any
	Data     *registry.Accessor

	env *Env
}

// Notify sends v to subscribers of the node and reports whether any was reached.
func (e *Event) Notify(v registry.Value) bool { return e.env.notify(e.Node, v.Encode()) }

// NotifyBytes sends raw bytes to subscribers of the node.
func (e *Event) NotifyBytes(b []byte) bool { return e.env.notify(e.Node, b) }

// A ReadHandler must send exactly one reply through w before returning.
type ReadHandler interface {
	ServeRead(w ResponseWriter, r *Request)
}

// ReadHandlerFunc is an adapter to allow the use of ordinary functions as ReadHandlers.
type ReadHandlerFunc func(w ResponseWriter, r *Request)

func (f ReadHandlerFunc) ServeRead(w ResponseWriter, r *Request) { f(w, r) }

// A WriteHandler consumes r.Value and must send exactly one reply, an empty one
// for writes without a result. It may call r.NotifyUpdated to propagate the
// new value immediately.
type WriteHandler interface {
	ServeWrite(w ResponseWriter, r *Request)
}

// WriteHandlerFunc is an adapter to allow the use of ordinary functions as WriteHandlers.
type WriteHandlerFunc func(w ResponseWriter, r *Request)

func (f WriteHandlerFunc) ServeWrite(w ResponseWriter, r *Request) { f(w, r) }

// An UpdateHandler is invoked whenever the bound value may have changed. The
// result is informational only.
type UpdateHandler interface {
	ServeUpdate(u *Update) bool
}

// UpdateHandlerFunc is an adapter to allow the use of ordinary functions as UpdateHandlers.
type UpdateHandlerFunc func(u *Update) bool

func (f UpdateHandlerFunc) ServeUpdate(u *Update) bool { return f(u) }

// An EventHandler is invoked every Interval ticks while the server is running.
type EventHandler interface {
	ServeEvent(e *Event)
}

// EventHandlerFunc is an adapter to allow the use of ordinary functions as EventHandlers.
type EventHandlerFunc func(e *Event)

func (f EventHandlerFunc) ServeEvent(e *Event) { f(e) }

// Dispatcher routes transport requests to node handlers. Implementations
// serialize all calls onto one processing context.
type Dispatcher interface {
	ServeRead(peer *Peer, n *Node, offset int) Reply
	ServeWrite(peer *Peer, n *Node, data []byte, offset int, withResponse bool) Reply
	Subscribed(peer *Peer, n *Node)
	Unsubscribed(peer *Peer, n *Node)
}
