package gatt

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/registry"
)

// recorder is the ResponseWriter handed to read and write handlers. It keeps the
// first reply and counts the rest.
type recorder struct {
	replies int
	reply   Reply
}

func (w *recorder) record(s Status, b []byte) error {
	w.replies++
	if w.replies > 1 {
		return ErrAlreadyReplied
	}
	w.reply = Reply{Status: s, Value: b}
	return nil
}

func (w *recorder) Reply(v registry.Value) error {
	if !v.IsValid() {
		return w.record(StatusUnlikely, nil)
	}
	return w.record(StatusSuccess, v.Encode())
}

func (w *recorder) ReplyBytes(b []byte) error {
	c := make([]byte, len(b))
	copy(c, b)
	return w.record(StatusSuccess, c)
}

func (w *recorder) ReplyEmpty() error { return w.record(StatusSuccess, []byte{}) }

func (w *recorder) ReplyStatus(s Status) error { return w.record(s, nil) }

func (e *Env) logger() *logrus.Logger {
	if e.Logger == nil {
		return logrus.StandardLogger()
	}
	return e.Logger
}

// guard runs fn and converts a panic into a logged error.
func (e *Env) guard(n *Node, op string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			e.logger().WithFields(logrus.Fields{
				"path":  n.Path(),
				"op":    op,
				"panic": fmt.Sprint(r),
			}).Errorf("Handler panicked\n%s", debug.Stack())
		}
	}()
	fn()
	return false
}

func (e *Env) violation(n *Node, op string, replies int) {
	e.logger().WithError(&ProtocolViolation{Path: n.Path(), Op: op, Replies: replies}).
		WithField("path", n.Path()).
		Error("Handler protocol violation")
}

// InvokeRead runs the node's read handler and enforces the single-reply rule.
// The handler's value is sliced by offset.
func InvokeRead(env *Env, peer *Peer, n *Node, offset int) Reply {
	h := n.binding.Read
	if h == nil {
		if !n.flags.Readable() {
			return Reply{Status: StatusReadNotPermitted}
		}
		return Reply{Status: StatusRequestNotSupported}
	}

	w := &recorder{}
	req := &Request{Node: n, Peer: peer, Offset: offset, Data: env.Data, env: env}
	if env.guard(n, "read", func() { h.ServeRead(w, req) }) {
		return Reply{Status: StatusUnlikely}
	}

	switch {
	case w.replies == 0:
		env.violation(n, "read", 0)
		return Reply{Status: StatusUnlikely}
	case w.replies > 1:
		env.violation(n, "read", w.replies)
	}

	rep := w.reply
	if rep.Status != StatusSuccess || offset == 0 {
		return rep
	}
	if offset > len(rep.Value) {
		return Reply{Status: StatusInvalidOffset}
	}
	rep.Value = rep.Value[offset:]
	return rep
}

// InvokeWrite runs the node's write handler. A write without response may
// return without replying.
func InvokeWrite(env *Env, peer *Peer, n *Node, data []byte, offset int, withResponse bool) Reply {
	h := n.binding.Write
	if h == nil {
		return Reply{Status: StatusWriteNotPermitted}
	}

	w := &recorder{}
	req := &Request{
		Node:         n,
		Peer:         peer,
		Offset:       offset,
		Value:        data,
		WithResponse: withResponse,
		Data:         env.Data,
		env:          env,
	}
	if env.guard(n, "write", func() { h.ServeWrite(w, req) }) {
		return Reply{Status: StatusUnlikely}
	}

	switch {
	case w.replies == 0 && !withResponse:
		return Reply{Status: StatusSuccess}
	case w.replies == 0:
		env.violation(n, "write", 0)
		return Reply{Status: StatusUnlikely}
	case w.replies > 1:
		env.violation(n, "write", w.replies)
	}
	return w.reply
}

// InvokeUpdate runs the node's update handler and returns its result. Nodes
// without an update handler return false.
func InvokeUpdate(env *Env, n *Node) bool {
	h := n.binding.Update
	if h == nil {
		return false
	}
	var handled bool
	u := &Update{Node: n, Data: env.Data, env: env}
	if env.guard(n, "update", func() { handled = h.ServeUpdate(u) }) {
		return false
	}
	return handled
}

// InvokeEvent runs the node's event handler for the given tick.
func InvokeEvent(env *Env, n *Node, tick uint64) {
	b := n.binding.Event
	if b == nil {
		return
	}
	e := &Event{
		Node:     n,
		Tick:     tick,
		Interval: b.Interval,
		UserData: b.UserData,
		Data:     env.Data,
		env:      env,
	}
	env.guard(n, "event", func() { b.Handler.ServeEvent(e) })
}
