package profile

import (
	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/registry"
)

// handler serves one attribute. A data-bound handler reads and writes the
// registry name; a static one always replies with the same value.
type handler struct {
	name   string
	like   registry.Value // shape writes are decoded into
	signed bool
	static registry.Value
}

func (h *handler) current(data *registry.Accessor) (registry.Value, bool) {
	if h.name == "" {
		return h.static, true
	}
	return data.Get(h.name)
}

func (h *handler) ServeRead(w gatt.ResponseWriter, r *gatt.Request) {
	v, ok := h.current(r.Data)
	if !ok {
		_ = w.ReplyStatus(gatt.StatusUnlikely)
		return
	}
	_ = w.Reply(v)
}

func (h *handler) ServeWrite(w gatt.ResponseWriter, r *gatt.Request) {
	if h.name == "" {
		_ = w.ReplyStatus(gatt.StatusWriteNotPermitted)
		return
	}
	v, err := registry.DecodeAs(h.like, r.Value, h.signed)
	if err != nil {
		_ = w.ReplyStatus(gatt.StatusInvalidAttrValueLength)
		return
	}
	if !r.Data.Set(h.name, v) {
		_ = w.ReplyStatus(gatt.StatusUnlikely)
		return
	}
	_ = w.ReplyEmpty()
	r.NotifyUpdated()
}

func (h *handler) ServeUpdate(u *gatt.Update) bool {
	v, ok := h.current(u.Data)
	if !ok {
		return false
	}
	return u.Notify(v)
}

func (h *handler) ServeEvent(e *gatt.Event) {
	if v, ok := h.current(e.Data); ok {
		e.Notify(v)
	}
}
