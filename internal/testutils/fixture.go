package testutils

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/registry"
)

// Fixture is a small battery + text + clock hierarchy bound to a Store. It
// records every update and event invocation so tests can count them.
//
//	battery        180F
//	  level        2A19  read,notify          -> "battery/level" (uint8 78)
//	text           00000001-1E3C-FAD4-74E2-97A033F1BFAA
//	  string       00000002-...  read,write,notify -> "text/string"
//	    description 2901 read
//	clock          1805
//	  tick         2A2B  read,notify          event every EventInterval ticks
type Fixture struct {
	Store         *registry.Store
	EventInterval int

	mu      sync.Mutex
	updates map[string][]registry.Value
	events  []uint64
}

const FixtureDescription = "A mutable text string used for testing."

// NewFixture returns a fixture with seeded data and an event every tick.
func NewFixture(logger *logrus.Logger) *Fixture {
	f := &Fixture{
		Store:         registry.NewStore(logger),
		EventInterval: 1,
		updates:       make(map[string][]registry.Value),
	}
	f.Store.Declare("battery/level", registry.Uint8(78))
	f.Store.Declare("text/string", registry.String("Hello, world!"))
	return f
}

func (f *Fixture) recordUpdate(path string, v registry.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[path] = append(f.updates[path], v)
}

// Updates returns the values seen by update handlers for path, in order.
func (f *Fixture) Updates(path string) []registry.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]registry.Value(nil), f.updates[path]...)
}

// Events returns the ticks at which the clock event fired.
func (f *Fixture) Events() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.events...)
}

// Configure declares the fixture hierarchy on b.
func (f *Fixture) Configure(b *gatt.Builder) {
	b.BeginService("battery", "180F").
		BeginCharacteristic("level", "2A19", "read", "notify").
		OnReadFunc(func(w gatt.ResponseWriter, r *gatt.Request) {
			_ = w.Reply(registry.Uint8(r.Data.Uint8("battery/level", 0)))
		}).
		OnUpdatedFunc(func(u *gatt.Update) bool {
			v := registry.Uint8(u.Data.Uint8("battery/level", 0))
			f.recordUpdate("battery/level", v)
			return u.Notify(v)
		}).
		EndCharacteristic().
		EndService()

	b.BeginService("text", "00000001-1E3C-FAD4-74E2-97A033F1BFAA").
		BeginCharacteristic("string", "00000002-1E3C-FAD4-74E2-97A033F1BFAA", "read", "write", "notify").
		OnReadFunc(func(w gatt.ResponseWriter, r *gatt.Request) {
			_ = w.Reply(registry.String(r.Data.Text("text/string", "")))
		}).
		OnWriteFunc(func(w gatt.ResponseWriter, r *gatt.Request) {
			if !r.Data.Set("text/string", registry.Bytes(r.Value)) {
				_ = w.ReplyStatus(gatt.StatusUnlikely)
				return
			}
			_ = w.ReplyEmpty()
			r.NotifyUpdated()
		}).
		OnUpdatedFunc(func(u *gatt.Update) bool {
			v := registry.String(u.Data.Text("text/string", ""))
			f.recordUpdate("text/string", v)
			return u.Notify(v)
		}).
		BeginDescriptor("description", "2901", "read").
		OnReadFunc(func(w gatt.ResponseWriter, _ *gatt.Request) {
			_ = w.Reply(registry.String(FixtureDescription))
		}).
		EndDescriptor().
		EndCharacteristic().
		EndService()

	b.BeginService("clock", "1805").
		BeginCharacteristic("tick", "2A2B", "read", "notify").
		OnReadFunc(func(w gatt.ResponseWriter, _ *gatt.Request) {
			_ = w.ReplyBytes([]byte{0})
		}).
		OnEventFunc(f.EventInterval, nil, func(e *gatt.Event) {
			f.mu.Lock()
			f.events = append(f.events, e.Tick)
			f.mu.Unlock()
			e.Notify(registry.Uint32(uint32(e.Tick)))
		}).
		EndCharacteristic().
		EndService()
}
