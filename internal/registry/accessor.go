// Package registry implements the named data indirection between GATT nodes and
// application state.
//
// The application owns its values and exposes them through two functions: a
// Getter that maps a slash-delimited name such as "battery/level" to a Value,
// and a Setter that stores a new Value under a name. Handlers never see the
// application's variables directly; they go through an Accessor, which turns
// unknown names into a logged warning and a sentinel result instead of a
// failure that could take down the processing context.
//
// The Accessor does no locking. Getters and Setters are called from the
// server's processing goroutine, so an application that mutates the same values
// from its own goroutines must either keep them small enough for atomic access
// or synchronise internally. Store does the latter and is the default
// implementation.
package registry

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Getter returns the value stored under name, or false when name is unknown.
type Getter func(name string) (Value, bool)

// Setter stores v under name and reports whether the name was accepted.
type Setter func(name string, v Value) bool

// UnknownDataPathError describes an accessor call with an unrecognised name.
type UnknownDataPathError struct {
	Name string
	Op   string // "get" or "set"
}

func (e *UnknownDataPathError) Error() string {
	return fmt.Sprintf("unknown name for server data %s request: %q", e.Op, e.Name)
}

// Accessor routes registry lookups through the application's Getter and Setter.
type Accessor struct {
	get    Getter
	set    Setter
	logger *logrus.Logger
}

// NewAccessor wraps an application getter/setter pair. Either may be nil, in
// which case every name is treated as unknown for that direction.
func NewAccessor(get Getter, set Setter, logger *logrus.Logger) *Accessor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Accessor{get: get, set: set, logger: logger}
}

// Get returns the value stored under name. Unknown names log a warning and
// return an invalid Value and false.
func (a *Accessor) Get(name string) (Value, bool) {
	if name == "" {
		a.logger.Error("Empty name sent to server data getter")
		return Value{}, false
	}
	if a.get == nil {
		a.warnUnknown(name, "get")
		return Value{}, false
	}
	v, ok := a.get(name)
	if !ok || !v.IsValid() {
		a.warnUnknown(name, "get")
		return Value{}, false
	}
	return v, true
}

// Set stores v under name. Failures log a warning and return false.
func (a *Accessor) Set(name string, v Value) bool {
	if name == "" {
		a.logger.Error("Empty name sent to server data setter")
		return false
	}
	if !v.IsValid() {
		a.logger.WithField("name", name).Error("Invalid value sent to server data setter")
		return false
	}
	if a.set == nil || !a.set(name, v) {
		a.warnUnknown(name, "set")
		return false
	}
	a.logger.WithFields(logrus.Fields{"name": name, "value": v.String()}).Debug("Server data updated")
	return true
}

func (a *Accessor) warnUnknown(name, op string) {
	a.logger.WithError(&UnknownDataPathError{Name: name, Op: op}).
		WithField("name", name).
		Warn("Unknown server data name")
}

// Uint8 returns the integer stored under name, or def when it is missing or
// does not fit in a byte.
func (a *Accessor) Uint8(name string, def uint8) uint8 {
	v, ok := a.Get(name)
	if !ok {
		return def
	}
	i, ok := v.AsInt()
	if !ok {
		return def
	}
	if i < 0 || i > math.MaxUint8 {
		a.logger.WithFields(logrus.Fields{"name": name, "value": v.String()}).
			Warn("Server data value does not fit in a byte")
		return def
	}
	return uint8(i)
}

// Int returns the integer stored under name, or def.
func (a *Accessor) Int(name string, def int64) int64 {
	v, ok := a.Get(name)
	if !ok {
		return def
	}
	i, ok := v.AsInt()
	if !ok {
		return def
	}
	return i
}

// Text returns the string stored under name, or def.
func (a *Accessor) Text(name string, def string) string {
	v, ok := a.Get(name)
	if !ok {
		return def
	}
	s, ok := v.AsString()
	if !ok {
		return def
	}
	return s
}
