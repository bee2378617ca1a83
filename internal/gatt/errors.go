package gatt

import (
	"errors"
	"fmt"
)

// BuildErrorKind classifies hierarchy construction failures.
type BuildErrorKind int

const (
	KindNesting BuildErrorKind = iota + 1
	KindDuplicate
	KindInvalidUUID
	KindInvalidFlag
	KindCapability
	KindInvalidName
	KindFinalized
	KindEmpty
)

func (k BuildErrorKind) String() string {
	switch k {
	case KindNesting:
		return "nesting"
	case KindDuplicate:
		return "duplicate"
	case KindInvalidUUID:
		return "invalid uuid"
	case KindInvalidFlag:
		return "invalid flag"
	case KindCapability:
		return "capability"
	case KindInvalidName:
		return "invalid name"
	case KindFinalized:
		return "finalized"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is checks against a *BuildError.
var (
	ErrNesting     = &BuildError{Kind: KindNesting}
	ErrDuplicate   = &BuildError{Kind: KindDuplicate}
	ErrInvalidUUID = &BuildError{Kind: KindInvalidUUID}
	ErrInvalidFlag = &BuildError{Kind: KindInvalidFlag}
	ErrCapability  = &BuildError{Kind: KindCapability}
	ErrInvalidName = &BuildError{Kind: KindInvalidName}
	ErrFinalized   = &BuildError{Kind: KindFinalized}
	ErrEmpty       = &BuildError{Kind: KindEmpty}
)

// BuildError reports a malformed hierarchy. Any BuildError aborts startup.
type BuildError struct {
	Kind BuildErrorKind
	Path string // node path the error refers to, if any
	Msg  string
}

func (e *BuildError) Error() string {
	switch {
	case e.Path != "" && e.Msg != "":
		return fmt.Sprintf("gatt build error (%s) at %q: %s", e.Kind, e.Path, e.Msg)
	case e.Msg != "":
		return fmt.Sprintf("gatt build error (%s): %s", e.Kind, e.Msg)
	default:
		return fmt.Sprintf("gatt build error (%s)", e.Kind)
	}
}

// Is matches any *BuildError of the same kind, so sentinels work with errors.Is.
func (e *BuildError) Is(target error) bool {
	var t *BuildError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func buildErr(kind BuildErrorKind, path, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// ErrAlreadyReplied is returned by ResponseWriter methods after the first reply.
var ErrAlreadyReplied = errors.New("gatt: reply already sent")

// ProtocolViolation describes a handler that did not produce exactly one reply.
type ProtocolViolation struct {
	Path    string
	Op      string // "read" or "write"
	Replies int
}

func (e *ProtocolViolation) Error() string {
	if e.Replies == 0 {
		return fmt.Sprintf("gatt protocol violation: %s handler for %q returned without a reply", e.Op, e.Path)
	}
	return fmt.Sprintf("gatt protocol violation: %s handler for %q replied %d times", e.Op, e.Path, e.Replies)
}
