package server

import "errors"

// RunState is the server lifecycle position. States only move forward within a run.
type RunState int32

const (
	StateUninitialized RunState = iota
	StateStarting
	StateInitializing
	StateRunning
	StateStopping
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateStarting:
		return "Starting"
	case StateInitializing:
		return "Initializing"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Health records whether the server failed and when.
type Health int32

const (
	HealthOk Health = iota
	HealthFailedInit
	HealthFailedRun
)

func (h Health) String() string {
	switch h {
	case HealthOk:
		return "Ok"
	case HealthFailedInit:
		return "Failed initialization"
	case HealthFailedRun:
		return "Failed run"
	default:
		return "Unknown"
	}
}

func (h Health) IsOk() bool { return h == HealthOk }

var (
	// ErrStartupTimeout is returned by Start when the transport does not become
	// ready within Options.InitTimeout.
	ErrStartupTimeout = errors.New("server: transport did not start in time")
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("server: already started")
	// ErrNotRunning is returned by operations that need a running server.
	ErrNotRunning = errors.New("server: not running")
)
