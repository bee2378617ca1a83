package main

import (
	"errors"
	"fmt"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/server"
	"github.com/srg/gattsrv/internal/transport/goble"
)

// Command-level errors
var (
	// ErrServerFailed is returned when the server stops with a failed health.
	ErrServerFailed = errors.New("server failed")
)

// FormatUserError turns well-known failures into a message with a hint.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, goble.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and try again"
	case errors.Is(err, goble.ErrNoAdapter):
		return "no Bluetooth adapter found; use --transport loopback to run without one"
	case errors.Is(err, goble.ErrPermission):
		return "permission denied opening the Bluetooth adapter; run as root or grant CAP_NET_ADMIN"
	case errors.Is(err, goble.ErrUnsupportedPlatform):
		return "the HCI transport is not supported on this platform; use --transport loopback"
	case errors.Is(err, server.ErrStartupTimeout):
		return "the transport did not become ready in time; check the adapter or raise --init-timeout"
	}

	var be *gatt.BuildError
	if errors.As(err, &be) {
		return fmt.Sprintf("invalid GATT hierarchy: %s", be)
	}
	return err.Error()
}
