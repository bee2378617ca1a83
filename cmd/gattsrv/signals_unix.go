//go:build unix

package main

import (
	"context"
	"os/signal"

	"golang.org/x/sys/unix"
)

// notifyContext is cancelled by SIGINT or SIGTERM.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, unix.SIGINT, unix.SIGTERM)
}
