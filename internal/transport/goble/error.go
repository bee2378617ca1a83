package goble

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBluetoothOff        = errors.New("bluetooth is turned off")
	ErrNoAdapter           = errors.New("no bluetooth adapter found")
	ErrPermission          = errors.New("insufficient permissions for the bluetooth adapter")
	ErrNotConnected        = errors.New("peer not connected")
	ErrUnsupportedPlatform = errors.New("platform has no go-ble peripheral support")
	ErrNotStarted          = errors.New("transport not started")
	ErrStarted             = errors.New("transport already started")
)

// NormalizeError maps known go-ble error strings to the sentinel errors above.
// The original error is kept in the chain.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "invalid state: have=4"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "no such device"), containsIgnoreCase(msg, "can't find hci device"):
		return fmt.Errorf("%w: %v", ErrNoAdapter, err)
	case containsIgnoreCase(msg, "operation not permitted"), containsIgnoreCase(msg, "permission denied"):
		return fmt.Errorf("%w: %v", ErrPermission, err)
	case containsIgnoreCase(msg, "not connected"), containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
