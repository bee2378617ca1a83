//go:build !linux && !darwin

package goble

func newDevice() (Device, error) {
	return nil, ErrUnsupportedPlatform
}
