//go:build linux

package goble

import "github.com/go-ble/ble/linux"

func newDevice() (Device, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return dev, nil
}
