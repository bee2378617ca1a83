//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newDevice() (Device, error) {
	dev, err := darwin.NewDevice(ble.OptPeripheralRole())
	if err != nil {
		return nil, NormalizeError(err)
	}
	return dev, nil
}
