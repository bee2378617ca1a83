// Package demo declares the example peripheral: device information, a fake
// battery, current time, a writable text string, an asctime clock and CPU
// information.
package demo

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/registry"
)

// Registry names used by the demo services.
const (
	BatteryLevel = "battery/level"
	TextString   = "text/string"
)

const (
	Manufacturer = "Acme Inc."
	ModelNumber  = "Marvin-PA"

	InitialBatteryLevel = 78
	InitialText         = "Hello, world!"

	textDescription  = "A mutable text string used for testing. Read and write to me, it tickles!"
	asciiDescription = "Returns the local time (as reported by POSIX asctime()) each time it is read"
	countDescription = "This might represent the number of CPUs in the system"
	modelDescription = "Possibly the model of the CPU in the system"
)

// Services holds what the demo handlers read from outside the registry.
type Services struct {
	Now         func() time.Time
	CPUInfoPath string
}

// NewServices returns services reading the wall clock and /proc/cpuinfo.
func NewServices() *Services {
	return &Services{Now: time.Now, CPUInfoPath: CPUInfoPath}
}

// Configure declares the demo hierarchy with default Services.
func Configure(b *gatt.Builder) { NewServices().Configure(b) }

// NewStore returns a registry holding the values the demo services bind to.
func NewStore(logger *logrus.Logger) *registry.Store {
	s := registry.NewStore(logger)
	s.Declare(BatteryLevel, registry.Uint8(InitialBatteryLevel))
	s.Declare(TextString, registry.String(InitialText))
	return s
}

func replyString(s string) func(w gatt.ResponseWriter, _ *gatt.Request) {
	return func(w gatt.ResponseWriter, _ *gatt.Request) {
		_ = w.Reply(registry.String(s))
	}
}

func description(b *gatt.Builder, text string) {
	b.BeginDescriptor("description", "2901", "read").
		OnReadFunc(replyString(text)).
		EndDescriptor()
}

// Configure declares the demo hierarchy on b.
func (s *Services) Configure(b *gatt.Builder) {
	b.BeginService("device", "180A").
		BeginCharacteristic("mfgr_name", "2A29", "read").
		OnReadFunc(replyString(Manufacturer)).
		EndCharacteristic().
		BeginCharacteristic("model_num", "2A24", "read").
		OnReadFunc(replyString(ModelNumber)).
		EndCharacteristic().
		EndService()

	// Level changes come from DrainBattery through NotifyUpdatedPath.
	b.BeginService("battery", "180F").
		BeginCharacteristic("level", "2A19", "read", "notify").
		OnReadFunc(func(w gatt.ResponseWriter, r *gatt.Request) {
			_ = w.Reply(registry.Uint8(r.Data.Uint8(BatteryLevel, 0)))
		}).
		OnUpdatedFunc(func(u *gatt.Update) bool {
			u.Notify(registry.Uint8(u.Data.Uint8(BatteryLevel, 0)))
			return true
		}).
		EndCharacteristic().
		EndService()

	b.BeginService("time", "1805").
		BeginCharacteristic("current", "2A2B", "read", "notify").
		OnReadFunc(func(w gatt.ResponseWriter, _ *gatt.Request) {
			_ = w.ReplyBytes(CurrentTime(s.Now()))
		}).
		OnEventFunc(1, nil, func(e *gatt.Event) {
			e.NotifyBytes(CurrentTime(s.Now()))
		}).
		EndCharacteristic().
		BeginCharacteristic("local", "2A0F", "read").
		OnReadFunc(func(w gatt.ResponseWriter, _ *gatt.Request) {
			_ = w.ReplyBytes(LocalTimeInformation(s.Now()))
		}).
		EndCharacteristic().
		EndService()

	b.BeginService("text", "00000001-1E3C-FAD4-74E2-97A033F1BFAA").
		BeginCharacteristic("string", "00000002-1E3C-FAD4-74E2-97A033F1BFAA", "read", "write", "notify").
		OnReadFunc(func(w gatt.ResponseWriter, r *gatt.Request) {
			_ = w.Reply(registry.String(r.Data.Text(TextString, "")))
		}).
		OnWriteFunc(func(w gatt.ResponseWriter, r *gatt.Request) {
			if !r.Data.Set(TextString, registry.String(string(r.Value))) {
				_ = w.ReplyStatus(gatt.StatusUnlikely)
				return
			}
			r.NotifyUpdated()
			_ = w.ReplyEmpty()
		}).
		OnUpdatedFunc(func(u *gatt.Update) bool {
			u.Notify(registry.String(u.Data.Text(TextString, "")))
			return true
		})
	description(b, textDescription)
	b.EndCharacteristic().
		EndService()

	b.BeginService("ascii_time", "00000001-1E3D-FAD4-74E2-97A033F1BFEE").
		BeginCharacteristic("string", "00000002-1E3D-FAD4-74E2-97A033F1BFEE", "read").
		OnReadFunc(func(w gatt.ResponseWriter, _ *gatt.Request) {
			_ = w.Reply(registry.String(ASCIITime(s.Now())))
		})
	description(b, asciiDescription)
	b.EndCharacteristic().
		EndService()

	b.BeginService("cpu", "0000B001-1E3D-FAD4-74E2-97A033F1BFEE").
		BeginCharacteristic("count", "0000B002-1E3D-FAD4-74E2-97A033F1BFEE", "read").
		OnReadFunc(func(w gatt.ResponseWriter, _ *gatt.Request) {
			_ = w.Reply(registry.Int16(ReadCPUInfo(s.CPUInfoPath).Count))
		})
	description(b, countDescription)
	b.EndCharacteristic().
		BeginCharacteristic("model", "0000B003-1E3D-FAD4-74E2-97A033F1BFEE", "read").
		OnReadFunc(func(w gatt.ResponseWriter, _ *gatt.Request) {
			_ = w.Reply(registry.String(ReadCPUInfo(s.CPUInfoPath).Model))
		})
	description(b, modelDescription)
	b.EndCharacteristic().
		EndService()
}
