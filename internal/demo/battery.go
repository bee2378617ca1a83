package demo

import (
	"context"
	"time"

	"github.com/srg/gattsrv/internal/registry"
)

// Notifier is the part of the server DrainBattery drives.
type Notifier interface {
	NotifyUpdatedPath(path string)
	Done() <-chan struct{}
}

// DrainBattery lowers the battery level by one every interval, stopping at
// zero, and tells the server about each change. It returns when ctx ends or
// the server stops.
func DrainBattery(ctx context.Context, store *registry.Store, srv Notifier, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-srv.Done():
			return
		case <-ticker.C:
			v, ok := store.Get(BatteryLevel)
			if !ok {
				return
			}
			level, _ := v.AsInt()
			if level <= 0 {
				continue
			}
			store.Set(BatteryLevel, registry.Uint8(uint8(level-1)))
			srv.NotifyUpdatedPath(BatteryLevel)
		}
	}
}
