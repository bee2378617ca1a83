// Package goble exposes a GATT tree as a BLE peripheral through go-ble.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/groutine"
	"github.com/srg/gattsrv/internal/server"
)

const (
	// DefaultQueueSize is the per-subscriber notification outbox capacity.
	DefaultQueueSize = 16

	stopTimeout = 5 * time.Second
)

// Device is the part of ble.Device the peripheral role needs.
type Device interface {
	AddService(svc *ble.Service) error
	AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error
	Stop() error
}

// DeviceFactory creates the platform device (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newDevice

// Transport is a server.Transport backed by a go-ble device.
type Transport struct {
	logger    *logrus.Logger
	factory   func() (Device, error)
	queueSize uint32

	mu      sync.Mutex
	dev     Device
	tree    *gatt.Tree
	d       gatt.Dispatcher
	started bool
	done    chan struct{}
	cancel  context.CancelFunc
	advDone <-chan struct{}

	subs   *hashmap.Map[uint64, *subscriber]
	nextID atomic.Uint64
	errs   chan error
}

var _ server.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithDeviceFactory overrides DeviceFactory for one transport.
func WithDeviceFactory(f func() (Device, error)) Option {
	return func(t *Transport) { t.factory = f }
}

// WithQueueSize sets the per-subscriber outbox capacity.
func WithQueueSize(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.queueSize = uint32(n)
		}
	}
}

// New creates a go-ble transport. The device is opened by Start.
func New(logger *logrus.Logger, opts ...Option) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	t := &Transport{
		logger:    logger,
		factory:   DeviceFactory,
		queueSize: DefaultQueueSize,
		subs:      hashmap.New[uint64, *subscriber](),
		errs:      make(chan error, 1),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start opens the device, registers every service of tree and starts
// advertising. It returns once the services are registered.
func (t *Transport) Start(ctx context.Context, adv server.Advertisement, tree *gatt.Tree, d gatt.Dispatcher) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrStarted
	}

	t.tree, t.d = tree, d
	services, err := t.buildServices(tree)
	if err != nil {
		return fmt.Errorf("failed to convert GATT tree: %w", err)
	}

	dev, err := t.factory()
	if err != nil {
		return fmt.Errorf("failed to open BLE device: %w", NormalizeError(err))
	}

	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			_ = dev.Stop()
			return err
		}
		if err := dev.AddService(svc); err != nil {
			_ = dev.Stop()
			return fmt.Errorf("failed to add service %s: %w", svc.UUID, NormalizeError(err))
		}
	}

	advCtx, cancel := context.WithCancel(context.Background())
	t.dev, t.cancel, t.started = dev, cancel, true
	t.done = make(chan struct{})

	uuids := advertisedUUIDs(adv.Services)
	t.advDone = groutine.Go(advCtx, "gattsrv-advertise", func(ctx context.Context) {
		t.advertise(ctx, dev, adv.LocalName, uuids)
	})

	t.logger.WithFields(logrus.Fields{
		"name":       adv.LocalName,
		"services":   len(services),
		"advertised": len(uuids),
	}).Info("BLE peripheral ready")
	return nil
}

func (t *Transport) advertise(ctx context.Context, dev Device, name string, uuids []ble.UUID) {
	err := dev.AdvertiseNameAndServices(ctx, name, uuids...)
	if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		t.logger.WithField("name", name).Debug("Advertising stopped")
		return
	}
	t.fail(fmt.Errorf("advertising failed: %w", NormalizeError(err)))
}

func (t *Transport) fail(err error) {
	select {
	case t.errs <- err:
	default:
		t.logger.WithError(err).Debug("Transport error dropped, one is already pending")
	}
}

// Notify queues value in the outbox of every subscriber of n.
func (t *Transport) Notify(n *gatt.Node, value []byte) int {
	reached := 0
	t.subs.Range(func(_ uint64, s *subscriber) bool {
		if s.node == n {
			s.offer(value)
			reached++
		}
		return true
	})
	return reached
}

// Stop ends advertising, releases every subscriber and stops the device.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return nil
	}
	t.started = false

	t.cancel()
	close(t.done)
	select {
	case <-t.advDone:
	case <-time.After(stopTimeout):
		t.logger.Warn("Advertising did not stop in time")
	}

	if err := t.dev.Stop(); err != nil {
		return fmt.Errorf("failed to stop BLE device: %w", NormalizeError(err))
	}
	t.logger.Info("BLE peripheral stopped")
	return nil
}

func (t *Transport) Errors() <-chan error { return t.errs }

// Subscribers returns the number of active notification streams.
func (t *Transport) Subscribers() int { return t.subs.Len() }

func peerOf(req ble.Request) *gatt.Peer {
	conn := req.Conn()
	if conn == nil {
		return &gatt.Peer{Address: "unknown"}
	}
	p := &gatt.Peer{MTU: conn.TxMTU()}
	if a := conn.RemoteAddr(); a != nil {
		p.Address = a.String()
	}
	return p
}

func (t *Transport) serveRead(n *gatt.Node) ble.ReadHandlerFunc {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		rep := t.d.ServeRead(peerOf(req), n, req.Offset())
		if rep.Status != gatt.StatusSuccess {
			rsp.SetStatus(ble.ATTError(rep.Status))
			return
		}
		v := rep.Value
		if c := rsp.Cap(); c >= 0 && len(v) > c {
			v = v[:c]
		}
		if _, err := rsp.Write(v); err != nil {
			t.logger.WithError(err).WithField("path", n.Path()).Debug("Read response write failed")
		}
	}
}

func (t *Transport) serveWrite(n *gatt.Node) ble.WriteHandlerFunc {
	// go-ble routes write requests and write commands to the same handler.
	withResponse := n.Flags().WritableWithResponse()
	return func(req ble.Request, rsp ble.ResponseWriter) {
		data := make([]byte, len(req.Data()))
		copy(data, req.Data())
		rep := t.d.ServeWrite(peerOf(req), n, data, req.Offset(), withResponse)
		if rep.Status != gatt.StatusSuccess {
			rsp.SetStatus(ble.ATTError(rep.Status))
		}
	}
}

func (t *Transport) serveNotify(n *gatt.Node) ble.NotifyHandlerFunc {
	return func(req ble.Request, nf ble.Notifier) {
		t.mu.Lock()
		done := t.done
		t.mu.Unlock()
		if done == nil {
			return
		}

		peer := peerOf(req)
		sub := newSubscriber(n, peer, nf, t.queueSize, t.logger)
		id := t.nextID.Add(1)
		t.subs.Set(id, sub)
		t.d.Subscribed(peer, n)

		defer func() {
			t.subs.Del(id)
			sub.close()
			t.d.Unsubscribed(peer, n)
		}()
		sub.run(done)
	}
}
