// Package loopback is an in-memory transport. Peers connect directly to the
// server through Go calls, which makes it suitable for tests and for driving
// a server from the console without a radio.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/ringchan"
	"github.com/srg/gattsrv/internal/server"
)

// DefaultQueueSize is the number of notifications buffered per subscription.
const DefaultQueueSize = 16

var (
	ErrNotStarted   = errors.New("loopback: transport not started")
	ErrStarted      = errors.New("loopback: transport already started")
	ErrUnknownPath  = errors.New("loopback: unknown path")
	ErrDisconnected = errors.New("loopback: peer disconnected")
)

// StatusError is returned when the server answers with a non-success status.
type StatusError struct {
	Op     string
	Path   string
	Status gatt.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s (0x%02x)", e.Op, e.Path, e.Status, uint8(e.Status))
}

type subscription struct {
	peer *Peer
	node *gatt.Node
	ring *ringchan.Ring[[]byte]
}

// Transport implements server.Transport in memory.
type Transport struct {
	logger    *logrus.Logger
	queueSize int
	startHook func(ctx context.Context) error

	mu      sync.RWMutex
	tree    *gatt.Tree
	d       gatt.Dispatcher
	adv     server.Advertisement
	started bool

	subs *hashmap.Map[string, *subscription]
	errs chan error
}

var _ server.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithQueueSize sets the per-subscription notification buffer.
func WithQueueSize(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.queueSize = n
		}
	}
}

// WithStartHook runs fn inside Start before the transport reports ready.
// Returning an error fails Start.
func WithStartHook(fn func(ctx context.Context) error) Option {
	return func(t *Transport) { t.startHook = fn }
}

// New creates a loopback transport.
func New(logger *logrus.Logger, opts ...Option) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	t := &Transport{
		logger:    logger,
		queueSize: DefaultQueueSize,
		subs:      hashmap.New[string, *subscription](),
		errs:      make(chan error, 1),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Transport) Start(ctx context.Context, adv server.Advertisement, tree *gatt.Tree, d gatt.Dispatcher) error {
	if t.startHook != nil {
		if err := t.startHook(ctx); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrStarted
	}
	t.tree, t.d, t.adv, t.started = tree, d, adv, true

	t.logger.WithFields(logrus.Fields{
		"name":     adv.LocalName,
		"services": len(adv.Services),
	}).Info("Loopback transport ready")
	return nil
}

// Notify queues value for every subscriber of n.
func (t *Transport) Notify(n *gatt.Node, value []byte) int {
	reached := 0
	t.subs.Range(func(_ string, s *subscription) bool {
		if s.node != n {
			return true
		}
		c := make([]byte, len(value))
		copy(c, value)
		if s.ring.Push(c) {
			t.logger.WithFields(logrus.Fields{
				"peer": s.peer.info.Address,
				"path": n.Path(),
			}).Debug("Subscriber queue full, dropped oldest notification")
		}
		reached++
		return true
	})
	return reached
}

func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return nil
	}
	t.started = false

	var keys []string
	t.subs.Range(func(k string, s *subscription) bool {
		s.ring.Close()
		keys = append(keys, k)
		return true
	})
	for _, k := range keys {
		t.subs.Del(k)
	}
	return nil
}

func (t *Transport) Errors() <-chan error { return t.errs }

// Fail reports a runtime transport failure to the server.
func (t *Transport) Fail(err error) {
	select {
	case t.errs <- err:
	default:
	}
}

// Advertisement returns what the server asked to advertise.
func (t *Transport) Advertisement() server.Advertisement {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.adv
}

// Subscribers returns the number of live subscriptions.
func (t *Transport) Subscribers() int { return t.subs.Len() }

// Connect returns a peer with the given address.
func (t *Transport) Connect(address string) *Peer {
	return &Peer{t: t, info: &gatt.Peer{Address: address, MTU: 23}}
}

func (t *Transport) resolve(path string) (*gatt.Node, gatt.Dispatcher, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.started {
		return nil, nil, ErrNotStarted
	}
	n, ok := t.tree.Lookup(path)
	if !ok || n.Kind() == gatt.KindService {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	return n, t.d, nil
}

func subKey(address, path string) string { return address + " " + path }
