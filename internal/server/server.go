// Package server runs a GATT hierarchy on a transport.
//
// A Server owns a single processing goroutine. Every handler invocation, and
// therefore every registry access made by a handler, happens on that
// goroutine: transport requests are submitted as jobs and wait for their
// reply, value-changed triggers are queued and drained there, and periodic
// events fire there on each tick. Handlers run to completion and never
// concurrently with each other.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/groutine"
	"github.com/srg/gattsrv/internal/registry"
	"github.com/srg/gattsrv/internal/ringchan"
)

type job struct {
	fn   func()
	done chan struct{}
}

// Server is a running GATT peripheral.
type Server struct {
	opts   Options
	logger *logrus.Logger
	data   *registry.Accessor

	tree *gatt.Tree
	env  *gatt.Env

	state  atomic.Int32
	health atomic.Int32
	tick   atomic.Uint64

	jobs chan job
	kick *ringchan.Ring[struct{}]

	pendingMu sync.Mutex
	pending   *orderedmap.OrderedMap[string, *gatt.Node]

	startOnce    sync.Once
	shutdownOnce sync.Once
	stopOnce     sync.Once
	finishOnce   sync.Once
	shutdown     chan struct{}
	loopDone     chan struct{}
	stopped      chan struct{}
}

// New validates opts and returns a server in StateUninitialized.
func New(opts Options) (*Server, error) {
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid server options: %w", err)
	}

	s := &Server{
		opts:     opts,
		logger:   opts.Logger,
		data:     registry.NewAccessor(opts.Getter, opts.Setter, opts.Logger),
		jobs:     make(chan job),
		kick:     ringchan.New[struct{}](1),
		pending:  orderedmap.New[string, *gatt.Node](),
		shutdown: make(chan struct{}),
		loopDone: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	s.env = &gatt.Env{
		Data:   s.data,
		Logger: s.logger,
		Notify: s.notify,
	}
	return s, nil
}

// Start creates a server from opts and starts it. It returns once the server
// is Running, or with the reason it could not get there.
func Start(opts Options) (*Server, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start builds the hierarchy, starts the processing loop and the transport,
// and returns once the server is Running. On failure the server is left
// Stopped with HealthFailedInit.
func (s *Server) Start() error {
	started := false
	s.startOnce.Do(func() { started = true })
	if !started {
		return ErrAlreadyRunning
	}
	if !s.state.CompareAndSwap(int32(StateUninitialized), int32(StateStarting)) {
		// TriggerShutdown got here first.
		return ErrNotRunning
	}

	b := gatt.NewBuilder(s.opts.RootName)
	s.opts.Configure(b)
	tree, err := b.Build()
	if err != nil {
		return s.failInit(fmt.Errorf("failed to build GATT hierarchy: %w", err), false)
	}
	s.tree = tree
	s.logger.WithFields(logrus.Fields{
		"root":  tree.Root(),
		"nodes": tree.Len(),
	}).Debug("GATT hierarchy built")

	if !s.advance(StateInitializing) {
		s.advance(StateStopped)
		s.finish()
		return ErrNotRunning
	}
	groutine.Go(context.Background(), "gattsrv-loop", s.run)

	if err := s.startTransport(); err != nil {
		return s.failInit(err, true)
	}

	if !s.advance(StateRunning) {
		// Shutdown was requested while the transport was starting.
		<-s.stopped
		return ErrNotRunning
	}
	s.logger.WithField("state", StateRunning.String()).Info("GATT server running")
	return nil
}

func (s *Server) startTransport() error {
	adv := Advertisement{
		LocalName:   s.opts.AdvertisedName,
		ServiceName: s.opts.ServiceName,
	}
	for _, svc := range s.tree.Services() {
		adv.Services = append(adv.Services, svc.UUID())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.InitTimeout)
	defer cancel()

	result := make(chan error, 1)
	groutine.Go(ctx, "gattsrv-transport-start", func(ctx context.Context) {
		result <- s.opts.Transport.Start(ctx, adv, s.tree, dispatcher{s})
	})

	select {
	case err := <-result:
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %v", ErrStartupTimeout, s.opts.InitTimeout, err)
		}
		if err != nil {
			return fmt.Errorf("failed to start transport: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w after %s", ErrStartupTimeout, s.opts.InitTimeout)
	}
}

func (s *Server) failInit(err error, loopStarted bool) error {
	s.health.CompareAndSwap(int32(HealthOk), int32(HealthFailedInit))
	s.logger.WithError(err).Error("GATT server failed to initialize")
	if loopStarted {
		s.TriggerShutdown()
		<-s.stopped
	} else {
		s.advance(StateStopped)
		s.finish()
	}
	return err
}

// TriggerShutdown asks the server to stop. It does not block and may be
// called any number of times from any goroutine.
func (s *Server) TriggerShutdown() {
	s.shutdownOnce.Do(func() {
		if s.state.CompareAndSwap(int32(StateUninitialized), int32(StateStopped)) {
			s.finish()
			return
		}
		s.advance(StateStopping)
		s.logger.WithField("state", StateStopping.String()).Info("GATT server stopping")
		close(s.shutdown)
	})
}

// Wait blocks until the server is Stopped and reports whether it stayed healthy.
func (s *Server) Wait() bool {
	<-s.stopped
	return s.Health().IsOk()
}

// ShutdownAndWait triggers shutdown and waits for it to complete.
func (s *Server) ShutdownAndWait() bool {
	s.TriggerShutdown()
	return s.Wait()
}

// Done is closed once the server is Stopped.
func (s *Server) Done() <-chan struct{} { return s.stopped }

func (s *Server) RunState() RunState { return RunState(s.state.Load()) }

func (s *Server) Health() Health { return Health(s.health.Load()) }

// Tree returns the built hierarchy, or nil before Start.
func (s *Server) Tree() *gatt.Tree { return s.tree }

// Data returns the accessor handlers use to reach application data.
func (s *Server) Data() *registry.Accessor { return s.data }

func (s *Server) Logger() *logrus.Logger { return s.logger }

// Tick returns the number of ticks processed so far.
func (s *Server) Tick() uint64 { return s.tick.Load() }

// advance moves the run state forward to next. It never moves backwards and
// reports whether the state is now next.
func (s *Server) advance(next RunState) bool {
	for {
		cur := s.state.Load()
		if RunState(cur) >= next {
			return RunState(cur) == next
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

func (s *Server) finish() {
	s.finishOnce.Do(func() {
		s.logger.WithFields(logrus.Fields{
			"state":  StateStopped.String(),
			"health": s.Health().String(),
		}).Info("GATT server stopped")
		close(s.stopped)
	})
}

func (s *Server) stopTransport() {
	s.stopOnce.Do(func() {
		if err := s.opts.Transport.Stop(); err != nil {
			s.logger.WithError(err).Warn("Transport stop reported an error")
		}
	})
}

// failRun records a runtime failure and shuts the server down.
func (s *Server) failRun(err error) {
	s.health.CompareAndSwap(int32(HealthOk), int32(HealthFailedRun))
	s.logger.WithError(err).Error("GATT server failed while running")
	s.TriggerShutdown()
}

// run is the processing goroutine.
func (s *Server) run(ctx context.Context) {
	s.logger.WithField("goroutine", groutine.Name(ctx)).Debug("Processing loop started")
	defer func() {
		close(s.loopDone)
		s.stopTransport()
		s.advance(StateStopped)
		s.finish()
	}()

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	errs := s.opts.Transport.Errors()
	for {
		select {
		case <-s.shutdown:
			return
		case j := <-s.jobs:
			j.fn()
			close(j.done)
		case <-s.kick.C():
			s.drain()
		case <-ticker.C:
			s.onTick()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.failRun(fmt.Errorf("transport error: %w", err))
		}
	}
}

// submit runs fn on the processing goroutine and waits for it. It returns
// false if the loop has exited and fn did not run.
func (s *Server) submit(fn func()) bool {
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case s.jobs <- j:
	case <-s.loopDone:
		return false
	}
	<-j.done
	return true
}

func (s *Server) onTick() {
	tick := s.tick.Add(1)
	s.drain()

	for _, n := range s.tree.Events() {
		if s.RunState() != StateRunning {
			return
		}
		ev := n.Binding().Event
		if tick%uint64(ev.Interval) != 0 {
			continue
		}
		gatt.InvokeEvent(s.env, n, tick)
	}
}

func (s *Server) notify(n *gatt.Node, value []byte) int {
	reached := s.opts.Transport.Notify(n, value)
	s.logger.WithFields(logrus.Fields{
		"path":        n.Path(),
		"bytes":       len(value),
		"subscribers": reached,
	}).Trace("Change notification sent")
	return reached
}
