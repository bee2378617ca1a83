package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/ringchan"
)

// subscriber owns one peer's notification stream for one characteristic.
// Notify enqueues into the outbox from the processing goroutine; the writer
// loop runs on the go-ble notify handler goroutine and drains it.
type subscriber struct {
	node     *gatt.Node
	peer     *gatt.Peer
	notifier ble.Notifier
	outbox   mpmc.RichOverlappedRingBuffer[[]byte]
	kick     *ringchan.Ring[struct{}]
	logger   *logrus.Logger
}

func newSubscriber(n *gatt.Node, peer *gatt.Peer, nf ble.Notifier, size uint32, logger *logrus.Logger) *subscriber {
	return &subscriber{
		node:     n,
		peer:     peer,
		notifier: nf,
		outbox:   mpmc.NewOverlappedRingBuffer[[]byte](size),
		kick:     ringchan.New[struct{}](1),
		logger:   logger,
	}
}

// offer queues value without blocking. The oldest value is overwritten when
// the peer falls behind.
func (s *subscriber) offer(value []byte) {
	c := make([]byte, len(value))
	copy(c, value)
	overwrites, err := s.outbox.EnqueueM(c)
	if err != nil {
		s.logger.WithError(err).WithField("path", s.node.Path()).Warn("Failed to queue notification")
		return
	}
	if overwrites > 0 {
		s.logger.WithFields(logrus.Fields{
			"peer": s.peer.String(),
			"path": s.node.Path(),
		}).Debug("Subscriber outbox full, dropped oldest notification")
	}
	s.kick.TryPush(struct{}{})
}

// run writes queued values until the peer unsubscribes or done is closed.
func (s *subscriber) run(done <-chan struct{}) {
	ctx := s.notifier.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-s.kick.C():
			if !s.flush() {
				return
			}
		}
	}
}

func (s *subscriber) flush() bool {
	for !s.outbox.IsEmpty() {
		v, err := s.outbox.Dequeue()
		if err != nil {
			return true
		}
		if c := s.notifier.Cap(); c > 0 && len(v) > c {
			v = v[:c]
		}
		if _, err := s.notifier.Write(v); err != nil {
			s.logger.WithError(NormalizeError(err)).WithFields(logrus.Fields{
				"peer": s.peer.String(),
				"path": s.node.Path(),
			}).Debug("Notification write failed, dropping subscriber")
			return false
		}
	}
	return true
}

func (s *subscriber) close() { s.kick.Close() }
