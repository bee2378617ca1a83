package loopback

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/ringchan"
)

// Peer is a connected central. Its operations behave like the matching ATT
// requests: flags are enforced before the server sees the request.
type Peer struct {
	t            *Transport
	info         *gatt.Peer
	disconnected atomic.Bool
}

func (p *Peer) Address() string { return p.info.Address }

func (p *Peer) check() error {
	if p.disconnected.Load() {
		return ErrDisconnected
	}
	return nil
}

// Read reads the full value at path.
func (p *Peer) Read(path string) ([]byte, error) { return p.ReadAt(path, 0) }

// ReadAt reads the value at path starting at offset, like a Read Blob request.
func (p *Peer) ReadAt(path string, offset int) ([]byte, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	n, d, err := p.t.resolve(path)
	if err != nil {
		return nil, err
	}
	if !n.Flags().Readable() {
		return nil, &StatusError{Op: "read", Path: n.Path(), Status: gatt.StatusReadNotPermitted}
	}
	rep := d.ServeRead(p.info, n, offset)
	if rep.Status != gatt.StatusSuccess {
		return nil, &StatusError{Op: "read", Path: n.Path(), Status: rep.Status}
	}
	return rep.Value, nil
}

// Write sends a write request and waits for the response.
func (p *Peer) Write(path string, data []byte) error {
	return p.write(path, data, true)
}

// WriteNoResponse sends a write command. Server-side failures are not reported.
func (p *Peer) WriteNoResponse(path string, data []byte) error {
	return p.write(path, data, false)
}

func (p *Peer) write(path string, data []byte, withResponse bool) error {
	if err := p.check(); err != nil {
		return err
	}
	n, d, err := p.t.resolve(path)
	if err != nil {
		return err
	}

	allowed := n.Flags().WritableWithResponse()
	if !withResponse {
		allowed = n.Flags().Has(gatt.FlagWriteWithoutResponse)
	}
	if !allowed {
		return &StatusError{Op: "write", Path: n.Path(), Status: gatt.StatusWriteNotPermitted}
	}

	c := make([]byte, len(data))
	copy(c, data)
	rep := d.ServeWrite(p.info, n, c, 0, withResponse)
	if withResponse && rep.Status != gatt.StatusSuccess {
		return &StatusError{Op: "write", Path: n.Path(), Status: rep.Status}
	}
	return nil
}

// Subscribe enables notifications for path. Values arrive on the returned
// channel, which is closed by Unsubscribe, Disconnect or transport Stop.
func (p *Peer) Subscribe(path string) (<-chan []byte, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	n, d, err := p.t.resolve(path)
	if err != nil {
		return nil, err
	}
	if !n.Flags().Notifies() {
		return nil, &StatusError{Op: "subscribe", Path: n.Path(), Status: gatt.StatusRequestNotSupported}
	}

	sub := &subscription{peer: p, node: n, ring: ringchan.New[[]byte](p.t.queueSize)}
	if existing, loaded := p.t.subs.GetOrInsert(subKey(p.info.Address, n.Path()), sub); loaded {
		return existing.ring.C(), nil
	}
	d.Subscribed(p.info, n)
	return sub.ring.C(), nil
}

// Unsubscribe disables notifications for path.
func (p *Peer) Unsubscribe(path string) error {
	n, d, err := p.t.resolve(path)
	if err != nil {
		return err
	}
	key := subKey(p.info.Address, n.Path())
	sub, ok := p.t.subs.Get(key)
	if !ok {
		return fmt.Errorf("%s is not subscribed to %s", p.info.Address, n.Path())
	}
	p.t.subs.Del(key)
	sub.ring.Close()
	stats := sub.ring.Stats()
	p.t.logger.WithFields(logrus.Fields{
		"peer":    p.info.Address,
		"path":    n.Path(),
		"pushed":  stats.Pushed,
		"evicted": stats.Evicted,
	}).Debug("Subscription closed")
	d.Unsubscribed(p.info, n)
	return nil
}

// QueueStats describes the notification buffer of one subscription.
type QueueStats struct {
	Path   string
	Queued int
	ringchan.Snapshot
}

// Subscriptions reports the buffer counters of the peer's active
// subscriptions, sorted by path.
func (p *Peer) Subscriptions() []QueueStats {
	var out []QueueStats
	p.t.subs.Range(func(_ string, s *subscription) bool {
		if s.peer == p {
			out = append(out, QueueStats{Path: s.node.Path(), Queued: s.ring.Len(), Snapshot: s.ring.Stats()})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Disconnect drops every subscription of the peer. Further operations fail
// with ErrDisconnected.
func (p *Peer) Disconnect() {
	if p.disconnected.Swap(true) {
		return
	}
	var paths []string
	p.t.subs.Range(func(_ string, s *subscription) bool {
		if s.peer == p {
			paths = append(paths, s.node.Path())
		}
		return true
	})
	for _, path := range paths {
		_ = p.Unsubscribe(path)
	}
}
