package server

import (
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/gattsrv/internal/gatt"
)

// NotifyUpdatedPath tells the server that the value behind path changed. path
// may be root-relative ("battery/level") or a full object path. The node's
// update handler runs later on the processing goroutine; triggers for the same
// path that arrive before the next drain collapse into one invocation, which
// sees the value current at that time.
//
// Unknown paths and nodes without an update handler are logged and ignored.
// It is safe to call from any goroutine, including from handlers.
func (s *Server) NotifyUpdatedPath(path string) {
	if st := s.RunState(); st != StateRunning {
		s.logger.WithFields(logrus.Fields{"path": path, "state": st.String()}).
			Debug("Ignoring value change trigger while not running")
		return
	}

	n, ok := s.tree.Lookup(path)
	if !ok {
		s.logger.WithField("path", path).Warn("Value change trigger for unknown path")
		return
	}
	if !n.HasUpdate() {
		s.logger.WithField("path", path).Warn("Value change trigger for a node without an update handler")
		return
	}

	s.pendingMu.Lock()
	if _, queued := s.pending.Get(n.Path()); !queued {
		s.pending.Set(n.Path(), n)
	}
	s.pendingMu.Unlock()

	s.kick.TryPush(struct{}{})
}

// Pending returns the number of queued value change triggers.
func (s *Server) Pending() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return s.pending.Len()
}

// drain runs the update handler of every queued node in first-trigger order.
// It must be called on the processing goroutine.
func (s *Server) drain() {
	s.pendingMu.Lock()
	if s.pending.Len() == 0 {
		s.pendingMu.Unlock()
		return
	}
	batch := make([]*gatt.Node, 0, s.pending.Len())
	for pair := s.pending.Oldest(); pair != nil; pair = pair.Next() {
		batch = append(batch, pair.Value)
	}
	s.pending = orderedmap.New[string, *gatt.Node]()
	s.pendingMu.Unlock()

	for _, n := range batch {
		if s.RunState() != StateRunning {
			return
		}
		handled := gatt.InvokeUpdate(s.env, n)
		s.logger.WithFields(logrus.Fields{"path": n.Path(), "handled": handled}).Debug("Update handler ran")
	}
}
