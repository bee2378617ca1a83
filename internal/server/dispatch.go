package server

import (
	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
)

// dispatcher is the gatt.Dispatcher handed to the transport. Every call is
// serialized onto the processing goroutine.
type dispatcher struct {
	s *Server
}

var _ gatt.Dispatcher = dispatcher{}

func (d dispatcher) ServeRead(peer *gatt.Peer, n *gatt.Node, offset int) gatt.Reply {
	rep := gatt.Reply{Status: gatt.StatusUnlikely}
	if !d.serve(func() { rep = gatt.InvokeRead(d.s.env, peer, n, offset) }) {
		d.rejected(peer, n, "read")
		return rep
	}
	d.s.logger.WithFields(logrus.Fields{
		"peer":    peer.String(),
		"service": n.Service().Name(),
		"path":    n.Path(),
		"offset":  offset,
		"status":  rep.Status.String(),
		"bytes":   len(rep.Value),
	}).Debug("Read served")
	return rep
}

func (d dispatcher) ServeWrite(peer *gatt.Peer, n *gatt.Node, data []byte, offset int, withResponse bool) gatt.Reply {
	rep := gatt.Reply{Status: gatt.StatusUnlikely}
	if !d.serve(func() { rep = gatt.InvokeWrite(d.s.env, peer, n, data, offset, withResponse) }) {
		d.rejected(peer, n, "write")
		return rep
	}
	d.s.logger.WithFields(logrus.Fields{
		"peer":          peer.String(),
		"service":       n.Service().Name(),
		"path":          n.Path(),
		"bytes":         len(data),
		"with_response": withResponse,
		"status":        rep.Status.String(),
	}).Debug("Write served")
	return rep
}

func (d dispatcher) Subscribed(peer *gatt.Peer, n *gatt.Node) {
	d.s.logger.WithFields(logrus.Fields{"peer": peer.String(), "path": n.Path()}).Info("Peer subscribed")
}

func (d dispatcher) Unsubscribed(peer *gatt.Peer, n *gatt.Node) {
	d.s.logger.WithFields(logrus.Fields{"peer": peer.String(), "path": n.Path()}).Info("Peer unsubscribed")
}

// serve runs fn on the processing goroutine if the server is running.
func (d dispatcher) serve(fn func()) bool {
	if d.s.RunState() != StateRunning {
		return false
	}
	return d.s.submit(fn)
}

func (d dispatcher) rejected(peer *gatt.Peer, n *gatt.Node, op string) {
	d.s.logger.WithFields(logrus.Fields{
		"peer":  peer.String(),
		"path":  n.Path(),
		"op":    op,
		"state": d.s.RunState().String(),
	}).Debug("Request rejected, server not running")
}
