package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/registry"
)

const (
	DefaultInitTimeout  = 30 * time.Second
	DefaultTickInterval = time.Second
)

// Advertisement is what a transport announces while the server runs.
type Advertisement struct {
	LocalName   string
	ServiceName string
	Services    []gatt.UUID // every service UUID, in declaration order
}

// Transport exposes a Tree to peers. Start must return once the tree is
// published and requests may arrive; ctx bounds that initialization only.
// Notify queues value for every subscriber of n and returns how many were
// reached; it must not block. Errors reports runtime failures.
type Transport interface {
	Start(ctx context.Context, adv Advertisement, tree *gatt.Tree, d gatt.Dispatcher) error
	Notify(n *gatt.Node, value []byte) int
	Stop() error
	Errors() <-chan error
}

// Options configures a Server.
type Options struct {
	// ServiceName is the short name of the server, e.g. "gattsrv".
	ServiceName string
	// AdvertisedName is the local name peers see; defaults to ServiceName.
	AdvertisedName string
	// RootName is the object path prefix; defaults to "/com/<ServiceName>".
	RootName string

	// Configure declares the hierarchy. It is called exactly once per Start.
	Configure func(b *gatt.Builder)

	Getter registry.Getter
	Setter registry.Setter

	InitTimeout  time.Duration
	TickInterval time.Duration

	Transport Transport
	Logger    *logrus.Logger
}

func (o *Options) applyDefaults() {
	if o.AdvertisedName == "" {
		o.AdvertisedName = o.ServiceName
	}
	if o.RootName == "" {
		o.RootName = "/com/" + o.ServiceName
	}
	if o.InitTimeout <= 0 {
		o.InitTimeout = DefaultInitTimeout
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
}

func (o *Options) validate() error {
	switch {
	case o.ServiceName == "":
		return fmt.Errorf("service name is required")
	case strings.ContainsAny(o.ServiceName, "/ "):
		return fmt.Errorf("service name %q must not contain '/' or spaces", o.ServiceName)
	case !strings.HasPrefix(o.RootName, "/"):
		return fmt.Errorf("root name %q must start with '/'", o.RootName)
	case o.Configure == nil:
		return fmt.Errorf("configure function is required")
	case o.Transport == nil:
		return fmt.Errorf("transport is required")
	}
	return nil
}
