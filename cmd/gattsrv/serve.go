package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/gattsrv/internal/console"
	"github.com/srg/gattsrv/internal/demo"
	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/groutine"
	"github.com/srg/gattsrv/internal/profile"
	"github.com/srg/gattsrv/internal/registry"
	"github.com/srg/gattsrv/internal/server"
	"github.com/srg/gattsrv/internal/transport/goble"
	"github.com/srg/gattsrv/internal/transport/loopback"
	"github.com/srg/gattsrv/pkg/config"
)

// serveCmd runs the peripheral until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the GATT server",
	Long: `Runs the GATT server until SIGINT or SIGTERM.

The hierarchy comes from --profile, or the built-in demo services (device
information, battery, current time, text string, ASCII time, CPU) when no
profile is given. The demo battery drains by one percent every
--battery-drain interval.

Examples:
  # Serve the demo services on the local adapter
  sudo gattsrv serve

  # Serve a profile in memory and drive it from the console
  gattsrv serve --profile sensor.yaml --transport loopback --console

  # Keep registry values across restarts
  gattsrv serve --state-file /var/lib/gattsrv/state.cbor`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("transport", config.TransportHCI, "Transport: hci (local adapter) or loopback (in memory)")
	fs.String("advertised-name", "", "Local name to advertise")
	fs.Duration("tick", time.Second, "Periodic event tick interval")
	fs.Duration("init-timeout", 30*time.Second, "Maximum time for the transport to become ready")
	fs.String("state-file", "", "Persist registry values to this file between runs")
	fs.Duration("battery-drain", 15*time.Second, "Demo battery drain interval (0 disables)")
	fs.Bool("console", false, "Start the interactive console")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}
	withConsole, _ := cmd.Flags().GetBool("console")

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := notifyContext(context.Background())
	defer stop()

	var in io.ReadCloser
	if withConsole {
		in = os.Stdin
	}
	return serve(ctx, cfg, logger, in, cmd.OutOrStdout())
}

// services returns the store and hierarchy to serve, from the profile or
// the demo.
func services(cfg *config.Config, logger *logrus.Logger) (*registry.Store, func(*gatt.Builder), error) {
	if cfg.Profile == "" {
		return demo.NewStore(logger), demo.Configure, nil
	}
	doc, err := profile.LoadFile(cfg.Profile)
	if err != nil {
		return nil, nil, err
	}
	store := registry.NewStore(logger)
	if err := doc.Seed(store); err != nil {
		return nil, nil, err
	}
	return store, doc.Configure, nil
}

func newTransport(cfg *config.Config, logger *logrus.Logger) server.Transport {
	if cfg.Transport == config.TransportLoopback {
		return loopback.New(logger, loopback.WithQueueSize(cfg.NotifyQueueSize))
	}
	return goble.New(logger, goble.WithQueueSize(cfg.NotifyQueueSize))
}

// serve runs the server until ctx ends, the console quits or the server
// stops on its own. A non-nil console reads commands from in.
func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger, in io.ReadCloser, out io.Writer) error {
	store, configure, err := services(cfg, logger)
	if err != nil {
		return err
	}
	if cfg.StateFile != "" {
		if err := restoreState(store, cfg.StateFile, logger); err != nil {
			return err
		}
	}

	tr := newTransport(cfg, logger)
	srv, err := server.Start(server.Options{
		ServiceName:    cfg.ServiceName,
		AdvertisedName: cfg.AdvertisedName,
		RootName:       cfg.Root(),
		Configure:      configure,
		Getter:         store.Getter(),
		Setter:         store.Setter(),
		InitTimeout:    cfg.InitTimeout,
		TickInterval:   cfg.TickInterval,
		Transport:      tr,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var workers groutine.Group

	if cfg.Profile == "" && cfg.BatteryDrainInterval > 0 {
		workers.Go(ctx, "battery-drain", func(ctx context.Context) {
			demo.DrainBattery(ctx, store, srv, cfg.BatteryDrainInterval)
		})
	}

	if in != nil {
		var peer *loopback.Peer
		if lt, ok := tr.(*loopback.Transport); ok {
			peer = lt.Connect("console")
		}
		c := console.New(srv, store, peer, out, logger)
		workers.Go(ctx, "console", func(ctx context.Context) {
			if err := c.Run(ctx, in); err != nil {
				logger.WithError(err).Error("Console failed")
			}
			cancel()
		})
	}

	logger.WithFields(logrus.Fields{
		"name":      cfg.AdvertisedName,
		"root":      cfg.Root(),
		"transport": cfg.Transport,
		"nodes":     srv.Tree().Len(),
	}).Info("Server running")

	select {
	case <-ctx.Done():
		logger.WithField("status", true).Info("Shutting down")
		srv.TriggerShutdown()
	case <-srv.Done():
	}

	ok := srv.Wait()
	cancel()
	workers.Wait()

	if cfg.StateFile != "" {
		if err := saveState(store, cfg.StateFile, logger); err != nil {
			logger.WithError(err).Error("Failed to save state")
		}
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrServerFailed, srv.Health())
	}
	return nil
}
