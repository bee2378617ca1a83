package main

import (
	"github.com/spf13/cobra"

	"github.com/srg/gattsrv/pkg/config"
)

// loadConfig reads --config, or the defaults, and applies every flag the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs := cmd.Flags()
	if fs.Changed("profile") {
		cfg.Profile, _ = fs.GetString("profile")
	}
	if fs.Changed("service-name") {
		cfg.ServiceName, _ = fs.GetString("service-name")
	}
	if fs.Lookup("transport") != nil {
		if fs.Changed("advertised-name") {
			cfg.AdvertisedName, _ = fs.GetString("advertised-name")
		}
		if fs.Changed("transport") {
			cfg.Transport, _ = fs.GetString("transport")
		}
		if fs.Changed("tick") {
			cfg.TickInterval, _ = fs.GetDuration("tick")
		}
		if fs.Changed("init-timeout") {
			cfg.InitTimeout, _ = fs.GetDuration("init-timeout")
		}
		if fs.Changed("state-file") {
			cfg.StateFile, _ = fs.GetString("state-file")
		}
		if fs.Changed("battery-drain") {
			cfg.BatteryDrainInterval, _ = fs.GetDuration("battery-drain")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
