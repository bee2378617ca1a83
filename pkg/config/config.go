package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	TransportHCI      = "hci"
	TransportLoopback = "loopback"
)

// Config holds application configuration
type Config struct {
	LogLevel logrus.Level `yaml:"log_level" default:"4"` // info

	ServiceName    string `yaml:"service_name" default:"gattsrv"`
	AdvertisedName string `yaml:"advertised_name" default:"Gattsrv"`
	// RootName defaults to "/com/<ServiceName>" when empty.
	RootName string `yaml:"root_name"`

	InitTimeout  time.Duration `yaml:"init_timeout" default:"30s"`
	TickInterval time.Duration `yaml:"tick_interval" default:"1s"`

	Transport       string `yaml:"transport" default:"hci"`
	NotifyQueueSize int    `yaml:"notify_queue_size" default:"16"`

	// Profile is a YAML profile path; empty serves the built-in demo services.
	Profile string `yaml:"profile"`
	// StateFile persists application data between runs; empty disables it.
	StateFile string `yaml:"state_file"`

	BatteryDrainInterval time.Duration `yaml:"battery_drain_interval" default:"15s"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over the defaults and validates the result.
func Decode(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.ServiceName == "":
		return errors.New("service_name must not be empty")
	case strings.ContainsAny(c.ServiceName, "/ "):
		return fmt.Errorf("service_name %q must not contain '/' or spaces", c.ServiceName)
	case c.AdvertisedName == "":
		return errors.New("advertised_name must not be empty")
	case c.RootName != "" && !strings.HasPrefix(c.RootName, "/"):
		return fmt.Errorf("root_name %q must start with '/'", c.RootName)
	case c.InitTimeout <= 0:
		return fmt.Errorf("init_timeout must be positive, got %s", c.InitTimeout)
	case c.TickInterval <= 0:
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	case c.BatteryDrainInterval < 0:
		return fmt.Errorf("battery_drain_interval must not be negative, got %s", c.BatteryDrainInterval)
	case c.NotifyQueueSize <= 0:
		return fmt.Errorf("notify_queue_size must be positive, got %d", c.NotifyQueueSize)
	}
	switch c.Transport {
	case TransportHCI, TransportLoopback:
	default:
		return fmt.Errorf("unknown transport %q (must be %s or %s)", c.Transport, TransportHCI, TransportLoopback)
	}
	return nil
}

// Root returns the object path prefix of the served tree.
func (c *Config) Root() string {
	if c.RootName != "" {
		return c.RootName
	}
	return "/com/" + c.ServiceName
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
