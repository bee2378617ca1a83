package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/gattsrv/pkg/config"
)

// configureLogger creates a logger with the level picked from flags.
// --log-level takes precedence over -q, -d and -v, which take precedence
// over the configured level.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	logLevel := cfg.LogLevel

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	if logLevelStr != "" {
		switch logLevelStr {
		case "debug":
			logLevel = logrus.DebugLevel
		case "info":
			logLevel = logrus.InfoLevel
		case "warn":
			logLevel = logrus.WarnLevel
		case "error":
			logLevel = logrus.ErrorLevel
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	} else {
		quiet, _ := cmd.Flags().GetBool("quiet")
		debug, _ := cmd.Flags().GetBool("debug")
		verbose, _ := cmd.Flags().GetBool("verbose")
		switch {
		case quiet:
			logLevel = logrus.ErrorLevel
		case debug:
			logLevel = logrus.DebugLevel
		case verbose:
			logLevel = logrus.InfoLevel
		}
	}

	logger := cfg.NewLogger()
	logger.SetLevel(logLevel)
	return logger, nil
}
