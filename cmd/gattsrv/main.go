package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd serves when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "gattsrv",
	Short: "Bluetooth Low Energy GATT peripheral server",
	Long: `Bluetooth Low Energy (BLE) GATT server that:

- Declares services, characteristics and descriptors from Go code or a YAML profile
- Serves reads and writes through a named data registry
- Sends change notifications and periodic updates to subscribed centrals
- Runs on the local HCI adapter or fully in memory (loopback) for testing
- Offers an interactive console to inspect and drive the running server

Without a subcommand, gattsrv runs serve.`,
	Version: formatVersion(version),
	RunE:    runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("gattsrv %s (commit %s, built %s)\n", formatVersion(version), commit, date))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(treeCmd)

	addGlobalFlags(rootCmd.PersistentFlags())
	addServeFlags(rootCmd)
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML configuration file")
	fs.String("profile", "", "YAML profile describing the served hierarchy (built-in demo services when empty)")
	fs.String("service-name", "", "Short service name, also used for the default root path")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolP("quiet", "q", false, "Only log errors")
	fs.BoolP("verbose", "v", false, "Verbose logging")
	fs.BoolP("debug", "d", false, "Debug logging")
}
