package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/inspect"
)

// treeCmd prints the hierarchy without serving it
var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the configured GATT hierarchy",
	Long: `Builds the hierarchy from --profile, or the demo services, and prints it
without starting a transport. Building reports the same errors serve would.

Examples:
  gattsrv tree
  gattsrv tree --profile sensor.yaml --json`,
	Args: cobra.NoArgs,
	RunE: runTree,
}

var (
	treeJSON     bool
	treeHandlers bool
)

func init() {
	addTreeFlags(treeCmd)
}

func addTreeFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&treeJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&treeHandlers, "handlers", true, "List bound handlers")
}

func runTree(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	_, configure, err := services(cfg, logger)
	if err != nil {
		return err
	}
	b := gatt.NewBuilder(cfg.Root())
	configure(b)
	tree, err := b.Build()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if treeJSON {
		data, err := inspect.JSON(tree)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	colors := false
	if f, ok := out.(*os.File); ok {
		colors = term.IsTerminal(int(f.Fd()))
	}
	return inspect.Text(out, tree, inspect.Options{Colors: colors, Handlers: treeHandlers})
}
