// udevparse decodes the identifiers udev synthesises for devices.
//
// Subcommands:
//
//	udevparse parse id-path|pci|dm-uuid|link VALUE...   decode values, print JSON
//	udevparse ingest [FILE|-|--udevadm]                 store reports for an export-db dump
//	udevparse serve                                     run the HTTP API until interrupted
//	udevparse migrate status|up|down                    inspect or change the schema
//
// Configuration is read from --config, or from $UDEVPARSE_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/udevparse/internal/infrastructure/config"
	"github.com/nerrad567/udevparse/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnv names the environment variable holding the config file path.
const configEnv = "UDEVPARSE_CONFIG"

// errValuesFailed is returned by parse when any value does not parse.
var errValuesFailed = errors.New("some values did not parse")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	log        *logging.Logger
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     "udevparse",
		Short:   "Decode udev device identifiers",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Long: `udevparse decodes the identifiers udev synthesises for devices:
ID_PATH and ID_SAS_PATH composite paths, PCI slot names, device-mapper
UUIDs and "by-<category>" device links.

It parses single values, ingests "udevadm info --export-db" dumps into a
SQLite inventory and serves the inventory over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv(configEnv),
		"path to the YAML config file (env "+configEnv+"); defaults apply when empty")

	root.AddCommand(
		newParseCmd(),
		newIngestCmd(a),
		newServeCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// load reads the configuration and builds the logger. Logs always go to
// stderr so JSON results on stdout stay machine-readable.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	a.log = logging.NewWithWriter(cfg.Logging, version, cmd.ErrOrStderr())
	a.log.Debug("configuration loaded", "path", a.configPath)
	return nil
}
