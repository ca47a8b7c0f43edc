package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/udevparse/internal/process"
)

// stdinName selects standard input as the dump source.
const stdinName = "-"

// udevadmSource names dumps collected by running udevadm.
const udevadmSource = "udevadm"

func newIngestCmd(a *app) *cobra.Command {
	var collect bool

	cmd := &cobra.Command{
		Use:   "ingest [FILE|-]",
		Short: "Decode an export-db dump into the inventory",
		Long: `Read the output of "udevadm info --export-db" from FILE, or from standard
input when FILE is "-", decode every device and store the reports.

Without FILE, inventory.export_db from the configuration is used. With
--udevadm the dump is collected by running inventory.udevadm instead. Reports
are published over MQTT and parse outcomes written to InfluxDB when those
are enabled. A JSON summary is printed on completion.

Example:
  udevadm info --export-db | udevparse ingest -
  udevparse ingest --udevadm`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				in     io.ReadCloser
				source string
				err    error
			)
			switch {
			case collect && len(args) == 1:
				return errors.New("--udevadm cannot be combined with FILE")
			case collect:
				in, err = collectDump(ctx, a)
				source = udevadmSource
			default:
				name := a.cfg.Inventory.ExportDB
				if len(args) == 1 {
					name = args[0]
				}
				in, source, err = openDump(cmd, name)
			}
			if err != nil {
				return err
			}
			defer in.Close()

			svc, err := openServices(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.ingester.IngestReader(ctx, source, in)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", source, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(summary); err != nil {
				return fmt.Errorf("writing summary: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&collect, "udevadm", false, "collect the dump by running udevadm info --export-db")
	return cmd
}

// collectDump runs udevadm and returns its complete output.
func collectDump(ctx context.Context, a *app) (io.ReadCloser, error) {
	runner := process.NewRunner(process.Config{
		Name:    udevadmSource,
		Binary:  a.cfg.Inventory.Udevadm,
		Args:    []string{"info", "--export-db"},
		Timeout: a.cfg.GetCollectTimeout(),
	})
	runner.SetLogger(a.log.With("component", "process"))

	var dump bytes.Buffer
	if err := runner.Run(ctx, &dump); err != nil {
		return nil, fmt.Errorf("collecting dump: %w", err)
	}
	return io.NopCloser(&dump), nil
}

// openDump opens the named dump, "-" meaning the command's standard input.
func openDump(cmd *cobra.Command, name string) (io.ReadCloser, string, error) {
	if name == "" || name == stdinName {
		return io.NopCloser(cmd.InOrStdin()), "stdin", nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, "", fmt.Errorf("opening dump: %w", err)
	}
	return f, name, nil
}
