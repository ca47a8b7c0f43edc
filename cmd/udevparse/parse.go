package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/udevparse/internal/inventory"
)

func newParseCmd() *cobra.Command {
	var pretty bool

	kinds := make([]string, 0, len(inventory.Kinds()))
	for _, k := range inventory.Kinds() {
		kinds = append(kinds, string(k))
	}

	cmd := &cobra.Command{
		Use:   "parse KIND VALUE...",
		Short: "Parse values and print one JSON record per value",
		Long: `Parse each VALUE as KIND and print one JSON record per line.

Kinds:
  id-path   ID_PATH or ID_SAS_PATH, e.g. pci-0000:00:1f.2-ata-1
  pci       PCI slot name, e.g. 0000:00:1f.2
  dm-uuid   DM_UUID, e.g. mpath-3600508b400105e210000900000490000
  link      device link, e.g. /dev/disk/by-id/wwn-0x5000c500a1b2c3d4

A value that does not parse is printed with an "error" member, and the
command exits non-zero once every value has been printed.`,
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := inventory.Kind(args[0])

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}

			failed := 0
			for _, value := range args[1:] {
				rec, err := inventory.ParseRecord(kind, value)
				if errors.Is(err, inventory.ErrUnknownKind) {
					return fmt.Errorf("%w; expected one of %v", err, kinds)
				}
				if err != nil {
					failed++
				}
				if encErr := enc.Encode(rec); encErr != nil {
					return fmt.Errorf("writing record: %w", encErr)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errValuesFailed, failed, len(args)-1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	return cmd
}
