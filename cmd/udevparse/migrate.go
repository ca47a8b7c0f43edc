package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/udevparse/internal/infrastructure/database"
)

// migrationState is one line of "migrate status" output.
type migrationState struct {
	Version   string     `json:"version"`
	Name      string     `json:"name,omitempty"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or change the inventory schema",
		Long: `Manage the SQLite schema. "ingest" and "serve" apply pending migrations
on startup, so these commands are only needed to inspect the schema or to
roll back during development.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations as JSON lines",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), a, func(ctx context.Context, db *database.DB) error {
					status, err := db.MigrationStatus(ctx)
					if err != nil {
						return err
					}
					return writeMigrationStatus(cmd.OutOrStdout(), status)
				})
			},
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), a, func(ctx context.Context, db *database.DB) error {
					if err := db.Migrate(ctx); err != nil {
						return fmt.Errorf("running migrations: %w", err)
					}
					status, err := db.MigrationStatus(ctx)
					if err != nil {
						return err
					}
					a.log.Info("schema up to date", "version", status.Current())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), a, func(ctx context.Context, db *database.DB) error {
					m, err := db.Rollback(ctx)
					if err != nil {
						return fmt.Errorf("rolling back: %w", err)
					}
					if m == nil {
						a.log.Info("no migrations applied")
						return nil
					}
					a.log.Info("migration rolled back", "version", m.Version, "name", m.Name)
					return nil
				})
			},
		},
	)
	return cmd
}

// withDatabase opens the configured database for fn and closes it afterwards.
func withDatabase(ctx context.Context, a *app, fn func(context.Context, *database.DB) error) error {
	db, err := openDatabase(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			a.log.Error("error closing database", "error", err)
		}
	}()
	return fn(ctx, db)
}

func writeMigrationStatus(w io.Writer, status database.MigrationStatus) error {
	enc := json.NewEncoder(w)
	for _, r := range status.Applied {
		at := r.AppliedAt
		if err := enc.Encode(migrationState{Version: r.Version, Applied: true, AppliedAt: &at}); err != nil {
			return err
		}
	}
	for _, m := range status.Pending {
		if err := enc.Encode(migrationState{Version: m.Version, Name: m.Name}); err != nil {
			return err
		}
	}
	return nil
}
