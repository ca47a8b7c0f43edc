package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"sync"
	"time"
)

// Migration errors.
var (
	// ErrNoDownSQL is returned when rolling back a migration without a .down.sql file.
	ErrNoDownSQL = errors.New("database: migration has no down SQL")

	// ErrUnknownMigration is returned when an applied version has no migration files.
	ErrUnknownMigration = errors.New("database: applied migration not found")

	// ErrInvalidMigrations is returned when the migration files are inconsistent.
	ErrInvalidMigrations = errors.New("database: invalid migration files")
)

// migrationFileRegex matches YYYYMMDD_HHMMSS_description.{up,down}.sql.
var migrationFileRegex = regexp.MustCompile(`^(\d{8}_\d{6})_([A-Za-z0-9_]+)\.(up|down)\.sql$`)

var (
	migrationsMu  sync.RWMutex
	migrationsSrc fs.FS
)

// SetMigrations registers the filesystem holding the migration files, which
// must sit at its root. A nil fsys means there are no migrations.
//
// The migrations package calls this from init so the schema is compiled
// into the binary:
//
//	//go:embed *.sql
//	var migrationsFS embed.FS
//
//	func init() {
//	    database.SetMigrations(migrationsFS)
//	}
//
// Returns:
//   - func(): Restores the previously registered filesystem
func SetMigrations(fsys fs.FS) (restore func()) {
	migrationsMu.Lock()
	prev := migrationsSrc
	migrationsSrc = fsys
	migrationsMu.Unlock()

	return func() {
		migrationsMu.Lock()
		migrationsSrc = prev
		migrationsMu.Unlock()
	}
}

func registeredMigrations() fs.FS {
	migrationsMu.RLock()
	defer migrationsMu.RUnlock()
	return migrationsSrc
}

// Migration represents a single database migration.
type Migration struct {
	// Version is the timestamp prefix of the filename, e.g. 20261019_120000.
	Version string

	// Name is the description part of the filename, e.g. device_reports.
	Name string

	// UpSQL contains the SQL to apply this migration.
	UpSQL string

	// DownSQL contains the SQL to roll it back. Empty when there is no
	// .down.sql file.
	DownSQL string
}

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// MigrationStatus lists applied and pending migrations, each oldest first.
type MigrationStatus struct {
	Applied []MigrationRecord
	Pending []Migration
}

// Current returns the most recently applied version, or "" for an empty schema.
func (s MigrationStatus) Current() string {
	if len(s.Applied) == 0 {
		return ""
	}
	return s.Applied[len(s.Applied)-1].Version
}

// Migrate applies all pending migrations in version order.
//
// Each migration runs in its own transaction together with its
// schema_migrations row. If one fails, earlier migrations stay committed,
// the failing one is rolled back and later ones are not attempted, so
// re-running Migrate after a fix resumes where it stopped.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If the files are invalid or a migration fails
func (db *DB) Migrate(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range status.Pending {
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - *Migration: The reverted migration, or nil when none is applied
//   - error: ErrUnknownMigration, ErrNoDownSQL, or a database failure
func (db *DB) Rollback(ctx context.Context) (*Migration, error) {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return nil, err
	}
	latest := status.Current()
	if latest == "" {
		return nil, nil //nolint:nilnil // nothing applied is not an error
	}

	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == latest })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMigration, latest)
	}
	m := migrations[i]
	if m.DownSQL == "" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoDownSQL, m.Version, m.Name)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
		return nil, fmt.Errorf("executing down SQL for %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = ?",
		m.Version,
	); err != nil {
		return nil, fmt.Errorf("removing migration record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing rollback: %w", err)
	}
	return &m, nil
}

// MigrationStatus reports which migrations are applied and which are pending.
// It creates the schema_migrations table on first use.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - MigrationStatus: Applied and pending migrations
//   - error: If the files are invalid or the table cannot be read
func (db *DB) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	if err := db.createMigrationsTable(ctx); err != nil {
		return MigrationStatus{}, fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("reading applied migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("loading migrations: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}

	status := MigrationStatus{Applied: applied}
	for _, m := range migrations {
		if _, ok := done[m.Version]; !ok {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.DB.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var (
			r         MigrationRecord
			appliedAt string
		)
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		if r.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, fmt.Errorf("migration %s: parsing applied_at: %w", r.Version, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// migrationFile is a parsed migration filename.
type migrationFile struct {
	Version string
	Name    string
	Up      bool
}

// parseMigrationFilename splits a migration filename into its parts.
func parseMigrationFilename(filename string) (migrationFile, bool) {
	m := migrationFileRegex.FindStringSubmatch(filename)
	if m == nil {
		return migrationFile{}, false
	}
	return migrationFile{Version: m[1], Name: m[2], Up: m[3] == "up"}, true
}

// loadMigrations reads the registered migration files, oldest first.
// Files that do not look like migrations are ignored.
func loadMigrations() ([]Migration, error) {
	fsys := registeredMigrations()
	if fsys == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	downOnly := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[f.Version]
		if m == nil {
			m = &Migration{Version: f.Version}
			byVersion[f.Version] = m
		}
		if f.Up {
			if m.UpSQL != "" {
				return nil, fmt.Errorf("%w: two up files for version %s", ErrInvalidMigrations, f.Version)
			}
			m.Name = f.Name
			m.UpSQL = string(data)
			delete(downOnly, f.Version)
		} else {
			m.DownSQL = string(data)
			if m.UpSQL == "" {
				downOnly[f.Version] = entry.Name()
			}
		}
	}
	if len(downOnly) > 0 {
		orphans := make([]string, 0, len(downOnly))
		for _, name := range downOnly {
			orphans = append(orphans, name)
		}
		slices.Sort(orphans)
		return nil, fmt.Errorf("%w: %s has no matching up file", ErrInvalidMigrations, orphans[0])
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return migrations, nil
}
