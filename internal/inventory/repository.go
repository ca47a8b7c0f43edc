package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for report persistence.
// This abstraction allows for different implementations (SQLite, memory)
// and enables unit testing without database dependencies.
type Repository interface {
	// Save inserts or replaces the report for r.SysPath. A new report is
	// given an ID; a replaced report keeps the ID it was first stored with.
	// Returns ErrInvalidReport if the sys path or sys name is empty.
	Save(ctx context.Context, r *Report) error

	// GetBySysName retrieves the report for a sys name.
	// Returns ErrReportNotFound if none exists, or ErrAmbiguousSysName if
	// reports under more than one sys path share the name.
	GetBySysName(ctx context.Context, sysName string) (*Report, error)

	// GetBySysPath retrieves the report for a sys path.
	// Returns ErrReportNotFound if none exists.
	GetBySysPath(ctx context.Context, sysPath string) (*Report, error)

	// List retrieves all reports ordered by sys path.
	List(ctx context.Context) ([]Report, error)

	// ListByBus retrieves reports whose ID_PATH has a segment with the
	// given prefix (e.g. "usb").
	ListByBus(ctx context.Context, bus string) ([]Report, error)

	// ListWithErrors retrieves reports with at least one field error.
	ListWithErrors(ctx context.Context) ([]Report, error)

	// Delete removes the report for a sys path.
	// Returns ErrReportNotFound if none exists.
	Delete(ctx context.Context, sysPath string) error
}

// prepareReport validates r and fills in its ID and ingest time.
func prepareReport(r *Report, now time.Time) error {
	if r.SysPath == "" {
		return fmt.Errorf("%w: empty sys path", ErrInvalidReport)
	}
	if r.SysName == "" {
		return fmt.Errorf("%w: empty sys name", ErrInvalidReport)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.IngestedAt.IsZero() {
		r.IngestedAt = now
	}
	return nil
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts or replaces a report and its bus index in one transaction.
func (s *SQLiteRepository) Save(ctx context.Context, r *Report) error {
	if r == nil {
		return fmt.Errorf("%w: nil report", ErrInvalidReport)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var existingID string
	err = tx.QueryRowContext(ctx, "SELECT id FROM device_reports WHERE sys_path = ?", r.SysPath).Scan(&existingID)
	switch {
	case err == nil:
		r.ID = existingID
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("looking up report: %w", err)
	}

	if err := prepareReport(r, time.Now().UTC()); err != nil {
		return err
	}

	reportJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	query := `
		INSERT INTO device_reports (
			id, sys_path, sys_name, subsystem, dev_node, id_path,
			report, error_count, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sys_path) DO UPDATE SET
			sys_name = excluded.sys_name,
			subsystem = excluded.subsystem,
			dev_node = excluded.dev_node,
			id_path = excluded.id_path,
			report = excluded.report,
			error_count = excluded.error_count,
			ingested_at = excluded.ingested_at`

	_, err = tx.ExecContext(ctx, query,
		r.ID,
		r.SysPath,
		r.SysName,
		r.Subsystem,
		r.DevNode,
		r.IDPathValue,
		string(reportJSON),
		len(r.Errors),
		r.IngestedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM device_report_buses WHERE sys_path = ?", r.SysPath); err != nil {
		return fmt.Errorf("clearing buses: %w", err)
	}
	for _, bus := range r.Buses() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO device_report_buses (sys_path, bus) VALUES (?, ?)", r.SysPath, bus); err != nil {
			return fmt.Errorf("inserting bus %q: %w", bus, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing report: %w", err)
	}
	return nil
}

// GetBySysName retrieves the report for a sys name.
func (s *SQLiteRepository) GetBySysName(ctx context.Context, sysName string) (*Report, error) {
	reports, err := s.queryReports(ctx, `
		SELECT id, report FROM device_reports
		WHERE sys_name = ?
		ORDER BY sys_path
		LIMIT 2`, sysName)
	if err != nil {
		return nil, err
	}
	return single(reports)
}

// GetBySysPath retrieves the report for a sys path.
func (s *SQLiteRepository) GetBySysPath(ctx context.Context, sysPath string) (*Report, error) {
	reports, err := s.queryReports(ctx, `
		SELECT id, report FROM device_reports
		WHERE sys_path = ?`, sysPath)
	if err != nil {
		return nil, err
	}
	return single(reports)
}

// List retrieves all reports.
func (s *SQLiteRepository) List(ctx context.Context) ([]Report, error) {
	return s.queryReports(ctx, `
		SELECT id, report FROM device_reports
		ORDER BY sys_path`)
}

// ListByBus retrieves reports with an ID_PATH segment of the given prefix.
func (s *SQLiteRepository) ListByBus(ctx context.Context, bus string) ([]Report, error) {
	return s.queryReports(ctx, `
		SELECT r.id, r.report FROM device_reports r
		JOIN device_report_buses b ON b.sys_path = r.sys_path
		WHERE b.bus = ?
		ORDER BY r.sys_path`, bus)
}

// ListWithErrors retrieves reports with at least one field error.
func (s *SQLiteRepository) ListWithErrors(ctx context.Context) ([]Report, error) {
	return s.queryReports(ctx, `
		SELECT id, report FROM device_reports
		WHERE error_count > 0
		ORDER BY sys_path`)
}

// Delete removes the report for a sys path.
func (s *SQLiteRepository) Delete(ctx context.Context, sysPath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM device_report_buses WHERE sys_path = ?", sysPath); err != nil {
		return fmt.Errorf("deleting buses: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM device_reports WHERE sys_path = ?", sysPath)
	if err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReportNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// queryReports executes a query selecting (id, report) and decodes each row.
func (s *SQLiteRepository) queryReports(ctx context.Context, query string, args ...any) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var id, reportJSON string
		if err := rows.Scan(&id, &reportJSON); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		var r Report
		if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
			return nil, fmt.Errorf("unmarshalling report %s: %w", id, err)
		}
		r.ID = id
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// single returns the only report of a lookup.
func single(reports []Report) (*Report, error) {
	switch len(reports) {
	case 0:
		return nil, ErrReportNotFound
	case 1:
		return &reports[0], nil
	default:
		return nil, ErrAmbiguousSysName
	}
}
