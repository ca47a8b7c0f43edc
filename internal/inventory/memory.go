package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryRepository implements Repository in memory.
//
// Reports are stored as JSON so callers never share state with the
// repository, matching the copy semantics of SQLiteRepository.
//
// All methods are safe for concurrent use.
type MemoryRepository struct {
	mu      sync.RWMutex
	reports map[string][]byte // JSON reports by sys path
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{reports: make(map[string][]byte)}
}

// Save inserts or replaces the report for r.SysPath.
func (m *MemoryRepository) Save(_ context.Context, r *Report) error {
	if r == nil {
		return fmt.Errorf("%w: nil report", ErrInvalidReport)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.reports[r.SysPath]; ok {
		var old Report
		if err := json.Unmarshal(existing, &old); err != nil {
			return fmt.Errorf("unmarshalling report: %w", err)
		}
		r.ID = old.ID
	}
	if err := prepareReport(r, time.Now().UTC()); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	m.reports[r.SysPath] = data
	return nil
}

// GetBySysName retrieves the report for a sys name.
func (m *MemoryRepository) GetBySysName(_ context.Context, sysName string) (*Report, error) {
	reports, err := m.filter(func(r Report) bool { return r.SysName == sysName })
	if err != nil {
		return nil, err
	}
	return single(reports)
}

// GetBySysPath retrieves the report for a sys path.
func (m *MemoryRepository) GetBySysPath(_ context.Context, sysPath string) (*Report, error) {
	reports, err := m.filter(func(r Report) bool { return r.SysPath == sysPath })
	if err != nil {
		return nil, err
	}
	return single(reports)
}

// List retrieves all reports ordered by sys path.
func (m *MemoryRepository) List(_ context.Context) ([]Report, error) {
	return m.filter(func(Report) bool { return true })
}

// ListByBus retrieves reports with an ID_PATH segment of the given prefix.
func (m *MemoryRepository) ListByBus(_ context.Context, bus string) ([]Report, error) {
	return m.filter(func(r Report) bool { return slices.Contains(r.Buses(), bus) })
}

// ListWithErrors retrieves reports with at least one field error.
func (m *MemoryRepository) ListWithErrors(_ context.Context) ([]Report, error) {
	return m.filter(Report.HasErrors)
}

// Delete removes the report for a sys path.
func (m *MemoryRepository) Delete(_ context.Context, sysPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[sysPath]; !ok {
		return ErrReportNotFound
	}
	delete(m.reports, sysPath)
	return nil
}

// filter decodes every report and keeps those keep accepts, ordered by sys path.
func (m *MemoryRepository) filter(keep func(Report) bool) ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var reports []Report
	for _, data := range m.reports {
		var r Report
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("unmarshalling report: %w", err)
		}
		if keep(r) {
			reports = append(reports, r)
		}
	}
	slices.SortFunc(reports, func(a, b Report) int { return strings.Compare(a.SysPath, b.SysPath) })
	return reports, nil
}
