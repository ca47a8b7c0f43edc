package inventory

import "errors"

// Domain errors for the inventory package.
var (
	// ErrInvalidExportDB is returned when a dump line cannot be read.
	ErrInvalidExportDB = errors.New("inventory: invalid export-db")

	// ErrReportNotFound is returned when no report matches a lookup.
	ErrReportNotFound = errors.New("inventory: report not found")

	// ErrAmbiguousSysName is returned when a sys name lookup matches
	// reports under more than one sys path.
	ErrAmbiguousSysName = errors.New("inventory: sys name is ambiguous")

	// ErrInvalidReport is returned when a report cannot be stored.
	ErrInvalidReport = errors.New("inventory: invalid report")
)
