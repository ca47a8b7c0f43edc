package udev

import (
	"errors"
	"fmt"
)

// ErrParse is matched by every error returned from this package.
var ErrParse = errors.New("udev: parse failed")

// Value families reported in ParseError.Family.
const (
	FamilyIDPath     = "ID_PATH"
	FamilyPCIAddress = "PCI address"
	FamilyMapperUUID = "DM_UUID"
)

// ParseError describes why a value does not follow its synthesised format.
type ParseError struct {
	// Family names the kind of value being parsed (e.g. "ID_PATH").
	Family string

	// Input is the complete value that was rejected.
	Input string

	// Offset is the byte position at which parsing could go no further.
	Offset int

	// Reason is a short human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("udev: invalid %s %q at offset %d: %s", e.Family, e.Input, e.Offset, e.Reason)
	}
	return fmt.Sprintf("udev: invalid %s %q: %s", e.Family, e.Input, e.Reason)
}

// Unwrap lets errors.Is(err, ErrParse) succeed.
func (e *ParseError) Unwrap() error {
	return ErrParse
}

func parseError(family, input string, offset int, format string, args ...any) *ParseError {
	return &ParseError{
		Family: family,
		Input:  input,
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
	}
}
