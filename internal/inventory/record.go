package inventory

import (
	"errors"
	"fmt"

	"github.com/nerrad567/udevparse/internal/udev"
)

// Kind names a family of values ParseRecord understands.
type Kind string

// Supported kinds.
const (
	KindIDPath     Kind = "id-path"
	KindPCI        Kind = "pci"
	KindMapperUUID Kind = "dm-uuid"
	KindLink       Kind = "link"
)

// ErrUnknownKind is returned by ParseRecord for an unsupported kind.
var ErrUnknownKind = errors.New("inventory: unknown kind")

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{KindIDPath, KindPCI, KindMapperUUID, KindLink}
}

// Record is the result of parsing a single value.
type Record struct {
	Kind     Kind        `json:"kind"`
	Value    string      `json:"value"`
	Segments udev.Path   `json:"segments,omitempty"`
	Fields   udev.Fields `json:"fields,omitempty"`
	Link     *LinkReport `json:"link,omitempty"`
	Error    *FieldError `json:"error,omitempty"`
}

// ParseRecord parses value as kind.
//
// Returns:
//   - Record: The parsed value, or the value with Error set
//   - error: ErrUnknownKind, or the parser's *udev.ParseError
func ParseRecord(kind Kind, value string) (Record, error) {
	rec := Record{Kind: kind, Value: value}

	var err error
	switch kind {
	case KindIDPath:
		rec.Segments, err = udev.ParseIDPath(value)
	case KindPCI:
		var a udev.PCIAddress
		if a, err = udev.ParsePCIAddress(value); err == nil {
			rec.Fields = a.Fields()
		}
	case KindMapperUUID:
		var m udev.MapperUUID
		if m, err = udev.ParseMapperUUID(value); err == nil {
			rec.Fields = m.Fields()
		}
	case KindLink:
		link := udev.NewLink(value)
		lr := LinkReport{Path: link.Path()}
		lr.Category, _ = link.Category()
		lr.Value, _ = link.Value()
		rec.Link = &lr
	default:
		return rec, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err != nil {
		fe := fieldError(kind.property(), value, err)
		rec.Error = &fe
		return rec, err
	}
	return rec, nil
}

// property returns the udev property a kind is usually read from.
func (k Kind) property() string {
	switch k {
	case KindIDPath:
		return PropertyIDPath
	case KindPCI:
		return PropertyPCISlot
	case KindMapperUUID:
		return PropertyMapperUUID
	default:
		return PropertyDevLinks
	}
}
