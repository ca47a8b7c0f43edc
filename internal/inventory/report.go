package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/udevparse/internal/udev"
)

// udev properties read by Decode.
const (
	PropertyIDPath     = "ID_PATH"
	PropertySASPath    = "ID_SAS_PATH"
	PropertyMapperUUID = "DM_UUID"
	PropertyPCISlot    = "PCI_SLOT_NAME"
	PropertySubsystem  = "SUBSYSTEM"
	PropertyDevName    = "DEVNAME"
	PropertyDevLinks   = "DEVLINKS"
)

// SubsystemPCI is the subsystem whose sys names are PCI addresses.
const SubsystemPCI = "pci"

// FieldError records a property value that failed to parse.
type FieldError struct {
	Property string `json:"property"`
	Value    string `json:"value"`
	Offset   int    `json:"offset"`
	Reason   string `json:"reason"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s=%q: %s (offset %d)", e.Property, e.Value, e.Reason, e.Offset)
}

// LinkReport is a classified device link.
type LinkReport struct {
	Path     string `json:"path"`
	Category string `json:"category,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Report is the decoded form of one device record.
type Report struct {
	// ID is assigned when the report is first stored and kept across
	// re-ingests of the same sys path.
	ID string `json:"id,omitempty"`

	SysPath   string `json:"sys_path"`
	SysName   string `json:"sys_name"`
	Subsystem string `json:"subsystem,omitempty"`
	DevNode   string `json:"dev_node,omitempty"`

	// IDPathValue is the raw ID_PATH property, kept when it fails to parse.
	IDPathValue string           `json:"id_path_value,omitempty"`
	IDPath      udev.Path        `json:"id_path,omitempty"`
	SASPath     udev.Path        `json:"sas_path,omitempty"`
	PCIAddress  *udev.PCIAddress `json:"pci_address,omitempty"`
	MapperUUID  *udev.MapperUUID `json:"mapper_uuid,omitempty"`
	Links       []LinkReport     `json:"links,omitempty"`
	Errors      []FieldError     `json:"errors,omitempty"`

	IngestedAt time.Time `json:"ingested_at"`
}

// HasErrors reports whether any property failed to parse.
func (r Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// Buses returns the distinct segment prefixes of the ID_PATH in the order
// they first appear, e.g. ["pci", "ata"].
func (r Report) Buses() []string {
	seen := make(map[string]bool, len(r.IDPath))
	var buses []string
	for _, prefix := range r.IDPath.Prefixes() {
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		buses = append(buses, prefix)
	}
	return buses
}

// observeFunc is called once for every property value Decode parses.
type observeFunc func(property string, err error)

// Decode parses the identifiers a device record carries.
//
// Parse failures are collected in Report.Errors; Decode never fails.
func Decode(d Device) Report {
	return decode(d, nil)
}

func decode(d Device, observe observeFunc) Report {
	r := Report{
		SysPath:   d.SysPath(),
		SysName:   d.SysName,
		Subsystem: d.Subsystem,
		DevNode:   d.DevNode,
	}

	record := func(property, value string, err error) bool {
		if observe != nil {
			observe(property, err)
		}
		if err == nil {
			return true
		}
		r.Errors = append(r.Errors, fieldError(property, value, err))
		return false
	}

	if v, ok := d.Property(PropertyIDPath); ok && v != "" {
		r.IDPathValue = v
		p, err := udev.ParseIDPath(v)
		if record(PropertyIDPath, v, err) {
			r.IDPath = p
		}
	}

	if v, ok := d.Property(PropertySASPath); ok && v != "" {
		p, err := udev.ParseIDPath(v)
		if record(PropertySASPath, v, err) {
			r.SASPath = p
		}
	}

	if v, ok := d.Property(PropertyMapperUUID); ok && v != "" {
		m, err := udev.ParseMapperUUID(v)
		if record(PropertyMapperUUID, v, err) {
			r.MapperUUID = &m
		}
	}

	if v := pciSlotName(d); v != "" {
		a, err := udev.ParsePCIAddress(v)
		if record(PropertyPCISlot, v, err) {
			r.PCIAddress = &a
		}
	}

	for _, p := range d.Links {
		link := udev.NewLink(p)
		lr := LinkReport{Path: link.Path()}
		if category, ok := link.Category(); ok {
			lr.Category = category
			lr.Value, _ = link.Value()
		}
		r.Links = append(r.Links, lr)
	}

	return r
}

// pciSlotName returns the PCI address a record carries, if any.
func pciSlotName(d Device) string {
	if v, ok := d.Property(PropertyPCISlot); ok && v != "" {
		return v
	}
	if d.Subsystem == SubsystemPCI {
		return d.SysName
	}
	return ""
}

func fieldError(property, value string, err error) FieldError {
	fe := FieldError{Property: property, Value: value, Reason: err.Error()}
	var perr *udev.ParseError
	if errors.As(err, &perr) {
		fe.Offset = perr.Offset
		fe.Reason = perr.Reason
	}
	return fe
}
