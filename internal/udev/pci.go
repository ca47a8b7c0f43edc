package udev

import (
	"fmt"
	"regexp"
	"strconv"
)

// PCI address field names.
const (
	FieldDomain   = "domain"
	FieldBus      = "bus"
	FieldDevice   = "device"
	FieldFunction = "function"
)

// PCIAddressKeys lists the fields of every parsed PCI address.
var PCIAddressKeys = []string{FieldDomain, FieldBus, FieldDevice, FieldFunction}

// pciAddressRegex matches a PCI sys name: DDDD:BB:DD.F. The kernel prints
// the domain with at least four digits, so VMD domains have five.
var pciAddressRegex = regexp.MustCompile(`^([0-9a-fA-F]{4,}):([0-9a-fA-F]{2}):([0-9a-fA-F]{2})\.([0-7])$`)

// PCIAddress is a PCI slot address as used for PCI device sys names.
//
// Format: Domain:Bus:Device.Function
//   - Domain:   4 or more hex digits
//   - Bus:      2 hex digits
//   - Device:   2 hex digits (0x00-0x1f)
//   - Function: 1 digit (0-7)
type PCIAddress struct {
	Domain   string `json:"domain"`
	Bus      string `json:"bus"`
	Device   string `json:"device"`
	Function string `json:"function"`
}

// maxPCIDevice is the highest device number on a PCI bus.
const maxPCIDevice = 0x1f

// ParsePCIAddress parses a PCI sys name such as "0000:00:1f.2".
//
// Returns:
//   - PCIAddress: All four fields, each non-empty
//   - error: *ParseError if the value is not a PCI address
func ParsePCIAddress(s string) (PCIAddress, error) {
	if s == "" {
		return PCIAddress{}, parseError(FamilyPCIAddress, s, 0, "empty value")
	}

	m := pciAddressRegex.FindStringSubmatch(s)
	if m == nil {
		return PCIAddress{}, parseError(FamilyPCIAddress, s, 0, "expected domain:bus:device.function")
	}

	// The regex guarantees two hex digits.
	device, _ := strconv.ParseUint(m[3], 16, 8) //nolint:errcheck // validated by regex
	if device > maxPCIDevice {
		return PCIAddress{}, parseError(FamilyPCIAddress, s, len(m[1])+len(m[2])+2, "device must be 00-%02x, got %s", maxPCIDevice, m[3])
	}

	return PCIAddress{
		Domain:   m[1],
		Bus:      m[2],
		Device:   m[3],
		Function: m[4],
	}, nil
}

// Fields returns the address as a field map keyed by PCIAddressKeys.
func (a PCIAddress) Fields() Fields {
	return Fields{
		FieldDomain:   a.Domain,
		FieldBus:      a.Bus,
		FieldDevice:   a.Device,
		FieldFunction: a.Function,
	}
}

// String returns the address in sys name format.
//
// Example: "0000:00:1f.2"
func (a PCIAddress) String() string {
	return fmt.Sprintf("%s:%s:%s.%s", a.Domain, a.Bus, a.Device, a.Function)
}
