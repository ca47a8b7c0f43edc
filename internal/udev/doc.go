// Package udev parses values that udev synthesises from other device
// attributes, such as ID_PATH, ID_SAS_PATH, DM_UUID and PCI sys names, and
// classifies device links by the directory they live in.
//
// # Identifier Paths
//
// An identifier path is a run of bus-specific segments joined by "-":
//
//	pci-0000:00:1f.2-ata-1.0
//	pci-0000:00:10.0-sas-exp0x500605b0000272bf-phy3-lun-0
//	platform-i8042-serio-0
//
// Segments may themselves contain "-", so the parser tries every registered
// Grammar at each position, extends the candidate segment one "-" boundary at
// a time and backtracks when the remainder cannot be parsed. A parse only
// succeeds when every character of the input belongs to exactly one segment.
//
//	path, err := udev.ParseIDPath("pci-0000:00:1d.0-usb-0:1.4:1.0")
//	if err != nil {
//	    return err
//	}
//	for _, seg := range path {
//	    fmt.Println(seg.Prefix, seg.Fields["total"])
//	}
//
// # Fixed Formats
//
//   - ParsePCIAddress: "0000:00:1f.2" into domain, bus, device and function
//   - ParseMapperUUID: "LVM-...", "CRYPT-...", "mpath-...", "VDO-...", "part1-..."
//
// # Device Links
//
// NewLink classifies "/dev/disk/by-id/wwn-0x5000c500a1b2c3d4" as category
// "id" with value "wwn-0x5000c500a1b2c3d4". Links outside a "by-*" directory
// carry neither a category nor a value.
//
// # Errors
//
// Every failure is a *ParseError, which matches ErrParse:
//
//	if errors.Is(err, udev.ErrParse) {
//	    // value does not follow the synthesised format
//	}
//
// # Thread Safety
//
// Parsers hold no mutable state. The default registry is built during package
// initialisation and is only read afterwards, so all functions are safe for
// concurrent use.
package udev
