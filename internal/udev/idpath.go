package udev

// IDPathSeparator joins the segments of ID_PATH and ID_SAS_PATH values.
const IDPathSeparator = '-'

// Shared field patterns.
const (
	lunPattern  = `(?P<lun>[0-9a-fx]+)`
	guidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`
)

// idPathGrammars lists the segment formats written by udev's path_id builtin.
//
// Order is precedence: "sas-exp" and "sas-phy" precede "sas", and "ccwgroup"
// precedes "ccw". NewCompositeParser enforces this for any prefix that
// extends an earlier one.
var idPathGrammars = []Grammar{
	MustGrammar("acpi", `acpi-(?P<device>.+)`),
	MustGrammar("ap", `ap-(?P<device>.+)`),
	MustGrammar("ata", `ata-(?P<port>\d+)(?:\.(?P<link>\d+))?`),
	MustGrammar("bcma", `bcma-(?P<core>\d+)`),
	MustGrammar("ccwgroup", `ccwgroup-(?P<device>.+)`),
	MustGrammar("ccw", `ccw-(?P<device>.+)`),
	MustGrammar("fc", `fc-(?P<port_name>0x[0-9a-fA-F]+)-lun-`+lunPattern),
	MustGrammar("ide", `ide-(?P<host>\d+):(?P<unit>\d+)`),
	MustGrammar("ip", `ip-(?P<persistent_address>.+):(?P<persistent_port>\d+)-iscsi-(?P<target_name>.+)-lun-`+lunPattern),
	MustGrammar("iucv", `iucv-(?P<device>.+)`),
	MustGrammar("nst", `nst`),
	MustGrammar("nvme", `nvme-(?P<nsid>\d+)`),
	MustGrammar("pci", `pci-(?P<device>[^-]+)`),
	MustGrammar("platform", `platform-(?P<device>.+)`),
	MustGrammar("sas-exp", `sas-exp(?P<sas_address>0x[0-9a-fA-F]+)-phy(?P<phy_id>\d+)-lun-`+lunPattern),
	MustGrammar("sas-phy", `sas-phy(?P<phy_id>\d+)-lun-`+lunPattern),
	MustGrammar("sas", `sas-(?P<sas_address>0x[0-9a-fA-F]+)-lun-`+lunPattern),
	MustGrammar("scm", `scm-(?P<device>.+)`),
	MustGrammar("scsi", `scsi-(?P<host>\d+):(?P<channel>\d+):(?P<id>\d+):(?P<lun>\d+)`),
	MustGrammar("serio", `serio-(?P<device>\d+)`),
	MustGrammar("st", `st`),
	MustGrammar("usb", `usb-(?P<bus>\d+):(?P<port>[0-9.]+)(?::(?P<config>\d+)\.(?P<interface>\d+))?`),
	MustGrammar("virtio-pci", `virtio-pci-(?P<device>[^-]+)`),
	MustGrammar("vmbus", `vmbus-(?P<guid>`+guidPattern+`)(?:-lun-`+lunPattern+`)?`),
	MustGrammar("xen", `xen-(?P<device>.+)`),
}

var idPathParser = MustCompositeParser(FamilyIDPath, IDPathSeparator, idPathGrammars...)

// IDPathParser returns the shared parser for ID_PATH and ID_SAS_PATH values.
func IDPathParser() *CompositeParser {
	return idPathParser
}

// ParseIDPath parses an ID_PATH or ID_SAS_PATH value.
//
// Example:
//
//	path, err := udev.ParseIDPath("pci-0000:00:1f.2-ata-1")
//	// path[0].Prefix == "pci", path[0].Fields["device"] == "0000:00:1f.2"
//	// path[1].Prefix == "ata", path[1].Fields["port"] == "1"
func ParseIDPath(s string) (Path, error) {
	return idPathParser.Parse(s)
}
