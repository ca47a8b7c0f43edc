package inventory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	// SysfsRoot is prepended to a devpath to form the sys path.
	SysfsRoot = "/sys"

	// DevRoot is prepended to N: and S: values, which udev stores relative
	// to /dev.
	DevRoot = "/dev"

	// maxLineLength bounds a single dump line. DEVLINKS of heavily linked
	// devices can run to several kilobytes.
	maxLineLength = 1 << 20
)

// Device is one record of a udev database dump.
type Device struct {
	// DevPath is the kernel devpath (P:), e.g. "/devices/pci0000:00/0000:00:1f.2".
	DevPath string `json:"devpath"`

	// SysName is the last devpath element, or the M: value when present.
	SysName string `json:"sys_name"`

	// Subsystem is the SUBSYSTEM property, or the U: value.
	Subsystem string `json:"subsystem,omitempty"`

	// DevNode is the absolute device node path, if the device has one.
	DevNode string `json:"dev_node,omitempty"`

	// Links are absolute device link paths.
	Links []string `json:"links,omitempty"`

	// Properties holds every E: entry.
	Properties map[string]string `json:"properties,omitempty"`
}

// SysPath returns the device's path under /sys.
func (d Device) SysPath() string {
	return SysfsRoot + d.DevPath
}

// Property returns a property value and whether it was present.
func (d Device) Property(key string) (string, bool) {
	v, ok := d.Properties[key]
	return v, ok
}

// ReadExportDB reads the output of "udevadm info --export-db".
//
// Records are separated by blank lines. Each line is "<type>: <value>":
//   - P: devpath (required, once per record)
//   - N: device node relative to /dev
//   - S: device link relative to /dev (repeatable)
//   - E: KEY=VALUE property (repeatable)
//   - M: sys name
//   - U: subsystem
//
// Other upper-case types (L:, I:, Q:, V:, R:, T:, D:, J: and so on) carry
// bookkeeping udev keeps for itself and are skipped.
//
// Returns:
//   - []Device: Records in input order
//   - error: ErrInvalidExportDB naming the offending line, or a read error
func ReadExportDB(r io.Reader) ([]Device, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var (
		devices []Device
		rec     *recordBuilder
		lineNo  int
	)

	finish := func() error {
		if rec == nil {
			return nil
		}
		d, err := rec.device()
		if err != nil {
			return err
		}
		devices = append(devices, d)
		rec = nil
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			if err := finish(); err != nil {
				return nil, err
			}
			continue
		}

		if rec == nil {
			rec = &recordBuilder{startLine: lineNo, properties: make(map[string]string)}
		}
		if err := rec.add(lineNo, line); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, invalidLine(lineNo+1, "line longer than %d bytes", maxLineLength)
		}
		return nil, fmt.Errorf("reading export-db: %w", err)
	}

	if err := finish(); err != nil {
		return nil, err
	}
	return devices, nil
}

// recordBuilder accumulates the lines of one record.
type recordBuilder struct {
	startLine  int
	devPath    string
	sysName    string
	subsystem  string
	devNode    string
	links      []string
	properties map[string]string
}

func (b *recordBuilder) add(lineNo int, line string) error {
	if len(line) < 2 || line[1] != ':' || (len(line) > 2 && line[2] != ' ') {
		return invalidLine(lineNo, "expected \"<type>: <value>\"")
	}
	tag := line[0]
	var value string
	if len(line) > 3 {
		value = line[3:]
	}

	switch tag {
	case 'P':
		if b.devPath != "" {
			return invalidLine(lineNo, "second P: line in record starting at line %d", b.startLine)
		}
		if !strings.HasPrefix(value, "/") {
			return invalidLine(lineNo, "devpath %q is not absolute", value)
		}
		b.devPath = value
	case 'N':
		if value == "" {
			return invalidLine(lineNo, "empty device node")
		}
		b.devNode = path.Join(DevRoot, value)
	case 'S':
		if value == "" {
			return invalidLine(lineNo, "empty device link")
		}
		b.links = append(b.links, path.Join(DevRoot, value))
	case 'E':
		key, val, ok := strings.Cut(value, "=")
		if !ok || key == "" {
			return invalidLine(lineNo, "expected KEY=VALUE property")
		}
		b.properties[key] = val
	case 'M':
		b.sysName = value
	case 'U':
		b.subsystem = value
	default:
		if tag < 'A' || tag > 'Z' {
			return invalidLine(lineNo, "unknown line type %q", string(tag))
		}
	}
	return nil
}

func (b *recordBuilder) device() (Device, error) {
	if b.devPath == "" {
		return Device{}, invalidLine(b.startLine, "record has no P: line")
	}

	d := Device{
		DevPath:    b.devPath,
		SysName:    b.sysName,
		Subsystem:  b.properties[PropertySubsystem],
		DevNode:    b.devNode,
		Links:      b.links,
		Properties: b.properties,
	}
	if d.SysName == "" {
		d.SysName = path.Base(b.devPath)
	}
	if d.Subsystem == "" {
		d.Subsystem = b.subsystem
	}
	if d.DevNode == "" {
		d.DevNode = b.properties[PropertyDevName]
	}
	if len(d.Links) == 0 {
		d.Links = strings.Fields(b.properties[PropertyDevLinks])
	}
	return d, nil
}

func invalidLine(lineNo int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidExportDB, lineNo, fmt.Sprintf(format, args...))
}
