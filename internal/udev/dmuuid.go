package udev

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Mapper UUID field names.
const (
	FieldComponent = "component"
	FieldSubtype   = "subtype"
	FieldUUID      = "uuid"
	FieldName      = "name"
	FieldPartition = "partition"
)

// MapperUUIDKeys is the complete set of fields a mapper UUID can produce.
// A single value never has more than four of them.
var MapperUUIDKeys = []string{FieldComponent, FieldSubtype, FieldUUID, FieldName, FieldPartition}

// Component is the type tag at the start of a DM_UUID value.
type Component string

// Recognised type tags.
const (
	ComponentLVM       Component = "LVM"
	ComponentCrypt     Component = "CRYPT"
	ComponentMultipath Component = "mpath"
	ComponentVDO       Component = "VDO"
	ComponentPartition Component = "part"
)

// AllComponents returns every recognised type tag.
func AllComponents() []Component {
	return []Component{
		ComponentLVM,
		ComponentCrypt,
		ComponentMultipath,
		ComponentVDO,
		ComponentPartition,
	}
}

const (
	// minTagLength is the length of the shortest type tag ("LVM", "VDO").
	minTagLength = 3

	// lvmUUIDLength is a volume group UUID followed by a logical volume UUID.
	lvmUUIDLength = 64
)

var (
	lvmUUIDRegex   = regexp.MustCompile(`^[A-Za-z0-9]{64}$`)
	cryptBodyRegex = regexp.MustCompile(`^([A-Z0-9_]+)-(?:([0-9a-fA-F]{32})-)?(.+)$`)
	partTagRegex   = regexp.MustCompile(`^part([0-9]+)$`)
)

// MapperUUID is a parsed device-mapper UUID.
//
// The partition number is only ever set for ComponentPartition values and is
// reached through Partition, so a value cannot carry a partition number
// without the matching type tag.
type MapperUUID struct {
	// Component is the type tag.
	Component Component

	// UUID identifies the mapped device. For partitions it is the DM_UUID of
	// the parent device (e.g. "mpath-3600508b400105e210000900000490000").
	// It is empty for CRYPT mappings without a uuid, such as PLAIN swap.
	UUID string

	// Subtype is the crypt format (e.g. "LUKS2"); CRYPT only.
	Subtype string

	// Name is the LVM layer suffix (e.g. "pool", "real") or the crypt
	// mapping name.
	Name string

	partition string
}

// Partition returns the partition number of a partition mapping.
func (m MapperUUID) Partition() (string, bool) {
	if m.Component != ComponentPartition || m.partition == "" {
		return "", false
	}
	return m.partition, true
}

// Fields returns the fields of the value, keyed by MapperUUIDKeys.
// Component and uuid are always present; the others only when set.
func (m MapperUUID) Fields() Fields {
	fields := Fields{
		FieldComponent: string(m.Component),
		FieldUUID:      m.UUID,
	}
	if m.Subtype != "" {
		fields[FieldSubtype] = m.Subtype
	}
	if m.Name != "" {
		fields[FieldName] = m.Name
	}
	if p, ok := m.Partition(); ok {
		fields[FieldPartition] = p
	}
	return fields
}

// MarshalJSON encodes the value as its field map.
func (m MapperUUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Fields())
}

// String rebuilds the DM_UUID value.
func (m MapperUUID) String() string {
	switch m.Component {
	case ComponentLVM:
		if m.Name != "" {
			return "LVM-" + m.UUID + "-" + m.Name
		}
		return "LVM-" + m.UUID
	case ComponentCrypt:
		if m.UUID == "" {
			return "CRYPT-" + m.Subtype + "-" + m.Name
		}
		return "CRYPT-" + m.Subtype + "-" + m.UUID + "-" + m.Name
	case ComponentPartition:
		return "part" + m.partition + "-" + m.UUID
	default:
		return string(m.Component) + "-" + m.UUID
	}
}

// UnmarshalJSON decodes a field map produced by MarshalJSON. The fields are
// validated by parsing the value they describe.
func (m *MapperUUID) UnmarshalJSON(data []byte) error {
	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	v := MapperUUID{
		Component: Component(fields[FieldComponent]),
		UUID:      fields[FieldUUID],
		Subtype:   fields[FieldSubtype],
		Name:      fields[FieldName],
		partition: fields[FieldPartition],
	}
	parsed, err := ParseMapperUUID(v.String())
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMapperUUID parses a DM_UUID value.
//
// Accepts formats:
//   - "LVM-<vg uuid><lv uuid>" and "LVM-<vg uuid><lv uuid>-<suffix>"
//   - "CRYPT-<subtype>-<uuid>-<name>" and "CRYPT-<subtype>-<name>"
//   - "mpath-<wwid>"
//   - "VDO-<uuid>"
//   - "part<N>-<parent DM_UUID>"
//
// Returns:
//   - MapperUUID: Parsed value
//   - error: *ParseError if the value is too short, the tag is not
//     recognised, or the body does not fit the tag
func ParseMapperUUID(s string) (MapperUUID, error) {
	if s == "" {
		return MapperUUID{}, parseError(FamilyMapperUUID, s, 0, "empty value")
	}
	if len(s) < minTagLength {
		return MapperUUID{}, parseError(FamilyMapperUUID, s, 0, "shorter than the shortest type tag")
	}

	sep := strings.IndexByte(s, '-')
	if sep < 0 {
		return MapperUUID{}, parseError(FamilyMapperUUID, s, 0, "missing type tag")
	}
	tag, body := s[:sep], s[sep+1:]
	offset := sep + 1

	if m := partTagRegex.FindStringSubmatch(tag); m != nil {
		return parsePartitionUUID(s, m[1], body, offset)
	}

	switch Component(tag) {
	case ComponentLVM:
		return parseLVMUUID(s, body, offset)
	case ComponentCrypt:
		return parseCryptUUID(s, body, offset)
	case ComponentMultipath:
		if body == "" {
			return MapperUUID{}, parseError(FamilyMapperUUID, s, offset, "missing multipath wwid")
		}
		return MapperUUID{Component: ComponentMultipath, UUID: body}, nil
	case ComponentVDO:
		if _, err := uuid.Parse(body); err != nil || len(body) != 36 {
			return MapperUUID{}, parseError(FamilyMapperUUID, s, offset, "VDO uuid is not an RFC 4122 uuid")
		}
		return MapperUUID{Component: ComponentVDO, UUID: body}, nil
	default:
		return MapperUUID{}, parseError(FamilyMapperUUID, s, 0, "unrecognised type tag %q", tag)
	}
}

func parseLVMUUID(s, body string, offset int) (MapperUUID, error) {
	if len(body) < lvmUUIDLength || !lvmUUIDRegex.MatchString(body[:lvmUUIDLength]) {
		return MapperUUID{}, parseError(FamilyMapperUUID, s, offset, "LVM uuid must be %d alphanumeric characters", lvmUUIDLength)
	}

	m := MapperUUID{Component: ComponentLVM, UUID: body[:lvmUUIDLength]}
	suffix := body[lvmUUIDLength:]
	if suffix == "" {
		return m, nil
	}
	if suffix[0] != '-' || len(suffix) == 1 {
		return MapperUUID{}, parseError(FamilyMapperUUID, s, offset+lvmUUIDLength, "LVM suffix must be \"-<name>\"")
	}
	m.Name = suffix[1:]
	return m, nil
}

func parseCryptUUID(s, body string, offset int) (MapperUUID, error) {
	m := cryptBodyRegex.FindStringSubmatch(body)
	if m == nil {
		return MapperUUID{}, parseError(FamilyMapperUUID, s, offset, "expected CRYPT-<subtype>-[<uuid>-]<name>")
	}
	return MapperUUID{
		Component: ComponentCrypt,
		Subtype:   m[1],
		UUID:      m[2],
		Name:      m[3],
	}, nil
}

func parsePartitionUUID(s, number, body string, offset int) (MapperUUID, error) {
	parent, err := ParseMapperUUID(body)
	var perr *ParseError
	if errors.As(err, &perr) {
		return MapperUUID{}, parseError(FamilyMapperUUID, s, offset+perr.Offset, "invalid parent: %s", perr.Reason)
	}
	if parent.Component == ComponentPartition {
		return MapperUUID{}, parseError(FamilyMapperUUID, s, offset, "partition of a partition")
	}
	return MapperUUID{
		Component: ComponentPartition,
		UUID:      body,
		partition: number,
	}, nil
}
