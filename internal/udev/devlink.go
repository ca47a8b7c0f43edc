package udev

import "strings"

// linkCategoryPrefix marks a directory of categorised links, e.g. "by-id".
const linkCategoryPrefix = "by-"

// Link is a device link path, optionally categorised by the "by-<category>"
// directory that contains it.
//
// Examples:
//
//	/dev/disk/by-id/wwn-0x5000c500a1b2c3d4  category "id",   value "wwn-0x5000c500a1b2c3d4"
//	/dev/disk/by-path/pci-0000:00:1f.2-ata-1 category "path", value "pci-0000:00:1f.2-ata-1"
//	/dev/cdrom                               uncategorised
//
// A Link is comparable; two Links are equal exactly when their paths are.
type Link struct {
	path string

	// category and value are both empty or both set.
	category string
	value    string
}

// NewLink classifies a device link path.
func NewLink(path string) Link {
	l := Link{path: path}

	slash := strings.LastIndexByte(path, '/')
	if slash < 0 {
		return l
	}
	leaf := path[slash+1:]
	parent := path[:slash]
	if i := strings.LastIndexByte(parent, '/'); i >= 0 {
		parent = parent[i+1:]
	}

	category, ok := strings.CutPrefix(parent, linkCategoryPrefix)
	if !ok || category == "" || leaf == "" {
		return l
	}

	l.category = category
	l.value = leaf
	return l
}

// LinkOf classifies any value that exposes a link path, such as another Link
// or a link reported by a device enumeration layer.
func LinkOf(v interface{ Path() string }) Link {
	return NewLink(v.Path())
}

// Path returns the link path exactly as given.
func (l Link) Path() string {
	return l.path
}

// String returns the link path.
func (l Link) String() string {
	return l.path
}

// Category returns the text after "by-" in the parent directory name.
func (l Link) Category() (string, bool) {
	return l.category, l.category != ""
}

// Value returns the link name within its category directory.
func (l Link) Value() (string, bool) {
	return l.value, l.category != ""
}

// Categorised reports whether the link lives in a "by-<category>" directory.
func (l Link) Categorised() bool {
	return l.category != ""
}

// Equal reports whether both links have the same path.
func (l Link) Equal(other Link) bool {
	return l.path == other.path
}
