package udev

import (
	"fmt"
	"strings"
)

// Segment is one matched run of a composite identifier.
type Segment struct {
	// Prefix is the prefix of the Grammar that matched.
	Prefix string `json:"prefix"`

	// Fields holds the named fields, always including FieldTotal.
	Fields Fields `json:"fields"`
}

// Total returns the exact substring the segment consumed.
func (s Segment) Total() string {
	return s.Fields[FieldTotal]
}

// Path is the result of parsing a composite identifier: its segments in the
// order they appear in the input.
type Path []Segment

// Join rebuilds the identifier from its segments using sep.
func (p Path) Join(sep string) string {
	totals := make([]string, len(p))
	for i, seg := range p {
		totals[i] = seg.Total()
	}
	return strings.Join(totals, sep)
}

// String rebuilds an identifier path joined by "-".
func (p Path) String() string {
	return p.Join(string(IDPathSeparator))
}

// Prefixes returns the grammar prefix of every segment, in order.
func (p Path) Prefixes() []string {
	prefixes := make([]string, len(p))
	for i, seg := range p {
		prefixes[i] = seg.Prefix
	}
	return prefixes
}

// CompositeParser parses one family of composite identifiers.
//
// Grammars are tried in registration order at every position; the first
// Grammar whose match lets the rest of the input parse wins. The registry is
// never modified after construction, so a CompositeParser may be shared.
type CompositeParser struct {
	family   string
	sep      byte
	grammars []Grammar
}

// NewCompositeParser creates a parser for a family of identifiers.
//
// Registration order is precedence. A Grammar whose prefix extends the prefix
// of an earlier Grammar would never be reached for inputs the earlier one
// accepts first, so such orderings are rejected together with duplicates.
//
// Parameters:
//   - family: Name used in errors (e.g. "ID_PATH")
//   - sep: Separator between segments
//   - grammars: Segment grammars in precedence order
//
// Returns:
//   - *CompositeParser: Parser ready for concurrent use
//   - error: If no grammars are given, or the order shadows a grammar
func NewCompositeParser(family string, sep byte, grammars ...Grammar) (*CompositeParser, error) {
	if len(grammars) == 0 {
		return nil, fmt.Errorf("%s: at least one grammar is required", family)
	}

	for j, g := range grammars {
		if g.re == nil {
			return nil, fmt.Errorf("%s: grammar %d was not built with NewGrammar", family, j)
		}
		if g.Prefix[0] == sep {
			return nil, fmt.Errorf("%s: grammar %q starts with the separator", family, g.Prefix)
		}
		for _, earlier := range grammars[:j] {
			if g.Prefix == earlier.Prefix {
				return nil, fmt.Errorf("%s: duplicate grammar prefix %q", family, g.Prefix)
			}
			if strings.HasPrefix(g.Prefix, earlier.Prefix) {
				return nil, fmt.Errorf("%s: grammar %q must be registered before %q", family, g.Prefix, earlier.Prefix)
			}
		}
	}

	return &CompositeParser{
		family:   family,
		sep:      sep,
		grammars: append([]Grammar(nil), grammars...),
	}, nil
}

// MustCompositeParser is like NewCompositeParser but panics on error.
func MustCompositeParser(family string, sep byte, grammars ...Grammar) *CompositeParser {
	p, err := NewCompositeParser(family, sep, grammars...)
	if err != nil {
		panic(err)
	}
	return p
}

// Grammars returns a copy of the registry in precedence order.
func (p *CompositeParser) Grammars() []Grammar {
	return append([]Grammar(nil), p.grammars...)
}

// Parse splits input into segments.
//
// Returns:
//   - Path: Segments whose totals, joined by the separator, equal input
//   - error: *ParseError if no sequence of grammars accounts for all of input
func (p *CompositeParser) Parse(input string) (Path, error) {
	if input == "" {
		return nil, parseError(p.family, input, 0, "empty value")
	}

	sc := &scan{
		parser: p,
		input:  input,
		dead:   make(map[int]struct{}),
	}
	path, ok := sc.from(0)
	if !ok {
		return nil, parseError(p.family, input, sc.furthest, "no grammar matches %q", sc.remainder())
	}
	return path, nil
}

// scan holds the state of a single Parse call.
type scan struct {
	parser *CompositeParser
	input  string

	// dead records positions from which the rest of the input is known not
	// to parse, so each position is explored at most once.
	dead map[int]struct{}

	// furthest is the largest position any segment started at.
	furthest int
}

// from parses input[pos:] completely or reports false.
func (sc *scan) from(pos int) (Path, bool) {
	if _, ok := sc.dead[pos]; ok {
		return nil, false
	}
	if pos > sc.furthest {
		sc.furthest = pos
	}

	rest := sc.input[pos:]
	ends := sc.segmentEnds(pos)

	for _, g := range sc.parser.grammars {
		if !strings.HasPrefix(rest, g.Prefix) {
			continue
		}
		for _, end := range ends {
			candidate := sc.input[pos:end]
			if sc.hasEmptyElement(candidate) {
				continue
			}
			fields, ok := g.Match(candidate)
			if !ok {
				continue
			}
			seg := Segment{Prefix: g.Prefix, Fields: fields}
			if end == len(sc.input) {
				return Path{seg}, true
			}
			if tail, ok := sc.from(end + 1); ok {
				return append(Path{seg}, tail...), true
			}
		}
	}

	sc.dead[pos] = struct{}{}
	return nil, false
}

// segmentEnds lists the candidate end offsets for a segment starting at pos,
// shortest first: every separator after pos, then the end of input.
func (sc *scan) segmentEnds(pos int) []int {
	var ends []int
	for i := pos + 1; i < len(sc.input); i++ {
		if sc.input[i] == sc.parser.sep {
			ends = append(ends, i)
		}
	}
	if pos < len(sc.input) {
		ends = append(ends, len(sc.input))
	}
	return ends
}

// hasEmptyElement reports whether segment ends with the separator or holds
// two adjacent separators. No grammar may consume such a segment.
func (sc *scan) hasEmptyElement(segment string) bool {
	sep := sc.parser.sep
	if segment[len(segment)-1] == sep {
		return true
	}
	return strings.Contains(segment, string([]byte{sep, sep}))
}

func (sc *scan) remainder() string {
	return sc.input[sc.furthest:]
}
