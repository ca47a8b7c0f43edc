package udev

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldTotal is the field holding the exact substring a Grammar consumed.
const FieldTotal = "total"

// Fields maps a field name to the text it captured.
type Fields map[string]string

// Grammar recognises one segment format of a composite identifier.
//
// The pattern must begin with the literal prefix and is matched against a
// whole candidate segment, never a part of one. Named groups become fields;
// optional groups that did not participate are left out.
type Grammar struct {
	Prefix string
	re     *regexp.Regexp
}

// NewGrammar compiles a Grammar.
//
// Parameters:
//   - prefix: Literal text every matching segment starts with (e.g. "sas-exp")
//   - pattern: RE2 pattern for the segment, starting with the prefix
//
// Returns:
//   - Grammar: Ready for use
//   - error: If the prefix is empty, the pattern does not start with it,
//     or the pattern does not compile
func NewGrammar(prefix, pattern string) (Grammar, error) {
	if prefix == "" {
		return Grammar{}, fmt.Errorf("grammar prefix cannot be empty")
	}
	if !strings.HasPrefix(pattern, regexp.QuoteMeta(prefix)) {
		return Grammar{}, fmt.Errorf("grammar %q: pattern %q does not start with its prefix", prefix, pattern)
	}

	re, err := regexp.Compile(`^(?P<` + FieldTotal + `>` + pattern + `)$`)
	if err != nil {
		return Grammar{}, fmt.Errorf("grammar %q: %w", prefix, err)
	}

	return Grammar{Prefix: prefix, re: re}, nil
}

// MustGrammar is like NewGrammar but panics on error.
// It is intended for package-level grammar tables.
func MustGrammar(prefix, pattern string) Grammar {
	g, err := NewGrammar(prefix, pattern)
	if err != nil {
		panic(err)
	}
	return g
}

// Match reports the fields of segment if the Grammar accepts all of it.
func (g Grammar) Match(segment string) (Fields, bool) {
	if g.re == nil || !strings.HasPrefix(segment, g.Prefix) {
		return nil, false
	}

	m := g.re.FindStringSubmatchIndex(segment)
	if m == nil {
		return nil, false
	}

	fields := make(Fields)
	for i, name := range g.re.SubexpNames() {
		if name == "" || m[2*i] < 0 {
			continue
		}
		fields[name] = segment[m[2*i]:m[2*i+1]]
	}
	return fields, true
}

// Keys returns the field names the Grammar can produce, including FieldTotal.
func (g Grammar) Keys() []string {
	if g.re == nil {
		return nil
	}
	var keys []string
	for _, name := range g.re.SubexpNames() {
		if name != "" {
			keys = append(keys, name)
		}
	}
	return keys
}
