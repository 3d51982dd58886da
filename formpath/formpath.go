// Package formpath parses the bracket-addressed keys used by the home page
// editor form, such as "infrastructure[items][2][image]".
//
// The same grammar addresses form values and uploaded file parts, so the
// normalizer and the asset matcher never disagree about where a value lives.
package formpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NoIndex marks a path that does not address a list item.
const NoIndex = -1

// maxIndexDigits bounds list indices; longer digit runs are not indices.
const maxIndexDigits = 4

// ErrSyntax is returned for keys that do not follow the grammar.
var ErrSyntax = errors.New("formpath: invalid key")

// Path is a parsed form key.
//
//	section                               Field == ""
//	section[field]
//	section[nested][field]
//	section[index][field]                 root list item
//	section[list][index][field]
//	section[list][index][nested][field]
type Path struct {
	Section string
	List    string
	Index   int
	Nested  string
	Field   string
}

// IsItem reports whether the path addresses a field of a list item.
func (p Path) IsItem() bool {
	return p.Index != NoIndex
}

// FieldKey returns the record key for the path: "nested.field" for nested
// fields, the bare field otherwise.
func (p Path) FieldKey() string {
	if p.Nested != "" {
		return p.Nested + "." + p.Field
	}
	return p.Field
}

// String formats the path back into its key form.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString(p.Section)
	seg := func(s string) {
		b.WriteByte('[')
		b.WriteString(s)
		b.WriteByte(']')
	}
	if p.List != "" {
		seg(p.List)
	}
	if p.IsItem() {
		seg(strconv.Itoa(p.Index))
	}
	if p.Nested != "" {
		seg(p.Nested)
	}
	if p.Field != "" {
		seg(p.Field)
	}
	return b.String()
}

// Parse splits key into its section and bracket segments and classifies them.
func Parse(key string) (Path, error) {
	key = strings.TrimSuffix(key, "[]")
	open := strings.IndexByte(key, '[')
	section := key
	rest := ""
	if open >= 0 {
		section, rest = key[:open], key[open:]
	}
	if section == "" || strings.ContainsAny(section, "]") {
		return Path{}, fmt.Errorf("%w: %q", ErrSyntax, key)
	}
	segs, err := splitSegments(rest)
	if err != nil {
		return Path{}, fmt.Errorf("%w: %q", ErrSyntax, key)
	}

	p := Path{Section: section, Index: NoIndex}
	switch {
	case len(segs) == 0:
		return p, nil
	case len(segs) == 1:
		if allDigits(segs[0]) {
			return Path{}, fmt.Errorf("%w: %q: index without field", ErrSyntax, key)
		}
		p.Field = segs[0]
		return p, nil
	case isIndex(segs[0]):
		p.Index, _ = strconv.Atoi(segs[0])
		segs = segs[1:]
	case len(segs) >= 3 && isIndex(segs[1]):
		p.List = segs[0]
		p.Index, _ = strconv.Atoi(segs[1])
		segs = segs[2:]
	}

	switch len(segs) {
	case 1:
		p.Field = segs[0]
	case 2:
		p.Nested, p.Field = segs[0], segs[1]
	default:
		return Path{}, fmt.Errorf("%w: %q: too many segments", ErrSyntax, key)
	}
	if allDigits(p.Field) || allDigits(p.Nested) {
		return Path{}, fmt.Errorf("%w: %q: unexpected index", ErrSyntax, key)
	}
	return p, nil
}

// Section returns the section name of key without validating the rest.
func Section(key string) string {
	if i := strings.IndexByte(key, '['); i >= 0 {
		return key[:i]
	}
	return key
}

// Item builds the key of a field on a list item.
func Item(section, list string, index int, field string) string {
	return Path{Section: section, List: list, Index: index, Field: field}.String()
}

// Field builds the key of a flat section field.
func Field(section, field string) string {
	return Path{Section: section, Index: NoIndex, Field: field}.String()
}

// HasDelimiters reports whether s contains the grammar's bracket delimiters.
func HasDelimiters(s string) bool {
	return strings.ContainsAny(s, "[]")
}

func splitSegments(s string) ([]string, error) {
	var segs []string
	for s != "" {
		if s[0] != '[' {
			return nil, ErrSyntax
		}
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, ErrSyntax
		}
		seg := s[1:end]
		if seg == "" || strings.ContainsAny(seg, "[") {
			return nil, ErrSyntax
		}
		segs = append(segs, seg)
		s = s[end+1:]
	}
	return segs, nil
}

func isIndex(s string) bool {
	return len(s) <= maxIndexDigits && allDigits(s)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
