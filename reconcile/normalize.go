package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/eringen/campuscms/formpath"
	"github.com/eringen/campuscms/homecontent"
)

// Encoding records which wire format a section was read from.
type Encoding int

const (
	// EncodingStructured is the canonical format: one field per section
	// holding JSON.
	EncodingStructured Encoding = iota + 1
	// EncodingFlat is the compatibility shim for legacy multipart forms
	// that post one bracket key per value.
	EncodingFlat
)

func (e Encoding) String() string {
	switch e {
	case EncodingStructured:
		return "structured"
	case EncodingFlat:
		return "flat"
	}
	return "none"
}

// Record is one flat map of field name to value. Nested fields use
// "nested.field" keys.
type Record map[string]string

// SubmittedSection is the normalized value of one section present in a
// submission.
type SubmittedSection struct {
	Spec   homecontent.SectionSpec
	Fields Record
	// Items is the submitted item list of a list section. An empty list is
	// a real value: it clears the section.
	Items []Record
	// FieldsEncoding and ItemsEncoding tell where Fields and Items came from.
	FieldsEncoding Encoding
	ItemsEncoding  Encoding
	// Dropped lists flat-key item indices ignored because an earlier index
	// was missing.
	Dropped []int
}

// Normalized is a submission reduced to typed sections. Sections missing
// from the map were not submitted and stay untouched.
type Normalized struct {
	Scalars  map[string]string
	Sections map[string]*SubmittedSection
}

// Normalize converts raw form values into a Normalized tree. It never fails:
// undecodable JSON falls back to the bracket keys and unknown keys are
// ignored.
func Normalize(values map[string][]string, log *zap.Logger) Normalized {
	if log == nil {
		log = zap.NewNop()
	}
	n := Normalized{
		Scalars:  make(map[string]string),
		Sections: make(map[string]*SubmittedSection),
	}
	sub := Submission{Values: values}

	present := make(map[string]bool)
	for key := range values {
		name := formpath.Section(key)
		if homecontent.IsScalar(name) && name == key {
			n.Scalars[key], _ = sub.Value(key)
			continue
		}
		if _, ok := homecontent.Lookup(name); ok {
			present[name] = true
		}
	}

	for _, spec := range homecontent.Schema {
		if !present[spec.Name] {
			continue
		}
		n.Sections[spec.Name] = normalizeSection(spec, sub, log)
	}
	return n
}

func normalizeSection(spec homecontent.SectionSpec, sub Submission, log *zap.Logger) *SubmittedSection {
	s := &SubmittedSection{Spec: spec}
	log = log.With(zap.String("section", spec.Name))

	if raw, ok := structuredValue(sub, spec.Name); ok {
		if err := s.decodeStructured(raw); err != nil {
			log.Debug("structured section field not decodable, using bracket keys", zap.Error(err))
		}
	}
	if spec.Kind == homecontent.List && spec.ListKey != "" {
		key := formpath.Field(spec.Name, spec.ListKey)
		if raw, ok := structuredValue(sub, key); ok {
			items, err := decodeItems(raw)
			if err != nil {
				log.Debug("structured item list not decodable, using bracket keys", zap.String("key", key), zap.Error(err))
			} else {
				s.Items = items
				s.ItemsEncoding = EncodingStructured
			}
		}
	}

	if s.FieldsEncoding == 0 {
		s.Fields = scanFields(spec, sub)
		s.FieldsEncoding = EncodingFlat
	}
	if spec.Kind == homecontent.List && s.ItemsEncoding == 0 {
		s.Items, s.Dropped = scanItems(spec, sub)
		s.ItemsEncoding = EncodingFlat
		if len(s.Dropped) > 0 {
			log.Warn("item indices after a gap were dropped", zap.Ints("indices", s.Dropped), zap.Int("kept", len(s.Items)))
		}
	}
	return s
}

// decodeStructured reads the value of the bare section key: a JSON object
// for flat and wrapped list sections, a JSON array for root lists.
func (s *SubmittedSection) decodeStructured(raw string) error {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case []any:
		if s.Spec.Kind != homecontent.List || s.Spec.ListKey != "" {
			return fmt.Errorf("unexpected JSON array for %s section", s.Spec.Kind)
		}
		items, err := recordsFrom(t)
		if err != nil {
			return err
		}
		s.Items = items
		s.ItemsEncoding = EncodingStructured
		return nil
	case map[string]any:
		fields := make(Record)
		for k, fv := range t {
			if s.Spec.Kind == homecontent.List && k == s.Spec.ListKey {
				continue
			}
			flattenInto(fields, k, fv)
		}
		if s.Spec.Kind == homecontent.List && s.Spec.ListKey != "" {
			if list, ok := t[s.Spec.ListKey]; ok {
				arr, ok := list.([]any)
				if !ok {
					return fmt.Errorf("%s is not a JSON array", s.Spec.ListKey)
				}
				items, err := recordsFrom(arr)
				if err != nil {
					return err
				}
				s.Items = items
				s.ItemsEncoding = EncodingStructured
			}
		}
		s.Fields = fields
		s.FieldsEncoding = EncodingStructured
		return nil
	}
	return fmt.Errorf("unexpected JSON %T", v)
}

// structuredValue looks up a structured field, accepting the "key[]" array
// spelling some form libraries use.
func structuredValue(sub Submission, key string) (string, bool) {
	for _, k := range []string{key, key + "[]"} {
		if raw, ok := sub.Value(k); ok && raw != "" {
			return raw, true
		}
	}
	return "", false
}

func decodeItems(raw string) ([]Record, error) {
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil, err
	}
	return recordsFrom(arr)
}

func recordsFrom(arr []any) ([]Record, error) {
	items := make([]Record, 0, len(arr))
	for i, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, not an object", i, el)
		}
		r := make(Record, len(obj))
		for k, v := range obj {
			flattenInto(r, k, v)
		}
		items = append(items, r)
	}
	return items, nil
}

// flattenInto stores a JSON value under key. One level of nested objects
// becomes "nested.field"; arrays are kept as their JSON text.
func flattenInto(r Record, key string, v any) {
	switch t := v.(type) {
	case nil:
		r[key] = ""
	case string:
		r[key] = t
	case bool:
		r[key] = strconv.FormatBool(t)
	case float64:
		r[key] = strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		for k, nv := range t {
			if _, nested := nv.(map[string]any); nested {
				continue
			}
			flattenInto(r, key+"."+k, nv)
		}
	default:
		b, _ := json.Marshal(t)
		r[key] = string(b)
	}
}

func scanFields(spec homecontent.SectionSpec, sub Submission) Record {
	fields := make(Record)
	for key := range sub.Values {
		if formpath.Section(key) != spec.Name {
			continue
		}
		p, err := formpath.Parse(key)
		if err != nil || p.IsItem() || p.Field == "" {
			continue
		}
		if spec.Kind == homecontent.List && p.Nested == "" && p.Field == spec.ListKey {
			continue
		}
		fields[p.FieldKey()], _ = sub.Value(key)
	}
	return fields
}

// scanItems rebuilds the item list from bracket keys. It walks indices from
// 0 and stops at the first index with no keys at all, so items posted after
// a gap are dropped. The dropped indices are returned for logging.
func scanItems(spec homecontent.SectionSpec, sub Submission) ([]Record, []int) {
	byIndex := make(map[int]Record)
	for key := range sub.Values {
		if formpath.Section(key) != spec.Name {
			continue
		}
		p, err := formpath.Parse(key)
		if err != nil || !p.IsItem() || p.List != spec.ListKey {
			continue
		}
		r, ok := byIndex[p.Index]
		if !ok {
			r = make(Record)
			byIndex[p.Index] = r
		}
		r[p.FieldKey()], _ = sub.Value(key)
	}

	items := []Record{}
	for i := 0; ; i++ {
		r, ok := byIndex[i]
		if !ok {
			break
		}
		items = append(items, r)
		delete(byIndex, i)
	}

	var dropped []int
	for i := range byIndex {
		dropped = append(dropped, i)
	}
	sort.Ints(dropped)
	return items, dropped
}
