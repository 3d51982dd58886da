package reconcile

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/campuscms/formpath"
	"github.com/eringen/campuscms/homecontent"
)

// RemoveField is the item field that drops an item row from the merge.
const RemoveField = "_remove"

// Uploads maps a section name to the storage paths of the files adopted for
// its slots in this submission.
type Uploads map[string]map[SlotKey]string

// MergeOptions carries the inputs Merge needs from outside the submission.
type MergeOptions struct {
	// Now stamps defaulted dates.
	Now time.Time
	// NewName returns a fresh asset reference inside folder with extension
	// ext. It must not return a path already in use.
	NewName func(folder, ext string) string
	// Verified holds carried-forward paths, unknown to the section, that the
	// blob store confirmed to exist.
	Verified map[string]bool
	// CanCopy tells whether the blob store can duplicate files.
	CanCopy bool
}

// SlotAction is the outcome for one asset slot.
type SlotAction int

const (
	// ActionAdopt stores a newly uploaded file in the slot.
	ActionAdopt SlotAction = iota + 1
	// ActionKeep keeps the carried-forward path.
	ActionKeep
	// ActionClear empties the slot.
	ActionClear
	// ActionCopy gives the slot its own copy of a file another slot holds.
	ActionCopy
	// ActionSanitize replaces a path containing grammar delimiters with a
	// fresh name.
	ActionSanitize
)

func (a SlotAction) String() string {
	switch a {
	case ActionAdopt:
		return "adopt"
	case ActionKeep:
		return "keep"
	case ActionClear:
		return "clear"
	case ActionCopy:
		return "copy"
	case ActionSanitize:
		return "sanitize"
	}
	return "unknown"
}

// SlotDecision records what happened to one slot during a merge.
type SlotDecision struct {
	Section  string
	Index    int
	Slot     string
	Action   SlotAction
	Path     string
	Previous string
	// Carried is the submitted carry-forward value, if any.
	Carried string
}

// Move is a file copy the engine must perform before saving.
type Move struct {
	From string
	To   string
}

// Plan lists the blob operations implied by a merge.
type Plan struct {
	Decisions []SlotDecision
	Copies    []Move
	// Deletes are files referenced before the merge and by no slot after it.
	Deletes []string
}

// Merge returns the aggregate that results from applying n to existing,
// together with the blob operations it requires. existing is not modified.
// Sections absent from n, and top-level scalars absent from n.Scalars, are
// carried over unchanged.
func Merge(existing homecontent.Aggregate, n Normalized, uploads Uploads, opts MergeOptions) (homecontent.Aggregate, Plan) {
	if opts.NewName == nil {
		opts.NewName = NewAssetName
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	out := existing.Clone()
	if out.Sections == nil {
		out.Sections = make(map[string]homecontent.Section)
	}
	for name, v := range n.Scalars {
		out.SetScalar(name, v)
	}

	m := &merger{opts: opts, claimed: make(map[string]bool)}
	for _, spec := range homecontent.Schema {
		if _, ok := n.Sections[spec.Name]; ok {
			continue
		}
		for _, ref := range existing.SectionAssets(spec.Name) {
			m.claimed[ref.Path] = true
		}
	}
	for _, spec := range homecontent.Schema {
		sub, ok := n.Sections[spec.Name]
		if !ok {
			continue
		}
		out.Sections[spec.Name] = m.mergeSection(existing, sub, uploads[spec.Name])
	}

	m.plan.Deletes = orphans(existing, out)
	return out, m.plan
}

// MergeSection merges one submitted section into the aggregate's current
// value of it and returns the new section with its plan.
func MergeSection(existing homecontent.Aggregate, sub *SubmittedSection, uploads map[SlotKey]string, opts MergeOptions) (homecontent.Section, Plan) {
	n := Normalized{Sections: map[string]*SubmittedSection{sub.Spec.Name: sub}}
	out, plan := Merge(existing, n, Uploads{sub.Spec.Name: uploads}, opts)
	return out.Sections[sub.Spec.Name], plan
}

type merger struct {
	opts    MergeOptions
	claimed map[string]bool
	plan    Plan
}

func (m *merger) mergeSection(existing homecontent.Aggregate, sub *SubmittedSection, ups map[SlotKey]string) homecontent.Section {
	spec := sub.Spec
	old := existing.Sections[spec.Name]
	known := make(map[string]bool)
	for _, ref := range existing.SectionAssets(spec.Name) {
		known[ref.Path] = true
	}

	s := homecontent.Section{Fields: make(map[string]string, len(spec.Fields))}
	for _, f := range spec.Fields {
		s.Fields[f.Name] = m.fieldValue(f, sub.Fields[f.Name], 1)
	}
	if spec.Kind == homecontent.List && spec.ListKey == "" {
		s.Active = old.Active
	} else {
		s.Active = isActive(sub.Fields)
	}

	if spec.Kind == homecontent.Flat {
		s.Assets = make(map[string]string, len(spec.Slots))
		for _, slot := range spec.Slots {
			key := SlotKey{Index: formpath.NoIndex, Slot: slot.Name}
			s.Assets[slot.Name] = m.resolveSlot(spec, slot, key, sub.Fields, ups, known, old.Assets[slot.Name])
		}
		return s
	}

	s.Items = make([]homecontent.Item, 0, len(sub.Items))
	for i, rec := range sub.Items {
		if isRemoved(rec) {
			continue
		}
		pos := len(s.Items)
		it := homecontent.Item{
			Fields: make(map[string]string, len(spec.ItemFields)),
			Order:  pos,
			Active: isActive(rec),
		}
		if o, ok := explicitOrder(rec); ok {
			it.Order = o
		}
		for _, f := range spec.ItemFields {
			it.Fields[f.Name] = m.fieldValue(f, rec[f.Name], pos+1)
		}
		if len(spec.Slots) > 0 {
			it.Assets = make(map[string]string, len(spec.Slots))
			for _, slot := range spec.Slots {
				prev := ""
				if i < len(old.Items) {
					prev = old.Items[i].Assets[slot.Name]
				}
				key := SlotKey{Index: i, Slot: slot.Name}
				it.Assets[slot.Name] = m.resolveSlot(spec, slot, key, rec, ups, known, prev)
			}
		}
		s.Items = append(s.Items, it)
	}
	sort.SliceStable(s.Items, func(a, b int) bool { return s.Items[a].Order < s.Items[b].Order })
	return s
}

// resolveSlot decides the final path of one slot: a new upload wins, then a
// carried-forward path the section already owned (or that storage confirms),
// otherwise the slot is cleared.
func (m *merger) resolveSlot(spec homecontent.SectionSpec, slot homecontent.SlotSpec, key SlotKey, rec Record, ups map[SlotKey]string, known map[string]bool, prev string) string {
	d := SlotDecision{Section: spec.Name, Index: key.Index, Slot: slot.Name, Previous: prev}
	defer func() { m.plan.Decisions = append(m.plan.Decisions, d) }()

	if p, ok := ups[key]; ok {
		m.claimed[p] = true
		d.Action, d.Path = ActionAdopt, p
		return p
	}

	for _, name := range slot.Carry {
		if v := strings.TrimSpace(rec[name]); v != "" {
			d.Carried = v
			break
		}
	}
	carried := d.Carried
	if carried == "" {
		d.Action = ActionClear
		return ""
	}

	if formpath.HasDelimiters(carried) {
		fresh := m.opts.NewName(slot.Folder, safeExt(carried))
		if m.opts.CanCopy && (known[carried] || m.opts.Verified[carried]) {
			m.plan.Copies = append(m.plan.Copies, Move{From: carried, To: fresh})
		}
		m.claimed[fresh] = true
		d.Action, d.Path = ActionSanitize, fresh
		return fresh
	}

	if !known[carried] && !(m.opts.Verified[carried] && ValidReference(carried)) {
		d.Action = ActionClear
		return ""
	}

	if m.claimed[carried] {
		if !m.opts.CanCopy {
			d.Action = ActionClear
			return ""
		}
		fresh := m.opts.NewName(slot.Folder, safeExt(carried))
		m.plan.Copies = append(m.plan.Copies, Move{From: carried, To: fresh})
		m.claimed[fresh] = true
		d.Action, d.Path = ActionCopy, fresh
		return fresh
	}

	m.claimed[carried] = true
	d.Action, d.Path = ActionKeep, carried
	return carried
}

func (m *merger) fieldValue(f homecontent.FieldSpec, v string, pos int) string {
	v = strings.TrimSpace(v)
	if len(f.Choices) > 0 && !contains(f.Choices, v) {
		v = ""
	}
	if v != "" {
		return v
	}
	switch {
	case f.Today:
		return m.opts.Now.Format("2006-01-02")
	case strings.Contains(f.Default, "%d"):
		return fmt.Sprintf(f.Default, pos)
	}
	return f.Default
}

// orphans returns the paths referenced by before and by nothing in after.
func orphans(before, after homecontent.Aggregate) []string {
	live := make(map[string]bool)
	for _, ref := range after.Assets() {
		live[ref.Path] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, ref := range before.Assets() {
		if live[ref.Path] || seen[ref.Path] {
			continue
		}
		seen[ref.Path] = true
		out = append(out, ref.Path)
	}
	return out
}

// CarriedPaths lists carry-forward values in n that the current aggregate
// does not already reference in the same section. The engine asks the blob
// store about these before merging.
func CarriedPaths(existing homecontent.Aggregate, n Normalized) []string {
	var out []string
	seen := make(map[string]bool)
	for _, spec := range homecontent.Schema {
		sub, ok := n.Sections[spec.Name]
		if !ok || len(spec.Slots) == 0 {
			continue
		}
		known := make(map[string]bool)
		for _, ref := range existing.SectionAssets(spec.Name) {
			known[ref.Path] = true
		}
		recs := sub.Items
		if spec.Kind == homecontent.Flat {
			recs = []Record{sub.Fields}
		}
		for _, rec := range recs {
			if isRemoved(rec) {
				continue
			}
			for _, slot := range spec.Slots {
				for _, name := range slot.Carry {
					v := strings.TrimSpace(rec[name])
					if v == "" {
						continue
					}
					if !known[v] && !seen[v] {
						seen[v] = true
						out = append(out, v)
					}
					break
				}
			}
		}
	}
	return out
}

// ValidReference reports whether p is a clean asset reference under
// homecontent.AssetRoot.
func ValidReference(p string) bool {
	return strings.HasPrefix(p, homecontent.AssetRoot) &&
		path.Clean(p) == p &&
		!formpath.HasDelimiters(p)
}

// StoredReference reports whether p points inside homecontent.AssetRoot.
// Unlike ValidReference it admits legacy names containing form delimiters,
// so stores can read and delete files written before names were sanitized.
// New files must always be stored under a ValidReference.
func StoredReference(p string) bool {
	return strings.HasPrefix(p, homecontent.AssetRoot) &&
		path.Clean(p) == p &&
		!strings.ContainsAny(p, "\\\x00")
}

func safeExt(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > 6 || formpath.HasDelimiters(ext) {
		return ".jpg"
	}
	return ext
}

func isActive(r Record) bool {
	v, ok := r["isActive"]
	if !ok {
		v = r["active"]
	}
	return truthy(v)
}

// isRemoved reports whether an item row was marked for removal. The editor
// form posts "_remove" for rows it wants dropped, including its blank
// new-item row unless the editor opts in.
func isRemoved(r Record) bool {
	return truthy(r[RemoveField])
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

func explicitOrder(r Record) (int, bool) {
	v := strings.TrimSpace(r["order"])
	if v == "" {
		return 0, false
	}
	o, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return o, true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
