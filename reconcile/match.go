package reconcile

import (
	"github.com/eringen/campuscms/formpath"
	"github.com/eringen/campuscms/homecontent"
)

// SlotKey addresses one asset slot inside a section. Index is
// formpath.NoIndex for a section-level slot.
type SlotKey struct {
	Index int
	Slot  string
}

// MatchAssets pairs attachments with the asset slots of one section by
// parsing their field tags. Attachments addressed elsewhere, or at a slot the
// section does not declare, are left for other sections or ignored. When two
// attachments address the same slot the later one in the submission wins.
func MatchAssets(spec homecontent.SectionSpec, attachments []Attachment) map[SlotKey]Attachment {
	out := make(map[SlotKey]Attachment)
	for _, att := range attachments {
		key, ok := slotFor(spec, att.Field)
		if !ok {
			continue
		}
		out[key] = att
	}
	return out
}

func slotFor(spec homecontent.SectionSpec, field string) (SlotKey, bool) {
	if formpath.Section(field) != spec.Name {
		return SlotKey{}, false
	}
	p, err := formpath.Parse(field)
	if err != nil || p.Nested != "" {
		return SlotKey{}, false
	}
	if _, ok := spec.Slot(p.Field); !ok {
		return SlotKey{}, false
	}
	switch spec.Kind {
	case homecontent.Flat:
		if p.IsItem() {
			return SlotKey{}, false
		}
	case homecontent.List:
		if !p.IsItem() || p.List != spec.ListKey {
			return SlotKey{}, false
		}
	}
	return SlotKey{Index: p.Index, Slot: p.Field}, true
}

// checkAttachments rejects matched files whose extension the slot does not
// accept. It runs before anything is written to the blob store.
func checkAttachments(spec homecontent.SectionSpec, matched map[SlotKey]Attachment) error {
	for key, att := range matched {
		slot, _ := spec.Slot(key.Slot)
		if !slot.Accepts(att.OriginalName) {
			return &UploadError{Field: att.Field, Reason: "file type not allowed for " + slot.Name}
		}
	}
	return nil
}

// dropUnused removes matches that no merged slot can reference: files
// addressed at items that were not submitted (or were dropped after an index
// gap) and files for rows marked for removal. It returns the removed keys.
func dropUnused(sub *SubmittedSection, matched map[SlotKey]Attachment) []Attachment {
	if sub.Spec.Kind != homecontent.List {
		return nil
	}
	var dropped []Attachment
	for key, att := range matched {
		if key.Index < len(sub.Items) && !isRemoved(sub.Items[key.Index]) {
			continue
		}
		delete(matched, key)
		dropped = append(dropped, att)
	}
	return dropped
}
