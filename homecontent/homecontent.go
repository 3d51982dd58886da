// Package homecontent defines the home page aggregate: the single document
// holding every editable section of the public home page.
package homecontent

import (
	"sort"
	"time"
)

// Top-level scalar field names.
const (
	WelcomeTitle   = "welcomeTitle"
	WelcomeContent = "welcomeContent"
	History        = "history"
)

// Scalars lists the top-level scalar fields in form order.
var Scalars = []string{WelcomeTitle, WelcomeContent, History}

// Aggregate is the home page document. Exactly one exists; it is replaced as
// a whole on every save.
type Aggregate struct {
	Version        int64              `json:"version"`
	WelcomeTitle   string             `json:"welcomeTitle"`
	WelcomeContent string             `json:"welcomeContent"`
	History        string             `json:"history"`
	Sections       map[string]Section `json:"sections"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	UpdatedBy      string             `json:"updatedBy,omitempty"`
}

// Section is either flat (Fields, Active, Assets) or list-shaped (Fields,
// Active, Items), as declared by its SectionSpec.
type Section struct {
	Fields map[string]string `json:"fields"`
	Active bool              `json:"active"`
	Assets map[string]string `json:"assets,omitempty"`
	Items  []Item            `json:"items,omitempty"`
}

// Item is one entry of a list section.
type Item struct {
	Fields map[string]string `json:"fields"`
	Order  int               `json:"order"`
	Active bool              `json:"active"`
	Assets map[string]string `json:"assets,omitempty"`
}

// Scalar returns the named top-level scalar.
func (a Aggregate) Scalar(name string) string {
	switch name {
	case WelcomeTitle:
		return a.WelcomeTitle
	case WelcomeContent:
		return a.WelcomeContent
	case History:
		return a.History
	}
	return ""
}

// SetScalar sets the named top-level scalar. Unknown names are ignored.
func (a *Aggregate) SetScalar(name, value string) {
	switch name {
	case WelcomeTitle:
		a.WelcomeTitle = value
	case WelcomeContent:
		a.WelcomeContent = value
	case History:
		a.History = value
	}
}

// Section returns the named section, or the zero Section.
func (a Aggregate) Section(name string) Section {
	return a.Sections[name]
}

// Field returns a scalar field of the section.
func (s Section) Field(name string) string {
	return s.Fields[name]
}

// Asset returns the path held by a section-level asset slot.
func (s Section) Asset(slot string) string {
	return s.Assets[slot]
}

// ActiveItems returns the active items sorted by order.
func (s Section) ActiveItems() []Item {
	var out []Item
	for _, it := range s.Items {
		if it.Active {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Field returns a scalar field of the item.
func (it Item) Field(name string) string {
	return it.Fields[name]
}

// Asset returns the path held by the item's asset slot.
func (it Item) Asset(slot string) string {
	return it.Assets[slot]
}

// Clone returns a deep copy of the aggregate.
func (a Aggregate) Clone() Aggregate {
	out := a
	out.Sections = make(map[string]Section, len(a.Sections))
	for name, s := range a.Sections {
		out.Sections[name] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of the section.
func (s Section) Clone() Section {
	out := Section{
		Fields: cloneMap(s.Fields),
		Active: s.Active,
		Assets: cloneMap(s.Assets),
	}
	if s.Items != nil {
		out.Items = make([]Item, len(s.Items))
		for i, it := range s.Items {
			out.Items[i] = Item{
				Fields: cloneMap(it.Fields),
				Order:  it.Order,
				Active: it.Active,
				Assets: cloneMap(it.Assets),
			}
		}
	}
	return out
}

// AssetRef locates a non-empty asset slot inside the aggregate.
type AssetRef struct {
	Section string
	Index   int // -1 for a section-level slot
	Slot    string
	Path    string
}

// Assets lists every non-empty asset slot of the aggregate, in schema order.
func (a Aggregate) Assets() []AssetRef {
	var refs []AssetRef
	for _, spec := range Schema {
		refs = append(refs, a.Sections[spec.Name].assets(spec)...)
	}
	return refs
}

// SectionAssets lists the non-empty asset slots of one section.
func (a Aggregate) SectionAssets(name string) []AssetRef {
	spec, ok := Lookup(name)
	if !ok {
		return nil
	}
	return a.Sections[name].assets(spec)
}

func (s Section) assets(spec SectionSpec) []AssetRef {
	var refs []AssetRef
	if spec.Kind == Flat {
		for _, slot := range spec.Slots {
			if p := s.Assets[slot.Name]; p != "" {
				refs = append(refs, AssetRef{Section: spec.Name, Index: -1, Slot: slot.Name, Path: p})
			}
		}
		return refs
	}
	for i, it := range s.Items {
		for _, slot := range spec.Slots {
			if p := it.Assets[slot.Name]; p != "" {
				refs = append(refs, AssetRef{Section: spec.Name, Index: i, Slot: slot.Name, Path: p})
			}
		}
	}
	return refs
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Public returns the aggregate as visitors see it: inactive sections are
// removed and list sections keep only their active items, sorted by order.
func (a Aggregate) Public() Aggregate {
	out := a.Clone()
	for name, s := range out.Sections {
		if !s.Active {
			delete(out.Sections, name)
			continue
		}
		if s.Items != nil {
			s.Items = s.ActiveItems()
			if s.Items == nil {
				s.Items = []Item{}
			}
			out.Sections[name] = s
		}
	}
	out.UpdatedBy = ""
	return out
}
