package views

import (
	"strings"

	"github.com/eringen/campuscms/formpath"
	"github.com/eringen/campuscms/homecontent"
)

// Site holds site-wide settings every page needs.
type Site struct {
	Name string
	URL  string
}

// PageMeta carries per-page title and description into the <head>.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical
}

// HomePage is the data for the public home page. Content holds only active
// sections and items, already sorted.
type HomePage struct {
	Site    Site
	Content homecontent.Aggregate
}

// EditorPage is the data for the admin home editor.
type EditorPage struct {
	Site      Site
	Content   homecontent.Aggregate
	CSRFToken string
	Editor    string
	// Message is a notice such as "saved"; Error is shown after a failed save.
	Message string
	Error   string
	// FieldErrors maps form keys to validation messages.
	FieldErrors map[string]string
	// Values holds the submitted values of a failed save, keyed like the
	// form; they take precedence over Content.
	Values map[string]string
}

// Scalar returns the value to prefill for a top-level field.
func (p EditorPage) Scalar(name string) string {
	if v, ok := p.Values[name]; ok {
		return v
	}
	return p.Content.Scalar(name)
}

// formValues prefills the editor from a failed submission. A nil map means
// the form shows stored content only.
type formValues map[string]string

func (v formValues) text(key, stored string) string {
	if s, ok := v[key]; ok {
		return s
	}
	return stored
}

// checked follows the submission when there is one, since unticked boxes
// are absent from it.
func (v formValues) checked(key string, stored bool) bool {
	if v == nil {
		return stored
	}
	switch strings.ToLower(strings.TrimSpace(v[key])) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

// rows returns how many item rows the submission carried for spec.
func (v formValues) rows(spec homecontent.SectionSpec) int {
	n := 0
	for key := range v {
		p, err := formpath.Parse(key)
		if err != nil || p.Section != spec.Name || !p.IsItem() || p.List != spec.ListKey {
			continue
		}
		if p.Index+1 > n {
			n = p.Index + 1
		}
	}
	return n
}
