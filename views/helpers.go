package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/eringen/campuscms/formpath"
	"github.com/eringen/campuscms/homecontent"
)

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// SafeURL returns raw if it is a relative link or an http(s), mailto or tel
// URL, and "" otherwise.
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") && !strings.HasPrefix(val, "//") || strings.HasPrefix(val, "#") {
		return val
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return val
	}
	return ""
}

// Paragraphs splits free text on blank lines.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// OrganizationJsonLD produces a Schema.org EducationalOrganization block.
func OrganizationJsonLD(site Site, content homecontent.Aggregate) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "EducationalOrganization",
		"name":     site.Name,
		"url":      buildURL(site.URL),
	}
	if d := firstParagraph(content.WelcomeContent); d != "" {
		data["description"] = d
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func firstParagraph(s string) string {
	if ps := Paragraphs(s); len(ps) > 0 {
		return ps[0]
	}
	return ""
}

// itemKey returns the form key of an item field, using the same grammar the
// server parses.
func itemKey(spec homecontent.SectionSpec, index int, field string) string {
	return formpath.Item(spec.Name, spec.ListKey, index, field)
}

func sectionKey(spec homecontent.SectionSpec, field string) string {
	return formpath.Field(spec.Name, field)
}

// label turns a field name such as "ctaText" into "Cta text".
func label(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteString(strings.ToUpper(string(r)))
		case r >= 'A' && r <= 'Z':
			b.WriteByte(' ')
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func itoa(i int) string { return strconv.Itoa(i) }

func isVideo(ref string) bool {
	switch strings.ToLower(path.Ext(ref)) {
	case ".mp4", ".webm":
		return true
	}
	return false
}
