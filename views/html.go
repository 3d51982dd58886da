package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// htmlWriter writes escaped markup and remembers the first write error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(parts ...string) {
	for _, s := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// open writes a start tag; attrs are name, value pairs.
func (h *htmlWriter) open(tag string, attrs ...string) {
	h.raw("<", tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		h.raw(" ", attrs[i], `="`, templ.EscapeString(attrs[i+1]), `"`)
	}
	h.raw(">")
}

func (h *htmlWriter) close(tag string) {
	h.raw("</", tag, ">")
}

// elem writes a complete element with escaped text content.
func (h *htmlWriter) elem(tag, text string, attrs ...string) {
	h.open(tag, attrs...)
	h.text(text)
	h.close(tag)
}

func component(fn func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		fn(h)
		return h.err
	})
}

func layout(h *htmlWriter, site Site, meta PageMeta, body func()) {
	title := site.Name
	if meta.Title != "" {
		title = meta.Title + " | " + site.Name
	}
	h.raw("<!doctype html>")
	h.open("html", "lang", "en")
	h.raw("<head>")
	h.raw(`<meta charset="utf-8">`)
	h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	h.elem("title", title)
	if meta.Description != "" {
		h.open("meta", "name", "description", "content", meta.Description)
	}
	if meta.URL != "" {
		h.open("link", "rel", "canonical", "href", meta.URL)
	}
	h.open("link", "rel", "stylesheet", "href", "/public/styles.css")
	h.raw("</head><body>")
	body()
	h.raw("</body></html>")
}
