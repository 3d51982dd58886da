package views

import (
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/campuscms/homecontent"
)

// AdminLogin renders the admin login form.
func AdminLogin(showError bool, csrfToken string) templ.Component {
	return component(func(h *htmlWriter) {
		layout(h, Site{Name: "Admin"}, PageMeta{Title: "Sign in"}, func() {
			h.open("main", "class", "admin login")
			h.elem("h1", "Sign in")
			if showError {
				h.elem("p", "Invalid username or password.", "class", "error")
			}
			h.open("form", "method", "post", "action", "/admin/login/")
			hidden(h, "_csrf", csrfToken)
			h.open("label")
			h.text("Username")
			h.open("input", "type", "text", "name", "username", "autocomplete", "username", "required", "")
			h.close("label")
			h.open("label")
			h.text("Password")
			h.open("input", "type", "password", "name", "password", "autocomplete", "current-password", "required", "")
			h.close("label")
			h.elem("button", "Sign in", "type", "submit")
			h.close("form")
			h.close("main")
		})
	})
}

// AdminHome renders the home page editor. The form posts bracket keys
// (section[field], section[list][i][field]) and one file input per slot.
func AdminHome(page EditorPage) templ.Component {
	return component(func(h *htmlWriter) {
		layout(h, page.Site, PageMeta{Title: "Edit home page"}, func() {
			h.open("main", "class", "admin editor")
			h.open("header")
			h.elem("h1", "Home page")
			if page.Editor != "" {
				h.elem("span", "Signed in as "+page.Editor, "class", "who")
			}
			h.open("form", "method", "post", "action", "/admin/logout/", "class", "inline")
			hidden(h, "_csrf", page.CSRFToken)
			h.elem("button", "Sign out", "type", "submit")
			h.close("form")
			h.close("header")

			switch {
			case page.Error != "":
				h.elem("p", page.Error, "class", "error", "role", "alert")
			case page.Message != "":
				h.elem("p", notice(page.Message), "class", "notice")
			}

			h.open("form", "method", "post", "action", "/admin/home/update/", "enctype", "multipart/form-data")
			hidden(h, "_csrf", page.CSRFToken)
			hidden(h, "_version", strconv.FormatInt(page.Content.Version, 10))

			h.open("fieldset")
			h.elem("legend", "Welcome")
			textInput(h, homecontent.WelcomeTitle, "Welcome title", page.Scalar(homecontent.WelcomeTitle), page.FieldErrors)
			textArea(h, homecontent.WelcomeContent, "Welcome content", page.Scalar(homecontent.WelcomeContent))
			textArea(h, homecontent.History, "History", page.Scalar(homecontent.History))
			h.close("fieldset")

			for _, spec := range homecontent.Schema {
				sectionEditor(h, spec, page.Content.Section(spec.Name), formValues(page.Values), page.FieldErrors)
			}

			h.elem("button", "Save", "type", "submit", "class", "primary")
			h.close("form")

			h.open("form", "method", "post", "action", "/admin/home/reset/", "class", "danger",
				"onsubmit", "return confirm('Reset the home page to defaults? Uploaded files will be deleted.')")
			hidden(h, "_csrf", page.CSRFToken)
			h.elem("button", "Reset to defaults", "type", "submit")
			h.close("form")
			h.close("main")
		})
	})
}

func notice(msg string) string {
	switch msg {
	case "saved":
		return "Home page saved."
	case "reset":
		return "Home page reset to defaults."
	}
	return msg
}

func sectionEditor(h *htmlWriter, spec homecontent.SectionSpec, s homecontent.Section, v formValues, errs map[string]string) {
	h.open("fieldset", "id", spec.Name)
	h.elem("legend", label(spec.Name))

	// Root lists keep their stored visibility; the form has no toggle for them.
	if spec.Kind == homecontent.Flat || spec.ListKey != "" {
		key := sectionKey(spec, "isActive")
		checkbox(h, key, "Show on home page", v.checked(key, s.Active))
	}
	for _, f := range spec.Fields {
		key := sectionKey(spec, f.Name)
		if f.Name == "content" {
			textArea(h, key, label(f.Name), v.text(key, s.Field(f.Name)))
			continue
		}
		textInput(h, key, label(f.Name), v.text(key, s.Field(f.Name)), errs)
	}

	if spec.Kind == homecontent.Flat {
		for _, slot := range spec.Slots {
			carry := sectionKey(spec, slot.Carry[0])
			slotEditor(h, slot, carry, sectionKey(spec, slot.Name), s.Asset(slot.Name), v.text(carry, s.Asset(slot.Name)))
		}
		h.close("fieldset")
		return
	}

	// A failed save may carry rows that were never stored; the last
	// submitted row is the blank one.
	n := len(s.Items)
	if m := v.rows(spec) - 1; m > n {
		n = m
	}
	h.open("ol", "class", "items")
	for i := 0; i < n; i++ {
		it := homecontent.Item{Order: i, Active: true}
		if i < len(s.Items) {
			it = s.Items[i]
		}
		h.open("li")
		itemEditor(h, spec, i, it, v, errs)
		key := itemKey(spec, i, "_remove")
		checkbox(h, key, "Remove", v.checked(key, false))
		h.close("li")
	}
	// Blank row for a new item; it is dropped unless the box is ticked.
	key := itemKey(spec, n, "_remove")
	h.open("li", "class", "new")
	itemEditor(h, spec, n, homecontent.Item{Order: n, Active: true}, v, errs)
	hidden(h, key, "1")
	h.open("label")
	if v[key] == "0" {
		h.open("input", "type", "checkbox", "name", key, "value", "0", "checked", "")
	} else {
		h.open("input", "type", "checkbox", "name", key, "value", "0")
	}
	h.text(" Add this item")
	h.close("label")
	h.close("li")
	h.close("ol")
	h.close("fieldset")
}

func itemEditor(h *htmlWriter, spec homecontent.SectionSpec, i int, it homecontent.Item, v formValues, errs map[string]string) {
	for _, f := range spec.ItemFields {
		key := itemKey(spec, i, f.Name)
		value := v.text(key, it.Field(f.Name))
		switch {
		case len(f.Choices) > 0:
			selectInput(h, key, label(f.Name), value, f.Choices)
		case f.Today:
			h.open("label")
			h.text(label(f.Name))
			h.open("input", "type", "date", "name", key, "value", value)
			h.close("label")
		case f.Name == "content" || f.Name == "description":
			textArea(h, key, label(f.Name), value)
		default:
			textInput(h, key, label(f.Name), value, errs)
		}
	}
	order := itemKey(spec, i, "order")
	h.open("label")
	h.text("Order")
	h.open("input", "type", "number", "name", order, "value", v.text(order, itoa(it.Order)))
	h.close("label")
	active := itemKey(spec, i, "isActive")
	checkbox(h, active, "Active", v.checked(active, it.Active))
	for _, slot := range spec.Slots {
		carry := itemKey(spec, i, slot.Carry[0])
		slotEditor(h, slot, carry, itemKey(spec, i, slot.Name), it.Asset(slot.Name), v.text(carry, it.Asset(slot.Name)))
	}
}

// slotEditor shows the stored file, a field carrying a path forward
// (clear it to remove the file) and a file input for a replacement.
func slotEditor(h *htmlWriter, slot homecontent.SlotSpec, carryKey, fileKey, current, carried string) {
	h.open("div", "class", "slot")
	if current != "" {
		if isVideo(current) {
			h.open("video", "src", current, "controls", "", "preload", "metadata")
			h.close("video")
		} else {
			h.open("img", "src", current, "alt", "", "class", "thumb")
		}
	}
	h.open("label")
	h.text("Current " + slot.Name)
	h.open("input", "type", "text", "name", carryKey, "value", carried)
	h.close("label")
	h.open("label")
	h.text("Upload " + slot.Name)
	h.open("input", "type", "file", "name", fileKey, "accept", strings.Join(slot.Extensions, ","))
	h.close("label")
	h.close("div")
}

func hidden(h *htmlWriter, name, value string) {
	h.open("input", "type", "hidden", "name", name, "value", value)
}

func textInput(h *htmlWriter, name, text, value string, errs map[string]string) {
	h.open("label")
	h.text(text)
	h.open("input", "type", "text", "name", name, "value", value)
	if msg, ok := errs[name]; ok {
		h.elem("span", text+" "+msg, "class", "field-error")
	}
	h.close("label")
}

func textArea(h *htmlWriter, name, text, value string) {
	h.open("label")
	h.text(text)
	h.elem("textarea", value, "name", name, "rows", "4")
	h.close("label")
}

func selectInput(h *htmlWriter, name, text, value string, choices []string) {
	h.open("label")
	h.text(text)
	h.open("select", "name", name)
	for _, c := range choices {
		if c == value {
			h.elem("option", c, "value", c, "selected", "")
		} else {
			h.elem("option", c, "value", c)
		}
	}
	h.close("select")
	h.close("label")
}

func checkbox(h *htmlWriter, name, text string, checked bool) {
	h.open("label", "class", "check")
	if checked {
		h.open("input", "type", "checkbox", "name", name, "value", "on", "checked", "")
	} else {
		h.open("input", "type", "checkbox", "name", name, "value", "on")
	}
	h.text(" " + text)
	h.close("label")
}
