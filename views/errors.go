package views

import "github.com/a-h/templ"

// NotFound renders the 404 page.
func NotFound() templ.Component {
	return errorPage("Page not found", "The page you are looking for does not exist.")
}

// ServerError renders the 500 page.
func ServerError() templ.Component {
	return errorPage("Something went wrong", "Please try again in a moment.")
}

func errorPage(title, text string) templ.Component {
	return component(func(h *htmlWriter) {
		layout(h, Site{Name: title}, PageMeta{}, func() {
			h.open("main", "class", "error-page")
			h.elem("h1", title)
			h.elem("p", text)
			h.elem("a", "Back to the home page", "href", "/")
			h.close("main")
		})
	})
}
