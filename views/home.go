package views

import (
	"github.com/a-h/templ"

	"github.com/eringen/campuscms/homecontent"
)

// Home renders the public home page.
func Home(page HomePage) templ.Component {
	return component(func(h *htmlWriter) {
		c := page.Content
		meta := PageMeta{
			Description: firstParagraph(c.WelcomeContent),
			URL:         buildURL(page.Site.URL),
		}
		layout(h, page.Site, meta, func() {
			h.raw(`<script type="application/ld+json">`, OrganizationJsonLD(page.Site, c), `</script>`)
			h.open("main", "class", "home")
			bannerSlides(h, c.Section("bannerSlides"))

			h.open("section", "class", "welcome")
			h.elem("h1", c.WelcomeTitle)
			for _, p := range Paragraphs(c.WelcomeContent) {
				h.elem("p", p)
			}
			h.close("section")

			featured(h, c.Section("featuredSections"))
			for _, name := range []string{"ourSociety", "whoWeAre"} {
				if s, ok := c.Sections[name]; ok {
					flatSection(h, name, s)
				}
			}
			if c.History != "" {
				h.open("section", "class", "history")
				h.elem("h2", "History")
				for _, p := range Paragraphs(c.History) {
					h.elem("p", p)
				}
				h.close("section")
			}
			for _, name := range []string{"infrastructure", "recentAnnouncements", "sportsAchievements", "coCurricularAchievements", "achievers"} {
				if s, ok := c.Sections[name]; ok {
					listSection(h, name, s)
				}
			}
			h.close("main")
		})
	})
}

func bannerSlides(h *htmlWriter, s homecontent.Section) {
	if len(s.Items) == 0 {
		return
	}
	h.open("section", "class", "banner")
	for _, it := range s.Items {
		h.open("div", "class", "slide")
		if v := it.Asset("video"); it.Field("contentType") == "video" && v != "" {
			h.open("video", "src", v, "autoplay", "", "muted", "", "loop", "", "playsinline", "")
			h.close("video")
		} else if img := it.Asset("image"); img != "" {
			h.open("img", "src", img, "alt", it.Field("title"))
		}
		h.elem("h2", it.Field("title"))
		if sub := it.Field("subtitle"); sub != "" {
			h.elem("p", sub)
		}
		if link := SafeURL(it.Field("ctaLink")); link != "" && it.Field("ctaText") != "" {
			h.elem("a", it.Field("ctaText"), "class", "cta", "href", link)
		}
		h.close("div")
	}
	h.close("section")
}

func featured(h *htmlWriter, s homecontent.Section) {
	if len(s.Items) == 0 {
		return
	}
	h.open("section", "class", "featured")
	for _, it := range s.Items {
		h.open("article")
		if icon := it.Field("icon"); icon != "" {
			h.elem("span", icon, "class", "icon")
		}
		h.elem("h3", it.Field("title"))
		h.elem("p", it.Field("content"))
		if link := SafeURL(it.Field("link")); link != "" {
			h.elem("a", "Learn more", "href", link)
		}
		h.close("article")
	}
	h.close("section")
}

func flatSection(h *htmlWriter, name string, s homecontent.Section) {
	h.open("section", "id", name, "class", "feature")
	if img := s.Asset("image"); img != "" {
		h.open("img", "src", img, "alt", s.Field("title"))
	}
	h.elem("h2", s.Field("title"))
	for _, p := range Paragraphs(s.Field("content")) {
		h.elem("p", p)
	}
	h.close("section")
}

func listSection(h *htmlWriter, name string, s homecontent.Section) {
	h.open("section", "id", name, "class", "list")
	h.elem("h2", s.Field("title"))
	if sub := s.Field("subtitle"); sub != "" {
		h.elem("p", sub, "class", "subtitle")
	}
	for _, p := range Paragraphs(s.Field("content")) {
		h.elem("p", p)
	}
	h.open("ul")
	for _, it := range s.Items {
		h.open("li")
		if img := it.Asset("image"); img != "" && !isVideo(img) {
			h.open("img", "src", img, "alt", headline(it), "loading", "lazy")
		}
		h.elem("h3", headline(it))
		for _, f := range []string{"achievement", "description", "content"} {
			if v := it.Field(f); v != "" {
				h.elem("p", v)
			}
		}
		if d := it.Field("date"); d != "" {
			h.elem("time", d, "datetime", d)
		} else if y := it.Field("year"); y != "" {
			h.elem("span", y, "class", "year")
		}
		h.close("li")
	}
	h.close("ul")
	h.close("section")
}

// headline is the display title of an item: its title, or the name for
// achievers.
func headline(it homecontent.Item) string {
	if t := it.Field("title"); t != "" {
		return t
	}
	return it.Field("name")
}
