package homecontent

import (
	"path"
	"strings"
)

// AssetRoot is the prefix every stored asset reference starts with.
const AssetRoot = "/uploads/"

// Kind tells flat sections from list sections.
type Kind int

const (
	Flat Kind = iota
	List
)

func (k Kind) String() string {
	if k == List {
		return "list"
	}
	return "flat"
}

// FieldSpec describes one scalar field of a section or item.
type FieldSpec struct {
	Name string
	// Default replaces an empty submitted value. A "%d" verb is replaced
	// with the item's 1-based position.
	Default string
	// Choices, when set, restricts the value; anything else becomes Default.
	Choices []string
	// Today defaults an empty value to the current date (YYYY-MM-DD).
	Today bool
}

// SlotSpec describes an asset slot.
type SlotSpec struct {
	Name string
	// Carry lists the submitted field names that may carry the previously
	// stored path forward, in priority order.
	Carry []string
	// Folder is the directory under AssetRoot that new uploads go to.
	Folder string
	// Extensions lists the accepted upload extensions, lower case with dot.
	Extensions []string
}

// Accepts reports whether an uploaded file name has an allowed extension.
func (s SlotSpec) Accepts(filename string) bool {
	ext := strings.ToLower(path.Ext(filename))
	for _, e := range s.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// SectionSpec declares the shape of one section.
type SectionSpec struct {
	Name string
	Kind Kind
	// ListKey names the item list inside a list section. Empty for root
	// lists, whose form keys index the section directly (bannerSlides[0][title]).
	ListKey string
	// Fields are the section-level scalar fields.
	Fields []FieldSpec
	// ItemFields are the scalar fields of each item in a list section.
	ItemFields []FieldSpec
	// Slots are the section-level slots of a flat section, or the per-item
	// slots of a list section.
	Slots []SlotSpec
	// Defaults seed the section when the aggregate is first created.
	Defaults map[string]string
}

// Slot returns the named slot spec.
func (s SectionSpec) Slot(name string) (SlotSpec, bool) {
	for _, slot := range s.Slots {
		if slot.Name == name {
			return slot, true
		}
	}
	return SlotSpec{}, false
}

// IsSlotField reports whether name is a slot or one of its carry fields.
// Such fields are asset plumbing and never stored as scalars.
func (s SectionSpec) IsSlotField(name string) bool {
	for _, slot := range s.Slots {
		if slot.Name == name {
			return true
		}
		for _, c := range slot.Carry {
			if c == name {
				return true
			}
		}
	}
	return false
}

var (
	imageExts = []string{".jpg", ".jpeg", ".png", ".gif"}
	videoExts = []string{".mp4", ".webm"}
)

func imageSlot(folder string) SlotSpec {
	return SlotSpec{
		Name:       "image",
		Carry:      []string{"existingImage", "imageUrl", "image"},
		Folder:     folder,
		Extensions: imageExts,
	}
}

// Schema lists every section of the aggregate in editor order.
var Schema = []SectionSpec{
	{
		Name: "bannerSlides",
		Kind: List,
		ItemFields: []FieldSpec{
			{Name: "contentType", Default: "image", Choices: []string{"image", "video"}},
			{Name: "title", Default: "Banner Slide %d"},
			{Name: "subtitle"},
			{Name: "ctaText"},
			{Name: "ctaLink"},
		},
		Slots: []SlotSpec{
			imageSlot("banners"),
			{
				Name:       "video",
				Carry:      []string{"existingVideo", "videoUrl", "video"},
				Folder:     "banners",
				Extensions: videoExts,
			},
		},
	},
	{
		Name: "featuredSections",
		Kind: List,
		ItemFields: []FieldSpec{
			{Name: "title"},
			{Name: "content"},
			{Name: "icon"},
			{Name: "link"},
		},
	},
	{
		Name:     "ourSociety",
		Kind:     Flat,
		Fields:   []FieldSpec{{Name: "title"}, {Name: "content"}},
		Slots:    []SlotSpec{imageSlot("sections")},
		Defaults: map[string]string{"title": "Our Society"},
	},
	{
		Name:     "whoWeAre",
		Kind:     Flat,
		Fields:   []FieldSpec{{Name: "title"}, {Name: "content"}},
		Slots:    []SlotSpec{imageSlot("sections")},
		Defaults: map[string]string{"title": "Who We Are"},
	},
	{
		Name:    "infrastructure",
		Kind:    List,
		ListKey: "items",
		Fields:  []FieldSpec{{Name: "title"}, {Name: "subtitle"}, {Name: "content"}},
		ItemFields: []FieldSpec{
			{Name: "title"},
			{Name: "description"},
			{Name: "icon"},
		},
		Slots:    []SlotSpec{imageSlot("infrastructure")},
		Defaults: map[string]string{"title": "Infrastructure", "subtitle": "Our Facilities"},
	},
	{
		Name:    "recentAnnouncements",
		Kind:    List,
		ListKey: "announcements",
		Fields:  []FieldSpec{{Name: "title"}, {Name: "subtitle"}},
		ItemFields: []FieldSpec{
			{Name: "title"},
			{Name: "content"},
			{Name: "date", Today: true},
		},
		Defaults: map[string]string{"title": "Recent Announcements", "subtitle": "Stay Updated"},
	},
	{
		Name:    "sportsAchievements",
		Kind:    List,
		ListKey: "achievements",
		Fields:  []FieldSpec{{Name: "title"}, {Name: "subtitle"}, {Name: "content"}},
		ItemFields: []FieldSpec{
			{Name: "title"},
			{Name: "description"},
			{Name: "category", Default: "sports", Choices: []string{"sports", "academic", "cultural", "other"}},
			{Name: "date", Today: true},
		},
		Slots:    []SlotSpec{imageSlot("achievements")},
		Defaults: map[string]string{"title": "Sports Achievements", "subtitle": "Excellence in Sports"},
	},
	{
		Name:    "coCurricularAchievements",
		Kind:    List,
		ListKey: "achievements",
		Fields:  []FieldSpec{{Name: "title"}, {Name: "subtitle"}, {Name: "content"}},
		ItemFields: []FieldSpec{
			{Name: "title"},
			{Name: "description"},
			{Name: "category", Default: "cultural", Choices: []string{"sports", "academic", "cultural", "other"}},
			{Name: "date", Today: true},
		},
		Slots:    []SlotSpec{imageSlot("achievements")},
		Defaults: map[string]string{"title": "Co-Curricular Achievements", "subtitle": "Excellence Beyond Academics"},
	},
	{
		Name:    "achievers",
		Kind:    List,
		ListKey: "achievers",
		Fields:  []FieldSpec{{Name: "title"}, {Name: "subtitle"}, {Name: "content"}},
		ItemFields: []FieldSpec{
			{Name: "name"},
			{Name: "achievement"},
			{Name: "category", Default: "student", Choices: []string{"student", "teacher", "alumni", "other"}},
			{Name: "year"},
		},
		Slots:    []SlotSpec{imageSlot("achievers")},
		Defaults: map[string]string{"title": "Our Achievers", "subtitle": "Celebrating Success"},
	},
}

// Lookup returns the spec of the named section.
func Lookup(name string) (SectionSpec, bool) {
	for _, s := range Schema {
		if s.Name == name {
			return s, true
		}
	}
	return SectionSpec{}, false
}

// IsScalar reports whether name is a top-level scalar field.
func IsScalar(name string) bool {
	for _, s := range Scalars {
		if s == name {
			return true
		}
	}
	return false
}

// New returns the default aggregate used before anything has been saved.
func New() Aggregate {
	a := Aggregate{
		WelcomeTitle: "Welcome to Our School",
		Sections:     make(map[string]Section, len(Schema)),
	}
	for _, spec := range Schema {
		s := Section{Fields: make(map[string]string), Active: true}
		for _, f := range spec.Fields {
			s.Fields[f.Name] = spec.Defaults[f.Name]
		}
		if spec.Kind == List {
			s.Items = []Item{}
		}
		a.Sections[spec.Name] = s
	}
	return a
}
