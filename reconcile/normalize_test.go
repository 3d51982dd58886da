package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNormalizeStructuredRootList(t *testing.T) {
	n := Normalize(form(
		"bannerSlides", `[{"title":"One","order":2,"isActive":true,"cta":{"text":"Go","link":"/x"}},{"title":"Two"}]`,
	), nil)

	s, ok := n.Sections["bannerSlides"]
	if !ok {
		t.Fatal("bannerSlides not present")
	}
	if s.ItemsEncoding != EncodingStructured {
		t.Errorf("encoding = %v, want structured", s.ItemsEncoding)
	}
	want := []Record{
		{"title": "One", "order": "2", "isActive": "true", "cta.text": "Go", "cta.link": "/x"},
		{"title": "Two"},
	}
	if diff := cmp.Diff(want, s.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeStructuredWrappedList(t *testing.T) {
	n := Normalize(form(
		"achievers", `{"title":"Stars","isActive":true,"achievers":[{"name":"Ada","year":2024}]}`,
	), nil)

	s := n.Sections["achievers"]
	if s == nil {
		t.Fatal("achievers not present")
	}
	if diff := cmp.Diff(Record{"title": "Stars", "isActive": "true"}, s.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Record{{"name": "Ada", "year": "2024"}}, s.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeItemListFieldWithFlatScalars(t *testing.T) {
	n := Normalize(form(
		"infrastructure[title]", "Campus",
		"infrastructure[items]", `[{"title":"Gym"}]`,
	), nil)

	s := n.Sections["infrastructure"]
	if s.FieldsEncoding != EncodingFlat || s.ItemsEncoding != EncodingStructured {
		t.Fatalf("encodings = %v/%v, want flat/structured", s.FieldsEncoding, s.ItemsEncoding)
	}
	if s.Fields["title"] != "Campus" {
		t.Errorf("title = %q", s.Fields["title"])
	}
	if len(s.Items) != 1 || s.Items[0]["title"] != "Gym" {
		t.Errorf("items = %v", s.Items)
	}
}

func TestNormalizeBadJSONFallsBackToBracketKeys(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	n := Normalize(form(
		"bannerSlides", `[{"title":`,
		"bannerSlides[0][title]", "From keys",
	), zap.New(core))

	s := n.Sections["bannerSlides"]
	if s.ItemsEncoding != EncodingFlat {
		t.Fatalf("encoding = %v, want flat", s.ItemsEncoding)
	}
	if len(s.Items) != 1 || s.Items[0]["title"] != "From keys" {
		t.Errorf("items = %v", s.Items)
	}
	if logs.FilterMessageSnippet("not decodable").Len() != 1 {
		t.Errorf("expected one decode log entry, got %v", logs.All())
	}
}

func TestNormalizeIndexGapDropsLaterItems(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := Normalize(form(
		"sportsAchievements[achievements][0][title]", "a",
		"sportsAchievements[achievements][1][title]", "b",
		"sportsAchievements[achievements][3][title]", "d",
		"sportsAchievements[achievements][5][title]", "f",
	), zap.New(core))

	s := n.Sections["sportsAchievements"]
	if len(s.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(s.Items))
	}
	if diff := cmp.Diff([]int{3, 5}, s.Dropped); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}
	if logs.Len() != 1 {
		t.Errorf("expected one warning, got %d", logs.Len())
	}
}

func TestNormalizeKeepsItemsWithoutTitle(t *testing.T) {
	n := Normalize(form(
		"achievers[achievers][0][name]", "Ada",
		"achievers[achievers][1][name]", "Bo",
		"achievers[achievers][1][year]", "2025",
	), nil)

	s := n.Sections["achievers"]
	if len(s.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(s.Items))
	}
	if len(s.Dropped) != 0 {
		t.Errorf("dropped = %v, want none", s.Dropped)
	}
	if got := s.Items[1]["name"]; got != "Bo" {
		t.Errorf("items[1].name = %q, want Bo", got)
	}
}

func TestNormalizeNestedBracketFields(t *testing.T) {
	n := Normalize(form(
		"infrastructure[items][0][meta][icon]", "flask",
		"ourSociety[seo][title]", "Society",
	), nil)

	if got := n.Sections["infrastructure"].Items[0]["meta.icon"]; got != "flask" {
		t.Errorf("meta.icon = %q", got)
	}
	if got := n.Sections["ourSociety"].Fields["seo.title"]; got != "Society" {
		t.Errorf("seo.title = %q", got)
	}
}

func TestNormalizeScalarsAndAbsentSections(t *testing.T) {
	n := Normalize(form(
		"welcomeTitle", "old",
		"welcomeTitle", "new",
		"history", "",
		"unknown[x]", "y",
	), nil)

	if diff := cmp.Diff(map[string]string{"welcomeTitle": "new", "history": ""}, n.Scalars); diff != "" {
		t.Errorf("scalars mismatch (-want +got):\n%s", diff)
	}
	if len(n.Sections) != 0 {
		t.Errorf("sections = %v, want none", n.Sections)
	}
}

func TestNormalizeArrayMarkerSpelling(t *testing.T) {
	n := Normalize(form("recentAnnouncements[announcements][]", "[]"), nil)

	s := n.Sections["recentAnnouncements"]
	if s == nil || s.ItemsEncoding != EncodingStructured {
		t.Fatalf("section = %+v", s)
	}
	if s.Items == nil || len(s.Items) != 0 {
		t.Errorf("items = %#v, want empty non-nil", s.Items)
	}
}
