package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eringen/campuscms/homecontent"
)

func mustSpec(t *testing.T, name string) homecontent.SectionSpec {
	t.Helper()
	spec, ok := homecontent.Lookup(name)
	if !ok {
		t.Fatalf("no section %q", name)
	}
	return spec
}

func TestMatchAssetsListSection(t *testing.T) {
	atts := []Attachment{
		{Field: "infrastructure[items][0][image]", TempPath: "first"},
		{Field: "infrastructure[items][2][image]", TempPath: "third"},
		{Field: "infrastructure[items][0][image]", TempPath: "second-for-0"},
		{Field: "infrastructure[image]", TempPath: "section-level"},
		{Field: "infrastructure[other][1][image]", TempPath: "wrong-list"},
		{Field: "infrastructure[items][1][icon]", TempPath: "not-a-slot"},
		{Field: "achievers[achievers][0][image]", TempPath: "other-section"},
		{Field: "infrastructure[items", TempPath: "malformed"},
	}

	got := MatchAssets(mustSpec(t, "infrastructure"), atts)
	want := map[SlotKey]string{
		{Index: 0, Slot: "image"}: "second-for-0",
		{Index: 2, Slot: "image"}: "third",
	}
	paths := make(map[SlotKey]string, len(got))
	for k, a := range got {
		paths[k] = a.TempPath
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("matches (-want +got):\n%s", diff)
	}
}

func TestMatchAssetsFlatSection(t *testing.T) {
	atts := []Attachment{
		{Field: "whoWeAre[image]", TempPath: "flat"},
		{Field: "whoWeAre[0][image]", TempPath: "indexed"},
	}
	got := MatchAssets(mustSpec(t, "whoWeAre"), atts)
	if len(got) != 1 || got[SlotKey{Index: -1, Slot: "image"}].TempPath != "flat" {
		t.Errorf("got %v", got)
	}
}

func TestMatchAssetsRootList(t *testing.T) {
	atts := []Attachment{
		{Field: "bannerSlides[1][video]", TempPath: "v"},
		{Field: "bannerSlides[1][image]", TempPath: "i"},
	}
	got := MatchAssets(mustSpec(t, "bannerSlides"), atts)
	if got[SlotKey{Index: 1, Slot: "video"}].TempPath != "v" || got[SlotKey{Index: 1, Slot: "image"}].TempPath != "i" {
		t.Errorf("got %v", got)
	}
}

func TestCheckAttachments(t *testing.T) {
	spec := mustSpec(t, "bannerSlides")
	ok := map[SlotKey]Attachment{
		{Index: 0, Slot: "image"}: {Field: "bannerSlides[0][image]", OriginalName: "a.JPEG"},
		{Index: 0, Slot: "video"}: {Field: "bannerSlides[0][video]", OriginalName: "a.webm"},
	}
	if err := checkAttachments(spec, ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	bad := map[SlotKey]Attachment{
		{Index: 0, Slot: "image"}: {Field: "bannerSlides[0][image]", OriginalName: "a.svg"},
	}
	if err := checkAttachments(spec, bad); err == nil {
		t.Error("expected svg to be rejected")
	}
}
