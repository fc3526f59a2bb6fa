package policy

import (
	"errors"
	"testing"
)

func TestSectorForExt(t *testing.T) {
	cases := []struct {
		ext  string
		want Sector
	}{
		{"jpg", SectorVisual},
		{".PNG", SectorVisual},
		{"pdf", SectorDocs},
		{"zip", SectorArchives},
		{"mp4", SectorVideo},
		{"yaml", SectorConfig},
		{"woff2", SectorFonts},
		{"stl", SectorModel3D},
		{"weirdext", SectorGlobal},
		{"", SectorGlobal},
	}
	for _, c := range cases {
		if got := SectorForExt(c.ext); got != c.want {
			t.Fatalf("SectorForExt(%q)=%q want %q", c.ext, got, c.want)
		}
	}
}

func TestRuleResolutionOrder(t *testing.T) {
	e := NewEngine([]Rule{
		{Sector: SectorVisual, MaxSizeProxied: 1 << 20},
		{Sector: SectorGlobal, MaxSizeProxied: 2 << 20},
	})
	if r := e.RuleFor("png"); r.MaxSizeProxied != 1<<20 {
		t.Fatalf("sector override not applied: %+v", r)
	}
	// pdf has no docs override, falls to the tenant global override
	if r := e.RuleFor("pdf"); r.MaxSizeProxied != 2<<20 || r.Sector != SectorDocs {
		t.Fatalf("global override not applied: %+v", r)
	}
	// no overrides at all: builtin default
	empty := NewEngine(nil)
	if r := empty.RuleFor("pdf"); r.MaxSizeProxied != DefaultMaxSizeProxied {
		t.Fatalf("builtin default not applied: %+v", r)
	}
}

func TestCheckIngestionExtensionWhitelist(t *testing.T) {
	e := NewEngine([]Rule{
		{Sector: SectorVisual, MaxSizeProxied: 10 << 20, AllowedExtensions: []string{"png", "jpg"}},
	})
	if err := e.CheckIngestion("photo.png", 100, StrategyProxy); err != nil {
		t.Fatalf("png should pass: %v", err)
	}
	err := e.CheckIngestion("photo.gif", 100, StrategyProxy)
	var v *Violation
	if !errors.As(err, &v) || v.Code != CodeExtensionNotAllowed {
		t.Fatalf("expected extension violation, got %v", err)
	}
}

func TestCheckIngestionSizeDimensions(t *testing.T) {
	e := NewEngine([]Rule{
		{Sector: SectorDocs, MaxSizeProxied: 10 << 20, MaxSizeDirect: 100 << 20},
	})
	if err := e.CheckIngestion("report.pdf", 2_000_000, StrategyProxy); err != nil {
		t.Fatalf("2MB pdf should pass proxied: %v", err)
	}
	var v *Violation
	if err := e.CheckIngestion("report.pdf", 50_000_000, StrategyProxy); !errors.As(err, &v) || v.Code != CodeSizeProxied {
		t.Fatalf("expected proxied size violation, got %v", err)
	}
	if err := e.CheckIngestion("report.pdf", 50_000_000, StrategyDirect); err != nil {
		t.Fatalf("50MB direct should pass under 100MB: %v", err)
	}
	if err := e.CheckIngestion("report.pdf", 200<<20, StrategyDirect); !errors.As(err, &v) || v.Code != CodeSizeDirect {
		t.Fatalf("expected direct size violation, got %v", err)
	}
}

func TestOverCeiling(t *testing.T) {
	r := Rule{MaxSizeProxied: 200 << 20}
	if !OverCeiling(r, 100<<20) {
		t.Fatalf("200MB rule should be flagged against 100MB ceiling")
	}
	if OverCeiling(r, 0) {
		t.Fatalf("zero ceiling disables flagging")
	}
}

func TestSplitExtensions(t *testing.T) {
	got := SplitExtensions(" .PNG, jpg ,, gif ")
	want := []string{"png", "jpg", "gif"}
	if len(got) != len(want) {
		t.Fatalf("SplitExtensions=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SplitExtensions=%v want %v", got, want)
		}
	}
	if SplitExtensions("  ") != nil {
		t.Fatalf("blank input should return nil")
	}
}
