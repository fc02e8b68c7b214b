package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIncludesBuiltins(t *testing.T) {
	r := New()
	for _, slug := range []string{"starlink", "gps", "glonass"} {
		if _, ok := r.Get(slug); !ok {
			t.Errorf("expected built-in entry for %q", slug)
		}
	}
}

func TestPriorityConfigured(t *testing.T) {
	r := New()
	order := r.PriorityConfigured()
	if len(order) != len(PriorityOrder) {
		t.Fatalf("expected %d slugs, got %d", len(PriorityOrder), len(order))
	}
	for i, slug := range PriorityOrder {
		if order[i] != slug {
			t.Errorf("position %d: want %q, got %q", i, slug, order[i])
		}
	}
}

func TestPriorityConfiguredAppendsRemaining(t *testing.T) {
	r := New()
	r.entries["zzz-custom"] = Entry{Slug: "zzz-custom"}
	r.entries["aaa-custom"] = Entry{Slug: "aaa-custom"}

	order := r.PriorityConfigured()
	tail := order[len(PriorityOrder):]
	if len(tail) != 2 {
		t.Fatalf("expected 2 trailing slugs, got %d: %v", len(tail), tail)
	}
	if tail[0] != "aaa-custom" || tail[1] != "zzz-custom" {
		t.Errorf("expected remaining slugs sorted, got %v", tail)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "constellations.yaml")
	content := `
- slug: starlink
  display_name: Starlink (custom)
  upstream_query_predicate: "OBJECT_NAME/contains/STARLINK"
  color: "#000000"
  category: communications
- slug: custom-constellation
  display_name: Custom
  upstream_query_predicate: "OBJECT_NAME/contains/CUSTOM"
  color: "#ffffff"
  category: other
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	if err := r.LoadOverrides(path); err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}

	starlink, ok := r.Get("starlink")
	if !ok || starlink.DisplayName != "Starlink (custom)" {
		t.Errorf("expected overridden starlink entry, got %+v", starlink)
	}

	custom, ok := r.Get("custom-constellation")
	if !ok || custom.Color != "#ffffff" {
		t.Errorf("expected new custom entry, got %+v, ok=%v", custom, ok)
	}
}

func TestLoadOverridesMissingSlug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("- display_name: No Slug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	if err := r.LoadOverrides(path); err == nil {
		t.Error("expected error for entry missing slug")
	}
}
