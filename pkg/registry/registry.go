// Package registry is the static catalog registry: the map from a
// constellation slug to the upstream query predicate, display metadata,
// and priority used to order first-run hydration. The registry is
// treated as data, not logic — known-imperfect predicates (for example
// NAVSTAR over-matching GPS, or COSMOS over-matching GLONASS) are left
// as-is rather than curated here.
package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entry describes one constellation's static metadata.
type Entry struct {
	Slug                   string `yaml:"slug"`
	DisplayName            string `yaml:"display_name"`
	UpstreamQueryPredicate string `yaml:"upstream_query_predicate"`
	Color                  string `yaml:"color"`
	Category               string `yaml:"category"`
	Description            string `yaml:"description"`
}

// PriorityOrder is the order constellations are hydrated in on first run.
var PriorityOrder = []string{
	"starlink", "oneweb", "gps", "stations", "iridium",
	"globalstar", "galileo", "beidou", "glonass",
}

// defaults is the built-in constellation table.
var defaults = map[string]Entry{
	"starlink": {
		Slug: "starlink", DisplayName: "Starlink",
		UpstreamQueryPredicate: "OBJECT_NAME/contains/STARLINK",
		Color:                  "#1f6feb", Category: "communications",
	},
	"oneweb": {
		Slug: "oneweb", DisplayName: "OneWeb",
		UpstreamQueryPredicate: "OBJECT_NAME/contains/ONEWEB",
		Color:                  "#8957e5", Category: "communications",
	},
	"gps": {
		Slug: "gps", DisplayName: "GPS",
		UpstreamQueryPredicate: "OBJECT_NAME/contains/NAVSTAR",
		Color:                  "#2da44e", Category: "navigation",
		Description: "Predicate over-matches; NAVSTAR is used for historical GPS block names.",
	},
	"stations": {
		Slug: "stations", DisplayName: "Space Stations",
		UpstreamQueryPredicate: "OBJECT_TYPE/contains/PAYLOAD",
		Color:                  "#cf222e", Category: "station",
	},
	"iridium": {
		Slug: "iridium", DisplayName: "Iridium",
		UpstreamQueryPredicate: "OBJECT_NAME/contains/IRIDIUM",
		Color:                  "#bf8700", Category: "communications",
	},
	"globalstar": {
		Slug: "globalstar", DisplayName: "Globalstar",
		UpstreamQueryPredicate: "OBJECT_NAME/contains/GLOBALSTAR",
		Color:                  "#bf8700", Category: "communications",
	},
	"galileo": {
		Slug: "galileo", DisplayName: "Galileo",
		UpstreamQueryPredicate: "OBJECT_NAME/contains/GALILEO",
		Color:                  "#2da44e", Category: "navigation",
	},
	"beidou": {
		Slug: "beidou", DisplayName: "BeiDou",
		UpstreamQueryPredicate: "OBJECT_NAME/contains/BEIDOU",
		Color:                  "#2da44e", Category: "navigation",
	},
	"glonass": {
		Slug: "glonass", DisplayName: "GLONASS",
		UpstreamQueryPredicate: "OBJECT_NAME/contains/COSMOS",
		Color:                  "#2da44e", Category: "navigation",
		Description: "COSMOS over-matches many unrelated satellites; known upstream limitation.",
	},
}

// Registry is a set of constellation entries keyed by slug.
type Registry struct {
	entries map[string]Entry
}

// New returns a Registry seeded with the built-in constellation table.
func New() *Registry {
	r := &Registry{entries: make(map[string]Entry, len(defaults))}
	for slug, e := range defaults {
		r.entries[slug] = e
	}
	return r
}

// LoadOverrides reads a YAML file of entries and merges them in,
// overwriting any built-in entry with the same slug and adding new ones.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading constellations file %s: %w", path, err)
	}

	var overrides []Entry
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing constellations file %s: %w", path, err)
	}

	for _, e := range overrides {
		if e.Slug == "" {
			return fmt.Errorf("constellations file %s: entry missing slug", path)
		}
		r.entries[e.Slug] = e
	}
	return nil
}

// Get returns the entry for slug and whether it was found.
func (r *Registry) Get(slug string) (Entry, bool) {
	e, ok := r.entries[slug]
	return e, ok
}

// Slugs returns every configured slug, in no particular order.
func (r *Registry) Slugs() []string {
	slugs := make([]string, 0, len(r.entries))
	for slug := range r.entries {
		slugs = append(slugs, slug)
	}
	return slugs
}

// PriorityConfigured returns the priority slugs that are actually present
// in this registry, followed by any remaining configured slugs not in the
// priority list — the order the Initial Loader hydrates in.
func (r *Registry) PriorityConfigured() []string {
	ordered := make([]string, 0, len(r.entries))
	seen := make(map[string]bool, len(r.entries))

	for _, slug := range PriorityOrder {
		if _, ok := r.entries[slug]; ok {
			ordered = append(ordered, slug)
			seen[slug] = true
		}
	}
	var remaining []string
	for slug := range r.entries {
		if !seen[slug] {
			remaining = append(remaining, slug)
		}
	}
	sort.Strings(remaining)
	ordered = append(ordered, remaining...)
	return ordered
}
