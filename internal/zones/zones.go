// Package zones provides the static zone-to-region lookup consulted when a
// region filter is requested. The mapping is externally configured; this
// package only reads it.
package zones

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Map is an immutable region → zones mapping with a reverse index.
type Map struct {
	byRegion map[string][]string
	byZone   map[string]string
}

// New builds a Map from a region → zones mapping.
func New(regions map[string][]string) *Map {
	m := &Map{
		byRegion: make(map[string][]string, len(regions)),
		byZone:   make(map[string]string),
	}
	for region, zs := range regions {
		m.byRegion[region] = append([]string(nil), zs...)
		for _, zone := range zs {
			m.byZone[zone] = region
		}
	}
	return m
}

// Load reads the mapping from a JSON file shaped {"Region 1": ["Zone A", ...]}.
// A missing file yields an empty map: region filters then match nothing,
// which fails closed rather than guessing.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	var regions map[string][]string
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("parse zones file: %w", err)
	}
	return New(regions), nil
}

// Lookup returns the region a zone belongs to.
func (m *Map) Lookup(zone string) (string, bool) {
	region, ok := m.byZone[zone]
	return region, ok
}

// Zones returns the zones of a region, sorted.
func (m *Map) Zones(region string) []string {
	zs := append([]string(nil), m.byRegion[region]...)
	sort.Strings(zs)
	return zs
}

// Regions returns all known regions, sorted.
func (m *Map) Regions() []string {
	regions := make([]string, 0, len(m.byRegion))
	for region := range m.byRegion {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}
