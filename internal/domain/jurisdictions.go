package domain

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlaceholderFlag is shown for jurisdictions missing from the directory.
const PlaceholderFlag = "🌐"

type JurisdictionEntry struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Flag string `yaml:"flag" json:"flag"`
}

//go:embed jurisdictions.yaml
var jurisdictionsYAML []byte

// Directory is the static jurisdiction lookup table.
type Directory struct {
	entries []JurisdictionEntry
	byID    map[string]JurisdictionEntry
}

// ParseDirectory builds a Directory from YAML list entries.
func ParseDirectory(data []byte) (*Directory, error) {
	var entries []JurisdictionEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse jurisdiction directory: %w", err)
	}
	d := &Directory{byID: make(map[string]JurisdictionEntry, len(entries))}
	for _, e := range entries {
		e.ID = strings.ToLower(strings.TrimSpace(e.ID))
		if e.ID == "" {
			return nil, fmt.Errorf("parse jurisdiction directory: entry without id")
		}
		if _, dup := d.byID[e.ID]; dup {
			return nil, fmt.Errorf("parse jurisdiction directory: duplicate id %q", e.ID)
		}
		d.byID[e.ID] = e
		d.entries = append(d.entries, e)
	}
	return d, nil
}

var defaultDirectory = func() *Directory {
	d, err := ParseDirectory(jurisdictionsYAML)
	if err != nil {
		panic(err)
	}
	return d
}()

// DefaultDirectory returns the embedded directory.
func DefaultDirectory() *Directory { return defaultDirectory }

// Lookup resolves an identifier. Unknown ids fall back to the raw id and the
// placeholder glyph; ok reports whether the id was known.
func (d *Directory) Lookup(id string) (entry JurisdictionEntry, ok bool) {
	if d != nil {
		if e, found := d.byID[strings.ToLower(strings.TrimSpace(id))]; found {
			return e, true
		}
	}
	return JurisdictionEntry{ID: id, Name: id, Flag: PlaceholderFlag}, false
}

// All returns the entries in directory order.
func (d *Directory) All() []JurisdictionEntry {
	out := make([]JurisdictionEntry, len(d.entries))
	copy(out, d.entries)
	return out
}
