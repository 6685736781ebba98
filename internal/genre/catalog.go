// Package genre holds the static cross-service genre name table: every
// genre the finder can be asked for is expressed under up to three names
// (the streaming service's seed-genre name, the metadata service's tag
// vocabulary, the scrobble service's tag vocabulary), and this package is
// the only place that bridges them.
package genre

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed genres.json
var genresJSON []byte

// Service identifies which of the three name columns a genre string
// belongs to.
type Service string

const (
	Streaming Service = "streaming"
	Metadata  Service = "metadata"
	Scrobble  Service = "scrobble"
)

// Row is one genre's names across the three services. A row's Streaming
// name may be empty (not every tag is a streaming-service seed genre).
type Row struct {
	Streaming string `json:"streaming"`
	Metadata  string `json:"metadata"`
	Scrobble  string `json:"scrobble"`
}

// Catalog is the loaded, validated genre table.
type Catalog struct {
	rows []Row
}

// Load parses and validates the embedded genre table. It panics on a
// malformed or duplicate-primary-name table, matching this codebase's
// fail-fast posture for corrupt embedded resources: a bad table is a build
// defect, not a runtime condition to recover from.
func Load() *Catalog {
	var rows []Row
	if err := json.Unmarshal(genresJSON, &rows); err != nil {
		panic(fmt.Sprintf("genre: invalid embedded genres.json: %v", err))
	}
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		primary := primaryName(r)
		if primary == "" {
			panic("genre: row with no non-empty name: " + fmt.Sprintf("%+v", r))
		}
		if seen[primary] {
			panic("genre: duplicate primary name " + primary)
		}
		seen[primary] = true
	}
	return &Catalog{rows: rows}
}

func primaryName(r Row) string {
	if r.Streaming != "" {
		return r.Streaming
	}
	return r.Metadata
}

// IsStreamingSeed reports whether name is a valid streaming-service seed
// genre in the catalog.
func (c *Catalog) IsStreamingSeed(name string) bool {
	for _, r := range c.rows {
		if r.Streaming == name {
			return true
		}
	}
	return false
}

// Convert translates name from one service's vocabulary to another's. It
// returns ("", false) if no row matches name under the from column.
func (c *Catalog) Convert(from, to Service, name string) (string, bool) {
	for _, r := range c.rows {
		if columnValue(r, from) == name {
			v := columnValue(r, to)
			return v, v != ""
		}
	}
	return "", false
}

func columnValue(r Row, s Service) string {
	switch s {
	case Streaming:
		return r.Streaming
	case Metadata:
		return r.Metadata
	case Scrobble:
		return r.Scrobble
	default:
		return ""
	}
}

// AllSupported returns the primary name of every row: the streaming name
// when present, falling back to the metadata name.
func (c *Catalog) AllSupported() []string {
	out := make([]string, 0, len(c.rows))
	for _, r := range c.rows {
		out = append(out, primaryName(r))
	}
	return out
}

// Supports reports whether name is a primary name in the catalog — the
// gate used by Request validation.
func (c *Catalog) Supports(name string) bool {
	for _, n := range c.AllSupported() {
		if n == name {
			return true
		}
	}
	return false
}
