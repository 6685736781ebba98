package domain

import (
	"context"
	"fmt"
	"strings"
)

// nonOriginalKeywords flags scrobble-service track titles that are not an
// artist's own sung recording — covers, instrumentals, alternate versions,
// soundtracks, and similar — verbatim from the source system's is_original_with_lyrics
// exclusion list.
var nonOriginalKeywords = []string{
	"instrumental", "cover", "inst.", "cov.", "ver.", "version", "dub",
	"background music", "no vocals", "alternative version", "soundtrack",
}

// Track is a lazily and idempotently enriched carrier for a single
// candidate song, mirroring Artist's enrichment discipline.
type Track struct {
	Name       string
	ArtistName string
	MetadataID string

	streaming *StreamingTrack
}

// NewTrack constructs a Track from its scrobble-service identity.
func NewTrack(name, artistName string) (Track, error) {
	if name == "" || artistName == "" {
		return Track{}, fmt.Errorf("domain: track missing name or artist")
	}
	return Track{Name: name, ArtistName: artistName}, nil
}

// IsOriginalWithLyrics reports whether the track's title does not match any
// known non-original marker (cover, instrumental, version, and so on).
// Matching is case-insensitive and checks for the marker anywhere in the
// title, since markers commonly appear parenthetically.
func (t Track) IsOriginalWithLyrics() bool {
	lower := strings.ToLower(t.Name)
	for _, kw := range nonOriginalKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// WithStreaming attaches the streaming-service facet by searching for the
// track by name and artist and taking the first cross-confirmed match: a
// result whose artist list contains a name matching t.ArtistName.
func (t Track) WithStreaming(ctx context.Context, adapter StreamingAdapter, limit int) (Track, error) {
	if t.streaming != nil {
		return t, nil
	}
	results, err := adapter.SearchTracks(ctx, t.Name, t.ArtistName, limit)
	if err != nil {
		return t, fmt.Errorf("search streaming track %q: %w", t.Name, err)
	}
	for _, r := range results {
		for _, name := range r.ArtistNames {
			if NamesMatch(name, t.ArtistName) {
				match := r
				t.streaming = &match
				return t, nil
			}
		}
	}
	return t, fmt.Errorf("no streaming match for %q by %q", t.Name, t.ArtistName)
}

// WithStreamingResult attaches a streaming facet already obtained by the
// caller (e.g. a recommendation result keyed directly by streaming-service
// track id), skipping the search-based cross-confirmation in WithStreaming.
func (t Track) WithStreamingResult(st StreamingTrack) (Track, error) {
	if t.streaming != nil {
		return t, nil
	}
	t.streaming = &st
	return t, nil
}

// Streaming returns the attached streaming facet, or ok=false if not yet
// attached.
func (t Track) Streaming() (StreamingTrack, bool) {
	if t.streaming == nil {
		return StreamingTrack{}, false
	}
	return *t.streaming, true
}
