package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Artist is a lazily and idempotently enriched carrier. Each With* method
// is safe to call more than once — a facet already attached is never
// replaced, only returned, matching the "monotonic enrichment" design note.
type Artist struct {
	Name       string
	MetadataID string

	scrobble      *ArtistStats
	streaming     *StreamingArtist
	streamingFrom string // which track name produced the streaming attach, for diagnostics
}

// NewArtist constructs an Artist from its metadata-service identity.
func NewArtist(name, metadataID string) (Artist, error) {
	if name == "" || metadataID == "" {
		return Artist{}, fmt.Errorf("domain: artist missing name or metadata id")
	}
	return Artist{Name: name, MetadataID: metadataID}, nil
}

// WithScrobble attaches the scrobble-service facet, trying metadata_id
// first and falling back to name on miss, per the adapter's fallback
// discipline (spec §4.1).
func (a Artist) WithScrobble(ctx context.Context, adapter ScrobbleAdapter) (Artist, error) {
	if a.scrobble != nil {
		return a, nil
	}
	stats, err := adapter.ArtistInfo(ctx, a.MetadataID, a.Name)
	if err != nil {
		return a, fmt.Errorf("attach scrobble artist %q: %w", a.Name, err)
	}
	a.scrobble = &stats
	return a, nil
}

// Scrobble returns the attached scrobble facet, or ok=false if not yet
// attached.
func (a Artist) Scrobble() (ArtistStats, bool) {
	if a.scrobble == nil {
		return ArtistStats{}, false
	}
	return *a.scrobble, true
}

// Likeness is playcount / max(1, listeners) — a proxy for how repeatedly
// engaged the artist's listeners are. Requires scrobble enrichment.
func (a Artist) Likeness() float64 {
	s, ok := a.Scrobble()
	if !ok || s.Listeners == 0 {
		if ok {
			return float64(s.Playcount)
		}
		return 0
	}
	return float64(s.Playcount) / float64(s.Listeners)
}

// WithStreamingFromTrack attaches the streaming facet by cross-confirming
// through a track believed to be by this artist: the streaming artist id is
// extracted from the track's artist list and only trusted once the
// resulting streaming-artist name matches this carrier's name
// (case/whitespace-insensitive), per the "cross-confirmation" discipline
// (spec §1.3).
func (a Artist) WithStreamingFromTrack(ctx context.Context, adapter StreamingAdapter, track StreamingTrack) (Artist, error) {
	if a.streaming != nil {
		return a, nil
	}
	if !NamesMatch(a.Name, firstNonEmpty(track.ArtistNames)) {
		return a, fmt.Errorf("track %q artist %v does not match %q", track.Name, track.ArtistNames, a.Name)
	}
	var streamingID string
	for i, name := range track.ArtistNames {
		if NamesMatch(name, a.Name) && i < len(track.ArtistIDs) {
			streamingID = track.ArtistIDs[i]
			break
		}
	}
	if streamingID == "" {
		return a, fmt.Errorf("could not find artist %q in track %q artists", a.Name, track.Name)
	}
	sa, err := adapter.Artist(ctx, streamingID)
	if err != nil {
		return a, fmt.Errorf("fetch streaming artist %s: %w", streamingID, err)
	}
	if !NamesMatch(sa.Name, a.Name) {
		return a, fmt.Errorf("streaming artist %q does not match %q", sa.Name, a.Name)
	}
	a.streaming = &sa
	a.streamingFrom = track.Name
	return a, nil
}

// Streaming returns the attached streaming facet, or ok=false if not yet
// attached.
func (a Artist) Streaming() (StreamingArtist, bool) {
	if a.streaming == nil {
		return StreamingArtist{}, false
	}
	return *a.streaming, true
}

func firstNonEmpty(ss []string) string {
	if len(ss) > 0 {
		return ss[0]
	}
	return ""
}

// conglomerateRegex recognizes scrobble-service biography pages that mix
// multiple unrelated artists under one name, e.g. "There are at least two
// bands named Paradise." Verbatim from the source system's
// lastfm_page_is_conglomerate pattern.
var conglomerateRegex = regexp.MustCompile(`(?is)^there\s+(?:is|are)\s+(?:(?:at\s+least\s+)?(?:\d+|` +
	numberWordsPattern + `)|multiple|many|several|numerous|a\s+couple|a\s+few)\s+` +
	`(?:bands|artists|groups|singers|musicians|duos)` +
	`(?:\s+(?:and|or)\s+(?:bands|artists|groups|singers|musicians|duos))?` +
	`\s+(?:named|called)(?:\s+\S+)*\s*[.,:]*`)

const numberWordsPattern = `one|two|three|four|five|six|seven|eight|nine|ten|` +
	`eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty|` +
	`thirty|forty|fifty|sixty|seventy|eighty|ninety|hundred|thousand|million|billion|trillion`

// IsConglomeratePage reports whether a scrobble-service biography string
// (summary or full content) matches the disambiguation-page pattern.
func IsConglomeratePage(biography string) bool {
	return conglomerateRegex.MatchString(strings.TrimSpace(biography))
}
