// Package validator holds the decision functions the finder runs against
// each candidate artist and track: popularity band checks, likeness,
// genre membership, language, and track-level filters.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/nichefm/nichefm/internal/domain"
	"github.com/nichefm/nichefm/internal/genre"
)

// Reason is an exact, persisted exclusion reason string.
type Reason string

const (
	ReasonTooManySomething Reason = "Too Many Followers / Listeners / Plays"
	ReasonTooFewSomething  Reason = "Too Few Followers / Listeners / Plays"
	ReasonNotLikedEnough   Reason = "Ratio of Listeners to Plays Too Small"
	ReasonWrongLanguage    Reason = "Artist Does Not Sing in the Requested Language"
	ReasonOther            Reason = "Other"
)

// Params carries the request-derived thresholds a Validator checks against.
// ScrobbleGenre is request.Genre pre-converted through the genre catalog,
// since the conversion direction depends on whether the
// request's genre is a streaming seed genre or a metadata/scrobble tag.
type Params struct {
	Bands         domain.Bands
	LikenessMin   float64
	Language      domain.Language
	ScrobbleGenre string
	MinYear       int
	MinSeconds    int
	MaxSeconds    int
}

// Validator runs the decision functions for one request.
type Validator struct {
	params   Params
	catalog  *genre.Catalog
	metadata domain.MetadataAdapter
}

// New constructs a Validator for the given request parameters.
func New(params Params, catalog *genre.Catalog, metadata domain.MetadataAdapter) *Validator {
	return &Validator{params: params, catalog: catalog, metadata: metadata}
}

// TooPopularScrobble reports whether both the listener and playcount
// figures exceed this niche level's band ceiling.
func (v *Validator) TooPopularScrobble(stats domain.ArtistStats) bool {
	return stats.Listeners > v.params.Bands.ListenersMax && stats.Playcount > v.params.Bands.PlaycountMax
}

// TooUnknownScrobble reports whether both figures fall below this niche
// level's band floor.
func (v *Validator) TooUnknownScrobble(stats domain.ArtistStats) bool {
	return stats.Listeners < v.params.Bands.ListenersMin && stats.Playcount < v.params.Bands.PlaycountMin
}

// LikenessLow reports whether playcount/listeners falls below the request's
// likeness floor — a low ratio means most listeners only sampled the
// artist rather than returning to them.
func (v *Validator) LikenessLow(artist domain.Artist) bool {
	return artist.Likeness() < v.params.LikenessMin
}

// NotInGenre reports whether none of the artist's scrobble-service tags
// match the request's genre, converted into the scrobble vocabulary.
func (v *Validator) NotInGenre(stats domain.ArtistStats) bool {
	for _, tag := range stats.Tags {
		if strings.EqualFold(tag, v.params.ScrobbleGenre) {
			return false
		}
	}
	return true
}

// TooPopularStreaming reports whether the streaming-service follower count
// exceeds this niche level's ceiling.
func (v *Validator) TooPopularStreaming(streaming domain.StreamingArtist) bool {
	return streaming.Followers > v.params.Bands.FollowersMax
}

// TooUnknownStreaming reports whether the streaming-service follower count
// falls below this niche level's floor.
func (v *Validator) TooUnknownStreaming(streaming domain.StreamingArtist) bool {
	return streaming.Followers < v.params.Bands.FollowersMin
}

// LanguageReason checks whether the artist sings in the requested language,
// returning ReasonWrongLanguage (and true) if not. A request for
// domain.LanguageAny always passes.
func (v *Validator) LanguageReason(ctx context.Context, artist domain.Artist) (Reason, bool, error) {
	if v.params.Language == domain.LanguageAny {
		return "", false, nil
	}
	langs, err := v.metadata.ArtistLanguages(ctx, artist.MetadataID)
	if err != nil {
		return "", false, fmt.Errorf("validator: artist languages for %q: %w", artist.Name, err)
	}
	if _, ok := langs[v.params.Language]; !ok {
		return ReasonWrongLanguage, true, nil
	}
	return "", false, nil
}

// ArtistReasonScrobble runs the scrobble-facet checks in priority order —
// conglomerate biography, popularity ceiling, popularity floor, likeness,
// genre membership — and returns the first violated reason, or ("", false)
// if the artist passes.
func (v *Validator) ArtistReasonScrobble(artist domain.Artist) (Reason, bool) {
	stats, ok := artist.Scrobble()
	if !ok {
		return ReasonOther, true
	}
	switch {
	case domain.IsConglomeratePage(stats.Biography):
		return ReasonOther, true
	case v.TooPopularScrobble(stats):
		return ReasonTooManySomething, true
	case v.TooUnknownScrobble(stats):
		return ReasonTooFewSomething, true
	case v.LikenessLow(artist):
		return ReasonNotLikedEnough, true
	case v.NotInGenre(stats):
		return ReasonOther, true
	default:
		return "", false
	}
}

// ArtistReasonStreaming runs the streaming-facet popularity checks, the
// final gate applied once an artist is cross-confirmed on the streaming
// service.
func (v *Validator) ArtistReasonStreaming(artist domain.Artist) (Reason, bool) {
	streaming, ok := artist.Streaming()
	if !ok {
		return ReasonOther, true
	}
	switch {
	case v.TooPopularStreaming(streaming):
		return ReasonTooManySomething, true
	case v.TooUnknownStreaming(streaming):
		return ReasonTooFewSomething, true
	default:
		return "", false
	}
}

// ValidateTrack applies the track-level gate: must be an original
// recording with lyrics, within the requested duration band, released no
// earlier than the requested minimum year.
func (v *Validator) ValidateTrack(track domain.Track) bool {
	if !track.IsOriginalWithLyrics() {
		return false
	}
	st, ok := track.Streaming()
	if !ok {
		return false
	}
	seconds := st.DurationMs / 1000
	if seconds < v.params.MinSeconds || seconds > v.params.MaxSeconds {
		return false
	}
	if st.ReleaseYear < v.params.MinYear {
		return false
	}
	return true
}
