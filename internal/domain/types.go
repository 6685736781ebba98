// Package domain holds the in-memory carrier types the finder threads
// through its pipeline: Artist and Track, lazily and idempotently enriched
// from the metadata, scrobble, and streaming service adapters, plus the
// small value types (Language, NicheLevel) that parameterize a request.
package domain

import "strings"

// Language is the closed set of languages a request can filter on.
type Language string

const (
	LanguageAny     Language = "any"
	LanguageEnglish Language = "english"
	LanguageOther   Language = "other"
)

// NicheLevel is the coarse, three-valued popularity band a request selects.
type NicheLevel string

const (
	NicheVery        NicheLevel = "very"
	NicheModerately  NicheLevel = "moderately"
	NicheOnlyKinda   NicheLevel = "only_kinda"
)

// Bands are the per-niche-level popularity thresholds, verbatim from the
// source system's niche_level_map.
type Bands struct {
	ListenersMin  int
	ListenersMax  int
	PlaycountMin  int
	PlaycountMax  int
	FollowersMin  int
	FollowersMax  int
}

// NicheLevelBands is the hard-coded table of popularity bands per niche
// level (spec §4.5).
var NicheLevelBands = map[NicheLevel]Bands{
	NicheVery: {
		ListenersMin: 1_000, ListenersMax: 50_000,
		PlaycountMin: 10_000, PlaycountMax: 500_000,
		FollowersMin: 100, FollowersMax: 5_000,
	},
	NicheModerately: {
		ListenersMin: 3_000, ListenersMax: 150_000,
		PlaycountMin: 30_000, PlaycountMax: 1_500_000,
		FollowersMin: 1_000, FollowersMax: 15_000,
	},
	NicheOnlyKinda: {
		ListenersMin: 9_000, ListenersMax: 450_000,
		PlaycountMin: 90_000, PlaycountMax: 4_500_000,
		FollowersMin: 10_000, FollowersMax: 45_000,
	},
}

// Hard defaults (spec §4.5).
const (
	LikenessMin             = 3.5
	PlaylistMinLength       = 20
	PlaylistMaxLength       = 60
	MinSongsForPlaylistGen  = 4
)

// NamesMatch compares two artist names case- and whitespace-insensitively,
// the gate used before trusting a cross-service artist-id attachment
// (spec §1.3, grounded on the source system's strcomp).
func NamesMatch(a, b string) bool {
	return normalizeName(a) == normalizeName(b)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
