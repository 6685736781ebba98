package store

import "time"

// User represents a streaming-service-linked user.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	StreamingID string    `json:"streaming_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtistCatalogEntry is a row from the read-only artists catalog populated
// by the ingestion scripts (out of scope here; the core only reads it).
type ArtistCatalogEntry struct {
	ID         string     `json:"id"`
	MetadataID string     `json:"metadata_id"`
	Name       string     `json:"name"`
	Genres     []GenreTag `json:"genres"`
	EnrichedAt *time.Time `json:"enriched_at,omitempty"`
}

// GenreTag is a single genre association with a weight, as stored in the
// artists catalog's jsonb genres column.
type GenreTag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// RequestParams is the user-supplied generation request, embedded as jsonb
// on the requests table.
type RequestParams struct {
	MinReleaseYear  int    `json:"min_release_year"`
	MinTrackSeconds int    `json:"min_track_seconds"`
	MaxTrackSeconds int    `json:"max_track_seconds"`
	Language        string `json:"language"`
	Genre           string `json:"genre"`
	NicheLevel      string `json:"niche_level"`
	Public          bool   `json:"public"`
}

// RequestStats is the mutable running-stats sub-document on a request.
type RequestStats struct {
	PercentArtistsValid    *float64 `json:"percent_artists_valid,omitempty"`
	AverageArtistFollowers *float64 `json:"average_artist_followers,omitempty"`
}

// Request represents a persisted playlist generation request.
type Request struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	Params     RequestParams `json:"params"`
	Stats      RequestStats  `json:"stats"`
	PlaylistID *string       `json:"playlist_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Playlist represents a materialized playlist on the streaming service,
// mirrored locally for bookkeeping.
type Playlist struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	Name                  string    `json:"name"`
	Description           string    `json:"description"`
	StreamingID           string    `json:"streaming_id"`
	StreamingURL          string    `json:"streaming_url"`
	RequestID             string    `json:"request_id"`
	GeneratedLength       int       `json:"generated_length"`
	TimeToGenerateMinutes *float64  `json:"time_to_generate_minutes,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// ExcludedArtist is one entry in a requests_cache entry's excluded list.
type ExcludedArtist struct {
	Name           string    `json:"name"`
	MetadataID     string    `json:"metadata_id"`
	ReasonExcluded string    `json:"reason_excluded"`
	DateExcluded   time.Time `json:"date_excluded"`
}

// ExclusionCacheEntry is a persisted requests_cache row: the set of artists
// excluded for a given (language, genre, niche_level) key.
type ExclusionCacheEntry struct {
	ID         string           `json:"id"`
	Language   string           `json:"language"`
	Genre      string           `json:"genre"`
	NicheLevel string           `json:"niche_level"`
	Excluded   []ExcludedArtist `json:"excluded"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CreateUserParams for creating a user.
type CreateUserParams struct {
	ID          string
	DisplayName string
	StreamingID string
}

// UpsertArtistCatalogEntryParams for upserting a catalog artist (used, in a
// full deployment, by the out-of-scope ingestion scripts).
type UpsertArtistCatalogEntryParams struct {
	ID         string
	MetadataID string
	Name       string
	Genres     []GenreTag
}

// CreateRequestParams for creating a request.
type CreateRequestParams struct {
	ID     string
	UserID string
	Params RequestParams
}

// UpdateRequestStatsParams for updating a request's running stats.
type UpdateRequestStatsParams struct {
	ID                     string
	PercentArtistsValid    *float64
	AverageArtistFollowers *float64
}

// LinkRequestPlaylistParams links a request to its generated playlist, or
// clears the link when PlaylistID is nil (on playlist deletion).
type LinkRequestPlaylistParams struct {
	RequestID  string
	PlaylistID *string
}

// CreatePlaylistParams for creating a playlist record.
type CreatePlaylistParams struct {
	ID                    string
	UserID                string
	Name                  string
	Description           string
	StreamingID           string
	StreamingURL          string
	RequestID             string
	GeneratedLength       int
	TimeToGenerateMinutes *float64
}

// UpdatePlaylistLengthParams for refreshing a playlist's generated_length
// after an add/remove.
type UpdatePlaylistLengthParams struct {
	ID              string
	GeneratedLength int
}

// DeletePlaylistParams for deleting a playlist record.
type DeletePlaylistParams struct {
	ID string
}

// ListArtistsByGenreParams for the ArtistCatalog genre-membership query.
type ListArtistsByGenreParams struct {
	Genre string
	Limit int32
}

// RecentPercentArtistsValidParams for the target-sizing historical lookup.
type RecentPercentArtistsValidParams struct {
	Genre string
	Limit int32
}

// EnsureExclusionEntryParams for the exclusion-cache idempotent create.
type EnsureExclusionEntryParams struct {
	ID         string
	Language   string
	Genre      string
	NicheLevel string
}

// PutExcludedArtistParams upserts a single excluded artist within an entry's
// excluded list, by metadata_id, last-writer-wins.
type PutExcludedArtistParams struct {
	EntryID  string
	Excluded ExcludedArtist
}

// RemoveExcludedArtistParams removes a single excluded artist from an
// entry's excluded list by metadata_id.
type RemoveExcludedArtistParams struct {
	EntryID    string
	MetadataID string
}
