package domain

import "context"

// ArtistStats is the scrobble-service facet of an artist.
type ArtistStats struct {
	Listeners int
	Playcount int
	Tags      []string
	Biography string
}

// StreamingArtist is the streaming-service facet of an artist.
type StreamingArtist struct {
	ID        string
	Name      string
	Followers int
}

// StreamingTrack is a track as returned by the streaming service.
type StreamingTrack struct {
	URI           string
	URL           string
	Name          string
	ArtistIDs     []string
	ArtistNames   []string
	DurationMs    int
	ReleaseYear   int
}

// ScrobbleAdapter is the narrow surface the domain carriers need from the
// scrobble-service adapter (C1).
type ScrobbleAdapter interface {
	ArtistInfo(ctx context.Context, metadataID, name string) (ArtistStats, error)
	ArtistTopTracks(ctx context.Context, metadataID, name string, limit int) ([]Track, error)
}

// Playlist is a streaming-service playlist as returned by PlaylistCreate.
type Playlist struct {
	ID  string
	URL string
}

// StreamingAdapter is the full surface the finder and playlist lifecycle
// need from the streaming-service adapter (C1).
type StreamingAdapter interface {
	SearchTracks(ctx context.Context, name, artist string, limit int) ([]StreamingTrack, error)
	Artist(ctx context.Context, id string) (StreamingArtist, error)
	ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]StreamingTrack, error)
	Recommendations(ctx context.Context, seedArtistIDs, seedGenres []string, minDurationMs, maxDurationMs, limit int) ([]StreamingTrack, error)

	PlaylistCreate(ctx context.Context, userID, name, description string) (Playlist, error)
	PlaylistAddItems(ctx context.Context, playlistID string, trackURIs []string) error
	PlaylistRemove(ctx context.Context, playlistID string, trackURIs []string) error
	PlaylistUnfollow(ctx context.Context, playlistID string) error
	PlaylistUploadCoverImage(ctx context.Context, playlistID string, jpeg []byte) error
	PlaylistItems(ctx context.Context, playlistID string) ([]StreamingTrack, error)
}

// MetadataAdapter is the narrow surface the validator needs from the
// metadata-service adapter (C1).
type MetadataAdapter interface {
	ArtistLanguages(ctx context.Context, metadataID string) (map[Language]float64, error)
}
