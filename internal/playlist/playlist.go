// Package playlist implements the Request and Playlist lifecycle: creating
// a generation request, maintaining its running statistics, and
// materializing a selected track list as a streaming-service playlist.
package playlist

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nichefm/nichefm/internal/domain"
	"github.com/nichefm/nichefm/pkg/kvkeys"
	"github.com/nichefm/nichefm/pkg/objstore"
	"github.com/nichefm/nichefm/pkg/store"
)

// CreateRequestParams is the user-supplied generation request.
type CreateRequestParams struct {
	UserID          string
	MinReleaseYear  int
	MinTrackSeconds int
	MaxTrackSeconds int
	Language        string
	Genre           string
	NicheLevel      string
	Public          bool
}

// requestStore is the narrow persistence surface Requests needs, satisfied
// by *store.Store; a separate interface here lets tests substitute an
// in-memory fake instead of a live Postgres connection.
type requestStore interface {
	CreateRequest(ctx context.Context, p store.CreateRequestParams) (store.Request, error)
	GetRequestByID(ctx context.Context, id string) (store.Request, error)
	UpdateRequestStats(ctx context.Context, p store.UpdateRequestStatsParams) (store.Request, error)
}

// Requests manages the lifecycle of generation requests.
type Requests struct {
	store requestStore
}

// NewRequests constructs a Requests service.
func NewRequests(s requestStore) *Requests {
	return &Requests{store: s}
}

// Create persists a new generation request and returns its handle.
func (r *Requests) Create(ctx context.Context, p CreateRequestParams) (store.Request, error) {
	req, err := r.store.CreateRequest(ctx, store.CreateRequestParams{
		ID:     uuid.NewString(),
		UserID: p.UserID,
		Params: store.RequestParams{
			MinReleaseYear:  p.MinReleaseYear,
			MinTrackSeconds: p.MinTrackSeconds,
			MaxTrackSeconds: p.MaxTrackSeconds,
			Language:        p.Language,
			Genre:           p.Genre,
			NicheLevel:      p.NicheLevel,
			Public:          p.Public,
		},
	})
	if err != nil {
		return store.Request{}, fmt.Errorf("playlist: create request: %w", err)
	}
	return req, nil
}

// UpdateStats applies the request's running-mean stats update. Either
// argument may be nil to leave that figure untouched; when newFollowers is
// non-nil, previousCount is the number of tracks selected before this one.
func (r *Requests) UpdateStats(ctx context.Context, requestID string, newFollowers *int, previousCount int, newValidPercent *float64) (store.Request, error) {
	current, err := r.store.GetRequestByID(ctx, requestID)
	if err != nil {
		return store.Request{}, fmt.Errorf("playlist: update stats: load request: %w", err)
	}

	p := store.UpdateRequestStatsParams{ID: requestID}
	if newFollowers != nil {
		mean := runningMean(current.Stats.AverageArtistFollowers, previousCount, float64(*newFollowers))
		p.AverageArtistFollowers = &mean
	} else {
		p.AverageArtistFollowers = current.Stats.AverageArtistFollowers
	}
	if newValidPercent != nil {
		p.PercentArtistsValid = newValidPercent
	} else {
		p.PercentArtistsValid = current.Stats.PercentArtistsValid
	}

	req, err := r.store.UpdateRequestStats(ctx, p)
	if err != nil {
		return store.Request{}, fmt.Errorf("playlist: update stats: %w", err)
	}
	return req, nil
}

// runningMean computes new_mean = (old_mean*prev_n + x) / (prev_n + 1),
// treating an absent old mean as the identity starting point.
func runningMean(oldMean *float64, prevN int, x float64) float64 {
	old := 0.0
	if oldMean != nil {
		old = *oldMean
	}
	return (old*float64(prevN) + x) / float64(prevN+1)
}

// SelectedTrack is one track chosen by the finder, ready to be
// materialized into a streaming playlist.
type SelectedTrack struct {
	ArtistName string
	TrackName  string
	URI        string
	URL        string
}

// playlistStore is the narrow persistence surface Playlists needs.
type playlistStore interface {
	CreatePlaylist(ctx context.Context, p store.CreatePlaylistParams) (store.Playlist, error)
	UpdatePlaylistLength(ctx context.Context, p store.UpdatePlaylistLengthParams) error
	DeletePlaylist(ctx context.Context, p store.DeletePlaylistParams) error
	LinkRequestPlaylist(ctx context.Context, p store.LinkRequestPlaylistParams) error
}

// Playlists manages the lifecycle of materialized streaming playlists.
type Playlists struct {
	store     playlistStore
	streaming domain.StreamingAdapter
	covers    objstore.ObjectStore
}

// NewPlaylists constructs a Playlists service. covers may be nil to
// disable cover-image lookup entirely.
func NewPlaylists(s playlistStore, streaming domain.StreamingAdapter, covers objstore.ObjectStore) *Playlists {
	return &Playlists{store: s, streaming: streaming, covers: covers}
}

const maxAddBatch = 100

// Create materializes tracks as a streaming playlist: creates it, adds the
// tracks in batches, best-effort-uploads a cached cover image, persists the
// local record, and links it back to the request.
func (p *Playlists) Create(ctx context.Context, userID, name, description, genreSlug string, tracks []SelectedTrack, request store.Request) (store.Playlist, error) {
	pl, err := p.streaming.PlaylistCreate(ctx, userID, name, description)
	if err != nil {
		return store.Playlist{}, fmt.Errorf("playlist: create on streaming service: %w", err)
	}

	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		uris = append(uris, t.URI)
	}
	for start := 0; start < len(uris); start += maxAddBatch {
		end := min(start+maxAddBatch, len(uris))
		if err := p.streaming.PlaylistAddItems(ctx, pl.ID, uris[start:end]); err != nil {
			return store.Playlist{}, fmt.Errorf("playlist: add items: %w", err)
		}
	}

	p.uploadCoverBestEffort(ctx, pl.ID, genreSlug)

	record, err := p.store.CreatePlaylist(ctx, store.CreatePlaylistParams{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            name,
		Description:     description,
		StreamingID:     pl.ID,
		StreamingURL:    pl.URL,
		RequestID:       request.ID,
		GeneratedLength: len(tracks),
	})
	if err != nil {
		return store.Playlist{}, fmt.Errorf("playlist: persist record: %w", err)
	}
	return record, nil
}

// uploadCoverBestEffort looks up a pre-rendered cover image for the genre
// in the object store and uploads it if present. A miss or any failure is
// logged and swallowed: the playlist is valid without a cover.
func (p *Playlists) uploadCoverBestEffort(ctx context.Context, streamingPlaylistID, genreSlug string) {
	if p.covers == nil {
		slog.Warn("playlist: no cover object store configured, skipping cover upload")
		return
	}
	key := kvkeys.CoverImage(genreSlug)
	exists, err := p.covers.Exists(ctx, key)
	if err != nil || !exists {
		slog.Warn("playlist: no cached cover image for genre, skipping", "genre", genreSlug)
		return
	}
	size, err := p.covers.Size(ctx, key)
	if err != nil {
		slog.Warn("playlist: could not stat cached cover image", "genre", genreSlug, "err", err)
		return
	}
	rc, err := p.covers.GetRange(ctx, key, 0, size)
	if err != nil {
		slog.Warn("playlist: could not read cached cover image", "genre", genreSlug, "err", err)
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		slog.Warn("playlist: could not read cached cover image", "genre", genreSlug, "err", err)
		return
	}
	if err := p.streaming.PlaylistUploadCoverImage(ctx, streamingPlaylistID, data); err != nil {
		slog.Warn("playlist: cover upload failed", "genre", genreSlug, "err", err)
	}
}

// AddTrack appends a single track to an existing playlist on both the
// streaming service and the local record.
func (p *Playlists) AddTrack(ctx context.Context, pl store.Playlist, uri string) (store.Playlist, error) {
	if err := p.streaming.PlaylistAddItems(ctx, pl.StreamingID, []string{uri}); err != nil {
		return store.Playlist{}, fmt.Errorf("playlist: add track: %w", err)
	}
	if err := p.store.UpdatePlaylistLength(ctx, store.UpdatePlaylistLengthParams{
		ID: pl.ID, GeneratedLength: pl.GeneratedLength + 1,
	}); err != nil {
		return store.Playlist{}, fmt.Errorf("playlist: persist length: %w", err)
	}
	pl.GeneratedLength++
	return pl, nil
}

// Delete unfollows the playlist on the streaming service, deletes the
// local record, and clears the link on its request.
func (p *Playlists) Delete(ctx context.Context, pl store.Playlist) error {
	if err := p.streaming.PlaylistUnfollow(ctx, pl.StreamingID); err != nil {
		return fmt.Errorf("playlist: unfollow: %w", err)
	}
	if err := p.store.DeletePlaylist(ctx, store.DeletePlaylistParams{ID: pl.ID}); err != nil {
		return fmt.Errorf("playlist: delete record: %w", err)
	}
	if err := p.store.LinkRequestPlaylist(ctx, store.LinkRequestPlaylistParams{
		RequestID: pl.RequestID, PlaylistID: nil,
	}); err != nil {
		return fmt.Errorf("playlist: clear request link: %w", err)
	}
	return nil
}
