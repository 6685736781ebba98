// Package streaming adapts the streaming-service port (domain.StreamingAdapter)
// onto the Spotify Web API via the zmb3/spotify/v2 client, authenticated
// with the client-credentials flow (this adapter only needs catalog reads
// and playlist writes under a pre-authorized user, never a 3-legged user
// login).
package streaming

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nichefm/nichefm/internal/domain"
	"github.com/nichefm/nichefm/internal/serviceerror"
	"github.com/nichefm/nichefm/pkg/ratelimit"
)

// wrapErr classifies a Spotify API error by its HTTP status (when the
// error carries one) into the shared serviceerror taxonomy, so callers
// upstream never need to know this adapter is backed by Spotify.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var spotifyErr spotify.Error
	if errors.As(err, &spotifyErr) {
		return serviceerror.New("streaming", serviceerror.FromStatus(spotifyErr.Status), err)
	}
	return serviceerror.New("streaming", serviceerror.Transient, err)
}

// Client is a rate-limited Spotify client satisfying domain.StreamingAdapter.
type Client struct {
	sp      *spotify.Client
	limiter ratelimit.Limiter
}

// New constructs a streaming-service client, exchanging clientID/clientSecret
// for an app-level token via the client-credentials flow.
func New(ctx context.Context, clientID, clientSecret string, limiter ratelimit.Limiter) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(ctx)
	return &Client{
		sp:      spotify.New(httpClient),
		limiter: limiter,
	}
}

func (c *Client) acquire(ctx context.Context) (func(), error) {
	return ratelimit.Scoped(ctx, c.limiter)
}

// SearchTracks implements domain.StreamingAdapter.
func (c *Client) SearchTracks(ctx context.Context, name, artist string, limit int) ([]domain.StreamingTrack, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	query := fmt.Sprintf("track:%s artist:%s", name, artist)
	res, err := c.sp.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("streaming: search %q: %w", query, wrapErr(err))
	}
	if res.Tracks == nil {
		return nil, nil
	}
	out := make([]domain.StreamingTrack, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		out = append(out, toStreamingTrack(t))
	}
	return out, nil
}

// Artist implements domain.StreamingAdapter.
func (c *Client) Artist(ctx context.Context, id string) (domain.StreamingArtist, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return domain.StreamingArtist{}, err
	}
	defer release()

	a, err := c.sp.GetArtist(ctx, spotify.ID(id))
	if err != nil {
		return domain.StreamingArtist{}, fmt.Errorf("streaming: get artist %s: %w", id, wrapErr(err))
	}
	return domain.StreamingArtist{
		ID:        string(a.ID),
		Name:      a.Name,
		Followers: int(a.Followers.Count),
	}, nil
}

// ArtistTopTracks implements domain.StreamingAdapter.
func (c *Client) ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]domain.StreamingTrack, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	tracks, err := c.sp.GetArtistsTopTracks(ctx, spotify.ID(artistID), "US")
	if err != nil {
		return nil, fmt.Errorf("streaming: top tracks %s: %w", artistID, wrapErr(err))
	}
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	out := make([]domain.StreamingTrack, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, toStreamingTrack(t))
	}
	return out, nil
}

// Recommendations implements domain.StreamingAdapter, seeding the
// recommendation engine with up to five artist ids and any genre seeds per
// the streaming service's combined seed-count cap, and constraining results
// to the requested track duration band.
func (c *Client) Recommendations(ctx context.Context, seedArtistIDs, seedGenres []string, minDurationMs, maxDurationMs, limit int) ([]domain.StreamingTrack, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if len(seedArtistIDs) > 5 {
		seedArtistIDs = seedArtistIDs[:5]
	}
	seeds := spotify.Seeds{
		Artists: make([]spotify.ID, 0, len(seedArtistIDs)),
		Genres:  seedGenres,
	}
	for _, id := range seedArtistIDs {
		seeds.Artists = append(seeds.Artists, spotify.ID(id))
	}

	var attrs *spotify.TrackAttributes
	if minDurationMs > 0 || maxDurationMs > 0 {
		attrs = spotify.NewTrackAttributes()
		if minDurationMs > 0 {
			attrs = attrs.MinDuration(minDurationMs)
		}
		if maxDurationMs > 0 {
			attrs = attrs.MaxDuration(maxDurationMs)
		}
	}

	recs, err := c.sp.GetRecommendations(ctx, seeds, attrs, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("streaming: recommendations: %w", wrapErr(err))
	}

	ids := make([]spotify.ID, 0, len(recs.Tracks))
	for _, t := range recs.Tracks {
		ids = append(ids, t.ID)
	}
	years := c.trackReleaseYears(ctx, ids)

	out := make([]domain.StreamingTrack, 0, len(recs.Tracks))
	for _, t := range recs.Tracks {
		st := toSimpleStreamingTrack(t)
		st.ReleaseYear = years[string(t.ID)]
		out = append(out, st)
	}
	return out, nil
}

// trackReleaseYears best-effort resolves release years for a batch of
// recommendation track ids via a follow-up full-track lookup, since a
// recommendation result carries only the simplified track shape with no
// album data. A failure here is swallowed: callers fall back to
// ReleaseYear=0, which validator.ValidateTrack rejects like any other
// too-old track.
func (c *Client) trackReleaseYears(ctx context.Context, ids []spotify.ID) map[string]int {
	years := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return years
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return years
	}
	defer release()

	tracks, err := c.sp.GetTracks(ctx, ids)
	if err != nil {
		return years
	}
	for _, t := range tracks {
		if t == nil || len(t.Album.ReleaseDate) < 4 {
			continue
		}
		if y, err := strconv.Atoi(t.Album.ReleaseDate[:4]); err == nil {
			years[string(t.ID)] = y
		}
	}
	return years
}

// PlaylistCreate implements domain.StreamingAdapter.
func (c *Client) PlaylistCreate(ctx context.Context, userID, name, description string) (domain.Playlist, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return domain.Playlist{}, err
	}
	defer release()

	pl, err := c.sp.CreatePlaylistForUser(ctx, userID, name, description, true, false)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("streaming: create playlist %q: %w", name, wrapErr(err))
	}
	return domain.Playlist{ID: string(pl.ID), URL: pl.ExternalURLs["spotify"]}, nil
}

// maxBatchSize is the streaming service's hard cap on items per
// playlist-mutation call.
const maxBatchSize = 100

// PlaylistAddItems implements domain.StreamingAdapter, batching in groups
// of maxBatchSize.
func (c *Client) PlaylistAddItems(ctx context.Context, playlistID string, trackURIs []string) error {
	for start := 0; start < len(trackURIs); start += maxBatchSize {
		end := min(start+maxBatchSize, len(trackURIs))
		if err := c.addBatch(ctx, playlistID, trackURIs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) addBatch(ctx context.Context, playlistID string, uris []string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ids := make([]spotify.ID, 0, len(uris))
	for _, uri := range uris {
		ids = append(ids, uri2ID(uri))
	}
	_, err = c.sp.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...)
	if err != nil {
		return fmt.Errorf("streaming: add items to playlist %s: %w", playlistID, wrapErr(err))
	}
	return nil
}

// PlaylistRemove implements domain.StreamingAdapter.
func (c *Client) PlaylistRemove(ctx context.Context, playlistID string, trackURIs []string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ids := make([]spotify.ID, 0, len(trackURIs))
	for _, uri := range trackURIs {
		ids = append(ids, uri2ID(uri))
	}
	_, err = c.sp.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), ids...)
	if err != nil {
		return fmt.Errorf("streaming: remove items from playlist %s: %w", playlistID, wrapErr(err))
	}
	return nil
}

// PlaylistUnfollow implements domain.StreamingAdapter.
func (c *Client) PlaylistUnfollow(ctx context.Context, playlistID string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := c.sp.UnfollowPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return fmt.Errorf("streaming: unfollow playlist %s: %w", playlistID, wrapErr(err))
	}
	return nil
}

// PlaylistUploadCoverImage implements domain.StreamingAdapter.
func (c *Client) PlaylistUploadCoverImage(ctx context.Context, playlistID string, jpeg []byte) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := c.sp.SetPlaylistImage(ctx, spotify.ID(playlistID), bytes.NewReader(jpeg)); err != nil {
		return fmt.Errorf("streaming: upload cover for playlist %s: %w", playlistID, wrapErr(err))
	}
	return nil
}

// PlaylistItems implements domain.StreamingAdapter. It fetches only the
// first page of the playlist, at most maxBatchSize items; later pages are
// not requested.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]domain.StreamingTrack, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := c.sp.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(maxBatchSize))
	if err != nil {
		return nil, fmt.Errorf("streaming: playlist items %s: %w", playlistID, wrapErr(err))
	}
	out := make([]domain.StreamingTrack, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Track.Track == nil {
			continue
		}
		out = append(out, toStreamingTrack(*item.Track.Track))
	}
	return out, nil
}

func toStreamingTrack(t spotify.FullTrack) domain.StreamingTrack {
	names := make([]string, 0, len(t.Artists))
	ids := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
		ids = append(ids, string(a.ID))
	}
	year := 0
	if len(t.Album.ReleaseDate) >= 4 {
		year, _ = strconv.Atoi(t.Album.ReleaseDate[:4])
	}
	return domain.StreamingTrack{
		URI:         string(t.URI),
		URL:         t.ExternalURLs["spotify"],
		Name:        t.Name,
		ArtistIDs:   ids,
		ArtistNames: names,
		DurationMs:  int(t.Duration),
		ReleaseYear: year,
	}
}

func toSimpleStreamingTrack(t spotify.SimpleTrack) domain.StreamingTrack {
	names := make([]string, 0, len(t.Artists))
	ids := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
		ids = append(ids, string(a.ID))
	}
	return domain.StreamingTrack{
		URI:         string(t.URI),
		URL:         t.ExternalURLs["spotify"],
		Name:        t.Name,
		ArtistIDs:   ids,
		ArtistNames: names,
		DurationMs:  int(t.Duration),
	}
}

// uri2ID extracts the bare id from either a spotify:track:<id> URI or a
// bare id, so callers may pass either.
func uri2ID(uri string) spotify.ID {
	const prefix = "spotify:track:"
	if len(uri) > len(prefix) && uri[:len(prefix)] == prefix {
		return spotify.ID(uri[len(prefix):])
	}
	return spotify.ID(uri)
}

var _ domain.StreamingAdapter = (*Client)(nil)
