package finder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nichefm/nichefm/internal/domain"
	"github.com/nichefm/nichefm/internal/exclusioncache"
	"github.com/nichefm/nichefm/internal/genre"
	"github.com/nichefm/nichefm/internal/playlist"
	"github.com/nichefm/nichefm/internal/validator"
	"github.com/nichefm/nichefm/pkg/store"
)

// fakeFinderStore satisfies finderStore with a fixed recent-valid-percent
// history, sidestepping a live Postgres connection.
type fakeFinderStore struct {
	recentPercent []float64
}

func (s *fakeFinderStore) RecentPercentArtistsValid(ctx context.Context, p store.RecentPercentArtistsValidParams) ([]float64, error) {
	return s.recentPercent, nil
}

// fakeEntryStore satisfies exclusioncache's entryStore entirely in memory.
type fakeEntryStore struct {
	mu       sync.Mutex
	excluded map[string]store.ExcludedArtist
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{excluded: make(map[string]store.ExcludedArtist)}
}

func (s *fakeEntryStore) EnsureExclusionEntry(ctx context.Context, p store.EnsureExclusionEntryParams) (store.ExclusionCacheEntry, error) {
	return store.ExclusionCacheEntry{ID: "entry-1"}, nil
}

func (s *fakeEntryStore) PutExcludedArtist(ctx context.Context, p store.PutExcludedArtistParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.excluded[p.Excluded.MetadataID] = p.Excluded
	return nil
}

func (s *fakeEntryStore) RemoveExcludedArtist(ctx context.Context, p store.RemoveExcludedArtistParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.excluded, p.MetadataID)
	return nil
}

// fakeRequestStore satisfies playlist's requestStore entirely in memory.
type fakeRequestStore struct {
	mu  sync.Mutex
	req store.Request
}

func (s *fakeRequestStore) CreateRequest(ctx context.Context, p store.CreateRequestParams) (store.Request, error) {
	return store.Request{}, errors.New("not used by these scenarios")
}

func (s *fakeRequestStore) GetRequestByID(ctx context.Context, id string) (store.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req, nil
}

func (s *fakeRequestStore) UpdateRequestStats(ctx context.Context, p store.UpdateRequestStatsParams) (store.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req.Stats = store.RequestStats{
		PercentArtistsValid:    p.PercentArtistsValid,
		AverageArtistFollowers: p.AverageArtistFollowers,
	}
	return s.req, nil
}

// fakeScrobble serves ArtistStats and top tracks keyed by metadata id.
type fakeScrobble struct {
	stats  map[string]domain.ArtistStats
	tracks map[string][]domain.Track
}

func (s *fakeScrobble) ArtistInfo(ctx context.Context, metadataID, name string) (domain.ArtistStats, error) {
	st, ok := s.stats[metadataID]
	if !ok {
		return domain.ArtistStats{}, fmt.Errorf("fakeScrobble: no stats for %q", metadataID)
	}
	return st, nil
}

func (s *fakeScrobble) ArtistTopTracks(ctx context.Context, metadataID, name string, limit int) ([]domain.Track, error) {
	tracks := s.tracks[metadataID]
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// fakeStreaming serves search/artist/recommendation lookups and records
// playlist lifecycle calls without any network access.
type fakeStreaming struct {
	mu              sync.Mutex
	searchByKey     map[string][]domain.StreamingTrack
	artistsByID     map[string]domain.StreamingArtist
	recommendations []domain.StreamingTrack
	nextPlaylist    int
	followed        map[string]bool
}

func searchKey(name, artist string) string { return name + "|" + artist }

func (s *fakeStreaming) SearchTracks(ctx context.Context, name, artist string, limit int) ([]domain.StreamingTrack, error) {
	return s.searchByKey[searchKey(name, artist)], nil
}

func (s *fakeStreaming) Artist(ctx context.Context, id string) (domain.StreamingArtist, error) {
	a, ok := s.artistsByID[id]
	if !ok {
		return domain.StreamingArtist{}, fmt.Errorf("fakeStreaming: no artist %q", id)
	}
	return a, nil
}

func (s *fakeStreaming) ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]domain.StreamingTrack, error) {
	return nil, nil
}

func (s *fakeStreaming) Recommendations(ctx context.Context, seedArtistIDs, seedGenres []string, minDurationMs, maxDurationMs, limit int) ([]domain.StreamingTrack, error) {
	recs := s.recommendations
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *fakeStreaming) PlaylistCreate(ctx context.Context, userID, name, description string) (domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPlaylist++
	id := fmt.Sprintf("pl-%d", s.nextPlaylist)
	if s.followed == nil {
		s.followed = make(map[string]bool)
	}
	s.followed[id] = true
	return domain.Playlist{ID: id, URL: "https://streaming.example/" + id}, nil
}

func (s *fakeStreaming) PlaylistAddItems(ctx context.Context, playlistID string, trackURIs []string) error {
	return nil
}

func (s *fakeStreaming) PlaylistRemove(ctx context.Context, playlistID string, trackURIs []string) error {
	return nil
}

func (s *fakeStreaming) PlaylistUnfollow(ctx context.Context, playlistID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.followed, playlistID)
	return nil
}

func (s *fakeStreaming) PlaylistUploadCoverImage(ctx context.Context, playlistID string, jpeg []byte) error {
	return nil
}

func (s *fakeStreaming) PlaylistItems(ctx context.Context, playlistID string) ([]domain.StreamingTrack, error) {
	return nil, nil
}

// fakeMetadata always reports every language present, which combined with
// domain.LanguageAny requests keeps the language gate out of these
// pipeline-mechanics scenarios (validator's own tests cover the gate
// itself in isolation).
type fakeMetadata struct{}

func (fakeMetadata) ArtistLanguages(ctx context.Context, metadataID string) (map[domain.Language]float64, error) {
	return map[domain.Language]float64{domain.LanguageAny: 1}, nil
}

// goodArtist seeds one passing artist end-to-end: scrobble stats inside
// the moderately-niche band, one top track, a cross-confirmed streaming
// artist inside the followers band, and a streaming match for that track
// that clears every track-level gate.
func goodArtist(n int) (metadataID, name, streamingID string) {
	return fmt.Sprintf("mbid-%d", n), fmt.Sprintf("Artist %d", n), fmt.Sprintf("sp-artist-%d", n)
}

func seedGoodArtist(scrobble *fakeScrobble, streaming *fakeStreaming, n int) {
	metadataID, name, streamingID := goodArtist(n)
	trackName := fmt.Sprintf("Night Drive %d", n)

	scrobble.stats[metadataID] = domain.ArtistStats{
		Listeners: 50_000, Playcount: 500_000, Tags: []string{"city pop"},
	}
	track, _ := domain.NewTrack(trackName, name)
	scrobble.tracks[metadataID] = []domain.Track{track}

	streaming.artistsByID[streamingID] = domain.StreamingArtist{ID: streamingID, Name: name, Followers: 5_000}
	st := domain.StreamingTrack{
		URI: "spotify:track:" + trackName, Name: trackName,
		ArtistIDs: []string{streamingID}, ArtistNames: []string{name},
		DurationMs: 200_000, ReleaseYear: 2010,
	}
	streaming.searchByKey[searchKey(trackName, name)] = []domain.StreamingTrack{st}
}

// seedTooPopularArtist seeds an artist that fails the scrobble popularity
// ceiling and so never reaches the streaming facet at all.
func seedTooPopularArtist(scrobble *fakeScrobble, n int) {
	metadataID, name, _ := goodArtist(n)
	scrobble.stats[metadataID] = domain.ArtistStats{
		Listeners: 9_999_999, Playcount: 9_999_999, Tags: []string{"city pop"},
	}
	track, _ := domain.NewTrack(fmt.Sprintf("Unreachable %d", n), name)
	scrobble.tracks[metadataID] = []domain.Track{track}
}

func newFinderParams(genreName string) Params {
	return Params{
		UserID:            "user-1",
		Genre:             genreName,
		Language:          domain.LanguageAny,
		NicheLevel:        domain.NicheModerately,
		MinReleaseYear:    2000,
		MinTrackSeconds:   60,
		MaxTrackSeconds:   600,
		PlaylistMinLength: domain.MinSongsForPlaylistGen,
		PlaylistMaxLength: 10,
		Concurrency:       2,
	}
}

func newValidatorFor(p Params, catalog *genre.Catalog, metadata domain.MetadataAdapter) *validator.Validator {
	return validator.New(validator.Params{
		Bands:         domain.NicheLevelBands[p.NicheLevel],
		LikenessMin:   domain.LikenessMin,
		Language:      p.Language,
		ScrobbleGenre: "city pop",
		MinYear:       p.MinReleaseYear,
		MinSeconds:    p.MinTrackSeconds,
		MaxSeconds:    p.MaxTrackSeconds,
	}, catalog, metadata)
}

func buildFinder(t *testing.T, p Params, scrobble *fakeScrobble, streaming *fakeStreaming, fs finderStore) *Finder {
	t.Helper()
	catalog := genre.Load()
	v := newValidatorFor(p, catalog, fakeMetadata{})
	excl, err := exclusioncache.Load(context.Background(), newFakeEntryStore(), string(p.Language), p.Genre, string(p.NicheLevel))
	if err != nil {
		t.Fatalf("exclusioncache.Load: %v", err)
	}
	requests := playlist.NewRequests(&fakeRequestStore{})
	return New(fs, catalog, v, excl, scrobble, streaming, requests, "req-1", p)
}

func catalogEntries(n int) []store.ArtistCatalogEntry {
	entries := make([]store.ArtistCatalogEntry, n)
	for i := range entries {
		metadataID, name, _ := goodArtist(i + 1)
		entries[i] = store.ArtistCatalogEntry{ID: fmt.Sprintf("catalog-%d", i+1), MetadataID: metadataID, Name: name}
	}
	return entries
}

// TestFindAllArtistsValidReachesMinimumWithoutTopUp seeds exactly
// PlaylistMinLength passing artists, each good for one track, and expects
// Find to return all of them without needing the top-up path.
func TestFindAllArtistsValidReachesMinimumWithoutTopUp(t *testing.T) {
	p := newFinderParams("city-pop")
	n := domain.MinSongsForPlaylistGen

	scrobble := &fakeScrobble{stats: map[string]domain.ArtistStats{}, tracks: map[string][]domain.Track{}}
	streaming := &fakeStreaming{searchByKey: map[string][]domain.StreamingTrack{}, artistsByID: map[string]domain.StreamingArtist{}}
	for i := 1; i <= n; i++ {
		seedGoodArtist(scrobble, streaming, i)
	}

	f := buildFinder(t, p, scrobble, streaming, &fakeFinderStore{recentPercent: []float64{100}})
	selected, err := f.Find(context.Background(), catalogEntries(n))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != n {
		t.Errorf("expected %d selected tracks, got %d", n, len(selected))
	}
}

// TestFindToppedUpByRecommendationsWhenArtistsRunShort seeds just enough
// passing artists to clear the hard floor (domain.MinSongsForPlaylistGen)
// but fewer than the playlist minimum, and expects the streaming
// recommendation top-up to fill the remainder.
func TestFindToppedUpByRecommendationsWhenArtistsRunShort(t *testing.T) {
	p := newFinderParams("city-pop")
	p.PlaylistMinLength = 10
	p.PlaylistMaxLength = 15
	passing := domain.MinSongsForPlaylistGen

	scrobble := &fakeScrobble{stats: map[string]domain.ArtistStats{}, tracks: map[string][]domain.Track{}}
	streaming := &fakeStreaming{searchByKey: map[string][]domain.StreamingTrack{}, artistsByID: map[string]domain.StreamingArtist{}}
	for i := 1; i <= passing; i++ {
		seedGoodArtist(scrobble, streaming, i)
	}

	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("Recommended Cut %d", i)
		streaming.recommendations = append(streaming.recommendations, domain.StreamingTrack{
			Name: name, ArtistNames: []string{fmt.Sprintf("Recommended Artist %d", i)},
			ArtistIDs:  []string{fmt.Sprintf("sp-rec-%d", i)},
			DurationMs: 200_000, ReleaseYear: 2015,
		})
	}

	f := buildFinder(t, p, scrobble, streaming, &fakeFinderStore{recentPercent: []float64{100}})
	selected, err := f.Find(context.Background(), catalogEntries(passing))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) < p.PlaylistMinLength {
		t.Errorf("expected top-up to reach the playlist minimum of %d, got %d", p.PlaylistMinLength, len(selected))
	}
}

// TestFindReturnsErrNotEnoughSongsWhenTopUpCannotFillTheGap seeds no
// passing artists and no usable recommendations, so even top-up cannot
// clear the hard minimum.
func TestFindReturnsErrNotEnoughSongsWhenTopUpCannotFillTheGap(t *testing.T) {
	p := newFinderParams("city-pop")

	scrobble := &fakeScrobble{stats: map[string]domain.ArtistStats{}, tracks: map[string][]domain.Track{}}
	streaming := &fakeStreaming{searchByKey: map[string][]domain.StreamingTrack{}, artistsByID: map[string]domain.StreamingArtist{}}
	seedTooPopularArtist(scrobble, 1)
	seedTooPopularArtist(scrobble, 2)

	f := buildFinder(t, p, scrobble, streaming, &fakeFinderStore{recentPercent: []float64{100}})
	_, err := f.Find(context.Background(), catalogEntries(2))
	if !errors.Is(err, ErrNotEnoughSongs) {
		t.Fatalf("expected ErrNotEnoughSongs, got %v", err)
	}
}
