// Package finder implements the niche-track selection pipeline: it samples
// the artist catalog for a genre in chunks, validates each artist and its
// top tracks across the scrobble and streaming adapters, and tops up a
// short result with streaming-service recommendations.
package finder

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nichefm/nichefm/internal/domain"
	"github.com/nichefm/nichefm/internal/exclusioncache"
	"github.com/nichefm/nichefm/internal/genre"
	"github.com/nichefm/nichefm/internal/playlist"
	"github.com/nichefm/nichefm/internal/validator"
	"github.com/nichefm/nichefm/pkg/store"
)

const (
	chunkSize                           = 25
	artistMaxSongs                      = 1
	desiredValidArtistsMultipleOfMinLen = 5
	topUpFetchSize                      = 6
	topUpMaxAttempts                    = 15

	// defaultConcurrency bounds the number of artists processed at once
	// within a chunk.
	defaultConcurrency = 4
)

// Params parameterizes one selection run.
type Params struct {
	UserID            string // streaming-service user id, used for the throwaway top-up playlist
	Genre             string
	Language          domain.Language
	NicheLevel        domain.NicheLevel
	MinReleaseYear    int
	MinTrackSeconds   int
	MaxTrackSeconds   int
	PlaylistMinLength int
	PlaylistMaxLength int
	Concurrency       int
}

// finderStore is the narrow persistence surface Finder needs.
type finderStore interface {
	RecentPercentArtistsValid(ctx context.Context, p store.RecentPercentArtistsValidParams) ([]float64, error)
}

// Finder runs the selection pipeline for one request.
type Finder struct {
	store      finderStore
	catalog    *genre.Catalog
	validator  *validator.Validator
	exclusions *exclusioncache.Cache
	scrobble   domain.ScrobbleAdapter
	streaming  domain.StreamingAdapter
	requests   *playlist.Requests
	requestID  string
	params     Params

	mu    sync.Mutex
	next  int64
	buf   map[int64]statsUpdate
	total int
}

type statsUpdate struct {
	followers int
}

// appliedUpdate is one buffered update paired with the selection count it
// applies against, resolved at apply time so concurrent reservations never
// race on a stale count.
type appliedUpdate struct {
	followers     int
	previousCount int
}

// New constructs a Finder. exclusions must already be loaded for this
// request's (language, genre, niche_level) key.
func New(
	s finderStore,
	catalog *genre.Catalog,
	v *validator.Validator,
	exclusions *exclusioncache.Cache,
	scrobble domain.ScrobbleAdapter,
	streaming domain.StreamingAdapter,
	requests *playlist.Requests,
	requestID string,
	params Params,
) *Finder {
	if params.Concurrency <= 0 {
		params.Concurrency = defaultConcurrency
	}
	return &Finder{
		store: s, catalog: catalog, validator: v, exclusions: exclusions,
		scrobble: scrobble, streaming: streaming,
		requests: requests,
		requestID: requestID, params: params,
		buf: make(map[int64]statsUpdate),
	}
}

// ErrNotEnoughSongs is returned when the pipeline cannot clear the minimum
// playlist length even after top-up.
var ErrNotEnoughSongs = fmt.Errorf("finder: not enough songs")

// Selected is one track chosen by the pipeline.
type Selected struct {
	ArtistName string
	Track      domain.Track
}

// Find runs the full pipeline and returns the selected tracks.
func (f *Finder) Find(ctx context.Context, artists []store.ArtistCatalogEntry) ([]Selected, error) {
	desired, err := f.desiredSongCount(ctx, len(artists))
	if err != nil {
		return nil, err
	}

	chunks := chunk(artists, chunkSize)
	order := rand.Perm(len(chunks))

	var selected []Selected
	artistSongCount := map[string]int{}
	chunksProcessed := 0

	for _, idx := range order {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(selected) >= desired {
			break
		}
		chunksProcessed++

		validArtists := f.filterValidArtists(ctx, chunks[idx])
		rand.Shuffle(len(validArtists), func(i, j int) { validArtists[i], validArtists[j] = validArtists[j], validArtists[i] })

		newlySelected, err := f.processChunk(ctx, validArtists, artistSongCount, desired, chunksProcessed, len(selected))
		if err != nil {
			return nil, err
		}
		selected = append(selected, newlySelected...)
	}

	percent := 0.0
	if chunksProcessed > 0 {
		percent = float64(len(selected)) / float64(chunksProcessed*chunkSize) * 100
	}
	if _, err := f.requests.UpdateStats(ctx, f.requestID, nil, 0, &percent); err != nil {
		return nil, err
	}

	if len(selected) < f.params.PlaylistMinLength {
		topped, err := f.topUp(ctx, selected)
		if err != nil {
			return nil, ErrNotEnoughSongs
		}
		selected = topped
	}
	if len(selected) < domain.MinSongsForPlaylistGen {
		return nil, ErrNotEnoughSongs
	}
	return selected, nil
}

// desiredSongCount implements the target-sizing formula: a fixed
// playlist_min_length for streaming-seed genres, or a scaled figure
// derived from the genre's recent validity history for all other genres.
func (f *Finder) desiredSongCount(ctx context.Context, totalArtists int) (int, error) {
	if f.catalog.IsStreamingSeed(f.params.Genre) {
		return f.params.PlaylistMinLength, nil
	}

	recent, err := f.store.RecentPercentArtistsValid(ctx, store.RecentPercentArtistsValidParams{Genre: f.params.Genre, Limit: 20})
	if err != nil {
		return 0, fmt.Errorf("finder: recent valid pct: %w", err)
	}
	validPctAvg := 2.0
	if len(recent) > 0 {
		sum := 0.0
		for _, v := range recent {
			sum += v
		}
		validPctAvg = sum / float64(len(recent))
	}

	expectedValid := float64(totalArtists) * (validPctAvg / 100)
	minValidForMax := float64(f.params.PlaylistMinLength * desiredValidArtistsMultipleOfMinLen)
	repSongScalar := math.Min(1, expectedValid/minValidForMax)
	desired := int(math.Ceil(float64(f.params.PlaylistMinLength)*repSongScalar + 0.00001))
	if desired < domain.MinSongsForPlaylistGen {
		desired = domain.MinSongsForPlaylistGen
	}
	return desired, nil
}

func chunk(artists []store.ArtistCatalogEntry, size int) [][]store.ArtistCatalogEntry {
	var out [][]store.ArtistCatalogEntry
	for i := 0; i < len(artists); i += size {
		end := min(i+size, len(artists))
		out = append(out, artists[i:end])
	}
	return out
}

// filterValidArtists discards artists still validly excluded from a
// previous run and runs the scrobble-facet validation on the rest,
// recording newly-discovered exclusions.
func (f *Finder) filterValidArtists(ctx context.Context, batch []store.ArtistCatalogEntry) []domain.Artist {
	var out []domain.Artist
	for _, row := range batch {
		if row.MetadataID == "" {
			continue
		}
		if _, excluded := f.exclusions.IsValidExclusion(row.MetadataID); excluded {
			continue
		}

		artist, err := domain.NewArtist(row.Name, row.MetadataID)
		if err != nil {
			continue
		}
		artist, err = artist.WithScrobble(ctx, f.scrobble)
		if err != nil {
			continue
		}

		if reason, bad := f.validator.ArtistReasonScrobble(artist); bad {
			if reason != validator.ReasonOther {
				_ = f.exclusions.Put(ctx, artist.Name, artist.MetadataID, reason)
			}
			continue
		}
		out = append(out, artist)
	}
	return out
}

// processChunk runs the bounded-concurrency per-artist inner loop over one
// chunk's valid artists.
func (f *Finder) processChunk(ctx context.Context, artists []domain.Artist, songCount map[string]int, desired, chunksProcessed, alreadySelected int) ([]Selected, error) {
	sem := semaphore.NewWeighted(int64(f.params.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var results []Selected

	for _, artist := range artists {
		artist := artist
		if alreadySelected+len(results) >= desired {
			break
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			got, err := f.processArtist(gctx, artist, songCount)
			if err != nil {
				return nil // per-artist errors are non-fatal, matching the source's catch-and-continue
			}
			if got == nil {
				return nil
			}
			mu.Lock()
			results = append(results, *got)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// processArtist runs one artist's scrobble→streaming→track validation
// chain, returning a Selected track on success.
func (f *Finder) processArtist(ctx context.Context, artist domain.Artist, songCount map[string]int) (*Selected, error) {
	f.mu.Lock()
	if songCount[artist.MetadataID] >= artistMaxSongs {
		f.mu.Unlock()
		return nil, nil
	}
	f.mu.Unlock()

	tracks, err := f.scrobble.ArtistTopTracks(ctx, artist.MetadataID, artist.Name, 10)
	if err != nil {
		return nil, err
	}

	for _, track := range tracks {
		f.mu.Lock()
		full := songCount[artist.MetadataID] >= artistMaxSongs
		f.mu.Unlock()
		if full {
			break
		}

		withStreaming, err := f.streaming.SearchTracks(ctx, track.Name, artist.Name, 5)
		if err != nil || len(withStreaming) == 0 {
			continue
		}
		var matchTrack domain.StreamingTrack
		matched := false
		for _, st := range withStreaming {
			for _, n := range st.ArtistNames {
				if domain.NamesMatch(n, artist.Name) {
					matchTrack, matched = st, true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			continue
		}

		enrichedArtist, err := artist.WithStreamingFromTrack(ctx, f.streaming, matchTrack)
		if err != nil {
			continue
		}

		if reason, bad := f.validator.ArtistReasonStreaming(enrichedArtist); bad {
			if reason != validator.ReasonOther {
				f.mu.Lock()
				_ = f.exclusions.Put(ctx, enrichedArtist.Name, enrichedArtist.MetadataID, reason)
				f.mu.Unlock()
			}
			break
		}
		if reason, bad, err := f.validator.LanguageReason(ctx, enrichedArtist); err == nil && bad {
			f.mu.Lock()
			_ = f.exclusions.Put(ctx, enrichedArtist.Name, enrichedArtist.MetadataID, reason)
			f.mu.Unlock()
			break
		}
		f.mu.Lock()
		_ = f.exclusions.Remove(ctx, enrichedArtist.MetadataID)
		f.mu.Unlock()

		trackWithStreaming, err := domain.NewTrack(track.Name, artist.Name)
		if err != nil {
			continue
		}
		trackWithStreaming, err = trackWithStreaming.WithStreaming(ctx, f.streaming, 5)
		if err != nil {
			continue
		}
		if !f.validator.ValidateTrack(trackWithStreaming) {
			continue
		}

		seq := f.reserveSeq()
		streamingArtist, _ := enrichedArtist.Streaming()
		f.applyInOrder(ctx, seq, statsUpdate{followers: streamingArtist.Followers})

		f.mu.Lock()
		songCount[artist.MetadataID]++
		f.mu.Unlock()

		return &Selected{ArtistName: artist.Name, Track: trackWithStreaming}, nil
	}
	return nil, nil
}

// reserveSeq hands out a monotonically-increasing sequence number marking
// the moment a track is provisionally accepted.
func (f *Finder) reserveSeq() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.next
	f.next++
	return seq
}

// applyInOrder buffers out-of-order stats updates and applies them to
// Request.Stats strictly in sequence-number order, so the running mean
// reflects selection order even though artists are validated concurrently.
// previousCount is resolved from f.total at the moment each buffered update
// is drained, not when it was reserved, so two updates accepted
// concurrently never compute their mean against the same stale count.
func (f *Finder) applyInOrder(ctx context.Context, seq int64, u statsUpdate) {
	f.mu.Lock()
	f.buf[seq] = u
	var toApply []appliedUpdate
	for {
		next, ok := f.buf[f.appliedThrough()]
		if !ok {
			break
		}
		delete(f.buf, f.appliedThrough())
		toApply = append(toApply, appliedUpdate{followers: next.followers, previousCount: f.total})
		f.total++
	}

	for _, u := range toApply {
		followers := u.followers
		_, _ = f.requests.UpdateStats(ctx, f.requestID, &followers, u.previousCount, nil)
	}
	f.mu.Unlock()
}

// appliedThrough returns the sequence number expected next; callers must
// hold f.mu.
func (f *Finder) appliedThrough() int64 {
	return int64(f.total)
}

// topUp fills a short result out with streaming-service recommendations,
// seeded from the streaming-artist ids already selected. It also creates a
// throwaway streaming playlist holding the current selection, which the
// recommendation call itself does not read, and always deletes it before
// returning.
func (f *Finder) topUp(ctx context.Context, selected []Selected) ([]Selected, error) {
	maxSize := f.params.PlaylistMaxLength - len(selected)
	if maxSize < 1 {
		return selected, nil
	}

	uris := make([]string, 0, len(selected))
	for _, s := range selected {
		if st, ok := s.Track.Streaming(); ok {
			uris = append(uris, st.URI)
		}
	}

	throwaway, err := f.streaming.PlaylistCreate(ctx, f.params.UserID, "niche-finder-top-up", "")
	if err != nil {
		return nil, fmt.Errorf("finder: top-up playlist create: %w", err)
	}
	defer func() { _ = f.streaming.PlaylistUnfollow(ctx, throwaway.ID) }()

	if len(uris) > 0 {
		if err := f.streaming.PlaylistAddItems(ctx, throwaway.ID, uris); err != nil {
			return nil, fmt.Errorf("finder: top-up add seed items: %w", err)
		}
	}

	added := append([]Selected{}, selected...)
	seedIDs := f.seedArtistIDs(selected)
	seedGenres := f.seedGenres()
	minMs := f.params.MinTrackSeconds * 1000
	maxMs := f.params.MaxTrackSeconds * 1000

	for attempt := 1; attempt <= topUpMaxAttempts && len(added)-len(selected) < maxSize; attempt++ {
		fetch := min(topUpFetchSize, maxSize-(len(added)-len(selected)))
		recs, err := f.streaming.Recommendations(ctx, seedIDs, seedGenres, minMs, maxMs, fetch)
		if err != nil {
			continue
		}
		rand.Shuffle(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })

		for _, rec := range recs {
			if len(added)-len(selected) >= maxSize {
				break
			}
			if len(rec.ArtistNames) == 0 {
				continue
			}
			track, err := domain.NewTrack(rec.Name, rec.ArtistNames[0])
			if err != nil {
				continue
			}

			if !f.validator.ValidateTrack(withStreamingFacet(track, rec)) {
				continue
			}

			seq := f.reserveSeq()
			f.applyInOrder(ctx, seq, statsUpdate{followers: 0})

			added = append(added, Selected{ArtistName: rec.ArtistNames[0], Track: withStreamingFacet(track, rec)})
		}
	}

	if len(added)-len(selected) < f.params.PlaylistMinLength-len(selected) {
		return added, fmt.Errorf("finder: top-up did not reach minimum length")
	}
	return added, nil
}

// seedArtistIDs picks up to MinSongsForPlaylistGen-1 random streaming
// artist ids from the current selection to seed the recommender.
func (f *Finder) seedArtistIDs(selected []Selected) []string {
	var ids []string
	for _, s := range selected {
		if st, ok := s.Track.Streaming(); ok && len(st.ArtistIDs) > 0 {
			ids = append(ids, st.ArtistIDs[0])
		}
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	maxSeeds := domain.MinSongsForPlaylistGen - 1
	if len(ids) > maxSeeds {
		ids = ids[:maxSeeds]
	}
	return ids
}

// seedGenres returns the request's genre as a single-element recommender
// seed, but only when it is a streaming seed genre — a metadata/scrobble
// tag name would not mean anything to the streaming service.
func (f *Finder) seedGenres() []string {
	if f.catalog.IsStreamingSeed(f.params.Genre) {
		return []string{f.params.Genre}
	}
	return nil
}

// withStreamingFacet attaches a recommendation result directly, bypassing
// the search-based cross-confirmation used in the main pipeline: a
// recommendation is already keyed by streaming-service track id.
func withStreamingFacet(t domain.Track, st domain.StreamingTrack) domain.Track {
	tagged, _ := t.WithStreamingResult(st)
	return tagged
}
