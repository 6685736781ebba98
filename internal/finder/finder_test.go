package finder

import (
	"context"
	"testing"

	"github.com/nichefm/nichefm/internal/domain"
	"github.com/nichefm/nichefm/internal/genre"
	"github.com/nichefm/nichefm/pkg/store"
)

func TestChunk(t *testing.T) {
	artists := make([]store.ArtistCatalogEntry, 7)
	chunks := chunk(artists, 3)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 3 || len(chunks[1]) != 3 || len(chunks[2]) != 1 {
		t.Errorf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestChunkEmpty(t *testing.T) {
	if chunks := chunk(nil, 5); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestDesiredSongCountFixedForSeedGenre(t *testing.T) {
	f := &Finder{
		catalog: genre.Load(),
		params:  Params{Genre: "city-pop", PlaylistMinLength: 20},
	}
	got, err := f.desiredSongCount(context.Background(), 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 20 {
		t.Errorf("desiredSongCount() = %d, expected fixed playlist_min_length 20", got)
	}
}

func TestSeedArtistIDsCapsAtMinSongsMinusOne(t *testing.T) {
	f := &Finder{}
	var selected []Selected
	for i := 0; i < 10; i++ {
		tr, _ := domain.NewTrack("Song", "Artist")
		tr, _ = tr.WithStreamingResult(domain.StreamingTrack{ArtistIDs: []string{"sp-id"}})
		selected = append(selected, Selected{ArtistName: "Artist", Track: tr})
	}
	ids := f.seedArtistIDs(selected)
	if len(ids) > domain.MinSongsForPlaylistGen-1 {
		t.Errorf("expected at most %d seed ids, got %d", domain.MinSongsForPlaylistGen-1, len(ids))
	}
}

func TestSeedArtistIDsSkipsTracksWithoutStreamingFacet(t *testing.T) {
	f := &Finder{}
	tr, _ := domain.NewTrack("Song", "Artist")
	ids := f.seedArtistIDs([]Selected{{ArtistName: "Artist", Track: tr}})
	if len(ids) != 0 {
		t.Errorf("expected no seed ids for a track without a streaming facet, got %+v", ids)
	}
}

func TestWithStreamingFacetIsIdempotent(t *testing.T) {
	tr, _ := domain.NewTrack("Song", "Artist")
	first := domain.StreamingTrack{URI: "spotify:track:first"}
	tagged := withStreamingFacet(tr, first)
	st, ok := tagged.Streaming()
	if !ok || st.URI != "spotify:track:first" {
		t.Errorf("expected streaming facet attached, got %+v ok=%v", st, ok)
	}
}
