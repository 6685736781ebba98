package domain

import (
	"context"
	"testing"
)

func TestNewTrack(t *testing.T) {
	if _, err := NewTrack("", "Boards of Canada"); err == nil {
		t.Error("expected error for missing track name")
	}
	if _, err := NewTrack("Roygbiv", ""); err == nil {
		t.Error("expected error for missing artist name")
	}
	tr, err := NewTrack("Roygbiv", "Boards of Canada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Name != "Roygbiv" || tr.ArtistName != "Boards of Canada" {
		t.Errorf("unexpected track %+v", tr)
	}
}

func TestTrackIsOriginalWithLyrics(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		expected bool
	}{
		{"plain title", "Roygbiv", true},
		{"instrumental marker", "Roygbiv (Instrumental)", false},
		{"cover marker", "Roygbiv (Cover)", false},
		{"live version marker", "Roygbiv (Live Version)", false},
		{"case insensitive marker", "Roygbiv (INSTRUMENTAL)", false},
		{"soundtrack marker", "Main Theme (Soundtrack)", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := NewTrack(tt.title, "Boards of Canada")
			if got := tr.IsOriginalWithLyrics(); got != tt.expected {
				t.Errorf("IsOriginalWithLyrics() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestTrackWithStreamingCrossConfirmsByArtist(t *testing.T) {
	tr, _ := NewTrack("Roygbiv", "Boards of Canada")

	adapter := &trackSearchAdapter{
		results: []StreamingTrack{
			{Name: "Roygbiv", ArtistNames: []string{"Someone Else"}},
			{Name: "Roygbiv", ArtistNames: []string{"Boards of Canada"}, URI: "spotify:track:abc"},
		},
	}
	tr, err := tr.WithStreaming(context.Background(), adapter, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, ok := tr.Streaming()
	if !ok || st.URI != "spotify:track:abc" {
		t.Errorf("expected cross-confirmed match, got %+v ok=%v", st, ok)
	}
}

func TestTrackWithStreamingNoMatch(t *testing.T) {
	tr, _ := NewTrack("Roygbiv", "Boards of Canada")
	adapter := &trackSearchAdapter{
		results: []StreamingTrack{{Name: "Roygbiv", ArtistNames: []string{"Someone Else"}}},
	}
	if _, err := tr.WithStreaming(context.Background(), adapter, 5); err == nil {
		t.Error("expected error when no result cross-confirms")
	}
}

func TestTrackWithStreamingResultIsIdempotent(t *testing.T) {
	tr, _ := NewTrack("Roygbiv", "Boards of Canada")
	first := StreamingTrack{URI: "spotify:track:first"}
	second := StreamingTrack{URI: "spotify:track:second"}

	tr, err := tr.WithStreamingResult(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, err = tr.WithStreamingResult(second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, ok := tr.Streaming()
	if !ok || st.URI != "spotify:track:first" {
		t.Errorf("expected first attach to stick, got %+v", st)
	}
}

// trackSearchAdapter is a minimal StreamingAdapter fake for track-level tests.
type trackSearchAdapter struct {
	results []StreamingTrack
}

func (a *trackSearchAdapter) SearchTracks(ctx context.Context, name, artist string, limit int) ([]StreamingTrack, error) {
	return a.results, nil
}
func (a *trackSearchAdapter) Artist(ctx context.Context, id string) (StreamingArtist, error) {
	return StreamingArtist{}, nil
}
func (a *trackSearchAdapter) ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]StreamingTrack, error) {
	return nil, nil
}
func (a *trackSearchAdapter) Recommendations(ctx context.Context, seedArtistIDs, seedGenres []string, minDurationMs, maxDurationMs, limit int) ([]StreamingTrack, error) {
	return nil, nil
}
func (a *trackSearchAdapter) PlaylistCreate(ctx context.Context, userID, name, description string) (Playlist, error) {
	return Playlist{}, nil
}
func (a *trackSearchAdapter) PlaylistAddItems(ctx context.Context, playlistID string, trackURIs []string) error {
	return nil
}
func (a *trackSearchAdapter) PlaylistRemove(ctx context.Context, playlistID string, trackURIs []string) error {
	return nil
}
func (a *trackSearchAdapter) PlaylistUnfollow(ctx context.Context, playlistID string) error {
	return nil
}
func (a *trackSearchAdapter) PlaylistUploadCoverImage(ctx context.Context, playlistID string, jpeg []byte) error {
	return nil
}
func (a *trackSearchAdapter) PlaylistItems(ctx context.Context, playlistID string) ([]StreamingTrack, error) {
	return nil, nil
}
