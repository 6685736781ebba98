// Package scrobble adapts the scrobble-service port (domain.ScrobbleAdapter)
// onto the Last.fm web service: artist listener/playcount stats, biography
// text, tags, and top tracks.
package scrobble

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nichefm/nichefm/internal/domain"
	"github.com/nichefm/nichefm/internal/serviceerror"
	"github.com/nichefm/nichefm/pkg/cache"
	"github.com/nichefm/nichefm/pkg/ratelimit"
)

const baseURL = "https://ws.audioscrobbler.com/2.0/"

// maxAttempts bounds retry of transient/rate-limited Last.fm failures.
const maxAttempts = 4

// Client is a rate-limited Last.fm client satisfying domain.ScrobbleAdapter.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter ratelimit.Limiter
	resp    *cache.ResponseCache
}

// New constructs a scrobble-service client. resp may be nil to disable
// response caching.
func New(apiKey string, limiter ratelimit.Limiter, resp *cache.ResponseCache) *Client {
	return &Client{
		http:    &http.Client{},
		baseURL: baseURL,
		apiKey:  apiKey,
		limiter: limiter,
		resp:    resp,
	}
}

type artistInfoResponse struct {
	Artist struct {
		Name  string `json:"name"`
		Stats struct {
			Listeners string `json:"listeners"`
			Playcount string `json:"playcount"`
		} `json:"stats"`
		Tags struct {
			Tag []struct {
				Name string `json:"name"`
			} `json:"tag"`
		} `json:"tags"`
		Bio struct {
			Summary string `json:"summary"`
			Content string `json:"content"`
		} `json:"bio"`
	} `json:"artist"`
}

// ArtistInfo implements domain.ScrobbleAdapter. It looks the artist up by
// metadataID first (Last.fm's artist.getInfo accepts an mbid) and falls
// back to name on a miss, matching the adapter fallback discipline used
// throughout this codebase's cross-service lookups.
func (c *Client) ArtistInfo(ctx context.Context, metadataID, name string) (domain.ArtistStats, error) {
	params := url.Values{
		"method":  {"artist.getInfo"},
		"api_key": {c.apiKey},
		"format":  {"json"},
	}
	if metadataID != "" {
		params.Set("mbid", metadataID)
	} else {
		params.Set("artist", name)
	}

	var resp artistInfoResponse
	if err := c.getJSON(ctx, "artist-info", params, &resp); err != nil {
		if metadataID == "" {
			return domain.ArtistStats{}, fmt.Errorf("scrobble: artist info %q: %w", name, err)
		}
		// mbid lookup failed — fall back to name.
		params.Del("mbid")
		params.Set("artist", name)
		if err := c.getJSON(ctx, "artist-info", params, &resp); err != nil {
			return domain.ArtistStats{}, fmt.Errorf("scrobble: artist info %q: %w", name, err)
		}
	}

	listeners, _ := strconv.Atoi(resp.Artist.Stats.Listeners)
	playcount, _ := strconv.Atoi(resp.Artist.Stats.Playcount)
	tags := make([]string, 0, len(resp.Artist.Tags.Tag))
	for _, t := range resp.Artist.Tags.Tag {
		tags = append(tags, t.Name)
	}
	bio := resp.Artist.Bio.Content
	if bio == "" {
		bio = resp.Artist.Bio.Summary
	}

	return domain.ArtistStats{
		Listeners: listeners,
		Playcount: playcount,
		Tags:      tags,
		Biography: bio,
	}, nil
}

type topTracksResponse struct {
	TopTracks struct {
		Track []struct {
			Name string `json:"name"`
		} `json:"track"`
	} `json:"toptracks"`
}

// ArtistTopTracks implements domain.ScrobbleAdapter.
func (c *Client) ArtistTopTracks(ctx context.Context, metadataID, name string, limit int) ([]domain.Track, error) {
	params := url.Values{
		"method":  {"artist.getTopTracks"},
		"api_key": {c.apiKey},
		"format":  {"json"},
		"limit":   {strconv.Itoa(limit)},
	}
	if metadataID != "" {
		params.Set("mbid", metadataID)
	} else {
		params.Set("artist", name)
	}

	var resp topTracksResponse
	if err := c.getJSON(ctx, "artist-top-tracks", params, &resp); err != nil {
		if metadataID == "" {
			return nil, fmt.Errorf("scrobble: top tracks %q: %w", name, err)
		}
		// mbid lookup failed — fall back to name.
		params.Del("mbid")
		params.Set("artist", name)
		if err := c.getJSON(ctx, "artist-top-tracks", params, &resp); err != nil {
			return nil, fmt.Errorf("scrobble: top tracks %q: %w", name, err)
		}
	}

	tracks := make([]domain.Track, 0, len(resp.TopTracks.Track))
	for _, t := range resp.TopTracks.Track {
		track, err := domain.NewTrack(t.Name, name)
		if err != nil {
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.resp != nil {
		key := cache.ArgHash(params.Encode())
		v, err := cache.GetOrLoad(ctx, c.resp, "scrobble", endpoint, key, func(ctx context.Context) (json.RawMessage, error) {
			return c.get(ctx, params)
		})
		if err != nil {
			return err
		}
		return json.Unmarshal(v, out)
	}
	body, err := c.get(ctx, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	var body []byte
	err := serviceerror.Retry(ctx, maxAttempts, 300*time.Millisecond, func(ctx context.Context) error {
		b, err := c.getOnce(ctx, params)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

func (c *Client) getOnce(ctx context.Context, params url.Values) ([]byte, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, serviceerror.New("scrobble", serviceerror.Transient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := serviceerror.FromStatus(resp.StatusCode)
		return nil, serviceerror.New("scrobble", kind, fmt.Errorf("http %d", resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

var _ domain.ScrobbleAdapter = (*Client)(nil)
