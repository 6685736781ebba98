// Package metadata adapts the metadata-service port (domain.MetadataAdapter)
// onto the MusicBrainz web service: the language breakdown of an artist's
// catalog of works.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/nichefm/nichefm/internal/domain"
	"github.com/nichefm/nichefm/internal/serviceerror"
	"github.com/nichefm/nichefm/pkg/cache"
	"github.com/nichefm/nichefm/pkg/ratelimit"
)

// maxAttempts bounds retry of transient/rate-limited MusicBrainz failures.
const maxAttempts = 4

const (
	baseURL = "https://musicbrainz.org/ws/2"

	// languagePctMin is the minimum share of an artist's tagged works that
	// must carry a language code for that language to count, mirroring the
	// source system's default get_artist_languages threshold.
	languagePctMin = 50.0
)

// Client is a rate-limited MusicBrainz client satisfying domain.MetadataAdapter.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	limiter   ratelimit.Limiter
	resp      *cache.ResponseCache
}

// New constructs a metadata-service client. limiter enforces MusicBrainz's
// one-request-per-second policy; resp may be nil to disable response caching.
func New(userAgent string, limiter ratelimit.Limiter, resp *cache.ResponseCache) *Client {
	return &Client{
		http:      &http.Client{},
		baseURL:   baseURL,
		userAgent: userAgent,
		limiter:   limiter,
		resp:      resp,
	}
}

type worksResponse struct {
	Works []struct {
		Language string `json:"language"`
	} `json:"works"`
}

// ArtistLanguages implements domain.MetadataAdapter. It returns the
// fraction of metadataID's tagged works in each Language that clears
// languagePctMin, after collapsing ISO 639 codes onto the closed
// domain.Language set via English/non-English classification.
func (c *Client) ArtistLanguages(ctx context.Context, metadataID string) (map[domain.Language]float64, error) {
	if c.resp != nil {
		key := cache.ArgHash(metadataID)
		return cache.GetOrLoad(ctx, c.resp, "metadata", "artist-languages", key, func(ctx context.Context) (map[domain.Language]float64, error) {
			return c.fetchArtistLanguages(ctx, metadataID)
		})
	}
	return c.fetchArtistLanguages(ctx, metadataID)
}

func (c *Client) fetchArtistLanguages(ctx context.Context, metadataID string) (map[domain.Language]float64, error) {
	body, err := c.get(ctx, fmt.Sprintf("/artist/%s?inc=works&fmt=json", url.PathEscape(metadataID)))
	if err != nil {
		return nil, fmt.Errorf("metadata: artist works: %w", err)
	}
	var resp worksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("metadata: parse artist works: %w", err)
	}

	counts := map[domain.Language]int{}
	total := 0
	for _, w := range resp.Works {
		if w.Language == "" {
			continue
		}
		lang := classify(w.Language)
		counts[lang]++
		total++
	}
	if total == 0 {
		return map[domain.Language]float64{}, nil
	}

	out := make(map[domain.Language]float64, len(counts))
	for lang, n := range counts {
		pct := float64(n) / float64(total) * 100
		if pct >= languagePctMin {
			out[lang] = float64(n) / float64(total)
		}
	}
	return out, nil
}

// classify collapses a MusicBrainz ISO 639 work-language code onto the
// closed domain.Language set: English stays distinguished, everything else
// that parses as a valid BCP-47 tag is "other".
func classify(code string) domain.Language {
	tag, err := language.Parse(code)
	if err != nil {
		return domain.LanguageOther
	}
	base, _ := tag.Base()
	if strings.EqualFold(base.String(), "en") {
		return domain.LanguageEnglish
	}
	return domain.LanguageOther
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := serviceerror.Retry(ctx, maxAttempts, 500*time.Millisecond, func(ctx context.Context) error {
		b, err := c.getOnce(ctx, path)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

func (c *Client) getOnce(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, serviceerror.New("metadata", serviceerror.Transient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := serviceerror.FromStatus(resp.StatusCode)
		return nil, serviceerror.New("metadata", kind, fmt.Errorf("http %d for %s", resp.StatusCode, path))
	}
	return io.ReadAll(resp.Body)
}

var _ domain.MetadataAdapter = (*Client)(nil)
