// Package exclusioncache wraps the persisted requests_cache table
// (pkg/store's ExclusionCacheEntry) with the freshness rule that decides
// whether a past exclusion still applies to the current selection run.
package exclusioncache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nichefm/nichefm/internal/validator"
	"github.com/nichefm/nichefm/pkg/store"
)

// freshnessWindow is how long a non-permanent exclusion (too unknown,
// listener/play ratio too small) is trusted to still hold without re-checking, mirroring the source
// system's ARTIST_EXCLUDED_EARLIEST_DATE constant.
const freshnessWindow = 182 * 24 * time.Hour

// entryStore is the narrow persistence surface Cache needs.
type entryStore interface {
	EnsureExclusionEntry(ctx context.Context, p store.EnsureExclusionEntryParams) (store.ExclusionCacheEntry, error)
	PutExcludedArtist(ctx context.Context, p store.PutExcludedArtistParams) error
	RemoveExcludedArtist(ctx context.Context, p store.RemoveExcludedArtistParams) error
}

// Cache loads one (language, genre, niche_level) exclusion entry and
// serves cheap in-memory lookups against it for the duration of a
// selection run, so the finder never re-queries the database per artist.
type Cache struct {
	store   entryStore
	entryID string
	byID    map[string]store.ExcludedArtist
}

// Load ensures the exclusion-cache row for this key exists and loads its
// current contents into memory.
func Load(ctx context.Context, s entryStore, language, genre, nicheLevel string) (*Cache, error) {
	entry, err := s.EnsureExclusionEntry(ctx, store.EnsureExclusionEntryParams{
		ID:         uuid.NewString(),
		Language:   language,
		Genre:      genre,
		NicheLevel: nicheLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("exclusioncache: ensure entry: %w", err)
	}
	c := &Cache{store: s, entryID: entry.ID, byID: make(map[string]store.ExcludedArtist, len(entry.Excluded))}
	for _, e := range entry.Excluded {
		c.byID[e.MetadataID] = e
	}
	return c, nil
}

// IsValidExclusion reports whether a previously recorded exclusion for
// metadataID still applies: either it is within the freshness window, or
// it was for a permanent reason (too popular, or wrong language) that
// re-checking would not change.
func (c *Cache) IsValidExclusion(metadataID string) (validator.Reason, bool) {
	e, ok := c.byID[metadataID]
	if !ok {
		return "", false
	}
	reason := validator.Reason(e.ReasonExcluded)
	fresh := time.Since(e.DateExcluded) < freshnessWindow
	permanent := reason == validator.ReasonTooManySomething || reason == validator.ReasonWrongLanguage
	if fresh || permanent {
		return reason, true
	}
	return "", false
}

// Put records (or refreshes) an exclusion for metadataID.
func (c *Cache) Put(ctx context.Context, name, metadataID string, reason validator.Reason) error {
	err := c.store.PutExcludedArtist(ctx, store.PutExcludedArtistParams{
		EntryID: c.entryID,
		Excluded: store.ExcludedArtist{
			Name:           name,
			MetadataID:     metadataID,
			ReasonExcluded: string(reason),
			DateExcluded:   time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("exclusioncache: put: %w", err)
	}
	c.byID[metadataID] = store.ExcludedArtist{
		Name: name, MetadataID: metadataID, ReasonExcluded: string(reason), DateExcluded: time.Now(),
	}
	return nil
}

// Remove clears a previously recorded exclusion, used when an artist that
// was excluded before now passes validation.
func (c *Cache) Remove(ctx context.Context, metadataID string) error {
	if err := c.store.RemoveExcludedArtist(ctx, store.RemoveExcludedArtistParams{
		EntryID: c.entryID, MetadataID: metadataID,
	}); err != nil {
		return fmt.Errorf("exclusioncache: remove: %w", err)
	}
	delete(c.byID, metadataID)
	return nil
}
