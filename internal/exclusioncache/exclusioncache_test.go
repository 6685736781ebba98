package exclusioncache

import (
	"testing"
	"time"

	"github.com/nichefm/nichefm/internal/validator"
	"github.com/nichefm/nichefm/pkg/store"
)

func TestIsValidExclusionFreshTemporaryReason(t *testing.T) {
	c := &Cache{byID: map[string]store.ExcludedArtist{
		"mbid-1": {
			MetadataID:     "mbid-1",
			ReasonExcluded: string(validator.ReasonTooFewSomething),
			DateExcluded:   time.Now().Add(-time.Hour),
		},
	}}
	reason, ok := c.IsValidExclusion("mbid-1")
	if !ok || reason != validator.ReasonTooFewSomething {
		t.Errorf("expected fresh exclusion to still apply, got (%q, %v)", reason, ok)
	}
}

func TestIsValidExclusionStaleTemporaryReasonExpires(t *testing.T) {
	c := &Cache{byID: map[string]store.ExcludedArtist{
		"mbid-1": {
			MetadataID:     "mbid-1",
			ReasonExcluded: string(validator.ReasonTooFewSomething),
			DateExcluded:   time.Now().Add(-200 * 24 * time.Hour),
		},
	}}
	if _, ok := c.IsValidExclusion("mbid-1"); ok {
		t.Error("expected stale temporary exclusion to no longer apply")
	}
}

func TestIsValidExclusionPermanentReasonNeverExpires(t *testing.T) {
	tests := []validator.Reason{validator.ReasonTooManySomething, validator.ReasonWrongLanguage}
	for _, reason := range tests {
		c := &Cache{byID: map[string]store.ExcludedArtist{
			"mbid-1": {
				MetadataID:     "mbid-1",
				ReasonExcluded: string(reason),
				DateExcluded:   time.Now().Add(-10 * 365 * 24 * time.Hour),
			},
		}}
		got, ok := c.IsValidExclusion("mbid-1")
		if !ok || got != reason {
			t.Errorf("expected permanent reason %q to still apply regardless of age, got (%q, %v)", reason, got, ok)
		}
	}
}

func TestIsValidExclusionUnknownArtist(t *testing.T) {
	c := &Cache{byID: map[string]store.ExcludedArtist{}}
	if _, ok := c.IsValidExclusion("never-seen"); ok {
		t.Error("expected no exclusion for an unknown artist")
	}
}
