// Package kvkeys defines the key schema for the Redis-backed response cache
// and distributed rate limiter.
package kvkeys

import "strings"

// AdapterResponse caches a single upstream service response body.
func AdapterResponse(service, endpoint, argHash string) string {
	return "adapter:" + service + ":" + endpoint + ":" + argHash
}

// RateLimitBucket is the SET NX slot key, expiring after the interval, for
// an adapter's shared rate limit when RATE_LIMIT_BACKEND=redis.
func RateLimitBucket(service string) string {
	return "ratelimit:" + service
}

// ExclusionSet caches the in-memory exclusion lookup for a request so that
// a retried or resumed finder run doesn't re-read requests_cache on every
// retry within the same process.
func ExclusionSet(language, genre, nicheLevel string) string {
	return "exclusion:" + sanitize(language) + ":" + sanitize(genre) + ":" + sanitize(nicheLevel)
}

// CoverImage is the object-store key for a rendered cover image, keyed by
// genre slug.
func CoverImage(genreSlug string) string {
	return "covers/" + genreSlug + ".jpg"
}

func sanitize(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}
