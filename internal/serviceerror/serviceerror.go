// Package serviceerror gives the three service adapters a shared error
// taxonomy so callers can decide whether to retry, skip, or abort without
// parsing HTTP status codes themselves.
package serviceerror

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Kind classifies why an adapter call failed.
type Kind string

const (
	Transient    Kind = "transient"
	NotFound     Kind = "not_found"
	Unauthorized Kind = "unauthorized"
	RateLimited  Kind = "rate_limited"
	Malformed    Kind = "malformed"
	Other        Kind = "other"
)

// ServiceError wraps an adapter failure with its Kind, so a caller can
// type-assert or errors.As into it to decide on retry policy.
type ServiceError struct {
	Kind    Kind
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// New wraps err as a ServiceError of the given kind.
func New(service string, kind Kind, err error) *ServiceError {
	return &ServiceError{Kind: kind, Service: service, Err: err}
}

// FromStatus classifies an HTTP status code into a Kind.
func FromStatus(status int) Kind {
	switch {
	case status == 404:
		return NotFound
	case status == 401 || status == 403:
		return Unauthorized
	case status == 429:
		return RateLimited
	case status == 400 || status == 422:
		return Malformed
	case status >= 500:
		return Transient
	default:
		return Other
	}
}

// Retryable reports whether a Kind is worth retrying.
func (k Kind) Retryable() bool {
	return k == Transient || k == RateLimited
}

// ValidationError reports that user-supplied request parameters (genre,
// language, niche level, track duration band) failed validation before any
// adapter call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NotEnoughSongsError reports that the selection pipeline, even after
// top-up, could not clear the requested playlist's minimum length.
type NotEnoughSongsError struct {
	Wanted int
	Got    int
}

func (e *NotEnoughSongsError) Error() string {
	return fmt.Sprintf("not enough songs: wanted at least %d, got %d", e.Wanted, e.Got)
}

// PartialFailureError wraps a non-fatal batch of per-item failures (e.g.
// artists skipped during selection) alongside the successful result, so a
// caller can decide whether the partial result is still acceptable.
type PartialFailureError struct {
	Failures []error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d operations failed", len(e.Failures))
}

func (e *PartialFailureError) Unwrap() []error { return e.Failures }

// Retry runs fn up to maxAttempts times, retrying only on a ServiceError
// whose Kind is Retryable, with bounded exponential backoff and jitter.
func Retry(ctx context.Context, maxAttempts int, base time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var svcErr *ServiceError
		if !errors.As(err, &svcErr) || !svcErr.Kind.Retryable() {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}

		backoff := base * time.Duration(1<<attempt)
		jitter := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff/2 + jitter/2):
		}
	}
	return lastErr
}
