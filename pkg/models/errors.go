package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors crossing the core/caller boundary
var (
	// ErrDataRejected means the requested domain data exceeds the hard
	// staleness cutoff and no fresher data could be fetched. Callers must
	// refuse to answer rather than use rejected data.
	ErrDataRejected = errors.New("data rejected: exceeds hard staleness cutoff")

	// ErrNotFound means no pending bet matched the caller's reference
	ErrNotFound = errors.New("bet not found")

	// ErrSettlementConflict means the bet is already settled
	ErrSettlementConflict = errors.New("bet already settled")

	// ErrValidation means malformed input rejected before any mutation
	ErrValidation = errors.New("validation failed")

	// ErrProviderTimeout means the upstream call exceeded its deadline
	ErrProviderTimeout = errors.New("provider timeout")
)

// AmbiguousMatchError means more than one pending bet matched the caller's
// reference. No mutation is performed; the caller must re-invoke with a more
// specific reference. Never guess among candidates.
type AmbiguousMatchError struct {
	Ref        string
	Candidates []Bet
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous bet reference %q: %d pending bets match", e.Ref, len(e.Candidates))
}

// RateLimitedError means the upstream returned HTTP 429. The fetch path backs
// off for RetryAfter (when the upstream supplied one) before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider rate limited, retry after %s", e.RetryAfter)
	}
	return "provider rate limited"
}
