package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// Policy handles retry logic with exponential backoff. One policy is shared
// by every upstream fetch path instead of ad hoc loops per call site.
type Policy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// NewPolicy creates a new retry policy
func NewPolicy(maxAttempts int, initialDelay time.Duration) *Policy {
	return &Policy{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     30 * time.Second, // Cap at 30 seconds
	}
}

// Do runs fn with retry logic. Rate-limited errors wait out the upstream's
// Retry-After hint; other failures back off exponentially with jitter.
// Returns early when ctx is cancelled.
func (p *Policy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := p.initialDelay

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("cancelled after %d attempts: %w", attempt-1, lastErr)
			}
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		// Don't sleep after last attempt
		if attempt == p.maxAttempts {
			break
		}

		wait := withJitter(delay)

		var rateLimited *models.RateLimitedError
		if errors.As(err, &rateLimited) && rateLimited.RetryAfter > wait {
			wait = rateLimited.RetryAfter
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled after %d attempts: %w", attempt, lastErr)
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * 1.5)
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.maxAttempts, lastErr)
}

// withJitter spreads retries from concurrent callers by up to 25%
func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}
