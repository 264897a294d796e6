package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oddsdesk/oddsdesk/internal/config"
	"github.com/oddsdesk/oddsdesk/internal/metrics"
	"github.com/oddsdesk/oddsdesk/internal/retry"
	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// Fetcher retrieves a domain payload from the upstream provider
type Fetcher interface {
	Fetch(ctx context.Context, domain models.Domain, key string) (json.RawMessage, error)
}

// Result is a cache read tagged with explicit freshness
type Result struct {
	Payload    json.RawMessage      `json:"payload"`
	Tier       models.FreshnessTier `json:"tier"`
	AgeSeconds int                  `json:"age_seconds"`
	RefreshErr error                `json:"-"` // Set when tier is stale_but_served
}

// Orchestrator serves the most useful available snapshot of a data domain
// while making staleness explicit and bounding the cost of refreshing.
//
// Tier policy per domain (fresh / acceptable / hard cutoff windows):
//   - age < fresh window: serve immediately, tier=fresh
//   - age < acceptable window: serve immediately, tier=acceptable
//   - otherwise attempt one bounded refresh; on failure fall back to the
//     cached entry below the hard cutoff (stale_but_served) or reject.
//
// A rejected read is terminal for the caller: it must never be converted
// into usable data.
type Orchestrator struct {
	store          Store
	fetcher        Fetcher
	windows        map[models.Domain]config.Windows
	refreshTimeout time.Duration
	retry          *retry.Policy
	group          singleflight.Group
	now            func() time.Time
}

// NewOrchestrator creates a new fetch orchestrator
func NewOrchestrator(store Store, fetcher Fetcher, windows map[models.Domain]config.Windows, refreshTimeout time.Duration, retryPolicy *retry.Policy) *Orchestrator {
	return &Orchestrator{
		store:          store,
		fetcher:        fetcher,
		windows:        windows,
		refreshTimeout: refreshTimeout,
		retry:          retryPolicy,
		now:            time.Now,
	}
}

// Get returns the cached payload for (domain, key) tagged with its freshness
// tier, refreshing from upstream when the entry is past the acceptable
// window. Returns models.ErrDataRejected when no usable data exists.
func (o *Orchestrator) Get(ctx context.Context, domain models.Domain, key string) (Result, error) {
	win, ok := o.windows[domain]
	if !ok {
		return Result{Tier: models.TierRejected}, fmt.Errorf("%w: unknown data domain %q", models.ErrValidation, domain)
	}

	domainKey := fmt.Sprintf("%s:%s", domain, key)

	entry, err := o.store.Read(ctx, domainKey)
	if err != nil {
		// Store trouble is recovered like a miss; the refresh path decides
		log.Printf("[cache] read %s: %v", domainKey, err)
		entry = nil
	}

	if entry != nil {
		age := o.now().Sub(entry.LastRefreshedAt)
		if age < win.Fresh {
			return o.result(domain, entry.Payload, models.TierFresh, age, nil), nil
		}
		if age < win.Acceptable {
			return o.result(domain, entry.Payload, models.TierAcceptable, age, nil), nil
		}
	}

	// Past the acceptable window (or nothing cached): one bounded refresh,
	// deduplicated per key so concurrent stale reads share a single upstream
	// call instead of thundering against a rate-limited provider.
	fresh, refreshErr := o.refreshShared(ctx, domain, key, domainKey, win)
	if refreshErr == nil {
		age := o.now().Sub(fresh.LastRefreshedAt)
		return o.result(domain, fresh.Payload, models.TierFresh, age, nil), nil
	}

	if entry != nil {
		age := o.now().Sub(entry.LastRefreshedAt)
		if age < win.HardCutoff {
			return o.result(domain, entry.Payload, models.TierStale, age, refreshErr), nil
		}
	}

	metrics.CacheReads.WithLabelValues(string(domain), string(models.TierRejected)).Inc()
	return Result{Tier: models.TierRejected}, fmt.Errorf("%w (domain=%s key=%s): %v", models.ErrDataRejected, domain, key, refreshErr)
}

// refreshShared runs one refresh per key at a time; concurrent callers for
// the same key wait on the in-flight attempt and share its outcome.
func (o *Orchestrator) refreshShared(ctx context.Context, domain models.Domain, key, domainKey string, win config.Windows) (*Entry, error) {
	v, err, _ := o.group.Do(domainKey, func() (interface{}, error) {
		return o.refresh(ctx, domain, key, domainKey, win)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// refresh performs one bounded upstream fetch and writes the new entry.
// The refresh context is detached from the caller so one caller's
// cancellation cannot poison waiters sharing the flight.
func (o *Orchestrator) refresh(ctx context.Context, domain models.Domain, key, domainKey string, win config.Windows) (*Entry, error) {
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.refreshTimeout)
	defer cancel()

	start := o.now()

	var payload json.RawMessage
	err := o.retry.Do(refreshCtx, func() error {
		var fetchErr error
		payload, fetchErr = o.fetcher.Fetch(refreshCtx, domain, key)
		return fetchErr
	})

	metrics.RefreshDuration.WithLabelValues(string(domain)).Observe(o.now().Sub(start).Seconds())

	if err != nil {
		metrics.RefreshAttempts.WithLabelValues(string(domain), "failure").Inc()
		if refreshCtx.Err() != nil {
			return nil, fmt.Errorf("%w (domain=%s key=%s): %v", models.ErrProviderTimeout, domain, key, err)
		}
		return nil, fmt.Errorf("refresh %s: %w", domainKey, err)
	}

	entry := &Entry{
		DomainKey:       domainKey,
		Payload:         payload,
		LastRefreshedAt: o.now(),
	}

	if writeErr := o.store.Write(refreshCtx, entry, win.HardCutoff); writeErr != nil {
		// Serve the fetched payload anyway; the next read refetches
		log.Printf("[cache] write %s: %v", domainKey, writeErr)
	}

	metrics.RefreshAttempts.WithLabelValues(string(domain), "success").Inc()
	return entry, nil
}

func (o *Orchestrator) result(domain models.Domain, payload json.RawMessage, tier models.FreshnessTier, age time.Duration, refreshErr error) Result {
	metrics.CacheReads.WithLabelValues(string(domain), string(tier)).Inc()
	return Result{
		Payload:    payload,
		Tier:       tier,
		AgeSeconds: int(age.Seconds()),
		RefreshErr: refreshErr,
	}
}

// Windows exposes the configured thresholds for a domain, used by consumers
// that must exclude individual records past the hard cutoff
func (o *Orchestrator) Windows(domain models.Domain) (config.Windows, bool) {
	win, ok := o.windows[domain]
	return win, ok
}
