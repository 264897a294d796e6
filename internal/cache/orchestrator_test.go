package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oddsdesk/oddsdesk/internal/config"
	"github.com/oddsdesk/oddsdesk/internal/retry"
	"github.com/oddsdesk/oddsdesk/pkg/models"
)

type stubFetcher struct {
	calls   atomic.Int64
	payload json.RawMessage
	err     error
	delay   time.Duration
}

func (f *stubFetcher) Fetch(ctx context.Context, domain models.Domain, key string) (json.RawMessage, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func testWindows() map[models.Domain]config.Windows {
	return map[models.Domain]config.Windows{
		models.DomainOdds: {
			Fresh:      5 * time.Minute,
			Acceptable: 30 * time.Minute,
			HardCutoff: 2 * time.Hour,
		},
	}
}

func newTestOrchestrator(fetcher Fetcher) (*Orchestrator, *MemoryStore) {
	store := NewMemoryStore()
	orch := NewOrchestrator(store, fetcher, testWindows(), time.Second, retry.NewPolicy(1, time.Millisecond))
	return orch, store
}

func seedEntry(t *testing.T, store *MemoryStore, age time.Duration, payload string) {
	t.Helper()
	err := store.Write(context.Background(), &Entry{
		DomainKey:       "odds:basketball_nba",
		Payload:         json.RawMessage(payload),
		LastRefreshedAt: time.Now().Add(-age),
	}, 0)
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestGetFreshTier(t *testing.T) {
	fetcher := &stubFetcher{payload: json.RawMessage(`{"new":true}`)}
	orch, store := newTestOrchestrator(fetcher)
	seedEntry(t, store, 1*time.Minute, `{"cached":true}`)

	result, err := orch.Get(context.Background(), models.DomainOdds, "basketball_nba")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Tier != models.TierFresh {
		t.Errorf("tier = %s, want fresh", result.Tier)
	}
	if string(result.Payload) != `{"cached":true}` {
		t.Errorf("payload = %s, want cached payload", result.Payload)
	}
	if got := fetcher.calls.Load(); got != 0 {
		t.Errorf("fetcher called %d times, want 0", got)
	}
	if result.AgeSeconds < 55 || result.AgeSeconds > 65 {
		t.Errorf("age = %d seconds, want about 60", result.AgeSeconds)
	}
}

func TestGetAcceptableTier(t *testing.T) {
	fetcher := &stubFetcher{payload: json.RawMessage(`{"new":true}`)}
	orch, store := newTestOrchestrator(fetcher)
	seedEntry(t, store, 10*time.Minute, `{"cached":true}`)

	result, err := orch.Get(context.Background(), models.DomainOdds, "basketball_nba")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Tier != models.TierAcceptable {
		t.Errorf("tier = %s, want acceptable", result.Tier)
	}
	if got := fetcher.calls.Load(); got != 0 {
		t.Errorf("fetcher called %d times, want 0: acceptable reads never contact upstream", got)
	}
}

func TestRefreshOnStaleEntry(t *testing.T) {
	fetcher := &stubFetcher{payload: json.RawMessage(`{"new":true}`)}
	orch, store := newTestOrchestrator(fetcher)
	seedEntry(t, store, 45*time.Minute, `{"cached":true}`)

	result, err := orch.Get(context.Background(), models.DomainOdds, "basketball_nba")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Tier != models.TierFresh {
		t.Errorf("tier = %s, want fresh after successful refresh", result.Tier)
	}
	if string(result.Payload) != `{"new":true}` {
		t.Errorf("payload = %s, want refreshed payload", result.Payload)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}

	// The new entry must be persisted
	entry, err := store.Read(context.Background(), "odds:basketball_nba")
	if err != nil || entry == nil {
		t.Fatalf("expected persisted entry, got entry=%v err=%v", entry, err)
	}
	if string(entry.Payload) != `{"new":true}` {
		t.Errorf("persisted payload = %s, want refreshed payload", entry.Payload)
	}
}

func TestStaleFallbackOnRefreshFailure(t *testing.T) {
	fetcher := &stubFetcher{err: fmt.Errorf("upstream down")}
	orch, store := newTestOrchestrator(fetcher)
	seedEntry(t, store, 45*time.Minute, `{"cached":true}`)

	result, err := orch.Get(context.Background(), models.DomainOdds, "basketball_nba")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Tier != models.TierStale {
		t.Errorf("tier = %s, want stale_but_served", result.Tier)
	}
	if string(result.Payload) != `{"cached":true}` {
		t.Errorf("payload = %s, want cached fallback", result.Payload)
	}
	if result.RefreshErr == nil {
		t.Error("expected RefreshErr to carry the upstream failure")
	}
}

func TestRejectedPastHardCutoff(t *testing.T) {
	fetcher := &stubFetcher{err: fmt.Errorf("upstream down")}
	orch, store := newTestOrchestrator(fetcher)
	seedEntry(t, store, 3*time.Hour, `{"cached":true}`)

	result, err := orch.Get(context.Background(), models.DomainOdds, "basketball_nba")
	if !errors.Is(err, models.ErrDataRejected) {
		t.Fatalf("error = %v, want ErrDataRejected", err)
	}

	if result.Tier != models.TierRejected {
		t.Errorf("tier = %s, want rejected", result.Tier)
	}
	if result.Payload != nil {
		t.Error("rejected reads must never carry a payload")
	}
}

func TestRejectedOnEmptyCacheAndFailure(t *testing.T) {
	fetcher := &stubFetcher{err: fmt.Errorf("upstream down")}
	orch, _ := newTestOrchestrator(fetcher)

	_, err := orch.Get(context.Background(), models.DomainOdds, "basketball_nba")
	if !errors.Is(err, models.ErrDataRejected) {
		t.Fatalf("error = %v, want ErrDataRejected", err)
	}
}

func TestRefreshRecoversEntryPastCutoff(t *testing.T) {
	fetcher := &stubFetcher{payload: json.RawMessage(`{"new":true}`)}
	orch, store := newTestOrchestrator(fetcher)
	seedEntry(t, store, 3*time.Hour, `{"cached":true}`)

	result, err := orch.Get(context.Background(), models.DomainOdds, "basketball_nba")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Tier != models.TierFresh {
		t.Errorf("tier = %s, want fresh: a successful refresh supersedes the dead entry", result.Tier)
	}
}

func TestUnknownDomainRejected(t *testing.T) {
	orch, _ := newTestOrchestrator(&stubFetcher{})

	_, err := orch.Get(context.Background(), models.Domain("weather"), "basketball_nba")
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestSingleFlightDeduplicatesRefresh(t *testing.T) {
	fetcher := &stubFetcher{payload: json.RawMessage(`{"new":true}`), delay: 50 * time.Millisecond}
	orch, store := newTestOrchestrator(fetcher)
	seedEntry(t, store, 45*time.Minute, `{"cached":true}`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := orch.Get(context.Background(), models.DomainOdds, "basketball_nba")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if result.Tier != models.TierFresh {
				t.Errorf("tier = %s, want fresh", result.Tier)
			}
		}()
	}
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1 (single-flight)", got)
	}
}

func TestRefreshTimeoutFallsBackToCache(t *testing.T) {
	fetcher := &stubFetcher{payload: json.RawMessage(`{"new":true}`), delay: 5 * time.Second}
	store := NewMemoryStore()
	orch := NewOrchestrator(store, fetcher, testWindows(), 50*time.Millisecond, retry.NewPolicy(1, time.Millisecond))
	seedEntry(t, store, 45*time.Minute, `{"cached":true}`)

	start := time.Now()
	result, err := orch.Get(context.Background(), models.DomainOdds, "basketball_nba")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Get blocked for %s, want bounded by refresh timeout", elapsed)
	}
	if result.Tier != models.TierStale {
		t.Errorf("tier = %s, want stale_but_served after timeout", result.Tier)
	}
	if result.RefreshErr == nil {
		t.Error("expected RefreshErr after timeout")
	}
}
