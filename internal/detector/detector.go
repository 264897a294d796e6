package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oddsdesk/oddsdesk/internal/cache"
	"github.com/oddsdesk/oddsdesk/internal/config"
	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// Detector surfaces pricing disagreement and sharp-money behavior from
// quotes the cache has certified as fresh enough. It never operates on
// rejected data: a rejected cache read propagates as ErrDataRejected so the
// caller can refuse to answer instead of presenting guessed numbers.
type Detector struct {
	cache *cache.Orchestrator
	cfg   config.DetectorConfig
	now   func() time.Time
}

// New creates a new detector
func New(cacheOrch *cache.Orchestrator, cfg config.DetectorConfig) *Detector {
	return &Detector{
		cache: cacheOrch,
		cfg:   cfg,
		now:   time.Now,
	}
}

// snapshot loads the odds snapshot for a sport through the freshness gate and
// drops individual quotes past the odds hard cutoff before any computation
func (d *Detector) snapshot(ctx context.Context, sportKey string) (*models.OddsSnapshot, cache.Result, error) {
	res, err := d.cache.Get(ctx, models.DomainOdds, sportKey)
	if err != nil {
		return nil, res, err
	}

	var snapshot models.OddsSnapshot
	if err := json.Unmarshal(res.Payload, &snapshot); err != nil {
		return nil, res, fmt.Errorf("decode odds snapshot for %s: %w", sportKey, err)
	}

	win, ok := d.cache.Windows(models.DomainOdds)
	if !ok {
		return nil, res, fmt.Errorf("%w: no freshness windows for odds domain", models.ErrValidation)
	}

	now := d.now()
	usable := snapshot.Quotes[:0]
	for _, q := range snapshot.Quotes {
		if now.Sub(q.ObservedAt) < win.HardCutoff {
			usable = append(usable, q)
		}
	}
	snapshot.Quotes = usable

	return &snapshot, res, nil
}

// strengthFor maps a confidence score to its strength bucket:
// <50 weak, 50-70 moderate, 70-90 strong, >90 very_strong (defaults)
func (d *Detector) strengthFor(score float64) models.SignalStrength {
	switch {
	case score < d.cfg.ModerateScore:
		return models.StrengthWeak
	case score < d.cfg.StrongScore:
		return models.StrengthModerate
	case score <= d.cfg.VeryStrongScore:
		return models.StrengthStrong
	default:
		return models.StrengthVeryStrong
	}
}

// groupKey identifies one outcome of one market of one event
type groupKey struct {
	eventID string
	market  string
	outcome string
}

// groupQuotes buckets quotes by (event, market, outcome), keeping only the
// latest observation per bookmaker within each bucket
func groupQuotes(quotes []models.Quote) map[groupKey][]models.Quote {
	latest := make(map[groupKey]map[string]models.Quote)

	for _, q := range quotes {
		key := groupKey{eventID: q.EventID, market: q.Market, outcome: q.OutcomeName}
		byBook, ok := latest[key]
		if !ok {
			byBook = make(map[string]models.Quote)
			latest[key] = byBook
		}
		if prev, ok := byBook[q.Bookmaker]; !ok || q.ObservedAt.After(prev.ObservedAt) {
			byBook[q.Bookmaker] = q
		}
	}

	groups := make(map[groupKey][]models.Quote, len(latest))
	for key, byBook := range latest {
		quotes := make([]models.Quote, 0, len(byBook))
		for _, q := range byBook {
			quotes = append(quotes, q)
		}
		groups[key] = quotes
	}

	return groups
}

// siblingOutcome finds the other side of a two-way market, used to name the
// sharp side when the signal points away from a heavily bet outcome
func siblingOutcome(groups map[groupKey][]models.Quote, key groupKey) string {
	for other := range groups {
		if other.eventID == key.eventID && other.market == key.market && other.outcome != key.outcome {
			return other.outcome
		}
	}
	return fmt.Sprintf("opposite %s", key.outcome)
}
