package detector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oddsdesk/oddsdesk/internal/cache"
	"github.com/oddsdesk/oddsdesk/internal/metrics"
	"github.com/oddsdesk/oddsdesk/pkg/models"
	"github.com/oddsdesk/oddsdesk/pkg/oddsmath"
)

// DetectSharpSignals analyzes quote history for behavior consistent with
// informed money: reverse line movement, steam moves, and sharp-book
// consensus diverging from the broader market. Signals from a later pass
// supersede earlier ones for the same event. The returned cache.Result
// carries the freshness tier and age of the odds the detection ran over.
func (d *Detector) DetectSharpSignals(ctx context.Context, sportKey string) ([]models.SharpSignal, cache.Result, error) {
	snapshot, res, err := d.snapshot(ctx, sportKey)
	if err != nil {
		return nil, res, err
	}

	groups := groupQuotes(snapshot.Quotes)
	splits := indexSplits(snapshot.Splits)
	now := d.now()

	var signals []models.SharpSignal
	for key, quotes := range groups {
		if sig, ok := d.reverseLineMovement(key, quotes, groups, splits, now); ok {
			signals = append(signals, sig)
		}
		if sig, ok := d.steamMove(key, quotes, now); ok {
			signals = append(signals, sig)
		}
		if sig, ok := d.consensusSharp(key, quotes, now); ok {
			signals = append(signals, sig)
		}
	}

	for i := range signals {
		signals[i].SportKey = sportKey
	}

	sort.Slice(signals, func(i, j int) bool {
		return signals[i].ConfidenceScore > signals[j].ConfidenceScore
	})

	metrics.SignalsEmitted.WithLabelValues("sharp_signal").Add(float64(len(signals)))
	return signals, res, nil
}

// reverseLineMovement fires when the market moves against the side holding a
// public-bet majority: the books are absorbing public volume on one side and
// still pricing the other side up, which is how sharp action shows up.
// Requires public bet splits; without them the signal is skipped.
func (d *Detector) reverseLineMovement(key groupKey, quotes []models.Quote, groups map[groupKey][]models.Quote, splits map[groupKey]float64, now time.Time) (models.SharpSignal, bool) {
	publicPct, ok := splits[key]
	if !ok || publicPct < d.cfg.PublicMajorityPct {
		return models.SharpSignal{}, false
	}

	movePts, books := averageProbMove(quotes)
	if books == 0 {
		return models.SharpSignal{}, false
	}

	// The public side's implied probability must have dropped despite the
	// ticket majority
	if movePts > -d.cfg.RLMMinMovePts {
		return models.SharpSignal{}, false
	}

	score := clampScore(45 + 10*(-movePts) + 0.5*(publicPct-d.cfg.PublicMajorityPct))
	return models.SharpSignal{
		EventID:         key.eventID,
		Market:          key.market,
		SignalType:      models.SignalReverseLineMovement,
		Strength:        d.strengthFor(score),
		ConfidenceScore: score,
		Side:            siblingOutcome(groups, key),
		Detail:          fmt.Sprintf("%.0f%% of tickets on %s, line moved %.1f pts against it", publicPct, key.outcome, movePts),
		ComputedAt:      now,
	}, true
}

// steamMove fires when enough bookmakers move the same line in the same
// direction inside the steam window
func (d *Detector) steamMove(key groupKey, quotes []models.Quote, now time.Time) (models.SharpSignal, bool) {
	toward, away := 0, 0
	for _, q := range quotes {
		if now.Sub(q.ObservedAt) > d.cfg.SteamWindow {
			continue
		}
		move, ok := quoteMove(q)
		if !ok || move == 0 {
			continue
		}
		if move >= d.cfg.SteamMinMove {
			toward++
		} else if move <= -d.cfg.SteamMinMove {
			away++
		}
	}

	count := toward
	if away > toward {
		// Coordinated movement away from this side reads as steam on the
		// sibling outcome's pass; skip to avoid double emission
		return models.SharpSignal{}, false
	}
	if count < d.cfg.SteamMinBooks {
		return models.SharpSignal{}, false
	}

	score := clampScore(40 + 15*float64(count-d.cfg.SteamMinBooks+1))
	return models.SharpSignal{
		EventID:         key.eventID,
		Market:          key.market,
		SignalType:      models.SignalSteamMove,
		Strength:        d.strengthFor(score),
		ConfidenceScore: score,
		Side:            key.outcome,
		Detail:          fmt.Sprintf("%d bookmakers moved toward %s within %s", count, key.outcome, d.cfg.SteamWindow),
		ComputedAt:      now,
	}, true
}

// consensusSharp fires when the configured sharp-book subset prices an
// outcome meaningfully above the rest of the market
func (d *Detector) consensusSharp(key groupKey, quotes []models.Quote, now time.Time) (models.SharpSignal, bool) {
	sharpSet := make(map[string]bool, len(d.cfg.SharpBooks))
	for _, book := range d.cfg.SharpBooks {
		sharpSet[book] = true
	}

	var sharpProbs, restProbs []float64
	for _, q := range quotes {
		prob, err := oddsmath.ImpliedProbability(q.Price)
		if err != nil {
			continue
		}
		if sharpSet[q.Bookmaker] {
			sharpProbs = append(sharpProbs, prob)
		} else {
			restProbs = append(restProbs, prob)
		}
	}

	if len(sharpProbs) == 0 || len(restProbs) == 0 {
		return models.SharpSignal{}, false
	}

	divergencePts := (average(sharpProbs) - average(restProbs)) * 100
	// Only positive divergence emits; the negative case surfaces on the
	// sibling outcome's pass
	if divergencePts < d.cfg.ConsensusDivergencePts {
		return models.SharpSignal{}, false
	}

	score := clampScore(50 + 10*(divergencePts-d.cfg.ConsensusDivergencePts) + 5*float64(len(sharpProbs)))
	return models.SharpSignal{
		EventID:         key.eventID,
		Market:          key.market,
		SignalType:      models.SignalConsensusSharp,
		Strength:        d.strengthFor(score),
		ConfidenceScore: score,
		Side:            key.outcome,
		Detail:          fmt.Sprintf("sharp books price %s %.1f pts above market", key.outcome, divergencePts),
		ComputedAt:      now,
	}, true
}

// quoteMove returns the open-to-current movement for a quote, in line points
// for spreads/totals or implied-probability percentage points for moneylines.
// Positive values move toward the quote's outcome.
func quoteMove(q models.Quote) (float64, bool) {
	if q.Market != models.MarketMoneyline && q.Point != nil && q.OpeningPoint != nil {
		return *q.Point - *q.OpeningPoint, true
	}

	if q.OpeningPrice == nil {
		return 0, false
	}
	openProb, err := oddsmath.ImpliedProbability(*q.OpeningPrice)
	if err != nil {
		return 0, false
	}
	curProb, err := oddsmath.ImpliedProbability(q.Price)
	if err != nil {
		return 0, false
	}
	return (curProb - openProb) * 100, true
}

// averageProbMove averages the open-to-current implied probability move
// across books, in percentage points
func averageProbMove(quotes []models.Quote) (float64, int) {
	sum, count := 0.0, 0
	for _, q := range quotes {
		if q.OpeningPrice == nil {
			continue
		}
		openProb, err := oddsmath.ImpliedProbability(*q.OpeningPrice)
		if err != nil {
			continue
		}
		curProb, err := oddsmath.ImpliedProbability(q.Price)
		if err != nil {
			continue
		}
		sum += (curProb - openProb) * 100
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return sum / float64(count), count
}

func indexSplits(splits []models.PublicSplit) map[groupKey]float64 {
	out := make(map[groupKey]float64, len(splits))
	for _, s := range splits {
		out[groupKey{eventID: s.EventID, market: s.Market, outcome: s.OutcomeName}] = s.BetPercent
	}
	return out
}

func average(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return sum / float64(len(nums))
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
