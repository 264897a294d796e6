package detector

import (
	"context"
	"log"
	"sort"

	"github.com/oddsdesk/oddsdesk/internal/cache"
	"github.com/oddsdesk/oddsdesk/internal/metrics"
	"github.com/oddsdesk/oddsdesk/pkg/models"
	"github.com/oddsdesk/oddsdesk/pkg/oddsmath"
)

// DetectDiscrepancies computes the largest pricing disagreement across
// bookmakers for every outcome of a sport's current markets. A group needs at
// least minBookmakers quotes and a spread wider than the configured minimum
// (percentage points of implied probability) to be emitted. Results are
// sorted by difference descending, ties broken by event start ascending.
// The returned cache.Result carries the freshness tier and age of the odds
// the detection ran over, so callers can surface staleness to the user.
func (d *Detector) DetectDiscrepancies(ctx context.Context, sportKey string, minBookmakers int) ([]models.DiscrepancyRecord, cache.Result, error) {
	if minBookmakers < 2 {
		minBookmakers = d.cfg.MinBookmakers
	}

	snapshot, res, err := d.snapshot(ctx, sportKey)
	if err != nil {
		return nil, res, err
	}

	groups := groupQuotes(snapshot.Quotes)
	now := d.now()

	records := make([]models.DiscrepancyRecord, 0, len(groups))
	for key, quotes := range groups {
		if len(quotes) < minBookmakers {
			continue
		}

		record := models.DiscrepancyRecord{
			EventID:       key.eventID,
			Market:        key.market,
			OutcomeName:   key.outcome,
			NumBookmakers: len(quotes),
			ComputedAt:    now,
		}

		valid := 0
		for _, q := range quotes {
			prob, err := oddsmath.ImpliedProbability(q.Price)
			if err != nil {
				log.Printf("[detector] skipping quote %s/%s from %s: %v", q.EventID, q.OutcomeName, q.Bookmaker, err)
				continue
			}

			if valid == 0 || prob < record.ProbabilityLow {
				record.ProbabilityLow = prob
				record.BookmakerLow = q.Bookmaker
			}
			if valid == 0 || prob > record.ProbabilityHigh {
				record.ProbabilityHigh = prob
				record.BookmakerHigh = q.Bookmaker
			}
			record.EventStart = q.EventStart
			valid++
		}

		if valid < minBookmakers {
			continue
		}

		record.NumBookmakers = valid
		record.DifferencePts = (record.ProbabilityHigh - record.ProbabilityLow) * 100

		if record.DifferencePts <= d.cfg.MinDiscrepancyPts {
			continue
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].DifferencePts != records[j].DifferencePts {
			return records[i].DifferencePts > records[j].DifferencePts
		}
		return records[i].EventStart.Before(records[j].EventStart)
	})

	metrics.SignalsEmitted.WithLabelValues("discrepancy").Add(float64(len(records)))
	return records, res, nil
}
