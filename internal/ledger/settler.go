package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oddsdesk/oddsdesk/internal/metrics"
	"github.com/oddsdesk/oddsdesk/pkg/models"
	"github.com/oddsdesk/oddsdesk/pkg/oddsmath"
)

// Settler owns the bet lifecycle: logging, reference resolution, and atomic
// settlement against the bankroll.
type Settler struct {
	store Store
	now   func() time.Time
}

// NewSettler creates a new settler
func NewSettler(store Store) *Settler {
	return &Settler{
		store: store,
		now:   time.Now,
	}
}

// LogBet validates and records a new pending bet
func (s *Settler) LogBet(ctx context.Context, userID string, amount float64, odds int, description string) (*models.Bet, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", models.ErrValidation)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: stake must be positive", models.ErrValidation)
	}
	if odds == 0 {
		return nil, fmt.Errorf("%w: odds cannot be zero", models.ErrValidation)
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is required", models.ErrValidation)
	}

	bet := &models.Bet{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Odds:        odds,
		Description: strings.TrimSpace(description),
		Outcome:     models.OutcomePending,
		CreatedAt:   s.now(),
	}

	if err := s.store.CreateBet(ctx, bet); err != nil {
		return nil, fmt.Errorf("create bet: %w", err)
	}

	return bet, nil
}

// Settle resolves betRef against the user's pending bets and transitions the
// single match to a terminal outcome, updating the bankroll atomically.
//
// betRef is either an exact bet id or a free-text fragment of the
// description. Zero matches return ErrNotFound; multiple matches return
// AmbiguousMatchError with the full candidate list and perform no mutation —
// the caller must re-invoke with a more specific reference.
func (s *Settler) Settle(ctx context.Context, userID, betRef string, outcome models.BetOutcome, actualReturn *float64) (*models.SettlementResult, error) {
	if !outcome.IsTerminal() {
		return nil, fmt.Errorf("%w: outcome must be win, loss, or push", models.ErrValidation)
	}

	betRef = strings.TrimSpace(betRef)
	if betRef == "" {
		return nil, fmt.Errorf("%w: bet reference is required", models.ErrValidation)
	}

	pending, err := s.store.PendingBets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending bets: %w", err)
	}

	bet, err := resolveBetRef(pending, betRef)
	if err != nil {
		// A reference that resolves to an already-settled bet is a repeat
		// settlement, not a miss
		if errors.Is(err, models.ErrNotFound) {
			if settled, ok := s.findSettled(ctx, userID, betRef); ok {
				return nil, fmt.Errorf("%w: bet %s is %s", models.ErrSettlementConflict, settled.ID, settled.Outcome)
			}
		}
		return nil, err
	}

	ret, err := s.computeReturn(bet, outcome, actualReturn)
	if err != nil {
		return nil, err
	}
	profit := oddsmath.Profit(ret, bet.Amount)

	out, err := s.store.SettleBet(ctx, userID, bet.ID, outcome, s.now(), ret, profit, entryTypeFor(outcome))
	if err != nil {
		return nil, err
	}

	metrics.Settlements.WithLabelValues(string(outcome)).Inc()

	return &models.SettlementResult{
		Bet:             out.Bet,
		Profit:          profit,
		ActualReturn:    ret,
		PreviousBalance: out.PreviousBalance,
		NewBalance:      out.NewBalance,
	}, nil
}

// ListBets retrieves a user's bets
func (s *Settler) ListBets(ctx context.Context, userID string, filters BetFilters) ([]models.Bet, error) {
	return s.store.ListBets(ctx, userID, filters)
}

// Summary retrieves aggregate P&L statistics
func (s *Settler) Summary(ctx context.Context, userID string) (*models.BetSummary, error) {
	return s.store.Summary(ctx, userID)
}

// Bankroll retrieves the current balance and recent ledger entries
func (s *Settler) Bankroll(ctx context.Context, userID string) (float64, []models.BankrollEntry, error) {
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return 0, nil, err
	}

	entries, err := s.store.RecentEntries(ctx, userID, 20)
	if err != nil {
		return 0, nil, err
	}

	return balance, entries, nil
}

// Adjust applies a validated manual bankroll adjustment
func (s *Settler) Adjust(ctx context.Context, userID string, amount float64, reason string) (*models.BankrollEntry, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: adjustment amount cannot be zero", models.ErrValidation)
	}
	return s.store.AdjustBankroll(ctx, userID, amount, reason)
}

// Ping checks store connectivity
func (s *Settler) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// resolveBetRef matches a reference against pending bets: an exact id match
// wins outright, otherwise a case-insensitive substring search over
// descriptions. Never guesses among multiple candidates.
func resolveBetRef(pending []models.Bet, ref string) (*models.Bet, error) {
	for i := range pending {
		if pending[i].ID == ref {
			return &pending[i], nil
		}
	}

	needle := strings.ToLower(ref)
	var matches []models.Bet
	for _, bet := range pending {
		if strings.Contains(strings.ToLower(bet.Description), needle) {
			matches = append(matches, bet)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no pending bet matches %q", models.ErrNotFound, ref)
	case 1:
		return &matches[0], nil
	default:
		return nil, &models.AmbiguousMatchError{Ref: ref, Candidates: matches}
	}
}

// findSettled resolves ref against the user's already-settled bets, by exact
// id or unique description match. Settling the same bet twice must surface as
// a conflict, never as not-found.
func (s *Settler) findSettled(ctx context.Context, userID, ref string) (*models.Bet, bool) {
	bets, err := s.store.ListBets(ctx, userID, BetFilters{})
	if err != nil {
		return nil, false
	}

	needle := strings.ToLower(ref)
	var match *models.Bet
	for i := range bets {
		if !bets[i].Outcome.IsTerminal() {
			continue
		}
		if bets[i].ID == ref {
			return &bets[i], true
		}
		if strings.Contains(strings.ToLower(bets[i].Description), needle) {
			if match != nil {
				// Ambiguous among settled bets: keep the not-found result
				return nil, false
			}
			match = &bets[i]
		}
	}

	return match, match != nil
}

// computeReturn applies the American-odds payout rule when the caller did not
// supply an explicit actual return
func (s *Settler) computeReturn(bet *models.Bet, outcome models.BetOutcome, actualReturn *float64) (float64, error) {
	if actualReturn != nil {
		if *actualReturn < 0 {
			return 0, fmt.Errorf("%w: actual return cannot be negative", models.ErrValidation)
		}
		return *actualReturn, nil
	}

	switch outcome {
	case models.OutcomeWin:
		return oddsmath.WinReturn(bet.Amount, bet.Odds)
	case models.OutcomePush:
		return bet.Amount, nil
	case models.OutcomeLoss:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: unsupported outcome %q", models.ErrValidation, outcome)
	}
}

func entryTypeFor(outcome models.BetOutcome) models.LedgerEntryType {
	switch outcome {
	case models.OutcomeWin:
		return models.EntryBetWon
	case models.OutcomeLoss:
		return models.EntryBetLost
	default:
		return models.EntryBetPushed
	}
}
