package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/oddsdesk/oddsdesk/pkg/models"
)

func newTestSettler() *Settler {
	return NewSettler(NewMemory(1000))
}

func mustLogBet(t *testing.T, s *Settler, userID string, amount float64, odds int, description string) *models.Bet {
	t.Helper()
	bet, err := s.LogBet(context.Background(), userID, amount, odds, description)
	if err != nil {
		t.Fatalf("log bet: %v", err)
	}
	return bet
}

func TestLogBetValidation(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()

	tests := []struct {
		name        string
		userID      string
		amount      float64
		odds        int
		description string
	}{
		{"missing user", "", 100, -110, "Lakers ML"},
		{"zero stake", "u1", 0, -110, "Lakers ML"},
		{"negative stake", "u1", -50, -110, "Lakers ML"},
		{"zero odds", "u1", 100, 0, "Lakers ML"},
		{"blank description", "u1", 100, -110, "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.LogBet(ctx, tt.userID, tt.amount, tt.odds, tt.description)
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSettleWinFavorite(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers ML vs Nuggets")

	result, err := s.Settle(ctx, "u1", bet.ID, models.OutcomeWin, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(result.ActualReturn-190.91) > 0.01 {
		t.Errorf("actual return = %.2f, want 190.91", result.ActualReturn)
	}
	if math.Abs(result.Profit-90.91) > 0.01 {
		t.Errorf("profit = %.2f, want 90.91", result.Profit)
	}
	if result.PreviousBalance != 1000 {
		t.Errorf("previous balance = %.2f, want 1000", result.PreviousBalance)
	}
	if math.Abs(result.NewBalance-1090.91) > 0.01 {
		t.Errorf("new balance = %.2f, want 1090.91", result.NewBalance)
	}
	if result.Bet.Outcome != models.OutcomeWin {
		t.Errorf("outcome = %s, want win", result.Bet.Outcome)
	}
	if result.Bet.SettledAt == nil {
		t.Error("settled bet must carry a settlement timestamp")
	}
}

func TestSettleWinUnderdogByDescription(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	mustLogBet(t, s, "u1", 100, 150, "Celtics +5.5 vs Heat")

	result, err := s.Settle(ctx, "u1", "celtics", models.OutcomeWin, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(result.ActualReturn-250.00) > 0.01 {
		t.Errorf("actual return = %.2f, want 250.00", result.ActualReturn)
	}
	if math.Abs(result.Profit-150.00) > 0.01 {
		t.Errorf("profit = %.2f, want 150.00", result.Profit)
	}
}

func TestSettleLoss(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers ML")

	result, err := s.Settle(ctx, "u1", bet.ID, models.OutcomeLoss, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ActualReturn != 0 {
		t.Errorf("actual return = %.2f, want 0", result.ActualReturn)
	}
	if result.Profit != -100 {
		t.Errorf("profit = %.2f, want -100", result.Profit)
	}
	if result.NewBalance != 900 {
		t.Errorf("new balance = %.2f, want 900", result.NewBalance)
	}
}

func TestSettlePushReturnsStake(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers -3.0")

	result, err := s.Settle(ctx, "u1", bet.ID, models.OutcomePush, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ActualReturn != 100 {
		t.Errorf("actual return = %.2f, want 100 (stake back)", result.ActualReturn)
	}
	if result.Profit != 0 {
		t.Errorf("profit = %.2f, want 0", result.Profit)
	}
	if result.NewBalance != 1000 {
		t.Errorf("new balance = %.2f, want 1000 (unchanged)", result.NewBalance)
	}
}

func TestSettleExplicitReturn(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers ML, cashed out early")

	cashout := 150.0
	result, err := s.Settle(ctx, "u1", bet.ID, models.OutcomeWin, &cashout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ActualReturn != 150 {
		t.Errorf("actual return = %.2f, want the caller-supplied 150", result.ActualReturn)
	}
	if result.Profit != 50 {
		t.Errorf("profit = %.2f, want 50", result.Profit)
	}
}

func TestSettleNegativeExplicitReturn(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers ML")

	bad := -10.0
	_, err := s.Settle(ctx, "u1", bet.ID, models.OutcomeWin, &bad)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestSettleNonTerminalOutcome(t *testing.T) {
	s := newTestSettler()

	_, err := s.Settle(context.Background(), "u1", "anything", models.OutcomePending, nil)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestSettleTwiceConflicts(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers ML")

	if _, err := s.Settle(ctx, "u1", bet.ID, models.OutcomeWin, nil); err != nil {
		t.Fatalf("first settlement failed: %v", err)
	}

	_, err := s.Settle(ctx, "u1", bet.ID, models.OutcomeLoss, nil)
	if !errors.Is(err, models.ErrSettlementConflict) {
		t.Fatalf("second settle error = %v, want ErrSettlementConflict", err)
	}

	balance, _, err := s.Bankroll(ctx, "u1")
	if err != nil {
		t.Fatalf("bankroll: %v", err)
	}
	if math.Abs(balance-1090.91) > 0.01 {
		t.Errorf("balance = %.2f, want 1090.91 (credited exactly once)", balance)
	}
}

func TestSettleTwiceByDescriptionConflicts(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	mustLogBet(t, s, "u1", 100, -110, "Lakers ML vs Nuggets")

	if _, err := s.Settle(ctx, "u1", "Lakers", models.OutcomeWin, nil); err != nil {
		t.Fatalf("first settlement failed: %v", err)
	}

	_, err := s.Settle(ctx, "u1", "Lakers", models.OutcomeLoss, nil)
	if !errors.Is(err, models.ErrSettlementConflict) {
		t.Fatalf("second settle error = %v, want ErrSettlementConflict", err)
	}
}

func TestSettleConflictAtStore(t *testing.T) {
	// Drive the store directly to hit the compare-and-swap guard that the
	// pending-set resolution normally hides
	store := NewMemory(1000)
	s := NewSettler(store)
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers ML")

	if _, err := s.Settle(ctx, "u1", bet.ID, models.OutcomeWin, nil); err != nil {
		t.Fatalf("first settlement failed: %v", err)
	}

	_, err := store.SettleBet(ctx, "u1", bet.ID, models.OutcomeLoss, bet.CreatedAt, 0, -100, models.EntryBetLost)
	if !errors.Is(err, models.ErrSettlementConflict) {
		t.Fatalf("error = %v, want ErrSettlementConflict", err)
	}
}

func TestSettleAmbiguousReference(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	mustLogBet(t, s, "u1", 100, -110, "Lakers ML vs Nuggets")
	mustLogBet(t, s, "u1", 50, -105, "Lakers -4.5 vs Nuggets")

	_, err := s.Settle(ctx, "u1", "Lakers", models.OutcomeWin, nil)

	var ambiguous *models.AmbiguousMatchError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("error = %v, want AmbiguousMatchError", err)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(ambiguous.Candidates))
	}

	// No mutation: both bets still pending, balance untouched
	pending, err := s.ListBets(ctx, "u1", BetFilters{Outcome: models.OutcomePending})
	if err != nil {
		t.Fatalf("list bets: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("got %d pending bets, want 2", len(pending))
	}

	balance, _, err := s.Bankroll(ctx, "u1")
	if err != nil {
		t.Fatalf("bankroll: %v", err)
	}
	if balance != 1000 {
		t.Errorf("balance = %.2f, want 1000", balance)
	}
}

func TestSettleNotFound(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	mustLogBet(t, s, "u1", 100, -110, "Lakers ML")

	_, err := s.Settle(ctx, "u1", "Warriors", models.OutcomeWin, nil)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSettleScopedToUser(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers ML")

	_, err := s.Settle(ctx, "u2", bet.ID, models.OutcomeWin, nil)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound: bets are per-user", err)
	}
}

func TestConcurrentSettlementWinsOnce(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers ML")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Settle(ctx, "u1", bet.ID, models.OutcomeWin, nil); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("got %d successful settlements, want exactly 1", successes)
	}

	balance, _, err := s.Bankroll(ctx, "u1")
	if err != nil {
		t.Fatalf("bankroll: %v", err)
	}
	if math.Abs(balance-1090.91) > 0.01 {
		t.Errorf("balance = %.2f, want 1090.91 (credited exactly once)", balance)
	}
}

func TestAdjustBankroll(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()

	entry, err := s.Adjust(ctx, "u1", 500, "monthly top-up")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry.Type != models.EntryManualAdjustment {
		t.Errorf("type = %s, want manual_adjustment", entry.Type)
	}
	if entry.BalanceAfter != 1500 {
		t.Errorf("balance after = %.2f, want 1500", entry.BalanceAfter)
	}
	if entry.Reason != "monthly top-up" {
		t.Errorf("reason = %q, want monthly top-up", entry.Reason)
	}
}

func TestAdjustBankrollBelowZero(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()

	_, err := s.Adjust(ctx, "u1", -1500, "oops")
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}

	balance, _, err := s.Bankroll(ctx, "u1")
	if err != nil {
		t.Fatalf("bankroll: %v", err)
	}
	if balance != 1000 {
		t.Errorf("balance = %.2f, want 1000 (rejected adjustment must not apply)", balance)
	}
}

func TestAdjustBankrollZeroAmount(t *testing.T) {
	s := newTestSettler()

	_, err := s.Adjust(context.Background(), "u1", 0, "noop")
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestSummary(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()

	win := mustLogBet(t, s, "u1", 100, -110, "Lakers ML")
	loss := mustLogBet(t, s, "u1", 50, 150, "Heat +6.5")
	mustLogBet(t, s, "u1", 25, -105, "Under 215.5")

	if _, err := s.Settle(ctx, "u1", win.ID, models.OutcomeWin, nil); err != nil {
		t.Fatalf("settle win: %v", err)
	}
	if _, err := s.Settle(ctx, "u1", loss.ID, models.OutcomeLoss, nil); err != nil {
		t.Fatalf("settle loss: %v", err)
	}

	summary, err := s.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total != 3 || summary.Pending != 1 || summary.Wins != 1 || summary.Losses != 1 {
		t.Errorf("summary = %+v, want total=3 pending=1 wins=1 losses=1", summary)
	}
	if summary.TotalStaked != 175 {
		t.Errorf("total staked = %.2f, want 175", summary.TotalStaked)
	}
	// +90.91 from the win, -50 from the loss
	if math.Abs(summary.NetProfit-40.91) > 0.01 {
		t.Errorf("net profit = %.2f, want 40.91", summary.NetProfit)
	}
	if summary.WinRate != 0.5 {
		t.Errorf("win rate = %.2f, want 0.50", summary.WinRate)
	}
}

func TestBankrollLedgerEntries(t *testing.T) {
	s := newTestSettler()
	ctx := context.Background()
	bet := mustLogBet(t, s, "u1", 100, -110, "Lakers ML")

	if _, err := s.Settle(ctx, "u1", bet.ID, models.OutcomeWin, nil); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := s.Adjust(ctx, "u1", -200, "withdrawal"); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	balance, entries, err := s.Bankroll(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(balance-890.91) > 0.01 {
		t.Errorf("balance = %.2f, want 890.91", balance)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first
	if entries[0].Type != models.EntryManualAdjustment {
		t.Errorf("entries[0].Type = %s, want manual_adjustment", entries[0].Type)
	}
	if entries[1].Type != models.EntryBetWon {
		t.Errorf("entries[1].Type = %s, want bet_won", entries[1].Type)
	}
	if entries[1].BetID == nil || *entries[1].BetID != bet.ID {
		t.Error("bet_won entry must reference the settled bet")
	}
}
