package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// Memory implements Store in process memory with the same atomicity
// semantics as the Postgres store. Used when no DSN is configured and by
// tests.
type Memory struct {
	mu            sync.Mutex
	bets          map[string]models.Bet
	balances      map[string]float64
	entries       []models.BankrollEntry
	nextEntryID   int64
	startBankroll float64
}

// NewMemory creates a new in-memory ledger store
func NewMemory(startBankroll float64) *Memory {
	return &Memory{
		bets:          make(map[string]models.Bet),
		balances:      make(map[string]float64),
		nextEntryID:   1,
		startBankroll: startBankroll,
	}
}

// Ping always succeeds for the in-memory store
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) seedBankroll(userID string) {
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = m.startBankroll
	}
}

// CreateBet stores a new pending bet
func (m *Memory) CreateBet(ctx context.Context, bet *models.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bets[bet.ID]; exists {
		return fmt.Errorf("bet %s already exists", bet.ID)
	}

	m.seedBankroll(bet.UserID)
	m.bets[bet.ID] = *bet
	return nil
}

// ListBets retrieves a user's bets, newest first
func (m *Memory) ListBets(ctx context.Context, userID string, filters BetFilters) ([]models.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var bets []models.Bet
	for _, bet := range m.bets {
		if bet.UserID != userID {
			continue
		}
		if filters.Outcome != "" && bet.Outcome != filters.Outcome {
			continue
		}
		bets = append(bets, bet)
	}

	sort.Slice(bets, func(i, j int) bool {
		return bets[i].CreatedAt.After(bets[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(bets) {
			return nil, nil
		}
		bets = bets[filters.Offset:]
	}
	if filters.Limit > 0 && len(bets) > filters.Limit {
		bets = bets[:filters.Limit]
	}

	return bets, nil
}

// PendingBets retrieves a user's pending bets, oldest first
func (m *Memory) PendingBets(ctx context.Context, userID string) ([]models.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var bets []models.Bet
	for _, bet := range m.bets {
		if bet.UserID == userID && bet.Outcome == models.OutcomePending {
			bets = append(bets, bet)
		}
	}

	sort.Slice(bets, func(i, j int) bool {
		return bets[i].CreatedAt.Before(bets[j].CreatedAt)
	})

	return bets, nil
}

// Summary computes aggregate P&L statistics for a user
func (m *Memory) Summary(ctx context.Context, userID string) (*models.BetSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s models.BetSummary
	for _, bet := range m.bets {
		if bet.UserID != userID {
			continue
		}
		s.Total++
		s.TotalStaked += bet.Amount

		switch bet.Outcome {
		case models.OutcomePending:
			s.Pending++
		case models.OutcomeWin:
			s.Wins++
		case models.OutcomeLoss:
			s.Losses++
		case models.OutcomePush:
			s.Pushes++
		}

		if bet.Outcome.IsTerminal() && bet.ActualReturn != nil {
			s.NetProfit += *bet.ActualReturn - bet.Amount
		}
	}

	if decided := s.Wins + s.Losses; decided > 0 {
		s.WinRate = float64(s.Wins) / float64(decided)
	}

	return &s, nil
}

// Balance retrieves the user's materialized bankroll balance
func (m *Memory) Balance(ctx context.Context, userID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if balance, ok := m.balances[userID]; ok {
		return balance, nil
	}
	return m.startBankroll, nil
}

// RecentEntries retrieves the newest ledger entries for a user
func (m *Memory) RecentEntries(ctx context.Context, userID string, limit int) ([]models.BankrollEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	var entries []models.BankrollEntry
	for i := len(m.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		if m.entries[i].UserID == userID {
			entries = append(entries, m.entries[i])
		}
	}

	return entries, nil
}

// SettleBet atomically transitions a bet to a terminal outcome and updates
// the bankroll under one lock, mirroring the Postgres CAS semantics
func (m *Memory) SettleBet(ctx context.Context, userID, betID string, outcome models.BetOutcome, settledAt time.Time, actualReturn, profit float64, entryType models.LedgerEntryType) (*SettleOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bet, ok := m.bets[betID]
	if !ok || bet.UserID != userID {
		return nil, models.ErrNotFound
	}
	if bet.Outcome != models.OutcomePending {
		return nil, fmt.Errorf("%w: bet %s is %s", models.ErrSettlementConflict, betID, bet.Outcome)
	}

	m.seedBankroll(userID)
	previousBalance := m.balances[userID]
	newBalance := previousBalance + profit

	ret := actualReturn
	bet.Outcome = outcome
	bet.ActualReturn = &ret
	settled := settledAt
	bet.SettledAt = &settled
	m.bets[betID] = bet

	id := betID
	m.entries = append(m.entries, models.BankrollEntry{
		ID:           m.nextEntryID,
		UserID:       userID,
		Type:         entryType,
		Amount:       profit,
		BalanceAfter: newBalance,
		BetID:        &id,
		CreatedAt:    settledAt,
	})
	m.nextEntryID++
	m.balances[userID] = newBalance

	return &SettleOutcome{Bet: bet, PreviousBalance: previousBalance, NewBalance: newBalance}, nil
}

// AdjustBankroll atomically appends a manual adjustment and updates the
// balance, refusing adjustments that would drive it below zero
func (m *Memory) AdjustBankroll(ctx context.Context, userID string, amount float64, reason string) (*models.BankrollEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seedBankroll(userID)
	previousBalance := m.balances[userID]
	newBalance := previousBalance + amount
	if newBalance < 0 {
		return nil, fmt.Errorf("%w: adjustment would drop balance to $%.2f", models.ErrValidation, newBalance)
	}

	entry := models.BankrollEntry{
		ID:           m.nextEntryID,
		UserID:       userID,
		Type:         models.EntryManualAdjustment,
		Amount:       amount,
		BalanceAfter: newBalance,
		Reason:       reason,
		CreatedAt:    time.Now(),
	}
	m.nextEntryID++
	m.entries = append(m.entries, entry)
	m.balances[userID] = newBalance

	return &entry, nil
}
