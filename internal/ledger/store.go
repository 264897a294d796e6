package ledger

import (
	"context"
	"time"

	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// BetFilters narrows bet listings
type BetFilters struct {
	Outcome models.BetOutcome
	Limit   int
	Offset  int
}

// SettleOutcome is the storage-level result of an atomic settlement
type SettleOutcome struct {
	Bet             models.Bet
	PreviousBalance float64
	NewBalance      float64
}

// Store persists bets and the bankroll ledger. SettleBet and AdjustBankroll
// are atomic: either every effect is visible or none is, and no intermediate
// state is observable by concurrent readers.
type Store interface {
	Ping(ctx context.Context) error

	CreateBet(ctx context.Context, bet *models.Bet) error
	ListBets(ctx context.Context, userID string, filters BetFilters) ([]models.Bet, error)
	PendingBets(ctx context.Context, userID string) ([]models.Bet, error)
	Summary(ctx context.Context, userID string) (*models.BetSummary, error)

	Balance(ctx context.Context, userID string) (float64, error)
	RecentEntries(ctx context.Context, userID string, limit int) ([]models.BankrollEntry, error)

	// SettleBet compare-and-swaps the bet from pending to a terminal outcome,
	// appends the ledger entry, and updates the materialized balance in one
	// transaction. Returns models.ErrSettlementConflict when the bet is no
	// longer pending and models.ErrNotFound when it does not exist.
	SettleBet(ctx context.Context, userID, betID string, outcome models.BetOutcome, settledAt time.Time, actualReturn, profit float64, entryType models.LedgerEntryType) (*SettleOutcome, error)

	// AdjustBankroll appends a manual_adjustment entry and updates the
	// balance atomically. Adjustments that would drive the balance below
	// zero are rejected with models.ErrValidation.
	AdjustBankroll(ctx context.Context, userID string, amount float64, reason string) (*models.BankrollEntry, error)
}
