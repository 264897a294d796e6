package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// Postgres implements Store on PostgreSQL
type Postgres struct {
	db            *sql.DB
	startBankroll float64
}

// NewPostgres creates a new PostgreSQL-backed ledger store
func NewPostgres(dsn string, startBankroll float64) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db, startBankroll: startBankroll}, nil
}

// EnsureSchema creates the ledger tables when they do not exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS bets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			odds INTEGER NOT NULL,
			description TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT 'pending',
			actual_return DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL,
			settled_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_user_outcome ON bets (user_id, outcome)`,
		`CREATE TABLE IF NOT EXISTS bankrolls (
			user_id TEXT PRIMARY KEY,
			balance DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS bankroll_ledger (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			entry_type TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			balance_after DOUBLE PRECISION NOT NULL,
			bet_id TEXT,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user ON bankroll_ledger (user_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

// Ping checks database connectivity
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}

// CreateBet inserts a new pending bet and seeds the user's bankroll row
func (p *Postgres) CreateBet(ctx context.Context, bet *models.Bet) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bankrolls (user_id, balance) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		bet.UserID, p.startBankroll,
	); err != nil {
		return fmt.Errorf("seed bankroll: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bets (id, user_id, amount, odds, description, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		bet.ID, bet.UserID, bet.Amount, bet.Odds, bet.Description, bet.Outcome, bet.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListBets retrieves a user's bets, newest first
func (p *Postgres) ListBets(ctx context.Context, userID string, filters BetFilters) ([]models.Bet, error) {
	query := `
		SELECT id, user_id, amount, odds, description, outcome, actual_return, created_at, settled_at
		FROM bets
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	argPos := 2

	if filters.Outcome != "" {
		query += fmt.Sprintf(" AND outcome = $%d", argPos)
		args = append(args, filters.Outcome)
		argPos++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filters.Limit)
		argPos++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filters.Offset)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bets: %w", err)
	}
	defer rows.Close()

	return scanBets(rows)
}

// PendingBets retrieves a user's pending bets, oldest first so settlement
// candidates list in the order they were logged
func (p *Postgres) PendingBets(ctx context.Context, userID string) ([]models.Bet, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, amount, odds, description, outcome, actual_return, created_at, settled_at
		 FROM bets
		 WHERE user_id = $1 AND outcome = 'pending'
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending bets: %w", err)
	}
	defer rows.Close()

	return scanBets(rows)
}

// Summary computes aggregate P&L statistics for a user
func (p *Postgres) Summary(ctx context.Context, userID string) (*models.BetSummary, error) {
	var s models.BetSummary
	err := p.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'pending'),
			COUNT(*) FILTER (WHERE outcome = 'win'),
			COUNT(*) FILTER (WHERE outcome = 'loss'),
			COUNT(*) FILTER (WHERE outcome = 'push'),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(actual_return - amount) FILTER (WHERE outcome IN ('win', 'loss', 'push')), 0)
		FROM bets
		WHERE user_id = $1`,
		userID,
	).Scan(&s.Total, &s.Pending, &s.Wins, &s.Losses, &s.Pushes, &s.TotalStaked, &s.NetProfit)
	if err != nil {
		return nil, fmt.Errorf("query bet summary: %w", err)
	}

	if decided := s.Wins + s.Losses; decided > 0 {
		s.WinRate = float64(s.Wins) / float64(decided)
	}

	return &s, nil
}

// Balance retrieves the user's materialized bankroll balance
func (p *Postgres) Balance(ctx context.Context, userID string) (float64, error) {
	var balance float64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM bankrolls WHERE user_id = $1`, userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return p.startBankroll, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

// RecentEntries retrieves the newest ledger entries for a user
func (p *Postgres) RecentEntries(ctx context.Context, userID string, limit int) ([]models.BankrollEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, entry_type, amount, balance_after, bet_id, reason, created_at
		 FROM bankroll_ledger
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.BankrollEntry
	for rows.Next() {
		var e models.BankrollEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Amount, &e.BalanceAfter, &e.BetID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SettleBet atomically transitions a bet to a terminal outcome and updates
// the bankroll. The pending→terminal transition is a compare-and-swap: the
// UPDATE only matches while outcome is still 'pending', so two concurrent
// settlements produce exactly one success and one conflict.
func (p *Postgres) SettleBet(ctx context.Context, userID, betID string, outcome models.BetOutcome, settledAt time.Time, actualReturn, profit float64, entryType models.LedgerEntryType) (*SettleOutcome, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Lock the bankroll row
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bankrolls (user_id, balance) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, p.startBankroll,
	); err != nil {
		return nil, fmt.Errorf("seed bankroll: %w", err)
	}

	var previousBalance float64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM bankrolls WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&previousBalance); err != nil {
		return nil, fmt.Errorf("lock bankroll: %w", err)
	}

	// 2. CAS the bet from pending to its terminal outcome
	res, err := tx.ExecContext(ctx,
		`UPDATE bets
		 SET outcome = $1, actual_return = $2, settled_at = $3
		 WHERE id = $4 AND user_id = $5 AND outcome = 'pending'`,
		outcome, actualReturn, settledAt, betID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update bet: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT outcome FROM bets WHERE id = $1 AND user_id = $2`, betID, userID,
		).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("check bet state: %w", err)
		}
		return nil, fmt.Errorf("%w: bet %s is %s", models.ErrSettlementConflict, betID, existing)
	}

	// 3. Append the ledger entry and update the materialized balance
	newBalance := previousBalance + profit
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bankroll_ledger (user_id, entry_type, amount, balance_after, bet_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, entryType, profit, newBalance, betID, settledAt,
	); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bankrolls SET balance = $1, updated_at = NOW() WHERE user_id = $2`,
		newBalance, userID,
	); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	var bet models.Bet
	if err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, amount, odds, description, outcome, actual_return, created_at, settled_at
		 FROM bets WHERE id = $1`,
		betID,
	).Scan(&bet.ID, &bet.UserID, &bet.Amount, &bet.Odds, &bet.Description, &bet.Outcome, &bet.ActualReturn, &bet.CreatedAt, &bet.SettledAt); err != nil {
		return nil, fmt.Errorf("read settled bet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &SettleOutcome{Bet: bet, PreviousBalance: previousBalance, NewBalance: newBalance}, nil
}

// AdjustBankroll atomically appends a manual adjustment and updates the
// balance, refusing adjustments that would drive it below zero
func (p *Postgres) AdjustBankroll(ctx context.Context, userID string, amount float64, reason string) (*models.BankrollEntry, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bankrolls (user_id, balance) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, p.startBankroll,
	); err != nil {
		return nil, fmt.Errorf("seed bankroll: %w", err)
	}

	var previousBalance float64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM bankrolls WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&previousBalance); err != nil {
		return nil, fmt.Errorf("lock bankroll: %w", err)
	}

	newBalance := previousBalance + amount
	if newBalance < 0 {
		return nil, fmt.Errorf("%w: adjustment would drop balance to $%.2f", models.ErrValidation, newBalance)
	}

	entry := models.BankrollEntry{
		UserID:       userID,
		Type:         models.EntryManualAdjustment,
		Amount:       amount,
		BalanceAfter: newBalance,
		Reason:       reason,
		CreatedAt:    time.Now(),
	}

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO bankroll_ledger (user_id, entry_type, amount, balance_after, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		entry.UserID, entry.Type, entry.Amount, entry.BalanceAfter, entry.Reason, entry.CreatedAt,
	).Scan(&entry.ID); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bankrolls SET balance = $1, updated_at = NOW() WHERE user_id = $2`,
		newBalance, userID,
	); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &entry, nil
}

func scanBets(rows *sql.Rows) ([]models.Bet, error) {
	var bets []models.Bet
	for rows.Next() {
		var bet models.Bet
		if err := rows.Scan(&bet.ID, &bet.UserID, &bet.Amount, &bet.Odds, &bet.Description, &bet.Outcome, &bet.ActualReturn, &bet.CreatedAt, &bet.SettledAt); err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}
