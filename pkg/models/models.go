package models

import "time"

// Domain identifies a cached data domain
type Domain string

const (
	DomainOdds     Domain = "odds"
	DomainScores   Domain = "scores"
	DomainLineups  Domain = "lineups"
	DomainMatchups Domain = "matchups"
)

// FreshnessTier classifies how usable a cached payload is
type FreshnessTier string

const (
	TierFresh      FreshnessTier = "fresh"            // Within the fresh window
	TierAcceptable FreshnessTier = "acceptable"       // Usable, callers must surface a staleness notice
	TierStale      FreshnessTier = "stale_but_served" // Refresh failed, serving old data below hard cutoff
	TierRejected   FreshnessTier = "rejected"         // Past hard cutoff or nothing cached; must not be used
)

// Market keys for quotes
const (
	MarketMoneyline = "moneyline"
	MarketSpread    = "spread"
	MarketTotal     = "total"
)

// Quote is one bookmaker's price for one outcome of one market of one event.
// Quotes are immutable: a new observation is a new Quote, not a mutation.
type Quote struct {
	EventID     string    `json:"event_id"`
	SportKey    string    `json:"sport_key"`
	Bookmaker   string    `json:"bookmaker"`
	Market      string    `json:"market"`
	OutcomeName string    `json:"outcome_name"`
	Price       int       `json:"price"`           // American odds
	Point       *float64  `json:"point,omitempty"` // Line value for spreads/totals
	OpeningPrice *int     `json:"opening_price,omitempty"`
	OpeningPoint *float64 `json:"opening_point,omitempty"`
	EventStart  time.Time `json:"event_start"`
	ObservedAt  time.Time `json:"observed_at"`
}

// PublicSplit is the share of public bet tickets on one side of a market
type PublicSplit struct {
	EventID     string  `json:"event_id"`
	Market      string  `json:"market"`
	OutcomeName string  `json:"outcome_name"`
	BetPercent  float64 `json:"bet_percent"` // 0-100
}

// OddsSnapshot is the odds-domain cache payload for one sport
type OddsSnapshot struct {
	SportKey  string        `json:"sport_key"`
	Quotes    []Quote       `json:"quotes"`
	Splits    []PublicSplit `json:"splits,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// DiscrepancyRecord is the largest pricing disagreement across bookmakers
// for one outcome. Derived, recomputed each detection pass.
type DiscrepancyRecord struct {
	EventID         string    `json:"event_id"`
	Market          string    `json:"market"`
	OutcomeName     string    `json:"outcome_name"`
	ProbabilityLow  float64   `json:"probability_low"`
	ProbabilityHigh float64   `json:"probability_high"`
	DifferencePts   float64   `json:"difference_pts"` // Percentage points
	BookmakerLow    string    `json:"bookmaker_low"`
	BookmakerHigh   string    `json:"bookmaker_high"`
	NumBookmakers   int       `json:"num_bookmakers"`
	EventStart      time.Time `json:"event_start"`
	ComputedAt      time.Time `json:"computed_at"`
}

// SignalType classifies sharp-money signals
type SignalType string

const (
	SignalReverseLineMovement SignalType = "reverse_line_movement"
	SignalSteamMove           SignalType = "steam_move"
	SignalConsensusSharp      SignalType = "consensus_sharp"
)

// SignalStrength buckets a confidence score
type SignalStrength string

const (
	StrengthWeak       SignalStrength = "weak"
	StrengthModerate   SignalStrength = "moderate"
	StrengthStrong     SignalStrength = "strong"
	StrengthVeryStrong SignalStrength = "very_strong"
)

// SharpSignal is a behavioral signal consistent with informed money.
// Superseded by later computations for the same event.
type SharpSignal struct {
	EventID         string         `json:"event_id"`
	SportKey        string         `json:"sport_key"`
	Market          string         `json:"market"`
	SignalType      SignalType     `json:"signal_type"`
	Strength        SignalStrength `json:"strength"`
	ConfidenceScore float64        `json:"confidence_score"` // 0-100
	Side            string         `json:"side"`             // Outcome the sharp action favors
	Detail          string         `json:"detail,omitempty"`
	ComputedAt      time.Time      `json:"computed_at"`
}

// BetOutcome is the lifecycle state of a bet
type BetOutcome string

const (
	OutcomePending BetOutcome = "pending"
	OutcomeWin     BetOutcome = "win"
	OutcomeLoss    BetOutcome = "loss"
	OutcomePush    BetOutcome = "push"
)

// IsTerminal reports whether the outcome ends the bet lifecycle
func (o BetOutcome) IsTerminal() bool {
	return o == OutcomeWin || o == OutcomeLoss || o == OutcomePush
}

// Bet is a user-logged informal bet against the virtual bankroll.
// Created pending; transitions exactly once to a terminal outcome.
type Bet struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Amount       float64    `json:"amount"` // Stake
	Odds         int        `json:"odds"`   // American odds
	Description  string     `json:"description"`
	Outcome      BetOutcome `json:"outcome"`
	ActualReturn *float64   `json:"actual_return,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
}

// LedgerEntryType classifies bankroll ledger entries
type LedgerEntryType string

const (
	EntryBetWon           LedgerEntryType = "bet_won"
	EntryBetLost          LedgerEntryType = "bet_lost"
	EntryBetPushed        LedgerEntryType = "bet_pushed"
	EntryManualAdjustment LedgerEntryType = "manual_adjustment"
)

// BankrollEntry is an append-only bankroll ledger record. The current balance
// is reconstructable by replaying entries in order.
type BankrollEntry struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"user_id"`
	Type         LedgerEntryType `json:"type"`
	Amount       float64         `json:"amount"` // Signed delta (profit for bets)
	BalanceAfter float64         `json:"balance_after"`
	BetID        *string         `json:"bet_id,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SettlementResult is returned from a successful settlement
type SettlementResult struct {
	Bet             Bet     `json:"bet"`
	Profit          float64 `json:"profit"`
	ActualReturn    float64 `json:"actual_return"`
	PreviousBalance float64 `json:"previous_balance"`
	NewBalance      float64 `json:"new_balance"`
}

// BetSummary holds aggregate P&L statistics for a user
type BetSummary struct {
	Total       int     `json:"total"`
	Pending     int     `json:"pending"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Pushes      int     `json:"pushes"`
	TotalStaked float64 `json:"total_staked"`
	NetProfit   float64 `json:"net_profit"`
	WinRate     float64 `json:"win_rate"` // Wins / (wins + losses)
}
