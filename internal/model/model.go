// Package model defines the core domain types shared across the wager engine.
// All monetary values use shopspring/decimal — never float64 for money.
// Amounts are whole token base units; payout arithmetic always floors.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NativeToken is the token identifier for the platform's native asset.
// Any other identifier names a registered fungible token.
const NativeToken = "native"

// Game tags a pending randomness request with the engine that opened it.
type Game string

const (
	GameDice    Game = "dice"
	GameLottery Game = "lottery"
)

// TokenConfig governs which tokens may be wagered and their stake bounds.
// Owner-managed. MinBet ≤ MaxBet must hold whenever Enabled is true.
type TokenConfig struct {
	Token   string          `json:"token" db:"token"`
	Enabled bool            `json:"enabled" db:"enabled"`
	MinBet  decimal.Decimal `json:"min_bet" db:"min_bet"`
	MaxBet  decimal.Decimal `json:"max_bet" db:"max_bet"`
}

// Balance is the treasury's custody pair for one token.
// Available is owner-withdrawable house liquidity; Locked is reserved
// against outstanding potential payouts and never withdrawable.
type Balance struct {
	Token     string          `json:"token" db:"token"`
	Available decimal.Decimal `json:"available" db:"available"`
	Locked    decimal.Decimal `json:"locked" db:"locked"`
}

// DiceBet is a single-round wager awaiting (or past) an oracle roll.
//
// Lifecycle: placed (pending) → resolved on callback, or refunded once
// the refund delay elapses without one. Resolved and Refunded are
// mutually exclusive terminal states; whichever happens first wins.
type DiceBet struct {
	ID              uint64          `json:"id" db:"id"`
	Player          string          `json:"player" db:"player"`
	Token           string          `json:"token" db:"token"`
	Stake           decimal.Decimal `json:"stake" db:"stake"`
	RollUnder       uint64          `json:"roll_under" db:"roll_under"`
	PotentialPayout decimal.Decimal `json:"potential_payout" db:"potential_payout"`
	Resolved        bool            `json:"resolved" db:"resolved"`
	Refunded        bool            `json:"refunded" db:"refunded"`
	Win             bool            `json:"win" db:"win"`
	Roll            uint64          `json:"roll" db:"roll"`
	RequestID       string          `json:"request_id" db:"request_id"`
	PlacedAt        time.Time       `json:"placed_at" db:"placed_at"`
}

// Terminal reports whether the bet reached a terminal state.
func (b *DiceBet) Terminal() bool {
	return b.Resolved || b.Refunded
}

// Lottery is a pooled-ticket raffle. Entries holds one slot per ticket
// sold, in purchase order; duplicates are how a buyer weights their odds.
//
// Drawn and Cancelled are mutually exclusive terminal states: the first
// refund claim cancels the lottery, after which no draw may be requested
// or resolved and the remaining buyers drain the pot through refunds.
type Lottery struct {
	ID            uint64          `json:"id" db:"id"`
	Token         string          `json:"token" db:"token"`
	TicketPrice   decimal.Decimal `json:"ticket_price" db:"ticket_price"`
	StartTime     time.Time       `json:"start_time" db:"start_time"`
	EndTime       time.Time       `json:"end_time" db:"end_time"`
	Pot           decimal.Decimal `json:"pot" db:"pot"`
	Entries       []string        `json:"entries" db:"entries"`
	Winner        string          `json:"winner" db:"winner"`
	DrawRequested bool            `json:"draw_requested" db:"draw_requested"`
	DrawRequestAt time.Time       `json:"draw_request_at" db:"draw_request_at"`
	Drawn         bool            `json:"drawn" db:"drawn"`
	Cancelled     bool            `json:"cancelled" db:"cancelled"`
	RequestID     string          `json:"request_id" db:"request_id"`
}

// Selling reports whether tickets may be purchased at the given instant.
func (l *Lottery) Selling(now time.Time) bool {
	return !now.Before(l.StartTime) && now.Before(l.EndTime)
}

// TicketCount returns the number of entries held by one buyer.
func (l *Lottery) TicketCount(buyer string) int {
	n := 0
	for _, e := range l.Entries {
		if e == buyer {
			n++
		}
	}
	return n
}

// PendingRequest correlates an outstanding randomness request with the
// game entity awaiting its result. At most one per request ID; consumed
// at most once.
type PendingRequest struct {
	RequestID string `json:"request_id" db:"request_id"`
	Game      Game   `json:"game" db:"game"`
	EntityID  uint64 `json:"entity_id" db:"entity_id"`
}

// VRFConfig is the static configuration attached to outgoing randomness
// requests. Owner-managed; the engine itself only reads it.
type VRFConfig struct {
	KeyHash              string `json:"key_hash" db:"key_hash"`
	SubscriptionID       uint64 `json:"subscription_id" db:"subscription_id"`
	RequestConfirmations uint16 `json:"request_confirmations" db:"request_confirmations"`
	CallbackGasLimit     uint32 `json:"callback_gas_limit" db:"callback_gas_limit"`
	NumWords             uint32 `json:"num_words" db:"num_words"`
	NativePayment        bool   `json:"native_payment" db:"native_payment"`
}
