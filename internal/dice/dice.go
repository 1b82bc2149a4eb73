// Package dice implements the single-round dice wager lifecycle: place,
// await randomness, resolve on callback, or refund once the delay passes.
//
// Roll convention: roll = randomWord mod Sides, zero-based, so roll is in
// [0, Sides-1] and a bet wins iff roll < rollUnder. rollUnder therefore
// equals the number of winning outcomes and rollUnder/Sides is the win
// probability. This convention is fixed; both the payout formula and the
// win comparison assume it.
package dice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/model"
	"github.com/luckhouse/wager-engine/internal/registry"
	"github.com/luckhouse/wager-engine/internal/store"
	"github.com/luckhouse/wager-engine/internal/treasury"
)

const (
	// Sides is the number of faces on the die; rolls are 0..Sides-1.
	Sides = 100

	// BPSDenominator is the basis-point scale for the house edge.
	BPSDenominator = 10000
)

var (
	// ErrTokenDisabled is returned when the wager token is not enabled.
	ErrTokenDisabled = errors.New("dice: token not enabled for wagering")

	// ErrInvalidStake is returned when the stake is outside the token's
	// configured bounds.
	ErrInvalidStake = errors.New("dice: stake outside configured bounds")

	// ErrInvalidThreshold is returned when rollUnder is outside [1, Sides-1].
	ErrInvalidThreshold = errors.New("dice: rollUnder outside valid range")

	// ErrAlreadyResolved is returned when a bet is already terminal.
	ErrAlreadyResolved = errors.New("dice: bet already resolved or refunded")

	// ErrNotEligible is returned when a refund is requested for a bet
	// that is terminal or still inside the refund delay.
	ErrNotEligible = errors.New("dice: bet not eligible for refund")

	// ErrInvalidEdge is returned when the house edge exceeds the full
	// basis-point denominator.
	ErrInvalidEdge = errors.New("dice: house edge above denominator")
)

// Engine owns the dice wager state machine. All mutation is serialized
// by the ledger facade; the engine itself holds no locks.
type Engine struct {
	store       store.Store
	treasury    *treasury.Treasury
	registry    *registry.Registry
	refundDelay time.Duration

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// New creates a dice engine. refundDelay bounds how long a bet may stay
// pending before its stake becomes refundable.
func New(st store.Store, tr *treasury.Treasury, reg *registry.Registry, refundDelay time.Duration) *Engine {
	return &Engine{
		store:       st,
		treasury:    tr,
		registry:    reg,
		refundDelay: refundDelay,
		Now:         time.Now,
	}
}

// Payout computes the potential payout for a stake at a given threshold:
// fair odds (stake * Sides / rollUnder) scaled down by the house edge,
// floored to whole base units.
func Payout(stake decimal.Decimal, rollUnder, edgeBps uint64) (decimal.Decimal, error) {
	if rollUnder < 1 || rollUnder > Sides-1 {
		return decimal.Zero, ErrInvalidThreshold
	}
	if edgeBps > BPSDenominator {
		return decimal.Zero, ErrInvalidEdge
	}
	num := stake.
		Mul(decimal.NewFromInt(Sides)).
		Mul(decimal.NewFromInt(int64(BPSDenominator - edgeBps)))
	den := decimal.NewFromInt(int64(rollUnder * BPSDenominator))
	return num.Div(den).Floor(), nil
}

// PlaceBet escrows the player's stake, locks the house's incremental
// liability, opens a randomness request, and records the pending bet.
// The solvency gate runs before any asset moves: a payout the house
// cannot cover rejects the bet with treasury.ErrInsufficientFunds.
func (e *Engine) PlaceBet(ctx context.Context, player, token string, stake decimal.Decimal, rollUnder, edgeBps uint64) (*model.DiceBet, error) {
	cfg, err := e.store.GetTokenConfig(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenDisabled
		}
		return nil, err
	}
	if !cfg.Enabled {
		return nil, ErrTokenDisabled
	}
	if stake.LessThan(cfg.MinBet) || stake.GreaterThan(cfg.MaxBet) {
		return nil, ErrInvalidStake
	}

	payout, err := Payout(stake, rollUnder, edgeBps)
	if err != nil {
		return nil, err
	}
	liability := payout.Sub(stake)
	if liability.IsNegative() {
		// High thresholds with a nonzero edge can price below the stake;
		// the house then has nothing at risk beyond the escrow itself.
		liability = decimal.Zero
	}

	bal, err := e.treasury.Balance(ctx, token)
	if err != nil {
		return nil, err
	}
	if bal.Available.LessThan(liability) {
		return nil, treasury.ErrInsufficientFunds
	}

	if err := e.treasury.Fund(ctx, token, player, stake); err != nil {
		return nil, err
	}
	if err := e.treasury.Lock(ctx, token, liability); err != nil {
		return nil, err
	}

	id, err := e.store.NextDiceID(ctx)
	if err != nil {
		return nil, err
	}
	requestID, err := e.registry.Open(ctx, model.GameDice, id)
	if err != nil {
		return nil, err
	}

	bet := &model.DiceBet{
		ID:              id,
		Player:          player,
		Token:           token,
		Stake:           stake,
		RollUnder:       rollUnder,
		PotentialPayout: payout,
		RequestID:       requestID,
		PlacedAt:        e.Now().UTC(),
	}
	if err := e.store.PutDiceBet(ctx, bet); err != nil {
		return nil, err
	}
	return bet, nil
}

// Resolve applies a delivered random word to a pending bet. Callers must
// have consumed the bet's correlation key first; the terminal check here
// is defense in depth against a refund that raced the delivery.
func (e *Engine) Resolve(ctx context.Context, betID, randomWord uint64) (*model.DiceBet, error) {
	bet, err := e.store.GetDiceBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet.Terminal() {
		return nil, ErrAlreadyResolved
	}

	roll := randomWord % Sides
	win := roll < bet.RollUnder
	liability := liabilityOf(bet)

	if win {
		err = e.treasury.UnlockAndPay(ctx, bet.Token, liability, bet.PotentialPayout, bet.Player)
	} else {
		err = e.treasury.UnlockAndForfeit(ctx, bet.Token, liability)
	}
	if err != nil {
		return nil, fmt.Errorf("settle bet %d: %w", betID, err)
	}

	bet.Resolved = true
	bet.Win = win
	bet.Roll = roll
	if err := e.store.PutDiceBet(ctx, bet); err != nil {
		return nil, err
	}
	return bet, nil
}

// RefundStuck returns the player's stake for a bet the oracle never
// answered. Permissionless and time-gated: eligible only once the refund
// delay has elapsed and the bet is still pending. The bet's correlation
// key is invalidated so a late callback cannot double-process it.
func (e *Engine) RefundStuck(ctx context.Context, betID uint64) (*model.DiceBet, error) {
	bet, err := e.store.GetDiceBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet.Terminal() {
		return nil, ErrNotEligible
	}
	if e.Now().Before(bet.PlacedAt.Add(e.refundDelay)) {
		return nil, ErrNotEligible
	}

	if err := e.registry.Invalidate(ctx, bet.RequestID); err != nil {
		return nil, err
	}

	// Stake back to the player; the locked liability returns to house
	// funds through the same settlement step.
	if err := e.treasury.UnlockAndPay(ctx, bet.Token, liabilityOf(bet), bet.Stake, bet.Player); err != nil {
		return nil, fmt.Errorf("refund bet %d: %w", betID, err)
	}

	bet.Refunded = true
	if err := e.store.PutDiceBet(ctx, bet); err != nil {
		return nil, err
	}
	return bet, nil
}

// Bet returns one bet by ID.
func (e *Engine) Bet(ctx context.Context, id uint64) (*model.DiceBet, error) {
	return e.store.GetDiceBet(ctx, id)
}

// RefundableBets lists a player's pending bets old enough to refund.
func (e *Engine) RefundableBets(ctx context.Context, player string) ([]model.DiceBet, error) {
	bets, err := e.store.ListDiceBetsByPlayer(ctx, player)
	if err != nil {
		return nil, err
	}
	cutoff := e.Now().Add(-e.refundDelay)
	var out []model.DiceBet
	for _, b := range bets {
		if !b.Terminal() && !b.PlacedAt.After(cutoff) {
			out = append(out, b)
		}
	}
	return out, nil
}

func liabilityOf(bet *model.DiceBet) decimal.Decimal {
	l := bet.PotentialPayout.Sub(bet.Stake)
	if l.IsNegative() {
		return decimal.Zero
	}
	return l
}
