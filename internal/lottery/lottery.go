// Package lottery implements the pooled-ticket raffle lifecycle: create,
// sell tickets inside the window, request a draw after it closes, resolve
// the draw on callback, and refund ticket holders if the draw never lands.
//
// Winner selection is a weighted raffle over the entry list: each ticket
// occupies one slot, so winnerIndex = randomWord mod len(entries) gives a
// buyer odds proportional to the tickets they hold.
package lottery

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
	// MaxTicketsPerBuy caps how many tickets one purchase may add.
	MaxTicketsPerBuy = 100

	// BPSDenominator is the basis-point scale for the house fee.
	BPSDenominator = 10000
)

var (
	// ErrInvalidWindow is returned when the selling window is malformed
	// or entirely in the past.
	ErrInvalidWindow = errors.New("lottery: invalid selling window")

	// ErrInvalidPrice is returned for a non-positive ticket price.
	ErrInvalidPrice = errors.New("lottery: ticket price must be positive")

	// ErrTokenDisabled is returned when the lottery token is not enabled.
	ErrTokenDisabled = errors.New("lottery: token not enabled for wagering")

	// ErrNotSelling is returned when a purchase lands outside the window.
	ErrNotSelling = errors.New("lottery: not in selling window")

	// ErrExceedsLimit is returned when a purchase asks for zero tickets
	// or more than MaxTicketsPerBuy.
	ErrExceedsLimit = errors.New("lottery: ticket count out of range")

	// ErrNotYetEnded is returned for a draw request before the window closes.
	ErrNotYetEnded = errors.New("lottery: selling window not yet ended")

	// ErrAlreadyRequested is returned for a second draw request.
	ErrAlreadyRequested = errors.New("lottery: draw already requested")

	// ErrAlreadyDrawn is returned when the lottery has a winner.
	ErrAlreadyDrawn = errors.New("lottery: already drawn")

	// ErrCancelled is returned when a refund claim has already retired
	// the lottery.
	ErrCancelled = errors.New("lottery: cancelled by refund claims")

	// ErrNoEntries is returned for a draw request with nothing to draw.
	ErrNoEntries = errors.New("lottery: no entries to draw from")

	// ErrNotEligible is returned when a refund claim's conditions are
	// unmet: lottery not ended, draw still inside the grace period, a
	// winner already drawn, or the caller holds no entries.
	ErrNotEligible = errors.New("lottery: not eligible for refund")

	// ErrAlreadyClaimed is returned for a second refund claim by the
	// same caller.
	ErrAlreadyClaimed = errors.New("lottery: refund already claimed")

	// ErrEntryOutOfRange is returned for an entry index past the list.
	ErrEntryOutOfRange = errors.New("lottery: entry index out of range")
)

// Engine owns the lottery state machine. All mutation is serialized by
// the ledger facade; the engine itself holds no locks.
type Engine struct {
	store    store.Store
	treasury *treasury.Treasury
	registry *registry.Registry

	// grace bounds how long a requested draw may stay unresolved before
	// ticket refunds open; it also gates refunds for lotteries whose
	// draw was never requested, counted from the window close.
	grace time.Duration

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// New creates a lottery engine with the given draw grace period.
func New(st store.Store, tr *treasury.Treasury, reg *registry.Registry, grace time.Duration) *Engine {
	return &Engine{
		store:    st,
		treasury: tr,
		registry: reg,
		grace:    grace,
		Now:      time.Now,
	}
}

// Create opens a new lottery. Owner authorization is enforced by the
// ledger facade; the engine validates the window, price, and token.
func (e *Engine) Create(ctx context.Context, token string, ticketPrice decimal.Decimal, startTime, endTime time.Time) (*model.Lottery, error) {
	if !startTime.Before(endTime) || !endTime.After(e.Now()) {
		return nil, ErrInvalidWindow
	}
	if ticketPrice.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidPrice
	}
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

	id, err := e.store.NextLotteryID(ctx)
	if err != nil {
		return nil, err
	}
	l := &model.Lottery{
		ID:          id,
		Token:       token,
		TicketPrice: ticketPrice,
		StartTime:   startTime.UTC(),
		EndTime:     endTime.UTC(),
		Pot:         decimal.Zero,
	}
	if err := e.store.PutLottery(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// BuyTickets sells count entries to buyer at the lottery's ticket price.
// The full cost is escrowed and locked: pot money is never withdrawable
// while the draw is outstanding.
func (e *Engine) BuyTickets(ctx context.Context, lotteryID uint64, buyer string, count int) (*model.Lottery, error) {
	l, err := e.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	if !l.Selling(e.Now()) {
		return nil, ErrNotSelling
	}
	if count < 1 || count > MaxTicketsPerBuy {
		return nil, ErrExceedsLimit
	}

	cost := l.TicketPrice.Mul(decimal.NewFromInt(int64(count)))
	if err := e.treasury.Fund(ctx, l.Token, buyer, cost); err != nil {
		return nil, err
	}
	if err := e.treasury.Lock(ctx, l.Token, cost); err != nil {
		return nil, err
	}

	for i := 0; i < count; i++ {
		l.Entries = append(l.Entries, buyer)
	}
	l.Pot = l.Pot.Add(cost)
	if err := e.store.PutLottery(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// RequestDraw opens the randomness request for a closed lottery.
// Permissionless, once only, and only when there is something to draw.
func (e *Engine) RequestDraw(ctx context.Context, lotteryID uint64) (*model.Lottery, error) {
	l, err := e.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	if e.Now().Before(l.EndTime) {
		return nil, ErrNotYetEnded
	}
	if l.Drawn {
		return nil, ErrAlreadyDrawn
	}
	if l.Cancelled {
		return nil, ErrCancelled
	}
	if l.DrawRequested {
		return nil, ErrAlreadyRequested
	}
	if len(l.Entries) == 0 {
		return nil, ErrNoEntries
	}

	requestID, err := e.registry.Open(ctx, model.GameLottery, l.ID)
	if err != nil {
		return nil, err
	}
	l.DrawRequested = true
	l.DrawRequestAt = e.Now().UTC()
	l.RequestID = requestID
	if err := e.store.PutLottery(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// ResolveDraw applies a delivered random word: picks the winner slot,
// pays the pot less the house fee, and retires the lottery. Callers must
// have consumed the lottery's correlation key first.
//
// winnerPayout + fee == pot exactly; rounding from the basis-point fee
// lands in the fee, never leaks.
func (e *Engine) ResolveDraw(ctx context.Context, lotteryID, randomWord, edgeBps uint64) (*model.Lottery, decimal.Decimal, decimal.Decimal, error) {
	l, err := e.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, err
	}
	if l.Drawn {
		return nil, decimal.Zero, decimal.Zero, ErrAlreadyDrawn
	}
	if l.Cancelled {
		return nil, decimal.Zero, decimal.Zero, ErrCancelled
	}
	if len(l.Entries) == 0 {
		return nil, decimal.Zero, decimal.Zero, ErrNoEntries
	}

	winnerIndex := randomWord % uint64(len(l.Entries))
	winner := l.Entries[winnerIndex]

	payout := l.Pot.
		Mul(decimal.NewFromInt(int64(BPSDenominator - edgeBps))).
		Div(decimal.NewFromInt(BPSDenominator)).
		Floor()
	fee := l.Pot.Sub(payout)

	if err := e.treasury.UnlockAndPay(ctx, l.Token, l.Pot, payout, winner); err != nil {
		return nil, decimal.Zero, decimal.Zero, fmt.Errorf("settle lottery %d: %w", lotteryID, err)
	}

	l.Drawn = true
	l.Winner = winner
	if err := e.store.PutLottery(ctx, l); err != nil {
		return nil, decimal.Zero, decimal.Zero, err
	}
	return l, payout, fee, nil
}

// ClaimRefund returns a caller's ticket cost for a lottery whose draw
// never landed. Eligible once the window closed and either the draw was
// never requested (grace counted from the close) or it was requested and
// the grace period expired unresolved. Idempotent per caller; the first
// successful claim cancels the lottery and invalidates its correlation
// key, so no draw can ever run over the draining pot.
func (e *Engine) ClaimRefund(ctx context.Context, lotteryID uint64, caller string) (*model.Lottery, decimal.Decimal, error) {
	l, err := e.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if l.Drawn {
		return nil, decimal.Zero, ErrNotEligible
	}
	now := e.Now()
	graceFrom := l.EndTime
	if l.DrawRequested {
		graceFrom = l.DrawRequestAt
	}
	if now.Before(l.EndTime) || now.Before(graceFrom.Add(e.grace)) {
		return nil, decimal.Zero, ErrNotEligible
	}

	count := l.TicketCount(caller)
	if count == 0 {
		return nil, decimal.Zero, ErrNotEligible
	}
	claimed, err := e.store.HasRefundClaim(ctx, lotteryID, caller)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if claimed {
		return nil, decimal.Zero, ErrAlreadyClaimed
	}

	if l.DrawRequested && l.RequestID != "" {
		if err := e.registry.Invalidate(ctx, l.RequestID); err != nil {
			return nil, decimal.Zero, err
		}
	}

	amount := l.TicketPrice.Mul(decimal.NewFromInt(int64(count)))
	if err := e.treasury.UnlockAndPay(ctx, l.Token, amount, amount, caller); err != nil {
		return nil, decimal.Zero, fmt.Errorf("refund lottery %d: %w", lotteryID, err)
	}

	l.Cancelled = true
	l.Pot = l.Pot.Sub(amount)
	if err := e.store.PutLottery(ctx, l); err != nil {
		return nil, decimal.Zero, err
	}
	if err := e.store.PutRefundClaim(ctx, lotteryID, caller); err != nil {
		return nil, decimal.Zero, err
	}
	return l, amount, nil
}

// Lottery returns one lottery by ID.
func (e *Engine) Lottery(ctx context.Context, id uint64) (*model.Lottery, error) {
	return e.store.GetLottery(ctx, id)
}

// EntryCount returns the number of tickets sold for a lottery.
func (e *Engine) EntryCount(ctx context.Context, id uint64) (int, error) {
	l, err := e.store.GetLottery(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(l.Entries), nil
}

// Entry returns the buyer occupying one entry slot.
func (e *Engine) Entry(ctx context.Context, id uint64, index int) (string, error) {
	l, err := e.store.GetLottery(ctx, id)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(l.Entries) {
		return "", ErrEntryOutOfRange
	}
	return l.Entries[index], nil
}

// ActiveLotteries lists undrawn lotteries in which user holds entries.
func (e *Engine) ActiveLotteries(ctx context.Context, user string) ([]model.Lottery, error) {
	all, err := e.store.ListLotteries(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Lottery
	for _, l := range all {
		if !l.Drawn && l.TicketCount(user) > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}
