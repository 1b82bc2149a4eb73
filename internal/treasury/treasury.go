// Package treasury implements per-token custody accounting for the wager
// engine: an available balance the owner may withdraw and a locked balance
// reserved against outstanding potential payouts.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Every operation is all-or-nothing: when the external asset movement
// fails, the balance change is rolled back before returning.
package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/model"
	"github.com/luckhouse/wager-engine/internal/store"
)

var (
	// ErrInsufficientFunds is returned when the available balance cannot
	// cover a lock, payout, or withdrawal. Locked funds are categorically
	// unavailable.
	ErrInsufficientFunds = errors.New("treasury: insufficient funds")

	// ErrTransferFailed is returned when the underlying asset movement
	// fails; the balance change is rolled back first.
	ErrTransferFailed = errors.New("treasury: asset transfer failed")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("treasury: amount must be positive")
)

// Mover moves assets between external parties and house custody. The
// native asset and registered fungible tokens are distinguished by the
// token identifier (model.NativeToken vs. anything else); implementations
// route to the matching settlement rail.
type Mover interface {
	// Pull moves amount of token from an external party into custody.
	Pull(ctx context.Context, token, from string, amount decimal.Decimal) error

	// Push moves amount of token out of custody to an external party.
	Push(ctx context.Context, token, to string, amount decimal.Decimal) error
}

// NopMover is a Mover whose settlement happens out of band (custody
// tracked by upstream payment rails). Every movement succeeds.
type NopMover struct{}

func (NopMover) Pull(context.Context, string, string, decimal.Decimal) error { return nil }
func (NopMover) Push(context.Context, string, string, decimal.Decimal) error { return nil }

// Treasury mediates every balance mutation. Engines never write balances
// directly; custody invariants are enforced here and nowhere else.
type Treasury struct {
	store store.Store
	mover Mover
}

// New creates a Treasury over the given store and asset mover.
func New(st store.Store, mover Mover) *Treasury {
	return &Treasury{store: st, mover: mover}
}

// Balance returns the custody pair for a token.
func (t *Treasury) Balance(ctx context.Context, token string) (*model.Balance, error) {
	return t.store.GetBalance(ctx, token)
}

// Balances returns every token with a recorded balance.
func (t *Treasury) Balances(ctx context.Context) ([]model.Balance, error) {
	return t.store.ListBalances(ctx)
}

// Fund pulls amount of token from an external party and credits the
// available balance. Used for owner funding and for player stake and
// ticket escrow alike.
func (t *Treasury) Fund(ctx context.Context, token, from string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if err := t.mover.Pull(ctx, token, from, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	bal, err := t.store.GetBalance(ctx, token)
	if err != nil {
		return err
	}
	bal.Available = bal.Available.Add(amount)
	return t.store.PutBalance(ctx, bal)
}

// Lock reserves amount of token against an outstanding potential payout,
// moving it from available to locked. The solvency gate: a payout the
// house cannot cover is rejected here, before any pending state exists.
func (t *Treasury) Lock(ctx context.Context, token string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	bal, err := t.store.GetBalance(ctx, token)
	if err != nil {
		return err
	}
	if bal.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	bal.Available = bal.Available.Sub(amount)
	bal.Locked = bal.Locked.Add(amount)
	return t.store.PutBalance(ctx, bal)
}

// UnlockAndForfeit releases a lock back into house funds (loss path,
// or a refunded liability the house no longer owes).
func (t *Treasury) UnlockAndForfeit(ctx context.Context, token string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	bal, err := t.store.GetBalance(ctx, token)
	if err != nil {
		return err
	}
	if bal.Locked.LessThan(amount) {
		return ErrInsufficientFunds
	}
	bal.Locked = bal.Locked.Sub(amount)
	bal.Available = bal.Available.Add(amount)
	return t.store.PutBalance(ctx, bal)
}

// UnlockAndPay releases unlock of token from the locked balance and pays
// payout to recipient in a single atomic step. The difference between
// the two settles against the available balance: payout > unlock draws
// house funds (a win larger than the lock), payout < unlock accrues the
// remainder to the house (a fee).
//
// On push failure the balance change is rolled back and ErrTransferFailed
// returned; no partial state is observable.
func (t *Treasury) UnlockAndPay(ctx context.Context, token string, unlock, payout decimal.Decimal, recipient string) error {
	if unlock.IsNegative() || payout.IsNegative() {
		return ErrInvalidAmount
	}
	bal, err := t.store.GetBalance(ctx, token)
	if err != nil {
		return err
	}
	if bal.Locked.LessThan(unlock) {
		return ErrInsufficientFunds
	}
	newAvailable := bal.Available.Add(unlock).Sub(payout)
	if newAvailable.IsNegative() {
		return ErrInsufficientFunds
	}

	prev := *bal
	bal.Locked = bal.Locked.Sub(unlock)
	bal.Available = newAvailable
	if err := t.store.PutBalance(ctx, bal); err != nil {
		return err
	}

	if err := t.mover.Push(ctx, token, recipient, payout); err != nil {
		// Roll back so the failed payout leaves custody untouched.
		if rbErr := t.store.PutBalance(ctx, &prev); rbErr != nil {
			return fmt.Errorf("%w: %v (rollback failed: %v)", ErrTransferFailed, err, rbErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// Withdraw pays amount of token from the available balance to an external
// recipient. Locked funds can never be withdrawn.
func (t *Treasury) Withdraw(ctx context.Context, token, to string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	bal, err := t.store.GetBalance(ctx, token)
	if err != nil {
		return err
	}
	if bal.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}

	prev := *bal
	bal.Available = bal.Available.Sub(amount)
	if err := t.store.PutBalance(ctx, bal); err != nil {
		return err
	}

	if err := t.mover.Push(ctx, token, to, amount); err != nil {
		if rbErr := t.store.PutBalance(ctx, &prev); rbErr != nil {
			return fmt.Errorf("%w: %v (rollback failed: %v)", ErrTransferFailed, err, rbErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}
