package dice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/dice"
	"github.com/luckhouse/wager-engine/internal/model"
	"github.com/luckhouse/wager-engine/internal/registry"
	"github.com/luckhouse/wager-engine/internal/store"
	"github.com/luckhouse/wager-engine/internal/treasury"
)

const refundDelay = time.Hour

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type env struct {
	store    *store.MemoryStore
	treasury *treasury.Treasury
	registry *registry.Registry
	engine   *dice.Engine
}

// newEnv builds an engine over an in-memory store with token "gold"
// enabled for stakes [1, 100] and 1000 units of house liquidity.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	ms := store.NewMemoryStore()
	tr := treasury.New(ms, treasury.NopMover{})
	reg := registry.New(ms)
	e := dice.New(ms, tr, reg, refundDelay)

	cfg := &model.TokenConfig{Token: "gold", Enabled: true, MinBet: d(1), MaxBet: d(100)}
	if err := ms.PutTokenConfig(ctx, cfg); err != nil {
		t.Fatalf("seed token config: %v", err)
	}
	if err := tr.Fund(ctx, "gold", "house", d(1000)); err != nil {
		t.Fatalf("seed treasury: %v", err)
	}
	return &env{store: ms, treasury: tr, registry: reg, engine: e}
}

func (e *env) balance(t *testing.T) *model.Balance {
	t.Helper()
	bal, err := e.treasury.Balance(context.Background(), "gold")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

// --- Payout tests ---

func TestPayout_FairOddsNoEdge(t *testing.T) {
	// stake 10, rollUnder 50, no edge: 10 * 100 / 50 = 20.
	p, err := dice.Payout(d(10), 50, 0)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !p.Equal(d(20)) {
		t.Errorf("payout = %s, want 20", p)
	}
}

func TestPayout_EdgeShavesMultiplier(t *testing.T) {
	// 2% edge: 10 * 100 * 9800 / (50 * 10000) = 19.6 → floor 19.
	p, err := dice.Payout(d(10), 50, 200)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !p.Equal(d(19)) {
		t.Errorf("payout = %s, want 19", p)
	}
}

func TestPayout_StrictlyDecreasesWithThreshold(t *testing.T) {
	stake := d(1000)
	prev, err := dice.Payout(stake, 1, 100)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	for rollUnder := uint64(2); rollUnder < dice.Sides; rollUnder++ {
		p, err := dice.Payout(stake, rollUnder, 100)
		if err != nil {
			t.Fatalf("payout rollUnder=%d: %v", rollUnder, err)
		}
		if !p.LessThan(prev) {
			t.Fatalf("payout not strictly decreasing at rollUnder=%d: %s then %s", rollUnder, prev, p)
		}
		prev = p
	}
}

func TestPayout_ThresholdBounds(t *testing.T) {
	for _, rollUnder := range []uint64{0, dice.Sides, dice.Sides + 1} {
		if _, err := dice.Payout(d(10), rollUnder, 0); !errors.Is(err, dice.ErrInvalidThreshold) {
			t.Errorf("rollUnder=%d: got %v, want ErrInvalidThreshold", rollUnder, err)
		}
	}
}

func TestPayout_EdgeAboveDenominator(t *testing.T) {
	if _, err := dice.Payout(d(10), 50, dice.BPSDenominator+1); !errors.Is(err, dice.ErrInvalidEdge) {
		t.Errorf("got %v, want ErrInvalidEdge", err)
	}
}

// --- Placement tests ---

func TestPlaceBet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bet, err := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if bet.ID != 1 {
		t.Errorf("first bet id = %d, want 1", bet.ID)
	}
	if !bet.PotentialPayout.Equal(d(20)) {
		t.Errorf("potential payout = %s, want 20", bet.PotentialPayout)
	}
	if bet.RequestID == "" {
		t.Error("expected a correlation key")
	}
	if bet.Terminal() {
		t.Error("new bet must be pending")
	}

	// Stake escrowed, incremental liability locked.
	bal := e.balance(t)
	if !bal.Available.Equal(d(1000)) || !bal.Locked.Equal(d(10)) {
		t.Errorf("custody = %s/%s, want 1000/10", bal.Available, bal.Locked)
	}
}

func TestPlaceBet_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		token     string
		stake     decimal.Decimal
		rollUnder uint64
		want      error
	}{
		{"unknown token", "mystery", d(10), 50, dice.ErrTokenDisabled},
		{"stake below min", "gold", d(0.5), 50, dice.ErrInvalidStake},
		{"stake above max", "gold", d(500), 50, dice.ErrInvalidStake},
		{"threshold zero", "gold", d(10), 0, dice.ErrInvalidThreshold},
		{"threshold at sides", "gold", d(10), dice.Sides, dice.ErrInvalidThreshold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.engine.PlaceBet(ctx, "alice", tc.token, tc.stake, tc.rollUnder, 0); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestPlaceBet_DisabledToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.store.PutTokenConfig(ctx, &model.TokenConfig{Token: "gold", Enabled: false, MinBet: d(1), MaxBet: d(100)})
	if _, err := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0); !errors.Is(err, dice.ErrTokenDisabled) {
		t.Errorf("got %v, want ErrTokenDisabled", err)
	}
}

func TestPlaceBet_HouseCannotCoverLiability(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// Drain house liquidity down to 5.
	if err := e.treasury.Withdraw(ctx, "gold", "owner", d(995)); err != nil {
		t.Fatalf("drain: %v", err)
	}
	// stake 10 at rollUnder 50 needs a 10-unit liability lock.
	if _, err := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0); !errors.Is(err, treasury.ErrInsufficientFunds) {
		t.Errorf("got %v, want ErrInsufficientFunds", err)
	}
	// The rejected bet must not have escrowed the stake.
	bal := e.balance(t)
	if !bal.Available.Equal(d(5)) || !bal.Locked.Equal(d(0)) {
		t.Errorf("custody = %s/%s, want 5/0", bal.Available, bal.Locked)
	}
}

// --- Resolution tests ---

func TestResolve_Win(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bet, _ := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0)
	resolved, err := e.engine.Resolve(ctx, bet.ID, 49)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Win || resolved.Roll != 49 {
		t.Errorf("win=%t roll=%d, want win at 49", resolved.Win, resolved.Roll)
	}

	// Payout 20 left the house; lock fully released.
	bal := e.balance(t)
	if !bal.Available.Equal(d(990)) || !bal.Locked.Equal(d(0)) {
		t.Errorf("custody = %s/%s, want 990/0", bal.Available, bal.Locked)
	}
}

func TestResolve_WordMagnitudeIrrelevant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// 149 mod 100 = 49: same roll as word 49 regardless of magnitude.
	bet, _ := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0)
	resolved, err := e.engine.Resolve(ctx, bet.ID, 149)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Win || resolved.Roll != 49 {
		t.Errorf("win=%t roll=%d, want win at 49", resolved.Win, resolved.Roll)
	}
}

func TestResolve_Loss(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bet, _ := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0)
	resolved, err := e.engine.Resolve(ctx, bet.ID, 50)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Win {
		t.Error("roll 50 against rollUnder 50 must lose (win iff roll < rollUnder)")
	}

	// Stake retained, liability forfeited back to house.
	bal := e.balance(t)
	if !bal.Available.Equal(d(1010)) || !bal.Locked.Equal(d(0)) {
		t.Errorf("custody = %s/%s, want 1010/0", bal.Available, bal.Locked)
	}
}

func TestResolve_WinBoundary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// rollUnder 1 wins only on roll 0.
	bet, _ := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 1, 0)
	resolved, _ := e.engine.Resolve(ctx, bet.ID, 300) // 300 mod 100 = 0
	if !resolved.Win {
		t.Error("roll 0 against rollUnder 1 must win")
	}
}

func TestResolve_TerminalBetRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bet, _ := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0)
	e.engine.Resolve(ctx, bet.ID, 49)

	if _, err := e.engine.Resolve(ctx, bet.ID, 49); !errors.Is(err, dice.ErrAlreadyResolved) {
		t.Errorf("got %v, want ErrAlreadyResolved", err)
	}
}

// --- Refund tests ---

func TestRefundStuck(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bet, _ := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0)

	// Too early.
	if _, err := e.engine.RefundStuck(ctx, bet.ID); !errors.Is(err, dice.ErrNotEligible) {
		t.Errorf("early refund: got %v", err)
	}

	e.engine.Now = func() time.Time { return time.Now().Add(refundDelay + time.Minute) }
	refunded, err := e.engine.RefundStuck(ctx, bet.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !refunded.Refunded || refunded.Resolved {
		t.Errorf("bet state = %+v, want refunded and not resolved", refunded)
	}

	// Stake back out, liability released to house.
	bal := e.balance(t)
	if !bal.Available.Equal(d(1000)) || !bal.Locked.Equal(d(0)) {
		t.Errorf("custody = %s/%s, want 1000/0", bal.Available, bal.Locked)
	}

	// A second refund and a late resolution must both bounce.
	if _, err := e.engine.RefundStuck(ctx, bet.ID); !errors.Is(err, dice.ErrNotEligible) {
		t.Errorf("double refund: got %v", err)
	}
	if _, err := e.engine.Resolve(ctx, bet.ID, 49); !errors.Is(err, dice.ErrAlreadyResolved) {
		t.Errorf("late resolve: got %v", err)
	}
	if _, err := e.registry.Peek(ctx, bet.RequestID); !errors.Is(err, registry.ErrUnknownRequest) {
		t.Errorf("correlation key must be invalidated: got %v", err)
	}
}

func TestRefundableBets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	old, _ := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0)
	resolvedBet, _ := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0)
	e.engine.Resolve(ctx, resolvedBet.ID, 70)
	e.engine.PlaceBet(ctx, "bob", "gold", d(10), 50, 0)

	e.engine.Now = func() time.Time { return time.Now().Add(refundDelay + time.Minute) }
	fresh, _ := e.engine.PlaceBet(ctx, "alice", "gold", d(10), 50, 0)

	bets, err := e.engine.RefundableBets(ctx, "alice")
	if err != nil {
		t.Fatalf("refundable: %v", err)
	}
	if len(bets) != 1 || bets[0].ID != old.ID {
		t.Fatalf("refundable = %+v, want only bet %d", bets, old.ID)
	}
	_ = fresh
}
