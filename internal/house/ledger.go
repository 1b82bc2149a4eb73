// Package house ties the game engines, treasury, and access control into
// one custodial ledger and exposes it over HTTP.
//
// Every state-mutating operation runs under a single ledger-wide
// reentrancy guard: acquired on entry, released on every exit path, and
// failing fast with ErrReentrant while held. Mutations therefore execute
// as a strictly serialized transition log with no interleaving.
package house

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/access"
	"github.com/luckhouse/wager-engine/internal/dice"
	"github.com/luckhouse/wager-engine/internal/lottery"
	"github.com/luckhouse/wager-engine/internal/metrics"
	"github.com/luckhouse/wager-engine/internal/model"
	"github.com/luckhouse/wager-engine/internal/oracle"
	"github.com/luckhouse/wager-engine/internal/registry"
	"github.com/luckhouse/wager-engine/internal/store"
	"github.com/luckhouse/wager-engine/internal/treasury"
)

var (
	// ErrReentrant is returned when a mutating operation begins while
	// another holds the ledger guard.
	ErrReentrant = errors.New("house: reentrant call")

	// ErrInvalidEdge is returned when a house edge above the basis-point
	// denominator is configured.
	ErrInvalidEdge = errors.New("house: edge above denominator")

	// ErrInvalidTokenBounds is returned when an enabled token config has
	// minBet > maxBet.
	ErrInvalidTokenBounds = errors.New("house: minBet above maxBet")

	// ErrZeroAddress is returned when a recipient identity is empty.
	ErrZeroAddress = errors.New("house: zero recipient")
)

// Store keys for owner-configured values that must survive restarts.
const (
	settingHouseEdge = "house_edge_bps"
	settingVRFConfig = "vrf_config"
)

// Config carries the ledger's construction parameters.
type Config struct {
	Owner           string
	Coordinator     string
	HouseEdgeBps    uint64
	RefundDelay     time.Duration
	OwnerMayDeliver bool
	Mover           treasury.Mover
}

// Ledger is the facade over the whole wagering core.
type Ledger struct {
	store    store.Store
	access   *access.Control
	treasury *treasury.Treasury
	registry *registry.Registry
	dice     *dice.Engine
	lottery  *lottery.Engine
	adapter  *oracle.Adapter
	hub      *Hub

	mu      sync.Mutex // the global reentrancy guard
	edgeBps atomic.Uint64

	vrfMu sync.RWMutex
	vrf   model.VRFConfig
}

// NewLedger wires the full wagering core over the given store.
func NewLedger(st store.Store, cfg Config) (*Ledger, error) {
	if cfg.HouseEdgeBps > dice.BPSDenominator {
		return nil, ErrInvalidEdge
	}
	ac, err := access.New(cfg.Owner, cfg.Coordinator)
	if err != nil {
		return nil, err
	}
	mover := cfg.Mover
	if mover == nil {
		mover = treasury.NopMover{}
	}
	tr := treasury.New(st, mover)
	reg := registry.New(st)

	l := &Ledger{
		store:    st,
		access:   ac,
		treasury: tr,
		registry: reg,
		dice:     dice.New(st, tr, reg, cfg.RefundDelay),
		lottery:  lottery.New(st, tr, reg, cfg.RefundDelay),
		hub:      NewHub(),
	}
	l.edgeBps.Store(cfg.HouseEdgeBps)
	if err := l.loadSettings(context.Background()); err != nil {
		return nil, err
	}
	l.adapter = oracle.New(ac, reg, l.dice, l.lottery, l.edgeBps.Load, cfg.OwnerMayDeliver)
	return l, nil
}

// loadSettings restores owner-configured values persisted by earlier
// runs; the Config values act as defaults for a fresh store.
func (l *Ledger) loadSettings(ctx context.Context) error {
	raw, err := l.store.GetSetting(ctx, settingHouseEdge)
	switch {
	case err == nil:
		bps, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil || bps > dice.BPSDenominator {
			return fmt.Errorf("house: corrupt persisted edge %q", raw)
		}
		l.edgeBps.Store(bps)
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	raw, err = l.store.GetSetting(ctx, settingVRFConfig)
	switch {
	case err == nil:
		if jerr := json.Unmarshal([]byte(raw), &l.vrf); jerr != nil {
			return fmt.Errorf("house: corrupt persisted vrf config: %w", jerr)
		}
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	return nil
}

// Hub returns the event broadcast hub for wiring and shutdown.
func (l *Ledger) Hub() *Hub { return l.hub }

// Dice exposes the dice engine; tests use it to steer the clock.
func (l *Ledger) Dice() *dice.Engine { return l.dice }

// LotteryEngine exposes the lottery engine; tests use it to steer the clock.
func (l *Ledger) LotteryEngine() *lottery.Engine { return l.lottery }

// HouseEdgeBps returns the current house edge.
func (l *Ledger) HouseEdgeBps() uint64 { return l.edgeBps.Load() }

// Owner returns the current owner identity.
func (l *Ledger) Owner() string { return l.access.Owner() }

// Coordinator returns the registered coordinator identity.
func (l *Ledger) Coordinator() string { return l.access.Coordinator() }

// enter acquires the ledger guard, failing fast when already held.
func (l *Ledger) enter() error {
	if !l.mu.TryLock() {
		return ErrReentrant
	}
	return nil
}

func (l *Ledger) exit() { l.mu.Unlock() }

// emit journals a ledger notification, broadcasts it, and logs it.
// Journaling failures are logged, never propagated: the state change
// already committed and events are a derived record.
func (l *Ledger) emit(ctx context.Context, typ model.EventType, actor string, fields map[string]string) {
	ev := &model.Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Actor:     actor,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
	if err := l.store.AppendEvent(ctx, ev); err != nil {
		slog.Error("event journal append failed", "type", typ, "err", err)
	}
	l.hub.Broadcast(ev)
	slog.Info("ledger event", "type", typ, "actor", actor, "fields", fields)
}

// syncFundGauges refreshes the per-token treasury gauges.
func (l *Ledger) syncFundGauges(ctx context.Context, token string) {
	bal, err := l.treasury.Balance(ctx, token)
	if err != nil {
		return
	}
	av, _ := bal.Available.Float64()
	lk, _ := bal.Locked.Float64()
	metrics.AvailableFunds.WithLabelValues(token).Set(av)
	metrics.LockedFunds.WithLabelValues(token).Set(lk)
}

// --- Treasury operations ---

// Fund credits the treasury. Permissionless: players escrow through
// gameplay, but anyone may top up house liquidity directly.
func (l *Ledger) Fund(ctx context.Context, caller, token string, amount decimal.Decimal) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if err := l.treasury.Fund(ctx, token, caller, amount); err != nil {
		return err
	}
	l.emit(ctx, model.EventFunded, caller, map[string]string{
		"token":  token,
		"amount": amount.String(),
	})
	l.syncFundGauges(ctx, token)
	return nil
}

// Withdraw pays house funds out to a recipient. Owner-only; locked funds
// are categorically unavailable.
func (l *Ledger) Withdraw(ctx context.Context, caller, token, to string, amount decimal.Decimal) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if err := l.access.RequireOwner(caller); err != nil {
		return err
	}
	if to == "" {
		return ErrZeroAddress
	}
	if err := l.treasury.Withdraw(ctx, token, to, amount); err != nil {
		return err
	}
	l.emit(ctx, model.EventWithdrawn, caller, map[string]string{
		"token":  token,
		"to":     to,
		"amount": amount.String(),
	})
	l.syncFundGauges(ctx, token)
	return nil
}

// Balance returns the custody pair for one token.
func (l *Ledger) Balance(ctx context.Context, token string) (*model.Balance, error) {
	return l.treasury.Balance(ctx, token)
}

// Balances returns every token with a recorded balance.
func (l *Ledger) Balances(ctx context.Context) ([]model.Balance, error) {
	return l.treasury.Balances(ctx)
}

// Events returns the most recent journal entries, newest first.
func (l *Ledger) Events(ctx context.Context, limit int) ([]model.Event, error) {
	return l.store.ListEvents(ctx, limit)
}

// --- Configuration surface (owner-only) ---

// SetHouseEdge updates the basis-point house edge.
func (l *Ledger) SetHouseEdge(ctx context.Context, caller string, bps uint64) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if err := l.access.RequireOwner(caller); err != nil {
		return err
	}
	if bps > dice.BPSDenominator {
		return ErrInvalidEdge
	}
	if err := l.store.PutSetting(ctx, settingHouseEdge, strconv.FormatUint(bps, 10)); err != nil {
		return err
	}
	old := l.edgeBps.Swap(bps)
	l.emit(ctx, model.EventHouseEdgeUpdated, caller, map[string]string{
		"old_bps": fmt.Sprintf("%d", old),
		"new_bps": fmt.Sprintf("%d", bps),
	})
	return nil
}

// SetTokenConfig enables or bounds a wager token.
func (l *Ledger) SetTokenConfig(ctx context.Context, caller string, cfg model.TokenConfig) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if err := l.access.RequireOwner(caller); err != nil {
		return err
	}
	if cfg.Token == "" {
		return ErrZeroAddress
	}
	if cfg.Enabled && cfg.MinBet.GreaterThan(cfg.MaxBet) {
		return ErrInvalidTokenBounds
	}
	if err := l.store.PutTokenConfig(ctx, &cfg); err != nil {
		return err
	}
	l.emit(ctx, model.EventTokenConfigUpdated, caller, map[string]string{
		"token":   cfg.Token,
		"enabled": fmt.Sprintf("%t", cfg.Enabled),
		"min_bet": cfg.MinBet.String(),
		"max_bet": cfg.MaxBet.String(),
	})
	return nil
}

// TokenConfig returns one token's wagering config.
func (l *Ledger) TokenConfig(ctx context.Context, token string) (*model.TokenConfig, error) {
	return l.store.GetTokenConfig(ctx, token)
}

// SetVRFConfig replaces the randomness request configuration.
func (l *Ledger) SetVRFConfig(ctx context.Context, caller string, cfg model.VRFConfig) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if err := l.access.RequireOwner(caller); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := l.store.PutSetting(ctx, settingVRFConfig, string(raw)); err != nil {
		return err
	}
	l.vrfMu.Lock()
	l.vrf = cfg
	l.vrfMu.Unlock()
	l.emit(ctx, model.EventVRFConfigUpdated, caller, map[string]string{
		"key_hash":        cfg.KeyHash,
		"subscription_id": fmt.Sprintf("%d", cfg.SubscriptionID),
		"num_words":       fmt.Sprintf("%d", cfg.NumWords),
	})
	return nil
}

// VRFConfig returns the current randomness request configuration.
func (l *Ledger) VRFConfig() model.VRFConfig {
	l.vrfMu.RLock()
	defer l.vrfMu.RUnlock()
	return l.vrf
}

// SetCoordinator rotates the randomness coordinator identity.
func (l *Ledger) SetCoordinator(ctx context.Context, caller, coordinator string) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if err := l.access.SetCoordinator(caller, coordinator); err != nil {
		return err
	}
	l.emit(ctx, model.EventCoordinatorSet, caller, map[string]string{
		"coordinator": coordinator,
	})
	return nil
}

// TransferOwnership nominates a new owner (step one of two).
func (l *Ledger) TransferOwnership(ctx context.Context, caller, to string) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	if err := l.access.TransferOwnership(caller, to); err != nil {
		return err
	}
	l.emit(ctx, model.EventOwnershipTransferRequested, caller, map[string]string{
		"to": to,
	})
	return nil
}

// AcceptOwnership commits a pending ownership transfer (step two).
func (l *Ledger) AcceptOwnership(ctx context.Context, caller string) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	previous, err := l.access.AcceptOwnership(caller)
	if err != nil {
		return err
	}
	l.emit(ctx, model.EventOwnershipTransferred, caller, map[string]string{
		"from": previous,
		"to":   caller,
	})
	return nil
}
