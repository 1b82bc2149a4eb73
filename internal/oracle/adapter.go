// Package oracle implements the single authenticated entry point through
// which the external randomness coordinator delivers fulfillments. All
// external input reaches the game engines' resolution logic here and
// nowhere else.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/access"
	"github.com/luckhouse/wager-engine/internal/dice"
	"github.com/luckhouse/wager-engine/internal/lottery"
	"github.com/luckhouse/wager-engine/internal/model"
	"github.com/luckhouse/wager-engine/internal/registry"
)

var (
	// ErrNoWords is returned when a delivery carries no random words.
	ErrNoWords = errors.New("oracle: delivery carries no random words")

	// ErrUnknownGame is returned when a pending request carries a game
	// tag no engine claims. Indicates a corrupted correlation table.
	ErrUnknownGame = errors.New("oracle: unknown game tag")
)

// Result describes what a delivery resolved, for logging and events.
type Result struct {
	Game    model.Game
	Bet     *model.DiceBet  // set when Game == model.GameDice
	Lottery *model.Lottery  // set when Game == model.GameLottery
	Payout  decimal.Decimal // winner payout (lottery) or bet payout on win
	Fee     decimal.Decimal // house fee (lottery only)
	Word    uint64
}

// Adapter authenticates deliveries, consumes the correlation key, and
// dispatches to the owning engine with the first random word.
type Adapter struct {
	access   *access.Control
	registry *registry.Registry
	dice     *dice.Engine
	lottery  *lottery.Engine

	// edge supplies the current house edge at resolution time.
	edge func() uint64

	// allowOwner lets the owner deliver on the coordinator's behalf.
	allowOwner bool
}

// New creates a coordinator adapter. edge must return the current house
// edge in basis points; allowOwner enables the secondary owner path.
func New(ac *access.Control, reg *registry.Registry, de *dice.Engine, le *lottery.Engine, edge func() uint64, allowOwner bool) *Adapter {
	return &Adapter{
		access:     ac,
		registry:   reg,
		dice:       de,
		lottery:    le,
		edge:       edge,
		allowOwner: allowOwner,
	}
}

// Deliver applies an externally delivered fulfillment. The first word is
// used; extra words are ignored. Duplicate or stale request IDs fail
// with registry.ErrUnknownRequest and change no state. The key is
// retired only after the engine settles, so a transient settlement
// failure (an outbound transfer bouncing) leaves it open for a retry.
func (a *Adapter) Deliver(ctx context.Context, caller, requestID string, words []uint64) (*Result, error) {
	if err := a.access.RequireCoordinator(caller, a.allowOwner); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, ErrNoWords
	}
	word := words[0]

	req, err := a.registry.Peek(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch req.Game {
	case model.GameDice:
		bet, err := a.dice.Resolve(ctx, req.EntityID, word)
		if err != nil {
			return nil, err
		}
		res = &Result{Game: model.GameDice, Bet: bet, Word: word}
		if bet.Win {
			res.Payout = bet.PotentialPayout
		}

	case model.GameLottery:
		l, payout, fee, err := a.lottery.ResolveDraw(ctx, req.EntityID, word, a.edge())
		if err != nil {
			return nil, err
		}
		res = &Result{Game: model.GameLottery, Lottery: l, Payout: payout, Fee: fee, Word: word}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, req.Game)
	}

	if err := a.registry.Invalidate(ctx, requestID); err != nil {
		return nil, fmt.Errorf("retire request %s: %w", requestID, err)
	}
	return res, nil
}
