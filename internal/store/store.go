// Package store defines the persistence interface for the wager engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and single-node development).
package store

import (
	"context"
	"errors"

	"github.com/luckhouse/wager-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. All mutation is driven by
// the ledger facade, which serializes access, so implementations only
// need to be individually safe, not transactional across calls.
type Store interface {
	// --- Treasury balances ---

	// GetBalance returns the custody pair for a token. Tokens that were
	// never funded yield a zero balance, not an error.
	GetBalance(ctx context.Context, token string) (*model.Balance, error)

	// PutBalance upserts the custody pair for a token.
	PutBalance(ctx context.Context, b *model.Balance) error

	// ListBalances returns every token with a recorded balance.
	ListBalances(ctx context.Context) ([]model.Balance, error)

	// --- Token configuration ---

	// GetTokenConfig returns the wagering config for a token.
	GetTokenConfig(ctx context.Context, token string) (*model.TokenConfig, error)

	// PutTokenConfig upserts a token's wagering config.
	PutTokenConfig(ctx context.Context, cfg *model.TokenConfig) error

	// GetSetting returns a persisted configuration value; ErrNotFound
	// when the key was never stored.
	GetSetting(ctx context.Context, key string) (string, error)

	// PutSetting upserts a configuration value.
	PutSetting(ctx context.Context, key, value string) error

	// --- Identifier allocation ---

	// NextDiceID allocates the next monotonically increasing dice bet ID.
	NextDiceID(ctx context.Context) (uint64, error)

	// NextLotteryID allocates the next monotonically increasing lottery ID.
	NextLotteryID(ctx context.Context) (uint64, error)

	// --- Dice bets ---

	// PutDiceBet upserts a dice bet record.
	PutDiceBet(ctx context.Context, bet *model.DiceBet) error

	// GetDiceBet retrieves a dice bet by ID.
	GetDiceBet(ctx context.Context, id uint64) (*model.DiceBet, error)

	// ListDiceBetsByPlayer returns all bets placed by one player,
	// oldest first.
	ListDiceBetsByPlayer(ctx context.Context, player string) ([]model.DiceBet, error)

	// --- Lotteries ---

	// PutLottery upserts a lottery record.
	PutLottery(ctx context.Context, l *model.Lottery) error

	// GetLottery retrieves a lottery by ID.
	GetLottery(ctx context.Context, id uint64) (*model.Lottery, error)

	// ListLotteries returns all lotteries, oldest first.
	ListLotteries(ctx context.Context) ([]model.Lottery, error)

	// --- Lottery refund claims ---

	// HasRefundClaim reports whether a user already claimed a refund
	// for a lottery.
	HasRefundClaim(ctx context.Context, lotteryID uint64, user string) (bool, error)

	// PutRefundClaim records a user's refund claim for a lottery.
	PutRefundClaim(ctx context.Context, lotteryID uint64, user string) error

	// --- Randomness correlation table ---

	// PutPendingRequest stores a new pending randomness request.
	PutPendingRequest(ctx context.Context, req *model.PendingRequest) error

	// GetPendingRequest retrieves a pending request by correlation key.
	GetPendingRequest(ctx context.Context, requestID string) (*model.PendingRequest, error)

	// DeletePendingRequest removes a pending request. Removal is what
	// makes a correlation key permanently unfulfillable.
	DeletePendingRequest(ctx context.Context, requestID string) error

	// --- Immutable event journal ---

	// AppendEvent appends an immutable ledger notification.
	AppendEvent(ctx context.Context, ev *model.Event) error

	// ListEvents returns the most recent events, newest first,
	// capped at limit (0 means no cap).
	ListEvents(ctx context.Context, limit int) ([]model.Event, error)
}
