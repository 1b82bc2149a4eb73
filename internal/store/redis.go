package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luckhouse/wager-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and refresh or invalidate the
// cache; reads check Redis first then fall back to the primary.
//
// Balances and correlation-table entries are deliberately not cached:
// both gate money movement and must always reflect the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) PutDiceBet(ctx context.Context, bet *model.DiceBet) error {
	if err := s.primary.PutDiceBet(ctx, bet); err != nil {
		return err
	}
	s.cache(ctx, diceKey(bet.ID), bet)
	return nil
}

func (s *CachedStore) PutLottery(ctx context.Context, l *model.Lottery) error {
	if err := s.primary.PutLottery(ctx, l); err != nil {
		return err
	}
	s.cache(ctx, lotteryKey(l.ID), l)
	return nil
}

func (s *CachedStore) PutTokenConfig(ctx context.Context, cfg *model.TokenConfig) error {
	if err := s.primary.PutTokenConfig(ctx, cfg); err != nil {
		return err
	}
	s.cache(ctx, tokenConfigKey(cfg.Token), cfg)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetDiceBet(ctx context.Context, id uint64) (*model.DiceBet, error) {
	data, err := s.rdb.Get(ctx, diceKey(id)).Bytes()
	if err == nil {
		var bet model.DiceBet
		if json.Unmarshal(data, &bet) == nil {
			return &bet, nil
		}
	}

	bet, err := s.primary.GetDiceBet(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, diceKey(id), bet)
	return bet, nil
}

func (s *CachedStore) GetLottery(ctx context.Context, id uint64) (*model.Lottery, error) {
	data, err := s.rdb.Get(ctx, lotteryKey(id)).Bytes()
	if err == nil {
		var l model.Lottery
		if json.Unmarshal(data, &l) == nil {
			return &l, nil
		}
	}

	l, err := s.primary.GetLottery(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, lotteryKey(id), l)
	return l, nil
}

func (s *CachedStore) GetTokenConfig(ctx context.Context, token string) (*model.TokenConfig, error) {
	data, err := s.rdb.Get(ctx, tokenConfigKey(token)).Bytes()
	if err == nil {
		var cfg model.TokenConfig
		if json.Unmarshal(data, &cfg) == nil {
			return &cfg, nil
		}
	}

	cfg, err := s.primary.GetTokenConfig(ctx, token)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, tokenConfigKey(token), cfg)
	return cfg, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetBalance(ctx context.Context, token string) (*model.Balance, error) {
	return s.primary.GetBalance(ctx, token)
}

func (s *CachedStore) PutBalance(ctx context.Context, b *model.Balance) error {
	return s.primary.PutBalance(ctx, b)
}

func (s *CachedStore) ListBalances(ctx context.Context) ([]model.Balance, error) {
	return s.primary.ListBalances(ctx)
}

func (s *CachedStore) NextDiceID(ctx context.Context) (uint64, error) {
	return s.primary.NextDiceID(ctx)
}

func (s *CachedStore) NextLotteryID(ctx context.Context) (uint64, error) {
	return s.primary.NextLotteryID(ctx)
}

func (s *CachedStore) ListDiceBetsByPlayer(ctx context.Context, player string) ([]model.DiceBet, error) {
	return s.primary.ListDiceBetsByPlayer(ctx, player)
}

func (s *CachedStore) ListLotteries(ctx context.Context) ([]model.Lottery, error) {
	return s.primary.ListLotteries(ctx)
}

func (s *CachedStore) HasRefundClaim(ctx context.Context, lotteryID uint64, user string) (bool, error) {
	return s.primary.HasRefundClaim(ctx, lotteryID, user)
}

func (s *CachedStore) PutRefundClaim(ctx context.Context, lotteryID uint64, user string) error {
	return s.primary.PutRefundClaim(ctx, lotteryID, user)
}

// Settings pass through: read rarely, and the ledger reloads them only
// at construction.
func (s *CachedStore) GetSetting(ctx context.Context, key string) (string, error) {
	return s.primary.GetSetting(ctx, key)
}

func (s *CachedStore) PutSetting(ctx context.Context, key, value string) error {
	return s.primary.PutSetting(ctx, key, value)
}

func (s *CachedStore) PutPendingRequest(ctx context.Context, req *model.PendingRequest) error {
	return s.primary.PutPendingRequest(ctx, req)
}

func (s *CachedStore) GetPendingRequest(ctx context.Context, requestID string) (*model.PendingRequest, error) {
	return s.primary.GetPendingRequest(ctx, requestID)
}

func (s *CachedStore) DeletePendingRequest(ctx context.Context, requestID string) error {
	return s.primary.DeletePendingRequest(ctx, requestID)
}

func (s *CachedStore) AppendEvent(ctx context.Context, ev *model.Event) error {
	return s.primary.AppendEvent(ctx, ev)
}

func (s *CachedStore) ListEvents(ctx context.Context, limit int) ([]model.Event, error) {
	return s.primary.ListEvents(ctx, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func diceKey(id uint64) string { return fmt.Sprintf("dice:%d", id) }

func lotteryKey(id uint64) string { return fmt.Sprintf("lottery:%d", id) }

func tokenConfigKey(token string) string { return fmt.Sprintf("tokencfg:%s", token) }
