package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu            sync.RWMutex
	balances      map[string]*model.Balance
	tokenConfigs  map[string]*model.TokenConfig
	settings      map[string]string
	diceBets      map[uint64]*model.DiceBet
	lotteries     map[uint64]*model.Lottery
	requests      map[string]*model.PendingRequest
	refundClaims  map[string]bool
	events        []model.Event
	nextDiceID    uint64
	nextLotteryID uint64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:     make(map[string]*model.Balance),
		tokenConfigs: make(map[string]*model.TokenConfig),
		settings:     make(map[string]string),
		diceBets:     make(map[uint64]*model.DiceBet),
		lotteries:    make(map[uint64]*model.Lottery),
		requests:     make(map[string]*model.PendingRequest),
		refundClaims: make(map[string]bool),
	}
}

func (s *MemoryStore) GetBalance(_ context.Context, token string) (*model.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[token]
	if !ok {
		return &model.Balance{Token: token, Available: decimal.Zero, Locked: decimal.Zero}, nil
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) PutBalance(_ context.Context, b *model.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.balances[b.Token] = &cp
	return nil
}

func (s *MemoryStore) ListBalances(_ context.Context) ([]model.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Balance, 0, len(s.balances))
	for _, b := range s.balances {
		out = append(out, *b)
	}
	return out, nil
}

func (s *MemoryStore) GetTokenConfig(_ context.Context, token string) (*model.TokenConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.tokenConfigs[token]
	if !ok {
		return nil, fmt.Errorf("token config %s: %w", token, ErrNotFound)
	}
	cp := *cfg
	return &cp, nil
}

func (s *MemoryStore) PutTokenConfig(_ context.Context, cfg *model.TokenConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cfg
	s.tokenConfigs[cfg.Token] = &cp
	return nil
}

func (s *MemoryStore) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.settings[key]
	if !ok {
		return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	return v, nil
}

func (s *MemoryStore) PutSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[key] = value
	return nil
}

func (s *MemoryStore) NextDiceID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDiceID++
	return s.nextDiceID, nil
}

func (s *MemoryStore) NextLotteryID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLotteryID++
	return s.nextLotteryID, nil
}

func (s *MemoryStore) PutDiceBet(_ context.Context, bet *model.DiceBet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *bet
	s.diceBets[bet.ID] = &cp
	return nil
}

func (s *MemoryStore) GetDiceBet(_ context.Context, id uint64) (*model.DiceBet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bet, ok := s.diceBets[id]
	if !ok {
		return nil, fmt.Errorf("dice bet %d: %w", id, ErrNotFound)
	}
	cp := *bet
	return &cp, nil
}

func (s *MemoryStore) ListDiceBetsByPlayer(_ context.Context, player string) ([]model.DiceBet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.DiceBet
	// Map iteration order is random; walk IDs in allocation order.
	for id := uint64(1); id <= s.nextDiceID; id++ {
		if bet, ok := s.diceBets[id]; ok && bet.Player == player {
			out = append(out, *bet)
		}
	}
	return out, nil
}

func (s *MemoryStore) PutLottery(_ context.Context, l *model.Lottery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	cp.Entries = append([]string(nil), l.Entries...)
	s.lotteries[l.ID] = &cp
	return nil
}

func (s *MemoryStore) GetLottery(_ context.Context, id uint64) (*model.Lottery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lotteries[id]
	if !ok {
		return nil, fmt.Errorf("lottery %d: %w", id, ErrNotFound)
	}
	cp := *l
	cp.Entries = append([]string(nil), l.Entries...)
	return &cp, nil
}

func (s *MemoryStore) ListLotteries(_ context.Context) ([]model.Lottery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Lottery
	for id := uint64(1); id <= s.nextLotteryID; id++ {
		if l, ok := s.lotteries[id]; ok {
			cp := *l
			cp.Entries = append([]string(nil), l.Entries...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) HasRefundClaim(_ context.Context, lotteryID uint64, user string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.refundClaims[refundClaimKey(lotteryID, user)], nil
}

func (s *MemoryStore) PutRefundClaim(_ context.Context, lotteryID uint64, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refundClaims[refundClaimKey(lotteryID, user)] = true
	return nil
}

func (s *MemoryStore) PutPendingRequest(_ context.Context, req *model.PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *req
	s.requests[req.RequestID] = &cp
	return nil
}

func (s *MemoryStore) GetPendingRequest(_ context.Context, requestID string) (*model.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("pending request %s: %w", requestID, ErrNotFound)
	}
	cp := *req
	return &cp, nil
}

func (s *MemoryStore) DeletePendingRequest(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[requestID]; !ok {
		return fmt.Errorf("pending request %s: %w", requestID, ErrNotFound)
	}
	delete(s.requests, requestID)
	return nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *ev)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, limit int) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func refundClaimKey(lotteryID uint64, user string) string {
	return fmt.Sprintf("%d:%s", lotteryID, user)
}
