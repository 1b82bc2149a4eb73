package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/model"
	"github.com/luckhouse/wager-engine/internal/store"
)

func TestGetBalance_UnknownTokenIsZero(t *testing.T) {
	s := store.NewMemoryStore()
	bal, err := s.GetBalance(context.Background(), "gold")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bal.Available.IsZero() || !bal.Locked.IsZero() {
		t.Errorf("unknown token balance = %+v, want zero pair", bal)
	}
}

func TestIDCountersAreIndependent(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		id, err := s.NextDiceID(ctx)
		if err != nil || id != want {
			t.Fatalf("dice id = %d, %v; want %d", id, err, want)
		}
	}
	id, err := s.NextLotteryID(ctx)
	if err != nil || id != 1 {
		t.Fatalf("lottery id = %d, %v; want 1 regardless of dice ids", id, err)
	}
}

func TestDiceBet_CopyOnReadAndWrite(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	bet := &model.DiceBet{ID: 1, Player: "alice", Token: "gold", Stake: decimal.NewFromInt(10)}
	if err := s.PutDiceBet(ctx, bet); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating either the stored-from or read-out value must not leak
	// into the store.
	bet.Resolved = true
	got, err := s.GetDiceBet(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Resolved {
		t.Error("caller mutation leaked into the store")
	}
	got.Refunded = true
	again, _ := s.GetDiceBet(ctx, 1)
	if again.Refunded {
		t.Error("read-out mutation leaked into the store")
	}
}

func TestGetDiceBet_NotFound(t *testing.T) {
	s := store.NewMemoryStore()
	if _, err := s.GetDiceBet(context.Background(), 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestListDiceBetsByPlayer_InsertionOrder(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	for _, player := range []string{"alice", "bob", "alice"} {
		id, _ := s.NextDiceID(ctx)
		s.PutDiceBet(ctx, &model.DiceBet{ID: id, Player: player, Token: "gold"})
	}

	bets, err := s.ListDiceBetsByPlayer(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bets) != 2 || bets[0].ID != 1 || bets[1].ID != 3 {
		t.Fatalf("alice bets = %+v, want ids 1 and 3 in order", bets)
	}
}

func TestPendingRequestLifecycle(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	req := &model.PendingRequest{RequestID: "r1", Game: model.GameDice, EntityID: 7}
	if err := s.PutPendingRequest(ctx, req); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetPendingRequest(ctx, "r1")
	if err != nil || got.EntityID != 7 {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if err := s.DeletePendingRequest(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeletePendingRequest(ctx, "r1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestRefundClaims_ScopedPerCaller(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if err := s.PutRefundClaim(ctx, 1, "carol"); err != nil {
		t.Fatalf("put: %v", err)
	}
	cases := []struct {
		lottery uint64
		user    string
		want    bool
	}{
		{1, "carol", true},
		{1, "dave", false},
		{2, "carol", false},
	}
	for _, tc := range cases {
		got, err := s.HasRefundClaim(ctx, tc.lottery, tc.user)
		if err != nil || got != tc.want {
			t.Errorf("claim(%d, %s) = %t, %v; want %t", tc.lottery, tc.user, got, err, tc.want)
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetSetting(ctx, "house_edge_bps"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unset key: got %v, want ErrNotFound", err)
	}
	if err := s.PutSetting(ctx, "house_edge_bps", "250"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutSetting(ctx, "house_edge_bps", "300"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err := s.GetSetting(ctx, "house_edge_bps")
	if err != nil || v != "300" {
		t.Errorf("get = %q, %v; want 300", v, err)
	}
}

func TestListEvents_NewestFirstWithLimit(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	for i, typ := range []model.EventType{model.EventFunded, model.EventDicePlayed, model.EventWithdrawn} {
		s.AppendEvent(ctx, &model.Event{
			ID:        string(rune('a' + i)),
			Type:      typ,
			Timestamp: time.Now().UTC(),
		})
	}

	events, err := s.ListEvents(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].Type != model.EventWithdrawn || events[1].Type != model.EventDicePlayed {
		t.Fatalf("events = %+v, want newest two in reverse order", events)
	}
}
