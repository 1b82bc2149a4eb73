// Package registry implements the correlation table between outgoing
// randomness requests and the game entities awaiting their results.
//
// A correlation key fulfills at most once: the delivery path peeks the
// entry, settles, and only then retires the key, so a failed settlement
// leaves the key intact for a retry. Retiring it (after settlement) or
// invalidating it (when a timeout refund supersedes the callback)
// deletes the entry, and a deleted key can never be fulfilled.
package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/luckhouse/wager-engine/internal/model"
	"github.com/luckhouse/wager-engine/internal/store"
)

// ErrUnknownRequest is returned when a correlation key is absent or was
// already retired. Duplicate or stale oracle deliveries surface as this.
var ErrUnknownRequest = errors.New("registry: unknown or retired request")

// Registry allocates and retires randomness correlation keys.
type Registry struct {
	store store.Store
}

// New creates a Registry over the given store.
func New(st store.Store) *Registry {
	return &Registry{store: st}
}

// Open allocates a fresh correlation key for a game entity and records
// the pending request. The key is opaque and globally unique.
func (r *Registry) Open(ctx context.Context, game model.Game, entityID uint64) (string, error) {
	req := &model.PendingRequest{
		RequestID: uuid.New().String(),
		Game:      game,
		EntityID:  entityID,
	}
	if err := r.store.PutPendingRequest(ctx, req); err != nil {
		return "", err
	}
	return req.RequestID, nil
}

// Peek returns the pending context for a correlation key without
// retiring it. Callers settle first and call Invalidate on success.
func (r *Registry) Peek(ctx context.Context, requestID string) (*model.PendingRequest, error) {
	req, err := r.store.GetPendingRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownRequest
		}
		return nil, err
	}
	return req, nil
}

// Invalidate removes a pending request. Called after a successful
// settlement, or when a timeout refund is processed as a substitute for
// the callback; a late delivery for the key then fails with
// ErrUnknownRequest. Invalidating an absent key is a no-op.
func (r *Registry) Invalidate(ctx context.Context, requestID string) error {
	err := r.store.DeletePendingRequest(ctx, requestID)
	if err != nil && errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
