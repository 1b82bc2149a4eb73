// Package access implements the two-step ownership and coordinator
// identity model gating privileged ledger operations.
//
// Ownership moves in two transitions: the owner nominates a pending
// owner, and only that pending owner can commit the transfer. The
// coordinator is the single identity allowed to deliver randomness
// callbacks; the owner may rotate it at any time.
package access

import (
	"errors"
	"sync"
)

var (
	// ErrUnauthorized is returned when the caller lacks the role an
	// operation requires (owner, pending owner, or coordinator).
	ErrUnauthorized = errors.New("access: unauthorized caller")

	// ErrZeroIdentity is returned when an identity argument is empty.
	ErrZeroIdentity = errors.New("access: zero identity")
)

// Control holds the owner, pending-owner, and coordinator identities.
type Control struct {
	mu           sync.RWMutex
	owner        string
	pendingOwner string
	coordinator  string
}

// New creates a Control with the given initial owner and coordinator.
func New(owner, coordinator string) (*Control, error) {
	if owner == "" {
		return nil, ErrZeroIdentity
	}
	return &Control{owner: owner, coordinator: coordinator}, nil
}

// Owner returns the current owner identity.
func (c *Control) Owner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// PendingOwner returns the nominated-but-uncommitted owner, if any.
func (c *Control) PendingOwner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pendingOwner
}

// Coordinator returns the identity allowed to deliver randomness.
func (c *Control) Coordinator() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coordinator
}

// RequireOwner returns ErrUnauthorized unless caller is the owner.
func (c *Control) RequireOwner(caller string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if caller == "" || caller != c.owner {
		return ErrUnauthorized
	}
	return nil
}

// RequireCoordinator returns ErrUnauthorized unless caller is the
// registered coordinator, or the owner when allowOwner is set.
func (c *Control) RequireCoordinator(caller string, allowOwner bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if caller == "" {
		return ErrUnauthorized
	}
	if caller == c.coordinator {
		return nil
	}
	if allowOwner && caller == c.owner {
		return nil
	}
	return ErrUnauthorized
}

// TransferOwnership nominates a new owner. The transfer has no effect
// until the nominee calls AcceptOwnership.
func (c *Control) TransferOwnership(caller, to string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrUnauthorized
	}
	if to == "" {
		return ErrZeroIdentity
	}
	c.pendingOwner = to
	return nil
}

// AcceptOwnership commits a pending transfer. Only the nominated
// pending owner may call it; the pending slot is cleared on success.
func (c *Control) AcceptOwnership(caller string) (previous string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller == "" || caller != c.pendingOwner {
		return "", ErrUnauthorized
	}
	previous = c.owner
	c.owner = c.pendingOwner
	c.pendingOwner = ""
	return previous, nil
}

// SetCoordinator rotates the randomness coordinator identity.
func (c *Control) SetCoordinator(caller, coordinator string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrUnauthorized
	}
	if coordinator == "" {
		return ErrZeroIdentity
	}
	c.coordinator = coordinator
	return nil
}
