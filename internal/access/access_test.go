package access_test

import (
	"errors"
	"testing"

	"github.com/luckhouse/wager-engine/internal/access"
)

func newControl(t *testing.T) *access.Control {
	t.Helper()
	c, err := access.New("alice", "oracle-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestNew_RequiresOwner(t *testing.T) {
	if _, err := access.New("", "oracle-1"); !errors.Is(err, access.ErrZeroIdentity) {
		t.Errorf("expected ErrZeroIdentity, got %v", err)
	}
}

func TestTransferOwnership_TwoStep(t *testing.T) {
	c := newControl(t)

	if err := c.TransferOwnership("alice", "bob"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := c.Owner(); got != "alice" {
		t.Errorf("ownership must not move before accept, owner=%s", got)
	}
	if got := c.PendingOwner(); got != "bob" {
		t.Errorf("pending owner = %s, want bob", got)
	}

	prev, err := c.AcceptOwnership("bob")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if prev != "alice" {
		t.Errorf("previous owner = %s, want alice", prev)
	}
	if got := c.Owner(); got != "bob" {
		t.Errorf("owner = %s, want bob", got)
	}
	if got := c.PendingOwner(); got != "" {
		t.Errorf("pending slot not cleared: %s", got)
	}
}

func TestTransferOwnership_Rejections(t *testing.T) {
	c := newControl(t)

	if err := c.TransferOwnership("mallory", "bob"); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("non-owner transfer: got %v", err)
	}
	if err := c.TransferOwnership("alice", ""); !errors.Is(err, access.ErrZeroIdentity) {
		t.Errorf("zero nominee: got %v", err)
	}
	if _, err := c.AcceptOwnership("bob"); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("accept without nomination: got %v", err)
	}

	c.TransferOwnership("alice", "bob")
	if _, err := c.AcceptOwnership("mallory"); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("accept by non-nominee: got %v", err)
	}
}

func TestAcceptOwnership_EmptyCallerNeverMatchesClearedSlot(t *testing.T) {
	c := newControl(t)
	if _, err := c.AcceptOwnership(""); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("empty caller: got %v", err)
	}
}

func TestSetCoordinator(t *testing.T) {
	c := newControl(t)

	if err := c.SetCoordinator("alice", "oracle-2"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if got := c.Coordinator(); got != "oracle-2" {
		t.Errorf("coordinator = %s, want oracle-2", got)
	}
	if err := c.SetCoordinator("bob", "oracle-3"); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("non-owner rotate: got %v", err)
	}
	if err := c.SetCoordinator("alice", ""); !errors.Is(err, access.ErrZeroIdentity) {
		t.Errorf("zero coordinator: got %v", err)
	}
}

func TestRequireCoordinator(t *testing.T) {
	c := newControl(t)

	if err := c.RequireCoordinator("oracle-1", false); err != nil {
		t.Errorf("coordinator rejected: %v", err)
	}
	if err := c.RequireCoordinator("alice", false); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("owner without delegation: got %v", err)
	}
	if err := c.RequireCoordinator("alice", true); err != nil {
		t.Errorf("owner with delegation rejected: %v", err)
	}
	if err := c.RequireCoordinator("mallory", true); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("stranger: got %v", err)
	}
}

func TestRequireOwner(t *testing.T) {
	c := newControl(t)

	if err := c.RequireOwner("alice"); err != nil {
		t.Errorf("owner rejected: %v", err)
	}
	if err := c.RequireOwner("bob"); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("non-owner: got %v", err)
	}
	if err := c.RequireOwner(""); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("empty caller: got %v", err)
	}
}
