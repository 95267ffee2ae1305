package identity

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	account, err := svc.Register(ctx, "  Player@Example.com ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if account.Email != "player@example.com" {
		t.Fatalf("expected normalized email, got %s", account.Email)
	}

	found, err := svc.Lookup(ctx, "PLAYER@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found.ID != account.ID {
		t.Fatalf("expected account %s, got %s", account.ID, found.ID)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dup@example.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "DUP@example.com"); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestMemoryDelete(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	account, err := svc.Register(ctx, "gone@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := repo.Delete(ctx, account.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Lookup(ctx, "gone@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, account.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
