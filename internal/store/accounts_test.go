package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/barter/internal/db"
	"github.com/erazemk/barter/internal/model"
)

func TestCreateAndGetAccount(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, err := CreateAccount(ctx, database, "alice", "hash")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	got, err := GetAccountByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetAccountByUsername: %v", err)
	}
	if got == nil || got.ID != a.ID {
		t.Fatalf("expected account %d, got %+v", a.ID, got)
	}

	missing, err := GetAccount(ctx, database, 999)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing account")
	}
}

func TestCreateAccountDuplicateUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustAccount(t, database, "alice")
	_, err := CreateAccount(ctx, database, "alice", "other")
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation for duplicate username, got %v", err)
	}
}

func TestUpdateAccountPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustAccount(t, database, "alice")
	if err := UpdateAccountPassword(ctx, database, a.ID, "new-hash"); err != nil {
		t.Fatalf("UpdateAccountPassword: %v", err)
	}

	got, _ := GetAccount(ctx, database, a.ID)
	if got.PasswordHash != "new-hash" {
		t.Errorf("expected updated hash, got %q", got.PasswordHash)
	}
}
