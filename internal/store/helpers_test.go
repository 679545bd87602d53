package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/barter/internal/model"
)

func mustAccount(t *testing.T, database *sql.DB, username string) *model.Account {
	t.Helper()
	a, err := CreateAccount(context.Background(), database, username, "hash")
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", username, err)
	}
	return a
}

func mustListing(t *testing.T, database *sql.DB, ownerID int64, title, category, condition string) *model.Listing {
	t.Helper()
	l, err := CreateListing(context.Background(), database, ownerID, model.ListingInput{
		Title:       title,
		Description: "description of " + title,
		Category:    category,
		Condition:   condition,
	})
	if err != nil {
		t.Fatalf("CreateListing(%s): %v", title, err)
	}
	return l
}
