package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: proposals list pages filter by participant.
	`CREATE INDEX IF NOT EXISTS idx_proposals_sender
	     ON proposals(sender_id, created_at)`,
	// Migration 2: listing pages for a single owner.
	`CREATE INDEX IF NOT EXISTS idx_listings_owner
	     ON listings(owner_id, active)`,
}

// Migrate ensures the schema and then runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
