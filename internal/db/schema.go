package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS listings (
    id          INTEGER PRIMARY KEY,
    owner_id    INTEGER NOT NULL REFERENCES accounts(id),
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image_url   TEXT,
    image       BLOB,
    image_mime  TEXT,
    category    TEXT NOT NULL CHECK (category IN ('electronics', 'clothing', 'books', 'sports', 'furniture', 'other')),
    condition   TEXT NOT NULL CHECK (condition IN ('new', 'used', 'like_new')),
    active      INTEGER NOT NULL DEFAULT 1 CHECK (active IN (0, 1)),
    created_at  DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    updated_at  DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_listings_active_created
    ON listings(active, created_at);
CREATE INDEX IF NOT EXISTS idx_listings_category_condition
    ON listings(category, condition);

CREATE TABLE IF NOT EXISTS proposals (
    id                  INTEGER PRIMARY KEY,
    sender_id           INTEGER NOT NULL REFERENCES accounts(id),
    offered_listing_id  INTEGER NOT NULL REFERENCES listings(id),
    requested_listing_id INTEGER NOT NULL REFERENCES listings(id),
    comment             TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
    created_at          DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    updated_at          DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    CHECK (offered_listing_id <> requested_listing_id)
);

CREATE INDEX IF NOT EXISTS idx_proposals_status_created
    ON proposals(status, created_at);
CREATE INDEX IF NOT EXISTS idx_proposals_requested
    ON proposals(requested_listing_id);
CREATE INDEX IF NOT EXISTS idx_proposals_offered
    ON proposals(offered_listing_id);

CREATE TABLE IF NOT EXISTS notifications (
    id         INTEGER PRIMARY KEY,
    account_id INTEGER NOT NULL REFERENCES accounts(id),
    message    TEXT NOT NULL,
    is_read    INTEGER NOT NULL DEFAULT 0 CHECK (is_read IN (0, 1)),
    created_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_account_read
    ON notifications(account_id, is_read);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
