package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/barter/internal/model"
)

// CreateAccount creates a new account. A taken username is a validation error.
func CreateAccount(ctx context.Context, q Querier, username, passwordHash string) (*model.Account, error) {
	existing, err := GetAccountByUsername(ctx, q, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: username %q is already taken", model.ErrValidation, username)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES (?, ?)`,
		username, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting account id: %w", err)
	}

	return GetAccount(ctx, q, id)
}

// GetAccount returns an account by ID.
func GetAccount(ctx context.Context, q Querier, id int64) (*model.Account, error) {
	a := &model.Account{}
	err := q.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return a, nil
}

// GetAccountByUsername returns an account by username.
func GetAccountByUsername(ctx context.Context, q Querier, username string) (*model.Account, error) {
	a := &model.Account{}
	err := q.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM accounts WHERE username = ?`, username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account by username: %w", err)
	}
	return a, nil
}

// UpdateAccountPassword updates an account's password hash.
func UpdateAccountPassword(ctx context.Context, q Querier, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating account password: %w", err)
	}
	return nil
}
