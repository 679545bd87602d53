package store

import (
	"context"
	"fmt"

	"github.com/erazemk/barter/internal/model"
)

const notificationColumns = `id, account_id, message, is_read, created_at`

// CreateNotification appends a message to an account's notification log.
func CreateNotification(ctx context.Context, q Querier, accountID int64, message string) (*model.Notification, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO notifications (account_id, message) VALUES (?, ?)`,
		accountID, message,
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting notification id: %w", err)
	}

	n := &model.Notification{}
	err = q.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id,
	).Scan(&n.ID, &n.AccountID, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("reading notification: %w", err)
	}
	return n, nil
}

// ListUnread returns up to limit unread notifications, newest first.
// A limit of zero or less returns all of them.
func ListUnread(ctx context.Context, q Querier, accountID int64, limit int) ([]model.Notification, error) {
	return queryNotifications(ctx, q, `account_id = ? AND is_read = 0`, limit, accountID)
}

// ListNotifications returns up to limit notifications, read or not, newest first.
func ListNotifications(ctx context.Context, q Querier, accountID int64, limit int) ([]model.Notification, error) {
	return queryNotifications(ctx, q, `account_id = ?`, limit, accountID)
}

func queryNotifications(ctx context.Context, q Querier, where string, limit int, args ...any) ([]model.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	rows, err := q.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE `+where+` ORDER BY created_at DESC, id DESC LIMIT ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnread returns the number of unread notifications for an account.
func CountUnread(ctx context.Context, q Querier, accountID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE account_id = ? AND is_read = 0`, accountID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the account as read and
// returns how many changed.
func MarkAllRead(ctx context.Context, q Querier, accountID int64) (int64, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE account_id = ? AND is_read = 0`, accountID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return n, nil
}
