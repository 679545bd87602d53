// Package notify holds the notification sink written by the exchange engine
// and the publishers that fan notifications out after a commit.
package notify

import (
	"context"
	"errors"

	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/store"
)

// Sink appends a notification for an account. The engine passes its open
// transaction as q so the write commits together with the state change.
type Sink interface {
	Append(ctx context.Context, q store.Querier, accountID int64, message string) (*model.Notification, error)
}

// StoreSink writes notifications to the notifications table.
type StoreSink struct{}

// Append implements Sink.
func (StoreSink) Append(ctx context.Context, q store.Querier, accountID int64, message string) (*model.Notification, error) {
	if message == "" {
		return nil, errors.New("empty notification message")
	}
	return store.CreateNotification(ctx, q, accountID, message)
}
