package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/erazemk/barter/internal/model"
)

// Publisher broadcasts notifications that are already committed. Failures
// never affect the stored notification.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, model.Notification) error { return nil }

// SubjectPrefix is the NATS subject namespace for notification events.
const SubjectPrefix = "barter.notifications"

// Subject returns the per-account subject, e.g. barter.notifications.42.
// Subscribers can use barter.notifications.* for all accounts.
func Subject(accountID int64) string {
	return fmt.Sprintf("%s.%d", SubjectPrefix, accountID)
}

// Event is the JSON payload published for each notification.
type Event struct {
	EventID        string    `json:"event_id"`
	NotificationID int64     `json:"notification_id"`
	AccountID      int64     `json:"account_id"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewEvent wraps a notification in an event with a fresh ID.
func NewEvent(n model.Notification) Event {
	return Event{
		EventID:        uuid.NewString(),
		NotificationID: n.ID,
		AccountID:      n.AccountID,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	}
}

// NATSPublisher publishes notification events to NATS core subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("barter"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(_ context.Context, n model.Notification) error {
	data, err := json.Marshal(NewEvent(n))
	if err != nil {
		return fmt.Errorf("encoding notification event: %w", err)
	}
	if err := p.conn.Publish(Subject(n.AccountID), data); err != nil {
		return fmt.Errorf("publishing notification event: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
