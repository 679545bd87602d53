package model

import (
	"fmt"
	"time"
)

// Proposal is an offer to trade the sender's listing for another account's
// listing.
type Proposal struct {
	ID                 int64     `json:"id"`
	SenderID           int64     `json:"sender_id"`
	OfferedListingID   int64     `json:"ad_sender"`
	RequestedListingID int64     `json:"ad_receiver"`
	Comment            string    `json:"comment"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	ReceiverID     int64  `json:"receiver_id,omitempty"`
	SenderName     string `json:"sender,omitempty"`
	ReceiverName   string `json:"receiver,omitempty"`
	OfferedTitle   string `json:"ad_sender_title,omitempty"`
	RequestedTitle string `json:"ad_receiver_title,omitempty"`
}

// Proposal statuses. Pending is the only non-terminal state.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Statuses lists all proposal statuses.
var Statuses = []string{StatusPending, StatusAccepted, StatusRejected}

// Terminal reports whether status admits no further transitions.
func Terminal(status string) bool {
	return status == StatusAccepted || status == StatusRejected
}

// ValidateTarget checks that status is a legal transition target.
func ValidateTarget(status string) error {
	if !Terminal(status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}
	return nil
}
