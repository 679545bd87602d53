package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/barter/internal/model"
)

const proposalSelect = `SELECT p.id, p.sender_id, p.offered_listing_id, p.requested_listing_id,
	        p.comment, p.status, p.created_at, p.updated_at,
	        rl.owner_id, s.username, r.username, ol.title, rl.title
	 FROM proposals p
	 JOIN listings ol ON ol.id = p.offered_listing_id
	 JOIN listings rl ON rl.id = p.requested_listing_id
	 JOIN accounts s ON s.id = p.sender_id
	 JOIN accounts r ON r.id = rl.owner_id`

func scanProposal(s scanner) (*model.Proposal, error) {
	p := &model.Proposal{}
	err := s.Scan(&p.ID, &p.SenderID, &p.OfferedListingID, &p.RequestedListingID,
		&p.Comment, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		&p.ReceiverID, &p.SenderName, &p.ReceiverName, &p.OfferedTitle, &p.RequestedTitle)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func queryProposals(ctx context.Context, q Querier, where string, args ...any) ([]model.Proposal, error) {
	rows, err := q.QueryContext(ctx,
		proposalSelect+` WHERE `+where+` ORDER BY p.created_at DESC, p.id DESC`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	defer rows.Close()

	var proposals []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

// InsertProposal records a pending proposal. Preconditions are the caller's
// job; see exchange.Service.Create.
func InsertProposal(ctx context.Context, q Querier, senderID, offeredID, requestedID int64, comment string) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO proposals (sender_id, offered_listing_id, requested_listing_id, comment, status)
		 VALUES (?, ?, ?, ?, ?)`,
		senderID, offeredID, requestedID, comment, model.StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("creating proposal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting proposal id: %w", err)
	}
	return id, nil
}

// GetProposal returns a proposal by ID.
func GetProposal(ctx context.Context, q Querier, id int64) (*model.Proposal, error) {
	p, err := scanProposal(q.QueryRowContext(ctx, proposalSelect+` WHERE p.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting proposal: %w", err)
	}
	return p, nil
}

// ListSentProposals returns proposals sent by the account, newest first.
func ListSentProposals(ctx context.Context, q Querier, senderID int64) ([]model.Proposal, error) {
	return queryProposals(ctx, q, `p.sender_id = ?`, senderID)
}

// ListReceivedProposals returns proposals requesting the account's listings.
func ListReceivedProposals(ctx context.Context, q Querier, receiverID int64) ([]model.Proposal, error) {
	return queryProposals(ctx, q, `rl.owner_id = ?`, receiverID)
}

// ListPendingIncoming returns the pending proposals requesting a listing.
// Unlike ProposalCount, this view excludes terminal proposals.
func ListPendingIncoming(ctx context.Context, q Querier, listingID int64) ([]model.Proposal, error) {
	return queryProposals(ctx, q, `p.requested_listing_id = ? AND p.status = ?`, listingID, model.StatusPending)
}

// ListPendingTouching returns pending proposals that offer or request the
// listing, other than excludeID.
func ListPendingTouching(ctx context.Context, q Querier, listingID, excludeID int64) ([]model.Proposal, error) {
	return queryProposals(ctx, q,
		`(p.offered_listing_id = ? OR p.requested_listing_id = ?) AND p.status = ? AND p.id <> ?`,
		listingID, listingID, model.StatusPending, excludeID)
}

// HasPendingProposal reports whether a pending proposal already exists for
// the same offered and requested listings.
func HasPendingProposal(ctx context.Context, q Querier, offeredID, requestedID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM proposals
		 WHERE offered_listing_id = ? AND requested_listing_id = ? AND status = ?`,
		offeredID, requestedID, model.StatusPending,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking pending proposals: %w", err)
	}
	return n > 0, nil
}

// SwapProposalStatus moves a proposal from one status to another only if it
// still has the expected status. Returns false if another writer got there first.
func SwapProposalStatus(ctx context.Context, q Querier, id int64, from, to string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE proposals SET status = ?, updated_at = `+nowSQL+` WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("updating proposal status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating proposal status: %w", err)
	}
	return n == 1, nil
}
