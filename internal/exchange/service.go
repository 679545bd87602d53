// Package exchange implements the proposal lifecycle: creating proposals,
// accepting or rejecting them, and withdrawing listings. Every operation runs
// in one database transaction so its multi-row effects are atomic.
package exchange

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/notify"
	"github.com/erazemk/barter/internal/store"
)

// ErrNoEligibleOffers is returned when the sender has no active listing to
// offer. Surfaces turn it into "create a listing first" guidance.
var ErrNoEligibleOffers = fmt.Errorf("%w: create a listing first", model.ErrValidation)

// Service is the proposal lifecycle engine.
type Service struct {
	DB        *sql.DB
	Sink      notify.Sink
	Publisher notify.Publisher
}

// New returns a Service writing notifications to the database and
// broadcasting them through pub (nil means no broadcast).
func New(db *sql.DB, pub notify.Publisher) *Service {
	if pub == nil {
		pub = notify.NopPublisher{}
	}
	return &Service{DB: db, Sink: notify.StoreSink{}, Publisher: pub}
}

// unit is one transaction plus the notifications it wrote.
type unit struct {
	tx    *sql.Tx
	sink  notify.Sink
	notes []model.Notification
}

// notify appends a notification inside the transaction. A failed append is
// logged and dropped: SQLite undoes only the failed statement, and a missed
// message must not undo a completed trade.
func (u *unit) notify(ctx context.Context, accountID int64, message string) {
	n, err := u.sink.Append(ctx, u.tx, accountID, message)
	if err != nil {
		slog.Error("failed to write notification", "account", accountID, "error", err)
		return
	}
	u.notes = append(u.notes, *n)
}

// inTx runs fn in a write transaction and, once committed, publishes the
// notifications fn wrote.
func (s *Service) inTx(ctx context.Context, fn func(u *unit) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	u := &unit{tx: tx, sink: s.Sink}
	if err := fn(u); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	for _, n := range u.notes {
		if err := s.Publisher.Publish(ctx, n); err != nil {
			slog.Warn("failed to publish notification", "notification", n.ID, "account", n.AccountID, "error", err)
		}
	}
	return nil
}

// OfferChoices checks that senderID may propose on the requested listing and
// returns the sender's active listings to choose the offer from. It returns
// ErrNoEligibleOffers if there are none.
func (s *Service) OfferChoices(ctx context.Context, senderID, requestedID int64) (*model.Listing, []model.Listing, error) {
	requested, err := checkRequested(ctx, s.DB, senderID, requestedID)
	if err != nil {
		return nil, nil, err
	}
	offers, err := store.EligibleOffers(ctx, s.DB, senderID)
	if err != nil {
		return nil, nil, err
	}
	if len(offers) == 0 {
		return requested, nil, ErrNoEligibleOffers
	}
	return requested, offers, nil
}

// checkRequested loads the requested listing and applies the first two
// creation rules: it must be active, and the sender must not own it.
func checkRequested(ctx context.Context, q store.Querier, senderID, requestedID int64) (*model.Listing, error) {
	requested, err := store.GetListing(ctx, q, requestedID)
	if err != nil {
		return nil, err
	}
	if requested == nil {
		return nil, fmt.Errorf("%w: listing %d", model.ErrNotFound, requestedID)
	}
	if !requested.Active {
		return nil, fmt.Errorf("%w: listing inactive", model.ErrInvalidState)
	}
	if requested.OwnerID == senderID {
		return nil, fmt.Errorf("%w: cannot propose on own listing", model.ErrOwnershipConflict)
	}
	return requested, nil
}

// Create records a pending proposal offering offeredID in exchange for
// requestedID and notifies the requested listing's owner. Rules are checked
// in order and the first failure is returned.
func (s *Service) Create(ctx context.Context, senderID, requestedID, offeredID int64, comment string) (*model.Proposal, error) {
	var id int64
	err := s.inTx(ctx, func(u *unit) error {
		requested, err := checkRequested(ctx, u.tx, senderID, requestedID)
		if err != nil {
			return err
		}

		offered, err := store.GetActiveListing(ctx, u.tx, offeredID)
		if err != nil {
			return err
		}
		if offered == nil || offered.OwnerID != senderID {
			return fmt.Errorf("%w: invalid offer listing", model.ErrValidation)
		}
		if offered.ID == requested.ID {
			return fmt.Errorf("%w: offered and requested listing are the same", model.ErrValidation)
		}

		dup, err := store.HasPendingProposal(ctx, u.tx, offered.ID, requested.ID)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: proposal already pending", model.ErrInvalidState)
		}

		sender, err := store.GetAccount(ctx, u.tx, senderID)
		if err != nil {
			return err
		}
		if sender == nil {
			return fmt.Errorf("%w: unknown account %d", model.ErrAuthorization, senderID)
		}

		id, err = store.InsertProposal(ctx, u.tx, senderID, offered.ID, requested.ID, comment)
		if err != nil {
			return err
		}

		u.notify(ctx, requested.OwnerID,
			fmt.Sprintf("New exchange proposal for \"%s\" from %s.", requested.Title, sender.Username))
		return nil
	})
	if err != nil {
		return nil, err
	}

	p, err := store.GetProposal(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	slog.Info("proposal created", "proposal", p.ID, "sender", p.SenderName,
		"offered", p.OfferedTitle, "requested", p.RequestedTitle)
	return p, nil
}

// Transition moves a pending proposal to accepted or rejected on behalf of
// the requested listing's owner.
//
// Accepting deactivates both listings, notifies both parties and rejects every
// other pending proposal that involves either listing. Rejecting notifies the
// sender only. The pending check is a compare-and-swap inside the
// transaction, so of two concurrent calls exactly one succeeds and the other
// gets ErrInvalidState.
func (s *Service) Transition(ctx context.Context, proposalID, actorID int64, target string) (*model.Proposal, error) {
	err := s.inTx(ctx, func(u *unit) error {
		p, err := store.GetProposal(ctx, u.tx, proposalID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: proposal %d", model.ErrNotFound, proposalID)
		}
		if p.ReceiverID != actorID {
			return fmt.Errorf("%w: not your proposal", model.ErrAuthorization)
		}
		if p.Status != model.StatusPending {
			return fmt.Errorf("%w: proposal is already %s", model.ErrInvalidState, p.Status)
		}
		if err := model.ValidateTarget(target); err != nil {
			return err
		}

		if target == model.StatusAccepted {
			return u.accept(ctx, p)
		}
		return u.reject(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	p, err := store.GetProposal(ctx, s.DB, proposalID)
	if err != nil {
		return nil, err
	}
	slog.Info("proposal "+p.Status, "proposal", p.ID, "sender", p.SenderName, "receiver", p.ReceiverName)
	return p, nil
}

// Accept is Transition to accepted.
func (s *Service) Accept(ctx context.Context, proposalID, actorID int64) (*model.Proposal, error) {
	return s.Transition(ctx, proposalID, actorID, model.StatusAccepted)
}

// Reject is Transition to rejected.
func (s *Service) Reject(ctx context.Context, proposalID, actorID int64) (*model.Proposal, error) {
	return s.Transition(ctx, proposalID, actorID, model.StatusRejected)
}

func (u *unit) swap(ctx context.Context, p *model.Proposal, to string) error {
	ok, err := store.SwapProposalStatus(ctx, u.tx, p.ID, model.StatusPending, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: proposal is no longer pending", model.ErrInvalidState)
	}
	return nil
}

func (u *unit) accept(ctx context.Context, p *model.Proposal) error {
	listingIDs := []int64{p.OfferedListingID, p.RequestedListingID}

	// Both sides must still be available; a trade never consumes a listing
	// that is already gone.
	for _, id := range listingIDs {
		l, err := store.GetActiveListing(ctx, u.tx, id)
		if err != nil {
			return err
		}
		if l == nil {
			return fmt.Errorf("%w: listing %d is no longer available", model.ErrInvalidState, id)
		}
	}

	if err := u.swap(ctx, p, model.StatusAccepted); err != nil {
		return err
	}
	for _, id := range listingIDs {
		if _, err := store.DeactivateListing(ctx, u.tx, id); err != nil {
			return err
		}
	}

	u.notify(ctx, p.SenderID, fmt.Sprintf(
		"Your proposal for \"%s\" was accepted. You traded \"%s\" for \"%s\" with %s.",
		p.RequestedTitle, p.OfferedTitle, p.RequestedTitle, p.ReceiverName))
	u.notify(ctx, p.ReceiverID, fmt.Sprintf(
		"You accepted the proposal from %s. You traded \"%s\" for \"%s\".",
		p.SenderName, p.RequestedTitle, p.OfferedTitle))

	for _, id := range listingIDs {
		if err := u.withdrawPending(ctx, id, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (u *unit) reject(ctx context.Context, p *model.Proposal) error {
	if err := u.swap(ctx, p, model.StatusRejected); err != nil {
		return err
	}
	u.notify(ctx, p.SenderID, fmt.Sprintf("Your proposal for \"%s\" was rejected.", p.RequestedTitle))
	return nil
}

// withdrawPending rejects the pending proposals, other than exceptID, that
// offer or request a listing which just became inactive, and tells each
// sender why.
func (u *unit) withdrawPending(ctx context.Context, listingID, exceptID int64) error {
	others, err := store.ListPendingTouching(ctx, u.tx, listingID, exceptID)
	if err != nil {
		return err
	}
	for _, o := range others {
		ok, err := store.SwapProposalStatus(ctx, u.tx, o.ID, model.StatusPending, model.StatusRejected)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		gone := o.RequestedTitle
		if o.OfferedListingID == listingID {
			gone = o.OfferedTitle
		}
		u.notify(ctx, o.SenderID, fmt.Sprintf(
			"Your proposal for \"%s\" was withdrawn because \"%s\" is no longer available.",
			o.RequestedTitle, gone))
		slog.Info("proposal withdrawn", "proposal", o.ID, "listing", listingID)
	}
	return nil
}

// DeleteListing soft-deletes a listing owned by actorID and withdraws the
// pending proposals that involve it. Deleting an inactive listing is a no-op
// and returns false.
func (s *Service) DeleteListing(ctx context.Context, listingID, actorID int64) (bool, error) {
	var changed bool
	err := s.inTx(ctx, func(u *unit) error {
		var err error
		changed, err = store.SoftDeleteListing(ctx, u.tx, listingID, actorID)
		if err != nil || !changed {
			return err
		}
		return u.withdrawPending(ctx, listingID, 0)
	})
	if err != nil {
		return false, err
	}
	if changed {
		slog.Info("listing deleted", "listing", listingID, "owner", actorID)
	}
	return changed, nil
}

// Get returns a proposal visible to actorID, who must be its sender or the
// owner of the requested listing.
func (s *Service) Get(ctx context.Context, proposalID, actorID int64) (*model.Proposal, error) {
	p, err := store.GetProposal(ctx, s.DB, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: proposal %d", model.ErrNotFound, proposalID)
	}
	if p.SenderID != actorID && p.ReceiverID != actorID {
		return nil, fmt.Errorf("%w: not your proposal", model.ErrAuthorization)
	}
	return p, nil
}

// ListForAccount returns the proposals an account sent and received.
func (s *Service) ListForAccount(ctx context.Context, accountID int64) (sent, received []model.Proposal, err error) {
	sent, err = store.ListSentProposals(ctx, s.DB, accountID)
	if err != nil {
		return nil, nil, err
	}
	received, err = store.ListReceivedProposals(ctx, s.DB, accountID)
	if err != nil {
		return nil, nil, err
	}
	return sent, received, nil
}
