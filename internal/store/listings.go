package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/barter/internal/db"
	"github.com/erazemk/barter/internal/model"
)

const listingColumns = `l.id, l.owner_id, l.title, l.description, l.image_url, l.image_mime,
	l.category, l.condition, l.active, l.created_at, l.updated_at, a.username,
	(SELECT COUNT(*) FROM proposals p WHERE p.requested_listing_id = l.id)`

const listingFrom = ` FROM listings l JOIN accounts a ON a.id = l.owner_id`

func scanListing(s scanner) (*model.Listing, error) {
	l := &model.Listing{}
	var imageURL, imageMime sql.NullString
	if err := s.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Description, &imageURL, &imageMime,
		&l.Category, &l.Condition, &l.Active, &l.CreatedAt, &l.UpdatedAt, &l.OwnerName,
		&l.ProposalCount); err != nil {
		return nil, err
	}
	l.ImageURL = imageURL.String
	l.ImageMime = imageMime.String
	return l, nil
}

func queryListings(ctx context.Context, q Querier, where string, args ...any) ([]model.Listing, error) {
	return selectListings(ctx, q, where+` ORDER BY l.created_at DESC, l.id DESC`, args...)
}

// selectListings runs a listing query; clause follows WHERE.
func selectListings(ctx context.Context, q Querier, clause string, args ...any) ([]model.Listing, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+listingColumns+listingFrom+` WHERE `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// CreateListing validates the input and creates an active listing owned by ownerID.
func CreateListing(ctx context.Context, q Querier, ownerID int64, in model.ListingInput) (*model.Listing, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO listings (owner_id, title, description, image_url, category, condition)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ownerID, in.Title, in.Description, nullString(in.ImageURL), in.Category, in.Condition,
	)
	if err != nil {
		return nil, fmt.Errorf("creating listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting listing id: %w", err)
	}

	return GetListing(ctx, q, id)
}

// GetListing returns a listing by ID regardless of its active flag.
func GetListing(ctx context.Context, q Querier, id int64) (*model.Listing, error) {
	l, err := scanListing(q.QueryRowContext(ctx,
		`SELECT `+listingColumns+listingFrom+` WHERE l.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	return l, nil
}

// GetActiveListing returns a listing by ID only if it is active.
func GetActiveListing(ctx context.Context, q Querier, id int64) (*model.Listing, error) {
	l, err := GetListing(ctx, q, id)
	if err != nil || l == nil || !l.Active {
		return nil, err
	}
	return l, nil
}

// ownedListing loads a listing and checks that actorID owns it.
func ownedListing(ctx context.Context, q Querier, id, actorID int64) (*model.Listing, error) {
	l, err := GetListing(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: listing %d", model.ErrNotFound, id)
	}
	if l.OwnerID != actorID {
		return nil, fmt.Errorf("%w: listing %d belongs to another account", model.ErrAuthorization, id)
	}
	return l, nil
}

// UpdateListing applies owner edits after re-validating them.
func UpdateListing(ctx context.Context, q Querier, id, actorID int64, in model.ListingInput) (*model.Listing, error) {
	if _, err := ownedListing(ctx, q, id, actorID); err != nil {
		return nil, err
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	_, err := q.ExecContext(ctx,
		`UPDATE listings SET title = ?, description = ?, image_url = ?, category = ?, condition = ?,
		        updated_at = `+nowSQL+`
		 WHERE id = ?`,
		in.Title, in.Description, nullString(in.ImageURL), in.Category, in.Condition, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating listing: %w", err)
	}

	return GetListing(ctx, q, id)
}

// DeactivateListing sets active = false. It is the only writer of the active
// flag. Returns false if the listing was already inactive.
func DeactivateListing(ctx context.Context, q Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE listings SET active = 0, updated_at = `+nowSQL+` WHERE id = ? AND active = 1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("deactivating listing: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivating listing: %w", err)
	}
	return n > 0, nil
}

// SoftDeleteListing deactivates a listing owned by actorID. Deleting an
// already-inactive listing succeeds and returns false.
func SoftDeleteListing(ctx context.Context, q Querier, id, actorID int64) (bool, error) {
	l, err := ownedListing(ctx, q, id, actorID)
	if err != nil {
		return false, err
	}
	if !l.Active {
		return false, nil
	}
	return DeactivateListing(ctx, q, id)
}

// SearchListings returns a page of active listings, newest first, and the
// total number of matches. Text matches a case-insensitive substring of the
// title or description. A Limit of zero or less returns every match.
func SearchListings(ctx context.Context, q Querier, f model.ListingFilter) (*model.ListingPage, error) {
	where := `l.active = 1`
	var args []any
	if f.Category != "" {
		where += ` AND l.category = ?`
		args = append(args, f.Category)
	}
	if f.Condition != "" {
		where += ` AND l.condition = ?`
		args = append(args, f.Condition)
	}
	if text := strings.ToLower(strings.TrimSpace(f.Text)); text != "" {
		where += ` AND (instr(` + db.FoldFunc + `(l.title), ?) > 0 OR instr(` + db.FoldFunc + `(l.description), ?) > 0)`
		args = append(args, text, text)
	}

	page := &model.ListingPage{Listings: []model.Listing{}}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings l WHERE `+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting listings: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	listings, err := selectListings(ctx, q,
		where+` ORDER BY l.created_at DESC, l.id DESC LIMIT ? OFFSET ?`,
		append(args, limit, max(f.Offset, 0))...,
	)
	if err != nil {
		return nil, err
	}
	page.Listings = append(page.Listings, listings...)
	return page, nil
}

// EligibleOffers returns the active listings owned by ownerID, the choices
// for the offered side of a new proposal.
func EligibleOffers(ctx context.Context, q Querier, ownerID int64) ([]model.Listing, error) {
	return queryListings(ctx, q, `l.owner_id = ? AND l.active = 1`, ownerID)
}

// ListListingsByOwner returns all of an owner's listings, inactive included.
func ListListingsByOwner(ctx context.Context, q Querier, ownerID int64) ([]model.Listing, error) {
	return queryListings(ctx, q, `l.owner_id = ?`, ownerID)
}

// ProposalCount returns the number of proposals requesting the listing, of
// any status.
func ProposalCount(ctx context.Context, q Querier, listingID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM proposals WHERE requested_listing_id = ?`, listingID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting proposals: %w", err)
	}
	return n, nil
}

// SetListingImage stores an uploaded photo for a listing owned by actorID.
func SetListingImage(ctx context.Context, q Querier, id, actorID int64, image []byte, mime string) error {
	if _, err := ownedListing(ctx, q, id, actorID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx,
		`UPDATE listings SET image = ?, image_mime = ?, updated_at = `+nowSQL+` WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting listing image: %w", err)
	}
	return nil
}

// GetListingImage returns a listing's uploaded photo and MIME type.
func GetListingImage(ctx context.Context, q Querier, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT image, image_mime FROM listings WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting listing image: %w", err)
	}
	return image, mime.String, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
