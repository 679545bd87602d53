package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/barter/internal/exchange"
	"github.com/erazemk/barter/internal/imaging"
	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/store"
)

// AdsHandler handles listing endpoints.
type AdsHandler struct {
	DB       *sql.DB
	Exchange *exchange.Service
	PageSize int
}

type adsPage struct {
	Count    int             `json:"count"`
	Page     int             `json:"page"`
	Pages    int             `json:"pages"`
	Results  []model.Listing `json:"results"`
	Next     *int            `json:"next"`
	Previous *int            `json:"previous"`
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id %q", model.ErrValidation, r.PathValue("id"))
	}
	return id, nil
}

// pageNumber parses the page query parameter, defaulting to 1.
func pageNumber(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("%w: invalid page %q", model.ErrValidation, raw)
	}
	return page, nil
}

// List handles GET /api/ads. Only active listings are returned.
func (h *AdsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := pageNumber(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := store.SearchListings(r.Context(), h.DB, model.ListingFilter{
		Text:      q.Get("q"),
		Category:  q.Get("category"),
		Condition: q.Get("condition"),
		Limit:     h.PageSize,
		Offset:    (page - 1) * h.PageSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	pages := max((result.Total+h.PageSize-1)/h.PageSize, 1)
	if page > pages {
		writeError(w, r, fmt.Errorf("%w: page %d out of range", model.ErrNotFound, page))
		return
	}

	resp := adsPage{Count: result.Total, Page: page, Pages: pages, Results: result.Listings}
	if page < pages {
		next := page + 1
		resp.Next = &next
	}
	if page > 1 {
		prev := page - 1
		resp.Previous = &prev
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Create handles POST /api/ads.
func (h *AdsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var in model.ListingInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	listing, err := store.CreateListing(r.Context(), h.DB, claims.AccountID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("listing created", "listing", listing.ID, "owner", claims.Username)
	jsonResponse(w, http.StatusCreated, listing)
}

// visibleListing loads a listing that is active or owned by the caller.
func (h *AdsHandler) visibleListing(r *http.Request, id int64) (*model.Listing, error) {
	listing, err := store.GetListing(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	claims := GetClaims(r.Context())
	if listing == nil || (!listing.Active && (claims == nil || claims.AccountID != listing.OwnerID)) {
		return nil, fmt.Errorf("%w: listing %d", model.ErrNotFound, id)
	}
	return listing, nil
}

// Get handles GET /api/ads/{id}.
func (h *AdsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	listing, err := h.visibleListing(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, listing)
}

// Update handles PUT /api/ads/{id}.
func (h *AdsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in model.ListingInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	listing, err := store.UpdateListing(r.Context(), h.DB, id, claims.AccountID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, listing)
}

// Delete handles DELETE /api/ads/{id}. The listing is deactivated, never
// removed, and its pending proposals are withdrawn.
func (h *AdsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.Exchange.DeleteListing(r.Context(), id, claims.AccountID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Proposals handles GET /api/ads/{id}/proposals: the pending proposals
// requesting the caller's listing.
func (h *AdsHandler) Proposals(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	listing, err := h.visibleListing(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if listing.OwnerID != claims.AccountID {
		writeError(w, r, fmt.Errorf("%w: not your listing", model.ErrAuthorization))
		return
	}

	proposals, err := store.ListPendingIncoming(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if proposals == nil {
		proposals = []model.Proposal{}
	}
	jsonResponse(w, http.StatusOK, proposals)
}

// UploadImage handles PUT /api/ads/{id}/image with a multipart "image" field.
func (h *AdsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	file, _, err := r.FormFile("image")
	if err != nil {
		badRequest(w, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.SetListingImage(r.Context(), h.DB, id, claims.AccountID, photo.Data, photo.MIME); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("listing photo uploaded", "listing", id, "width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/ads/{id}/image.
func (h *AdsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.visibleListing(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	serveImage(w, r, h.DB, id)
}

// serveImage writes a listing's stored photo. Callers check visibility first.
func serveImage(w http.ResponseWriter, r *http.Request, db *sql.DB, id int64) {
	data, mime, err := store.GetListingImage(r.Context(), db, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		writeError(w, r, fmt.Errorf("%w: no image", model.ErrNotFound))
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
