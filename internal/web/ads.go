package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erazemk/barter/internal/auth"
	"github.com/erazemk/barter/internal/imaging"
	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/store"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

type adsData struct {
	PageData
	Listings  []model.Listing
	Total     int
	Query     string
	Category  string
	Condition string
	Page      int
	Pages     int
	PrevURL   string
	NextURL   string
}

// pageURL builds a link to another page of the same search.
func pageURL(q url.Values, page int) string {
	v := url.Values{}
	for _, key := range []string{"q", "category", "condition"} {
		if s := q.Get(key); s != "" {
			v.Set(key, s)
		}
	}
	v.Set("page", strconv.Itoa(page))
	return "/ads?" + v.Encode()
}

// AdsPage handles GET /ads: browse and search active listings. Out-of-range
// pages show the last page.
func (s *Server) AdsPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	filter := model.ListingFilter{
		Text:      q.Get("q"),
		Category:  q.Get("category"),
		Condition: q.Get("condition"),
		Limit:     -1,
	}
	all, err := store.SearchListings(r.Context(), s.DB, filter)
	if err != nil {
		s.fail(w, r, err, "/ads")
		return
	}
	pages := max((all.Total+s.PageSize-1)/s.PageSize, 1)
	page = min(page, pages)

	start := (page - 1) * s.PageSize
	end := min(start+s.PageSize, all.Total)

	data := &adsData{
		PageData:  s.page(w, r, "Listings"),
		Listings:  all.Listings[start:end],
		Total:     all.Total,
		Query:     filter.Text,
		Category:  filter.Category,
		Condition: filter.Condition,
		Page:      page,
		Pages:     pages,
	}
	if page > 1 {
		data.PrevURL = pageURL(q, page-1)
	}
	if page < pages {
		data.NextURL = pageURL(q, page+1)
	}
	s.Templates.Render(w, "ads.html", data)
}

type adDetailData struct {
	PageData
	Listing  *model.Listing
	IsOwner  bool
	Incoming []model.Proposal
}

// AdDetailPage handles GET /ads/{id}. Inactive listings are only shown to
// their owner.
func (s *Server) AdDetailPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	listing, err := store.GetListing(r.Context(), s.DB, id)
	if err != nil {
		s.fail(w, r, err, "/ads")
		return
	}
	if !visible(listing, claims) {
		http.NotFound(w, r)
		return
	}
	isOwner := claims != nil && claims.AccountID == listing.OwnerID

	data := &adDetailData{PageData: s.page(w, r, listing.Title), Listing: listing, IsOwner: isOwner}
	if isOwner {
		data.Incoming, err = store.ListPendingIncoming(r.Context(), s.DB, id)
		if err != nil {
			slog.Error("failed to list incoming proposals", "error", err)
		}
	}
	s.Templates.Render(w, "ad_detail.html", data)
}

// visible reports whether a listing exists and is active or owned by the viewer.
func visible(listing *model.Listing, claims *auth.Claims) bool {
	if listing == nil {
		return false
	}
	return listing.Active || (claims != nil && claims.AccountID == listing.OwnerID)
}

type adFormData struct {
	PageData
	Action string
	Input  model.ListingInput
}

func listingInput(r *http.Request) model.ListingInput {
	return model.ListingInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		ImageURL:    r.FormValue("image_url"),
		Category:    r.FormValue("category"),
		Condition:   r.FormValue("condition"),
	}
}

// AdNewPage handles GET /ads/new.
func (s *Server) AdNewPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "ad_form.html", &adFormData{
		PageData: s.page(w, r, "New listing"),
		Action:   "/ads/new",
		Input:    model.ListingInput{Category: model.CategoryOther, Condition: model.ConditionUsed},
	})
}

// AdCreateSubmit handles POST /ads/new.
func (s *Server) AdCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	in := listingInput(r)

	listing, err := store.CreateListing(r.Context(), s.DB, claims.AccountID, in)
	if err != nil {
		if !model.IsDomain(err) {
			s.fail(w, r, err, "/ads/new")
			return
		}
		data := &adFormData{PageData: s.page(w, r, "New listing"), Action: "/ads/new", Input: in}
		data.Error = userMessage(err)
		s.Templates.RenderStatus(w, http.StatusBadRequest, "ad_form.html", data)
		return
	}

	slog.Info("listing created", "listing", listing.ID, "owner", claims.Username)
	redirectWith(w, r, fmt.Sprintf("/ads/%d", listing.ID), flashSuccess, "Your listing is posted.")
}

// ownListing loads a listing for an owner-only page, redirecting with a
// message when the visitor may not edit it.
func (s *Server) ownListing(w http.ResponseWriter, r *http.Request) (*model.Listing, bool) {
	claims := GetWebClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}

	listing, err := store.GetListing(r.Context(), s.DB, id)
	if err != nil {
		s.fail(w, r, err, "/ads")
		return nil, false
	}
	if listing == nil {
		http.NotFound(w, r)
		return nil, false
	}
	if listing.OwnerID != claims.AccountID {
		redirectWith(w, r, "/ads", flashError, "This is not your listing.")
		return nil, false
	}
	return listing, true
}

// AdEditPage handles GET /ads/{id}/edit.
func (s *Server) AdEditPage(w http.ResponseWriter, r *http.Request) {
	listing, ok := s.ownListing(w, r)
	if !ok {
		return
	}
	s.Templates.Render(w, "ad_form.html", &adFormData{
		PageData: s.page(w, r, "Edit listing"),
		Action:   fmt.Sprintf("/ads/%d/edit", listing.ID),
		Input: model.ListingInput{
			Title:       listing.Title,
			Description: listing.Description,
			ImageURL:    listing.ImageURL,
			Category:    listing.Category,
			Condition:   listing.Condition,
		},
	})
}

// AdUpdateSubmit handles POST /ads/{id}/edit.
func (s *Server) AdUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	in := listingInput(r)

	listing, err := store.UpdateListing(r.Context(), s.DB, id, claims.AccountID, in)
	switch {
	case err == nil:
		redirectWith(w, r, fmt.Sprintf("/ads/%d", listing.ID), flashSuccess, "Listing updated.")
	case model.Kind(err) == model.CodeValidation:
		data := &adFormData{PageData: s.page(w, r, "Edit listing"), Action: fmt.Sprintf("/ads/%d/edit", id), Input: in}
		data.Error = userMessage(err)
		s.Templates.RenderStatus(w, http.StatusBadRequest, "ad_form.html", data)
	default:
		s.fail(w, r, err, "/ads")
	}
}

// AdDeletePage handles GET /ads/{id}/delete, the confirmation step.
func (s *Server) AdDeletePage(w http.ResponseWriter, r *http.Request) {
	listing, ok := s.ownListing(w, r)
	if !ok {
		return
	}
	s.Templates.Render(w, "ad_delete.html", &struct {
		PageData
		Listing *model.Listing
	}{
		PageData: s.page(w, r, "Delete listing"),
		Listing:  listing,
	})
}

// AdDeleteSubmit handles POST /ads/{id}/delete.
func (s *Server) AdDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if _, err := s.Exchange.DeleteListing(r.Context(), id, claims.AccountID); err != nil {
		s.fail(w, r, err, "/ads")
		return
	}
	redirectWith(w, r, "/my/ads", flashSuccess, "Listing deleted.")
}

// AdImageSubmit handles POST /ads/{id}/image.
func (s *Server) AdImageSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/ads/%d", id)

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	file, _, err := r.FormFile("image")
	if err != nil {
		redirectWith(w, r, back, flashError, "Choose a JPEG or PNG photo to upload.")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		s.fail(w, r, err, back)
		return
	}
	if err := store.SetListingImage(r.Context(), s.DB, id, claims.AccountID, photo.Data, photo.MIME); err != nil {
		s.fail(w, r, err, back)
		return
	}

	slog.Info("listing photo uploaded", "listing", id, "owner", claims.Username)
	redirectWith(w, r, back, flashSuccess, "Photo uploaded.")
}

// AdImageGet handles GET /ads/{id}/image.
func (s *Server) AdImageGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	listing, err := store.GetListing(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get listing", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !visible(listing, GetWebClaims(r.Context())) {
		http.NotFound(w, r)
		return
	}

	data, mime, err := store.GetListingImage(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get image", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}

// MyAdsPage handles GET /my/ads: the visitor's listings, inactive included.
func (s *Server) MyAdsPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	listings, err := store.ListListingsByOwner(r.Context(), s.DB, claims.AccountID)
	if err != nil {
		s.fail(w, r, err, "/ads")
		return
	}
	s.Templates.Render(w, "my_ads.html", &struct {
		PageData
		Listings []model.Listing
	}{
		PageData: s.page(w, r, "My listings"),
		Listings: listings,
	})
}
