package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/barter/internal/exchange"
	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/store"
)

type proposeData struct {
	PageData
	Requested *model.Listing
	Offers    []model.Listing
	Offered   int64
	Comment   string
}

// ProposePage handles GET /ads/{id}/propose. Visitors without an active
// listing are sent to create one first.
func (s *Server) ProposePage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	requested, offers, err := s.Exchange.OfferChoices(r.Context(), claims.AccountID, id)
	if errors.Is(err, exchange.ErrNoEligibleOffers) {
		redirectWith(w, r, "/ads/new", flashError, userMessage(err))
		return
	}
	if err != nil {
		s.fail(w, r, err, "/ads")
		return
	}

	s.Templates.Render(w, "propose.html", &proposeData{
		PageData:  s.page(w, r, "Propose an exchange"),
		Requested: requested,
		Offers:    offers,
	})
}

// ProposeSubmit handles POST /ads/{id}/propose.
func (s *Server) ProposeSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	requested, offers, err := s.Exchange.OfferChoices(r.Context(), claims.AccountID, id)
	if errors.Is(err, exchange.ErrNoEligibleOffers) {
		redirectWith(w, r, "/ads/new", flashError, userMessage(err))
		return
	}
	if err != nil {
		s.fail(w, r, err, "/ads")
		return
	}

	offered, _ := strconv.ParseInt(r.FormValue("offered"), 10, 64)
	comment := r.FormValue("comment")

	p, err := s.Exchange.Create(r.Context(), claims.AccountID, id, offered, comment)
	if err != nil {
		if model.Kind(err) != model.CodeValidation {
			s.fail(w, r, err, fmt.Sprintf("/ads/%d", id))
			return
		}
		data := &proposeData{
			PageData:  s.page(w, r, "Propose an exchange"),
			Requested: requested,
			Offers:    offers,
			Offered:   offered,
			Comment:   comment,
		}
		data.Error = userMessage(err)
		s.Templates.RenderStatus(w, http.StatusBadRequest, "propose.html", data)
		return
	}

	redirectWith(w, r, fmt.Sprintf("/proposals/%d", p.ID), flashSuccess, "Exchange proposal sent.")
}

// ProposalsPage handles GET /proposals.
func (s *Server) ProposalsPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	sent, received, err := s.Exchange.ListForAccount(r.Context(), claims.AccountID)
	if err != nil {
		s.fail(w, r, err, "/ads")
		return
	}

	s.Templates.Render(w, "proposals.html", &struct {
		PageData
		Sent     []model.Proposal
		Received []model.Proposal
	}{
		PageData: s.page(w, r, "Proposals"),
		Sent:     sent,
		Received: received,
	})
}

// ProposalDetailPage handles GET /proposals/{id}.
func (s *Server) ProposalDetailPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	p, err := s.Exchange.Get(r.Context(), id, claims.AccountID)
	if err != nil {
		s.fail(w, r, err, "/proposals")
		return
	}

	s.Templates.Render(w, "proposal_detail.html", &struct {
		PageData
		Proposal  *model.Proposal
		CanDecide bool
	}{
		PageData:  s.page(w, r, "Proposal"),
		Proposal:  p,
		CanDecide: p.ReceiverID == claims.AccountID && p.Status == model.StatusPending,
	})
}

// ProposalUpdateSubmit handles POST /proposals/{id} with a status field.
func (s *Server) ProposalUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/proposals/%d", id)

	p, err := s.Exchange.Transition(r.Context(), id, claims.AccountID, r.FormValue("status"))
	if err != nil {
		if errors.Is(err, model.ErrAuthorization) {
			back = "/proposals"
		}
		s.fail(w, r, err, back)
		return
	}

	msg := "Proposal rejected."
	if p.Status == model.StatusAccepted {
		msg = "Proposal accepted. Both listings are now closed."
	}
	redirectWith(w, r, "/proposals", flashSuccess, msg)
}

// MarkNotificationsRead handles POST /notifications/read.
func (s *Server) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	n, err := store.MarkAllRead(r.Context(), s.DB, claims.AccountID)
	if err != nil {
		s.fail(w, r, err, "/ads")
		return
	}
	if n > 0 {
		slog.Info("notifications read", "account", claims.Username, "count", n)
	}
	redirectWith(w, r, safeNext(r.FormValue("next")), flashSuccess, "Notifications marked as read.")
}
