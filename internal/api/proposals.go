package api

import (
	"errors"
	"net/http"

	"github.com/erazemk/barter/internal/exchange"
	"github.com/erazemk/barter/internal/model"
)

// ProposalsHandler handles exchange proposal endpoints.
type ProposalsHandler struct {
	Exchange *exchange.Service
}

type createProposalRequest struct {
	Offered   int64  `json:"ad_sender"`
	Requested int64  `json:"ad_receiver"`
	Comment   string `json:"comment"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type proposalLists struct {
	Sent     []model.Proposal `json:"sent"`
	Received []model.Proposal `json:"received"`
}

// List handles GET /api/proposals: proposals the caller sent or received.
func (h *ProposalsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	sent, received, err := h.Exchange.ListForAccount(r.Context(), claims.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sent == nil {
		sent = []model.Proposal{}
	}
	if received == nil {
		received = []model.Proposal{}
	}
	jsonResponse(w, http.StatusOK, proposalLists{Sent: sent, Received: received})
}

// Create handles POST /api/proposals.
func (h *ProposalsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	// Only picks the "create a listing first" answer when the caller has nothing
	// to offer. Create repeats every check inside its own transaction.
	if _, _, err := h.Exchange.OfferChoices(r.Context(), claims.AccountID, req.Requested); errors.Is(err, exchange.ErrNoEligibleOffers) {
		writeError(w, r, err)
		return
	}

	p, err := h.Exchange.Create(r.Context(), claims.AccountID, req.Requested, req.Offered, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, p)
}

// Get handles GET /api/proposals/{id}.
func (h *ProposalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.Exchange.Get(r.Context(), id, claims.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Accept handles POST /api/proposals/{id}/accept.
func (h *ProposalsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusAccepted)
}

// Reject handles POST /api/proposals/{id}/reject.
func (h *ProposalsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusRejected)
}

// Update handles PUT /api/proposals/{id} with a {"status"} body.
func (h *ProposalsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	h.transition(w, r, req.Status)
}

func (h *ProposalsHandler) transition(w http.ResponseWriter, r *http.Request, target string) {
	claims := GetClaims(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.Exchange.Transition(r.Context(), id, claims.AccountID, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}
