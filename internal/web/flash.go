package web

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/erazemk/barter/internal/exchange"
	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/store"
)

const flashCookie = "flash"

// Flash kinds.
const (
	flashSuccess = "success"
	flashError   = "error"
)

// setFlash stores a one-shot message shown on the next rendered page.
func setFlash(w http.ResponseWriter, kind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(kind + "|" + message)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns and clears the pending flash message.
func popFlash(w http.ResponseWriter, r *http.Request) (kind, message string) {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return "", ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return "", ""
	}
	kind, message, ok := strings.Cut(string(raw), "|")
	if !ok {
		return "", ""
	}
	return kind, message
}

// redirectWith sets a flash message and redirects.
func redirectWith(w http.ResponseWriter, r *http.Request, url, kind, message string) {
	setFlash(w, kind, message)
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// userMessage turns a domain error into page text.
func userMessage(err error) string {
	switch {
	case errors.Is(err, exchange.ErrNoEligibleOffers):
		return "Create a listing first, then you can offer it in exchange."
	case errors.Is(err, model.ErrOwnershipConflict):
		return "You cannot propose an exchange for your own listing."
	case errors.Is(err, model.ErrAuthorization):
		return "That is not yours to change."
	case errors.Is(err, model.ErrNotFound):
		return "Not found."
	case errors.Is(err, model.ErrInvalidState), errors.Is(err, model.ErrValidation):
		// The wrapped detail is already phrased for people.
		msg := err.Error()
		if _, detail, ok := strings.Cut(msg, ": "); ok {
			msg = detail
		}
		return capitalize(msg)
	default:
		return "Something went wrong."
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// fail reports err: domain errors become a flash message and a redirect to
// back, anything else is logged and answered with a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	if !model.IsDomain(err) {
		slog.Error("page request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if errors.Is(err, model.ErrNotFound) && r.Method == http.MethodGet {
		http.NotFound(w, r)
		return
	}
	redirectWith(w, r, back, flashError, userMessage(err))
}

// page builds the base page data: the visitor, a pending flash message and,
// when logged in, the newest unread notifications.
func (s *Server) page(w http.ResponseWriter, r *http.Request, title string) PageData {
	pd := PageData{Title: title, User: GetWebClaims(r.Context())}
	pd.FlashKind, pd.Flash = popFlash(w, r)

	if pd.User != nil {
		unread, err := store.ListUnread(r.Context(), s.DB, pd.User.AccountID, model.UnreadDisplayLimit)
		if err != nil {
			slog.Error("failed to list unread notifications", "error", err)
		}
		count, err := store.CountUnread(r.Context(), s.DB, pd.User.AccountID)
		if err != nil {
			slog.Error("failed to count unread notifications", "error", err)
		}
		pd.Unread, pd.UnreadCount = unread, count
	}
	return pd
}
