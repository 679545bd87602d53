package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/store"
)

// NotificationsHandler handles the caller's notifications.
type NotificationsHandler struct {
	DB *sql.DB
}

type notificationsResponse struct {
	Unread        int                  `json:"unread"`
	Notifications []model.Notification `json:"notifications"`
}

// List handles GET /api/notifications. By default it returns the newest
// unread notifications; ?all=1 includes read ones.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	limit := model.UnreadDisplayLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	var (
		notes []model.Notification
		err   error
	)
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		notes, err = store.ListNotifications(r.Context(), h.DB, claims.AccountID, limit)
	} else {
		notes, err = store.ListUnread(r.Context(), h.DB, claims.AccountID, limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []model.Notification{}
	}

	unread, err := store.CountUnread(r.Context(), h.DB, claims.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, notificationsResponse{Unread: unread, Notifications: notes})
}

// MarkRead handles POST /api/notifications/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	n, err := store.MarkAllRead(r.Context(), h.DB, claims.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"marked": n})
}
