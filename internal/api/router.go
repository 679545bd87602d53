package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/barter/internal/exchange"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, svc *exchange.Service, jwtSecret string, pageSize int) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	adsHandler := &AdsHandler{DB: db, Exchange: svc, PageSize: pageSize}
	proposalsHandler := &ProposalsHandler{Exchange: svc}
	notificationsHandler := &NotificationsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	optionalMW := OptionalAuthMiddleware(jwtSecret, db)

	// Public: registration, login and browsing.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("GET /api/ads", optionalMW(http.HandlerFunc(adsHandler.List)))
	mux.Handle("GET /api/ads/{id}", optionalMW(http.HandlerFunc(adsHandler.Get)))
	mux.Handle("GET /api/ads/{id}/image", optionalMW(http.HandlerFunc(adsHandler.GetImage)))

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Listings: owner-only writes are enforced by the store.
	mux.Handle("POST /api/ads", authMW(http.HandlerFunc(adsHandler.Create)))
	mux.Handle("PUT /api/ads/{id}", authMW(http.HandlerFunc(adsHandler.Update)))
	mux.Handle("DELETE /api/ads/{id}", authMW(http.HandlerFunc(adsHandler.Delete)))
	mux.Handle("GET /api/ads/{id}/proposals", authMW(http.HandlerFunc(adsHandler.Proposals)))
	mux.Handle("PUT /api/ads/{id}/image", authMW(http.HandlerFunc(adsHandler.UploadImage)))

	// Proposals.
	mux.Handle("GET /api/proposals", authMW(http.HandlerFunc(proposalsHandler.List)))
	mux.Handle("POST /api/proposals", authMW(http.HandlerFunc(proposalsHandler.Create)))
	mux.Handle("GET /api/proposals/{id}", authMW(http.HandlerFunc(proposalsHandler.Get)))
	mux.Handle("PUT /api/proposals/{id}", authMW(http.HandlerFunc(proposalsHandler.Update)))
	mux.Handle("POST /api/proposals/{id}/accept", authMW(http.HandlerFunc(proposalsHandler.Accept)))
	mux.Handle("POST /api/proposals/{id}/reject", authMW(http.HandlerFunc(proposalsHandler.Reject)))

	// Notifications.
	mux.Handle("GET /api/notifications", authMW(http.HandlerFunc(notificationsHandler.List)))
	mux.Handle("POST /api/notifications/read", authMW(http.HandlerFunc(notificationsHandler.MarkRead)))

	return mux
}
