package web

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/barter/internal/exchange"
	webembed "github.com/erazemk/barter/web"
)

// NewRouter creates the web page router with all page routes registered.
func NewRouter(db *sql.DB, svc *exchange.Service, jwtSecret string, pageSize int) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:        db,
		Exchange:  svc,
		Templates: templates,
		JWTSecret: jwtSecret,
		PageSize:  pageSize,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(jwtSecret, db)
	optionalAuth := OptionalCookieAuthMiddleware(jwtSecret, db)

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.Handle("GET /{$}", http.RedirectHandler("/ads", http.StatusSeeOther))
	mux.Handle("GET /login", optionalAuth(http.HandlerFunc(s.LoginPage)))
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.Handle("GET /register", optionalAuth(http.HandlerFunc(s.RegisterPage)))
	mux.HandleFunc("POST /register", s.RegisterSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	mux.Handle("GET /ads", optionalAuth(http.HandlerFunc(s.AdsPage)))
	mux.Handle("GET /ads/{id}", optionalAuth(http.HandlerFunc(s.AdDetailPage)))
	mux.Handle("GET /ads/{id}/image", optionalAuth(http.HandlerFunc(s.AdImageGet)))

	// Authenticated routes.
	mux.Handle("GET /ads/new", cookieAuth(http.HandlerFunc(s.AdNewPage)))
	mux.Handle("POST /ads/new", cookieAuth(http.HandlerFunc(s.AdCreateSubmit)))
	mux.Handle("GET /ads/{id}/edit", cookieAuth(http.HandlerFunc(s.AdEditPage)))
	mux.Handle("POST /ads/{id}/edit", cookieAuth(http.HandlerFunc(s.AdUpdateSubmit)))
	mux.Handle("GET /ads/{id}/delete", cookieAuth(http.HandlerFunc(s.AdDeletePage)))
	mux.Handle("POST /ads/{id}/delete", cookieAuth(http.HandlerFunc(s.AdDeleteSubmit)))
	mux.Handle("POST /ads/{id}/image", cookieAuth(http.HandlerFunc(s.AdImageSubmit)))
	mux.Handle("GET /ads/{id}/propose", cookieAuth(http.HandlerFunc(s.ProposePage)))
	mux.Handle("POST /ads/{id}/propose", cookieAuth(http.HandlerFunc(s.ProposeSubmit)))
	mux.Handle("GET /my/ads", cookieAuth(http.HandlerFunc(s.MyAdsPage)))

	mux.Handle("GET /proposals", cookieAuth(http.HandlerFunc(s.ProposalsPage)))
	mux.Handle("GET /proposals/{id}", cookieAuth(http.HandlerFunc(s.ProposalDetailPage)))
	mux.Handle("POST /proposals/{id}", cookieAuth(http.HandlerFunc(s.ProposalUpdateSubmit)))

	mux.Handle("POST /notifications/read", cookieAuth(http.HandlerFunc(s.MarkNotificationsRead)))

	return mux, nil
}
