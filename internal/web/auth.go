package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/barter/internal/auth"
	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/store"
)

type loginData struct {
	PageData
	Username string
	Next     string
}

// safeNext accepts only local redirect targets.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/ads"
	}
	return next
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "login.html", &loginData{
		PageData: s.page(w, r, "Log in"),
		Next:     safeNext(r.URL.Query().Get("next")),
	})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	next := safeNext(r.FormValue("next"))

	fail := func(status int, msg string) {
		data := &loginData{PageData: s.page(w, r, "Log in"), Username: username, Next: next}
		data.Error = msg
		s.Templates.RenderStatus(w, status, "login.html", data)
	}

	if username == "" || password == "" {
		fail(http.StatusBadRequest, "Enter your username and password.")
		return
	}

	account, err := store.GetAccountByUsername(r.Context(), s.DB, username)
	if err != nil {
		slog.Error("failed to look up account", "error", err)
		fail(http.StatusInternalServerError, "Login failed, try again.")
		return
	}
	if account == nil || !auth.CheckPassword(account.PasswordHash, password) {
		slog.Warn("login failed", "username", username, "remote", r.RemoteAddr)
		fail(http.StatusUnauthorized, "Wrong username or password.")
		return
	}

	token, err := auth.GenerateToken(s.JWTSecret, account.ID, account.Username)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		fail(http.StatusInternalServerError, "Login failed, try again.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(auth.TokenExpiry / time.Second),
	})

	slog.Info("account logged in", "account", account.Username)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// RegisterPage handles GET /register.
func (s *Server) RegisterPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "register.html", &loginData{PageData: s.page(w, r, "Register")})
}

// RegisterSubmit handles POST /register.
func (s *Server) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	fail := func(status int, msg string) {
		data := &loginData{PageData: s.page(w, r, "Register"), Username: username}
		data.Error = msg
		s.Templates.RenderStatus(w, status, "register.html", data)
	}

	if password != r.FormValue("password_confirm") {
		fail(http.StatusBadRequest, "The passwords do not match.")
		return
	}
	if err := model.ValidateUsername(username); err != nil {
		fail(http.StatusBadRequest, userMessage(err))
		return
	}
	if err := model.ValidatePassword(password); err != nil {
		fail(http.StatusBadRequest, userMessage(err))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		fail(http.StatusInternalServerError, "Registration failed, try again.")
		return
	}
	if _, err := store.CreateAccount(r.Context(), s.DB, username, hash); err != nil {
		if model.IsDomain(err) {
			fail(http.StatusBadRequest, userMessage(err))
			return
		}
		slog.Error("failed to create account", "error", err)
		fail(http.StatusInternalServerError, "Registration failed, try again.")
		return
	}

	slog.Info("account registered", "account", username)
	redirectWith(w, r, "/login", flashSuccess, "Registration complete. Log in to continue.")
}

// Logout handles POST /logout. The token is revoked so a copied cookie stops
// working too.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, _ := cookieClaims(w, r, s.JWTSecret, s.DB); claims != nil {
		expires := time.Now().Add(auth.TokenExpiry)
		if claims.ExpiresAt != nil {
			expires = claims.ExpiresAt.Time
		}
		if err := store.RevokeToken(r.Context(), s.DB, claims.ID, expires); err != nil {
			slog.Error("failed to revoke token", "error", err)
		}
		slog.Info("account logged out", "account", claims.Username)
	}
	clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
