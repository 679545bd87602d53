package web

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/erazemk/barter/internal/auth"
	"github.com/erazemk/barter/internal/store"
)

type webContextKey string

const webClaimsKey webContextKey = "webclaims"
const webTokenKey webContextKey = "webtoken"

const tokenCookie = "token"

// cookieClaims validates the token cookie and checks revocation. It returns
// nil claims for anonymous requests and for bad tokens, clearing the latter.
func cookieClaims(w http.ResponseWriter, r *http.Request, secret string, db *sql.DB) (*auth.Claims, string) {
	cookie, err := r.Cookie(tokenCookie)
	if err != nil || cookie.Value == "" {
		return nil, ""
	}

	claims, err := auth.ValidateToken(secret, cookie.Value)
	if err != nil {
		clearAuthCookie(w)
		return nil, ""
	}

	revoked, err := store.IsTokenRevoked(r.Context(), db, claims.ID)
	if err != nil {
		slog.Error("failed to check token revocation", "error", err)
		clearAuthCookie(w)
		return nil, ""
	}
	if revoked {
		clearAuthCookie(w)
		return nil, ""
	}
	return claims, cookie.Value
}

func withClaims(r *http.Request, claims *auth.Claims, token string) *http.Request {
	ctx := context.WithValue(r.Context(), webClaimsKey, claims)
	ctx = context.WithValue(ctx, webTokenKey, token)
	return r.WithContext(ctx)
}

// CookieAuthMiddleware requires a valid token cookie and adds the claims to
// the context. Anonymous visitors are sent to the login page and returned
// to where they were going afterwards.
func CookieAuthMiddleware(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, token := cookieClaims(w, r, secret, db)
			if claims == nil {
				target := r.URL.Path
				if r.Method != http.MethodGet {
					target = "/ads"
				}
				http.Redirect(w, r, "/login?next="+url.QueryEscape(target), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, withClaims(r, claims, token))
		})
	}
}

// OptionalCookieAuthMiddleware adds claims for logged-in visitors and lets
// anonymous ones through.
func OptionalCookieAuthMiddleware(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, token := cookieClaims(w, r, secret, db); claims != nil {
				r = withClaims(r, claims, token)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clearAuthCookie clears the authentication cookie with consistent attributes.
func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// GetWebClaims retrieves the JWT claims from web context.
func GetWebClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(webClaimsKey).(*auth.Claims)
	return claims
}

// GetWebToken retrieves the raw JWT token from web context.
func GetWebToken(ctx context.Context) string {
	token, _ := ctx.Value(webTokenKey).(string)
	return token
}
