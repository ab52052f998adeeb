package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	profileCookie = "flashdesk_profile"
	tokenCookie   = "flashdesk_token"
	profileMaxAge = 400 * 24 * 60 * 60
)

type ctxKey int

const profileKey ctxKey = iota

// AuthMiddleware returns middleware that validates a token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry the token as "Authorization:
// Bearer <token>", as a ?token= query parameter or in the token cookie.
// A valid query token is stored in the cookie so links and the event
// stream keep working without it.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				if strings.TrimPrefix(auth, "Bearer ") == token {
					next.ServeHTTP(w, r)
					return
				}
			}
			if q := r.URL.Query().Get("token"); q != "" && q == token {
				http.SetCookie(w, &http.Cookie{
					Name:     tokenCookie,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteStrictMode,
				})
				next.ServeHTTP(w, r)
				return
			}
			if c, err := r.Cookie(tokenCookie); err == nil && c.Value == token {
				next.ServeHTTP(w, r)
				return
			}
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		})
	}
}

// ProfileMiddleware identifies the browser profile by a long-lived cookie,
// issuing a new id when the cookie is missing or malformed.
func ProfileMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(profileCookie); err == nil {
			if u, err := uuid.Parse(c.Value); err == nil {
				id = u.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     profileCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   profileMaxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profileKey, id)))
	})
}

// Profile returns the profile id stored by ProfileMiddleware.
func Profile(ctx context.Context) string {
	id, _ := ctx.Value(profileKey).(string)
	return id
}
