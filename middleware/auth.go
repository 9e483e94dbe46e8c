package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"cityreport/auth"
	"cityreport/models"
)

type contextKey string

const SessionContextKey contextKey = "session"

// SessionAuthenticator resolves a token digest to the live session.
// Implemented by session.Manager.
type SessionAuthenticator interface {
	AuthenticateDigest(digest string) *models.Session
}

// Auth validates the bearer JWT, then checks that the session it names is
// still live, and injects that session into the request context.
func Auth(issuer *auth.TokenIssuer, sessions SessionAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			token, err := auth.ExtractToken(authHeader)
			if err != nil {
				writeError(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := issuer.Validate(token)
			if err != nil {
				writeError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			// The JWT may outlive the session: sign-out, expiry or a newer sign-in
			sess := sessions.AuthenticateDigest(claims.SessionID)
			if sess == nil || sess.User.ID != claims.UserID {
				writeError(w, "Session expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext retrieves the session injected by Auth
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	sess, ok := ctx.Value(SessionContextKey).(*models.Session)
	return sess, ok
}

// RequireRole rejects sessions whose user has none of allowedRoles
func RequireRole(allowedRoles ...models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				writeError(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			for _, role := range allowedRoles {
				if sess.User.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, "Insufficient permissions", http.StatusForbidden)
		})
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
