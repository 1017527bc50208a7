// Package auth verifies bearer session tokens. Tokens are minted by the
// hosted identity provider; this service only resolves them against the
// sessions table and checks expiry.
package auth

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/xmemory/xmemory/internal/errors"
	"github.com/xmemory/xmemory/internal/models"
)

// SessionStore resolves opaque bearer tokens.
type SessionStore interface {
	GetSession(token string) (*models.Session, error)
}

// Verifier authenticates HTTP requests from their Authorization header.
type Verifier struct {
	sessions SessionStore
}

// NewVerifier creates a new Verifier.
func NewVerifier(sessions SessionStore) *Verifier {
	return &Verifier{sessions: sessions}
}

type contextKey string

const userIDKey contextKey = "xmemory.user_id"

// Authenticate resolves the request's bearer token to a user id.
func (v *Verifier) Authenticate(r *http.Request) (models.UUID, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperrors.New(apperrors.ErrUnauthorized, "Authentication required")
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", apperrors.New(apperrors.ErrUnauthorized, "Authentication required")
	}

	session, err := v.sessions.GetSession(token)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apperrors.New(apperrors.ErrUnauthorized, "Authentication required")
		}
		return "", apperrors.Wrap(apperrors.ErrDatabase, "failed to resolve session", err)
	}

	if session.ExpiresAt > 0 && session.ExpiresAt < time.Now().Unix() {
		return "", apperrors.New(apperrors.ErrSessionExpired, "Session expired, please sign in again")
	}

	return session.UserID, nil
}

// Middleware wraps a handler with session authentication. Unauthenticated
// requests get a uniform 401; the user id travels in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := v.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Authentication required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID models.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID extracts the authenticated user id from a request context.
func UserID(ctx context.Context) (models.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(models.UUID)
	return userID, ok
}
