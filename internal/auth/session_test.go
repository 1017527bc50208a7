package auth

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/xmemory/xmemory/internal/errors"
	"github.com/xmemory/xmemory/internal/models"
)

// fakeSessions is an in-memory SessionStore.
type fakeSessions struct {
	sessions map[string]*models.Session
}

func (f *fakeSessions) GetSession(token string) (*models.Session, error) {
	s, ok := f.sessions[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func testVerifier() *Verifier {
	return NewVerifier(&fakeSessions{sessions: map[string]*models.Session{
		"good-token": {
			Token:     "good-token",
			UserID:    "user-1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		"expired-token": {
			Token:     "expired-token",
			UserID:    "user-1",
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
		},
	}})
}

func TestVerifier_Authenticate(t *testing.T) {
	v := testVerifier()

	tests := []struct {
		name     string
		header   string
		wantUser models.UUID
		wantCode apperrors.ErrorCode
	}{
		{"valid token", "Bearer good-token", "user-1", ""},
		{"no header", "", "", apperrors.ErrUnauthorized},
		{"wrong scheme", "Basic good-token", "", apperrors.ErrUnauthorized},
		{"empty token", "Bearer ", "", apperrors.ErrUnauthorized},
		{"unknown token", "Bearer nope", "", apperrors.ErrUnauthorized},
		{"expired token", "Bearer expired-token", "", apperrors.ErrSessionExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/cloud/memories", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			userID, err := v.Authenticate(r)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Authenticate failed: %v", err)
				}
				if userID != tt.wantUser {
					t.Errorf("user = %s, want %s", userID, tt.wantUser)
				}
				return
			}
			if !apperrors.Is(err, tt.wantCode) {
				t.Errorf("err = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

// TestVerifier_Middleware verifies the 401 short-circuit and context plumbing.
func TestVerifier_Middleware(t *testing.T) {
	v := testVerifier()

	var seenUser models.UUID
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated request: status = %d", w.Code)
	}
	if seenUser != "user-1" {
		t.Errorf("context user = %s, want user-1", seenUser)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated request: status = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("401 content type = %q", ct)
	}
}

func TestUserID_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := UserID(r.Context()); ok {
		t.Error("UserID reported a user on a bare context")
	}
}
