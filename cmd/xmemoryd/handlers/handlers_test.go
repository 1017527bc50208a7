// Package handlers test fixtures: an in-memory database behind the real
// repositories and service, with requests pre-authenticated via context.
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xmemory/xmemory/internal/auth"
	"github.com/xmemory/xmemory/internal/cloud"
	"github.com/xmemory/xmemory/internal/db"
	"github.com/xmemory/xmemory/internal/models"
)

type testEnv struct {
	repo  *db.Repository
	admin *db.AdminRepository
	svc   *cloud.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.NewMigrator(database.DB).Up(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	repo := db.NewRepository(database.DB)
	t.Cleanup(func() { repo.Close() })
	admin := db.NewAdminRepository(database.DB)

	return &testEnv{
		repo:  repo,
		admin: admin,
		svc:   cloud.NewService(repo, admin, nil, true),
	}
}

func (e *testEnv) seedUser(t *testing.T, email, plan string) models.UUID {
	t.Helper()
	user := &models.User{Email: email, Plan: plan}
	if err := e.admin.CreateUser(user); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user.ID
}

// sync uploads an export through the service, bypassing the HTTP layer.
func (e *testEnv) sync(t *testing.T, userID models.UUID, platform, content string) *cloud.SyncResult {
	t.Helper()
	result, err := e.svc.Sync(cloud.SyncRequest{UserID: userID, Platform: platform, Content: content})
	if err != nil {
		t.Fatalf("Failed to seed sync: %v", err)
	}
	return result
}

// authedRequest builds a request carrying the user id the way the auth
// middleware would.
func authedRequest(t *testing.T, userID models.UUID, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Response is not JSON: %v\n%s", err, w.Body.String())
	}
	return payload
}
