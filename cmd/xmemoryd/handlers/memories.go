// Package handlers provides REST API handlers for cloud memory records.
package handlers

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/xmemory/xmemory/internal/auth"
	"github.com/xmemory/xmemory/internal/cloud"
	"github.com/xmemory/xmemory/internal/db"
	apperrors "github.com/xmemory/xmemory/internal/errors"
	"github.com/xmemory/xmemory/internal/memory"
	"github.com/xmemory/xmemory/internal/models"
)

const (
	previewItems    = 3
	previewValueMax = 100
)

// MemoryHandler handles memory listing, detail, rename, delete, and
// download.
type MemoryHandler struct {
	repo *db.Repository
	svc  *cloud.Service
}

// NewMemoryHandler creates a new MemoryHandler.
func NewMemoryHandler(repo *db.Repository, svc *cloud.Service) *MemoryHandler {
	return &MemoryHandler{repo: repo, svc: svc}
}

// requireUser extracts the authenticated user id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (models.UUID, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, apperrors.New(apperrors.ErrUnauthorized, "Authentication required"))
		return "", false
	}
	return userID, true
}

// memorySummary is the list-view projection of a CloudMemory: counts and a
// short preview instead of the full content.
type memorySummary struct {
	ID           models.UUID         `json:"id"`
	Platform     string              `json:"platform"`
	AccountLabel string              `json:"account_label"`
	SyncStatus   string              `json:"sync_status"`
	ItemCount    int                 `json:"item_count"`
	Preview      []models.MemoryItem `json:"preview"`
	LastSyncedAt int64               `json:"last_synced_at"`
	CreatedAt    int64               `json:"created_at"`
}

func summarize(m *models.CloudMemory) memorySummary {
	preview := make([]models.MemoryItem, 0, previewItems)
	for i, item := range m.Content.Items {
		if i >= previewItems {
			break
		}
		if len(item.Value) > previewValueMax {
			item.Value = item.Value[:previewValueMax]
		}
		preview = append(preview, item)
	}
	return memorySummary{
		ID:           m.ID,
		Platform:     m.Platform,
		AccountLabel: m.AccountLabel,
		SyncStatus:   m.SyncStatus,
		ItemCount:    len(m.Content.Items),
		Preview:      preview,
		LastSyncedAt: m.LastSyncedAt,
		CreatedAt:    m.CreatedAt,
	}
}

// List handles GET /api/cloud/memories
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	memories, err := h.repo.ListCloudMemories(userID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to list memories", err))
		return
	}

	summaries := make([]memorySummary, 0, len(memories))
	for _, m := range memories {
		summaries = append(summaries, summarize(m))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"memories": summaries,
	})
}

// Get handles GET /api/cloud/memories/{id}
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	memoryID := models.UUID(r.PathValue("id"))

	m, err := h.repo.GetCloudMemory(userID, memoryID)
	if err != nil {
		if err == sql.ErrNoRows {
			writeError(w, apperrors.New(apperrors.ErrMemoryNotFound, "Memory not found"))
		} else {
			writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to load memory", err))
		}
		return
	}

	versionCount, err := h.repo.CountVersions(userID, memoryID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to count versions", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"memory":        m,
		"version_count": versionCount,
	})
}

// Rename handles PATCH /api/cloud/memories/{id}
func (h *MemoryHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	memoryID := models.UUID(r.PathValue("id"))

	var request struct {
		AccountLabel string `json:"account_label"`
	}
	if err := decodeBody(r, &request); err != nil {
		validationError(w, "Invalid request body")
		return
	}
	if request.AccountLabel == "" {
		validationError(w, "account_label is required")
		return
	}

	if err := h.repo.RenameCloudMemory(userID, memoryID, request.AccountLabel); err != nil {
		if err == sql.ErrNoRows {
			writeError(w, apperrors.New(apperrors.ErrMemoryNotFound, "Memory not found"))
		} else {
			writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to rename memory", err))
		}
		return
	}

	m, err := h.repo.GetCloudMemory(userID, memoryID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to reload memory", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"memory": m,
	})
}

// Delete handles DELETE /api/cloud/memories/{id}
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	memoryID := models.UUID(r.PathValue("id"))

	if err := h.svc.Delete(userID, memoryID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// Download handles GET /api/cloud/memories/{id}/download
func (h *MemoryHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	memoryID := models.UUID(r.PathValue("id"))

	m, err := h.repo.GetCloudMemory(userID, memoryID)
	if err != nil {
		if err == sql.ErrNoRows {
			writeError(w, apperrors.New(apperrors.ErrMemoryNotFound, "Memory not found"))
		} else {
			writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to load memory", err))
		}
		return
	}

	raw := memory.ExportRaw(m.Platform, m.Content)
	filename := fmt.Sprintf("%s-%s-memory.json", m.Platform, m.AccountLabel)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(raw))
}

// Stats handles GET /api/cloud/stats
func (h *MemoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.repo.GetUser(userID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to load user", err))
		return
	}

	memoryCount, err := h.repo.CountCloudMemories(userID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to count memories", err))
		return
	}
	versionCount, err := h.repo.CountVersionsByUser(userID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to count versions", err))
		return
	}
	byPlatform, err := h.repo.CountMemoriesByPlatform(userID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to count platforms", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":        user.Plan,
		"limits":      memory.PlanLimits(user.Plan),
		"memories":    memoryCount,
		"versions":    versionCount,
		"by_platform": byPlatform,
	})
}
