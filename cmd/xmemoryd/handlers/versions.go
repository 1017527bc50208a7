// Package handlers provides REST API handlers for version history.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/xmemory/xmemory/internal/cloud"
	"github.com/xmemory/xmemory/internal/db"
	apperrors "github.com/xmemory/xmemory/internal/errors"
	"github.com/xmemory/xmemory/internal/models"
)

const (
	defaultVersionPage = 20
	maxVersionPage     = 100
)

// VersionHandler handles version listing, detail, and restore.
type VersionHandler struct {
	repo *db.Repository
	svc  *cloud.Service
}

// NewVersionHandler creates a new VersionHandler.
func NewVersionHandler(repo *db.Repository, svc *cloud.Service) *VersionHandler {
	return &VersionHandler{repo: repo, svc: svc}
}

// versionMeta is the list-view projection of a version: no content snapshot,
// just the chain metadata and the diff summary.
type versionMeta struct {
	VersionNumber int    `json:"version_number"`
	CreatedBy     string `json:"created_by"`
	CreatedAt     int64  `json:"created_at"`
	DiffSummary   string `json:"diff_summary,omitempty"`
	ItemCount     int    `json:"item_count"`
}

// List handles GET /api/cloud/memories/{id}/versions
func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	memoryID := models.UUID(r.PathValue("id"))

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxVersionPage {
		limit = defaultVersionPage
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	// Ownership check doubles as 404: absent row means not found or not
	// yours, indistinguishable on purpose.
	total, err := h.repo.CountVersions(userID, memoryID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to count versions", err))
		return
	}
	if total == 0 {
		if _, err := h.repo.GetCloudMemory(userID, memoryID); err != nil {
			writeError(w, apperrors.New(apperrors.ErrMemoryNotFound, "Memory not found"))
			return
		}
	}

	versions, err := h.repo.ListVersions(userID, memoryID, limit, offset)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrDatabase, "failed to list versions", err))
		return
	}

	metas := make([]versionMeta, 0, len(versions))
	for _, v := range versions {
		meta := versionMeta{
			VersionNumber: v.VersionNumber,
			CreatedBy:     v.CreatedBy,
			CreatedAt:     v.CreatedAt,
			ItemCount:     len(v.Content.Items),
		}
		if v.Diff != nil {
			meta.DiffSummary = v.Diff.Summary
		}
		metas = append(metas, meta)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": metas,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// Get handles POST /api/cloud/memories/{id}/versions
//
// Returns the full snapshot of one version. POST rather than GET keeps the
// version number in the body, matching the dashboard client.
func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	memoryID := models.UUID(r.PathValue("id"))

	var request struct {
		VersionNumber int `json:"version_number"`
	}
	if err := decodeBody(r, &request); err != nil {
		validationError(w, "Invalid request body")
		return
	}
	if request.VersionNumber < 1 {
		validationError(w, "version_number is required")
		return
	}

	version, err := h.repo.GetVersion(userID, memoryID, request.VersionNumber)
	if err != nil {
		writeError(w, apperrors.New(apperrors.ErrVersionNotFound, "Version not found"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": version,
	})
}

// Restore handles POST /api/cloud/memories/{id}/restore
func (h *VersionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	memoryID := models.UUID(r.PathValue("id"))

	var request struct {
		VersionNumber int `json:"version_number"`
	}
	if err := decodeBody(r, &request); err != nil {
		validationError(w, "Invalid request body")
		return
	}
	if request.VersionNumber < 1 {
		validationError(w, "version_number is required")
		return
	}

	result, err := h.svc.Restore(userID, memoryID, request.VersionNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"restored_from": result.RestoredFrom,
		"new_version":   result.NewVersion.VersionNumber,
		"diff_summary":  result.DiffSummary,
	})
}
