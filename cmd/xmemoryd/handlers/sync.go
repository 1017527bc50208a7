// Package handlers provides the REST API handler for export sync.
package handlers

import (
	"net/http"

	"github.com/xmemory/xmemory/internal/cloud"
)

// SyncHandler handles export uploads.
type SyncHandler struct {
	svc *cloud.Service
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(svc *cloud.Service) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// Sync handles POST /api/cloud/sync
//
// The request body carries the raw export verbatim; parsing is total, so a
// sync only fails on validation, quota, conflict, or storage errors.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var request struct {
		Platform     string `json:"platform"`
		AccountLabel string `json:"account_label"`
		Content      string `json:"content"`
		Force        bool   `json:"force"`
	}
	if err := decodeBody(r, &request); err != nil {
		validationError(w, "Invalid request body")
		return
	}
	if request.Platform == "" {
		validationError(w, "platform is required")
		return
	}
	if request.Content == "" {
		validationError(w, "content is required")
		return
	}

	result, err := h.svc.Sync(cloud.SyncRequest{
		UserID:       userID,
		Platform:     request.Platform,
		AccountLabel: request.AccountLabel,
		Content:      request.Content,
		Force:        request.Force,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	response := map[string]interface{}{
		"success":         true,
		"cloud_memory_id": result.Memory.ID,
		"version_number":  result.Version.VersionNumber,
		"action":          result.Action,
	}
	if result.DiffSummary != "" {
		response["diff_summary"] = result.DiffSummary
	}
	writeJSON(w, http.StatusOK, response)
}
