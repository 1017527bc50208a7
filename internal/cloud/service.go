// Package cloud orchestrates the sync, restore, and retention flows over the
// repositories and the core memory algorithms.
package cloud

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/xmemory/xmemory/internal/db"
	apperrors "github.com/xmemory/xmemory/internal/errors"
	"github.com/xmemory/xmemory/internal/logging"
	"github.com/xmemory/xmemory/internal/memory"
	"github.com/xmemory/xmemory/internal/models"
)

// Sync actions reported to clients.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// Broadcaster pushes memory lifecycle events to connected dashboard clients.
// A nil broadcaster disables events.
type Broadcaster interface {
	MemorySynced(userID, memoryID models.UUID, action string, versionNumber int, diffSummary string)
	MemoryRestored(userID, memoryID models.UUID, restoredFrom, newVersion int)
	MemoryDeleted(userID, memoryID models.UUID)
	VersionsPruned(userID, memoryID models.UUID, count int64)
}

// Service implements the cloud-memory operations behind the REST surface.
type Service struct {
	repo            *db.Repository
	admin           *db.AdminRepository
	events          Broadcaster
	retentionOnSync bool
}

// NewService creates a new Service. events may be nil.
func NewService(repo *db.Repository, admin *db.AdminRepository, events Broadcaster, retentionOnSync bool) *Service {
	return &Service{
		repo:            repo,
		admin:           admin,
		events:          events,
		retentionOnSync: retentionOnSync,
	}
}

// SyncRequest carries one export upload.
type SyncRequest struct {
	UserID       models.UUID
	Platform     string
	AccountLabel string
	Content      string
	// Force bypasses the checksum compare-and-swap and overwrites the head
	// even if it moved since the client last read it.
	Force bool
}

// SyncResult reports the outcome of a sync.
type SyncResult struct {
	Memory      *models.CloudMemory
	Version     *models.MemoryVersion
	Action      string
	DiffSummary string
}

// Sync ingests a raw export for one (user, platform, account_label) tuple,
// creating the head record on first sync and chaining a new version on every
// subsequent one. Parsing is total, so a sync never fails on odd input; it
// can fail on quota, conflict, or storage errors.
func (s *Service) Sync(req SyncRequest) (*SyncResult, error) {
	user, err := s.repo.GetUser(req.UserID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load user", err)
	}
	limits := memory.PlanLimits(user.Plan)
	if !limits.CloudSync {
		return nil, apperrors.New(apperrors.ErrSyncDisabled, "Cloud sync is not available on your plan")
	}

	accountLabel := req.AccountLabel
	if accountLabel == "" {
		accountLabel = "default"
	}

	content := memory.Parse(req.Content)
	checksum := memory.Checksum(req.Content)

	head, err := s.repo.GetCloudMemoryByAccount(req.UserID, req.Platform, accountLabel)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load memory", err)
		}
		return s.syncCreate(user, req.Platform, accountLabel, content, checksum, limits)
	}
	return s.syncUpdate(user, head, content, checksum, req.Force)
}

// syncCreate handles the first sync for an account tuple.
func (s *Service) syncCreate(user *models.User, platform, accountLabel string, content models.MemoryContent, checksum string, limits models.PlanLimits) (*SyncResult, error) {
	if limits.MaxAccounts != models.Unlimited {
		count, err := s.repo.CountCloudMemories(user.ID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to count accounts", err)
		}
		if count >= limits.MaxAccounts {
			return nil, apperrors.New(apperrors.ErrQuotaExceeded,
				fmt.Sprintf("Your plan allows %d synced account(s). Upgrade to sync more.", limits.MaxAccounts))
		}
	}

	m := &models.CloudMemory{
		UserID:       user.ID,
		Platform:     platform,
		AccountLabel: accountLabel,
		Content:      content,
		Checksum:     checksum,
		SyncStatus:   models.SyncStatusSynced,
		LastSyncedAt: time.Now().Unix(),
	}
	if err := s.repo.CreateCloudMemory(m); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to create memory", err)
	}

	// Version 1 has no predecessor, so no diff.
	version, err := s.repo.AppendVersion(m.ID, content, nil, models.VersionBySync)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to write version", err)
	}

	logging.Info("Memory created", map[string]interface{}{
		"user_id":   user.ID,
		"memory_id": m.ID,
		"platform":  platform,
		"items":     len(content.Items),
	})
	if s.events != nil {
		s.events.MemorySynced(user.ID, m.ID, ActionCreated, version.VersionNumber, "")
	}

	return &SyncResult{Memory: m, Version: version, Action: ActionCreated}, nil
}

// syncUpdate chains a new version onto an existing memory. Unless force is
// set, the head overwrite is a compare-and-swap on the checksum read at the
// start of the request; a lost race surfaces as a conflict instead of a
// silent last-write-wins.
func (s *Service) syncUpdate(user *models.User, head *models.CloudMemory, content models.MemoryContent, checksum string, force bool) (*SyncResult, error) {
	diff := memory.Diff(head.Content, content)

	if force {
		if err := s.repo.UpdateCloudMemoryHead(user.ID, head.ID, content, checksum, models.SyncStatusSynced); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to update memory", err)
		}
	} else {
		swapped, err := s.repo.UpdateCloudMemoryHeadIf(user.ID, head.ID, head.Checksum, content, checksum, models.SyncStatusSynced)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to update memory", err)
		}
		if !swapped {
			return nil, apperrors.New(apperrors.ErrSyncConflict,
				"Memory changed since it was last read. Sync again or pass force to overwrite.")
		}
	}

	version, err := s.repo.AppendVersion(head.ID, content, &diff, models.VersionBySync)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to write version", err)
	}

	logging.Info("Memory synced", map[string]interface{}{
		"user_id":   user.ID,
		"memory_id": head.ID,
		"version":   version.VersionNumber,
		"diff":      diff.Summary,
	})
	if s.events != nil {
		s.events.MemorySynced(user.ID, head.ID, ActionUpdated, version.VersionNumber, diff.Summary)
	}

	s.sweepRetention(user.ID, head.ID, user.Plan)

	head.Content = content
	head.Checksum = checksum
	head.SyncStatus = models.SyncStatusSynced
	head.Touch()

	return &SyncResult{Memory: head, Version: version, Action: ActionUpdated, DiffSummary: diff.Summary}, nil
}

// RestoreResult reports the outcome of a restore.
type RestoreResult struct {
	Memory       *models.CloudMemory
	RestoredFrom int
	NewVersion   *models.MemoryVersion
	DiffSummary  string
}

// Restore re-publishes a historical version as a new HEAD version. The diff
// describes the change from the current head to the restored content, and
// history is preserved: nothing is rewound.
func (s *Service) Restore(userID, memoryID models.UUID, versionNumber int) (*RestoreResult, error) {
	head, err := s.repo.GetCloudMemory(userID, memoryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.New(apperrors.ErrMemoryNotFound, "Memory not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load memory", err)
	}

	target, err := s.repo.GetVersion(userID, memoryID, versionNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.New(apperrors.ErrVersionNotFound, "Version not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load version", err)
	}

	diff := memory.Diff(head.Content, target.Content)
	diff.Summary = fmt.Sprintf("restored from v%d: %s", versionNumber, diff.Summary)

	checksum := memory.Checksum(target.Content.Raw)
	if err := s.repo.UpdateCloudMemoryHead(userID, memoryID, target.Content, checksum, models.SyncStatusSynced); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to update memory", err)
	}

	version, err := s.repo.AppendVersion(memoryID, target.Content, &diff, models.VersionByRestore)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to write version", err)
	}

	logging.Info("Memory restored", map[string]interface{}{
		"user_id":       userID,
		"memory_id":     memoryID,
		"restored_from": versionNumber,
		"new_version":   version.VersionNumber,
	})
	if s.events != nil {
		s.events.MemoryRestored(userID, memoryID, versionNumber, version.VersionNumber)
	}

	user, err := s.repo.GetUser(userID)
	if err == nil {
		s.sweepRetention(userID, memoryID, user.Plan)
	}

	head.Content = target.Content
	head.Checksum = checksum
	head.Touch()

	return &RestoreResult{
		Memory:       head,
		RestoredFrom: versionNumber,
		NewVersion:   version,
		DiffSummary:  diff.Summary,
	}, nil
}

// Delete removes a memory and its whole history.
func (s *Service) Delete(userID, memoryID models.UUID) error {
	if err := s.repo.DeleteCloudMemory(userID, memoryID); err != nil {
		if err == sql.ErrNoRows {
			return apperrors.New(apperrors.ErrMemoryNotFound, "Memory not found")
		}
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete memory", err)
	}

	logging.Info("Memory deleted", map[string]interface{}{
		"user_id":   userID,
		"memory_id": memoryID,
	})
	if s.events != nil {
		s.events.MemoryDeleted(userID, memoryID)
	}
	return nil
}

// sweepRetention prunes version history per the user's plan. Failures are
// logged, never surfaced: retention must not fail a sync.
func (s *Service) sweepRetention(userID, memoryID models.UUID, plan string) {
	if !s.retentionOnSync {
		return
	}

	deleted, err := s.Cleanup(memoryID, plan)
	if err != nil {
		logging.Error("Retention sweep failed", err, map[string]interface{}{
			"memory_id": memoryID,
		})
		return
	}
	if deleted > 0 && s.events != nil {
		s.events.VersionsPruned(userID, memoryID, deleted)
	}
}

// Cleanup applies the plan's retention policy to one memory's history and
// returns how many versions were deleted. The head record is untouched even
// when all history is pruned.
func (s *Service) Cleanup(memoryID models.UUID, plan string) (int64, error) {
	policy := memory.PolicyForPlan(memory.PlanLimits(plan))
	if policy.Unbounded() {
		return 0, nil
	}

	versions, err := s.admin.ListVersionsForRetention(memoryID)
	if err != nil {
		return 0, err
	}

	doomed := memory.SelectForDeletion(versions, policy, time.Now())
	if len(doomed) == 0 {
		return 0, nil
	}

	deleted, err := s.admin.DeleteVersions(doomed)
	if err != nil {
		return 0, err
	}

	logging.Info("Versions pruned", map[string]interface{}{
		"memory_id": memoryID,
		"deleted":   deleted,
	})
	return deleted, nil
}
