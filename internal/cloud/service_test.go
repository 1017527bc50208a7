// Package cloud tests for the sync, restore, and retention flows.
package cloud

import (
	"testing"

	"github.com/xmemory/xmemory/internal/db"
	apperrors "github.com/xmemory/xmemory/internal/errors"
	"github.com/xmemory/xmemory/internal/models"
)

// eventRecorder captures broadcast events for assertions.
type eventRecorder struct {
	synced   []string // action per sync event
	restored int
	deleted  int
	pruned   int64
}

func (r *eventRecorder) MemorySynced(userID, memoryID models.UUID, action string, versionNumber int, diffSummary string) {
	r.synced = append(r.synced, action)
}
func (r *eventRecorder) MemoryRestored(userID, memoryID models.UUID, restoredFrom, newVersion int) {
	r.restored++
}
func (r *eventRecorder) MemoryDeleted(userID, memoryID models.UUID) {
	r.deleted++
}
func (r *eventRecorder) VersionsPruned(userID, memoryID models.UUID, count int64) {
	r.pruned += count
}

type fixture struct {
	repo   *db.Repository
	admin  *db.AdminRepository
	svc    *Service
	events *eventRecorder
}

func setup(t *testing.T) *fixture {
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
	events := &eventRecorder{}

	return &fixture{
		repo:   repo,
		admin:  admin,
		svc:    NewService(repo, admin, events, true),
		events: events,
	}
}

func (f *fixture) user(t *testing.T, email, plan string) models.UUID {
	t.Helper()
	user := &models.User{Email: email, Plan: plan}
	if err := f.admin.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user.ID
}

// TestService_SyncCreateThenUpdate covers the first-sync and chained-sync
// paths end to end, including the stored diff.
func TestService_SyncCreateThenUpdate(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "a@example.com", models.PlanFree)

	created, err := f.svc.Sync(SyncRequest{
		UserID:   userID,
		Platform: "chatgpt",
		Content:  `[{"key":"A","value":"1"}]`,
	})
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if created.Action != ActionCreated {
		t.Errorf("action = %q, want created", created.Action)
	}
	if created.Version.VersionNumber != 1 {
		t.Errorf("version = %d, want 1", created.Version.VersionNumber)
	}
	if created.Memory.AccountLabel != "default" {
		t.Errorf("empty label should default: %q", created.Memory.AccountLabel)
	}

	updated, err := f.svc.Sync(SyncRequest{
		UserID:   userID,
		Platform: "chatgpt",
		Content:  `[{"key":"A","value":"2"},{"key":"B","value":"3"}]`,
	})
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if updated.Action != ActionUpdated {
		t.Errorf("action = %q, want updated", updated.Action)
	}
	if updated.Version.VersionNumber != 2 {
		t.Errorf("version = %d, want 2", updated.Version.VersionNumber)
	}
	if updated.DiffSummary != "+1, ~1" {
		t.Errorf("diff summary = %q, want \"+1, ~1\"", updated.DiffSummary)
	}

	stored, err := f.repo.GetVersion(userID, updated.Memory.ID, 2)
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	if stored.Diff == nil {
		t.Fatal("version 2 should carry a diff")
	}
	if len(stored.Diff.Added) != 1 || stored.Diff.Added[0].Key != "B" || stored.Diff.Added[0].Value != "3" {
		t.Errorf("added = %+v", stored.Diff.Added)
	}
	if len(stored.Diff.Removed) != 0 {
		t.Errorf("removed = %+v", stored.Diff.Removed)
	}
	if len(stored.Diff.Modified) != 1 {
		t.Fatalf("modified = %+v", stored.Diff.Modified)
	}
	mod := stored.Diff.Modified[0]
	if mod.Before.Key != "A" || mod.Before.Value != "1" || mod.After.Value != "2" {
		t.Errorf("modified = %+v", mod)
	}

	head, err := f.repo.GetCloudMemory(userID, updated.Memory.ID)
	if err != nil {
		t.Fatalf("reload head failed: %v", err)
	}
	if head.SyncStatus != models.SyncStatusSynced {
		t.Errorf("sync_status = %q", head.SyncStatus)
	}
	if len(head.Content.Items) != 2 {
		t.Errorf("head items = %d, want 2", len(head.Content.Items))
	}

	if len(f.events.synced) != 2 || f.events.synced[0] != ActionCreated || f.events.synced[1] != ActionUpdated {
		t.Errorf("sync events = %v", f.events.synced)
	}
}

// TestService_PlanGating covers the account-slot quota: a new tuple past the
// limit is rejected, the existing tuple still updates.
func TestService_PlanGating(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "free@example.com", models.PlanFree) // max_accounts = 1

	if _, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: "chatgpt", Content: `[]`}); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	_, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: "claude", Content: `[]`})
	if !apperrors.Is(err, apperrors.ErrQuotaExceeded) {
		t.Fatalf("new slot past quota: err = %v, want QUOTA_EXCEEDED", err)
	}

	result, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: "chatgpt", Content: `[{"key":"A","value":"1"}]`})
	if err != nil {
		t.Fatalf("existing slot update failed: %v", err)
	}
	if result.Action != ActionUpdated {
		t.Errorf("action = %q, want updated", result.Action)
	}
}

// TestService_ProPlanAllowsMoreAccounts verifies a higher tier opens slots.
func TestService_ProPlanAllowsMoreAccounts(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "pro@example.com", models.PlanPro)

	for _, platform := range []string{"chatgpt", "claude", "gemini"} {
		if _, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: platform, Content: `[]`}); err != nil {
			t.Fatalf("sync for %s failed: %v", platform, err)
		}
	}
}

// TestService_VersionCountRetention verifies the 11th version on the free
// plan evicts exactly version 1.
func TestService_VersionCountRetention(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "free@example.com", models.PlanFree) // max_versions = 10

	var memoryID models.UUID
	for i := 0; i < 11; i++ {
		result, err := f.svc.Sync(SyncRequest{
			UserID:   userID,
			Platform: "chatgpt",
			Content:  `[{"key":"A","value":"` + string(rune('a'+i)) + `"}]`,
		})
		if err != nil {
			t.Fatalf("sync %d failed: %v", i+1, err)
		}
		memoryID = result.Memory.ID
	}

	count, err := f.repo.CountVersions(userID, memoryID)
	if err != nil {
		t.Fatalf("CountVersions failed: %v", err)
	}
	if count != 10 {
		t.Errorf("versions = %d after retention, want 10", count)
	}

	if _, err := f.repo.GetVersion(userID, memoryID, 1); err == nil {
		t.Error("version 1 should have been pruned")
	}
	for n := 2; n <= 11; n++ {
		if _, err := f.repo.GetVersion(userID, memoryID, n); err != nil {
			t.Errorf("version %d missing: %v", n, err)
		}
	}

	if f.events.pruned != 1 {
		t.Errorf("pruned events total = %d, want 1", f.events.pruned)
	}
}

// TestService_RestoreIdempotent verifies restoring the same version twice
// yields two new versions with identical content.
func TestService_RestoreIdempotent(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "a@example.com", models.PlanPro)

	contents := []string{
		`[{"key":"A","value":"1"}]`,
		`[{"key":"A","value":"2"}]`,
		`[{"key":"A","value":"3"}]`,
	}
	var memoryID models.UUID
	for _, content := range contents {
		result, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: "chatgpt", Content: content})
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		memoryID = result.Memory.ID
	}

	first, err := f.svc.Restore(userID, memoryID, 1)
	if err != nil {
		t.Fatalf("first restore failed: %v", err)
	}
	if first.RestoredFrom != 1 || first.NewVersion.VersionNumber != 4 {
		t.Errorf("first restore = from %d to v%d", first.RestoredFrom, first.NewVersion.VersionNumber)
	}
	if first.NewVersion.Content.Raw != contents[0] {
		t.Errorf("restored content = %q", first.NewVersion.Content.Raw)
	}
	if first.NewVersion.CreatedBy != models.VersionByRestore {
		t.Errorf("created_by = %q", first.NewVersion.CreatedBy)
	}

	second, err := f.svc.Restore(userID, memoryID, 1)
	if err != nil {
		t.Fatalf("second restore failed: %v", err)
	}
	if second.NewVersion.VersionNumber != 5 {
		t.Errorf("second restore version = %d, want 5", second.NewVersion.VersionNumber)
	}
	if second.NewVersion.Content.Raw != first.NewVersion.Content.Raw {
		t.Error("repeated restore produced different content")
	}

	// First restore walks the head back (a real change); the second is a
	// no-op diff. Both carry the restore prefix.
	if first.DiffSummary != "restored from v1: ~1" {
		t.Errorf("first diff summary = %q", first.DiffSummary)
	}
	if second.DiffSummary != "restored from v1: no changes" {
		t.Errorf("second diff summary = %q", second.DiffSummary)
	}

	head, err := f.repo.GetCloudMemory(userID, memoryID)
	if err != nil {
		t.Fatalf("reload head failed: %v", err)
	}
	if head.Content.Raw != contents[0] {
		t.Errorf("head content = %q, want restored content", head.Content.Raw)
	}

	if f.events.restored != 2 {
		t.Errorf("restore events = %d, want 2", f.events.restored)
	}
}

// TestService_RestoreMissing verifies 404-class errors for absent memories
// and versions.
func TestService_RestoreMissing(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "a@example.com", models.PlanFree)

	if _, err := f.svc.Restore(userID, "no-such-memory", 1); !apperrors.Is(err, apperrors.ErrMemoryNotFound) {
		t.Errorf("missing memory: err = %v", err)
	}

	result, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: "chatgpt", Content: `[]`})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if _, err := f.svc.Restore(userID, result.Memory.ID, 99); !apperrors.Is(err, apperrors.ErrVersionNotFound) {
		t.Errorf("missing version: err = %v", err)
	}
}

// TestService_SyncNeverFailsOnOddInput verifies the normalizer fallback
// keeps malformed exports syncable.
func TestService_SyncNeverFailsOnOddInput(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "a@example.com", models.PlanFree)

	result, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: "chatgpt", Content: "definitely not json"})
	if err != nil {
		t.Fatalf("sync of malformed export failed: %v", err)
	}
	if len(result.Memory.Content.Items) != 1 {
		t.Fatalf("items = %d, want 1 fallback item", len(result.Memory.Content.Items))
	}
	if result.Memory.Content.Items[0].Value != "definitely not json" {
		t.Errorf("fallback item = %+v", result.Memory.Content.Items[0])
	}
}

// TestService_ForceSync verifies the force flag still writes a version chain.
func TestService_ForceSync(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "a@example.com", models.PlanFree)

	if _, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: "chatgpt", Content: `[{"key":"A","value":"1"}]`}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	result, err := f.svc.Sync(SyncRequest{
		UserID:   userID,
		Platform: "chatgpt",
		Content:  `[{"key":"A","value":"2"}]`,
		Force:    true,
	})
	if err != nil {
		t.Fatalf("forced sync failed: %v", err)
	}
	if result.Action != ActionUpdated || result.Version.VersionNumber != 2 {
		t.Errorf("forced sync = %q v%d", result.Action, result.Version.VersionNumber)
	}
}

// TestService_Delete verifies deletion and its event.
func TestService_Delete(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "a@example.com", models.PlanFree)

	result, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: "chatgpt", Content: `[]`})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if err := f.svc.Delete(userID, result.Memory.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := f.svc.Delete(userID, result.Memory.ID); !apperrors.Is(err, apperrors.ErrMemoryNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
	if f.events.deleted != 1 {
		t.Errorf("delete events = %d, want 1", f.events.deleted)
	}
}

// TestService_CleanupKeepsHead verifies pruning all history leaves the head
// record intact.
func TestService_CleanupKeepsHead(t *testing.T) {
	f := setup(t)
	userID := f.user(t, "a@example.com", models.PlanFree)

	result, err := f.svc.Sync(SyncRequest{UserID: userID, Platform: "chatgpt", Content: `[{"key":"A","value":"1"}]`})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	versions, err := f.admin.ListVersionsForRetention(result.Memory.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	ids := make([]models.UUID, len(versions))
	for i, v := range versions {
		ids[i] = v.ID
	}
	if _, err := f.admin.DeleteVersions(ids); err != nil {
		t.Fatalf("delete versions failed: %v", err)
	}

	head, err := f.repo.GetCloudMemory(userID, result.Memory.ID)
	if err != nil {
		t.Fatalf("head gone after pruning all history: %v", err)
	}
	if head.Content.Raw != `[{"key":"A","value":"1"}]` {
		t.Errorf("head content = %q", head.Content.Raw)
	}
}
