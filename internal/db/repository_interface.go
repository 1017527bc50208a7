// Package db provides repository interfaces for the cloud-memory data models.
package db

import (
	"github.com/xmemory/xmemory/internal/models"
)

// CloudMemoryRepository defines user-scoped operations on head records.
// This interface allows mocking for testing.
type CloudMemoryRepository interface {
	// CreateCloudMemory inserts a new head record.
	CreateCloudMemory(m *models.CloudMemory) error

	// GetCloudMemory retrieves a memory by id, scoped to its owner.
	GetCloudMemory(userID, id models.UUID) (*models.CloudMemory, error)

	// GetCloudMemoryByAccount retrieves the head record of one account tuple.
	GetCloudMemoryByAccount(userID models.UUID, platform, accountLabel string) (*models.CloudMemory, error)

	// ListCloudMemories returns all memories of a user.
	ListCloudMemories(userID models.UUID) ([]*models.CloudMemory, error)

	// CountCloudMemories returns how many account slots a user occupies.
	CountCloudMemories(userID models.UUID) (int, error)

	// UpdateCloudMemoryHead overwrites the head content unconditionally.
	UpdateCloudMemoryHead(userID, id models.UUID, content models.MemoryContent, checksum, syncStatus string) error

	// UpdateCloudMemoryHeadIf overwrites the head only when the stored
	// checksum still matches (compare-and-swap).
	UpdateCloudMemoryHeadIf(userID, id models.UUID, expectedChecksum string, content models.MemoryContent, checksum, syncStatus string) (bool, error)

	// RenameCloudMemory updates the account label.
	RenameCloudMemory(userID, id models.UUID, accountLabel string) error

	// DeleteCloudMemory removes a memory and cascades its versions.
	DeleteCloudMemory(userID, id models.UUID) error
}

// VersionRepository defines user-scoped operations on version history.
type VersionRepository interface {
	// AppendVersion writes the next version row for a memory.
	AppendVersion(memoryID models.UUID, content models.MemoryContent, diff *models.VersionDiff, createdBy string) (*models.MemoryVersion, error)

	// MaxVersionNumber returns the highest version number, 0 when empty.
	MaxVersionNumber(memoryID models.UUID) (int, error)

	// ListVersions returns a page of a memory's history, newest first.
	ListVersions(userID, memoryID models.UUID, limit, offset int) ([]*models.MemoryVersion, error)

	// CountVersions returns the history length of a memory.
	CountVersions(userID, memoryID models.UUID) (int, error)

	// GetVersion retrieves one full version snapshot by number.
	GetVersion(userID, memoryID models.UUID, versionNumber int) (*models.MemoryVersion, error)
}

// RetentionRepository groups the privileged operations the retention sweep
// needs.
type RetentionRepository interface {
	// ListVersionsForRetention returns a memory's versions without content.
	ListVersionsForRetention(memoryID models.UUID) ([]models.MemoryVersion, error)

	// DeleteVersions removes version rows by id.
	DeleteVersions(ids []models.UUID) (int64, error)
}

// Ensure the concrete repositories implement the interfaces at compile time.
var (
	_ CloudMemoryRepository = (*Repository)(nil)
	_ VersionRepository     = (*Repository)(nil)
	_ RetentionRepository   = (*AdminRepository)(nil)
)
