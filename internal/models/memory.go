package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Sync status values for a CloudMemory head record.
const (
	SyncStatusSynced   = "synced"
	SyncStatusPending  = "pending"
	SyncStatusConflict = "conflict"
)

// Supported export platforms. Unknown platforms are accepted and stored
// verbatim; these constants only drive download reconstruction.
const (
	PlatformChatGPT = "chatgpt"
	PlatformClaude  = "claude"
	PlatformGemini  = "gemini"
)

// CloudMemory is the head record for one synced memory account. One row per
// (user_id, platform, account_label) tuple; Content and Checksum always
// reflect the latest version.
type CloudMemory struct {
	ID           UUID          `db:"id" json:"id"`
	UserID       UUID          `db:"user_id" json:"user_id"`
	Platform     string        `db:"platform" json:"platform"`
	AccountLabel string        `db:"account_label" json:"account_label"`
	Content      MemoryContent `db:"content" json:"content"`
	Checksum     string        `db:"checksum" json:"checksum"`
	SyncStatus   string        `db:"sync_status" json:"sync_status"`
	LastSyncedAt int64         `db:"last_synced_at" json:"last_synced_at"`
	CreatedAt    int64         `db:"created_at" json:"created_at"`
	UpdatedAt    int64         `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for CloudMemory.
func (CloudMemory) TableName() string {
	return "cloud_memories"
}

// Touch updates the UpdatedAt timestamp.
func (m *CloudMemory) Touch() {
	m.UpdatedAt = time.Now().Unix()
}

// LastSyncedAtTime returns LastSyncedAt as time.Time.
func (m *CloudMemory) LastSyncedAtTime() time.Time {
	return time.Unix(m.LastSyncedAt, 0)
}
