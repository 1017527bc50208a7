package models

import "time"

// Origin values for a MemoryVersion row.
const (
	VersionBySync    = "sync"
	VersionByManual  = "manual"
	VersionByRestore = "restore"
	VersionByAuto    = "auto"
)

// MemoryVersion is one immutable snapshot in a memory's version history.
// VersionNumber starts at 1 and increases by one per write; the pair
// (CloudMemoryID, VersionNumber) is unique. Diff is computed against the
// head content at write time and is nil for version 1.
type MemoryVersion struct {
	ID            UUID          `db:"id" json:"id"`
	CloudMemoryID UUID          `db:"cloud_memory_id" json:"cloud_memory_id"`
	VersionNumber int           `db:"version_number" json:"version_number"`
	Content       MemoryContent `db:"content" json:"content"`
	Diff          *VersionDiff  `db:"diff" json:"diff,omitempty"`
	CreatedBy     string        `db:"created_by" json:"created_by"`
	CreatedAt     int64         `db:"created_at" json:"created_at"`
}

// TableName returns the table name for MemoryVersion.
func (MemoryVersion) TableName() string {
	return "memory_versions"
}

// CreatedAtTime returns CreatedAt as time.Time.
func (v *MemoryVersion) CreatedAtTime() time.Time {
	return time.Unix(v.CreatedAt, 0)
}
