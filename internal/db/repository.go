// Package db provides repository operations for cloud memories and their
// version history. Repository is user-scoped: every query is pre-filtered by
// the authenticated user id, so an absent row doubles as the "not yours"
// signal and no separate authorization step exists.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xmemory/xmemory/internal/models"
	"github.com/xmemory/xmemory/internal/uuid"
)

// Repository provides user-scoped CRUD for cloud memories and versions.
// Frequently used queries go through a prepared statement cache.
type Repository struct {
	db *sql.DB

	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from the cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// User Operations
// =====================================================

// GetUser retrieves a user by id.
func (r *Repository) GetUser(userID models.UUID) (*models.User, error) {
	stmt, err := r.PrepareStmt("SELECT id, email, plan, created_at FROM users WHERE id = ?")
	if err != nil {
		return nil, err
	}
	var user models.User
	err = stmt.QueryRow(userID).Scan(&user.ID, &user.Email, &user.Plan, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// =====================================================
// CloudMemory Operations
// =====================================================

const cloudMemoryColumns = "id, user_id, platform, account_label, content, checksum, sync_status, last_synced_at, created_at, updated_at"

func scanCloudMemory(row interface{ Scan(...interface{}) error }) (*models.CloudMemory, error) {
	var m models.CloudMemory
	err := row.Scan(&m.ID, &m.UserID, &m.Platform, &m.AccountLabel, &m.Content,
		&m.Checksum, &m.SyncStatus, &m.LastSyncedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateCloudMemory inserts a new head record. ID and timestamps are filled
// in place.
func (r *Repository) CreateCloudMemory(m *models.CloudMemory) error {
	now := time.Now().Unix()
	m.ID = models.UUID(uuid.New())
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
	INSERT INTO cloud_memories (` + cloudMemoryColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, m.ID, m.UserID, m.Platform, m.AccountLabel, m.Content,
		m.Checksum, m.SyncStatus, m.LastSyncedAt, m.CreatedAt, m.UpdatedAt)
	return err
}

// GetCloudMemory retrieves a memory by id, scoped to its owner.
func (r *Repository) GetCloudMemory(userID, id models.UUID) (*models.CloudMemory, error) {
	stmt, err := r.PrepareStmt("SELECT " + cloudMemoryColumns + " FROM cloud_memories WHERE id = ? AND user_id = ?")
	if err != nil {
		return nil, err
	}
	return scanCloudMemory(stmt.QueryRow(id, userID))
}

// GetCloudMemoryByAccount retrieves the head record for one
// (user, platform, account_label) tuple.
func (r *Repository) GetCloudMemoryByAccount(userID models.UUID, platform, accountLabel string) (*models.CloudMemory, error) {
	stmt, err := r.PrepareStmt("SELECT " + cloudMemoryColumns + " FROM cloud_memories WHERE user_id = ? AND platform = ? AND account_label = ?")
	if err != nil {
		return nil, err
	}
	return scanCloudMemory(stmt.QueryRow(userID, platform, accountLabel))
}

// ListCloudMemories returns all memories of a user, most recently synced
// first.
func (r *Repository) ListCloudMemories(userID models.UUID) ([]*models.CloudMemory, error) {
	stmt, err := r.PrepareStmt("SELECT " + cloudMemoryColumns + " FROM cloud_memories WHERE user_id = ? ORDER BY last_synced_at DESC")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []*models.CloudMemory
	for rows.Next() {
		m, err := scanCloudMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// CountCloudMemories returns how many account slots a user occupies.
func (r *Repository) CountCloudMemories(userID models.UUID) (int, error) {
	stmt, err := r.PrepareStmt("SELECT COUNT(*) FROM cloud_memories WHERE user_id = ?")
	if err != nil {
		return 0, err
	}
	var count int
	err = stmt.QueryRow(userID).Scan(&count)
	return count, err
}

// UpdateCloudMemoryHead overwrites the head content unconditionally.
func (r *Repository) UpdateCloudMemoryHead(userID, id models.UUID, content models.MemoryContent, checksum, syncStatus string) error {
	now := time.Now().Unix()
	query := `
	UPDATE cloud_memories
	SET content = ?, checksum = ?, sync_status = ?, last_synced_at = ?, updated_at = ?
	WHERE id = ? AND user_id = ?
	`
	result, err := r.db.Exec(query, content, checksum, syncStatus, now, now, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateCloudMemoryHeadIf overwrites the head only if the stored checksum
// still matches expectedChecksum (compare-and-swap). Returns false when the
// head moved under the caller.
func (r *Repository) UpdateCloudMemoryHeadIf(userID, id models.UUID, expectedChecksum string, content models.MemoryContent, checksum, syncStatus string) (bool, error) {
	now := time.Now().Unix()
	query := `
	UPDATE cloud_memories
	SET content = ?, checksum = ?, sync_status = ?, last_synced_at = ?, updated_at = ?
	WHERE id = ? AND user_id = ? AND checksum = ?
	`
	result, err := r.db.Exec(query, content, checksum, syncStatus, now, now, id, userID, expectedChecksum)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RenameCloudMemory updates the account label of a memory.
func (r *Repository) RenameCloudMemory(userID, id models.UUID, accountLabel string) error {
	result, err := r.db.Exec(
		"UPDATE cloud_memories SET account_label = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		accountLabel, time.Now().Unix(), id, userID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteCloudMemory removes a memory; its versions cascade through the
// foreign key.
func (r *Repository) DeleteCloudMemory(userID, id models.UUID) error {
	result, err := r.db.Exec("DELETE FROM cloud_memories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// =====================================================
// MemoryVersion Operations
// =====================================================

const memoryVersionColumns = "id, cloud_memory_id, version_number, content, diff, created_by, created_at"

func scanMemoryVersion(row interface{ Scan(...interface{}) error }) (*models.MemoryVersion, error) {
	var v models.MemoryVersion
	var diff sql.NullString
	err := row.Scan(&v.ID, &v.CloudMemoryID, &v.VersionNumber, &v.Content, &diff, &v.CreatedBy, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	if diff.Valid {
		var d models.VersionDiff
		if err := d.Scan(diff.String); err != nil {
			return nil, fmt.Errorf("failed to decode stored diff: %w", err)
		}
		v.Diff = &d
	}
	return &v, nil
}

// MaxVersionNumber returns the highest version number of a memory, 0 when the
// history is empty.
func (r *Repository) MaxVersionNumber(memoryID models.UUID) (int, error) {
	stmt, err := r.PrepareStmt("SELECT COALESCE(MAX(version_number), 0) FROM memory_versions WHERE cloud_memory_id = ?")
	if err != nil {
		return 0, err
	}
	var max int
	err = stmt.QueryRow(memoryID).Scan(&max)
	return max, err
}

// AppendVersion writes the next version row for a memory. The number is
// computed as max+1; a concurrent writer hitting the same number trips the
// UNIQUE(cloud_memory_id, version_number) constraint and the insert is
// retried once with a recomputed number.
func (r *Repository) AppendVersion(memoryID models.UUID, content models.MemoryContent, diff *models.VersionDiff, createdBy string) (*models.MemoryVersion, error) {
	for attempt := 0; attempt < 2; attempt++ {
		max, err := r.MaxVersionNumber(memoryID)
		if err != nil {
			return nil, err
		}

		v := &models.MemoryVersion{
			ID:            models.UUID(uuid.New()),
			CloudMemoryID: memoryID,
			VersionNumber: max + 1,
			Content:       content,
			Diff:          diff,
			CreatedBy:     createdBy,
			CreatedAt:     time.Now().Unix(),
		}

		var diffValue interface{}
		if diff != nil {
			diffValue = *diff
		}
		_, err = r.db.Exec(
			"INSERT INTO memory_versions ("+memoryVersionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			v.ID, v.CloudMemoryID, v.VersionNumber, v.Content, diffValue, v.CreatedBy, v.CreatedAt,
		)
		if err == nil {
			return v, nil
		}
		if !isUniqueViolation(err) || attempt == 1 {
			return nil, err
		}
	}
	// unreachable
	return nil, fmt.Errorf("failed to append version for memory %s", memoryID)
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure from
// the sqlite driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ListVersions returns a metadata page of a memory's history, newest first.
// Content is included (rows are full snapshots); handlers decide what to
// expose.
func (r *Repository) ListVersions(userID, memoryID models.UUID, limit, offset int) ([]*models.MemoryVersion, error) {
	query := `
	SELECT v.id, v.cloud_memory_id, v.version_number, v.content, v.diff, v.created_by, v.created_at
	FROM memory_versions v
	JOIN cloud_memories m ON m.id = v.cloud_memory_id
	WHERE v.cloud_memory_id = ? AND m.user_id = ?
	ORDER BY v.version_number DESC
	LIMIT ? OFFSET ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(memoryID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*models.MemoryVersion
	for rows.Next() {
		v, err := scanMemoryVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// CountVersions returns the history length of a memory, owner-scoped.
func (r *Repository) CountVersions(userID, memoryID models.UUID) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM memory_versions v
	JOIN cloud_memories m ON m.id = v.cloud_memory_id
	WHERE v.cloud_memory_id = ? AND m.user_id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return 0, err
	}
	var count int
	err = stmt.QueryRow(memoryID, userID).Scan(&count)
	return count, err
}

// GetVersion retrieves one full version snapshot by number, owner-scoped.
func (r *Repository) GetVersion(userID, memoryID models.UUID, versionNumber int) (*models.MemoryVersion, error) {
	query := `
	SELECT v.id, v.cloud_memory_id, v.version_number, v.content, v.diff, v.created_by, v.created_at
	FROM memory_versions v
	JOIN cloud_memories m ON m.id = v.cloud_memory_id
	WHERE v.cloud_memory_id = ? AND m.user_id = ? AND v.version_number = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	return scanMemoryVersion(stmt.QueryRow(memoryID, userID, versionNumber))
}

// CountVersionsByUser returns the total version rows across all of a user's
// memories.
func (r *Repository) CountVersionsByUser(userID models.UUID) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM memory_versions v
	JOIN cloud_memories m ON m.id = v.cloud_memory_id
	WHERE m.user_id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return 0, err
	}
	var count int
	err = stmt.QueryRow(userID).Scan(&count)
	return count, err
}

// CountMemoriesByPlatform returns per-platform account counts for a user.
func (r *Repository) CountMemoriesByPlatform(userID models.UUID) (map[string]int, error) {
	stmt, err := r.PrepareStmt("SELECT platform, COUNT(*) FROM cloud_memories WHERE user_id = ? GROUP BY platform")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var platform string
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, err
		}
		counts[platform] = count
	}
	return counts, rows.Err()
}
