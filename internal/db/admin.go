// Package db provides the privileged repository. AdminRepository bypasses
// user scoping and is reserved for cross-user work: session resolution,
// account provisioning, and retention pruning. Handlers never use it for
// per-user reads.
package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/xmemory/xmemory/internal/models"
	"github.com/xmemory/xmemory/internal/uuid"
)

// AdminRepository provides privileged operations.
type AdminRepository struct {
	db *sql.DB
}

// NewAdminRepository creates a new AdminRepository instance.
func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// =====================================================
// Account Provisioning
// =====================================================

// CreateUser inserts a user record. ID is filled in place when empty.
func (r *AdminRepository) CreateUser(user *models.User) error {
	if user.ID == "" {
		user.ID = models.UUID(uuid.New())
	}
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}
	user.CreatedAt = time.Now().Unix()
	_, err := r.db.Exec(
		"INSERT INTO users (id, email, plan, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, user.Plan, user.CreatedAt,
	)
	return err
}

// UpdateUserPlan changes a user's subscription tier. Called from the billing
// webhook worker, which is trusted.
func (r *AdminRepository) UpdateUserPlan(userID models.UUID, plan string) error {
	result, err := r.db.Exec("UPDATE users SET plan = ? WHERE id = ?", plan, userID)
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
// Session Operations
// =====================================================

// CreateSession records an opaque bearer token for a user.
func (r *AdminRepository) CreateSession(session *models.Session) error {
	session.CreatedAt = time.Now().Unix()
	_, err := r.db.Exec(
		"INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		session.Token, session.UserID, session.ExpiresAt, session.CreatedAt,
	)
	return err
}

// GetSession resolves a bearer token. Expiry is the caller's concern so an
// expired session can be distinguished from an unknown one.
func (r *AdminRepository) GetSession(token string) (*models.Session, error) {
	var session models.Session
	err := r.db.QueryRow(
		"SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = ?",
		token,
	).Scan(&session.Token, &session.UserID, &session.ExpiresAt, &session.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (r *AdminRepository) DeleteExpiredSessions() (int64, error) {
	result, err := r.db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// =====================================================
// Retention Operations
// =====================================================

// ListVersionsForRetention returns the full version list of a memory without
// content, oldest first, for the retention selector.
func (r *AdminRepository) ListVersionsForRetention(memoryID models.UUID) ([]models.MemoryVersion, error) {
	rows, err := r.db.Query(
		"SELECT id, cloud_memory_id, version_number, created_by, created_at FROM memory_versions WHERE cloud_memory_id = ? ORDER BY version_number",
		memoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []models.MemoryVersion
	for rows.Next() {
		var v models.MemoryVersion
		if err := rows.Scan(&v.ID, &v.CloudMemoryID, &v.VersionNumber, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// DeleteVersions removes version rows by id. The owning memory's head record
// is never touched here.
func (r *AdminRepository) DeleteVersions(ids []models.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := r.db.Exec("DELETE FROM memory_versions WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
