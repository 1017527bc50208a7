package models

// Unlimited is the sentinel for plan limits without a cap.
const Unlimited = -1

// Subscription plan identifiers. Unknown plan strings fall back to PlanFree.
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanLifetime = "lifetime"
)

// PlanLimits holds the per-tier quota constants applied during sync and
// retention. Unlimited (-1) disables the corresponding limit.
type PlanLimits struct {
	MaxAccounts int  `json:"max_accounts"`
	VersionDays int  `json:"version_days"`
	MaxVersions int  `json:"max_versions"`
	CloudSync   bool `json:"cloud_sync"`
}

// User is the minimal account record the cloud service needs; profile and
// billing live with the hosted identity and payment providers.
type User struct {
	ID        UUID   `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	Plan      string `db:"plan" json:"plan"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Session is an opaque bearer token minted by the identity provider and
// verified locally against its expiry.
type Session struct {
	Token     string `db:"token" json:"-"`
	UserID    UUID   `db:"user_id" json:"user_id"`
	ExpiresAt int64  `db:"expires_at" json:"expires_at"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}
