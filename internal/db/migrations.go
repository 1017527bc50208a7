package db

// migrationStep is one embedded schema migration.
type migrationStep struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered schema history. Never edit an applied step; add a
// new one.
var migrations = []migrationStep{
	{
		Version:     1,
		Description: "users and sessions",
		SQL: `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			plan TEXT NOT NULL DEFAULT 'free',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX idx_sessions_user ON sessions(user_id);
		`,
	},
	{
		Version:     2,
		Description: "cloud memories and version history",
		SQL: `
		CREATE TABLE cloud_memories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			platform TEXT NOT NULL,
			account_label TEXT NOT NULL DEFAULT 'default',
			content TEXT NOT NULL,
			checksum TEXT NOT NULL,
			sync_status TEXT NOT NULL DEFAULT 'synced',
			last_synced_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (user_id, platform, account_label)
		);

		CREATE TABLE memory_versions (
			id TEXT PRIMARY KEY,
			cloud_memory_id TEXT NOT NULL REFERENCES cloud_memories(id) ON DELETE CASCADE,
			version_number INTEGER NOT NULL,
			content TEXT NOT NULL,
			diff TEXT,
			created_by TEXT NOT NULL DEFAULT 'sync',
			created_at INTEGER NOT NULL,
			UNIQUE (cloud_memory_id, version_number)
		);

		CREATE INDEX idx_memory_versions_memory ON memory_versions(cloud_memory_id, version_number);
		`,
	},
}
