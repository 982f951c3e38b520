package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users: identity, freeze preference, premium state",
		SQL: `
CREATE TABLE users (
    user_id       INTEGER PRIMARY KEY,
    freeze_days   INTEGER NOT NULL DEFAULT 7,
    is_premium    INTEGER NOT NULL DEFAULT 0,
    premium_until INTEGER,
    ideas_count   INTEGER NOT NULL DEFAULT 0,
    city          TEXT,
    created_at    INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "ideas: captured notes with freeze window and context snapshot",
		SQL: `
CREATE TABLE ideas (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id      INTEGER NOT NULL,
    content      TEXT,
    idea_type    TEXT NOT NULL CHECK (idea_type IN ('text', 'voice', 'photo')),
    file_id      TEXT,
    file_path    TEXT,
    source       TEXT NOT NULL DEFAULT 'direct',
    frozen_until INTEGER NOT NULL,
    created_at   INTEGER NOT NULL,
    opened_count INTEGER NOT NULL DEFAULT 0,
    is_valuable  INTEGER NOT NULL DEFAULT 0,
    day_of_week  TEXT,
    time_of_day  TEXT,
    weather      TEXT,

    FOREIGN KEY (user_id) REFERENCES users(user_id)
);

CREATE INDEX idx_ideas_user_created ON ideas(user_id, created_at DESC);
CREATE INDEX idx_ideas_user_frozen  ON ideas(user_id, frozen_until);
`,
	},
	{
		Version:     3,
		Description: "deleted_ideas: append-only deletion audit",
		SQL: `
CREATE TABLE deleted_ideas (
    user_id    INTEGER NOT NULL,
    deleted_at INTEGER NOT NULL,

    FOREIGN KEY (user_id) REFERENCES users(user_id)
);

CREATE INDEX idx_deleted_user ON deleted_ideas(user_id);
`,
	},
	{
		Version:     4,
		Description: "payments: checkout records against the external gateway",
		SQL: `
CREATE TABLE payments (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    INTEGER NOT NULL,
    payment_id TEXT NOT NULL UNIQUE,
    confirmation_url TEXT NOT NULL DEFAULT '',
    amount     REAL NOT NULL,
    plan       TEXT NOT NULL,
    status     TEXT NOT NULL DEFAULT 'pending',
    created_at INTEGER NOT NULL,
    paid_at    INTEGER,

    FOREIGN KEY (user_id) REFERENCES users(user_id)
);

CREATE INDEX idx_payments_user ON payments(user_id);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
