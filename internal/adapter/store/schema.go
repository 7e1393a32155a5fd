package store

// schema is portable between SQLite and PostgreSQL. Timestamps are unix
// milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id      TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		language     TEXT NOT NULL DEFAULT '',
		theme        TEXT NOT NULL DEFAULT '',
		updated_at   BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		position        INTEGER NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		status          TEXT NOT NULL,
		created_at      BIGINT NOT NULL,
		PRIMARY KEY (conversation_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_usage (
		user_id       TEXT NOT NULL,
		day           TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, day)
	)`,
}
