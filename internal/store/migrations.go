package store

// migrations are applied in order; never edit a released entry, append a new one.
var migrations = []string{
	// 1: board tasks
	`CREATE TABLE tasks (
		id          TEXT PRIMARY KEY,
		position    INTEGER NOT NULL,
		title       TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'incomplete',
		updated_at  TEXT NOT NULL DEFAULT ''
	)`,

	// 2: push subscriptions
	`CREATE TABLE subscriptions (
		id         TEXT PRIMARY KEY,
		endpoint   TEXT NOT NULL UNIQUE,
		p256dh     TEXT NOT NULL,
		auth       TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT ''
	)`,
}
