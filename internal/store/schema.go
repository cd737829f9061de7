package store

// schemaSQL returns the DDL statements for the sift database.
func schemaSQL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			username      TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			subject_id    TEXT NOT NULL UNIQUE,
			created_at    INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS projects (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			api_key    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS project_members (
			project_id TEXT NOT NULL REFERENCES projects(id),
			subject_id TEXT NOT NULL,
			PRIMARY KEY (project_id, subject_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_members_subject
			ON project_members(subject_id)`,

		// Append-only event log. seq is the rowid-backed insertion
		// ordinal, the tiebreak for identical timestamps.
		`CREATE TABLE IF NOT EXISTS events (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			name       TEXT NOT NULL,
			ts         INTEGER NOT NULL,
			attributes TEXT NOT NULL DEFAULT '{}'
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_page
			ON events(project_id, name, ts DESC, seq DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_events_ts
			ON events(project_id, ts)`,

		// Catalog of archived segments produced by the retention daemon.
		`CREATE TABLE IF NOT EXISTS archive_segments (
			segment_id   TEXT PRIMARY KEY,
			project_id   TEXT NOT NULL,
			object_path  TEXT NOT NULL,
			min_ts       INTEGER NOT NULL,
			max_ts       INTEGER NOT NULL,
			record_count INTEGER NOT NULL,
			size_bytes   INTEGER NOT NULL,
			created_at   INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_archive_project
			ON archive_segments(project_id, max_ts)`,
	}
}
