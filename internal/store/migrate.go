package store

import (
	"database/sql"
	"strings"
	"time"
)

// migration is one forward-only, named schema change. Order matters;
// names are never reused, matching the `_migrations(name, applied_ts)`
// contract.
type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"001_initial_schema", schemaV1},
	{"002_settings", schemaV2Settings},
}

// migrate creates the tracking table if absent and applies every migration
// not yet recorded there, exactly once per name.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (
		name TEXT PRIMARY KEY,
		applied_ts INTEGER NOT NULL
	)`); err != nil {
		return err
	}

	for _, m := range migrations {
		var name string
		err := db.QueryRow(`SELECT name FROM _migrations WHERE name = ?`, m.name).Scan(&name)
		if err == nil {
			continue // already applied
		}
		if err != sql.ErrNoRows {
			return err
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(m.sql, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return err
			}
		}
		if _, err := tx.Exec(`INSERT INTO _migrations (name, applied_ts) VALUES (?, ?)`, m.name, time.Now().Unix()); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS libraries (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL CHECK (kind IN ('movies','tv_shows')),
	show_images INTEGER NOT NULL DEFAULT 1,
	prefer_local_artwork INTEGER NOT NULL DEFAULT 1,
	fetch_online_artwork INTEGER NOT NULL DEFAULT 1,
	created_ts INTEGER NOT NULL,
	updated_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS library_paths (
	id TEXT PRIMARY KEY,
	library_id TEXT NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	is_read_only INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_library_paths_library ON library_paths(library_id);

CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	library_id TEXT NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
	kind TEXT NOT NULL CHECK (kind IN ('movie','series','season','episode')),
	parent_id TEXT REFERENCES items(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	sort_title TEXT NOT NULL DEFAULT '',
	year INTEGER,
	season_number INTEGER,
	episode_number INTEGER,
	overview TEXT,
	poster_url TEXT,
	backdrop_url TEXT,
	logo_url TEXT,
	thumb_url TEXT,
	created_ts INTEGER NOT NULL,
	updated_ts INTEGER NOT NULL,
	UNIQUE(library_id, kind, parent_id, title)
);
CREATE INDEX IF NOT EXISTS idx_items_library ON items(library_id);
CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);

CREATE TABLE IF NOT EXISTS media_files (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	size_bytes INTEGER NOT NULL,
	mtime_ts INTEGER NOT NULL,
	container TEXT,
	duration_ms INTEGER,
	stream_info_json TEXT,
	orphaned_ts INTEGER
);

CREATE TABLE IF NOT EXISTS file_maps (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	file_id TEXT NOT NULL REFERENCES media_files(id) ON DELETE CASCADE,
	map_kind TEXT NOT NULL DEFAULT 'primary',
	created_ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_maps_item ON file_maps(item_id);
CREATE INDEX IF NOT EXISTS idx_file_maps_file ON file_maps(file_id);

CREATE TABLE IF NOT EXISTS provider_ids (
	item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	provider TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (item_id, provider)
);

CREATE TABLE IF NOT EXISTS field_locks (
	item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	field_name TEXT NOT NULL,
	locked_ts INTEGER NOT NULL,
	PRIMARY KEY (item_id, field_name)
);

CREATE TABLE IF NOT EXISTS user_item_state (
	user_id TEXT NOT NULL,
	item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	played INTEGER NOT NULL DEFAULT 0,
	progress_ms INTEGER NOT NULL DEFAULT 0,
	last_played_ts INTEGER,
	favorite INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, item_id)
);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('queued','running','completed','failed','cancelled')),
	progress REAL NOT NULL DEFAULT 0,
	payload_json TEXT,
	error TEXT,
	created_ts INTEGER NOT NULL,
	updated_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0,
	created_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	is_admin INTEGER NOT NULL DEFAULT 0,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS user_library_access (
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	library_id TEXT NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, library_id)
);
`

// schemaV2Settings holds only the handful of runtime-tunable fields the
// config loader's DB layer merges in (max_transcodes, hw_accel); this is
// not a general settings KV store with its own CRUD surface.
const schemaV2Settings = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
