package sqlite

import "database/sql"

// schema sets up the database on startup.
// group_members.uid is UNIQUE: a user can sit in at most one group row.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    uid TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    sector TEXT NOT NULL DEFAULT '',
    personality TEXT,
    matching_status TEXT NOT NULL DEFAULT 'idle',
    matching_started_at INTEGER,
    group_id TEXT,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS connections (
    uid TEXT NOT NULL,
    other_uid TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (uid, other_uid),
    FOREIGN KEY (uid) REFERENCES users(uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    sector TEXT NOT NULL,
    status TEXT NOT NULL,
    match_tier TEXT NOT NULL,
    matched_interests TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL,
    uid TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (group_id, uid),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS group_acceptors (
    group_id TEXT NOT NULL,
    uid TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (group_id, uid),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_group_members_uid ON group_members(uid);
CREATE INDEX IF NOT EXISTS idx_users_status_sector ON users(matching_status, sector);
CREATE INDEX IF NOT EXISTS idx_group_acceptors_group_id ON group_acceptors(group_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
