package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and messages",
		SQL: `
			CREATE TABLE conversations (
				session_id  TEXT PRIMARY KEY,
				flow        TEXT,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);

			CREATE TABLE messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT NOT NULL REFERENCES conversations(session_id) ON DELETE CASCADE,
				sender      TEXT NOT NULL,
				text        TEXT NOT NULL,
				timestamp   TEXT NOT NULL
			);

			CREATE INDEX idx_messages_session ON messages (session_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create sequences",
		SQL: `
			CREATE TABLE sequences (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				title       TEXT NOT NULL,
				steps       TEXT NOT NULL DEFAULT '[]',
				metadata    TEXT NOT NULL DEFAULT '{}',
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);
		`,
	},
	{
		Version: 3,
		Name:    "link conversations to sequences",
		SQL: `
			ALTER TABLE conversations ADD COLUMN sequence_id INTEGER REFERENCES sequences(id) ON DELETE SET NULL;
		`,
	},
}
