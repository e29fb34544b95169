package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
)

// schema defines every relation the store needs. Statements are idempotent
// so Open can run them unconditionally on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id TEXT NOT NULL UNIQUE,
	provider INTEGER NOT NULL DEFAULT 0,
	display_name TEXT NOT NULL DEFAULT '',
	last_message_at INTEGER NOT NULL DEFAULT 0,
	unread_count INTEGER NOT NULL DEFAULT 0,
	archived INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_last_message ON conversations(last_message_at DESC);

CREATE TABLE IF NOT EXISTS conversation_participants (
	conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	address TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	is_primary INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (conversation_id, address)
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	subject TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	sender_name TEXT NOT NULL DEFAULT '',
	sender_address TEXT NOT NULL DEFAULT '',
	kind INTEGER NOT NULL DEFAULT 0,
	read INTEGER NOT NULL DEFAULT 0,
	sent_at INTEGER NOT NULL,
	received_at INTEGER NOT NULL DEFAULT 0,
	sub_id INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_messages_sent_at ON messages(sent_at);

CREATE TABLE IF NOT EXISTS message_attachments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	filename TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL DEFAULT '',
	byte_length INTEGER NOT NULL DEFAULT 0,
	blob BLOB,
	url TEXT NOT NULL DEFAULT '',
	download_complete INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_attachments_message ON message_attachments(message_id);
`

// ftsSchema creates the full-text index separately from the rest of the
// schema, so a build without FTS5 compiled in degrades to substring-only
// search (internal/search falls back to LIKE) instead of failing Open.
const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
	message_id UNINDEXED,
	subject,
	body,
	from_addr,
	from_name,
	tokenize = 'unicode61 remove_diacritics 1'
);
`

// Store is the SQLite-backed message store. Safe for many concurrent
// readers and one logical writer: a sync.RWMutex serializes writers the
// same way the short-lived transactions beneath it do.
type Store struct {
	mu           sync.RWMutex
	db           *sql.DB
	dsn          string
	ftsAvailable bool
}

// FTSAvailable reports whether the full-text index is usable on this build.
func (s *Store) FTSAvailable() bool { return s.ftsAvailable }

// Open opens (or creates) the database file at path, creating parent
// directories as needed, enabling WAL journaling and foreign keys, and
// applying the idempotent schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" && path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewError("Open", KindIo, err)
		}
	}

	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, NewError("Open", KindIo, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, NewError("Open", KindEngine, fmt.Errorf("%s: %w", p, err))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, NewError("Open", KindEngine, err)
	}

	ftsAvailable := true
	if _, err := db.Exec(ftsSchema); err != nil {
		ftsAvailable = false
	}

	return &Store{db: db, dsn: dsn, ftsAvailable: ftsAvailable}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
