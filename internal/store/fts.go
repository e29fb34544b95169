package store

import (
	"context"
	"database/sql"
)

// upsertFTSRow keeps messages_fts in sync with a written message. The pack
// never relies on SQL triggers; every table that must stay consistent is
// updated explicitly, right here, in the same transaction as the write it
// mirrors. A no-op when the build's SQLite driver lacks FTS5.
func upsertFTSRow(ctx context.Context, tx *sql.Tx, ftsAvailable bool, msg Message) error {
	if !ftsAvailable {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages_fts WHERE message_id = ?`, msg.ID); err != nil {
		return NewError("upsertFTSRow", KindEngine, err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages_fts (message_id, subject, body, from_addr, from_name)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.Subject, msg.Body, msg.SenderAddress, msg.SenderName)
	if err != nil {
		return NewError("upsertFTSRow", KindEngine, err)
	}
	return nil
}

// deleteFTSRow removes a message's entry from the full-text index.
func deleteFTSRow(ctx context.Context, tx *sql.Tx, ftsAvailable bool, messageID int64) error {
	if !ftsAvailable {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages_fts WHERE message_id = ?`, messageID); err != nil {
		return NewError("deleteFTSRow", KindEngine, err)
	}
	return nil
}
