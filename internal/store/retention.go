package store

import (
	"context"
	"database/sql"
	"os"
	"time"
)

const dayMillis = 86_400_000

// CleanupOldMessages deletes messages older than retentionDays, then any
// conversation left with no messages, then compacts the database file.
// Returns the number of messages deleted.
func (s *Store) CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UnixMilli() - int64(retentionDays)*dayMillis

	var deleted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM messages WHERE sent_at < ?`, cutoff)
		if err != nil {
			return NewError("CleanupOldMessages", KindEngine, err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return NewError("CleanupOldMessages", KindEngine, err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return NewError("CleanupOldMessages", KindEngine, err)
		}
		rows.Close()

		for _, id := range ids {
			if err := deleteFTSRow(ctx, tx, s.ftsAvailable, id); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE sent_at < ?`, cutoff)
		if err != nil {
			return NewError("CleanupOldMessages", KindEngine, err)
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return NewError("CleanupOldMessages", KindEngine, err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM conversations
			WHERE id NOT IN (SELECT DISTINCT conversation_id FROM messages)
		`); err != nil {
			return NewError("CleanupOldMessages", KindEngine, err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return deleted, NewError("CleanupOldMessages", KindEngine, err)
	}

	return deleted, nil
}

// GetStats summarizes the store's contents.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`)
	if err := row.Scan(&stats.ConversationCount); err != nil {
		return Stats{}, NewError("GetStats", KindEngine, err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`)
	if err := row.Scan(&stats.MessageCount); err != nil {
		return Stats{}, NewError("GetStats", KindEngine, err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE unread_count > 0`)
	if err := row.Scan(&stats.UnreadConversationCount); err != nil {
		return Stats{}, NewError("GetStats", KindEngine, err)
	}

	var oldest, newest sql.NullInt64
	row = s.db.QueryRowContext(ctx, `SELECT MIN(sent_at), MAX(sent_at) FROM messages`)
	if err := row.Scan(&oldest, &newest); err != nil {
		return Stats{}, NewError("GetStats", KindEngine, err)
	}
	if oldest.Valid {
		v := oldest.Int64
		stats.OldestMessageTimestamp = &v
	}
	if newest.Valid {
		v := newest.Int64
		stats.NewestMessageTimestamp = &v
	}

	if s.dsn != ":memory:" {
		if info, err := os.Stat(s.dsn); err == nil {
			stats.DatabaseSizeBytes = info.Size()
		}
	}

	return stats, nil
}
