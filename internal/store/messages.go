package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StoreMessage persists msg under the conversation identified by threadID,
// creating the conversation (and its participants) if this is the first
// message seen for that thread. The whole operation is one transaction:
// on any failure the store is left exactly as it was before the call.
// Returns the id of the containing conversation.
func (s *Store) StoreMessage(ctx context.Context, threadID string, provider Provider, participants []Participant, msg Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var conversationID int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		conversationID, err = ensureConversation(ctx, tx, threadID, provider, participants, msg.CreatedAt)
		if err != nil {
			return err
		}

		if err := upsertMessageRow(ctx, tx, conversationID, msg); err != nil {
			return err
		}

		for _, a := range msg.Attachments {
			if err := insertAttachment(ctx, tx, msg.ID, a); err != nil {
				return err
			}
		}

		if err := updateConversationAfterMessage(ctx, tx, conversationID, msg); err != nil {
			return err
		}

		return upsertFTSRow(ctx, tx, s.ftsAvailable, msg)
	})
	if err != nil {
		return 0, err
	}
	return conversationID, nil
}

func ensureConversation(ctx context.Context, tx *sql.Tx, threadID string, provider Provider, participants []Participant, now int64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE thread_id = ?`, threadID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, NewError("ensureConversation", KindEngine, err)
	}

	conv, cerr := NewConversation(threadID, provider, participants, now)
	if cerr != nil {
		return 0, cerr
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (thread_id, provider, display_name, last_message_at, unread_count, archived, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, 0, ?, ?)
	`, conv.ThreadID, int(conv.Provider), conv.DisplayName, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return 0, NewError("ensureConversation", KindEngine, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, NewError("ensureConversation", KindEngine, err)
	}

	for _, p := range conv.Participants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, address, display_name, is_primary)
			VALUES (?, ?, ?, ?)
		`, id, p.Address, p.DisplayName, boolToInt(p.Primary))
		if err != nil {
			return 0, NewError("ensureConversation", KindEngine, err)
		}
	}

	return id, nil
}

func upsertMessageRow(ctx context.Context, tx *sql.Tx, conversationID int64, msg Message) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, subject, body, sender_name, sender_address, kind, read, sent_at, received_at, sub_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			subject = excluded.subject,
			body = excluded.body,
			sender_name = excluded.sender_name,
			sender_address = excluded.sender_address,
			kind = excluded.kind,
			read = excluded.read,
			sent_at = excluded.sent_at,
			received_at = excluded.received_at,
			sub_id = excluded.sub_id,
			updated_at = excluded.updated_at
	`, msg.ID, conversationID, msg.Subject, msg.Body, msg.SenderName, msg.SenderAddress, int(msg.Kind), boolToInt(msg.Read),
		msg.SentAt, msg.ReceivedAt, msg.SubID, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return NewError("StoreMessage", KindEngine, err)
	}
	return nil
}

func insertAttachment(ctx context.Context, tx *sql.Tx, messageID int64, a Attachment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO message_attachments (message_id, filename, mime_type, byte_length, blob, url, download_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, messageID, a.Filename, a.MimeType, a.ByteLength, a.Blob, a.URL, boolToInt(a.DownloadComplete))
	if err != nil {
		return NewError("StoreMessage", KindEngine, err)
	}
	return nil
}

func updateConversationAfterMessage(ctx context.Context, tx *sql.Tx, conversationID int64, msg Message) error {
	unreadDelta := 0
	if !msg.Read {
		unreadDelta = 1
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_at = MAX(last_message_at, ?),
			unread_count = unread_count + ?,
			updated_at = ?
		WHERE id = ?
	`, msg.SentAt, unreadDelta, msg.UpdatedAt, conversationID)
	if err != nil {
		return NewError("StoreMessage", KindEngine, err)
	}
	return nil
}

// GetMessages returns the messages of a conversation matching q, ordered by
// sent timestamp ascending, with attachments eagerly loaded.
func (s *Store) GetMessages(ctx context.Context, conversationID int64, q MessageQuery) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := `conversation_id = ?`
	args := []any{conversationID}

	if q.Kind != nil {
		where += ` AND kind = ?`
		args = append(args, int(*q.Kind))
	}
	if q.Read != nil {
		where += ` AND read = ?`
		args = append(args, boolToInt(*q.Read))
	}
	if q.TextSubstring != "" {
		where += ` AND body LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(q.TextSubstring)+"%")
	}
	if q.SentAfter != nil {
		where += ` AND sent_at >= ?`
		args = append(args, *q.SentAfter)
	}
	if q.SentBefore != nil {
		where += ` AND sent_at <= ?`
		args = append(args, *q.SentBefore)
	}

	query := fmt.Sprintf(`
		SELECT id, conversation_id, subject, body, sender_name, sender_address, kind, read, sent_at, received_at, sub_id, created_at, updated_at
		FROM messages WHERE %s ORDER BY sent_at ASC`, where)
	query, args = applyLimitOffset(query, args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewError("GetMessages", KindEngine, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var kind, read int
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Subject, &m.Body, &m.SenderName, &m.SenderAddress, &kind, &read, &m.SentAt, &m.ReceivedAt, &m.SubID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, NewError("GetMessages", KindEngine, err)
		}
		m.Kind = MessageKind(kind)
		m.Read = read != 0
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, NewError("GetMessages", KindEngine, err)
	}

	for i := range messages {
		attachments, err := s.getAttachments(ctx, messages[i].ID)
		if err != nil {
			return nil, err
		}
		messages[i].Attachments = attachments
	}

	return messages, nil
}

// GetAttachments returns the attachments of a message ordered by insertion.
func (s *Store) GetAttachments(ctx context.Context, messageID int64) ([]Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAttachments(ctx, messageID)
}

func (s *Store) getAttachments(ctx context.Context, messageID int64) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, mime_type, byte_length, blob, url, download_complete
		FROM message_attachments WHERE message_id = ? ORDER BY id ASC
	`, messageID)
	if err != nil {
		return nil, NewError("GetAttachments", KindEngine, err)
	}
	defer rows.Close()

	var attachments []Attachment
	for rows.Next() {
		var a Attachment
		var downloadComplete int
		var url sql.NullString
		if err := rows.Scan(&a.ID, &a.Filename, &a.MimeType, &a.ByteLength, &a.Blob, &url, &downloadComplete); err != nil {
			return nil, NewError("GetAttachments", KindEngine, err)
		}
		a.URL = url.String
		a.DownloadComplete = downloadComplete != 0
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// MarkMessageRead sets id's read flag and decrements its conversation's
// unread_count by 1 iff the row was previously unread. Saturates at 0.
func (s *Store) MarkMessageRead(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var conversationID int64
		var wasRead int
		err := tx.QueryRowContext(ctx, `SELECT conversation_id, read FROM messages WHERE id = ?`, id).Scan(&conversationID, &wasRead)
		if err == sql.ErrNoRows {
			return NewError("MarkMessageRead", KindNotFound, err)
		}
		if err != nil {
			return NewError("MarkMessageRead", KindEngine, err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE messages SET read = 1, updated_at = ? WHERE id = ?`, time.Now().UnixMilli(), id); err != nil {
			return NewError("MarkMessageRead", KindEngine, err)
		}

		if wasRead == 0 {
			if _, err := tx.ExecContext(ctx, `
				UPDATE conversations SET unread_count = MAX(unread_count - 1, 0) WHERE id = ?
			`, conversationID); err != nil {
				return NewError("MarkMessageRead", KindEngine, err)
			}
		}
		return nil
	})
}

// MarkConversationRead sets every message in the conversation to read and
// zeroes its unread_count.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE messages SET read = 1, updated_at = ? WHERE conversation_id = ? AND read = 0
		`, time.Now().UnixMilli(), conversationID); err != nil {
			return NewError("MarkConversationRead", KindEngine, err)
		}
		res, err := tx.ExecContext(ctx, `UPDATE conversations SET unread_count = 0 WHERE id = ?`, conversationID)
		if err != nil {
			return NewError("MarkConversationRead", KindEngine, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return NewError("MarkConversationRead", KindNotFound, fmt.Errorf("conversation %d not found", conversationID))
		}
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	r := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' || c == '_' || c == '\\' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(r)
}

func applyLimitOffset(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET ?`
			args = append(args, offset)
		}
	}
	return query, args
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error (including fn panicking mid-way, which propagates).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewError("withTx", KindEngine, err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return NewError("withTx", KindEngine, err)
	}
	return nil
}
