package store

import (
	"context"
	"strings"
)

// SearchCandidates returns messages eligible for ranking by the search
// engine: those whose full-text index (or, absent FTS5, whose subject,
// body, and sender columns via substring) match matchExpr, newest first,
// capped at limit. sub_id is carried on Message opaquely and never
// consulted here.
//
// matchExpr is an FTS5 MATCH expression when FTSAvailable() is true;
// otherwise it is treated as a plain substring to LIKE against every
// indexed column, combined with OR.
func (s *Store) SearchCandidates(ctx context.Context, matchExpr string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	if s.ftsAvailable {
		return s.searchViaFTS(ctx, matchExpr, limit)
	}
	return s.searchViaLike(ctx, matchExpr, limit)
}

func (s *Store) searchViaFTS(ctx context.Context, matchExpr string, limit int) ([]Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.subject, m.body, m.sender_name, m.sender_address, m.kind, m.read, m.sent_at, m.received_at, m.sub_id, m.created_at, m.updated_at
		FROM messages m
		JOIN messages_fts f ON f.message_id = m.id
		WHERE messages_fts MATCH ?
		ORDER BY m.sent_at DESC LIMIT ?`
	return s.scanMessages(ctx, query, []any{matchExpr, limit})
}

func (s *Store) searchViaLike(ctx context.Context, term string, limit int) ([]Message, error) {
	pattern := "%" + escapeLike(strings.Trim(term, `"`)) + "%"
	query := `
		SELECT id, conversation_id, subject, body, sender_name, sender_address, kind, read, sent_at, received_at, sub_id, created_at, updated_at
		FROM messages
		WHERE (subject LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR sender_name LIKE ? ESCAPE '\' OR sender_address LIKE ? ESCAPE '\')
		ORDER BY sent_at DESC LIMIT ?`
	return s.scanMessages(ctx, query, []any{pattern, pattern, pattern, pattern, limit})
}

func (s *Store) scanMessages(ctx context.Context, query string, args []any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewError("SearchCandidates", KindEngine, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var kind, read int
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Subject, &m.Body, &m.SenderName, &m.SenderAddress, &kind, &read, &m.SentAt, &m.ReceivedAt, &m.SubID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, NewError("SearchCandidates", KindEngine, err)
		}
		m.Kind = MessageKind(kind)
		m.Read = read != 0
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
