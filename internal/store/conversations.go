package store

import (
	"context"
	"fmt"
	"time"
)

// GetConversations returns conversations matching q, ordered by most
// recent activity first, with participants eagerly loaded.
func (s *Store) GetConversations(ctx context.Context, q ConversationQuery) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := `1 = 1`
	args := []any{}

	if q.ParticipantSubstring != "" {
		where += ` AND c.id IN (
			SELECT conversation_id FROM conversation_participants
			WHERE address LIKE ? ESCAPE '\' OR display_name LIKE ? ESCAPE '\'
		)`
		pattern := "%" + escapeLike(q.ParticipantSubstring) + "%"
		args = append(args, pattern, pattern)
	}
	if q.SentAfter != nil {
		where += ` AND c.last_message_at >= ?`
		args = append(args, *q.SentAfter)
	}
	if q.SentBefore != nil {
		where += ` AND c.last_message_at <= ?`
		args = append(args, *q.SentBefore)
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.thread_id, c.provider, c.display_name, c.last_message_at, c.unread_count, c.archived, c.created_at, c.updated_at
		FROM conversations c WHERE %s ORDER BY c.last_message_at DESC`, where)
	query, args = applyLimitOffset(query, args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewError("GetConversations", KindEngine, err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		var provider, archived int
		if err := rows.Scan(&c.ID, &c.ThreadID, &provider, &c.DisplayName, &c.LastMessageTimestamp, &c.UnreadCount, &archived, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, NewError("GetConversations", KindEngine, err)
		}
		c.Provider = Provider(provider)
		c.Archived = archived != 0
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, NewError("GetConversations", KindEngine, err)
	}

	for i := range conversations {
		participants, err := s.getParticipants(ctx, conversations[i].ID)
		if err != nil {
			return nil, err
		}
		conversations[i].Participants = participants
	}

	return conversations, nil
}

func (s *Store) getParticipants(ctx context.Context, conversationID int64) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, display_name, is_primary FROM conversation_participants
		WHERE conversation_id = ? ORDER BY is_primary DESC, address ASC
	`, conversationID)
	if err != nil {
		return nil, NewError("getParticipants", KindEngine, err)
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		var primary int
		if err := rows.Scan(&p.Address, &p.DisplayName, &primary); err != nil {
			return nil, NewError("getParticipants", KindEngine, err)
		}
		p.Primary = primary != 0
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ArchiveConversation toggles a conversation's archived flag.
func (s *Store) ArchiveConversation(ctx context.Context, id int64, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET archived = ?, updated_at = ? WHERE id = ?`, boolToInt(archived), time.Now().UnixMilli(), id)
	if err != nil {
		return NewError("ArchiveConversation", KindEngine, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewError("ArchiveConversation", KindEngine, err)
	}
	if n == 0 {
		return NewError("ArchiveConversation", KindNotFound, fmt.Errorf("conversation %d not found", id))
	}
	return nil
}
