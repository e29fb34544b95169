package host

import (
	"context"

	"github.com/olafkfreund/comunicado-sub000/internal/keybind"
	"github.com/olafkfreund/comunicado-sub000/internal/search"
	"github.com/olafkfreund/comunicado-sub000/internal/startup"
	"github.com/olafkfreund/comunicado-sub000/internal/store"
)

// Host wires together the Message Store, Search Engine, Startup
// Orchestrator, and Binding Engine behind the command/snapshot surface an
// external UI consumes. The UI holds only Host and the snapshots it
// returns; it never reaches into the components directly.
type Host struct {
	Store    *store.Store
	Search   *search.Engine
	Startup  *startup.Registry
	Bindings *keybind.Table
}

// NewHost constructs a Host over an already-open Store and an already-
// built startup Registry. A Search engine is derived from s, and the
// Bindings table starts out with the built-in action catalog registered
// so a subsequently imported binding file can resolve its action ids.
func NewHost(s *store.Store, reg *startup.Registry) *Host {
	return &Host{
		Store:    s,
		Search:   search.NewEngine(s),
		Startup:  reg,
		Bindings: keybind.NewTableWithDefaults(),
	}
}

// GetConversations publishes a ConversationListPage snapshot.
func (h *Host) GetConversations(ctx context.Context, q store.ConversationQuery) (ConversationListPage, error) {
	conversations, err := h.Store.GetConversations(ctx, q)
	if err != nil {
		return ConversationListPage{}, err
	}
	return ConversationListPage{Conversations: conversations}, nil
}

// GetMessages publishes a MessageListPage snapshot for one conversation.
func (h *Host) GetMessages(ctx context.Context, conversationID int64, q store.MessageQuery) (MessageListPage, error) {
	messages, err := h.Store.GetMessages(ctx, conversationID, q)
	if err != nil {
		return MessageListPage{}, err
	}
	return MessageListPage{ConversationID: conversationID, Messages: messages}, nil
}

// ToggleArchived flips a conversation's archived flag.
func (h *Host) ToggleArchived(ctx context.Context, conversationID int64) error {
	conversations, err := h.Store.GetConversations(ctx, store.ConversationQuery{})
	if err != nil {
		return err
	}
	archived := false
	for _, c := range conversations {
		if c.ID == conversationID {
			archived = c.Archived
			break
		}
	}
	return h.Store.ArchiveConversation(ctx, conversationID, !archived)
}

// MarkMessageRead marks a single message read.
func (h *Host) MarkMessageRead(ctx context.Context, messageID int64) error {
	return h.Store.MarkMessageRead(ctx, messageID)
}

// MarkConversationRead marks every message in a conversation read.
func (h *Host) MarkConversationRead(ctx context.Context, conversationID int64) error {
	return h.Store.MarkConversationRead(ctx, conversationID)
}

// RunSearch parses and executes a query, publishing a SearchResultPage
// snapshot.
func (h *Host) RunSearch(ctx context.Context, mode search.Mode, raw string, limit int) (SearchResultPage, error) {
	q, err := search.ParseQuery(mode, raw)
	if err != nil {
		return SearchResultPage{}, err
	}
	results, err := h.Search.Search(ctx, q, limit)
	if err != nil {
		return SearchResultPage{}, err
	}
	return SearchResultPage{Query: raw, Results: results}, nil
}

// StartupProgress publishes the current boot-progress snapshot.
func (h *Host) StartupProgress() StartupProgressSnapshot {
	remaining, ok := h.Startup.EstimatedTimeRemaining()
	snap := StartupProgressSnapshot{
		Phases:                    h.Startup.Phases(),
		OverallProgressPercentage: h.Startup.OverallProgressPercentage(),
		CurrentPhase:              h.Startup.CurrentPhase(),
		IsComplete:                h.Startup.IsComplete(),
		IsVisible:                 h.Startup.IsVisible(),
		IsFailed:                  h.Startup.IsFailed(),
		ErrorStates:               h.Startup.ErrorStates(),
	}
	if ok {
		snap.EstimatedTimeRemaining = &remaining
	}
	return snap
}

// DispatchKey resolves a pressed key in a context and publishes the
// outcome; it never dispatches the action itself, leaving that to the
// external UI's own command loop.
func (h *Host) DispatchKey(ctx keybind.Context, key keybind.KeyCombo) BindingResolutionSnapshot {
	b, ok := h.Bindings.Resolve(ctx, key)
	snap := BindingResolutionSnapshot{Context: ctx, Key: key, Resolved: ok}
	if ok {
		snap.ActionID = b.ActionID
	}
	return snap
}

// CleanupOldMessages runs store retention and returns the deleted count.
func (h *Host) CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error) {
	return h.Store.CleanupOldMessages(ctx, retentionDays)
}

// Stats publishes the store's summary statistics.
func (h *Host) Stats(ctx context.Context) (store.Stats, error) {
	return h.Store.GetStats(ctx)
}
