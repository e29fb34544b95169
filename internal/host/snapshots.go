// Package host is the thin adapter layer an external UI drives: it
// publishes immutable snapshots of core state and accepts commands.
// The snapshots are copies; the Host itself still exposes the store,
// search engine, startup registry, and binding table as exported fields.
package host

import (
	"time"

	"github.com/olafkfreund/comunicado-sub000/internal/keybind"
	"github.com/olafkfreund/comunicado-sub000/internal/search"
	"github.com/olafkfreund/comunicado-sub000/internal/startup"
	"github.com/olafkfreund/comunicado-sub000/internal/store"
)

// ConversationListPage is an immutable page of conversations.
type ConversationListPage struct {
	Conversations []store.Conversation
}

// MessageListPage is an immutable page of messages within one
// conversation.
type MessageListPage struct {
	ConversationID int64
	Messages       []store.Message
}

// StartupProgressSnapshot is an immutable view of boot progress.
type StartupProgressSnapshot struct {
	Phases                    []startup.Snapshot
	OverallProgressPercentage float64
	CurrentPhase              string
	EstimatedTimeRemaining    *time.Duration
	IsComplete                bool
	IsVisible                 bool
	IsFailed                  bool
	ErrorStates               []string
}

// BindingResolutionSnapshot is the outcome of dispatching one key press.
type BindingResolutionSnapshot struct {
	Context  keybind.Context
	Key      keybind.KeyCombo
	Resolved bool
	ActionID string
}

// SearchResultPage is an immutable page of ranked search results.
type SearchResultPage struct {
	Query   string
	Results []search.Result
}
