package keybind

// DefaultActions returns the built-in action catalog every Table should
// know about before any binding file is loaded. Binding files reference
// actions by id; an id outside this catalog (and whatever a plugin later
// registers) is rejected by Import rather than silently accepted.
func DefaultActions() []Action {
	return []Action{
		{ID: "archive", DisplayName: "Archive", AllowedContexts: []Context{Global}},
		{ID: "delete", DisplayName: "Delete", AllowedContexts: []Context{Global}},
		{ID: "mark_read", DisplayName: "Mark Read", AllowedContexts: []Context{Global}},
		{ID: "mark_unread", DisplayName: "Mark Unread", AllowedContexts: []Context{Global}},
		{ID: "reply", DisplayName: "Reply", AllowedContexts: []Context{Email}},
		{ID: "reply_all", DisplayName: "Reply All", AllowedContexts: []Context{Email}},
		{ID: "forward", DisplayName: "Forward", AllowedContexts: []Context{Email}},
		{ID: "compose", DisplayName: "Compose", AllowedContexts: []Context{Global}},
		{ID: "save", DisplayName: "Save", AllowedContexts: []Context{Global}},
		{ID: "save_as", DisplayName: "Save As", AllowedContexts: []Context{Compose}},
		{ID: "send", DisplayName: "Send", AllowedContexts: []Context{Compose}},
		{ID: "search", DisplayName: "Search", AllowedContexts: []Context{Global}},
		{ID: "next_conversation", DisplayName: "Next Conversation", AllowedContexts: []Context{Global}},
		{ID: "previous_conversation", DisplayName: "Previous Conversation", AllowedContexts: []Context{Global}},
		{ID: "quit", DisplayName: "Quit", AllowedContexts: []Context{Global}},
	}
}

// NewTableWithDefaults builds a Table with DefaultActions already
// registered, so a subsequently imported binding file can resolve every
// action_id it names.
func NewTableWithDefaults() *Table {
	t := NewTable()
	for _, a := range DefaultActions() {
		t.RegisterAction(a)
	}
	return t
}
