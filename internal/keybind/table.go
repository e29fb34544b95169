package keybind

import (
	"fmt"
	"sync"

	"github.com/olafkfreund/comunicado-sub000/internal/store"
)

// Table is the engine's binding table: an action registry plus every
// binding keyed by its id. The candidates for a (context, key-combination)
// pair are collected by scanning all bindings. Only Table's methods
// mutate it.
type Table struct {
	mu       sync.RWMutex
	actions  map[string]Action
	bindings map[string]*Binding
	nextSeq  int
	capture  bool
}

// NewTable constructs an empty Table.
func NewTable() *Table {
	return &Table{
		actions:  make(map[string]Action),
		bindings: make(map[string]*Binding),
	}
}

// RegisterAction adds or replaces an action's metadata.
func (t *Table) RegisterAction(a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions[a.ID] = a
}

func (t *Table) candidates(ctx Context, key KeyCombo) []*Binding {
	var out []*Binding
	for _, b := range t.bindings {
		if !b.Enabled {
			continue
		}
		if b.Key != key {
			continue
		}
		if b.Context == ctx || b.Context == Global {
			out = append(out, b)
		}
	}
	return out
}

// best picks the winning candidate per the resolution rule: highest
// Priority; ties broken by context-specific over Global, then earliest
// registered.
func best(candidates []*Binding, ctx Context) *Binding {
	if len(candidates) == 0 {
		return nil
	}
	winner := candidates[0]
	for _, c := range candidates[1:] {
		if betterThan(c, winner, ctx) {
			winner = c
		}
	}
	return winner
}

func betterThan(a, b *Binding, ctx Context) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	aSpecific := a.Context == ctx
	bSpecific := b.Context == ctx
	if aSpecific != bSpecific {
		return aSpecific
	}
	return a.order < b.order
}

// Resolve returns the winning Binding for key in context ctx, or
// (nil, false) if no enabled binding matches.
func (t *Table) Resolve(ctx Context, key KeyCombo) (*Binding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	winner := best(t.candidates(ctx, key), ctx)
	if winner == nil {
		return nil, false
	}
	cp := *winner
	return &cp, true
}

// AddBinding inserts b. If the resolution rule would produce a different
// winner for (context, key-combination) at the same priority as an
// existing binding, the insert is rejected with a Conflict error wrapping
// both bindings; the caller must call ResolveConflict to proceed.
func (t *Table) AddBinding(b Binding) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.bindings[b.ID]; exists {
		return store.NewError("AddBinding", store.KindDuplicate, fmt.Errorf("binding %q already exists", b.ID))
	}

	for _, existing := range t.candidates(b.Context, b.Key) {
		if existing.Priority == b.Priority {
			conflict := &Conflict{Existing: existing, New: &b}
			return store.NewError("AddBinding", store.KindConflict, conflict)
		}
	}

	b.order = t.nextSeq
	t.nextSeq++
	stored := b
	t.bindings[b.ID] = &stored
	return nil
}

// RemoveBinding deletes id from the table.
func (t *Table) RemoveBinding(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.bindings[id]; !ok {
		return store.NewError("RemoveBinding", store.KindNotFound, fmt.Errorf("binding %q not found", id))
	}
	delete(t.bindings, id)
	return nil
}

// SetEnabled toggles a binding's enabled flag.
func (t *Table) SetEnabled(id string, enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.bindings[id]
	if !ok {
		return store.NewError("SetEnabled", store.KindNotFound, fmt.Errorf("binding %q not found", id))
	}
	b.Enabled = enabled
	return nil
}

// ResolveConflict applies choice to settle an AddBinding Conflict,
// mutating the table according to the chosen strategy.
func (t *Table) ResolveConflict(conflict *Conflict, choice ConflictResolutionChoice) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch choice.Kind {
	case KeepExisting:
		return nil
	case UseNew:
		delete(t.bindings, conflict.Existing.ID)
		nb := *conflict.New
		nb.order = t.nextSeq
		t.nextSeq++
		t.bindings[nb.ID] = &nb
		return nil
	case DisableBoth:
		if existing, ok := t.bindings[conflict.Existing.ID]; ok {
			existing.Enabled = false
		}
		nb := *conflict.New
		nb.Enabled = false
		nb.order = t.nextSeq
		t.nextSeq++
		t.bindings[nb.ID] = &nb
		return nil
	case ChangePriority:
		nb := *conflict.New
		nb.Priority = choice.NewPriority
		nb.order = t.nextSeq
		t.nextSeq++
		t.bindings[nb.ID] = &nb
		return nil
	case ChangeKey:
		nb := *conflict.New
		nb.Key = choice.NewKey
		nb.order = t.nextSeq
		t.nextSeq++
		t.bindings[nb.ID] = &nb
		return nil
	default:
		return store.NewError("ResolveConflict", store.KindMalformed, fmt.Errorf("unknown conflict resolution choice %d", choice.Kind))
	}
}

// ResetToDefaults drops every User and Plugin layer binding, leaving
// System and Default bindings untouched.
func (t *Table) ResetToDefaults() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, b := range t.bindings {
		if b.Priority == PriorityUser || b.Priority == PriorityPlugin {
			delete(t.bindings, id)
		}
	}
}

// StartCapture enters one-shot capture mode: the next Feed call returns
// the observed KeyCombo instead of resolving it against the table.
func (t *Table) StartCapture() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.capture = true
}

// Feed reports whether the table is capturing; if so it consumes capture
// mode and returns key unresolved. Otherwise the caller should resolve
// key normally via Resolve.
func (t *Table) Feed(key KeyCombo) (KeyCombo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.capture {
		return KeyCombo{}, false
	}
	t.capture = false
	return key, true
}

// Bindings returns a snapshot of every binding currently in the table.
func (t *Table) Bindings() []Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Binding, 0, len(t.bindings))
	for _, b := range t.bindings {
		out = append(out, *b)
	}
	return out
}
