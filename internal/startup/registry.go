package startup

import (
	"fmt"
	"sync"
	"time"

	"github.com/olafkfreund/comunicado-sub000/internal/store"
)

// Registry holds the boot sequence's phases in declared order and tracks
// their progress. The orchestrator is single-owner: only the methods on
// Registry mutate a Phase's state.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	phases map[string]*Phase
}

// NewRegistry builds a Registry from an ordered list of descriptors.
// Duplicate names are rejected with a Duplicate error.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{phases: make(map[string]*Phase, len(descriptors))}
	for _, d := range descriptors {
		if _, exists := r.phases[d.Name]; exists {
			return nil, store.NewError("NewRegistry", store.KindDuplicate, fmt.Errorf("phase %q already registered", d.Name))
		}
		r.phases[d.Name] = newPhase(d)
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

func (r *Registry) phase(name string) (*Phase, error) {
	p, ok := r.phases[name]
	if !ok {
		return nil, store.NewError("startup", store.KindNotFound, fmt.Errorf("phase %q not registered", name))
	}
	return p, nil
}

// StartPhase transitions name from Pending to InProgress, recording the
// start time.
func (r *Registry) StartPhase(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.phase(name)
	if err != nil {
		return err
	}
	if err := p.transition(InProgress); err != nil {
		return store.NewError("StartPhase", store.KindInvalidTransition, err)
	}
	p.StartedAt = time.Now()
	return nil
}

// CompletePhase transitions name from InProgress to Completed, recording
// its duration.
func (r *Registry) CompletePhase(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.phase(name)
	if err != nil {
		return err
	}
	if err := p.transition(Completed); err != nil {
		return store.NewError("CompletePhase", store.KindInvalidTransition, err)
	}
	p.Duration = time.Since(p.StartedAt)
	return nil
}

// FailPhase transitions name from InProgress to Failed, recording msg as
// the phase's error and appending it to the phase log.
func (r *Registry) FailPhase(name string, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.phase(name)
	if err != nil {
		return err
	}
	if err := p.transition(Failed); err != nil {
		return store.NewError("FailPhase", store.KindInvalidTransition, err)
	}
	p.Duration = time.Since(p.StartedAt)
	p.Err = msg
	p.appendLog(msg)
	return nil
}

// TimeOutPhase transitions name from InProgress to TimedOut.
func (r *Registry) TimeOutPhase(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.phase(name)
	if err != nil {
		return err
	}
	if err := p.transition(TimedOut); err != nil {
		return store.NewError("TimeOutPhase", store.KindInvalidTransition, err)
	}
	p.Duration = time.Since(p.StartedAt)
	return nil
}

// AppendLog appends line to name's bounded log buffer without changing its
// status.
func (r *Registry) AppendLog(name, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.phase(name)
	if err != nil {
		return err
	}
	p.appendLog(line)
	return nil
}

// Snapshot is an immutable copy of a Phase, safe to hand across goroutine
// and await-point boundaries without sharing the Registry's internals.
type Snapshot struct {
	Name        string
	Description string
	Status      Status
	Critical    bool
	Duration    time.Duration
	Err         string
	Log         []string
}

// Phases returns an ordered snapshot of every registered phase.
func (r *Registry) Phases() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.order))
	for _, name := range r.order {
		p := r.phases[name]
		out = append(out, Snapshot{
			Name:        p.Name,
			Description: p.Description,
			Status:      p.Status,
			Critical:    p.Critical,
			Duration:    p.Duration,
			Err:         p.Err,
			Log:         append([]string(nil), p.Log...),
		})
	}
	return out
}

// OverallProgressPercentage returns 100*(completed/total), counting failed
// and timed-out non-critical phases as done for progress purposes.
func (r *Registry) OverallProgressPercentage() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return 100
	}
	done := 0
	for _, name := range r.order {
		p := r.phases[name]
		if p.Status == Completed {
			done++
			continue
		}
		if (p.Status == Failed || p.Status == TimedOut) && !p.Critical {
			done++
		}
	}
	return 100 * float64(done) / float64(len(r.order))
}

// CurrentPhase returns the name of the first InProgress phase, else the
// next Pending phase, else "" once every phase is terminal.
func (r *Registry) CurrentPhase() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if r.phases[name].Status == InProgress {
			return name
		}
	}
	for _, name := range r.order {
		if r.phases[name].Status == Pending {
			return name
		}
	}
	return ""
}

// EstimatedTimeRemaining is the mean duration of already-completed phases
// times the count of remaining (non-terminal) phases. Returns false until
// at least one phase has completed.
func (r *Registry) EstimatedTimeRemaining() (time.Duration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var totalDuration time.Duration
	completedCount := 0
	remaining := 0
	for _, name := range r.order {
		p := r.phases[name]
		if p.Status == Completed {
			totalDuration += p.Duration
			completedCount++
		}
		if !p.Status.Terminal() {
			remaining++
		}
	}
	if completedCount == 0 {
		return 0, false
	}
	mean := totalDuration / time.Duration(completedCount)
	return mean * time.Duration(remaining), true
}

// IsComplete reports whether every phase has reached a terminal status.
func (r *Registry) IsComplete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if !r.phases[name].Status.Terminal() {
			return false
		}
	}
	return true
}

// IsVisible reports whether the Host should still render the progress
// screen: true until every phase is terminal.
func (r *Registry) IsVisible() bool {
	return !r.IsComplete()
}

// IsFailed reports whether any critical phase has failed or timed out.
func (r *Registry) IsFailed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		p := r.phases[name]
		if p.Critical && (p.Status == Failed || p.Status == TimedOut) {
			return true
		}
	}
	return false
}

// ErrorStates returns the names of every phase currently in Failed or
// TimedOut, critical or not.
func (r *Registry) ErrorStates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, name := range r.order {
		if s := r.phases[name].Status; s == Failed || s == TimedOut {
			names = append(names, name)
		}
	}
	return names
}
