// Package startup implements the phase registry that drives comunicadod's
// boot sequence: ordered phases with timeouts, criticality, and a
// monotonic status lifecycle the Host reports progress from.
package startup

import (
	"fmt"
	"time"
)

// Status is a phase's position in its lifecycle. Transitions are
// monotonic: Pending -> InProgress -> {Completed | Failed | TimedOut}.
// There is no path back to an earlier status.
type Status int

const (
	Pending Status = iota
	InProgress
	Completed
	Failed
	TimedOut
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

// Terminal reports whether s is a final status; no further transition is
// legal once a phase reaches one.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed || s == TimedOut
}

// legalTransitions enumerates every allowed Status -> Status edge.
var legalTransitions = map[Status]map[Status]bool{
	Pending:    {InProgress: true},
	InProgress: {Completed: true, Failed: true, TimedOut: true},
}

func canTransition(from, to Status) bool {
	return legalTransitions[from][to]
}

const maxLogLines = 200

// Descriptor is what the Host supplies at registry construction time to
// describe one phase of the boot sequence.
type Descriptor struct {
	Name        string
	Description string
	Timeout     time.Duration
	Critical    bool
}

// Phase is a single named unit of boot work with its own status, timeout,
// criticality, and append-only bounded log. The Startup Orchestrator owns
// every Phase; nothing outside this package mutates one directly.
type Phase struct {
	Descriptor
	Status    Status
	StartedAt time.Time
	Duration  time.Duration
	Err       string
	Log       []string
}

func newPhase(d Descriptor) *Phase {
	return &Phase{Descriptor: d, Status: Pending}
}

func (p *Phase) appendLog(line string) {
	p.Log = append(p.Log, line)
	if len(p.Log) > maxLogLines {
		p.Log = p.Log[len(p.Log)-maxLogLines:]
	}
}

func (p *Phase) transition(to Status) error {
	if !canTransition(p.Status, to) {
		return fmt.Errorf("phase %q: invalid transition %s -> %s", p.Name, p.Status, to)
	}
	p.Status = to
	return nil
}
