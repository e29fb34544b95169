package startup

import (
	"context"
	"errors"
)

// PhaseFunc is the Host-supplied body of work for one phase. It should
// respect ctx's deadline; the driver enforces the phase's declared
// timeout by cancelling ctx when it elapses.
type PhaseFunc func(ctx context.Context) error

// Run drives every registered phase in declared order, invoking body for
// each: StartPhase, then body under a context bounded by the phase's
// timeout, then CompletePhase/FailPhase/TimeOutPhase depending on outcome.
// Run stops at the first critical-phase failure; non-critical failures do
// not halt the sequence.
func Run(ctx context.Context, r *Registry, descriptors []Descriptor, body func(name string, ctx context.Context) error) error {
	for _, d := range descriptors {
		if err := r.StartPhase(d.Name); err != nil {
			return err
		}

		phaseCtx := ctx
		var cancel context.CancelFunc
		if d.Timeout > 0 {
			phaseCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		}

		err := body(d.Name, phaseCtx)
		if cancel != nil {
			cancel()
		}

		switch {
		case err == nil:
			if cerr := r.CompletePhase(d.Name); cerr != nil {
				return cerr
			}
		case errors.Is(err, context.DeadlineExceeded):
			if terr := r.TimeOutPhase(d.Name); terr != nil {
				return terr
			}
		default:
			if ferr := r.FailPhase(d.Name, err.Error()); ferr != nil {
				return ferr
			}
		}

		if d.Critical && r.IsFailed() {
			return nil
		}
	}
	return nil
}
