package job

import (
	"context"
	"time"

	"github.com/dpe27/restpoll/internal/dlq"
	"github.com/dpe27/restpoll/internal/poll"
	"github.com/dpe27/restpoll/internal/state"
	"github.com/dpe27/restpoll/internal/taskerr"
	"github.com/dpe27/restpoll/pkg/log"
)

type (
	// Cycler runs one poll cycle. *poll.Engine implements it.
	Cycler interface {
		Cycle(ctx context.Context, task poll.Task, st *poll.ExecutionState, now time.Time) poll.Outcome
	}

	FailureQueue interface {
		Push(ctx context.Context, entry *dlq.Entry) error
	}

	CycleObserver interface {
		ObserveCycle(phase, kind string)
	}
)

// Runner runs single cycles of a job and owns the persistence around them:
// state is saved while a run polls and removed once it ends.
type Runner struct {
	engine   Cycler
	store    state.Store
	queue    FailureQueue
	observer CycleObserver
	logger   *log.Logger
	loc      *time.Location
	now      func() time.Time
}

type RunnerOption func(*Runner)

// WithFailureQueue sends failed runs to q.
func WithFailureQueue(q FailureQueue) RunnerOption {
	return func(r *Runner) { r.queue = q }
}

func WithObserver(o CycleObserver) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

func WithLocation(loc *time.Location) RunnerOption {
	return func(r *Runner) { r.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(engine Cycler, store state.Store, logger *log.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = log.With()
	}
	r := &Runner{
		engine: engine,
		store:  store,
		logger: logger.With("service", "runner"),
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunCycle runs the next cycle of run runID of j. The returned error only
// reports persistence failures; task failures are in the outcome.
func (r *Runner) RunCycle(ctx context.Context, j *HttpJob, runID string) (poll.Outcome, error) {
	ctx = log.AddLogValToCtx(ctx, "job", j.Name)
	ctx = log.AddLogValToCtx(ctx, "run_id", runID)
	key := state.Key(j.Name, runID)

	prev, err := r.store.Load(ctx, key)
	if err != nil {
		return poll.Outcome{}, err
	}

	r.logger.Info(ctx, "Running cycle", "method", j.Method, "path", j.Path, "first", prev == nil)
	out := r.engine.Cycle(ctx, j.Task(), prev, r.now().In(r.loc))
	if r.observer != nil {
		kind := ""
		if out.Phase == poll.PhaseFailed {
			kind = taskerr.Name(out.Err)
		}
		r.observer.ObserveCycle(string(out.Phase), kind)
	}

	switch out.Phase {
	case poll.PhasePolling:
		if err := r.store.Save(ctx, key, *out.State); err != nil {
			return out, err
		}
		r.logger.Info(ctx, "Run still polling", "attempts", out.State.Attempts, "retry_after", out.RetryAfter)
		return out, nil

	case poll.PhaseFailed:
		r.report(ctx, j, runID, out)
	default:
		r.logger.Info(ctx, "Run completed", "status_code", out.Outputs.ResponseStatus)
	}

	if prev != nil {
		if err := r.store.Delete(ctx, key); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (r *Runner) report(ctx context.Context, j *HttpJob, runID string, out poll.Outcome) {
	r.logger.Error(ctx, "Run failed", "error", out.FailureMessage())
	if r.queue == nil {
		return
	}

	entry := &dlq.Entry{
		ID:       runID,
		Job:      j.Name,
		Kind:     taskerr.Name(out.Err),
		Error:    out.FailureMessage(),
		FailedAt: r.now().In(r.loc),
		Outputs:  out.Outputs,
	}
	if out.State != nil {
		entry.Attempts = out.State.Attempts
		entry.StartedAt = out.State.StartedAt
	}
	if err := r.queue.Push(ctx, entry); err != nil {
		r.logger.Error(ctx, "Failed to push run to DLQ", "error", err)
	}
}
