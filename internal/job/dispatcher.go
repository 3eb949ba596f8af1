package job

import (
	"context"
	"sync"
	"time"

	"github.com/dpe27/restpoll/internal/poll"
	"github.com/dpe27/restpoll/internal/state"
	"github.com/dpe27/restpoll/pkg/log"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// once fires a single time at at. After it fired cron sees a zero next time
// and never runs the entry again.
type once struct {
	at time.Time
}

func (o once) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

// Dispatcher is the host of the poll engine: it starts runs on their cron
// schedule and re-invokes polling runs after the interval they asked for.
// Cycles of one run never overlap.
type Dispatcher struct {
	cron    *cron.Cron
	runner  *Runner
	store   state.Store
	limiter *rate.Limiter
	logger  *log.Logger

	mu       sync.Mutex
	jobs     map[string]*HttpJob
	inFlight map[string]struct{}
	// pending holds the one-shot cron entry scheduled for each polling run.
	pending map[string]cron.EntryID
}

func NewDispatcher(
	c *cron.Cron,
	runner *Runner,
	store state.Store,
	limiter *rate.Limiter,
	logger *log.Logger,
) *Dispatcher {
	if logger == nil {
		logger = log.With()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Dispatcher{
		cron:     c,
		runner:   runner,
		store:    store,
		limiter:  limiter,
		logger:   logger.With("service", "dispatcher"),
		jobs:     make(map[string]*HttpJob),
		inFlight: make(map[string]struct{}),
		pending:  make(map[string]cron.EntryID),
	}
}

// Schedule registers jobs. Those with a schedule get a cron entry that starts
// a new run on every tick.
func (d *Dispatcher) Schedule(ctx context.Context, jobs []HttpJob) error {
	for i := range jobs {
		j := &jobs[i]

		d.mu.Lock()
		d.jobs[j.Name] = j
		d.mu.Unlock()

		if j.Schedule == "" {
			continue
		}
		if _, err := d.cron.AddFunc(j.Schedule, func() {
			d.logger.Info(ctx, "Executing scheduled job", "name", j.Name, "schedule", j.Schedule)
			d.Start(ctx, j)
		}); err != nil {
			d.logger.Error(ctx, "Failed to schedule job", "name", j.Name, "error", err)
			return err
		}
	}
	return nil
}

// Start begins a new run of j and returns its id. The first cycle runs
// synchronously.
func (d *Dispatcher) Start(ctx context.Context, j *HttpJob) string {
	runID := uuid.NewString()
	d.dispatch(ctx, j, runID)
	return runID
}

// Resume re-schedules the runs found in the store, one interval from now.
// Runs of jobs that no longer exist are discarded.
func (d *Dispatcher) Resume(ctx context.Context) error {
	keys, err := d.store.Keys(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		name, runID, err := state.SplitKey(key)
		if err != nil {
			d.logger.Warn(ctx, "Skipping malformed state key", "key", key)
			continue
		}

		d.mu.Lock()
		j, ok := d.jobs[name]
		d.mu.Unlock()
		if !ok {
			d.logger.Warn(ctx, "Discarding run of unknown job", "name", name, "run_id", runID)
			if err := d.store.Delete(ctx, key); err != nil {
				return err
			}
			continue
		}

		d.logger.Info(ctx, "Resuming run", "name", name, "run_id", runID)
		d.after(ctx, j, runID, time.Duration(j.Interval)*time.Second)
	}
	return nil
}

// Pending reports how many runs wait for their next cycle.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Dispatcher) dispatch(ctx context.Context, j *HttpJob, runID string) {
	key := state.Key(j.Name, runID)
	if !d.acquire(key) {
		d.logger.Warn(ctx, "Cycle already in flight, skipping", "name", j.Name, "run_id", runID)
		return
	}
	defer d.release(key)

	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn(ctx, "Cycle not dispatched", "name", j.Name, "run_id", runID, "error", err)
		return
	}

	out, err := d.runner.RunCycle(ctx, j, runID)
	if err != nil {
		d.logger.Error(ctx, "Failed to persist run state", "name", j.Name, "run_id", runID, "error", err)
		return
	}
	if out.Phase == poll.PhasePolling {
		d.after(ctx, j, runID, out.RetryAfter)
	}
}

// after schedules the next cycle of a run as a one-shot cron entry.
func (d *Dispatcher) after(ctx context.Context, j *HttpJob, runID string, delay time.Duration) {
	key := state.Key(j.Name, runID)

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[key]; ok {
		d.cron.Remove(prev)
	}
	d.pending[key] = d.cron.Schedule(once{at: time.Now().Add(delay)}, cron.FuncJob(func() {
		d.mu.Lock()
		if id, ok := d.pending[key]; ok {
			d.cron.Remove(id)
			delete(d.pending, key)
		}
		d.mu.Unlock()

		d.dispatch(ctx, j, runID)
	}))
}

func (d *Dispatcher) acquire(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inFlight[key]; ok {
		return false
	}
	d.inFlight[key] = struct{}{}
	return true
}

func (d *Dispatcher) release(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, key)
}
