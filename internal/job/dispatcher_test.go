package job

import (
	"context"
	"testing"
	"time"

	"github.com/dpe27/restpoll/internal/poll"
	"github.com/dpe27/restpoll/internal/state"
	"github.com/dpe27/restpoll/pkg/log"
	"github.com/robfig/cron/v3"
)

func TestOnceSchedule(t *testing.T) {
	at := started.Add(time.Minute)
	s := once{at: at}

	if got := s.Next(started); !got.Equal(at) {
		t.Errorf("expected %s before firing, got %s", at, got)
	}
	if got := s.Next(at); !got.IsZero() {
		t.Errorf("expected zero time after firing, got %s", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatcher_ReschedulesPollingRun(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	cycler := &scriptedCycler{
		outcomes: []poll.Outcome{polling(1), polling(2), completed()},
		called:   make(chan int, 3),
	}

	c := cron.New()
	c.Start()
	defer c.Stop()

	d := NewDispatcher(c, NewRunner(cycler, store, log.Discard()), store, nil, log.Discard())
	j := &HttpJob{Name: "orders", Poll: true, Interval: 1}
	runID := d.Start(ctx, j)
	if runID == "" {
		t.Fatal("expected a run id")
	}

	for want := 1; want <= 3; want++ {
		select {
		case n := <-cycler.called:
			if n != want {
				t.Fatalf("expected cycle %d, got %d", want, n)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("cycle %d was not dispatched", want)
		}
	}

	waitFor(t, func() bool {
		keys, _ := store.Keys(ctx)
		return len(keys) == 0 && d.Pending() == 0
	})
	if len(c.Entries()) != 0 {
		t.Errorf("expected one-shot entries removed, got %d", len(c.Entries()))
	}
}

func TestDispatcher_ResumeStoredRuns(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	_ = store.Save(ctx, state.Key("orders", "run-a"), poll.ExecutionState{Attempts: 2, StartedAt: started})
	_ = store.Save(ctx, state.Key("gone", "run-b"), poll.ExecutionState{Attempts: 1, StartedAt: started})

	c := cron.New()
	cycler := &scriptedCycler{outcomes: []poll.Outcome{completed()}}
	d := NewDispatcher(c, NewRunner(cycler, store, log.Discard()), store, nil, log.Discard())
	if err := d.Schedule(ctx, []HttpJob{{Name: "orders", Poll: true, Interval: 5}}); err != nil {
		t.Fatal(err)
	}

	if err := d.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if d.Pending() != 1 {
		t.Errorf("expected the known run to be pending, got %d", d.Pending())
	}
	if left, _ := store.Load(ctx, state.Key("gone", "run-b")); left != nil {
		t.Errorf("expected run of unknown job discarded")
	}
}

func TestDispatcher_ScheduleAddsCronEntries(t *testing.T) {
	c := cron.New()
	store := state.NewMemoryStore()
	d := NewDispatcher(c, NewRunner(&scriptedCycler{outcomes: []poll.Outcome{completed()}}, store, log.Discard()), store, nil, log.Discard())

	err := d.Schedule(context.Background(), []HttpJob{
		{Name: "every-minute", Schedule: "* * * * *"},
		{Name: "on-demand"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(c.Entries()); n != 1 {
		t.Errorf("expected 1 cron entry, got %d", n)
	}
}
