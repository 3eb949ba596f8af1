package poll

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dpe27/restpoll/internal/httpclient"
	"github.com/dpe27/restpoll/internal/taskerr"
	"github.com/dpe27/restpoll/pkg/log"
)

type executorFunc func(ctx context.Context, ep httpclient.Endpoint, spec httpclient.RequestSpec) (*httpclient.Response, error)

func (f executorFunc) Execute(ctx context.Context, ep httpclient.Endpoint, spec httpclient.RequestSpec) (*httpclient.Response, error) {
	return f(ctx, ep, spec)
}

// countingExecutor returns resp on every call and counts the calls.
func countingExecutor(calls *int, resp *httpclient.Response, err error) Executor {
	return executorFunc(func(context.Context, httpclient.Endpoint, httpclient.RequestSpec) (*httpclient.Response, error) {
		*calls++
		return resp, err
	})
}

func newTestEngine(exec Executor) *Engine {
	return NewEngine(exec, log.Discard())
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func pollTask(interval, timeout int, pattern string) Task {
	return Task{
		Endpoint: httpclient.Endpoint{URL: "http://example.test"},
		Request:  httpclient.RequestSpec{Path: "/status", Method: "GET"},
		Policy: Policy{
			Enabled:         true,
			IntervalSeconds: interval,
			TimeoutSeconds:  timeout,
			ExpectedPattern: pattern,
		},
	}
}

func TestCycle_SingleShotCompleted(t *testing.T) {
	calls := 0
	resp := httpclient.NewResponse(200, map[string]string{"Content-Type": "text/plain"}, "ok\n")
	engine := newTestEngine(countingExecutor(&calls, resp, nil))

	out := engine.Cycle(context.Background(), Task{
		Request: httpclient.RequestSpec{Method: "GET"},
		Policy:  Policy{ExpectedStatuses: "200"},
	}, nil, t0)

	if out.Phase != PhaseCompleted {
		t.Fatalf("expected COMPLETED, got %s (%v)", out.Phase, out.Err)
	}
	if calls != 1 {
		t.Errorf("expected one call, got %d", calls)
	}
	if out.Outputs == nil || out.Outputs.ResponseStatus != 200 || out.Outputs.ResponseBody != "ok\n" {
		t.Errorf("unexpected outputs %+v", out.Outputs)
	}
	if out.Outputs.ResponseHeaders["Content-Type"] != "text/plain" {
		t.Errorf("unexpected headers %v", out.Outputs.ResponseHeaders)
	}
}

func TestCycle_SingleShotUnexpectedResponse(t *testing.T) {
	calls := 0
	resp := httpclient.NewResponse(404, nil, "missing\n")
	engine := newTestEngine(countingExecutor(&calls, resp, nil))

	out := engine.Cycle(context.Background(), Task{
		Request: httpclient.RequestSpec{Method: "GET"},
		Policy:  Policy{ExpectedStatuses: "200, 201"},
	}, nil, t0)

	if out.Phase != PhaseFailed {
		t.Fatalf("expected FAILED, got %s", out.Phase)
	}
	if !errors.Is(out.Err, taskerr.ErrUnexpectedResponse) {
		t.Errorf("expected unexpected response error, got %v", out.Err)
	}
	if out.FailureMessage() != "Request failed with unexpected response" {
		t.Errorf("unexpected message %q", out.FailureMessage())
	}
	if out.Outputs == nil || out.Outputs.ResponseStatus != 404 {
		t.Errorf("expected outputs of the failed response, got %+v", out.Outputs)
	}
}

func TestCycle_InvalidPollParameters(t *testing.T) {
	tests := []struct {
		name string
		task Task
		kind error
	}{
		{"zero interval", pollTask(0, 10, "done"), taskerr.ErrValidation},
		{"zero timeout", pollTask(5, 0, "done"), taskerr.ErrValidation},
		{"empty pattern", pollTask(5, 10, ""), taskerr.ErrValidation},
		{"invalid pattern", pollTask(5, 10, "(["), taskerr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			engine := newTestEngine(countingExecutor(&calls, nil, nil))

			out := engine.Cycle(context.Background(), tt.task, nil, t0)
			if out.Phase != PhaseFailed {
				t.Fatalf("expected FAILED, got %s", out.Phase)
			}
			if !errors.Is(out.Err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, out.Err)
			}
			if calls != 0 {
				t.Errorf("expected no call, got %d", calls)
			}
		})
	}

	out := newTestEngine(countingExecutor(new(int), nil, nil)).Cycle(context.Background(), pollTask(0, 0, ""), nil, t0)
	if out.FailureMessage() != taskerr.MsgPollParameters {
		t.Errorf("unexpected message %q", out.FailureMessage())
	}
}

func TestCycle_FirstPollCycleMakesNoCall(t *testing.T) {
	calls := 0
	engine := newTestEngine(countingExecutor(&calls, nil, nil))

	out := engine.Cycle(context.Background(), pollTask(5, 30, "done"), nil, t0)
	if out.Phase != PhasePolling {
		t.Fatalf("expected POLLING, got %s (%v)", out.Phase, out.Err)
	}
	if calls != 0 {
		t.Errorf("expected no call, got %d", calls)
	}
	if out.State == nil || out.State.Attempts != 1 || !out.State.StartedAt.Equal(t0) {
		t.Errorf("unexpected state %+v", out.State)
	}
	if out.RetryAfter != 5*time.Second {
		t.Errorf("expected retry after 5s, got %s", out.RetryAfter)
	}
	if out.Outputs != nil {
		t.Errorf("expected no outputs while polling")
	}
}

func TestCycle_PollingContinuesThenTimesOut(t *testing.T) {
	resp := httpclient.NewResponse(200, nil, "running\n")
	engine := newTestEngine(countingExecutor(new(int), resp, nil))
	task := pollTask(3, 3, "done")

	out := engine.Cycle(context.Background(), task, nil, t0)
	if out.Phase != PhasePolling {
		t.Fatalf("expected POLLING, got %s", out.Phase)
	}

	out = engine.Cycle(context.Background(), task, out.State, t0.Add(3*time.Second))
	if out.Phase != PhaseFailed {
		t.Fatalf("expected FAILED, got %s", out.Phase)
	}
	if !errors.Is(out.Err, taskerr.ErrTimeout) {
		t.Errorf("expected timeout error, got %v", out.Err)
	}
	if out.FailureMessage() != "Asynchronous request timed out after 3 sec" {
		t.Errorf("unexpected message %q", out.FailureMessage())
	}
	if out.State == nil || !out.State.Done {
		t.Errorf("expected terminal state marked done, got %+v", out.State)
	}
}

func TestCycle_PollingProgress(t *testing.T) {
	resp := httpclient.NewResponse(200, nil, "running\n")
	engine := newTestEngine(countingExecutor(new(int), resp, nil))
	task := pollTask(2, 10, "done")
	state := &ExecutionState{Attempts: 4, StartedAt: t0}

	out := engine.Cycle(context.Background(), task, state, t0.Add(4500*time.Millisecond))
	if out.Phase != PhasePolling {
		t.Fatalf("expected POLLING, got %s", out.Phase)
	}
	if out.State.Attempts != 5 {
		t.Errorf("expected attempts 5, got %d", out.State.Attempts)
	}
	if state.Attempts != 4 {
		t.Errorf("input state was modified: %+v", state)
	}
	if out.ProgressMessage != "Asynchronous request has been polling for 4 sec" {
		t.Errorf("unexpected progress message %q", out.ProgressMessage)
	}
	if out.ProgressCode != ProgressCodePolling {
		t.Errorf("unexpected progress code %q", out.ProgressCode)
	}
	if out.RetryAfter != 2*time.Second {
		t.Errorf("expected retry after 2s, got %s", out.RetryAfter)
	}
}

func TestCycle_ErrorsAreTerminal(t *testing.T) {
	tests := []struct {
		name string
		resp *httpclient.Response
		err  error
		kind error
	}{
		{"transport", nil, taskerr.Transport(io.ErrUnexpectedEOF), taskerr.ErrTransport},
		{"size limit", httpclient.NewOversizedResponse(200, nil, 5*taskerr.MB), nil, taskerr.ErrSizeLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(countingExecutor(new(int), tt.resp, tt.err))
			state := &ExecutionState{Attempts: 2, StartedAt: t0}

			out := engine.Cycle(context.Background(), pollTask(5, 60, "done"), state, t0.Add(10*time.Second))
			if out.Phase != PhaseFailed {
				t.Fatalf("expected FAILED, got %s", out.Phase)
			}
			if !errors.Is(out.Err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, out.Err)
			}
		})
	}
}

func TestCycle_SingleShotOversizedBodyFails(t *testing.T) {
	resp := httpclient.NewOversizedResponse(200, nil, 5*taskerr.MB)
	engine := newTestEngine(countingExecutor(new(int), resp, nil))

	out := engine.Cycle(context.Background(), Task{Request: httpclient.RequestSpec{Method: "GET"}}, nil, t0)
	if out.Phase != PhaseFailed || !errors.Is(out.Err, taskerr.ErrSizeLimit) {
		t.Fatalf("expected size limit failure, got %s %v", out.Phase, out.Err)
	}
	if !strings.Contains(out.FailureMessage(), "5.00MB") {
		t.Errorf("unexpected message %q", out.FailureMessage())
	}
}

// TestCycle_PollsRealServerUntilMatch drives the engine against a server that
// reports completion on its third request.
func TestCycle_PollsRealServerUntilMatch(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			_, _ = io.WriteString(w, `{"state":"running"}`)
			return
		}
		_, _ = io.WriteString(w, `{"state":"done"}`)
	}))
	defer server.Close()

	cli := httpclient.NewHttpClient(httpclient.ClientOptBuilder().Logger(log.Discard()).Build())
	engine := newTestEngine(httpclient.NewExecutor(cli, log.Discard()))

	task := pollTask(2, 6, `"state":"done"`)
	task.Endpoint.URL = server.URL

	var state *ExecutionState
	var out Outcome
	now := t0
	for cycle := 0; cycle < 10; cycle++ {
		out = engine.Cycle(context.Background(), task, state, now)
		if out.Phase.IsTerminal() {
			break
		}
		state = out.State
		now = now.Add(out.RetryAfter)
	}

	if out.Phase != PhaseCompleted {
		t.Fatalf("expected COMPLETED, got %s (%v)", out.Phase, out.Err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
	if out.Outputs.ResponseBody != "{\"state\":\"done\"}\n" {
		t.Errorf("unexpected body %q", out.Outputs.ResponseBody)
	}
	if out.State.Attempts != 3 {
		t.Errorf("expected attempts 3, got %d", out.State.Attempts)
	}
}

func TestCycle_SingleShotInvalidPatternMakesNoCall(t *testing.T) {
	calls := 0
	resp := httpclient.NewResponse(200, nil, "ok\n")
	engine := newTestEngine(countingExecutor(&calls, resp, nil))

	out := engine.Cycle(context.Background(), Task{
		Request: httpclient.RequestSpec{Method: "GET"},
		Policy:  Policy{ExpectedPattern: "(["},
	}, nil, t0)

	if out.Phase != PhaseFailed || !errors.Is(out.Err, taskerr.ErrValidation) {
		t.Fatalf("expected validation failure, got %s %v", out.Phase, out.Err)
	}
	if calls != 0 {
		t.Errorf("expected no call, got %d", calls)
	}
}

func TestCycle_AnchoredPatternAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<response>Success</response>")
	}))
	defer server.Close()

	cli := httpclient.NewHttpClient(httpclient.ClientOptBuilder().Logger(log.Discard()).Build())
	engine := newTestEngine(httpclient.NewExecutor(cli, log.Discard()))

	out := engine.Cycle(context.Background(), Task{
		Endpoint: httpclient.Endpoint{URL: server.URL},
		Request:  httpclient.RequestSpec{Method: "GET"},
		Policy:   Policy{ExpectedStatuses: "200", ExpectedPattern: "^.*Success.*$"},
	}, nil, t0)

	if out.Phase != PhaseCompleted {
		t.Fatalf("expected COMPLETED, got %s (%v)", out.Phase, out.Err)
	}
	if out.Outputs.ResponseBody != "<response>Success</response>\n" {
		t.Errorf("unexpected body %q", out.Outputs.ResponseBody)
	}

	// the same pattern completes a poll run on its first real call
	task := pollTask(1, 10, "^.*Success.*$")
	task.Endpoint.URL = server.URL
	first := engine.Cycle(context.Background(), task, nil, t0)
	out = engine.Cycle(context.Background(), task, first.State, t0.Add(time.Second))
	if out.Phase != PhaseCompleted {
		t.Fatalf("expected poll run to complete, got %s (%v)", out.Phase, out.Err)
	}
}
