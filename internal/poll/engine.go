// Package poll decides, one invocation at a time, whether a REST task has
// completed, failed or needs another call later.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/dpe27/restpoll/internal/httpclient"
	"github.com/dpe27/restpoll/internal/taskerr"
	"github.com/dpe27/restpoll/pkg/log"
)

const (
	ProgressCodePolling = "Polling"
	progressMsgFmt      = "Asynchronous request has been polling for %d sec"
)

// Executor sends a single request. *httpclient.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, ep httpclient.Endpoint, spec httpclient.RequestSpec) (*httpclient.Response, error)
}

type Engine struct {
	exec   Executor
	logger *log.Logger
}

func NewEngine(exec Executor, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.With()
	}
	return &Engine{
		exec:   exec,
		logger: logger.With("component", "poll"),
	}
}

// Cycle runs one invocation of task. A nil state marks the first cycle of the
// task. now is the time of this invocation and is only used for elapsed time.
//
// When polling is enabled the first cycle makes no HTTP call: it validates
// the policy and returns a POLLING outcome carrying the initial state.
func (e *Engine) Cycle(ctx context.Context, task Task, state *ExecutionState, now time.Time) Outcome {
	policy := task.Policy
	if policy.Enabled && state == nil {
		return e.start(ctx, policy, now)
	}
	if policy.ExpectedPattern != "" {
		if _, err := CompilePattern(policy.ExpectedPattern); err != nil {
			return e.fail(ctx, state, err, nil)
		}
	}

	resp, err := e.exec.Execute(ctx, task.Endpoint, task.Request)
	if err != nil {
		return e.fail(ctx, state, err, nil)
	}

	matched, err := Evaluate(resp, policy.ExpectedStatuses, policy.ExpectedPattern)
	if err != nil {
		return e.fail(ctx, state, err, nil)
	}

	if matched {
		outputs, err := outputsOf(resp)
		if err != nil {
			return e.fail(ctx, state, err, nil)
		}
		e.logger.Info(ctx, "Request completed", "status_code", resp.StatusCode())
		return Outcome{
			Phase:   PhaseCompleted,
			State:   finished(state),
			Outputs: outputs,
		}
	}

	if !policy.Enabled {
		outputs, err := outputsOf(resp)
		if err != nil {
			return e.fail(ctx, state, err, nil)
		}
		return e.fail(ctx, state, taskerr.UnexpectedResponse(), outputs)
	}

	elapsed := state.Elapsed(now)
	if elapsed >= int64(policy.TimeoutSeconds) {
		return e.fail(ctx, state, taskerr.Timeout(elapsed), nil)
	}

	next := *state
	next.Attempts++
	e.logger.Info(ctx, "Response doesn't match, polling continues",
		"status_code", resp.StatusCode(),
		"attempts", next.Attempts,
		"elapsed_sec", elapsed,
	)
	return Outcome{
		Phase:           PhasePolling,
		State:           &next,
		RetryAfter:      policy.Interval(),
		ProgressMessage: fmt.Sprintf(progressMsgFmt, elapsed),
		ProgressCode:    ProgressCodePolling,
	}
}

func (e *Engine) start(ctx context.Context, policy Policy, now time.Time) Outcome {
	if err := ValidatePolicy(policy); err != nil {
		return e.fail(ctx, nil, err, nil)
	}
	e.logger.Info(ctx, "Asynchronous request started",
		"interval_sec", policy.IntervalSeconds,
		"timeout_sec", policy.TimeoutSeconds,
	)
	return Outcome{
		Phase:      PhasePolling,
		State:      &ExecutionState{Attempts: 1, StartedAt: now},
		RetryAfter: policy.Interval(),
	}
}

func (e *Engine) fail(ctx context.Context, state *ExecutionState, err error, outputs *Outputs) Outcome {
	e.logger.Error(ctx, err.Error(), "kind", taskerr.Name(err))
	return Outcome{
		Phase:   PhaseFailed,
		State:   finished(state),
		Outputs: outputs,
		Err:     err,
	}
}

// ValidatePolicy checks the parameters an enabled poll policy needs.
func ValidatePolicy(p Policy) error {
	if p.IntervalSeconds <= 0 || p.TimeoutSeconds <= 0 || p.ExpectedPattern == "" {
		return taskerr.Validation(nil, taskerr.MsgPollParameters, nil)
	}
	_, err := CompilePattern(p.ExpectedPattern)
	return err
}

func finished(state *ExecutionState) *ExecutionState {
	if state == nil {
		return nil
	}
	next := *state
	next.Done = true
	return &next
}

func outputsOf(resp *httpclient.Response) (*Outputs, error) {
	body, err := resp.Body()
	if err != nil {
		return nil, err
	}
	return &Outputs{
		ResponseStatus:  resp.StatusCode(),
		ResponseHeaders: resp.Headers(),
		ResponseBody:    body,
	}, nil
}
