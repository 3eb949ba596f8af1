package poll

import (
	"time"

	"github.com/dpe27/restpoll/internal/httpclient"
)

// Phase is the position of a task in its lifecycle.
//
//	INIT → POLLING → COMPLETED
//	     ↘         ↘ FAILED
//	       (single shot ends in COMPLETED or FAILED on its only cycle)
type Phase string

const (
	PhaseInit      Phase = "INIT"
	PhasePolling   Phase = "POLLING"
	PhaseCompleted Phase = "COMPLETED"
	PhaseFailed    Phase = "FAILED"
)

// IsTerminal reports whether no further cycle follows.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// ExecutionState is carried by the caller between the cycles of one poll
// task. The engine never keeps it; it receives it and returns the next one.
type ExecutionState struct {
	Attempts  int       `json:"attempts"`
	StartedAt time.Time `json:"started_at"`
	Done      bool      `json:"done"`
}

// Elapsed returns whole seconds since the task started polling.
func (s ExecutionState) Elapsed(now time.Time) int64 {
	return int64(now.Sub(s.StartedAt) / time.Second)
}

// Policy is the poll configuration of a task.
type Policy struct {
	Enabled          bool
	IntervalSeconds  int
	TimeoutSeconds   int
	ExpectedStatuses string
	ExpectedPattern  string
}

func (p Policy) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// Task is everything one cycle needs besides the execution state.
type Task struct {
	Endpoint httpclient.Endpoint
	Request  httpclient.RequestSpec
	Policy   Policy
}

// Outputs are published when a task completes, and when a single shot call
// fails on an unexpected response.
type Outputs struct {
	ResponseStatus  int               `json:"responseStatus"`
	ResponseHeaders map[string]string `json:"responseHeaders"`
	ResponseBody    string            `json:"responseBody"`
}

// Outcome is the result of one cycle.
type Outcome struct {
	Phase Phase `json:"phase"`

	// State is the value the caller persists for the next cycle. It is
	// marked Done on terminal outcomes.
	State *ExecutionState `json:"state,omitempty"`

	// RetryAfter is set on POLLING outcomes: the caller re-invokes no
	// earlier than this.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	ProgressMessage string `json:"progress_message,omitempty"`
	ProgressCode    string `json:"progress_code,omitempty"`

	Outputs *Outputs `json:"outputs,omitempty"`

	// Err is set on FAILED outcomes; it is always a *taskerr.Error.
	Err error `json:"-"`
}

// FailureMessage returns the message to surface for a FAILED outcome.
func (o Outcome) FailureMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
