package job

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dpe27/restpoll/internal/httpclient"
	"github.com/dpe27/restpoll/internal/poll"
	"github.com/robfig/cron/v3"
)

var (
	ErrNoName      = errors.New("job name is required")
	ErrInvalidName = errors.New("job name cannot contain ':'")
	ErrSchedule    = errors.New("invalid job schedule")
)

// HttpJob is one task definition as written in a jobs/*.yaml file.
type HttpJob struct {
	Name string `json:"name" yaml:"name"`
	// Schedule starts a new run on every tick. Jobs without one only run
	// on demand.
	Schedule string `json:"schedule,omitempty" yaml:"schedule"`

	Endpoint httpclient.Endpoint `json:"endpoint" yaml:"endpoint"`
	Path     string              `json:"path" yaml:"path"`
	Method   string              `json:"method" yaml:"method"`
	Headers  []httpclient.Header `json:"headers,omitempty" yaml:"headers"`
	Body     string              `json:"body,omitempty" yaml:"body"`

	ExpectedStatuses string `json:"expectedStatuses,omitempty" yaml:"expectedStatuses"`
	ExpectedResponse string `json:"expectedResponse,omitempty" yaml:"expectedResponse"`
	Poll             bool   `json:"poll" yaml:"poll"`
	Interval         int    `json:"interval,omitempty" yaml:"interval"`
	Timeout          int    `json:"timeout,omitempty" yaml:"timeout"`
}

// Validate checks what the loader can check without running the task. The
// poll engine validates the request and poll parameters itself.
func (j *HttpJob) Validate() error {
	if j.Name == "" {
		return ErrNoName
	}
	if strings.Contains(j.Name, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidName, j.Name)
	}
	if j.Schedule != "" {
		if _, err := cron.ParseStandard(j.Schedule); err != nil {
			return fmt.Errorf("%w %q: %w", ErrSchedule, j.Schedule, err)
		}
	}
	return nil
}

// Task converts the definition into the input of a poll cycle.
func (j *HttpJob) Task() poll.Task {
	return poll.Task{
		Endpoint: j.Endpoint,
		Request: httpclient.RequestSpec{
			Path:    j.Path,
			Method:  j.Method,
			Headers: j.Headers,
			Body:    []byte(j.Body),
		},
		Policy: poll.Policy{
			Enabled:          j.Poll,
			IntervalSeconds:  j.Interval,
			TimeoutSeconds:   j.Timeout,
			ExpectedStatuses: j.ExpectedStatuses,
			ExpectedPattern:  j.ExpectedResponse,
		},
	}
}
