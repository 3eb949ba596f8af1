package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dpe27/restpoll/internal/job"
	"github.com/dpe27/restpoll/internal/poll"
	"github.com/dpe27/restpoll/pkg/log"
	"github.com/spf13/cobra"
)

var errTaskFailed = errors.New("task failed")

var (
	execFile  string
	stateFile string
)

// execResult is the JSON printed by exec.
type execResult struct {
	Phase           poll.Phase           `json:"phase"`
	State           *poll.ExecutionState `json:"state,omitempty"`
	RetryAfterSec   int64                `json:"retry_after_sec,omitempty"`
	ProgressMessage string               `json:"progress_message,omitempty"`
	ProgressCode    string               `json:"progress_code,omitempty"`
	Outputs         *poll.Outputs        `json:"outputs,omitempty"`
	Error           string               `json:"error,omitempty"`
}

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run one cycle of a task and print the outcome",
	Long: "Run one cycle of the task in --file. With --state the execution state is read from\n" +
		"and written back to that file, so repeated invocations poll the task to completion.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		j, err := job.LoadJobFile(execFile)
		if err != nil {
			return err
		}

		prev, err := readState(stateFile)
		if err != nil {
			return err
		}

		engine := poll.NewEngine(newExecutor(nil), log.With())
		out := engine.Cycle(ctx, j.Task(), prev, time.Now())

		if err := writeState(stateFile, out); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(execResult{
			Phase:           out.Phase,
			State:           out.State,
			RetryAfterSec:   int64(out.RetryAfter / time.Second),
			ProgressMessage: out.ProgressMessage,
			ProgressCode:    out.ProgressCode,
			Outputs:         out.Outputs,
			Error:           out.FailureMessage(),
		}); err != nil {
			return err
		}

		if out.Phase == poll.PhaseFailed {
			return errTaskFailed
		}
		return nil
	},
}

func init() {
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "task definition yaml")
	execCmd.Flags().StringVar(&stateFile, "state", "", "file holding the execution state between invocations")
	_ = execCmd.MarkFlagRequired("file")
}

func readState(path string) (*poll.ExecutionState, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var st poll.ExecutionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	return &st, nil
}

// writeState keeps the state file while the task polls and removes it once
// the task ended.
func writeState(path string, out poll.Outcome) error {
	if path == "" {
		return nil
	}
	if out.Phase.IsTerminal() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	data, err := json.Marshal(out.State)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
