// Package state persists poll execution state between cycles.
package state

import (
	"context"
	"errors"
	"strings"

	"github.com/dpe27/restpoll/internal/poll"
)

var ErrInvalidKey = errors.New("state key must be <job>:<run id>")

// Store keeps the execution state of in-flight poll runs. Load returns nil
// and no error when nothing is stored under key.
type Store interface {
	Load(ctx context.Context, key string) (*poll.ExecutionState, error)
	Save(ctx context.Context, key string, state poll.ExecutionState) error
	Delete(ctx context.Context, key string) error
	// Keys lists the keys of every stored run.
	Keys(ctx context.Context) ([]string, error)
}

func Key(jobName, runID string) string {
	return jobName + ":" + runID
}

// SplitKey is the inverse of Key. Job names never contain ':' but run ids may.
func SplitKey(key string) (jobName, runID string, err error) {
	jobName, runID, ok := strings.Cut(key, ":")
	if !ok || jobName == "" || runID == "" {
		return "", "", ErrInvalidKey
	}
	return jobName, runID, nil
}
