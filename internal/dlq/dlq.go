package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dpe27/restpoll/internal/poll"
	"github.com/dpe27/restpoll/pkg/log"
	"github.com/dpe27/restpoll/pkg/utils"
	"github.com/redis/go-redis/v9"
)

const queueKey = "restpoll:dlq"

var ErrNilEntry = errors.New("dlq entry cannot be nil")

// Entry is a failed task run waiting to be reported.
type Entry struct {
	ID        string        `json:"id"`
	Job       string        `json:"job"`
	Kind      string        `json:"kind"`
	Error     string        `json:"error"`
	Attempts  int           `json:"attempts"`
	StartedAt time.Time     `json:"started_at"`
	FailedAt  time.Time     `json:"failed_at"`
	Outputs   *poll.Outputs `json:"outputs,omitempty"`

	// Forwards counts failed deliveries to the webhook.
	Forwards int `json:"forwards"`
}

type DeadLetterQueue interface {
	Push(ctx context.Context, entry *Entry) error
	// Pop blocks up to timeout and returns nil when the queue stayed empty.
	Pop(ctx context.Context, timeout time.Duration) (*Entry, error)
	Len(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context)
}

type redisDLQ struct {
	logger *log.Logger
	client *redis.Client
}

func NewDeadLetterQueue(client *redis.Client, logger *log.Logger) DeadLetterQueue {
	if logger == nil {
		logger = log.With()
	}
	return &redisDLQ{
		logger: logger.With("service", "dlq"),
		client: client,
	}
}

func (r *redisDLQ) Push(ctx context.Context, entry *Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		r.logger.Error(ctx, utils.ErrorMarshalEntry, "error", err)
		return err
	}

	r.logger.Info(ctx, "Pushing run to DLQ", "run_id", entry.ID, "job", entry.Job)
	if err := r.client.LPush(ctx, queueKey, data).Err(); err != nil {
		r.logger.Error(ctx, "Failed to push run to DLQ", "error", err)
		return err
	}
	return nil
}

func (r *redisDLQ) Pop(ctx context.Context, timeout time.Duration) (*Entry, error) {
	res, err := r.client.BRPop(ctx, timeout, queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error(ctx, "Failed to pop run from DLQ", "error", err)
		return nil, err
	}

	// BRPOP replies with the key followed by the value
	entry, err := decodeEntry([]byte(res[1]))
	if err != nil {
		r.logger.Error(ctx, utils.ErrorUnmarshalEntry, "error", err)
		return nil, err
	}

	r.logger.Info(ctx, "Popped run from DLQ", "run_id", entry.ID)
	return entry, nil
}

func (r *redisDLQ) Len(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, queueKey).Result()
}

func (r *redisDLQ) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisDLQ) Close(ctx context.Context) {
	if err := r.client.Close(); err != nil {
		r.logger.Error(ctx, "Failed to close Redis connection", "error", err)
	} else {
		r.logger.Info(ctx, "Redis connection closed successfully")
	}
}

func encodeEntry(entry *Entry) ([]byte, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}
	return json.Marshal(entry)
}

func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
