package dlq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dpe27/restpoll/internal/httpclient"
	"github.com/dpe27/restpoll/pkg/log"
	"github.com/dpe27/restpoll/pkg/nethttp"
	"github.com/dpe27/restpoll/pkg/utils"
)

const (
	popTimeout  = 5 * time.Second
	errBackoff  = time.Second
	maxForwards = 3
)

type ForwardObserver interface {
	ObserveForward(ok bool)
}

// DLQWorker drains the queue and posts every entry as JSON to a webhook.
type DLQWorker struct {
	queue      DeadLetterQueue
	cli        httpclient.HttpClient
	webhookURL string
	observer   ForwardObserver
	logger     *log.Logger
}

func NewDLQWorker(
	queue DeadLetterQueue,
	client httpclient.HttpClient,
	webhookURL string,
	observer ForwardObserver,
	logger *log.Logger,
) *DLQWorker {
	if logger == nil {
		logger = log.With()
	}
	return &DLQWorker{
		queue:      queue,
		cli:        client,
		webhookURL: webhookURL,
		observer:   observer,
		logger:     logger.With("service", "dlq_worker"),
	}
}

// Start blocks until ctx is done. Without a webhook it returns at once and
// leaves every entry in the queue.
func (w *DLQWorker) Start(ctx context.Context) {
	if w.webhookURL == "" {
		w.logger.Warn(ctx, "No DLQ webhook configured, failed runs stay queued")
		return
	}
	w.logger.Info(ctx, "Starting DLQ worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Stopping DLQ worker")
			return
		default:
		}

		entry, err := w.queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error(ctx, "Failed to pop run from DLQ", "error", err)
			w.wait(ctx, errBackoff)
			continue
		}
		if entry == nil {
			continue
		}
		w.Process(ctx, entry)
	}
}

// Process forwards one entry. A failed delivery is queued again until it has
// failed maxForwards times. Without a webhook the entry goes back unchanged.
func (w *DLQWorker) Process(ctx context.Context, entry *Entry) {
	if w.webhookURL == "" {
		w.logger.Warn(ctx, "No DLQ webhook configured, requeueing failed run",
			"run_id", entry.ID, "job", entry.Job)
		if err := w.queue.Push(ctx, entry); err != nil {
			w.logger.Error(ctx, "Failed to requeue run", "run_id", entry.ID, "error", err)
		}
		return
	}

	err := w.forward(ctx, entry)
	if w.observer != nil {
		w.observer.ObserveForward(err == nil)
	}
	if err == nil {
		w.logger.Info(ctx, "Successfully forwarded run from DLQ", "run_id", entry.ID, "job", entry.Job)
		return
	}

	entry.Forwards++
	w.logger.Error(ctx, "Failed to forward run from DLQ", "run_id", entry.ID, "forwards", entry.Forwards, "error", err)
	if entry.Forwards >= maxForwards {
		w.logger.Error(ctx, "Giving up on DLQ run", "run_id", entry.ID, "job", entry.Job)
		return
	}
	if err := w.queue.Push(ctx, entry); err != nil {
		w.logger.Error(ctx, "Failed to requeue run", "run_id", entry.ID, "error", err)
	}
}

func (w *DLQWorker) forward(ctx context.Context, entry *Entry) error {
	reqBody, err := json.Marshal(entry)
	if err != nil {
		w.logger.Error(ctx, utils.ErrorMarshalEntry, "error", err)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(reqBody))
	if err != nil {
		w.logger.Error(ctx, utils.ErrorCreateRequest, "error", err)
		return err
	}
	req.Header.Set(nethttp.HeaderContentType, nethttp.MIMEApplicationJSON)

	opts := httpclient.ReqOptBuilder().
		Log().LogReqBodyOnlyError().
		LogResBodyOnlyError().
		LoggedReqKeys([]string{"id", "job", "kind", "error"}).
		Build()

	resp, err := w.cli.Do(req, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			w.logger.Error(ctx, utils.ErrorCloseResponseBody, "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if err != nil {
			w.logger.Error(ctx, utils.ErrorReadBody, "error", err)
		}
		return fmt.Errorf("webhook responded %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (w *DLQWorker) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
