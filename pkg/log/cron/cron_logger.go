// Package cronlogger adapts the application logger to cron.Logger.
package cronlogger

import (
	"context"

	"github.com/dpe27/restpoll/pkg/log"
)

// cron reports every wake-up and job start through Info; only its lifecycle
// messages are worth an info line.
var lifecycleMsgs = map[string]bool{
	"start": true,
	"stop":  true,
}

type cronlogger struct {
	logger *log.Logger
}

func NewCronLogger(logger *log.Logger) *cronlogger {
	if logger == nil {
		logger = log.With()
	}
	return &cronlogger{
		logger: logger.With("service", "cron"),
	}
}

func (c *cronlogger) Info(msg string, keysAndValues ...interface{}) {
	if lifecycleMsgs[msg] {
		c.logger.Info(context.Background(), "cron "+msg, keysAndValues...)
		return
	}
	c.logger.Debug(context.Background(), "cron "+msg, keysAndValues...)
}

func (c *cronlogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(context.Background(), "cron "+msg, append(keysAndValues, "error", err)...)
}
