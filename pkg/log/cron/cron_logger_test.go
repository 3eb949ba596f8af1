package cronlogger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dpe27/restpoll/pkg/log"
)

func TestCronLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewCronLogger(log.New(log.NewHandler(&buf, false)))

	l.Info("wake", "now", "12:00")
	if buf.Len() != 0 {
		t.Errorf("expected wake-ups at debug level, got %q", buf.String())
	}

	l.Info("start")
	if !strings.Contains(buf.String(), `"message":"cron start"`) {
		t.Errorf("expected lifecycle message at info, got %q", buf.String())
	}

	buf.Reset()
	l.Error(errors.New("boom"), "panic", "entry", 3)
	out := buf.String()
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, `"error":"boom"`) || !strings.Contains(out, `"service":"cron"`) {
		t.Errorf("unexpected error record %q", out)
	}
}
