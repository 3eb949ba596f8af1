package preview

import (
	"errors"
	"testing"

	"github.com/dpe27/restpoll/internal/httpclient"
	"github.com/dpe27/restpoll/internal/taskerr"
)

func TestRender(t *testing.T) {
	resp := httpclient.NewResponse(200, map[string]string{
		"Status-Line":  "HTTP/1.1 200 OK",
		"Content-Type": "application/json",
	}, "{\"ok\":true}\n")

	got, err := Render(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Response status: 200\n" +
		"\nResponse headers:\n" +
		"Content-Type: application/json\n" +
		"Status-Line: HTTP/1.1 200 OK\n" +
		"\nResponse body:\n" +
		"{\"ok\":true}\n"
	if got != want {
		t.Errorf("unexpected preview:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_OversizedBody(t *testing.T) {
	resp := httpclient.NewOversizedResponse(200, nil, 6*taskerr.MB)
	if _, err := Render(resp); !errors.Is(err, taskerr.ErrSizeLimit) {
		t.Fatalf("expected size limit error, got %v", err)
	}
}
