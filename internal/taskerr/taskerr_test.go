package taskerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_IsMatchesKindAndReason(t *testing.T) {
	err := UnsupportedMethod("REQUEST")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected ErrValidation")
	}
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Error("expected ErrUnsupportedMethod")
	}
	if errors.Is(err, ErrTransport) {
		t.Error("did not expect ErrTransport")
	}
	if err.Error() != MsgUnsupportedMethod {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestError_TransportWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: no such host")
	err := fmt.Errorf("execute: %w", Transport(cause))

	if !errors.Is(err, ErrTransport) {
		t.Error("expected ErrTransport through wrapping")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable")
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatal("expected *Error")
	}
	if !strings.HasPrefix(te.Msg, MsgIO) || !strings.Contains(te.Msg, "no such host") {
		t.Errorf("unexpected message %q", te.Msg)
	}
}

func TestSizeLimit_Message(t *testing.T) {
	err := SizeLimit(5 * MB)
	want := "Unable to read response body as it exceeds 4MB, actual size: 5.00MB"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestName(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{errors.New("plain"), "unknown"},
		{MalformedURL(errors.New("bad")), "validation"},
		{Transport(errors.New("reset")), "transport"},
		{SizeLimit(1), "size_limit"},
		{UnexpectedResponse(), "unexpected_response"},
		{Timeout(3), "timeout"},
	}
	for _, tc := range cases {
		if got := Name(tc.err); got != tc.want {
			t.Errorf("Name(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestTimeout_Message(t *testing.T) {
	if got := Timeout(4).Error(); got != "Asynchronous request timed out after 4 sec" {
		t.Errorf("unexpected message %q", got)
	}
}
