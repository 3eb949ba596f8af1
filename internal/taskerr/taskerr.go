// Package taskerr defines the failure kinds a REST task can end with.
//
// Every failure surfaced by the executor or the poll engine is a *Error.
// Callers branch with errors.Is against the kind sentinels (ErrValidation,
// ErrTransport, ...) or the reason sentinels (ErrMalformedURL,
// ErrUnsupportedMethod), never by matching message text.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrValidation         = errors.New("validation error")
	ErrTransport          = errors.New("transport error")
	ErrSizeLimit          = errors.New("size limit error")
	ErrUnexpectedResponse = errors.New("unexpected response error")
	ErrTimeout            = errors.New("timeout error")
)

// Reason sentinels.
var (
	ErrMalformedURL      = errors.New("malformed url")
	ErrUnsupportedMethod = errors.New("unsupported method")
)

// Fixed failure messages.
const (
	MsgMalformedURL       = "URL is malformed. "
	MsgUnsupportedMethod  = "Method is not supported."
	MsgIO                 = "Unable to read from/write to connection: "
	MsgSizeLimitFmt       = "Unable to read response body as it exceeds 4MB, actual size: %.2fMB"
	MsgPollParameters     = "Asynchronous request failed because interval, timeout and expected response must be specified"
	MsgUnexpectedResponse = "Request failed with unexpected response"
	MsgTimeoutFmt         = "Asynchronous request timed out after %d sec"
	MsgInvalidPattern     = "Expected response is not a valid regular expression: "
)

// Error is a classified task failure. Error() returns the fixed message meant
// for the task's failure output.
type Error struct {
	Kind   error
	Reason error
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 3)
	for _, err := range []error{e.Kind, e.Reason, e.Err} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func Validation(reason error, msg string, cause error) *Error {
	return &Error{Kind: ErrValidation, Reason: reason, Msg: msg, Err: cause}
}

func MalformedURL(cause error) *Error {
	return Validation(ErrMalformedURL, MsgMalformedURL+cause.Error(), cause)
}

func UnsupportedMethod(method string) *Error {
	return Validation(ErrUnsupportedMethod, MsgUnsupportedMethod, fmt.Errorf("method %q", method))
}

func Transport(cause error) *Error {
	return &Error{Kind: ErrTransport, Msg: MsgIO + cause.Error(), Err: cause}
}

// SizeLimit reports a body of size bytes that was not buffered.
func SizeLimit(size int64) *Error {
	return &Error{Kind: ErrSizeLimit, Msg: fmt.Sprintf(MsgSizeLimitFmt, float64(size)/MB)}
}

func UnexpectedResponse() *Error {
	return &Error{Kind: ErrUnexpectedResponse, Msg: MsgUnexpectedResponse}
}

func Timeout(elapsedSec int64) *Error {
	return &Error{Kind: ErrTimeout, Msg: fmt.Sprintf(MsgTimeoutFmt, elapsedSec)}
}

// MB is the divisor used for size messages.
const MB = 1024 * 1024

// KindOf returns the kind sentinel of err, or nil when err is not a task failure.
func KindOf(err error) error {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return nil
}

// Name returns a short label for the kind of err, for metrics and logs.
func Name(err error) string {
	switch KindOf(err) {
	case ErrValidation:
		return "validation"
	case ErrTransport:
		return "transport"
	case ErrSizeLimit:
		return "size_limit"
	case ErrUnexpectedResponse:
		return "unexpected_response"
	case ErrTimeout:
		return "timeout"
	default:
		if err == nil {
			return "none"
		}
		return "unknown"
	}
}
