// Package utils holds the log messages shared across packages.
package utils

// Failure messages logged next to the underlying error.
const (
	ErrorCloseResponseBody = "failed to close response body"
	ErrorParseUrl          = "failed to parse url"
	ErrorReadBody          = "failed to read body"
	ErrorDecodeBody        = "failed to decode body"
	ErrorCreateRequest     = "failed to create request"

	ErrorMarshalEntry   = "failed to marshal dlq entry"
	ErrorUnmarshalEntry = "failed to unmarshal dlq entry"
	ErrorMarshalState   = "failed to marshal execution state"
	ErrorUnmarshalState = "failed to unmarshal execution state"
)
