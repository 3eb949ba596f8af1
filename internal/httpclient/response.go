package httpclient

import (
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/dpe27/restpoll/internal/taskerr"
	"github.com/dpe27/restpoll/pkg/nethttp"
)

// MaxResponseSize is the largest body that is buffered.
const MaxResponseSize int64 = 4 * 1024 * 1024

// Response is the immutable record of one HTTP exchange.
type Response struct {
	statusCode     int
	headers        map[string]string
	body           string
	declaredLength int64
	oversized      bool
}

func NewResponse(statusCode int, headers map[string]string, body string) *Response {
	return &Response{
		statusCode:     statusCode,
		headers:        maps.Clone(headers),
		body:           body,
		declaredLength: int64(len(body)),
	}
}

// NewOversizedResponse records a response whose body of size bytes was not read.
func NewOversizedResponse(statusCode int, headers map[string]string, size int64) *Response {
	return &Response{
		statusCode:     statusCode,
		headers:        maps.Clone(headers),
		declaredLength: size,
		oversized:      true,
	}
}

func (r *Response) StatusCode() int {
	return r.statusCode
}

// Headers returns a copy of the response headers.
func (r *Response) Headers() map[string]string {
	return maps.Clone(r.headers)
}

func (r *Response) DeclaredLength() int64 {
	return r.declaredLength
}

func (r *Response) Oversized() bool {
	return r.oversized
}

// Body returns the decoded body, or a size limit error when the body exceeded
// MaxResponseSize and was never buffered.
func (r *Response) Body() (string, error) {
	if r.oversized {
		return "", taskerr.SizeLimit(r.declaredLength)
	}
	return r.body, nil
}

func responseHeaders(resp *http.Response) map[string]string {
	headers := make(map[string]string, len(resp.Header)+1)
	headers[nethttp.HeaderStatusLine] = fmt.Sprintf("%s %s", resp.Proto, resp.Status)
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, "")
	}
	return headers
}

// decodeText decodes data as UTF-8 and terminates every line with '\n'.
// "\r\n" and a lone '\r' both count as line terminators.
func decodeText(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	s := strings.ToValidUTF8(string(data), "\uFFFD")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}
