package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/dpe27/restpoll/internal/taskerr"
	"github.com/dpe27/restpoll/pkg/log"
	"github.com/dpe27/restpoll/pkg/nethttp"
	"github.com/dpe27/restpoll/pkg/utils"
)

// Executor performs a single REST call and returns a bounded Response.
type Executor struct {
	cli    HttpClient
	logger *log.Logger
	opts   *reqOpt
}

func NewExecutor(client HttpClient, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.With()
	}
	return &Executor{
		cli:    client,
		logger: logger.With("component", "executor"),
		opts: ReqOptBuilder().
			Log().
			LogReqBodyOnlyError().
			LogResBodyOnlyError().
			LoggedReqHeaders(nethttp.HeaderContentType, nethttp.HeaderAccept, nethttp.HeaderAuthorization).
			Build(),
	}
}

// Execute sends spec to ep. The method is checked and the URL resolved before
// any connection is made. The body is sent for POST and PUT only.
func (e *Executor) Execute(ctx context.Context, ep Endpoint, spec RequestSpec) (*Response, error) {
	method, err := ParseMethod(spec.Method)
	if err != nil {
		e.logger.Error(ctx, taskerr.MsgUnsupportedMethod, "method", spec.Method)
		return nil, err
	}

	u, err := ResolveURL(ep.URL, spec.Path)
	if err != nil {
		e.logger.Error(ctx, err.Error())
		return nil, err
	}

	var body io.Reader
	if method.HasBody() {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), u.String(), body)
	if err != nil {
		e.logger.Error(ctx, utils.ErrorCreateRequest, "error", err)
		return nil, taskerr.MalformedURL(err)
	}
	for _, h := range ResolveHeaders(ep, spec.Headers) {
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		// direct assignment keeps the header name exactly as configured
		req.Header[h.Name] = []string{h.Value}
	}

	e.logger.Info(ctx, "Making request", "method", method, "url", u.Redacted())

	resp, err := e.cli.Do(req, e.opts)
	if err != nil {
		e.logger.Error(ctx, taskerr.MsgIO+err.Error())
		return nil, taskerr.Transport(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.Error(ctx, utils.ErrorCloseResponseBody, "error", err)
		}
	}()

	return e.readResponse(ctx, resp)
}

// readResponse enforces MaxResponseSize before reading. A declared length
// over the limit skips the body entirely; a body without a declared length
// is read only up to the limit.
func (e *Executor) readResponse(ctx context.Context, resp *http.Response) (*Response, error) {
	headers := responseHeaders(resp)

	declared := resp.ContentLength
	if declared > MaxResponseSize {
		e.logger.Info(ctx, "Skipping response body because it exceeds 4MB", "content_length", declared)
		return NewOversizedResponse(resp.StatusCode, headers, declared), nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		e.logger.Error(ctx, utils.ErrorReadBody, "error", err)
		return nil, taskerr.Transport(err)
	}
	if int64(len(data)) > MaxResponseSize {
		e.logger.Info(ctx, "Skipping response body because it exceeds 4MB", "read", len(data))
		return NewOversizedResponse(resp.StatusCode, headers, int64(len(data))), nil
	}

	if declared < 0 {
		declared = 0
	}
	return &Response{
		statusCode:     resp.StatusCode,
		headers:        headers,
		body:           decodeText(data),
		declaredLength: declared,
	}, nil
}
