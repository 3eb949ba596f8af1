package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dpe27/restpoll/pkg/log"
	"github.com/dpe27/restpoll/pkg/nethttp"
	"github.com/dpe27/restpoll/pkg/utils"
)

const (
	invalidStatusCode = 0
	mask              = "********"

	requestBodyLogKey  = "body_request"
	requestHeadersKey  = "headers_request"
	responseBodyLogKey = "body_response"
	urlLogKey          = "url"
	durationLogKey     = "duration"
	methodLogKey       = "method"
	protocolLogKey     = "protocol"
	serviceLogKey      = "service"
	statusCodeLogKey   = "status_code"

	unmatchedTypeMsg = "unmatched type"
	emptyBodyMsg     = " is empty"
	completedMsg     = "Request completed with HttpClient"
	serverErrorMsg   = "Request completed with server error"
)

type (
	HttpClient interface {
		Do(req *http.Request, opts *reqOpt) (*http.Response, error)
	}

	httpClient struct {
		client   *http.Client
		logger   *log.Logger
		observer RequestObserver
	}

	// replayBody serves an already consumed prefix followed by the rest of
	// the underlying body, and closes it.
	replayBody struct {
		io.Reader
		io.Closer
	}
)

func NewHttpClient(args *clientOpt) HttpClient {
	logger := args.logger
	if logger == nil {
		logger = log.With()
	}
	logger = logger.With(serviceLogKey, args.serviceName)

	if args.client != nil {
		return &httpClient{
			client:   args.client,
			logger:   logger,
			observer: args.observer,
		}
	}

	defaultTransport := http.DefaultTransport.(*http.Transport)

	transport := defaultTransport.Clone()
	transport.ResponseHeaderTimeout = args.responseHeaderTimeout
	transport.DisableKeepAlives = !args.keepAlive
	transport.DisableCompression = true
	transport.ForceAttemptHTTP2 = false
	transport.TLSClientConfig = args.buildTLSConfig()
	if args.insecureSkipVerify {
		logger.Warn(context.Background(), "TLS certificate and hostname verification is disabled")
	}

	return &httpClient{
		logger:   logger,
		observer: args.observer,
		client: &http.Client{
			Timeout:   args.timeout,
			Transport: transport,
			// a redirect is returned as the response, never followed
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Do sends req exactly once. Failed requests are never retried here.
func (h *httpClient) Do(req *http.Request, opts *reqOpt) (*http.Response, error) {
	if opts == nil {
		opts = ReqOptBuilder().Build()
	}

	fields := make(map[string]interface{})
	if opts.canLog {
		h.preReq(req, opts, fields)
	}

	start := time.Now()
	res, err := h.client.Do(req)
	elapsed := time.Since(start)

	if h.observer != nil {
		h.observer.ObserveRequest(requestOutcome(res, err), elapsed)
	}
	if opts.canLog {
		h.postReq(req, res, err, elapsed, opts, fields)
	}
	return res, err
}

func requestOutcome(res *http.Response, err error) string {
	if err != nil || res == nil {
		return "error"
	}
	return fmt.Sprintf("%dxx", res.StatusCode/100)
}

func (h *httpClient) preReq(
	req *http.Request,
	opts *reqOpt,
	fields map[string]interface{},
) {
	fields[urlLogKey] = h.maskUrl(req.URL.String(), opts.maskedQueryParamKeys)
	if len(opts.loggedRequestHeaders) > 0 {
		fields[requestHeadersKey] = pickHeaders(req.Header, opts.loggedRequestHeaders)
	}
	if opts.canLogRequestBody || opts.canLogRequestBodyOnlyError {
		req.Body = h.logBody(
			req.Body,
			requestBodyLogKey,
			opts.loggedRequestKeys,
			opts.bodyLogLimit,
			fields,
		)
	}
}

func (h *httpClient) postReq(
	req *http.Request,
	res *http.Response,
	err error,
	elapsed time.Duration,
	args *reqOpt,
	fields map[string]interface{},
) {
	fields[durationLogKey] = elapsed
	fields[methodLogKey] = req.Method
	fields[protocolLogKey] = req.Proto

	hasErr := err != nil || res.StatusCode/100 == 4 || res.StatusCode/100 == 5
	if !(hasErr && args.canLogRequestBodyOnlyError) && !args.canLogRequestBody {
		delete(fields, requestBodyLogKey)
	}
	if err != nil {
		h.outputLog(req.Context(), invalidStatusCode, err, fields)
		return
	}

	fields[statusCodeLogKey] = res.StatusCode
	if args.canLogResponseBody || (hasErr && args.canLogResponseBodyOnlyError) {
		res.Body = h.logBody(
			res.Body,
			responseBodyLogKey,
			args.loggedResponseKeys,
			args.bodyLogLimit,
			fields,
		)
	}

	h.outputLog(req.Context(), res.StatusCode, nil, fields)
}

// logBody records at most limit bytes of b and returns a reader that still
// yields the complete body. Large bodies are never fully buffered.
func (h *httpClient) logBody(
	b io.ReadCloser,
	logKey string,
	loggedKeys []string,
	limit int,
	fields map[string]interface{},
) io.ReadCloser {
	if b == nil || b == http.NoBody {
		fields[logKey] = logKey + emptyBodyMsg
		return b
	}

	prefix, err := io.ReadAll(io.LimitReader(b, int64(limit)+1))
	if err != nil {
		fields[logKey] = utils.ErrorReadBody
	}

	if err == nil {
		complete := len(prefix) <= limit
		switch {
		case complete && len(loggedKeys) > 0:
			fields[logKey] = h.filterBody(prefix, loggedKeys)
		case complete:
			fields[logKey] = string(prefix)
		default:
			fields[logKey] = string(prefix[:limit])
		}
	}

	return &replayBody{
		Reader: io.MultiReader(bytes.NewReader(prefix), b),
		Closer: b,
	}
}

func (h *httpClient) filterBody(body []byte, loggedKeys []string) interface{} {
	var result interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return utils.ErrorDecodeBody
	}

	switch result.(type) {
	case map[string]interface{}:
		return h.filterJsonStruct(result, loggedKeys)
	case []interface{}:
		return h.filterJsonArray(result, loggedKeys)
	default:
		return unmatchedTypeMsg
	}
}

func (h *httpClient) filterJsonStruct(
	result interface{}, keys []string,
) map[string]interface{} {
	loggedResult := make(map[string]interface{})
	for _, key := range keys {
		if v, ok := result.(map[string]interface{})[key]; ok {
			loggedResult[key] = v
		}
	}
	return loggedResult
}

func (h *httpClient) filterJsonArray(
	result interface{}, keys []string,
) []map[string]interface{} {
	loggedResult := make([]map[string]interface{}, 0)
	for _, r := range result.([]interface{}) {
		obj, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		loggedResult = append(loggedResult, h.filterJsonStruct(obj, keys))
	}
	return loggedResult
}

// pickHeaders returns the named headers that are set. Header names are looked
// up as given first because the executor keeps configured names verbatim.
func pickHeaders(header http.Header, names []string) map[string]string {
	picked := make(map[string]string, len(names))
	for _, name := range names {
		values, ok := header[name]
		if !ok {
			values = header.Values(name)
		}
		if len(values) == 0 {
			continue
		}
		v := strings.Join(values, ",")
		if strings.EqualFold(name, nethttp.HeaderAuthorization) {
			v = maskCredentials(v)
		}
		picked[name] = v
	}
	return picked
}

// maskCredentials keeps the auth scheme and hides the credentials.
func maskCredentials(v string) string {
	if scheme, _, ok := strings.Cut(v, " "); ok {
		return scheme + " " + mask
	}
	return mask
}

// maskUrl func masks specified query parameters in the URL by
// replacing their values with a constant mask. User info is always redacted.
func (h *httpClient) maskUrl(u string, maskedKeys []string) string {
	pu, err := url.Parse(u)
	if err != nil {
		return utils.ErrorParseUrl
	}

	if len(maskedKeys) > 0 {
		p := pu.Query()
		for _, k := range maskedKeys {
			if p.Has(k) {
				p.Set(k, mask)
			}
		}
		pu.RawQuery = p.Encode()
	}
	return pu.Redacted()
}

func (h *httpClient) outputLog(ctx context.Context, statusCode int, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	switch {
	case err != nil:
		h.logger.With(args...).Error(ctx, err.Error())
	case statusCode/100 == 5:
		h.logger.With(args...).Error(ctx, serverErrorMsg)
	default:
		h.logger.With(args...).Info(ctx, completedMsg)
	}
}
