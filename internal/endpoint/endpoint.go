// Package endpoint checks that a REST endpoint is usable before tasks run
// against it.
package endpoint

import (
	"context"
	"net/http"
	"strings"

	"github.com/dpe27/restpoll/internal/httpclient"
	"github.com/dpe27/restpoll/internal/taskerr"
	"github.com/dpe27/restpoll/pkg/log"
)

const (
	MsgNoURL         = "REST Endpoint must contain URL."
	MsgLocalhost     = "REST Endpoint URL cannot be localhost."
	MsgAuthMalformed = "REST Endpoint username or password is empty."
	MsgUnauthorized  = "REST Endpoint credentials are invalid. (Credentials are passed using basic auth)"

	loopbackHostname = "localhost"
	loopbackIPv4     = "127.0.0.1"
	loopbackIPv6     = "::1"
)

type Executor interface {
	Execute(ctx context.Context, ep httpclient.Endpoint, spec httpclient.RequestSpec) (*httpclient.Response, error)
}

// Validate checks the endpoint properties without any network access.
func Validate(ep httpclient.Endpoint) error {
	switch {
	case ep.URL == "":
		return taskerr.Validation(nil, MsgNoURL, nil)
	case isLoopback(ep.URL):
		return taskerr.Validation(nil, MsgLocalhost, nil)
	case (ep.Username == "") != (ep.Password == ""):
		return taskerr.Validation(nil, MsgAuthMalformed, nil)
	}
	return nil
}

// Probe validates ep, then sends a GET to its root to prove it is reachable.
// Any status is accepted except 401 when credentials were sent.
func Probe(ctx context.Context, exec Executor, ep httpclient.Endpoint, logger *log.Logger) error {
	if logger == nil {
		logger = log.With()
	}
	logger = logger.With("component", "endpoint")
	logger.Info(ctx, "Validating REST endpoint")

	if err := Validate(ep); err != nil {
		logger.Error(ctx, err.Error())
		return err
	}

	resp, err := exec.Execute(ctx, ep, httpclient.RequestSpec{Method: http.MethodGet})
	if err != nil {
		logger.Info(ctx, "Failed to validate REST endpoint", "error", err)
		return err
	}
	logger.Info(ctx, "Endpoint responded", "status_code", resp.StatusCode())

	if ep.HasCredentials() && resp.StatusCode() == http.StatusUnauthorized {
		logger.Error(ctx, MsgUnauthorized)
		return taskerr.Validation(nil, MsgUnauthorized, nil)
	}
	return nil
}

func isLoopback(u string) bool {
	return strings.Contains(u, loopbackHostname) ||
		strings.Contains(u, loopbackIPv4) ||
		strings.Contains(u, loopbackIPv6)
}
