package httpclient

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	"github.com/dpe27/restpoll/internal/taskerr"
	"github.com/dpe27/restpoll/pkg/nethttp"
)

type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodTrace   Method = "TRACE"
)

var methods = map[Method]bool{
	MethodGet:     false,
	MethodPost:    true,
	MethodHead:    false,
	MethodOptions: false,
	MethodPut:     true,
	MethodDelete:  false,
	MethodTrace:   false,
}

// ParseMethod accepts only the seven supported method names, matched exactly.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if _, ok := methods[m]; !ok {
		return "", taskerr.UnsupportedMethod(s)
	}
	return m, nil
}

// HasBody reports whether the request body is transmitted for m.
func (m Method) HasBody() bool {
	return methods[m]
}

type (
	Endpoint struct {
		URL      string `json:"url" yaml:"url"`
		Username string `json:"username,omitempty" yaml:"username"`
		Password string `json:"password,omitempty" yaml:"password"`
	}

	Header struct {
		Name  string `json:"name" yaml:"name"`
		Value string `json:"value" yaml:"value"`
	}

	RequestSpec struct {
		Path    string
		Method  string
		Headers []Header
		Body    []byte
	}
)

// HasCredentials reports whether both username and password are set.
func (e Endpoint) HasCredentials() bool {
	return e.Username != "" && e.Password != ""
}

var errNotAbsolute = errors.New("no protocol or host")

// ResolveURL resolves path against the endpoint URL the way a browser
// resolves a link: relative paths are appended to the base directory and
// absolute URLs replace the base.
func ResolveURL(base, path string) (*url.URL, error) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, taskerr.MalformedURL(err)
	}
	if !b.IsAbs() || b.Host == "" {
		return nil, taskerr.MalformedURL(errNotAbsolute)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, taskerr.MalformedURL(err)
	}
	u := b.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, taskerr.MalformedURL(errors.New("unknown protocol: " + u.Scheme))
	}
	return u, nil
}

// ResolveHeaders returns the headers to send. A Basic Authorization header is
// added from the endpoint credentials unless one was given explicitly.
func ResolveHeaders(ep Endpoint, headers []Header) []Header {
	out := make([]Header, 0, len(headers)+1)
	hasAuth := false
	for _, h := range headers {
		if strings.EqualFold(h.Name, nethttp.HeaderAuthorization) {
			hasAuth = true
		}
		out = append(out, h)
	}
	if !hasAuth && ep.HasCredentials() {
		creds := base64.StdEncoding.EncodeToString([]byte(ep.Username + ":" + ep.Password))
		out = append(out, Header{Name: nethttp.HeaderAuthorization, Value: nethttp.AuthSchemeBasic + creds})
	}
	return out
}
