// Package preview renders a response as text for a human to inspect.
package preview

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dpe27/restpoll/internal/httpclient"
)

// Render formats resp as status, headers sorted by name, then body. An
// oversized body makes it fail with the size limit error.
func Render(resp *httpclient.Response) (string, error) {
	body, err := resp.Body()
	if err != nil {
		return "", err
	}

	headers := resp.Headers()
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Response status: ")
	b.WriteString(strconv.Itoa(resp.StatusCode()))
	b.WriteString("\n\nResponse headers:\n")
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(headers[name])
		b.WriteByte('\n')
	}
	b.WriteString("\nResponse body:\n")
	b.WriteString(body)
	return b.String(), nil
}
