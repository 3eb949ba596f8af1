package poll

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dpe27/restpoll/internal/httpclient"
	"github.com/dpe27/restpoll/internal/taskerr"
)

// Evaluate reports whether resp satisfies both criteria. An empty criterion
// always passes.
//
// The status check is textual: "200, 201" accepts 200 and 201 because the
// text contains their digits. The pattern check matches anywhere in the body,
// see MatchPattern.
// The body is read only when a pattern is given, so an oversized body fails
// with a size limit error only in that case.
func Evaluate(resp *httpclient.Response, expectedStatuses, expectedPattern string) (bool, error) {
	if !StatusMatches(resp.StatusCode(), expectedStatuses) {
		return false, nil
	}
	if expectedPattern == "" {
		return true, nil
	}

	re, err := CompilePattern(expectedPattern)
	if err != nil {
		return false, err
	}
	body, err := resp.Body()
	if err != nil {
		return false, err
	}
	return MatchPattern(re, body), nil
}

// MatchPattern finds re anywhere in body. Bodies always end with a line
// terminator, and an end anchor also matches just before that final "\n".
func MatchPattern(re *regexp.Regexp, body string) bool {
	if re.MatchString(body) {
		return true
	}
	trimmed, ok := strings.CutSuffix(body, "\n")
	return ok && re.MatchString(trimmed)
}

func StatusMatches(status int, expectedStatuses string) bool {
	return expectedStatuses == "" || strings.Contains(expectedStatuses, strconv.Itoa(status))
}

// CompilePattern compiles an expected response expression.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, taskerr.Validation(nil, taskerr.MsgInvalidPattern+err.Error(), err)
	}
	return re, nil
}
