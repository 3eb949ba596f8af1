package nethttp

const (
	HeaderAccept        = "Accept"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"

	// HeaderStatusLine is the synthetic response header holding the status
	// line, e.g. "HTTP/1.1 200 OK".
	HeaderStatusLine = "Status-Line"

	AuthSchemeBasic = "Basic "
)
