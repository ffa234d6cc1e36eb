package slack

import "fmt"

// APIError is a call the server answered but flagged not-ok in the response
// envelope. Code is the server-supplied error code; Context describes the
// attempted action from the caller's point of view.
//
// Distinguishable from transport failures via errors.As.
type APIError struct {
	Code    string
	Context string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Error %s: %s", e.Code, e.Context)
}

// HTTPStatusError captures non-2xx responses with status-aware context. It is
// a transport-kind failure: the envelope was never interpreted.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("slack: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// PaginationError reports a cursor chain that exceeded the defensive page cap
// instead of terminating.
type PaginationError struct {
	Endpoint string
	Pages    int
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("slack: pagination of %s exceeded %d pages", e.Endpoint, e.Pages)
}
