package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// StatusError is a non-2xx response from an upstream model API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s http status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s http status %d: %s", e.Provider, e.Code, e.Body)
}

// IsRetryableHTTPStatus classifies transient HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ClassifyHTTPStatus buckets a status code into a metrics label.
func ClassifyHTTPStatus(code int) string {
	switch {
	case code == 429:
		return "rate_limited"
	case code == 401 || code == 403:
		return "unauthorized"
	case code >= 500:
		return "server_error"
	case code >= 400:
		return "client_error"
	default:
		return "ok"
	}
}

// ClassifyError buckets a client error into a metrics label.
func ClassifyError(err error) string {
	if err == nil {
		return "ok"
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyHTTPStatus(se.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	return "transport"
}
