package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/wendao/limitpulse/pkg/httputil"
)

// ErrorType is the closed failure taxonomy. Every error that reaches the
// coordinator is mapped onto exactly one of these.
type ErrorType string

const (
	NetworkError        ErrorType = "network_error"
	Timeout             ErrorType = "timeout"
	RateLimited         ErrorType = "rate_limited"
	AuthenticationError ErrorType = "authentication_error"
	Forbidden           ErrorType = "forbidden"
	NotFound            ErrorType = "not_found"
	ServerError         ErrorType = "server_error"
	Unknown             ErrorType = "unknown"
)

// Retryable reports whether the error type may be retried. Authentication,
// Forbidden and NotFound fail fast.
func (t ErrorType) Retryable() bool {
	switch t {
	case AuthenticationError, Forbidden, NotFound:
		return false
	default:
		return true
	}
}

// Classify maps an error onto the taxonomy. Explicit status-code mapping
// runs first, then transport-level heuristics, else Unknown.
func Classify(err error) ErrorType {
	if err == nil {
		return Unknown
	}

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests:
			return RateLimited
		case statusErr.Code == http.StatusUnauthorized:
			return AuthenticationError
		case statusErr.Code == http.StatusForbidden:
			return Forbidden
		case statusErr.Code == http.StatusNotFound:
			return NotFound
		case statusErr.Code >= 500:
			return ServerError
		}
		return Unknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"),
		strings.Contains(msg, "deadline exceeded"):
		return Timeout
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "broken pipe"), strings.Contains(msg, "no such host"),
		strings.Contains(msg, "dns"), strings.Contains(msg, "unexpected eof"):
		return NetworkError
	}

	return Unknown
}

// isConnReset identifies the connection-reset class of network failures,
// which gets a heavier backoff multiplier.
func isConnReset(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}
