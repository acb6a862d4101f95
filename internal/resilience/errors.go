package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrNoCredential is returned when the credential pool is empty or every key
// has been retired. A hunt pass cannot continue without a credential.
var ErrNoCredential = errors.New("resilience: no provider credential available")

// TransientError wraps an error that may succeed on a later call (5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RateLimitedError reports that the provider refused a call because the
// caller exceeded its quota (HTTP 429).
type RateLimitedError struct {
	Provider string
	Body     string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited: %s", e.Provider, e.Body)
}

// InvalidCredentialError reports that the provider rejected the API key
// itself (HTTP 401/403). The key should be retired from the pool.
type InvalidCredentialError struct {
	Provider   string
	StatusCode int
}

func (e *InvalidCredentialError) Error() string {
	return fmt.Sprintf("%s: credential rejected with status %d", e.Provider, e.StatusCode)
}

// IsRateLimited reports whether err (or any error in its chain) is a RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsInvalidCredential reports whether err (or any error in its chain) is an
// InvalidCredentialError.
func IsInvalidCredential(err error) bool {
	var ic *InvalidCredentialError
	return errors.As(err, &ic)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// server-side issue that may clear on its own. 429 is classified separately
// as a rate limit.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
