package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"junkgen/internal/scheduler"
)

// ErrRepositoryNotFound reports a 404 from a repository lookup.
var ErrRepositoryNotFound = errors.New("repository not found")

// RequestError carries the outcome of a failed GitHub call in a form the
// scheduler can classify. StatusCode 0 means the request never got a
// response.
type RequestError struct {
	Op         string
	StatusCode int
	Message    string

	cause       error
	rateLimited bool
	retryAfter  time.Duration
}

var _ scheduler.ProviderError = (*RequestError)(nil)

func (e *RequestError) Error() string {
	switch {
	case e.cause != nil:
		return fmt.Sprintf("github: %s: %v", e.Op, e.cause)
	case e.Message != "":
		return fmt.Sprintf("github: %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("github: %s: status %d", e.Op, e.StatusCode)
	}
}

func (e *RequestError) Unwrap() error {
	return e.cause
}

// Unauthorized reports bad credentials or missing scopes: a 401, or a 403
// that is not a rate-limit response.
func (e *RequestError) Unauthorized() bool {
	if e.StatusCode == http.StatusUnauthorized {
		return true
	}
	return e.StatusCode == http.StatusForbidden && !e.rateLimited
}

// RateLimited reports primary or secondary rate limiting.
func (e *RequestError) RateLimited() bool {
	return e.rateLimited
}

// Temporary reports failures worth a retry: 5xx, transport errors, and 409
// (concurrent writes to one branch surface as ref conflicts that clear on
// retry).
func (e *RequestError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusConflict
}

// RetryAfter returns the wait the server asked for, or 0.
func (e *RequestError) RetryAfter() time.Duration {
	return e.retryAfter
}

func newRequestError(op string, res *resty.Response) *RequestError {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(res.Body(), &body)

	e := &RequestError{
		Op:         op,
		StatusCode: res.StatusCode(),
		Message:    body.Message,
		retryAfter: parseRetryAfter(res.Header()),
	}
	e.rateLimited = e.StatusCode == http.StatusTooManyRequests ||
		(e.StatusCode == http.StatusForbidden && hasRateLimitMarkers(res.Header(), e.Message))
	return e
}

func newTransportError(op string, err error) *RequestError {
	return &RequestError{Op: op, cause: err}
}

// hasRateLimitMarkers distinguishes a throttling 403 from a permission 403.
func hasRateLimitMarkers(h http.Header, message string) bool {
	if h.Get("Retry-After") != "" {
		return true
	}
	if h.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(message), "rate limit")
}

// parseRetryAfter reads the server's requested wait from Retry-After or,
// failing that, from the X-RateLimit-Reset timestamp.
func parseRetryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if h.Get("X-RateLimit-Remaining") == "0" {
		if v := h.Get("X-RateLimit-Reset"); v != "" {
			if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
				if d := time.Until(time.Unix(unix, 0)); d > 0 {
					return d
				}
			}
		}
	}
	return 0
}

// needsExistingSHA picks out "file already exists" failures from a contents
// create: the API answers 422 when the create omits the sha of an existing
// file, and 409 when writers race on the branch.
func needsExistingSHA(err *RequestError) bool {
	if err.StatusCode == http.StatusConflict {
		return true
	}
	return err.StatusCode == http.StatusUnprocessableEntity && strings.Contains(err.Message, "sha")
}
