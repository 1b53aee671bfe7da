package pipedrive

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrUnauthorized is returned when Pipedrive rejects the access token (HTTP 401).
var ErrUnauthorized = errors.New("pipedrive: unauthorized")

// DefaultRetryAfter is used when a 429 response carries no usable Retry-After.
const DefaultRetryAfter = 2 * time.Second

// RateLimitError is returned on HTTP 429.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("pipedrive: rate limited, retry after %ds", e.RetryAfterSeconds)
}

// RetryAfter implements retry.RateLimited. A non-positive wait becomes
// DefaultRetryAfter.
func (e *RateLimitError) RetryAfter() time.Duration {
	if e.RetryAfterSeconds <= 0 {
		return DefaultRetryAfter
	}
	return time.Duration(e.RetryAfterSeconds) * time.Second
}

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pipedrive: request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is, or wraps, ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// parseRetryAfter reads the Retry-After header as seconds or an HTTP date.
func parseRetryAfter(h http.Header, now time.Time) int {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return int(DefaultRetryAfter / time.Second)
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return seconds
	}
	if t, err := http.ParseTime(v); err == nil {
		if secs := int(t.Sub(now).Round(time.Second) / time.Second); secs > 0 {
			return secs
		}
	}
	return int(DefaultRetryAfter / time.Second)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
