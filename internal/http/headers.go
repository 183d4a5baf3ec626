package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitInfo contains rate limit information parsed from response headers.
type RateLimitInfo struct {
	Limit      int           // Maximum requests allowed in the current window
	Remaining  int           // Remaining requests in the current window
	Reset      time.Duration // Time until the window resets
	RetryAfter time.Duration // Time to wait before retrying (from Retry-After)
}

// String returns a human-readable representation of rate limit info.
func (r *RateLimitInfo) String() string {
	var parts []string

	if r.Limit > 0 || r.Remaining > 0 {
		parts = append(parts, "requests="+strconv.Itoa(r.Remaining)+"/"+strconv.Itoa(r.Limit))
	}
	if r.Reset > 0 {
		parts = append(parts, "reset="+r.Reset.String())
	}
	if r.RetryAfter > 0 {
		parts = append(parts, "retry_after="+r.RetryAfter.String())
	}

	return "RateLimit{" + strings.Join(parts, ", ") + "}"
}

// ParseRateLimitHeaders extracts rate limit information from response headers.
// Returns nil if no rate limit headers are found.
//
// Supported headers:
//   - X-RateLimit-Limit, X-RateLimit-Remaining (integers)
//   - X-RateLimit-Reset (seconds until reset)
//   - Retry-After (seconds or HTTP date)
//
// Invalid values are silently skipped.
func ParseRateLimitHeaders(headers []Header) *RateLimitInfo {
	info := &RateLimitInfo{}
	foundAny := false

	if val, ok := lookupHeader(headers, "X-RateLimit-Limit"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			info.Limit = n
			foundAny = true
		}
	}

	if val, ok := lookupHeader(headers, "X-RateLimit-Remaining"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			info.Remaining = n
			foundAny = true
		}
	}

	if val, ok := lookupHeader(headers, "X-RateLimit-Reset"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			info.Reset = time.Duration(n) * time.Second
			foundAny = true
		}
	}

	if val, ok := lookupHeader(headers, "Retry-After"); ok {
		val = strings.TrimSpace(val)
		if seconds, err := strconv.Atoi(val); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
			foundAny = true
		} else if t, err := http.ParseTime(val); err == nil {
			info.RetryAfter = max(time.Until(t), 0)
			foundAny = true
		}
	}

	if !foundAny {
		return nil
	}
	return info
}

// sanitizeToken masks a bearer token for logging, keeping the scheme.
// Format: "Bearer abcdefghijklmnop" -> "Bearer abc***jklmnop"
func sanitizeToken(token string) string {
	if token == "" {
		return ""
	}

	scheme := ""
	if i := strings.IndexByte(token, ' '); i >= 0 {
		scheme, token = token[:i+1], token[i+1:]
	}

	n := len(token)
	switch {
	case n <= 5:
		return scheme + "***" + token[max(0, n-2):]
	case n <= 10:
		return scheme + token[:3] + "***" + token[n-3:]
	default:
		return scheme + token[:3] + "***" + token[n-7:]
	}
}
