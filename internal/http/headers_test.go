package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRateLimitHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers []Header
		want    *RateLimitInfo
	}{
		{
			name:    "no headers",
			headers: nil,
			want:    nil,
		},
		{
			name:    "unrelated headers",
			headers: []Header{{Name: "Content-Type", Value: "text/plain"}},
			want:    nil,
		},
		{
			name: "full set",
			headers: []Header{
				{Name: "X-RateLimit-Limit", Value: "100"},
				{Name: "X-RateLimit-Remaining", Value: "42"},
				{Name: "X-RateLimit-Reset", Value: "60"},
				{Name: "Retry-After", Value: "5"},
			},
			want: &RateLimitInfo{Limit: 100, Remaining: 42, Reset: time.Minute, RetryAfter: 5 * time.Second},
		},
		{
			name:    "case insensitive names",
			headers: []Header{{Name: "x-ratelimit-remaining", Value: " 7 "}},
			want:    &RateLimitInfo{Remaining: 7},
		},
		{
			name: "invalid values are skipped",
			headers: []Header{
				{Name: "X-RateLimit-Limit", Value: "lots"},
				{Name: "Retry-After", Value: "soon"},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRateLimitHeaders(tt.headers))
		})
	}
}

func TestParseRateLimitRetryAfterDate(t *testing.T) {
	future := time.Now().Add(2 * time.Minute).UTC().Format(http.TimeFormat)
	info := ParseRateLimitHeaders([]Header{{Name: "Retry-After", Value: future}})
	require.NotNil(t, info)
	assert.InDelta(t, float64(2*time.Minute), float64(info.RetryAfter), float64(5*time.Second))

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	info = ParseRateLimitHeaders([]Header{{Name: "Retry-After", Value: past}})
	require.NotNil(t, info)
	assert.Zero(t, info.RetryAfter)

	// HTTP dates are always GMT.
	utc := time.Now().Add(time.Minute).UTC().Format(time.RFC1123)
	assert.Nil(t, ParseRateLimitHeaders([]Header{{Name: "Retry-After", Value: utc}}))
}

func TestRateLimitInfoString(t *testing.T) {
	info := &RateLimitInfo{Limit: 10, Remaining: 2, Reset: 30 * time.Second}
	assert.Equal(t, "RateLimit{requests=2/10, reset=30s}", info.String())
	assert.Equal(t, "RateLimit{}", (&RateLimitInfo{}).String())
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***bc"},
		{"Bearer abcd", "Bearer ***cd"},
		{"Bearer token-1", "Bearer tok***n-1"},
		{"Bearer abcdefghijklmnop", "Bearer abc***jklmnop"},
		{"rawtokenwithoutscheme", "raw***tscheme"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeToken(tt.in), "input %q", tt.in)
	}
}
