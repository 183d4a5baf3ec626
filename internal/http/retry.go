package http

import (
	"net/http"

	"github.com/jeffersonwarrior/asynchttp/internal/identity"
)

// shouldRetry determines whether a completed request goes back through
// authorization.
//
// Retry conditions (all required):
//   - 401 Unauthorized
//   - the request carries a user identity
//   - the retry budget is not exhausted
//
// Every other status, including other 4xx and 5xx, completes the request.
func shouldRetry(rc *RequestContext, maxRetries int) bool {
	return rc.statusCode == http.StatusUnauthorized &&
		rc.user != nil &&
		rc.numRetries < maxRetries
}

// refreshPolicy forces a new credential when the last attempt was rejected.
func refreshPolicy(rc *RequestContext) identity.RefreshPolicy {
	if rc.statusCode == http.StatusUnauthorized {
		return identity.ForceRefresh
	}
	return identity.UseCached
}
