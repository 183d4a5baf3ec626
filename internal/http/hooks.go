package http

// BeforeSendHook is called after a transfer has been configured and before it
// is registered with the transport, for the first attempt and every retry.
// If the hook returns an error the attempt is abandoned: Submit returns the
// error for a first attempt, the completion callback receives it for a retry.
//
// Use cases:
//   - Log request details
//   - Enforce client-side policy (e.g. block hosts)
type BeforeSendHook func(rc *RequestContext) error

// AfterResponseHook is called once per completed exchange, before the retry
// decision is taken. It sees 401 responses that will be retried.
//
// Use cases:
//   - Collect metrics
//   - Inspect rate limit headers
type AfterResponseHook func(rc *RequestContext)

// OnErrorHook is called when a request ends without a response: the transfer
// failed, the credential could not be obtained, or a retry could not be sent.
// It runs right before the completion callback.
type OnErrorHook func(rc *RequestContext, err error)

// OnRetryHook is called before each forced-refresh retry. attempt starts at 1.
// If the hook returns an error the retry is abandoned and the request
// completes with that error.
//
// Example:
//
//	OnRetry: func(rc *http.RequestContext, attempt int) error {
//	    log.Printf("Retrying %s (attempt %d)", rc.URL(), attempt)
//	    return nil
//	}
type OnRetryHook func(rc *RequestContext, attempt int) error
