package http

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jeffersonwarrior/asynchttp/internal/identity"
	"github.com/jeffersonwarrior/asynchttp/internal/transport"
)

// CompletionFunc receives a request once it reaches a terminal state. The
// context must not be retained after the callback returns.
type CompletionFunc func(rc *RequestContext)

// RequestContext is the state of one in-flight request. It is created by
// Submit, owned by the manager, and released right after its completion
// callback returns.
type RequestContext struct {
	id      string
	manager *Manager
	user    *identity.User
	verb    Verb
	url     string
	headers []Header

	// Exactly one of body and bodyString is populated.
	body       []byte
	bodyString string
	bytesSent  int

	responseHeaders []Header
	responseBody    bytes.Buffer
	responseBytes   int64
	statusCode      int

	credential       identity.Credential
	retryPending     bool
	numRetries       int
	signatureHeaders []identity.Header
	pendingToken     <-chan identity.Result

	transfer    *transport.Transfer
	onCompleted CompletionFunc
	err         error
	released    bool
}

func newRequestContext(m *Manager, user *identity.User, verb Verb, url string, headers []Header, onCompleted CompletionFunc) *RequestContext {
	return &RequestContext{
		id:          uuid.NewString(),
		manager:     m,
		user:        user,
		verb:        verb,
		url:         url,
		headers:     append([]Header(nil), headers...),
		onCompleted: onCompleted,
	}
}

func (rc *RequestContext) ID() string           { return rc.id }
func (rc *RequestContext) User() *identity.User { return rc.user }
func (rc *RequestContext) Verb() Verb           { return rc.verb }
func (rc *RequestContext) URL() string          { return rc.url }

// Headers returns a copy of the request headers.
func (rc *RequestContext) Headers() []Header {
	return append([]Header(nil), rc.headers...)
}

// Body returns the request body, whichever representation it was submitted in.
func (rc *RequestContext) Body() []byte {
	if rc.bodyString != "" {
		return []byte(rc.bodyString)
	}
	return rc.body
}

func (rc *RequestContext) bodyLen() int {
	if rc.bodyString != "" {
		return len(rc.bodyString)
	}
	return len(rc.body)
}

// ContentType returns the request's Content-Type header, if one was given.
func (rc *RequestContext) ContentType() string {
	v, _ := lookupHeader(rc.headers, "Content-Type")
	return v
}

// StatusCode is the HTTP status of the last completed exchange, or 0.
func (rc *RequestContext) StatusCode() int { return rc.statusCode }

// ResponseHeaders returns the response headers in receive order.
func (rc *RequestContext) ResponseHeaders() []Header {
	return append([]Header(nil), rc.responseHeaders...)
}

// ResponseHeader returns the first response header named name.
func (rc *RequestContext) ResponseHeader(name string) string {
	v, _ := lookupHeader(rc.responseHeaders, name)
	return v
}

// ResponseBody returns the accumulated response body.
func (rc *RequestContext) ResponseBody() []byte { return rc.responseBody.Bytes() }

// ResponseBytes is the download size reported by the transport.
func (rc *RequestContext) ResponseBytes() int64 { return rc.responseBytes }

// NumRetries counts the 401-driven retries performed so far.
func (rc *RequestContext) NumRetries() int { return rc.numRetries }

// Err is non-nil when the request ended without a usable response: the
// transfer failed, a credential could not be obtained, or the manager was
// cleaned up first.
func (rc *RequestContext) Err() error { return rc.err }

// RateLimit parses rate limit headers from the response, or returns nil.
func (rc *RequestContext) RateLimit() *RateLimitInfo {
	return ParseRateLimitHeaders(rc.responseHeaders)
}

// readBody is the upload callback. It copies the next slice of the body into
// p and advances bytesSent; 0 ends the upload.
func (rc *RequestContext) readBody(p []byte) int {
	if rc == nil {
		log.Warn().Str("op", "upload").Msg("upload callback invoked without a request context")
		return 0
	}

	var n int
	if rc.bodyString != "" {
		n = copy(p, rc.bodyString[rc.bytesSent:])
	} else {
		n = copy(p, rc.body[rc.bytesSent:])
	}
	rc.bytesSent += n
	return n
}

// writeHeader is the response header callback. Lines without a colon (the
// status line, the terminating blank line) are dropped but still consumed.
func (rc *RequestContext) writeHeader(line []byte) int {
	if h, ok := ParseHeaderLine(line); ok {
		rc.responseHeaders = append(rc.responseHeaders, h)
	}
	return len(line)
}

// writeBody is the response body callback.
func (rc *RequestContext) writeBody(chunk []byte) int {
	rc.responseBody.Write(chunk)
	return len(chunk)
}

// resetResponse clears everything accumulated by the previous attempt.
func (rc *RequestContext) resetResponse() {
	rc.responseHeaders = nil
	rc.responseBody.Reset()
	rc.responseBytes = 0
	rc.statusCode = 0
	rc.bytesSent = 0
	rc.signatureHeaders = nil
}

// release drops everything the context holds once it is complete.
func (rc *RequestContext) release() {
	rc.released = true
	rc.resetResponse()
	rc.transfer = nil
	rc.pendingToken = nil
	rc.onCompleted = nil
	rc.manager = nil
}
