package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jeffersonwarrior/asynchttp/internal/identity"
	"github.com/jeffersonwarrior/asynchttp/internal/transport"
)

var (
	ErrNotInitialized     = errors.New("http: request manager not initialized")
	ErrNoTransport        = errors.New("http: no transport")
	ErrNoIdentityProvider = errors.New("http: request has a user but no identity provider is configured")
	ErrManagerClosed      = errors.New("http: request manager cleaned up before completion")
)

// Manager drives asynchronous requests over a multi-transfer transport.
//
// A Manager is not safe for concurrent use. Submit, Pump and CleanUp must be
// called from one goroutine, which is also where every callback runs.
type Manager struct {
	transport transport.Transport
	provider  identity.Provider
	config    Config
	log       zerolog.Logger

	multi       transport.Multi
	initialized bool
	ctx         context.Context
	cancel      context.CancelFunc

	// requests holds every submitted, not yet completed request in
	// submission order; authorizing is the subset waiting for a credential.
	requests    []*RequestContext
	authorizing []*RequestContext
}

// NewManager creates a request manager. provider may be nil when no request
// will carry a user. Default values are applied to zero-valued config fields.
func NewManager(t transport.Transport, provider identity.Provider, cfg Config) *Manager {
	cfg.setDefaults()
	return &Manager{
		transport: t,
		provider:  provider,
		config:    cfg,
		log:       cfg.logger(),
	}
}

// Initialize sets up the transport and creates the multi handle. It is a
// no-op when already initialized. On failure the manager stays uninitialized.
func (m *Manager) Initialize() error {
	if m.initialized {
		return nil
	}
	if m.transport == nil {
		m.log.Error().Str("op", "global init").Msg("no transport configured")
		return ErrNoTransport
	}

	if err := m.transport.GlobalInit(m.config.Allocator); err != nil {
		m.log.Error().Err(err).Str("op", "global init").Msg("transport initialization failed")
		return fmt.Errorf("global init: %w", err)
	}

	multi, err := m.transport.NewMulti()
	if err != nil {
		m.transport.GlobalCleanup()
		m.log.Error().Err(err).Str("op", "multi create").Msg("multi handle creation failed")
		return fmt.Errorf("multi create: %w", err)
	}

	m.multi = multi
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.initialized = true
	m.log.Debug().Int("max_retries", m.config.MaxRetries).Msg("request manager initialized")
	return nil
}

// CleanUp completes every outstanding request with ErrManagerClosed, destroys
// the multi handle and releases the transport. It is a no-op when not
// initialized. The manager is uninitialized afterwards even if tearing down
// the multi handle fails.
func (m *Manager) CleanUp() error {
	if !m.initialized {
		return nil
	}
	m.initialized = false
	m.cancel()

	outstanding := m.requests
	m.requests = nil
	m.authorizing = nil
	for _, rc := range outstanding {
		if rc.transfer != nil {
			if err := m.multi.Remove(rc.transfer); err != nil {
				m.log.Warn().Err(err).Str("op", "remove transfer").Str("request_id", rc.id).Msg("failed to detach transfer")
			}
		}
		m.fail(rc, ErrManagerClosed)
	}

	err := m.multi.Close()
	m.multi = nil
	m.transport.GlobalCleanup()
	if err != nil {
		m.log.Error().Err(err).Str("op", "multi destroy").Msg("multi handle teardown failed")
		return fmt.Errorf("multi destroy: %w", err)
	}

	m.log.Debug().Msg("request manager cleaned up")
	return nil
}

// Initialized reports whether Initialize has succeeded and CleanUp has not
// run since.
func (m *Manager) Initialized() bool {
	return m.initialized
}

// Pending returns the number of submitted requests that have not completed.
func (m *Manager) Pending() int {
	return len(m.requests)
}

// Submit starts a request with a raw byte body. With a non-nil user the
// request is signed first; otherwise it is sent directly.
//
// A nil error means the request is pending and onCompleted will be called
// exactly once from a later Pump (or from CleanUp). A non-nil error means the
// request never started and onCompleted will not be called.
func (m *Manager) Submit(user *identity.User, verb Verb, url string, headers []Header, body []byte, onCompleted CompletionFunc) error {
	rc := newRequestContext(m, user, verb, url, headers, onCompleted)
	if len(body) > 0 {
		rc.body = append([]byte(nil), body...)
	}
	return m.submit(rc)
}

// SubmitString is Submit with a string body. A POST string body is sent
// verbatim rather than through the upload callback.
func (m *Manager) SubmitString(user *identity.User, verb Verb, url string, headers []Header, body string, onCompleted CompletionFunc) error {
	rc := newRequestContext(m, user, verb, url, headers, onCompleted)
	rc.bodyString = body
	return m.submit(rc)
}

func (m *Manager) submit(rc *RequestContext) error {
	if !m.initialized {
		m.log.Error().Str("op", "submit").Str("url", rc.url).Msg("request manager not initialized")
		return ErrNotInitialized
	}
	if !rc.verb.valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedVerb, rc.verb)
	}

	m.requests = append(m.requests, rc)

	var err error
	if rc.user != nil {
		err = m.beginAuthorization(rc)
	} else {
		err = m.send(rc)
	}
	if err != nil {
		m.untrack(rc)
		rc.release()
		return err
	}

	m.log.Debug().Str("request_id", rc.id).Str("verb", rc.verb.String()).Str("url", rc.url).
		Bool("authenticated", rc.user != nil).Msg("request submitted")
	return nil
}

// Pump delivers credentials that have arrived, drives the transport once and
// processes every finished transfer. It does nothing when not initialized.
func (m *Manager) Pump() {
	if !m.initialized {
		m.log.Warn().Str("op", "pump").Msg("request manager not initialized")
		return
	}

	m.pollAuthorizations()
	if !m.initialized {
		return
	}

	if _, err := m.multi.Perform(); err != nil {
		m.log.Error().Err(err).Str("op", "perform").Msg("transport perform failed")
	}

	// Callbacks may clean the manager up, so re-check on every message.
	for m.initialized {
		msg := m.multi.InfoRead()
		if msg == nil {
			break
		}
		if msg.Msg != transport.MsgDone {
			continue
		}
		m.handleDone(msg)
	}
}

func (m *Manager) handleDone(msg *transport.Message) {
	t := msg.Transfer
	if err := m.multi.Remove(t); err != nil {
		m.log.Warn().Err(err).Str("op", "remove transfer").Msg("failed to detach finished transfer")
	}

	rc, ok := t.Private().(*RequestContext)
	if !ok || rc == nil || rc.released {
		m.log.Error().Str("op", "transfer result").Str("url", t.URL()).Msg("finished transfer has no request context")
		return
	}
	rc.transfer = nil

	if msg.Result != nil {
		m.log.Error().Err(msg.Result).Str("op", "transfer result").Str("request_id", rc.id).
			Int("os_errno", t.OSErrno()).Msg("transfer failed")
		m.fail(rc, fmt.Errorf("transfer failed: %w", msg.Result))
		return
	}

	rc.statusCode = t.ResponseCode()
	rc.responseBytes = t.SizeDownload()
	if m.config.AfterResponse != nil {
		m.config.AfterResponse(rc)
	}
	m.completeRequest(rc)
}

// completeRequest either starts another authorization round after a 401 or
// finishes the request.
func (m *Manager) completeRequest(rc *RequestContext) {
	if !shouldRetry(rc, m.config.MaxRetries) {
		m.finish(rc, nil)
		return
	}

	rc.numRetries++
	rc.retryPending = true
	m.log.Info().Str("request_id", rc.id).Int("attempt", rc.numRetries).Int("max_retries", m.config.MaxRetries).
		Msg("unauthorized, retrying with refreshed credential")

	if m.config.OnRetry != nil {
		if err := m.config.OnRetry(rc, rc.numRetries); err != nil {
			m.fail(rc, err)
			return
		}
	}
	if err := m.beginAuthorization(rc); err != nil {
		m.fail(rc, err)
	}
}

// retryRequest resends a request with the credential it just received.
func (m *Manager) retryRequest(rc *RequestContext) error {
	rc.resetResponse()
	rc.retryPending = false
	return m.send(rc)
}

func (m *Manager) fail(rc *RequestContext, err error) {
	if m.config.OnError != nil {
		m.config.OnError(rc, err)
	}
	m.finish(rc, err)
}

// finish invokes the completion callback and releases the context. It runs
// at most once per request.
func (m *Manager) finish(rc *RequestContext, err error) {
	if rc.released {
		return
	}
	rc.err = err
	m.untrack(rc)

	ev := m.log.Info()
	if err != nil {
		ev = m.log.Warn().Err(err)
	}
	ev.Str("request_id", rc.id).Int("status", rc.statusCode).Int64("bytes", rc.responseBytes).
		Int("retries", rc.numRetries).Msg("request completed")

	if rc.onCompleted != nil {
		rc.onCompleted(rc)
	}
	rc.release()
}

func (m *Manager) untrack(rc *RequestContext) {
	m.requests = removeContext(m.requests, rc)
	m.authorizing = removeContext(m.authorizing, rc)
}

func removeContext(list []*RequestContext, rc *RequestContext) []*RequestContext {
	for i, c := range list {
		if c == rc {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
