package http

import (
	"errors"
	"fmt"

	"github.com/jeffersonwarrior/asynchttp/internal/identity"
)

var errTokenChannelClosed = errors.New("identity provider closed the result channel")

// beginAuthorization asks the identity provider for a credential for rc. The
// result is picked up by a later Pump.
func (m *Manager) beginAuthorization(rc *RequestContext) error {
	if m.provider == nil {
		m.log.Error().Str("op", "token request").Str("request_id", rc.id).Msg("no identity provider configured")
		return ErrNoIdentityProvider
	}

	rc.signatureHeaders = make([]identity.Header, 0, len(rc.headers))
	for _, h := range rc.headers {
		rc.signatureHeaders = append(rc.signatureHeaders, identity.Header{Name: h.Name, Value: h.Value})
	}

	policy := refreshPolicy(rc)
	ch, err := m.provider.GetTokenAndSignature(m.ctx, identity.TokenRequest{
		User:    rc.user,
		Policy:  policy,
		Method:  rc.verb.String(),
		URL:     rc.url,
		Headers: rc.signatureHeaders,
		Body:    rc.Body(),
	})
	if err != nil {
		m.log.Error().Err(err).Str("op", "token request").Str("request_id", rc.id).Msg("identity provider rejected token request")
		return fmt.Errorf("token request: %w", err)
	}

	rc.pendingToken = ch
	m.authorizing = append(m.authorizing, rc)
	m.log.Debug().Str("request_id", rc.id).Str("policy", policy.String()).Msg("authorization requested")
	return nil
}

// pollAuthorizations hands every credential that has arrived to its request
// without blocking.
func (m *Manager) pollAuthorizations() {
	waiting := m.authorizing
	m.authorizing = nil

	for _, rc := range waiting {
		if !m.initialized {
			return
		}
		if rc.released {
			continue
		}
		select {
		case res, ok := <-rc.pendingToken:
			rc.pendingToken = nil
			if !ok {
				res = identity.Result{Err: errTokenChannelClosed}
			}
			m.handleToken(rc, res)
		default:
			m.authorizing = append(m.authorizing, rc)
		}
	}
}

// handleToken continues a request once its credential request has resolved.
func (m *Manager) handleToken(rc *RequestContext, res identity.Result) {
	if res.Err != nil {
		m.log.Error().Err(res.Err).Str("op", "token result").Str("request_id", rc.id).Msg("credential request failed")
		m.fail(rc, fmt.Errorf("token result: %w", res.Err))
		return
	}

	rc.credential = res.Credential

	var err error
	if rc.retryPending {
		err = m.retryRequest(rc)
	} else {
		err = m.send(rc)
	}
	if err != nil {
		m.fail(rc, err)
	}
}
