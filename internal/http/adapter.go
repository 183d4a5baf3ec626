package http

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/jeffersonwarrior/asynchttp/internal/transport"
)

// send configures a transfer for rc and registers it with the multi handle.
// Any failure leaves nothing registered.
func (m *Manager) send(rc *RequestContext) error {
	opts := []transport.Option{
		transport.URL(rc.url),
		transport.Method(rc.verb.String()),
		transport.HeaderFunction(rc.writeHeader),
		transport.WriteFunction(rc.writeBody),
		transport.Private(rc),
	}

	switch rc.verb {
	case VerbPOST:
		switch {
		case rc.bodyString != "":
			opts = append(opts, transport.PostFields([]byte(rc.bodyString)))
		case len(rc.body) > 0:
			opts = append(opts, transport.ReadFunction(rc.readBody), transport.InFileSize(int64(len(rc.body))))
		default:
			opts = append(opts, transport.PostFields([]byte{}))
		}
	case VerbPUT:
		if n := rc.bodyLen(); n > 0 {
			opts = append(opts, transport.ReadFunction(rc.readBody), transport.InFileSize(int64(n)))
		}
	}

	opts = append(opts, transport.HTTPHeader(m.headerLines(rc)))
	if m.config.Verbose {
		opts = append(opts, transport.Debug(m.debugHook(rc)))
	}

	t := transport.NewTransfer()
	if err := t.Configure(opts...); err != nil {
		m.log.Error().Err(err).Str("op", "configure transfer").Str("request_id", rc.id).Msg("failed to configure transfer")
		return fmt.Errorf("configure transfer: %w", err)
	}

	if m.config.BeforeSend != nil {
		if err := m.config.BeforeSend(rc); err != nil {
			m.log.Error().Err(err).Str("op", "before send").Str("request_id", rc.id).Msg("before send hook rejected request")
			return err
		}
	}

	rc.bytesSent = 0
	if err := m.multi.Add(t); err != nil {
		m.log.Error().Err(err).Str("op", "add transfer").Str("request_id", rc.id).Msg("failed to register transfer")
		return fmt.Errorf("add transfer: %w", err)
	}
	rc.transfer = t
	return nil
}

// headerLines renders the request headers followed by the credential
// headers. Headers that are not valid on the wire are skipped.
func (m *Manager) headerLines(rc *RequestContext) []string {
	headers := rc.Headers()
	if rc.credential.Token != "" {
		headers = append(headers, Header{Name: "Authorization", Value: rc.credential.Token})
	}
	if rc.credential.Signature != "" {
		headers = append(headers, Header{Name: "Signature", Value: rc.credential.Signature})
	}

	lines := make([]string, 0, len(headers))
	for _, h := range headers {
		if !h.IsValid() || !httpguts.ValidHeaderFieldName(h.Name) || !httpguts.ValidHeaderFieldValue(h.Value) {
			m.log.Warn().Str("request_id", rc.id).Str("header", h.Name).Msg("skipping invalid request header")
			continue
		}
		lines = append(lines, h.String())
	}
	return lines
}

func (m *Manager) debugHook(rc *RequestContext) transport.DebugFunc {
	return func(kind transport.DebugKind, msg string) {
		if name, value, ok := strings.Cut(msg, ": "); ok && strings.EqualFold(name, "Authorization") {
			msg = name + ": " + sanitizeToken(value)
		}
		dir := "*"
		switch kind {
		case transport.DebugHeaderOut:
			dir = ">"
		case transport.DebugHeaderIn:
			dir = "<"
		}
		m.log.Debug().Str("request_id", rc.id).Msg(dir + " " + msg)
	}
}
