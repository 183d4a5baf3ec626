package http

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/jeffersonwarrior/asynchttp/internal/identity"
	"github.com/jeffersonwarrior/asynchttp/internal/transport"
)

// fakeResponse scripts the outcome of one transfer.
type fakeResponse struct {
	status  int
	headers []string
	chunks  []string
	err     error
}

// sentRequest records what the fake transport saw for one transfer.
type sentRequest struct {
	method  string
	url     string
	headers []string
	body    []byte
	upload  bool
	literal bool
}

// fakeTransport is a deterministic in-memory transport. Every transfer added
// before a Perform completes during that Perform, with the response chosen
// by respond (n counts sends from 0).
type fakeTransport struct {
	initErr  error
	multiErr error
	closeErr error
	respond  func(n int, t *transport.Transfer) fakeResponse

	inits    int
	cleanups int
	multi    *fakeMulti
	sent     []sentRequest
}

func (f *fakeTransport) GlobalInit(transport.Allocator) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.inits++
	return nil
}

func (f *fakeTransport) GlobalCleanup() {
	f.cleanups++
}

func (f *fakeTransport) NewMulti() (transport.Multi, error) {
	if f.multiErr != nil {
		return nil, f.multiErr
	}
	f.multi = &fakeMulti{
		owner:  f,
		active: make(map[*transport.Transfer]bool),
		index:  make(map[*transport.Transfer]int),
	}
	return f.multi, nil
}

type fakeMulti struct {
	owner   *fakeTransport
	queued  []*transport.Transfer
	active  map[*transport.Transfer]bool
	index   map[*transport.Transfer]int
	done    []*transport.Message
	removed int
	closed  bool
}

func (f *fakeMulti) Add(t *transport.Transfer) error {
	if f.closed {
		return transport.ErrMultiClosed
	}
	if f.active[t] {
		return transport.ErrAlreadyAdded
	}

	req := sentRequest{method: t.Method(), url: t.URL(), headers: t.HTTPHeader()}
	if t.HasUpload() {
		req.upload = true
		buf := make([]byte, 3)
		for {
			n := t.PullBody(buf)
			if n == 0 {
				break
			}
			req.body = append(req.body, buf[:n]...)
		}
	} else if pf, ok := t.PostFields(); ok {
		req.literal = true
		req.body = pf
	}
	for _, line := range t.HTTPHeader() {
		t.Debugf(transport.DebugHeaderOut, "%s", line)
	}

	f.index[t] = len(f.owner.sent)
	f.owner.sent = append(f.owner.sent, req)
	f.active[t] = true
	f.queued = append(f.queued, t)
	return nil
}

func (f *fakeMulti) Perform() (int, error) {
	if f.closed {
		return 0, transport.ErrMultiClosed
	}

	queued := f.queued
	f.queued = nil
	for _, t := range queued {
		n := f.index[t]
		resp := fakeResponse{status: 200}
		if f.owner.respond != nil {
			resp = f.owner.respond(n, t)
		}
		if resp.err != nil {
			t.Finish(0, resp.err)
			f.done = append(f.done, &transport.Message{Msg: transport.MsgDone, Transfer: t, Result: resp.err})
			continue
		}

		t.EmitHeader([]byte("HTTP/1.1 " + strconv.Itoa(resp.status) + " Status\r\n"))
		for _, h := range resp.headers {
			t.EmitHeader([]byte(h + "\r\n"))
		}
		t.EmitHeader([]byte("\r\n"))
		for _, c := range resp.chunks {
			t.EmitBody([]byte(c))
		}
		t.Finish(resp.status, nil)
		f.done = append(f.done, &transport.Message{Msg: transport.MsgDone, Transfer: t})
	}
	return len(f.queued), nil
}

func (f *fakeMulti) InfoRead() *transport.Message {
	if len(f.done) == 0 {
		return nil
	}
	msg := f.done[0]
	f.done = f.done[1:]
	return msg
}

func (f *fakeMulti) Remove(t *transport.Transfer) error {
	if !f.active[t] {
		return transport.ErrNotAdded
	}
	delete(f.active, t)
	f.removed++
	return nil
}

func (f *fakeMulti) Close() error {
	if f.owner.closeErr != nil {
		return f.owner.closeErr
	}
	f.closed = true
	return nil
}

// fakeProvider resolves every token request immediately, so the result is
// picked up by the next Pump.
type fakeProvider struct {
	syncErr  error
	asyncErr error
	hold     bool

	calls   []identity.TokenRequest
	pending []chan identity.Result
}

func (p *fakeProvider) GetTokenAndSignature(ctx context.Context, req identity.TokenRequest) (<-chan identity.Result, error) {
	p.calls = append(p.calls, req)
	if p.syncErr != nil {
		return nil, p.syncErr
	}

	ch := make(chan identity.Result, 1)
	res := identity.Result{Credential: identity.Credential{
		Token:     fmt.Sprintf("Bearer token-%d", len(p.calls)),
		Signature: fmt.Sprintf("sig-%d", len(p.calls)),
	}}
	if p.asyncErr != nil {
		res = identity.Result{Err: p.asyncErr}
	}

	if p.hold {
		p.pending = append(p.pending, ch)
		go func() {
			<-ctx.Done()
			ch <- identity.Result{Err: ctx.Err()}
		}()
		return ch, nil
	}
	ch <- res
	return ch, nil
}

var errBoom = errors.New("boom")

func newTestManager(t *testing.T, ft *fakeTransport, p identity.Provider, cfg Config) *Manager {
	t.Helper()

	m := NewManager(ft, p, cfg)
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { m.CleanUp() })
	return m
}

// pumpUntilIdle pumps until no request is pending.
func pumpUntilIdle(t *testing.T, m *Manager) {
	t.Helper()

	for i := 0; i < 100; i++ {
		if m.Pending() == 0 {
			return
		}
		m.Pump()
	}
	t.Fatalf("requests still pending after 100 pumps: %d", m.Pending())
}

// completion records every callback invocation with a snapshot of the
// context taken inside the callback.
type completion struct {
	rc      *RequestContext
	status  int
	body    string
	headers []Header
	bytes   int64
	retries int
	err     error
}

type recorder struct {
	calls []completion
}

func (r *recorder) callback(rc *RequestContext) {
	r.calls = append(r.calls, completion{
		rc:      rc,
		status:  rc.StatusCode(),
		body:    string(rc.ResponseBody()),
		headers: rc.ResponseHeaders(),
		bytes:   rc.ResponseBytes(),
		retries: rc.NumRetries(),
		err:     rc.Err(),
	})
}
