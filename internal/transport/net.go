package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/http2"
)

// NetTransport is a Transport backed by net/http. Redirects are not
// followed; a 3xx response completes the transfer like any other status.
type NetTransport struct {
	config Config

	mu     sync.Mutex
	refs   int
	client *http.Client
	alloc  Allocator
}

// NewNetTransport creates an engine. Default values are applied to
// zero-valued config fields.
func NewNetTransport(cfg Config) *NetTransport {
	cfg.setDefaults()
	return &NetTransport{config: cfg}
}

// GlobalInit builds the shared connection pool. Calls nest: each successful
// GlobalInit must be paired with one GlobalCleanup.
func (nt *NetTransport) GlobalInit(alloc Allocator) error {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if alloc == nil {
		alloc = DefaultAllocator
	}

	if nt.refs == 0 {
		tr := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        nt.config.MaxIdleConns,
			MaxIdleConnsPerHost: nt.config.MaxIdleConnsPerHost,
			MaxConnsPerHost:     nt.config.MaxConnsPerHost,
			IdleConnTimeout:     nt.config.IdleConnTimeout,
		}
		if !nt.config.DisableHTTP2 {
			if _, err := http2.ConfigureTransports(tr); err != nil {
				return fmt.Errorf("configure http2: %w", err)
			}
		}
		nt.client = &http.Client{
			Transport: tr,
			Timeout:   nt.config.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	nt.alloc = alloc
	nt.refs++
	return nil
}

// GlobalCleanup drops one GlobalInit reference and closes idle connections
// once the last one is gone.
func (nt *NetTransport) GlobalCleanup() {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if nt.refs == 0 {
		return
	}
	nt.refs--
	if nt.refs == 0 {
		nt.client.CloseIdleConnections()
		nt.client = nil
		nt.alloc = nil
	}
}

// NewMulti creates a multi handle sharing the engine's connection pool.
func (nt *NetTransport) NewMulti() (Multi, error) {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if nt.client == nil {
		return nil, ErrNotInitialized
	}
	return &netMulti{
		client:    nt.client,
		alloc:     nt.alloc,
		bufSize:   nt.config.UploadBufferSize,
		transfers: make(map[*Transfer]*netTransfer),
	}, nil
}

type eventKind int

const (
	evHeader eventKind = iota
	evBody
	evDone
)

type event struct {
	kind eventKind
	t    *Transfer
	data []byte
	code int
	err  error
}

type netTransfer struct {
	cancel   context.CancelFunc
	aborted  bool
	finished bool
}

// netMulti runs each transfer's network I/O on its own goroutine. Those
// goroutines only queue events; Perform replays them on the caller.
type netMulti struct {
	client  *http.Client
	alloc   Allocator
	bufSize int

	mu      sync.Mutex
	events  []event
	stopped bool

	closed    bool
	transfers map[*Transfer]*netTransfer
	done      []*Message
}

func (m *netMulti) Add(t *Transfer) error {
	if m.closed {
		return ErrMultiClosed
	}
	if t == nil {
		return ErrNilTransfer
	}
	if _, ok := m.transfers[t]; ok {
		return ErrAlreadyAdded
	}
	if t.url == "" {
		return fmt.Errorf("%w: no url configured", ErrInvalidURL)
	}

	body := m.collectBody(t)

	ctx, cancel := context.WithCancel(context.Background())
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, t.method, t.url, reader)
	if err != nil {
		cancel()
		return fmt.Errorf("build request: %w", err)
	}
	for _, line := range t.httpHeader {
		name, value, _ := strings.Cut(line, ":")
		value = strings.TrimSpace(value)
		if strings.EqualFold(name, "Host") {
			req.Host = value
			continue
		}
		req.Header.Add(name, value)
	}

	t.finished = false
	t.result = nil
	t.responseCode = 0
	t.sizeDownload = 0
	t.osErrno = 0

	t.Debugf(DebugHeaderOut, "%s %s", t.method, t.url)
	for _, line := range t.httpHeader {
		t.Debugf(DebugHeaderOut, "%s", line)
	}

	m.transfers[t] = &netTransfer{cancel: cancel}
	go m.run(req, t)
	return nil
}

// collectBody pulls the whole upload on the calling goroutine so the read
// callback never runs concurrently with the caller.
func (m *netMulti) collectBody(t *Transfer) []byte {
	if t.read == nil {
		return t.postFields
	}

	buf := m.alloc.Get(m.bufSize)
	defer m.alloc.Put(buf)

	body := []byte{}
	for t.inFileSize < 0 || int64(len(body)) < t.inFileSize {
		n := t.PullBody(buf)
		if n == 0 {
			break
		}
		body = append(body, buf[:n]...)
	}
	if t.inFileSize >= 0 && int64(len(body)) > t.inFileSize {
		body = body[:t.inFileSize]
	}
	return body
}

func (m *netMulti) run(req *http.Request, t *Transfer) {
	resp, err := m.client.Do(req)
	if err != nil {
		m.push(event{kind: evDone, t: t, err: err})
		return
	}
	defer resp.Body.Close()

	m.push(event{kind: evHeader, t: t, data: []byte(resp.Proto + " " + resp.Status + "\r\n")})
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range resp.Header[name] {
			m.push(event{kind: evHeader, t: t, data: []byte(name + ": " + value + "\r\n")})
		}
	}
	m.push(event{kind: evHeader, t: t, data: []byte("\r\n")})

	buf := m.alloc.Get(m.bufSize)
	defer m.alloc.Put(buf)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			m.push(event{kind: evBody, t: t, data: append([]byte(nil), buf[:n]...)})
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			m.push(event{kind: evDone, t: t, code: resp.StatusCode, err: rerr})
			return
		}
	}
	m.push(event{kind: evDone, t: t, code: resp.StatusCode})
}

// push queues ev for the next Perform. Events from transfers still winding
// down after Close are dropped.
func (m *netMulti) push(ev event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.events = append(m.events, ev)
}

func (m *netMulti) Perform() (int, error) {
	if m.closed {
		return 0, ErrMultiClosed
	}

	m.mu.Lock()
	events := m.events
	m.events = nil
	m.mu.Unlock()

	for _, ev := range events {
		st, ok := m.transfers[ev.t]
		if !ok || st.finished {
			continue
		}
		switch ev.kind {
		case evHeader:
			if st.aborted {
				continue
			}
			ev.t.Debugf(DebugHeaderIn, "%s", strings.TrimRight(string(ev.data), "\r\n"))
			if !ev.t.EmitHeader(ev.data) {
				m.abort(st)
			}
		case evBody:
			if st.aborted {
				continue
			}
			if !ev.t.EmitBody(ev.data) {
				m.abort(st)
			}
		case evDone:
			err := ev.err
			if st.aborted {
				err = ErrCallbackAborted
			}
			ev.t.Finish(ev.code, err)
			st.finished = true
			st.cancel()
			m.done = append(m.done, &Message{Msg: MsgDone, Transfer: ev.t, Result: err})
		}
	}

	running := 0
	for _, st := range m.transfers {
		if !st.finished {
			running++
		}
	}
	return running, nil
}

func (m *netMulti) abort(st *netTransfer) {
	st.aborted = true
	st.cancel()
}

func (m *netMulti) InfoRead() *Message {
	if len(m.done) == 0 {
		return nil
	}
	msg := m.done[0]
	m.done[0] = nil
	m.done = m.done[1:]
	return msg
}

func (m *netMulti) Remove(t *Transfer) error {
	if m.closed {
		return ErrMultiClosed
	}
	st, ok := m.transfers[t]
	if !ok {
		return ErrNotAdded
	}
	st.cancel()
	delete(m.transfers, t)
	return nil
}

func (m *netMulti) Close() error {
	if m.closed {
		return ErrMultiClosed
	}
	m.closed = true
	for _, st := range m.transfers {
		st.cancel()
	}
	m.transfers = nil
	m.done = nil

	m.mu.Lock()
	m.stopped = true
	m.events = nil
	m.mu.Unlock()
	return nil
}
