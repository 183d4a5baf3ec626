package transport

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"syscall"

	"golang.org/x/net/http/httpguts"
)

const (
	MethodGet  = "GET"
	MethodPost = "POST"
	MethodPut  = "PUT"
)

// ReadFunc fills p with outgoing body bytes and returns how many it wrote.
// Returning 0 signals the end of the body.
type ReadFunc func(p []byte) int

// HeaderFunc receives one raw response header line, CRLF included. It must
// return len(line) or the transfer is aborted.
type HeaderFunc func(line []byte) int

// WriteFunc receives one response body chunk. It must return len(chunk) or
// the transfer is aborted.
type WriteFunc func(chunk []byte) int

// DebugKind classifies a debug callback message.
type DebugKind int

const (
	DebugText DebugKind = iota
	DebugHeaderOut
	DebugHeaderIn
)

// DebugFunc receives verbose engine output.
type DebugFunc func(kind DebugKind, msg string)

// Transfer is one HTTP request/response exchange. It is configured by the
// caller with Configure, then owned by the Multi it is added to until it is
// removed again.
type Transfer struct {
	url        string
	method     string
	postFields []byte
	read       ReadFunc
	inFileSize int64
	header     HeaderFunc
	write      WriteFunc
	httpHeader []string
	private    any
	debug      DebugFunc

	finished     bool
	result       error
	responseCode int
	sizeDownload int64
	osErrno      int
}

// NewTransfer returns an unconfigured GET transfer.
func NewTransfer() *Transfer {
	return &Transfer{method: MethodGet, inFileSize: -1}
}

// Option configures a Transfer.
type Option func(*Transfer) error

// Configure applies opts in order and stops at the first failure.
func (t *Transfer) Configure(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return err
		}
	}
	return nil
}

// URL sets the target. Only absolute http and https URLs are accepted.
func URL(raw string) Option {
	return func(t *Transfer) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		t.url = raw
		return nil
	}
}

// Method sets the request method.
func Method(m string) Option {
	return func(t *Transfer) error {
		if !httpguts.ValidHeaderFieldName(m) {
			return fmt.Errorf("%w: %q", ErrInvalidMethod, m)
		}
		t.method = m
		return nil
	}
}

// PostFields sends b verbatim as the request body.
func PostFields(b []byte) Option {
	return func(t *Transfer) error {
		t.postFields = b
		return nil
	}
}

// ReadFunction installs the upload callback. It takes precedence over
// PostFields.
func ReadFunction(fn ReadFunc) Option {
	return func(t *Transfer) error {
		t.read = fn
		return nil
	}
}

// InFileSize declares the total upload size. A negative size means unknown.
func InFileSize(n int64) Option {
	return func(t *Transfer) error {
		t.inFileSize = n
		return nil
	}
}

// HeaderFunction installs the response header callback.
func HeaderFunction(fn HeaderFunc) Option {
	return func(t *Transfer) error {
		t.header = fn
		return nil
	}
}

// WriteFunction installs the response body callback.
func WriteFunction(fn WriteFunc) Option {
	return func(t *Transfer) error {
		t.write = fn
		return nil
	}
}

// HTTPHeader replaces the request header list. Each entry has the form
// "Name: value".
func HTTPHeader(lines []string) Option {
	return func(t *Transfer) error {
		for _, line := range lines {
			name, _, ok := strings.Cut(line, ":")
			if !ok || name == "" {
				return fmt.Errorf("%w: %q", ErrInvalidHeader, line)
			}
		}
		t.httpHeader = append([]string(nil), lines...)
		return nil
	}
}

// Private associates an opaque value with the transfer for retrieval on
// completion.
func Private(v any) Option {
	return func(t *Transfer) error {
		t.private = v
		return nil
	}
}

// Debug installs a verbose output hook.
func Debug(fn DebugFunc) Option {
	return func(t *Transfer) error {
		t.debug = fn
		return nil
	}
}

func (t *Transfer) URL() string          { return t.url }
func (t *Transfer) Method() string       { return t.method }
func (t *Transfer) InFileSize() int64    { return t.inFileSize }
func (t *Transfer) HTTPHeader() []string { return t.httpHeader }
func (t *Transfer) Private() any         { return t.private }

// PostFields returns the literal body and whether one was configured.
func (t *Transfer) PostFields() ([]byte, bool) {
	return t.postFields, t.postFields != nil
}

// HasUpload reports whether an upload callback is installed.
func (t *Transfer) HasUpload() bool { return t.read != nil }

// Finished reports whether the engine has recorded a final result.
func (t *Transfer) Finished() bool { return t.finished }

// Result is the final transport-level outcome; nil means the exchange
// completed, whatever the HTTP status.
func (t *Transfer) Result() error       { return t.result }
func (t *Transfer) ResponseCode() int   { return t.responseCode }
func (t *Transfer) SizeDownload() int64 { return t.sizeDownload }

// OSErrno is the operating system error number behind a failed Result, or 0.
func (t *Transfer) OSErrno() int { return t.osErrno }

// The methods below are for Multi implementations.

// PullBody reads upload bytes through the read callback.
func (t *Transfer) PullBody(p []byte) int {
	if t.read == nil {
		return 0
	}
	n := t.read(p)
	if n < 0 || n > len(p) {
		return 0
	}
	return n
}

// EmitHeader hands one header line to the header callback and reports
// whether the callback consumed all of it.
func (t *Transfer) EmitHeader(line []byte) bool {
	if t.header == nil {
		return true
	}
	return t.header(line) == len(line)
}

// EmitBody hands one body chunk to the write callback and reports whether
// the callback consumed all of it.
func (t *Transfer) EmitBody(chunk []byte) bool {
	if t.write != nil && t.write(chunk) != len(chunk) {
		return false
	}
	t.sizeDownload += int64(len(chunk))
	return true
}

// Finish records the final status of the transfer.
func (t *Transfer) Finish(code int, err error) {
	t.finished = true
	t.responseCode = code
	t.result = err
	t.osErrno = 0
	var errno syscall.Errno
	if errors.As(err, &errno) {
		t.osErrno = int(errno)
	}
}

// Debugf forwards formatted output to the debug hook, if any.
func (t *Transfer) Debugf(kind DebugKind, format string, args ...any) {
	if t.debug == nil {
		return
	}
	t.debug(kind, fmt.Sprintf(format, args...))
}
