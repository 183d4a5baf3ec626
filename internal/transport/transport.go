package transport

import (
	"errors"
	"sync"
)

var (
	ErrNotInitialized  = errors.New("transport: not initialized")
	ErrInvalidURL      = errors.New("transport: invalid url")
	ErrInvalidMethod   = errors.New("transport: invalid method")
	ErrInvalidHeader   = errors.New("transport: invalid header line")
	ErrNilTransfer     = errors.New("transport: nil transfer")
	ErrAlreadyAdded    = errors.New("transport: transfer already added")
	ErrNotAdded        = errors.New("transport: transfer not added")
	ErrMultiClosed     = errors.New("transport: multi handle closed")
	ErrCallbackAborted = errors.New("transport: aborted by callback")
)

// Transport is the process-wide engine state. GlobalInit must succeed before
// NewMulti is called; GlobalCleanup releases what GlobalInit acquired.
type Transport interface {
	GlobalInit(alloc Allocator) error
	GlobalCleanup()
	NewMulti() (Multi, error)
}

// Multi multiplexes many concurrent transfers on one polling loop.
//
// A Multi is not safe for concurrent use; all methods must be called from the
// goroutine that drives it.
type Multi interface {
	// Add registers a configured transfer and starts it.
	Add(t *Transfer) error

	// Remove detaches a transfer, cancelling it if it has not finished.
	Remove(t *Transfer) error

	// Perform delivers pending callbacks and completions. It never blocks
	// on network I/O and returns the number of transfers still running.
	Perform() (running int, err error)

	// InfoRead pops the next completion message, or nil when none is queued.
	InfoRead() *Message

	// Close cancels every transfer and releases the handle.
	Close() error
}

// MsgKind identifies a completion message.
type MsgKind int

const (
	MsgDone MsgKind = iota + 1
)

// Message reports that a transfer reached a terminal state.
type Message struct {
	Msg      MsgKind
	Transfer *Transfer
	Result   error // nil when the exchange completed, whatever the HTTP status
}

// Allocator hands out the byte buffers the engine uses for upload and
// download staging. Implementations must be safe for concurrent use.
type Allocator interface {
	Get(size int) []byte
	Put(buf []byte)
}

// DefaultAllocator pools buffers with a sync.Pool.
var DefaultAllocator Allocator = &poolAllocator{}

type poolAllocator struct {
	pool sync.Pool
}

func (a *poolAllocator) Get(size int) []byte {
	if v := a.pool.Get(); v != nil {
		buf := *(v.(*[]byte))
		if cap(buf) >= size {
			return buf[:size]
		}
	}
	return make([]byte, size)
}

func (a *poolAllocator) Put(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	buf = buf[:cap(buf)]
	a.pool.Put(&buf)
}
