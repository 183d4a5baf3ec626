package http

import (
	"github.com/rs/zerolog"

	"github.com/jeffersonwarrior/asynchttp/internal/logging"
	"github.com/jeffersonwarrior/asynchttp/internal/transport"
)

// DefaultMaxRetries is the number of 401-driven retries allowed per request.
const DefaultMaxRetries = 4

// Config configures the request manager.
type Config struct {
	// MaxRetries bounds the forced-refresh retries after a 401 (default: 4).
	// A negative value disables them.
	MaxRetries int

	// Verbose installs a transport debug hook that logs outgoing and incoming
	// header lines at debug level.
	Verbose bool

	// Allocator is handed to the transport on Initialize (default: the
	// transport's own pool).
	Allocator transport.Allocator

	// LogFunc receives every log line as a string. Ignored when Logger is set.
	LogFunc func(msg string)

	// Logger replaces the default no-op logger.
	Logger *zerolog.Logger

	// Hooks for request/response interception
	BeforeSend    BeforeSendHook    // Called before each transfer is registered
	AfterResponse AfterResponseHook // Called after each completed exchange
	OnError       OnErrorHook       // Called when a request fails without a response
	OnRetry       OnRetryHook       // Called before each retry round
}

// setDefaults fills in default values for zero-valued fields.
func (c *Config) setDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}

func (c *Config) logger() zerolog.Logger {
	switch {
	case c.Logger != nil:
		return *c.Logger
	case c.LogFunc != nil:
		return logging.NewFuncLogger(c.LogFunc)
	default:
		return zerolog.Nop()
	}
}
