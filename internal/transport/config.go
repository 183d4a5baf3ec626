package transport

import "time"

// Config configures the network engine.
type Config struct {
	// Timeout bounds a whole exchange, body included (default: 30s).
	Timeout time.Duration

	// Connection pool configuration
	MaxIdleConns        int           // Maximum idle connections across all hosts (default: 100)
	MaxIdleConnsPerHost int           // Maximum idle connections per host (default: 10)
	MaxConnsPerHost     int           // Maximum total connections per host (default: 10)
	IdleConnTimeout     time.Duration // How long idle connections stay open (default: 90s)

	// UploadBufferSize is the chunk size requested from upload callbacks and
	// used for body reads (default: 64 KiB).
	UploadBufferSize int

	// DisableHTTP2 keeps the engine on HTTP/1.1.
	DisableHTTP2 bool
}

// setDefaults fills in default values for zero-valued fields.
func (c *Config) setDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 100
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = 10
	}
	if c.MaxConnsPerHost == 0 {
		c.MaxConnsPerHost = 10
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.UploadBufferSize <= 0 {
		c.UploadBufferSize = 64 * 1024
	}
}
