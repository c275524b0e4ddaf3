package server

import (
	"fmt"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/transport"
)

const (
	// DefaultAddr is the loopback endpoint the server binds
	DefaultAddr = "127.0.0.1:4221"

	// DefaultBufferSize bounds a request head; longer requests are rejected
	DefaultBufferSize = 8 << 10
)

// Config holds the listening endpoint and per-connection limits
type Config struct {
	Network    string
	Addr       string
	Backend    transport.Backend
	BufferSize int
}

// DefaultConfig returns the configuration the httpd binary runs with
func DefaultConfig() Config {
	return Config{
		Network:    "tcp",
		Addr:       DefaultAddr,
		Backend:    transport.BackendNet,
		BufferSize: DefaultBufferSize,
	}
}

// Validate checks the configuration before anything is bound
func (c Config) Validate() error {
	switch c.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return errors.NewInvalidArgumentError(fmt.Sprintf("unsupported network %q", c.Network))
	}

	if c.Addr == "" {
		return errors.NewInvalidArgumentError("listen address is empty")
	}

	if c.BufferSize <= 0 {
		return errors.NewInvalidArgumentError("buffer size must be positive")
	}

	if _, err := transport.ParseBackend(string(c.Backend)); err != nil {
		return err
	}

	return nil
}
