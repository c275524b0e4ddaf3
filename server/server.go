// Package server accepts connections and answers one HTTP/1.1 request on
// each, strictly one connection at a time.
package server

import (
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/transport"
)

// Server owns the listener and serves accepted connections inline
type Server struct {
	cfg     Config
	handler *Handler
	logger  zerolog.Logger

	mu       sync.Mutex
	listener transport.Listener
	closed   bool
}

// New creates a server. Nothing is bound until ListenAndServe or Serve.
func New(cfg Config, logger zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: NewHandler(cfg.BufferSize, logger),
		logger:  logger,
	}
}

// ListenAndServe binds the configured endpoint and serves until Close.
func (s *Server) ListenAndServe() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	var (
		l   transport.Listener
		err error
	)
	if s.cfg.Network == "unix" {
		l, err = transport.ListenUnix(s.cfg.Addr, s.cfg.Backend)
	} else {
		l, err = transport.Listen(s.cfg.Network, s.cfg.Addr, s.cfg.Backend)
	}
	if err != nil {
		return err
	}

	return s.Serve(l)
}

// Serve accepts from l until it is closed. Accept failures are logged and
// the loop continues; any other listener error is returned. The next
// connection is not accepted before the current one has been answered
// and closed.
func (s *Server) Serve(l transport.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return errors.NewTransportError(errors.TransportErrorConnectionClosed, "server closed", net.ErrClosed)
	}
	s.listener = l
	s.mu.Unlock()

	s.logger.Info().
		Str("addr", l.Addr().String()).
		Str("backend", string(s.cfg.Backend)).
		Msg("listening")

	for {
		conn, err := l.Accept()
		if err != nil {
			if transport.IsListenerClosed(err) {
				s.logger.Info().Msg("listener closed, no longer accepting connections")
				return nil
			}
			if !errors.IsAccept(err) {
				return err
			}
			s.logger.Error().Err(err).Msg("accept failed")
			continue
		}

		s.handler.ServeConn(conn)
	}
}

// Addr returns the bound address, or nil before Serve has started
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting and releases the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
