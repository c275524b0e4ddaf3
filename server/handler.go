package server

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/router"
	"github.com/nczempin/httpd-go-uring/transport"
)

// ConnState is the progress of one connection through its single
// request/response cycle. Every connection ends in StateClosed.
type ConnState int

const (
	StateAccepted ConnState = iota
	StateRead
	StateParsed
	StateResponded
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "ACCEPTED"
	case StateRead:
		return "READ"
	case StateParsed:
		return "PARSED"
	case StateResponded:
		return "RESPONDED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Handler serves exactly one request per connection
type Handler struct {
	bufferSize int
	logger     zerolog.Logger
}

// NewHandler creates a handler that reads at most bufferSize bytes per request
func NewHandler(bufferSize int, logger zerolog.Logger) *Handler {
	return &Handler{
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// ServeConn performs one read, answers it and closes conn on every path.
// It returns the last state reached before StateClosed.
func (h *Handler) ServeConn(conn transport.Conn) (last ConnState) {
	log := h.logger.With().Str("remote", addrString(conn.RemoteAddr())).Logger()
	last = StateAccepted

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Stringer("state", last).Msg("panic serving connection")
		}
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("close failed")
		}
		log.Debug().Stringer("from", last).Stringer("state", StateClosed).Msg("connection finished")
	}()

	// Backing store for the request view; it must outlive routing and writing.
	buf := make([]byte, h.bufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		log.Warn().Err(err).Msg("read failed, dropping connection")
		return last
	}
	last = StateRead

	var resp *protocol.ResponseSpec
	req, err := protocol.ParseRequest(buf[:n])
	if err != nil {
		if !errors.IsMalformed(err) {
			log.Error().Err(err).Int("bytes", n).Msg("parse failed, dropping connection")
			return last
		}
		if n == len(buf) {
			err = errors.NewProtocolError(
				errors.ProtocolErrorMessageTooLarge,
				fmt.Sprintf("request does not fit in %d bytes: %v", len(buf), err),
			)
		}
		log.Info().Err(err).Int("bytes", n).Msg("malformed request")
		resp = protocol.BadRequest()
	} else {
		last = StateParsed
		decision := router.Match(req)
		log.Debug().
			Bytes("method", req.Method).
			Bytes("target", req.Target).
			Stringer("route", decision.Kind).
			Msg("request parsed")
		resp = decision.Response()
	}

	if err := protocol.WriteResponse(conn, resp); err != nil {
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("write failed, dropping connection")
		return last
	}
	last = StateResponded

	log.Debug().Int("status", resp.StatusCode).Int("body_bytes", len(resp.Body)).Msg("response written")
	return last
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	return addr.String()
}
