package transport

import (
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/nczempin/httpd-go-uring/errors"
)

// NetConn implements Conn on top of a net.Conn
type NetConn struct {
	conn net.Conn
	addr net.Addr
}

func newNetConn(conn net.Conn) *NetConn {
	return &NetConn{
		conn: conn,
		addr: conn.RemoteAddr(),
	}
}

// Dial connects to network/address. TCP connections get TCP_NODELAY.
func Dial(network, address string) (*NetConn, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		// Classify network errors using type assertions
		var opErr *net.OpError
		if stderrors.As(err, &opErr) {
			var dnsErr *net.DNSError
			if stderrors.As(opErr.Err, &dnsErr) {
				return nil, errors.NewTransportError(
					errors.TransportErrorDnsFailure,
					fmt.Sprintf("failed to resolve %s", address),
					err,
				)
			}
		}
		return nil, errors.NewTransportError(
			errors.TransportErrorSocketConnectFailure,
			fmt.Sprintf("failed to connect to %s", address),
			err,
		)
	}

	// Set TCP_NODELAY to disable Nagle's algorithm for lower latency
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, errors.NewTransportError(
				errors.TransportErrorSocketCreateFailure,
				"failed to set TCP_NODELAY",
				err,
			)
		}
	}

	return newNetConn(conn), nil
}

// Read receives data from the connection
func (c *NetConn) Read(buf []byte) (int, error) {
	if c.conn == nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			"not connected",
			nil,
		)
	}

	n, err := c.conn.Read(buf)
	if err != nil {
		if stderrors.Is(err, io.EOF) || isResetErr(err) {
			return n, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed by peer",
				err,
			)
		}
		return n, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			"read failed",
			err,
		)
	}

	return n, nil
}

// Write sends data over the connection
func (c *NetConn) Write(buf []byte) (int, error) {
	if c.conn == nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketWriteFailure,
			"not connected",
			nil,
		)
	}

	n, err := c.conn.Write(buf)
	if err != nil {
		if isResetErr(err) {
			return n, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed during write",
				err,
			)
		}
		return n, errors.NewTransportError(
			errors.TransportErrorSocketWriteFailure,
			"write failed",
			err,
		)
	}

	return n, nil
}

// Close closes the connection
func (c *NetConn) Close() error {
	if c.conn == nil {
		return nil // Idempotent close
	}

	err := c.conn.Close()
	c.conn = nil

	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}

	return nil
}

// RemoteAddr returns the peer address
func (c *NetConn) RemoteAddr() net.Addr {
	return c.addr
}

func isResetErr(err error) bool {
	return stderrors.Is(err, syscall.EPIPE) || stderrors.Is(err, syscall.ECONNRESET)
}

// NetListener implements Listener with streams served by the Go netpoller
type NetListener struct {
	ln net.Listener
}

func newNetListener(ln net.Listener) *NetListener {
	return &NetListener{ln: ln}
}

// Accept waits for the next connection
func (l *NetListener) Accept() (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, acceptError(err)
	}
	return newNetConn(conn), nil
}

// Addr returns the bound address
func (l *NetListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops listening
func (l *NetListener) Close() error {
	return l.ln.Close()
}

// detachFile takes the socket out of the Go netpoller: the descriptor is
// duplicated into a blocking *os.File and the original connection closed.
func detachFile(conn net.Conn) (*os.File, int, error) {
	filer, ok := conn.(interface{ File() (*os.File, error) })
	if !ok {
		conn.Close()
		return nil, -1, errors.NewTransportError(
			errors.TransportErrorSocketAcceptFailure,
			fmt.Sprintf("cannot take descriptor of %T", conn),
			nil,
		)
	}

	file, err := filer.File()
	conn.Close()
	if err != nil {
		return nil, -1, errors.NewTransportError(
			errors.TransportErrorSocketAcceptFailure,
			"failed to duplicate socket descriptor",
			err,
		)
	}

	fd := int(file.Fd())
	if err := syscall.SetNonblock(fd, false); err != nil {
		file.Close()
		return nil, -1, errors.NewTransportError(
			errors.TransportErrorSocketAcceptFailure,
			"failed to set blocking mode",
			err,
		)
	}

	return file, fd, nil
}
