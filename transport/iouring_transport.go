package transport

import (
	"net"
	"os"

	"github.com/iceber/iouring-go"
	"github.com/nczempin/httpd-go-uring/errors"
)

// IOURingListener accepts through the kernel and hands every stream a
// shared io_uring instance. Streams use the read/write ops, whose
// completions carry the byte count.
type IOURingListener struct {
	ln   net.Listener
	iour *iouring.IOURing
}

func newIOURingListener(ln net.Listener) (*IOURingListener, error) {
	// Create io_uring instance with queue depth of 32
	iour, err := iouring.New(ringEntries)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &IOURingListener{ln: ln, iour: iour}, nil
}

// Accept waits for the next connection and moves it onto the ring
func (l *IOURingListener) Accept() (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, acceptError(err)
	}

	addr := conn.RemoteAddr()
	file, fd, err := detachFile(conn)
	if err != nil {
		return nil, err
	}

	return &IOURingConn{
		iour: l.iour,
		file: file,
		fd:   fd,
		addr: addr,
	}, nil
}

// Addr returns the bound address
func (l *IOURingListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops listening and tears down the ring
func (l *IOURingListener) Close() error {
	err := l.ln.Close()
	if l.iour != nil {
		l.iour.Close()
		l.iour = nil
	}
	return err
}

// IOURingConn implements Conn using io_uring for async I/O
type IOURingConn struct {
	iour   *iouring.IOURing
	file   *os.File
	fd     int
	addr   net.Addr
	closed bool
}

// Write sends data over the connection using io_uring
func (c *IOURingConn) Write(buf []byte) (int, error) {
	if c.closed {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		ch := make(chan iouring.Result, 1)
		prepReq := iouring.Write(c.fd, buf[totalWritten:])
		if _, err := c.iour.SubmitRequest(prepReq, ch); err != nil {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorIoUringSubmit,
				"failed to submit write request",
				err,
			)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			if isResetErr(err) {
				return totalWritten, errors.NewTransportError(
					errors.TransportErrorConnectionClosed,
					"connection closed during write",
					err,
				)
			}
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorSocketWriteFailure,
				"write failed",
				err,
			)
		}

		if n <= 0 {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Read receives data from the connection using io_uring
func (c *IOURingConn) Read(buf []byte) (int, error) {
	if c.closed {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	ch := make(chan iouring.Result, 1)
	prepReq := iouring.Read(c.fd, buf)
	if _, err := c.iour.SubmitRequest(prepReq, ch); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to submit read request",
			err,
		)
	}

	result := <-ch
	n, err := result.ReturnInt()
	if err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			"read failed",
			err,
		)
	}

	if n == 0 && len(buf) > 0 {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed by peer",
			nil,
		)
	}

	return n, nil
}

// Close closes the connection. The ring belongs to the listener.
func (c *IOURingConn) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	if err := c.file.Close(); err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}
	c.fd = -1

	return nil
}

// RemoteAddr returns the peer address
func (c *IOURingConn) RemoteAddr() net.Addr {
	return c.addr
}
