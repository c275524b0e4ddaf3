package transport

import (
	"net"
	"os"

	"github.com/godzie44/go-uring/uring"
	"github.com/nczempin/httpd-go-uring/errors"
)

// URingListener is the godzie44/go-uring flavour of IOURingListener. The
// ring is driven synchronously by whichever connection is being served,
// so streams from one listener must not be used concurrently.
type URingListener struct {
	ln   net.Listener
	ring *uring.Ring
}

func newURingListener(ln net.Listener) (*URingListener, error) {
	ring, err := uring.New(ringEntries)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &URingListener{ln: ln, ring: ring}, nil
}

// Accept waits for the next connection and moves it onto the ring
func (l *URingListener) Accept() (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, acceptError(err)
	}

	addr := conn.RemoteAddr()
	file, _, err := detachFile(conn)
	if err != nil {
		return nil, err
	}

	return &URingConn{
		ring: l.ring,
		file: file,
		addr: addr,
	}, nil
}

// Addr returns the bound address
func (l *URingListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops listening and tears down the ring
func (l *URingListener) Close() error {
	err := l.ln.Close()
	if l.ring != nil {
		l.ring.Close()
		l.ring = nil
	}
	return err
}

// URingConn implements Conn using godzie44/go-uring
type URingConn struct {
	ring *uring.Ring
	file *os.File
	addr net.Addr
}

// Write sends data over the connection using io_uring
func (c *URingConn) Write(buf []byte) (int, error) {
	if c.file == nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		n, err := c.submit(uring.Write(c.file.Fd(), buf[totalWritten:], 0))
		if err != nil {
			if isResetErr(err) {
				return totalWritten, errors.NewTransportError(
					errors.TransportErrorConnectionClosed,
					"connection closed during write",
					err,
				)
			}
			return totalWritten, errors.AsTransportError(err, errors.TransportErrorSocketWriteFailure, "write failed")
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
func (c *URingConn) Read(buf []byte) (int, error) {
	if c.file == nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	n, err := c.submit(uring.Read(c.file.Fd(), buf, 0))
	if err != nil {
		return 0, errors.AsTransportError(err, errors.TransportErrorSocketReadFailure, "read failed")
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

// submit queues one operation, submits it and waits for its completion.
func (c *URingConn) submit(op uring.Operation) (int, error) {
	if err := c.ring.QueueSQE(op, 0, 0); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to queue request",
			err,
		)
	}

	if _, err := c.ring.Submit(); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to submit request",
			err,
		)
	}

	cqe, err := c.ring.WaitCQEvents(1)
	if err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to wait for completion",
			err,
		)
	}

	res, opErr := int(cqe.Res), cqe.Error()
	c.ring.SeenCQE(cqe)

	if opErr != nil {
		return 0, opErr
	}
	return res, nil
}

// Close closes the connection. The ring belongs to the listener.
func (c *URingConn) Close() error {
	if c.file == nil {
		return nil
	}

	err := c.file.Close()
	c.file = nil

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
func (c *URingConn) RemoteAddr() net.Addr {
	return c.addr
}
