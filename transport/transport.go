package transport

import (
	stderrors "errors"
	"fmt"
	"net"

	"github.com/nczempin/httpd-go-uring/errors"
)

// Conn is one accepted (or dialed) bidirectional byte stream.
type Conn interface {
	// Read receives data from the peer.
	// Returns the number of bytes read.
	Read(buf []byte) (int, error)

	// Write sends data to the peer.
	// Returns the number of bytes written.
	Write(buf []byte) (int, error)

	// Close closes the stream. Closing twice is not an error.
	Close() error

	// RemoteAddr returns the peer address, if known.
	RemoteAddr() net.Addr
}

// Listener yields accepted streams bound to one local endpoint.
type Listener interface {
	// Accept blocks until the next connection arrives.
	Accept() (Conn, error)

	// Addr returns the bound local address.
	Addr() net.Addr

	// Close stops listening and releases backend resources.
	Close() error
}

// Backend selects how accepted streams perform their I/O
type Backend string

const (
	// BackendNet uses the Go runtime netpoller
	BackendNet Backend = "net"
	// BackendIOURing submits recv/send through github.com/iceber/iouring-go
	BackendIOURing Backend = "iouring"
	// BackendURing submits read/write through github.com/godzie44/go-uring
	BackendURing Backend = "uring"
)

// ringEntries is the submission queue depth of every ring we create
const ringEntries = 32

// ParseBackend validates a backend name. The empty string means BackendNet.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(name); b {
	case "":
		return BackendNet, nil
	case BackendNet, BackendIOURing, BackendURing:
		return b, nil
	default:
		return "", errors.NewInvalidArgumentError(fmt.Sprintf("unknown transport backend %q", name))
	}
}

// Listen binds network/address and returns a listener whose accepted
// streams use the given backend.
func Listen(network, address string, backend Backend) (Listener, error) {
	backend, err := ParseBackend(string(backend))
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			fmt.Sprintf("failed to listen on %s %s", network, address),
			err,
		)
	}

	var l Listener
	switch backend {
	case BackendIOURing:
		l, err = newIOURingListener(ln)
	case BackendURing:
		l, err = newURingListener(ln)
	default:
		l = newNetListener(ln)
	}
	if err != nil {
		ln.Close()
		return nil, err
	}

	return l, nil
}

func acceptError(err error) error {
	return errors.NewTransportError(
		errors.TransportErrorSocketAcceptFailure,
		"failed to accept connection",
		err,
	)
}

// IsListenerClosed reports whether an Accept error means the listener
// was closed, as opposed to a transient failure.
func IsListenerClosed(err error) bool {
	return stderrors.Is(err, net.ErrClosed)
}
