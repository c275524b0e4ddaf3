package protocol

import (
	"io"
	"strconv"

	"github.com/nczempin/httpd-go-uring/errors"
)

type flusher interface {
	Flush() error
}

// AppendResponse appends the wire form of resp to dst. Content-Length is
// always present; Content-Type only when resp carries one.
func AppendResponse(dst []byte, resp *ResponseSpec) []byte {
	// Status line
	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendInt(dst, int64(resp.StatusCode), 10)
	dst = append(dst, ' ')
	dst = append(dst, resp.Reason...)
	dst = append(dst, crlf...)

	// Headers
	if resp.ContentType != "" {
		dst = append(dst, "Content-Type: "...)
		dst = append(dst, resp.ContentType...)
		dst = append(dst, crlf...)
	}
	dst = append(dst, "Content-Length: "...)
	dst = strconv.AppendInt(dst, int64(len(resp.Body)), 10)
	dst = append(dst, crlf...)

	// Blank line
	dst = append(dst, crlf...)

	return append(dst, resp.Body...)
}

// WriteResponse serializes resp into one buffer, writes it to w and
// flushes w if it buffers.
func WriteResponse(w io.Writer, resp *ResponseSpec) error {
	buf := AppendResponse(make([]byte, 0, 128+len(resp.Body)), resp)

	if _, err := w.Write(buf); err != nil {
		return errors.AsTransportError(err, errors.TransportErrorSocketWriteFailure, "failed to write response")
	}

	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return errors.AsTransportError(err, errors.TransportErrorSocketWriteFailure, "failed to flush response")
		}
	}

	return nil
}
