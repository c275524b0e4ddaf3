package protocol

import (
	"bytes"
	"unicode/utf8"

	"github.com/nczempin/httpd-go-uring/errors"
)

var crlf = []byte("\r\n")

// ParseRequest parses one HTTP/1.1 request head out of buf. The returned
// view borrows from buf; everything after the blank line is the body.
func ParseRequest(buf []byte) (*RequestView, error) {
	end := bytes.Index(buf, crlf)
	if end < 0 {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorIncompleteHead,
			"request line is not terminated by CRLF",
		)
	}

	req := &RequestView{}
	if err := parseRequestLine(buf[:end], req); err != nil {
		return nil, err
	}

	pos := end + len(crlf)
	for {
		end = bytes.Index(buf[pos:], crlf)
		if end < 0 {
			return nil, errors.NewProtocolError(
				errors.ProtocolErrorIncompleteHead,
				"header block is not terminated by an empty line",
			)
		}
		line := buf[pos : pos+end]
		pos += end + len(crlf)

		if len(line) == 0 {
			break
		}

		header, err := parseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		req.Headers = append(req.Headers, header)
	}

	req.Body = buf[pos:]
	return req, nil
}

// parseRequestLine splits "method SP target SP version" on the first two
// runs of whitespace.
func parseRequestLine(line []byte, req *RequestView) error {
	if !validLine(line) {
		return errors.NewProtocolError(
			errors.ProtocolErrorInvalidEncoding,
			"request line is not valid text",
		)
	}

	method, rest := cutToken(line)
	target, rest := cutToken(rest)
	version := bytes.TrimRight(rest, " \t")

	switch {
	case len(method) == 0:
		return errors.NewProtocolError(errors.ProtocolErrorInvalidRequestLine, "missing method")
	case bytes.IndexByte(method, ':') >= 0:
		return errors.NewProtocolError(errors.ProtocolErrorInvalidRequestLine, "method contains ':'")
	case len(target) == 0:
		return errors.NewProtocolError(errors.ProtocolErrorInvalidRequestLine, "missing request target")
	case len(version) == 0:
		return errors.NewProtocolError(errors.ProtocolErrorInvalidRequestLine, "missing HTTP version")
	}

	req.Method = method
	req.Target = target
	req.Version = version
	return nil
}

// parseHeaderLine splits a header line at its first ':' and strips OWS
// around the value.
func parseHeaderLine(line []byte) (HeaderView, error) {
	if !validLine(line) {
		return HeaderView{}, errors.NewProtocolError(
			errors.ProtocolErrorInvalidEncoding,
			"header line is not valid text",
		)
	}

	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return HeaderView{}, errors.NewProtocolError(
			errors.ProtocolErrorInvalidHeader,
			"header line lacks ':'",
		)
	}

	name := line[:colon]
	if len(name) == 0 || bytes.ContainsAny(name, " \t") {
		return HeaderView{}, errors.NewProtocolError(
			errors.ProtocolErrorInvalidHeader,
			"invalid header field name",
		)
	}

	return HeaderView{
		Name:  name,
		Value: bytes.Trim(line[colon+1:], " \t"),
	}, nil
}

// cutToken returns the leading run of non-whitespace bytes and whatever
// follows the whitespace run after it.
func cutToken(b []byte) (token, rest []byte) {
	i := bytes.IndexAny(b, " \t")
	if i < 0 {
		return b, nil
	}
	return b[:i], bytes.TrimLeft(b[i:], " \t")
}

func validLine(line []byte) bool {
	if bytes.IndexByte(line, '\r') >= 0 || bytes.IndexByte(line, '\n') >= 0 || bytes.IndexByte(line, 0) >= 0 {
		return false
	}
	return utf8.Valid(line)
}
