// Package client is a small HTTP/1.1 client for one-shot connections. It
// reads until the server closes and checks that the response framing
// accounts for every byte received.
package client

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/transport"
)

var (
	headerSeparator  = []byte("\r\n\r\n")
	contentLengthKey = []byte("content-length:")
)

// HttpClient sends one request over a connection and reads the response
type HttpClient struct {
	conn          transport.Conn
	buffer        []byte
	headerSize    int
	contentLength int
}

// NewHttpClient creates a client over an established connection
func NewHttpClient(conn transport.Conn) *HttpClient {
	return &HttpClient{
		conn:          conn,
		buffer:        make([]byte, 0, 1024),
		headerSize:    0,
		contentLength: -1,
	}
}

// Dial connects to network/address and returns a client for it
func Dial(network, address string) (*HttpClient, error) {
	conn, err := transport.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return NewHttpClient(conn), nil
}

// Close closes the connection
func (c *HttpClient) Close() error {
	return c.conn.Close()
}

// Get performs a GET request
func (c *HttpClient) Get(path string, headers []Header) (*Response, error) {
	return c.Do(&Request{Method: "GET", Path: path, Headers: headers})
}

// Do sends req and reads the response
func (c *HttpClient) Do(req *Request) (*Response, error) {
	if req.Method == "" || strings.ContainsAny(req.Method, " \t\r\n") {
		return nil, errors.NewInvalidArgumentError("request method must be a single token")
	}
	if req.Path == "" || strings.ContainsAny(req.Path, " \t\r\n") {
		return nil, errors.NewInvalidArgumentError("request path must be a single token")
	}

	return c.DoRaw(buildRequest(req))
}

// DoRaw sends raw as-is, which lets callers send requests that do not
// conform to HTTP, and reads the response.
func (c *HttpClient) DoRaw(raw []byte) (*Response, error) {
	if _, err := c.conn.Write(raw); err != nil {
		return nil, err
	}

	if err := c.readFullResponse(); err != nil {
		return nil, err
	}

	return c.parseResponse()
}

// buildRequest formats an HTTP request
func buildRequest(req *Request) []byte {
	buf := make([]byte, 0, 256+len(req.Body))

	// Request line
	buf = append(buf, fmt.Sprintf("%s %s HTTP/1.1\r\n", req.Method, req.Path)...)

	// Headers
	for _, header := range req.Headers {
		buf = append(buf, fmt.Sprintf("%s: %s\r\n", header.Key, header.Value)...)
	}

	// Blank line
	buf = append(buf, "\r\n"...)

	return append(buf, req.Body...)
}

// readFullResponse reads until the server closes the connection
func (c *HttpClient) readFullResponse() error {
	c.buffer = c.buffer[:0]
	c.headerSize = 0
	c.contentLength = -1

	readBuf := make([]byte, 1024)

	for {
		n, err := c.conn.Read(readBuf)
		if n > 0 {
			c.buffer = append(c.buffer, readBuf[:n]...)
		}
		if err != nil {
			if errors.IsConnectionClosed(err) {
				break
			}
			return err
		}
	}

	pos := bytes.Index(c.buffer, headerSeparator)
	if pos < 0 {
		return errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			"failed to parse HTTP response headers",
		)
	}
	c.headerSize = pos + len(headerSeparator)
	c.contentLength = parseContentLength(c.buffer[:c.headerSize])

	if c.contentLength >= 0 {
		switch want := c.headerSize + c.contentLength; {
		case len(c.buffer) < want:
			return errors.NewProtocolError(
				errors.ProtocolErrorIncompleteResponse,
				"connection closed before complete response received",
			)
		case len(c.buffer) > want:
			return errors.NewProtocolError(
				errors.ProtocolErrorUnexpectedData,
				fmt.Sprintf("%d bytes after the response body", len(c.buffer)-want),
			)
		}
	}

	return nil
}

// parseContentLength extracts Content-Length from headers
func parseContentLength(headersView []byte) int {
	lines := bytes.Split(headersView, []byte("\n"))
	for _, line := range lines[1:] { // Skip status line
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			break
		}

		if bytes.HasPrefix(bytes.ToLower(line), contentLengthKey) {
			valueStr := strings.TrimSpace(string(line[len(contentLengthKey):]))
			if length, err := strconv.Atoi(valueStr); err == nil {
				return length
			}
		}
	}
	return -1
}

// parseResponse copies the buffered response into a Response
func (c *HttpClient) parseResponse() (*Response, error) {
	headersBlock := c.buffer[:c.headerSize-len(headerSeparator)]

	// Split into status line and rest of headers
	parts := bytes.SplitN(headersBlock, []byte("\r\n"), 2)
	statusLine := parts[0]

	// Parse status line: "HTTP/1.1 200 OK"
	statusParts := bytes.SplitN(statusLine, []byte(" "), 3)
	if len(statusParts) < 2 || !bytes.HasPrefix(statusParts[0], []byte("HTTP/")) {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			"invalid status line format",
		)
	}

	statusCode, err := strconv.Atoi(string(statusParts[1]))
	if err != nil {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("invalid status code: %s", statusParts[1]),
		)
	}

	statusMessage := ""
	if len(statusParts) >= 3 {
		statusMessage = string(statusParts[2])
	}

	// Parse headers
	var headers []Header
	if len(parts) > 1 {
		for _, line := range bytes.Split(parts[1], []byte("\r\n")) {
			headerParts := bytes.SplitN(line, []byte(":"), 2)
			if len(headerParts) != 2 {
				return nil, errors.NewProtocolError(
					errors.ProtocolErrorInvalidHeader,
					fmt.Sprintf("invalid header line: %q", line),
				)
			}
			headers = append(headers, Header{
				Key:   string(headerParts[0]),
				Value: strings.TrimSpace(string(headerParts[1])),
			})
		}
	}

	// Extract body
	var body []byte
	if c.contentLength >= 0 {
		body = c.buffer[c.headerSize : c.headerSize+c.contentLength]
	} else {
		body = c.buffer[c.headerSize:]
	}

	return &Response{
		StatusCode:    statusCode,
		StatusMessage: statusMessage,
		Headers:       headers,
		Body:          bytes.Clone(body),
		ContentLength: c.contentLength,
		Raw:           bytes.Clone(c.buffer),
	}, nil
}
