package protocol

import "bytes"

// Status codes the server emits
const (
	StatusOK         = 200
	StatusBadRequest = 400
	StatusNotFound   = 404
)

// ContentTypeTextPlain is the only content type the router produces
const ContentTypeTextPlain = "text/plain"

// HeaderView is a view into the read buffer for zero-copy header access
type HeaderView struct {
	Name  []byte
	Value []byte
}

// RequestView represents a parsed HTTP request (references the read buffer).
// The data is only valid while the buffer it was parsed from is not reused.
type RequestView struct {
	Method  []byte
	Target  []byte
	Version []byte
	Headers []HeaderView
	Body    []byte
}

// Header returns the value of the first header whose name matches name
// case-insensitively.
func (r *RequestView) Header(name string) ([]byte, bool) {
	for _, h := range r.Headers {
		if len(h.Name) == len(name) && bytes.EqualFold(h.Name, []byte(name)) {
			return h.Value, true
		}
	}
	return nil, false
}

// AppendHead appends the canonical serialization of the request head:
// single spaces on the request line and "Name: value" header lines.
func (r *RequestView) AppendHead(dst []byte) []byte {
	dst = append(dst, r.Method...)
	dst = append(dst, ' ')
	dst = append(dst, r.Target...)
	dst = append(dst, ' ')
	dst = append(dst, r.Version...)
	dst = append(dst, crlf...)
	for _, h := range r.Headers {
		dst = append(dst, h.Name...)
		dst = append(dst, ": "...)
		dst = append(dst, h.Value...)
		dst = append(dst, crlf...)
	}
	return append(dst, crlf...)
}

// ResponseSpec describes one response. An empty ContentType omits the header.
type ResponseSpec struct {
	StatusCode  int
	Reason      string
	ContentType string
	Body        []byte
}

// OK returns a 200 response carrying body as contentType. An empty body
// never carries a content type.
func OK(contentType string, body []byte) *ResponseSpec {
	if len(body) == 0 {
		contentType = ""
	}
	return &ResponseSpec{
		StatusCode:  StatusOK,
		Reason:      "OK",
		ContentType: contentType,
		Body:        body,
	}
}

// NotFound returns the empty 404 response
func NotFound() *ResponseSpec {
	return &ResponseSpec{StatusCode: StatusNotFound, Reason: "Not Found"}
}

// BadRequest returns the empty 400 response
func BadRequest() *ResponseSpec {
	return &ResponseSpec{StatusCode: StatusBadRequest, Reason: "Bad Request"}
}
