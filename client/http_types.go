package client

import "strings"

// Header represents an HTTP header key-value pair
type Header struct {
	Key   string
	Value string
}

// Request represents an HTTP request to send
type Request struct {
	Method  string
	Path    string
	Headers []Header
	Body    []byte
}

// Response represents an HTTP response (copied out of the read buffer)
type Response struct {
	StatusCode    int
	StatusMessage string
	Headers       []Header
	Body          []byte
	ContentLength int
	// Raw holds every byte received, for exact wire comparisons
	Raw []byte
}

// Header returns the first header named key, case-insensitively.
func (r *Response) Header(key string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}
