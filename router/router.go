// Package router maps a parsed request onto one of the server's fixed
// routes and produces the response for it.
package router

import (
	"bytes"

	"github.com/nczempin/httpd-go-uring/protocol"
)

// Kind identifies which route a request matched
type Kind int

const (
	KindNotFound Kind = iota
	KindRoot
	KindEcho
	KindUserAgent
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindEcho:
		return "echo"
	case KindUserAgent:
		return "user-agent"
	default:
		return "not-found"
	}
}

var (
	methodGet       = []byte("GET")
	rootTarget      = []byte("/")
	echoPrefix      = []byte("/echo/")
	userAgentPrefix = []byte("/user-agent")
)

const userAgentHeader = "User-Agent"

// Decision is the outcome of matching a request. Payload holds the echoed
// bytes for KindEcho and the User-Agent value for KindUserAgent; it
// borrows from the request buffer.
type Decision struct {
	Kind    Kind
	Payload []byte
}

// Match evaluates the routes top to bottom; the first match wins.
func Match(req *protocol.RequestView) Decision {
	if !bytes.Equal(req.Method, methodGet) {
		return Decision{Kind: KindNotFound}
	}

	switch {
	case bytes.Equal(req.Target, rootTarget):
		return Decision{Kind: KindRoot}
	case bytes.HasPrefix(req.Target, echoPrefix):
		return Decision{Kind: KindEcho, Payload: req.Target[len(echoPrefix):]}
	case bytes.HasPrefix(req.Target, userAgentPrefix):
		ua, _ := req.Header(userAgentHeader)
		return Decision{Kind: KindUserAgent, Payload: ua}
	}

	return Decision{Kind: KindNotFound}
}

// Response builds the response for a decision.
func (d Decision) Response() *protocol.ResponseSpec {
	switch d.Kind {
	case KindRoot:
		return protocol.OK("", nil)
	case KindEcho, KindUserAgent:
		return protocol.OK(protocol.ContentTypeTextPlain, d.Payload)
	default:
		return protocol.NotFound()
	}
}

// Route never fails: unmatched requests get 404 Not Found.
func Route(req *protocol.RequestView) *protocol.ResponseSpec {
	return Match(req).Response()
}
