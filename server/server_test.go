package server

import (
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpd-go-uring/client"
	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/transport"
)

// startServer serves on a loopback port with backend and returns its
// address. The server is closed when the test ends.
func startServer(t *testing.T, backend transport.Backend) (string, *Server) {
	t.Helper()

	l, err := transport.Listen("tcp", "127.0.0.1:0", backend)
	if err != nil {
		if httpErr, ok := errors.As(err); ok && httpErr.TransportErr == errors.TransportErrorIoUringInit {
			t.Skipf("io_uring unavailable: %v", err)
		}
		t.Fatalf("Listen failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Backend = backend
	srv := New(cfg, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	t.Cleanup(func() {
		srv.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Timeout waiting for Serve to return")
		}
	})

	return l.Addr().String(), srv
}

func roundTrip(t *testing.T, network, addr, raw string) *client.Response {
	t.Helper()

	c, err := client.Dial(network, addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	resp, err := c.DoRaw([]byte(raw))
	if err != nil {
		t.Fatalf("Request %q failed: %v", raw, err)
	}
	return resp
}

var scenarios = []struct {
	name    string
	request string
	want    string
}{
	{"S1", "GET / HTTP/1.1\r\nHost: x\r\n\r\n", "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"},
	{"S2", "GET /echo/abc HTTP/1.1\r\nHost: x\r\n\r\n", "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 3\r\n\r\nabc"},
	{"S3", "GET /user-agent HTTP/1.1\r\nHost: x\r\nUser-Agent: curl/7.88\r\n\r\n", "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 9\r\n\r\ncurl/7.88"},
	{"S4", "GET /nope HTTP/1.1\r\n\r\n", "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"},
	{"S5", "POST / HTTP/1.1\r\n\r\n", "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"},
	{"S6", "garbage", "HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n"},
}

func TestServer_Scenarios(t *testing.T) {
	for _, backend := range []transport.Backend{transport.BackendNet, transport.BackendIOURing, transport.BackendURing} {
		t.Run(string(backend), func(t *testing.T) {
			addr, _ := startServer(t, backend)

			for _, sc := range scenarios {
				t.Run(sc.name, func(t *testing.T) {
					resp := roundTrip(t, "tcp", addr, sc.request)
					if string(resp.Raw) != sc.want {
						t.Errorf("Response:\n got %q\nwant %q", resp.Raw, sc.want)
					}
				})
			}
		})
	}
}

func TestServer_ClientGet(t *testing.T) {
	addr, _ := startServer(t, transport.BackendNet)

	c, err := client.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	resp, err := c.Get("/user-agent", []client.Header{
		{Key: "Host", Value: addr},
		{Key: "USER-AGENT", Value: "probe/0.1"},
	})
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}

	if resp.StatusCode != 200 || string(resp.Body) != "probe/0.1" {
		t.Errorf("Expected 200 probe/0.1, got %d %q", resp.StatusCode, resp.Body)
	}
	if len(resp.Headers) != 2 {
		t.Errorf("Expected exactly Content-Type and Content-Length, got %v", resp.Headers)
	}
}

func TestServer_EchoBodies(t *testing.T) {
	addr, _ := startServer(t, transport.BackendNet)

	for _, s := range []string{"x", "hello/world", "%7E", "a-much-longer-segment-" + fmt.Sprint(1<<20)} {
		resp := roundTrip(t, "tcp", addr, "GET /echo/"+s+" HTTP/1.1\r\n\r\n")
		if string(resp.Body) != s || resp.ContentLength != len(s) {
			t.Errorf("Echo %q: got body %q with length %d", s, resp.Body, resp.ContentLength)
		}
	}
}

func TestServer_SequentialConnections(t *testing.T) {
	addr, _ := startServer(t, transport.BackendNet)

	// A client that connects but never sends holds the server in its read.
	idle, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	second := make(chan string, 1)
	go func() {
		c, err := client.Dial("tcp", addr)
		if err != nil {
			second <- err.Error()
			return
		}
		defer c.Close()
		resp, err := c.Get("/echo/second", nil)
		if err != nil {
			second <- err.Error()
			return
		}
		second <- string(resp.Body)
	}()

	select {
	case got := <-second:
		t.Fatalf("Second connection served while the first was pending: %q", got)
	case <-time.After(200 * time.Millisecond):
	}

	if _, err := idle.Write([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	idle.Close()

	select {
	case got := <-second:
		if got != "second" {
			t.Errorf("Expected second connection to be served, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for second connection")
	}
}

func TestServer_UnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "httpd.sock")

	cfg := DefaultConfig()
	cfg.Network = "unix"
	cfg.Addr = path
	srv := New(cfg, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("Server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp := roundTrip(t, "unix", path, "GET /echo/unix HTTP/1.1\r\n\r\n")
	if string(resp.Body) != "unix" {
		t.Errorf("Expected body %q, got %q", "unix", resp.Body)
	}

	srv.Close()
	if err := <-done; err != nil {
		t.Errorf("ListenAndServe returned %v", err)
	}
}

func TestServer_ListenAndServe_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 0

	err := New(cfg, zerolog.Nop()).ListenAndServe()
	httpErr, ok := errors.As(err)
	if !ok || httpErr.Type != errors.ErrorInvalidArgument {
		t.Errorf("Expected invalid argument error, got %v", err)
	}
}

func TestServer_ServeAfterClose(t *testing.T) {
	srv := New(DefaultConfig(), zerolog.Nop())
	srv.Close()

	l, err := transport.Listen("tcp", "127.0.0.1:0", transport.BackendNet)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	err = srv.Serve(l)
	if !errors.IsConnectionClosed(err) || !transport.IsListenerClosed(err) {
		t.Errorf("Expected a closed-connection error wrapping net.ErrClosed, got %v", err)
	}
	if httpErr, ok := errors.As(err); ok && httpErr.TransportErr == errors.TransportErrorSocketCreateFailure {
		t.Errorf("Serve after Close must not report a socket creation failure: %v", err)
	}
	if _, err := l.Accept(); !transport.IsListenerClosed(err) {
		t.Errorf("Expected listener to be closed, got %v", err)
	}
}

// flakyListener fails a number of accepts before handing out one conn
type flakyListener struct {
	mu       sync.Mutex
	failures int
	conn     transport.Conn
	closed   chan struct{}
}

func (l *flakyListener) Accept() (transport.Conn, error) {
	l.mu.Lock()
	if l.failures > 0 {
		l.failures--
		l.mu.Unlock()
		return nil, errors.NewTransportError(errors.TransportErrorSocketAcceptFailure, "too many open files", nil)
	}
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		return conn, nil
	}
	<-l.closed
	return nil, errors.NewTransportError(errors.TransportErrorSocketAcceptFailure, "closed", net.ErrClosed)
}

func (l *flakyListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4221}
}

func (l *flakyListener) Close() error {
	close(l.closed)
	return nil
}

func TestServer_AcceptErrorsAreSurvived(t *testing.T) {
	conn := newScriptedConn("GET /echo/after-errors HTTP/1.1\r\n\r\n")
	l := &flakyListener{failures: 3, conn: conn, closed: make(chan struct{})}

	srv := New(DefaultConfig(), zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		l.mu.Lock()
		served := l.conn == nil
		l.mu.Unlock()
		if served {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Connection was never accepted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.Close()
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v", err)
	}

	want := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 12\r\n\r\nafter-errors"
	if got := conn.output.String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

// brokenListener fails every accept with an error that is not an accept failure
type brokenListener struct {
	err error
}

func (l *brokenListener) Accept() (transport.Conn, error) { return nil, l.err }
func (l *brokenListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4221}
}
func (l *brokenListener) Close() error { return nil }

func TestServer_UnclassifiedListenerErrorStopsServe(t *testing.T) {
	want := errors.NewInvalidArgumentError("listener misconfigured")
	srv := New(DefaultConfig(), zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(&brokenListener{err: want}) }()

	select {
	case err := <-done:
		if err != want {
			t.Errorf("Expected Serve to return %v, got %v", want, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept looping on an error that is not an accept failure")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"unix", func(c *Config) { c.Network = "unix"; c.Addr = "/tmp/x.sock" }, false},
		{"udp", func(c *Config) { c.Network = "udp" }, true},
		{"empty addr", func(c *Config) { c.Addr = "" }, true},
		{"negative buffer", func(c *Config) { c.BufferSize = -1 }, true},
		{"unknown backend", func(c *Config) { c.Backend = "epoll" }, true},
		{"empty backend", func(c *Config) { c.Backend = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Addr != "127.0.0.1:4221" || cfg.Network != "tcp" || cfg.BufferSize != 8192 || cfg.Backend != transport.BackendNet {
		t.Errorf("Unexpected default config %+v", cfg)
	}
}
