package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/frame"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/tcp"
	"github.com/ValentinKolb/rKV/rpc/transport/unix"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testServerConfig() common.ServerConfig {
	config := common.DefaultServerConfig()
	config.Transport.Endpoint = "127.0.0.1:0"
	config.TimeoutSecond = 2
	return config
}

// serve runs the server on a bound listener and shuts it down when the test ends
func serve(t *testing.T, srv IRPCServer, listener net.Listener) {
	t.Helper()

	served := make(chan error, 1)
	go func() { served <- srv.Serve(listener) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
		select {
		case <-served:
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after Shutdown")
		}
	})
}

// startTestServer starts a TCP server with a fresh store and returns its address
func startTestServer(t *testing.T) string {
	t.Helper()

	config := testServerConfig()
	tr := tcp.NewTCPServerTransport()
	srv := NewRPCServer(config, tr)

	listener, err := tr.Listen(config)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	serve(t, srv, listener)
	return listener.Addr().String()
}

func newTestClient(t *testing.T, addr string) *client.Client {
	t.Helper()

	c, err := client.NewRPCClient(common.ClientConfig{
		Transport:     common.ClientTransportConfig{Endpoint: addr, TCPConf: common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1}},
		TimeoutSecond: 2,
	}, tcp.NewTCPClientTransport())
	if err != nil {
		t.Fatalf("NewRPCClient failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// rawExchange writes raw bytes to a new connection and decodes the reply
func rawExchange(t *testing.T, conn net.Conn, r *bufio.Reader, input string) frame.Frame {
	t.Helper()
	if _, err := conn.Write([]byte(input)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	resp, err := frame.Decode(r)
	if err != nil {
		t.Fatalf("Failed to read reply to %q: %v", input, err)
	}
	return resp
}

// --------------------------------------------------------------------------
// End-to-end behaviour
// --------------------------------------------------------------------------

// TestPing tests PING on a fresh connection
func TestPing(t *testing.T) {
	c := newTestClient(t, startTestServer(t))
	if err := c.Ping(); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

// TestSetGet tests SET followed by GET on the same connection and GET of a missing key
func TestSetGet(t *testing.T) {
	c := newTestClient(t, startTestServer(t))

	if err := c.Set("foo", []byte("bar")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, loaded, err := c.Get("foo")
	if err != nil || !loaded || string(value) != "bar" {
		t.Errorf("Expected bar, got %q loaded=%v err=%v", value, loaded, err)
	}

	value, loaded, err = c.Get("missing")
	if err != nil || loaded || value != nil {
		t.Errorf("Expected missing key, got %q loaded=%v err=%v", value, loaded, err)
	}

	// binary values and empty values survive unchanged
	binary := []byte{0, '\r', '\n', 0xff, '$', '-', '1'}
	if err := c.Set("bin", binary); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, _, _ := c.Get("bin"); string(value) != string(binary) {
		t.Errorf("Binary value changed: %q", value)
	}
	if err := c.Set("empty", []byte{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, loaded, _ := c.Get("empty"); !loaded || len(value) != 0 {
		t.Errorf("Expected empty value, got %q loaded=%v", value, loaded)
	}
}

// TestSetGetAcrossConnections tests that all connections share one store
func TestSetGetAcrossConnections(t *testing.T) {
	addr := startTestServer(t)
	a := newTestClient(t, addr)
	b := newTestClient(t, addr)

	if err := a.Set("shared", []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, loaded, err := b.Get("shared")
	if err != nil || !loaded || string(value) != "value" {
		t.Errorf("Expected value from the other connection, got %q loaded=%v err=%v", value, loaded, err)
	}
}

// TestConcurrentConnections tests that concurrent SETs from several connections are all applied
func TestConcurrentConnections(t *testing.T) {
	addr := startTestServer(t)

	const clients = 4
	const keysPerClient = 100

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		c := newTestClient(t, addr)
		wg.Add(1)
		go func(i int, c *client.Client) {
			defer wg.Done()
			for k := 0; k < keysPerClient; k++ {
				if err := c.Set(fmt.Sprintf("c%d-k%d", i, k), []byte(fmt.Sprintf("%d", k))); err != nil {
					t.Errorf("Client %d: Set failed: %v", i, err)
					return
				}
			}
		}(i, c)
	}
	wg.Wait()

	reader := newTestClient(t, addr)
	for i := 0; i < clients; i++ {
		for k := 0; k < keysPerClient; k++ {
			value, loaded, err := reader.Get(fmt.Sprintf("c%d-k%d", i, k))
			if err != nil || !loaded || string(value) != fmt.Sprintf("%d", k) {
				t.Fatalf("Key c%d-k%d: got %q loaded=%v err=%v", i, k, value, loaded, err)
			}
		}
	}
}

// TestSharedClient tests that calls of one client from several goroutines are serialized
func TestSharedClient(t *testing.T) {
	c := newTestClient(t, startTestServer(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			for k := 0; k < 50; k++ {
				if err := c.Set(key, []byte(key)); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
				value, _, err := c.Get(key)
				if err != nil || string(value) != key {
					t.Errorf("Expected %q, got %q (err %v)", key, value, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

// TestInvalidCommand tests that an invalid command is rejected without closing the connection
func TestInvalidCommand(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)

	for _, input := range []string{
		"*1\r\n$3\r\nDEL\r\n",           // unknown verb
		"*1\r\n$3\r\nGET\r\n",           // missing key
		"*2\r\n$4\r\nPING\r\n$1\r\nx\r\n", // extra argument
		"+PING\r\n",                     // not an array
		"*0\r\n",                        // empty array
	} {
		if resp := rawExchange(t, conn, r, input); !resp.Equal(common.ReplyInvalidCommand) {
			t.Errorf("Input %q: expected %v, got %v", input, common.ReplyInvalidCommand, resp)
		}
	}

	// the connection is still usable
	if resp := rawExchange(t, conn, r, "*1\r\n$4\r\nPING\r\n"); !resp.Equal(common.ReplyPong) {
		t.Errorf("Expected PONG after invalid commands, got %v", resp)
	}
}

// TestMalformedInput tests that malformed bytes close only the offending connection
func TestMalformedInput(t *testing.T) {
	addr := startTestServer(t)
	healthy := newTestClient(t, addr)
	if err := healthy.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	for _, input := range []string{"%garbage\r\n", "*-1\r\n", "$abc\r\n"} {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		r := bufio.NewReader(conn)

		if resp := rawExchange(t, conn, r, input); !resp.Equal(common.ReplyProtocolError) {
			t.Errorf("Input %q: expected %v, got %v", input, common.ReplyProtocolError, resp)
		}
		if _, err := frame.Decode(r); !errors.Is(err, io.EOF) {
			t.Errorf("Input %q: expected the connection to be closed, got %v", input, err)
		}
		_ = conn.Close()
	}

	// other connections and the store are not affected
	value, loaded, err := healthy.Get("k")
	if err != nil || !loaded || string(value) != "v" {
		t.Errorf("Expected the healthy connection to keep working, got %q loaded=%v err=%v", value, loaded, err)
	}
}

// TestUnixTransport tests the server over a unix domain socket
func TestUnixTransport(t *testing.T) {
	config := testServerConfig()
	config.Transport.Endpoint = filepath.Join(t.TempDir(), "rkv.sock")

	tr := unix.NewUnixServerTransport()
	srv := NewRPCServer(config, tr)
	listener, err := tr.Listen(config)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	serve(t, srv, listener)

	c, err := client.NewRPCClient(common.ClientConfig{
		Transport:     common.ClientTransportConfig{Endpoint: config.Transport.Endpoint},
		TimeoutSecond: 2,
	}, unix.NewUnixClientTransport())
	if err != nil {
		t.Fatalf("NewRPCClient failed: %v", err)
	}
	defer c.Close()

	if err := c.Set("over", []byte("unix")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, loaded, err := c.Get("over"); err != nil || !loaded || string(value) != "unix" {
		t.Errorf("Expected unix, got %q loaded=%v err=%v", value, loaded, err)
	}
}

// --------------------------------------------------------------------------
// Store failures
// --------------------------------------------------------------------------

// brokenStore fails every operation, its owner can be stopped with a failure
type brokenStore struct {
	done     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	err      error
}

func newBrokenStore() *brokenStore {
	return &brokenStore{done: make(chan struct{})}
}

func (s *brokenStore) fail(err error) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *brokenStore) Set(key string, value []byte) error {
	return store.NewError(store.RetCInternalError, "broken")
}

func (s *brokenStore) Get(key string) ([]byte, bool, error) {
	return nil, false, store.NewError(store.RetCInternalError, "broken")
}

func (s *brokenStore) Close() error {
	s.stopOnce.Do(func() { close(s.done) })
	return nil
}

func (s *brokenStore) Done() <-chan struct{} { return s.done }

func (s *brokenStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// TestStoreUnavailable tests that store errors are reported to the client
func TestStoreUnavailable(t *testing.T) {
	config := testServerConfig()
	tr := tcp.NewTCPServerTransport()
	srv := newRPCServer(config, tr, newBrokenStore())
	listener, err := tr.Listen(config)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	serve(t, srv, listener)

	c := newTestClient(t, listener.Addr().String())
	if err := c.Set("k", []byte("v")); !errors.Is(err, client.ErrServer) {
		t.Errorf("Expected a server error for SET, got %v", err)
	}
	if _, _, err := c.Get("k"); !errors.Is(err, client.ErrServer) {
		t.Errorf("Expected a server error for GET, got %v", err)
	}
	// PING does not need the store
	if err := c.Ping(); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

// TestStoreFailureStopsServer tests that Serve returns once the store failed fatally
func TestStoreFailureStopsServer(t *testing.T) {
	config := testServerConfig()
	tr := tcp.NewTCPServerTransport()
	st := newBrokenStore()
	srv := newRPCServer(config, tr, st)
	listener, err := tr.Listen(config)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve(listener) }()

	// an open connection is closed as well
	c := newTestClient(t, listener.Addr().String())
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	storeErr := store.NewError(store.RetCStoreFailed, "owner crashed")
	st.fail(storeErr)

	select {
	case err := <-served:
		if !errors.Is(err, storeErr) {
			t.Errorf("Expected Serve to return the store failure, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the store failed")
	}

	if err := c.Ping(); err == nil {
		t.Error("Expected the connection to be closed after the store failed")
	}
	if _, err := net.DialTimeout("tcp", listener.Addr().String(), time.Second); err == nil {
		t.Error("Expected the listener to be closed after the store failed")
	}
}

// TestShutdown tests that Serve returns ErrServerClosed after Shutdown
func TestShutdown(t *testing.T) {
	config := testServerConfig()
	tr := tcp.NewTCPServerTransport()
	srv := NewRPCServer(config, tr)
	listener, err := tr.Listen(config)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve(listener) }()

	c := newTestClient(t, listener.Addr().String())
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-served:
		if !errors.Is(err, transport.ErrServerClosed) {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
