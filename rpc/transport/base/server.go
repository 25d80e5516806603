package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/frame"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	connectionsTotal    = metrics.GetOrCreateCounter("rkv_connections_total")
	connectionsActive   = metrics.GetOrCreateCounter("rkv_connections_active")
	requestsTotal       = metrics.GetOrCreateCounter("rkv_requests_total")
	protocolErrorsTotal = metrics.GetOrCreateCounter("rkv_protocol_errors_total")
)

const maxAcceptDelay = time.Second

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc

	mu       sync.Mutex
	config   common.ServerConfig
	listener net.Listener

	conns      *xsync.MapOf[uint64, *Connection]
	nextConnID atomic.Uint64
	wg         sync.WaitGroup
	closed     atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport that serves every
// connection on its own goroutine
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		conns:     xsync.NewMapOf[uint64, *Connection](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := t.connector.Listen(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	return listener, nil
}

func (t *serverTransport) Serve(config common.ServerConfig, listener net.Listener) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		_ = listener.Close()
		return transport.ErrServerClosed
	}
	t.config = config
	t.listener = listener
	// the accept loop counts as a worker, so connection workers are never added to an empty group
	t.wg.Add(1)
	t.mu.Unlock()
	defer t.wg.Done()

	Logger.Infof("Starting %s server on %s", t.connector.GetName(), listener.Addr())

	// Accept connections
	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() {
				return transport.ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			// back off on accept errors (e.g. too many open files) instead of spinning
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			Logger.Errorf("Accept error: %v; retrying in %v", err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		id := t.nextConnID.Add(1)
		c := NewConnection(conn)
		t.conns.Store(id, c)
		connectionsTotal.Inc()
		connectionsActive.Inc()

		// Shutdown may have missed this connection while closing the others
		if t.closed.Load() {
			t.conns.Delete(id)
			connectionsActive.Dec()
			_ = c.Close()
			return transport.ErrServerClosed
		}

		// Handle the connection in a goroutine
		t.wg.Add(1)
		go t.handleConnection(id, c, config)
	}
}

func (t *serverTransport) Shutdown(ctx context.Context) error {
	t.closed.Store(true)

	var firstErr error

	// Close listener to break the accept loop
	t.mu.Lock()
	if t.listener != nil {
		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}
	t.mu.Unlock()

	// Close all open connections to unblock their goroutines
	t.conns.Range(func(id uint64, c *Connection) bool {
		_ = c.Close()
		return true
	})

	// Wait for goroutines to finish
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	Logger.Infof("%s server stopped", t.connector.GetName())
	return firstErr
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection serves requests of one connection until it is closed or fails
func (t *serverTransport) handleConnection(id uint64, conn *Connection, config common.ServerConfig) {
	defer t.wg.Done()
	defer func() {
		t.conns.Delete(id)
		connectionsActive.Dec()
		_ = conn.Close()
	}()

	timeout := time.Duration(config.TimeoutSecond) * time.Second
	idleTimeout := time.Duration(config.IdleTimeoutSecond) * time.Second
	remote := conn.RemoteAddr()

	Logger.Debugf("Connection %d from %s opened", id, remote)

	for {
		// wait for the next request, the connection may be idle in between
		if err := conn.SetReadDeadline(idleTimeout); err != nil {
			Logger.Debugf("Connection %d: failed to set read deadline: %v", id, err)
			return
		}
		if err := conn.WaitReadable(); err != nil {
			t.logReadError(id, remote, err)
			return
		}

		// the rest of the frame has to arrive in time
		if err := conn.SetReadDeadline(timeout); err != nil {
			Logger.Debugf("Connection %d: failed to set read deadline: %v", id, err)
			return
		}
		req, err := conn.ReceiveFrame()
		if err != nil {
			if errors.Is(err, frame.ErrInvalidFormat) {
				// the byte stream cannot be resynchronized after malformed input
				protocolErrorsTotal.Inc()
				Logger.Warningf("Connection %d from %s sent malformed data, closing: %v", id, remote, err)
				_ = conn.SetWriteDeadline(timeout)
				_ = conn.SendFrame(common.ReplyProtocolError)
				return
			}
			t.logReadError(id, remote, err)
			return
		}

		// Process the request
		start := time.Now()
		resp := t.handler(req)
		requestsTotal.Inc()
		Logger.Debugf("Connection %d: processed request in %s", id, time.Since(start))

		if err := conn.SetWriteDeadline(timeout); err != nil {
			Logger.Debugf("Connection %d: failed to set write deadline: %v", id, err)
			return
		}
		if err := conn.SendFrame(resp); err != nil {
			Logger.Errorf("Connection %d: failed to write response: %v", id, err)
			return
		}
	}
}

func (t *serverTransport) logReadError(id uint64, remote string, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		Logger.Debugf("Connection %d from %s closed by client", id, remote)
	case errors.Is(err, frame.ErrIncomplete):
		Logger.Debugf("Connection %d from %s closed in the middle of a frame", id, remote)
	case errors.As(err, &netErr) && netErr.Timeout():
		Logger.Debugf("Connection %d from %s timed out", id, remote)
	case t.closed.Load():
		Logger.Debugf("Connection %d from %s closed by shutdown", id, remote)
	default:
		Logger.Errorf("Connection %d from %s failed: %v", id, remote, err)
	}
}
