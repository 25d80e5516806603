package base

import (
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/frame"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig

	mu   sync.Mutex // held for a whole request/response exchange
	conn *Connection
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Close an existing connection
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.config = config

	timeout := time.Duration(config.TimeoutSecond) * time.Second
	conn, err := t.connector.Connect(config.Transport.Endpoint, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", config.Transport.Endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", config.Transport.Endpoint, err)
	}

	t.conn = NewConnection(conn)
	Logger.Debugf("Connected to %s using %s transport", config.Transport.Endpoint, t.connector.GetName())
	return nil
}

func (t *clientTransport) Send(req frame.Frame) (frame.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return frame.Frame{}, transport.ErrNotConnected
	}

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	if err := t.conn.SetWriteDeadline(timeout); err != nil {
		return frame.Frame{}, t.fail(err)
	}
	if err := t.conn.SendFrame(req); err != nil {
		return frame.Frame{}, t.fail(err)
	}

	if err := t.conn.SetReadDeadline(timeout); err != nil {
		return frame.Frame{}, t.fail(err)
	}
	resp, err := t.conn.ReceiveFrame()
	if err != nil {
		return frame.Frame{}, t.fail(fmt.Errorf("error reading response: %w", err))
	}
	return resp, nil
}

func (t *clientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// fail closes the connection after a transport error, a late response would
// otherwise be read as the answer to the next request. Must be called with mu held.
func (t *clientTransport) fail(err error) error {
	Logger.Debugf("Closing connection after error: %v", err)
	_ = t.conn.Close()
	t.conn = nil
	return err
}
