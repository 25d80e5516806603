package transport

import (
	"context"
	"errors"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/frame"
	"net"
)

// ErrServerClosed is returned by Serve after Shutdown was called
var ErrServerClosed = errors.New("transport: server closed")

// ErrNotConnected is returned by a client transport without an open connection
var ErrNotConnected = errors.New("transport: not connected")

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer for every frame received
// on a connection, the returned frame is sent back on the same connection.
// It is called concurrently for different connections.
type ServerHandleFunc func(req frame.Frame) (resp frame.Frame)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen binds a listener for the endpoint in the config
	Listen(config common.ServerConfig) (net.Listener, error)
	// Serve accepts connections on the listener until Shutdown is called or the
	// listener fails. Every connection is served by its own goroutine.
	Serve(config common.ServerConfig, listener net.Listener) error
	// Shutdown closes the listener and all open connections and waits until
	// all connection goroutines finished or the context is done
	Shutdown(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect opens the connection to the endpoint in the config
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and blocks until the response arrives.
	// Only one request is in flight at a time, concurrent calls are serialized.
	Send(req frame.Frame) (resp frame.Frame, err error)
	// Close closes the transport connection
	Close() error
}
