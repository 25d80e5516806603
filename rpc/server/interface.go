package server

import (
	"context"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/frame"
	"net"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for turning a command into a reply
type IRPCServerAdapter interface {
	// Handle executes a command against the store and returns the reply frame.
	// Store failures are reported as error frames, Handle never fails.
	Handle(cmd common.Command, store store.IStore) (resp frame.Frame)
}

// IRPCServer is the interface of the rKV server
type IRPCServer interface {
	// ListenAndServe binds the endpoint of the config and serves it, see Serve
	ListenAndServe() error
	// Serve accepts connections on an already bound listener and serves them.
	// It returns after Shutdown (with transport.ErrServerClosed), when the
	// listener fails or when the store failed fatally.
	Serve(listener net.Listener) error
	// Shutdown stops accepting connections, closes all open connections and
	// stops the store
	Shutdown(ctx context.Context) error
}
