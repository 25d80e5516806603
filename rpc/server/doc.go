// Package server implements the rKV server. It turns decoded request frames
// into commands, executes them against a single store and sends the replies
// back over the transport.
//
// The package focuses on:
//   - Validating requests (see common.ParseCommand) and answering invalid ones
//     with "-ERR invalid command" while keeping the connection open
//   - Adapter pattern to decouple the command semantics from the transport
//   - Owning the lifecycle of the store: the store is created with the server,
//     stopped by Shutdown, and a fatal store failure stops the server
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that executes a command against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating the adapter for PING, GET
//     and SET. Store errors are reported as "-ERR store unavailable".
//
//   - NewRPCServer: Factory function creating a server with the specified
//     transport and a fresh local store.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Transport.Endpoint = "127.0.0.1:6379"
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport())
//
//	go func() {
//	  <-ctx.Done()
//	  _ = s.Shutdown(context.Background())
//	}()
//
//	if err := s.ListenAndServe(); err != nil && !errors.Is(err, transport.ErrServerClosed) {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Every connection is served by its own goroutine. All of them share the
//	same store, which serializes the operations, so a SET acknowledged on one
//	connection is visible to a GET issued afterwards on any other connection.
package server
