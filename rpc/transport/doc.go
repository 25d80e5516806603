// Package transport defines the interfaces for moving RESP frames between rKV
// clients and servers. It provides a common contract that all transport
// implementations must fulfill, so the server and client do not depend on the
// network protocol in use.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Enabling multiple transport implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     own a single connection and send one request at a time.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     accept connections, serve each on its own goroutine and pass every received
//     frame to the registered handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// Implementations live in the tcp and unix sub packages, both built on the
// protocol independent base package.
package transport
