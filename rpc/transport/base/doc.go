// Package base provides the protocol independent foundation of the rKV transports.
// It implements the connection handling for servers and clients on top of any
// stream-oriented network protocol (TCP, Unix sockets, etc.) and is extended with
// protocol-specific connectors.
//
// The package focuses on:
//   - Reading and writing RESP frames on a buffered connection
//   - One goroutine per accepted connection, the accept loop never waits for requests
//   - Graceful shutdown of the listener and all open connections
//   - A synchronous client with exactly one connection and one request in flight
//
// Key Components:
//
//   - Connection: pairs a buffered reader and writer on a byte stream. SendFrame
//     writes and flushes one frame, ReceiveFrame reads exactly one frame.
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (listen, dial, socket tuning) that allow extending the base transport with
//     different network protocols.
//
//   - serverTransport: accepts connections and serves each on its own goroutine.
//     Every received frame is passed to the registered handler and the returned
//     frame is sent back. Malformed input is answered with "-ERR protocol error"
//     and the connection is closed, since the stream cannot be resynchronized.
//     Open connections are tracked in a concurrent map so Shutdown can close them.
//
//   - clientTransport: owns one connection. Send writes the request and blocks for
//     the response, concurrent calls are serialized. After a transport error the
//     connection is closed and not reopened, there are no retries.
//
// Timeouts:
//
//	The server waits up to IdleTimeoutSecond for the first byte of a request and up
//	to TimeoutSecond for the rest of it and for writing the reply. The client applies
//	its TimeoutSecond to every write and read. A value of zero disables the timeout.
//
// Metrics:
//
//	The server counts accepted and active connections, requests and protocol errors
//	(rkv_connections_total, rkv_connections_active, rkv_requests_total,
//	rkv_protocol_errors_total).
package base
