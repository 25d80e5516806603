// Package unix implements a transport for rKV using Unix domain sockets, for clients
// running on the same machine as the server.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting the connection handling from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, a stale socket file at the
//     endpoint path is removed first
//
// Only the OS buffer sizes of the socket configuration apply, TCP settings are ignored.
package unix
