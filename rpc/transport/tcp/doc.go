// Package tcp implements the TCP transport of rKV. It provides concrete
// implementations of the base package's connector interfaces.
//
// This package builds on the base package's transport functionality, see the base
// package documentation for the connection handling itself.
//
// Key Components:
//
//   - clientConnector: dials the server with the configured timeout
//
//   - serverConnector: binds a TCP listener on host:port
//
// Both connectors apply the socket and TCP settings of the configuration to every
// connection (TCP_NODELAY, keep-alive period, SO_LINGER, OS buffer sizes).
package tcp
