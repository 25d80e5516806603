// Package rpc provides the network layer of rKV, a small key-value server
// speaking a subset of the Redis serialization protocol (RESP).
//
// The package is organized into several subpackages:
//
//   - frame: The RESP value model and its codec (encoding, streaming decoding and
//     parsing of buffers).
//
//   - common: Commands and their mapping to frames, the fixed replies, configuration
//     structures and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets).
//
//   - client: The RPC client offering Ping, Get and Set over a single connection.
//
//   - server: The RPC server that validates commands and executes them against the store.
package rpc
