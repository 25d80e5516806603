// Package store defines the interface of the rKV key-value store and its error type.
//
// Key Components:
//
//   - IStore Interface: Set and Get on string keys and byte values, plus the lifecycle
//     methods Close, Done and Err. The server only talks to the store through this
//     interface.
//
//   - Error System: Errors carry a RetCode. Errors of a store that was closed or whose
//     owner failed match ErrStoreClosed with errors.Is.
//
// Implementations:
//
//   - Local Store (lstore): an in-memory map owned by a single goroutine that is
//     reached only by message passing.
package store
