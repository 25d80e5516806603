package store

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the interface for interacting with the key–value store.
// All methods are safe for concurrent use.
type IStore interface {
	// Set inserts or updates a key–value pair. The call does not wait until the
	// write was applied, but a following Get from the same goroutine observes it.
	// The value is copied, the caller may reuse the buffer afterwards.
	Set(key string, value []byte) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Close stops the store after all queued operations have been applied.
	// Operations issued after Close fail with ErrStoreClosed.
	Close() (err error)
	// Done returns a channel that is closed once the store stopped, either because
	// it was closed or because it failed.
	Done() <-chan struct{}
	// Err returns the reason the store stopped. It is nil while the store is running
	// and after a regular Close.
	Err() error
}

// ErrStoreClosed is returned by all operations on a store that stopped.
var ErrStoreClosed = errors.New("store is closed")

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap makes store errors comparable with errors.Is(err, ErrStoreClosed).
func (e *Error) Unwrap() error {
	if e.Code == RetCStoreFailed || e.Code == RetCStoreClosed {
		return ErrStoreClosed
	}
	return nil
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Command executed successfully.
	RetCInternalError                // 1: Command failed due to an internal error.
	RetCStoreClosed                  // 2: The store was closed.
	RetCStoreFailed                  // 3: The goroutine owning the data failed.
)

// String returns the name of the return code.
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCStoreClosed:
		return "StoreClosed"
	case RetCStoreFailed:
		return "StoreFailed"
	default:
		return "Unknown"
	}
}
