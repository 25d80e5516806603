// Package lstore implements an in-memory key-value store whose map is owned by exactly
// one goroutine. Other goroutines never touch the map, they send messages to the
// owner's inbox instead:
//
//   - Set is fire-and-forget: the message is queued and the call returns.
//   - Get is request/reply: the caller blocks until the owner answers.
//
// The owner handles one message at a time in arrival order, so no locks are needed
// and a Get observes every Set that was queued before it.
//
// Implementation Details:
//
//   - Backpressure: The inbox is a buffered channel of Config.InboxSize messages.
//     Senders block while it is full.
//
//   - Failure Handling: A panic while applying a message stops the owner. By default
//     the store then stops for good: Done is closed, Err reports the failure and all
//     further operations fail. With Config.RestartOnFailure the owner starts over with
//     an empty map instead, logs the data loss, counts it in rkv_store_data_loss_total
//     and calls Config.OnDataLoss.
//
//   - Shutdown: Close lets the owner apply everything that is already queued and
//     waits until it stopped.
//
// Data is stored entirely in memory and is not persisted between process restarts.
package lstore
