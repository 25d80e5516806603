// Package cmd implements the command-line interface of rKV. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Client commands (ping, get, set) and the perf benchmark
//   - serve: Starts and configures the rKV server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable RKV_<FLAG> (dashes become
// underscores), .env and .env.local in the working directory are loaded first.
//
// See rkv -help for a list of all commands.
package cmd
