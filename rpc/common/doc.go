// Package common provides the data structures and utilities shared by the rKV
// server, client and transports.
//
// The package focuses on:
//   - The command protocol (PING, GET, SET) on top of the frame codec
//   - Configuration structures for client and server components
//   - Custom logging implementation based on the Dragonboat logger facade
//
// Key Components:
//
//   - Command: A single client request. Command.ToFrame converts a command into
//     its wire form, ParseCommand does the reverse and rejects everything that is
//     not exactly one of the known commands with ErrInvalidCommand.
//
//   - Replies: The fixed replies of the server (ReplyPong, ReplyOK) and the error
//     replies sent for invalid commands, protocol errors and store failures.
//
//   - ServerConfig / ClientConfig: Configuration for the server and the client,
//     including the socket and TCP settings of the transport layer. Both provide a
//     String method that renders the configuration for startup logs.
//
//   - Logger: A custom ILogger that writes "LEVEL | logger | message" lines.
//     InitLoggers installs it and sets the level of all rKV loggers.
package common
