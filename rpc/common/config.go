package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds settings that apply to every stream socket
type SocketConf struct {
	// WriteBufferSize is the size of the OS send buffer (0 = OS default)
	WriteBufferSize int
	// ReadBufferSize is the size of the OS receive buffer (0 = OS default)
	ReadBufferSize int
}

// TCPConf holds settings that only apply to TCP sockets
type TCPConf struct {
	// TCPNoDelay disables Nagle's algorithm
	TCPNoDelay bool
	// TCPKeepAliveSec is the keep-alive period (0 = disabled)
	TCPKeepAliveSec int
	// TCPLingerSec is the SO_LINGER timeout (-1 = OS default)
	TCPLingerSec int
}

// ServerTransportConfig holds the transport settings of the server
type ServerTransportConfig struct {
	SocketConf
	TCPConf

	// Endpoint is the address to listen on (host:port for tcp, a path for unix)
	Endpoint string
}

// ClientTransportConfig holds the transport settings of the client
type ClientTransportConfig struct {
	SocketConf
	TCPConf

	// Endpoint is the address of the server (host:port for tcp, a path for unix)
	Endpoint string
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the server.
type ServerConfig struct {
	Transport ServerTransportConfig

	// TimeoutSecond bounds writing a single reply (0 = no timeout)
	TimeoutSecond int64
	// IdleTimeoutSecond closes connections that send nothing for this long (0 = no timeout)
	IdleTimeoutSecond int64

	// Store settings
	InboxSize             int
	RestartStoreOnFailure bool

	// MetricsEndpoint is the address of the prometheus endpoint (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns a server configuration with the default values
// of the serve command.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport: ServerTransportConfig{
			Endpoint: "0.0.0.0:6379",
			TCPConf:  TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
		TimeoutSecond:     5,
		IdleTimeoutSecond: 0,
		InboxSize:         1024,
		LogLevel:          "info",
	}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Write Timeout", formatSeconds(c.TimeoutSecond))
	addField("Idle Timeout", formatSeconds(c.IdleTimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Transport
	addSection("Transport")
	writeTransportFields(addField, c.Transport.SocketConf, c.Transport.TCPConf)

	// Store
	addSection("Store")
	addField("Inbox Size", strconv.Itoa(c.InboxSize))
	addField("Restart On Failure", strconv.FormatBool(c.RestartStoreOnFailure))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters of the client.
type ClientConfig struct {
	Transport ClientTransportConfig

	// TimeoutSecond bounds a single request (0 = no timeout)
	TimeoutSecond int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", formatSeconds(int64(c.TimeoutSecond)))

	addSection("Transport")
	writeTransportFields(addField, c.Transport.SocketConf, c.Transport.TCPConf)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func writeTransportFields(addField func(name, value string), socket SocketConf, tcp TCPConf) {
	addField("TCP No Delay", strconv.FormatBool(tcp.TCPNoDelay))
	addField("TCP Keep Alive", formatSeconds(int64(tcp.TCPKeepAliveSec)))
	if tcp.TCPLingerSec < 0 {
		addField("TCP Linger", "os default")
	} else {
		addField("TCP Linger", fmt.Sprintf("%d sec", tcp.TCPLingerSec))
	}
	addField("Write Buffer", formatBytes(socket.WriteBufferSize))
	addField("Read Buffer", formatBytes(socket.ReadBufferSize))
}

func formatSeconds(sec int64) string {
	if sec <= 0 {
		return "disabled"
	}
	return fmt.Sprintf("%d sec", sec)
}

func formatBytes(n int) string {
	if n <= 0 {
		return "os default"
	}
	return fmt.Sprintf("%d bytes", n)
}
