package client

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/frame"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

var (
	// ErrServer is wrapped by all errors the server replied with
	ErrServer = errors.New("server error")
	// ErrUnexpectedReply is returned if the reply does not fit the command
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// Client is a synchronous client for a single rKV server.
// It owns exactly one connection, every call sends one command and blocks
// until the reply arrives. Calls from several goroutines are serialized.
type Client struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport
}

// NewRPCClient connects the transport and returns a client using it
//
// Usage:
//
//	c, err := client.NewRPCClient(config, tcp.NewTCPClientTransport())
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	err = c.Set("hello", []byte("world"))
//	value, ok, err := c.Get("hello")
func NewRPCClient(config common.ClientConfig, transport transport.IRPCClientTransport) (*Client, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}
	return &Client{
		config:    config,
		transport: transport,
	}, nil
}

// Ping checks that the server is alive
func (c *Client) Ping() error {
	resp, err := c.invoke(common.NewPingCommand())
	if err != nil {
		return err
	}
	if !resp.Equal(common.ReplyPong) {
		return fmt.Errorf("%w to PING: %v", ErrUnexpectedReply, resp)
	}
	return nil
}

// Get returns the value stored for key. The boolean reports whether the key exists.
func (c *Client) Get(key string) ([]byte, bool, error) {
	resp, err := c.invoke(common.NewGetCommand(key))
	if err != nil {
		return nil, false, err
	}

	switch resp.Kind {
	case frame.KindBulk:
		return resp.Bulk, true, nil
	case frame.KindNull:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w to GET: %v", ErrUnexpectedReply, resp)
	}
}

// Set stores value under key, replacing any previous value
func (c *Client) Set(key string, value []byte) error {
	resp, err := c.invoke(common.NewSetCommand(key, value))
	if err != nil {
		return err
	}
	if !resp.Equal(common.ReplyOK) {
		return fmt.Errorf("%w to SET: %v", ErrUnexpectedReply, resp)
	}
	return nil
}

// Close closes the connection to the server
func (c *Client) Close() error {
	return c.transport.Close()
}

// invoke sends a command and returns the reply.
// Error replies of the server are returned as errors wrapping ErrServer.
func (c *Client) invoke(cmd common.Command) (frame.Frame, error) {
	resp, err := c.transport.Send(cmd.ToFrame())
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%s failed: %w", cmd.CmdType, err)
	}

	if resp.IsError() {
		Logger.Debugf("Server rejected %s: %s", cmd, resp.Str)
		return frame.Frame{}, fmt.Errorf("%w: %s", ErrServer, resp.Str)
	}
	return resp, nil
}
