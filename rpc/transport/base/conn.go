package base

import (
	"bufio"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/frame"
	"io"
	"net"
	"time"
)

const connBufferSize = 64 * 1024 // 64 KB

// Connection reads and writes frames on a byte stream.
// A Connection is not safe for concurrent use, it is owned by one goroutine.
type Connection struct {
	netConn net.Conn // nil if the stream is not a network connection
	closer  io.Closer
	reader  *bufio.Reader
	writer  *bufio.Writer
}

// NewConnection creates a connection on top of a network connection
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		netConn: conn,
		closer:  conn,
		reader:  bufio.NewReaderSize(conn, connBufferSize),
		writer:  bufio.NewWriterSize(conn, connBufferSize),
	}
}

// NewStreamConnection creates a connection from a separate reader and writer,
// e.g. the two halves of a pipe. Deadlines are not supported on such connections.
func NewStreamConnection(r io.Reader, w io.Writer) *Connection {
	c := &Connection{
		reader: bufio.NewReaderSize(r, connBufferSize),
		writer: bufio.NewWriterSize(w, connBufferSize),
	}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// SendFrame writes the frame and flushes it to the stream
func (c *Connection) SendFrame(f frame.Frame) error {
	if err := frame.WriteFrame(c.writer, f); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush frame: %w", err)
	}
	return nil
}

// ReceiveFrame blocks until one complete frame was read.
// It returns io.EOF if the peer closed the stream between frames.
func (c *Connection) ReceiveFrame() (frame.Frame, error) {
	return frame.Decode(c.reader)
}

// WaitReadable blocks until the first byte of the next frame is available
// without consuming it.
func (c *Connection) WaitReadable() error {
	_, err := c.reader.Peek(1)
	return err
}

// SetReadDeadline sets the read deadline of the underlying network connection.
// A zero duration clears the deadline.
func (c *Connection) SetReadDeadline(d time.Duration) error {
	if c.netConn == nil {
		return nil
	}
	return c.netConn.SetReadDeadline(deadline(d))
}

// SetWriteDeadline sets the write deadline of the underlying network connection.
// A zero duration clears the deadline.
func (c *Connection) SetWriteDeadline(d time.Duration) error {
	if c.netConn == nil {
		return nil
	}
	return c.netConn.SetWriteDeadline(deadline(d))
}

// RemoteAddr returns the address of the peer, if known
func (c *Connection) RemoteAddr() string {
	if c.netConn == nil || c.netConn.RemoteAddr() == nil {
		return "unknown"
	}
	return c.netConn.RemoteAddr().String()
}

// Close closes the underlying stream. Buffered but unsent data is discarded.
func (c *Connection) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
