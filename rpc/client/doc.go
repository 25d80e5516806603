// Package client implements the rKV client.
//
// A Client owns a single connection to one server and offers the three commands of
// the protocol as blocking calls:
//
//   - Ping() error
//   - Get(key) (value, loaded, error)
//   - Set(key, value) error
//
// Each call encodes its command, sends it and waits for exactly one reply. There is
// no pipelining, no retry and no reconnect: after a transport error the client stays
// disconnected and every further call fails with transport.ErrNotConnected.
//
// Error Handling:
//
//	Error replies of the server are returned as errors wrapping ErrServer, so callers
//	can tell rejected commands (errors.Is(err, ErrServer)) apart from transport
//	failures. Replies of the wrong shape yield ErrUnexpectedReply.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Transport:     common.ClientTransportConfig{Endpoint: "localhost:6379"},
//	  TimeoutSecond: 5,
//	}
//
//	c, err := client.NewRPCClient(config, tcp.NewTCPClientTransport())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	_ = c.Set("mykey", []byte("myvalue"))
//	value, exists, _ := c.Get("mykey")
package client
