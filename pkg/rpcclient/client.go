// Package rpcclient implements the client side: lazy connection setup,
// stream id allocation, and a blocking unary call built from the wire and
// rpc packages.
package rpcclient

import (
	"fmt"
	"sync"

	"github.com/lattice-io/h2rpc/pkg/rpc"
	"github.com/lattice-io/h2rpc/pkg/wire"
)

// Response is what Send returns: the accumulated response headers, body,
// and trailers for one RPC.
type Response struct {
	Headers  []wire.HeaderField
	Body     []byte
	Trailers []wire.HeaderField
	Status   rpc.Code
	Message  string
}

// Client lazily dials a single server address and multiplexes every call
// over one Connection.
type Client struct {
	addr   string
	cfg    *wire.ConnectionConfig
	socket wire.SocketConfig

	mu   sync.Mutex
	conn *wire.Connection
}

// New builds a Client that dials addr on first use.
func New(addr string, cfg *wire.ConnectionConfig) *Client {
	return &Client{addr: addr, cfg: cfg, socket: wire.SocketConfig{NoDelay: true}}
}

// NewWithSocketConfig is like New but also applies socket-level tuning
// (TCP_NODELAY, keepalive) to the dialed connection.
func NewWithSocketConfig(addr string, cfg *wire.ConnectionConfig, socket wire.SocketConfig) *Client {
	return &Client{addr: addr, cfg: cfg, socket: socket}
}

// connection returns the shared Connection, dialing and handshaking it on
// first call; the check and the dial both happen under c.mu so concurrent
// callers don't race to dial twice.
func (c *Client) connection() (*wire.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	netConn, err := wire.Dial(c.addr, c.socket)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: dial %s: %w", c.addr, err)
	}
	conn := wire.NewConnection(netConn, wire.RoleClient, c.cfg)
	if err := conn.Handshake(); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("rpcclient: handshake: %w", err)
	}
	go conn.Serve(nil)

	c.conn = conn
	return conn, nil
}

// Call performs one unary RPC against service/method with body as the
// (unencoded) request message, returning the decoded response message
// bytes or an error built from the response's grpc-status trailer.
func (c *Client) Call(service, method string, body []byte) ([]byte, error) {
	resp, err := c.Send(service, method, body)
	if err != nil {
		return nil, err
	}
	if resp.Status != rpc.OK {
		return nil, &rpc.BadStatus{Code: resp.Status, Message: resp.Message}
	}
	return resp.Body, nil
}

// Send performs one unary RPC, returning the full Response (including
// non-OK statuses) rather than turning them into an error.
//
// 1. Lazily connects.
// 2. Allocates the next odd stream id.
// 3. Emits HEADERS carrying the request pseudo-headers.
// 4. Emits DATA with the envelope-wrapped body, ending the stream (this
//    client never sends request trailers).
// 5. Blocks until the stream reaches Closed.
// 6. Returns the accumulated response.
func (c *Client) Send(service, method string, body []byte) (*Response, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	s := conn.OpenStream()
	if err := s.WriteHeaders(rpc.RequestHeaders(service, method), false); err != nil {
		return nil, err
	}
	if err := s.Write(rpc.EncodeEnvelope(body), true); err != nil {
		return nil, err
	}

	<-s.Done()
	defer s.Evict()

	respBody, err := drainBody(s)
	if err != nil {
		return nil, err
	}
	_, msg, _, envErr := rpc.DecodeEnvelope(respBody)
	if envErr != nil {
		msg = nil
	}

	trailers := s.Trailers()
	code, statusMsg := rpc.ParseStatusTrailers(trailers)

	return &Response{
		Headers:  s.Headers(),
		Body:     msg,
		Trailers: trailers,
		Status:   code,
		Message:  statusMsg,
	}, nil
}

// Close tears down the underlying connection, if one was ever opened.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func drainBody(s *wire.Stream) ([]byte, error) {
	var body []byte
	for {
		chunk, err := s.ReadData()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			return body, nil
		}
		body = append(body, chunk...)
	}
}
