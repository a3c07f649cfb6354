// Per-attempt TCP delivery to the collector endpoint
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

// DefaultTimeout bounds resolution, the connect handshake, and all
// subsequent socket I/O of one attempt.
const DefaultTimeout = 5 * time.Second

// Client performs single transmission attempts: resolve the target,
// connect to the first responsive candidate, write one payload, close.
// Nothing is cached between attempts; resolution and the connection are
// redone per call, so one stuck socket can never outlive its attempt.
// A Client holds no per-connection state and is safe for concurrent use.
type Client struct {
	timeout time.Duration

	// lookup is a seam for tests; defaults to the system resolver.
	lookup func(ctx context.Context, host string) ([]string, error)
}

// New creates a Client with the given per-attempt I/O timeout. A
// non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		timeout: timeout,
		lookup: func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		},
	}
}

// Send performs one full attempt against host:port and returns the
// number of payload bytes written. The error, if any, is a
// *ResolutionError, *ConnectError, or *SendError. Wall-clock blocking is
// bounded by the client timeout at every stage.
func (c *Client) Send(host string, port int, payload []byte) (int, error) {
	addrs, err := c.Resolve(host)
	if err != nil {
		return 0, err
	}

	conn, err := c.Connect(addrs, port)
	if err != nil {
		return 0, err
	}
	defer c.Close(conn)

	return c.write(conn, payload)
}

// Resolve looks up host and returns its candidate addresses in resolver
// order. Resolution is bounded by the client timeout.
func (c *Client) Resolve(host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	addrs, err := c.lookup(ctx, host)
	if err != nil {
		return nil, &ResolutionError{Host: host, Err: err}
	}
	if len(addrs) == 0 {
		return nil, &ResolutionError{Host: host, Err: errors.New("no addresses")}
	}
	return addrs, nil
}

// Connect dials each candidate address in order and returns the first
// connection that succeeds. The connect handshake and all later I/O on
// the returned connection share the same deadline.
func (c *Client) Connect(addrs []string, port int) (net.Conn, error) {
	var lastErr error
	var lastAddr string
	for _, addr := range addrs {
		target := net.JoinHostPort(addr, strconv.Itoa(port))
		conn, err := net.DialTimeout("tcp", target, c.timeout)
		if err != nil {
			lastErr = err
			lastAddr = addr
			continue
		}
		if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			conn.Close()
			lastErr = err
			lastAddr = addr
			continue
		}
		return conn, nil
	}

	return nil, &ConnectError{Host: lastAddr, Port: port, Err: lastErr}
}

// Close releases a connection. Best-effort: closing a nil or
// already-closed connection is harmless.
func (c *Client) Close(conn net.Conn) {
	if conn == nil {
		return
	}
	_ = conn.Close()
}

// write pushes the full payload in a single best-effort write. Partial
// and zero-byte writes count as failures; there is no in-attempt retry.
func (c *Client) write(conn net.Conn, payload []byte) (int, error) {
	n, err := conn.Write(payload)
	if err != nil {
		return n, &SendError{Written: n, Err: err}
	}
	if n < len(payload) || n == 0 {
		return n, &SendError{Written: n, Err: io.ErrShortWrite}
	}
	return n, nil
}
