// Debug TCP sink standing in for the downstream collector
package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"iotfleet-sim/internal/logging"
)

// Collector accepts TCP connections and reads each one to EOF, counting
// payloads and bytes. It implements the collector's wire contract (one
// fixed-size payload per connection, no framing, no acknowledgment) and
// exists for local runs and tests; the real downstream collector is an
// external system.
type Collector struct {
	ln  net.Listener
	log *slog.Logger

	conns atomic.Int64
	bytes atomic.Int64

	wg sync.WaitGroup
}

// Stats is a snapshot of what the collector has received.
type Stats struct {
	Connections int64 `json:"connections"`
	Bytes       int64 `json:"bytes"`
}

// New starts listening on addr (":6000", "127.0.0.1:0", ...).
func New(addr string) (*Collector, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Collector{ln: ln, log: slog.Default()}, nil
}

// Addr returns the bound listener address.
func (c *Collector) Addr() net.Addr {
	return c.ln.Addr()
}

// Serve accepts connections until ctx is done or the listener is closed.
// The logger is taken from ctx.
func (c *Collector) Serve(ctx context.Context) error {
	c.log = logging.FromContext(ctx)
	stop := context.AfterFunc(ctx, func() { _ = c.ln.Close() })
	defer stop()

	for {
		conn, err := c.ln.Accept()
		if err != nil {
			c.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		c.wg.Add(1)
		go c.handle(conn)
	}
}

// Close shuts the listener down and waits for open connections to
// drain. Idempotent.
func (c *Collector) Close() error {
	err := c.ln.Close()
	c.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Stats returns the received-traffic counters.
func (c *Collector) Stats() Stats {
	return Stats{
		Connections: c.conns.Load(),
		Bytes:       c.bytes.Load(),
	}
}

func (c *Collector) handle(conn net.Conn) {
	defer c.wg.Done()
	defer conn.Close()

	n, err := io.Copy(io.Discard, conn)
	c.conns.Add(1)
	c.bytes.Add(n)
	if err != nil {
		c.log.Warn("collector read failed", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}
	c.log.Debug("payload received", "remote", conn.RemoteAddr().String(), "bytes", n)
}
