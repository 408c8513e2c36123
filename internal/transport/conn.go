// Package transport provides the physical and network transports that
// links are built on: FT1.2 serial ports, KNX USB interfaces, TP-UART
// bus monitors, UDP/multicast endpoints, and reusable TCP stream
// connections with process-wide pooling.
package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"knxtool/config"
	kerrors "knxtool/internal/errors"
	"knxtool/internal/retry"
)

// Connection is a reusable client stream connection to a KNXnet/IP
// server.  Connections are owned by the Pool; borrowers must not close
// them directly, since reuse by later tool invocations is expected.
type Connection struct {
	local, remote string
	conn          net.Conn
	writeMu       sync.Mutex
	connected     atomic.Bool
	closeOnce     sync.Once
}

// Dial establishes a TCP connection to remote, optionally bound to a
// local address.  Establishment is retried with a short backoff budget
// so a dead server fails fast; the context aborts both dialing and the
// backoff waits.
func Dial(ctx context.Context, local, remote string) (*Connection, error) {
	dialer := net.Dialer{Timeout: config.DefaultDialTimeout}
	if la := parseLocal(local); la != nil {
		dialer.LocalAddr = la
	}

	var conn net.Conn
	err := retry.DialBackoff().Do(ctx, func(int) error {
		c, err := dialer.DialContext(ctx, "tcp", remote)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, kerrors.Wrap("dial", remote, err)
	}

	c := &Connection{local: local, remote: remote, conn: conn}
	c.connected.Store(true)
	return c, nil
}

// parseLocal converts a "host:port" string to a bind address, or nil
// when no explicit binding is requested.
func parseLocal(local string) *net.TCPAddr {
	if local == "" {
		return nil
	}
	a, err := net.ResolveTCPAddr("tcp", local)
	if err != nil || (a.IP == nil && a.Port == 0) {
		return nil
	}
	return a
}

// Wrap adopts an established stream connection.  Used for session
// negotiation over externally created connections, mainly in tests.
func Wrap(conn net.Conn) *Connection {
	c := &Connection{remote: conn.RemoteAddr().String(), conn: conn}
	c.connected.Store(true)
	return c
}

// Connected reports whether the connection is still usable.
func (c *Connection) Connected() bool { return c.connected.Load() }

// RemoteAddr returns the remote endpoint the connection was dialed to.
func (c *Connection) RemoteAddr() string { return c.remote }

// LocalAddr returns the actual local endpoint of the connection.
func (c *Connection) LocalAddr() string { return c.conn.LocalAddr().String() }

func (c *Connection) Read(p []byte) (int, error) {
	n, err := c.conn.Read(p)
	if err != nil && !isTimeout(err) {
		c.connected.Store(false)
	}
	return n, err
}

// Write sends p on the connection.  Writes are serialized so that
// concurrent users cannot interleave frames.
func (c *Connection) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !c.connected.Load() {
		return 0, kerrors.ErrNotConnected
	}
	n, err := c.conn.Write(p)
	if err != nil && !isTimeout(err) {
		c.connected.Store(false)
	}
	return n, err
}

// SetDeadline sets the read and write deadlines of the underlying
// connection.
func (c *Connection) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Close marks the connection disconnected and closes the stream.  The
// pool replaces closed connections on the next acquire.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		err = c.conn.Close()
	})
	return err
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
