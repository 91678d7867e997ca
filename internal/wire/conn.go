package wire

import (
	"net"
	"os"
	"sync/atomic"
	"time"
)

// deadlineConn refreshes the read or write deadline before every call, so a
// stalled data transfer fails after timeout instead of hanging.
type deadlineConn struct {
	net.Conn
	timeout time.Duration

	// expired latches once a deadline in the past is set, so the per-call
	// refresh cannot undo an interrupt.
	expired atomic.Bool
}

func (c *deadlineConn) SetDeadline(t time.Time) error {
	if !t.IsZero() && t.Before(time.Now()) {
		c.expired.Store(true)
	}
	return c.Conn.SetDeadline(t)
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.expired.Load() {
		return 0, os.ErrDeadlineExceeded
	}
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.expired.Load() {
		return 0, os.ErrDeadlineExceeded
	}
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}
