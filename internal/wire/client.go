// Package wire is the native FTP control and data channel client behind
// ftpsession's default transport.
//
// It implements the subset of RFC 959 a session needs: greeting, USER/PASS,
// TYPE, passive (EPSV with PASV fallback) and active (PORT/EPRT) data
// connections, STOR, RETR, DELE, CWD, MKD, PWD, NOOP and QUIT. Every blocking
// call takes a context; cancelling it interrupts in-flight I/O, after which the
// client must be closed.
package wire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// TransferType is the representation type sent with TYPE.
type TransferType string

const (
	TypeASCII  TransferType = "A"
	TypeBinary TransferType = "I"
)

// quitGrace bounds the QUIT exchange when no operation timeout is configured.
const quitGrace = 5 * time.Second

// Client is a single FTP control connection. It is not meant for concurrent
// transfers; commands are serialized on the control channel.
type Client struct {
	// conn is the control channel
	conn net.Conn

	// reader buffers the control channel
	reader *bufio.Reader

	host string
	port string

	// timeout bounds every individual read, write and dial
	timeout time.Duration

	logger *slog.Logger
	dialer *net.Dialer

	// passive selects PASV/EPSV (true) or PORT/EPRT (false) data connections
	passive bool

	// disableEPSV skips EPSV and goes straight to PASV
	disableEPSV bool

	// currentType avoids redundant TYPE commands
	currentType TransferType

	// mu serializes control channel exchanges
	mu sync.Mutex

	// interrupted is set once a bound context is cancelled; the control
	// channel is unusable afterwards
	interrupted atomic.Bool

	// dataMu protects activeData, which interrupt may touch from another goroutine
	dataMu     sync.Mutex
	activeData net.Conn
}

// Dial opens the control connection to addr ("host:port") and reads the
// server greeting.
func Dial(ctx context.Context, addr string, options ...Option) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	c := &Client{
		host:    host,
		port:    port,
		timeout: 30 * time.Second,
		logger:  slog.New(slog.DiscardHandler),
		dialer:  &net.Dialer{},
		passive: true,
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if c.dialer.Timeout == 0 {
		c.dialer.Timeout = c.timeout
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.host, c.port)
	c.logger.Debug("connecting to ftp server", "addr", addr)

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)

	err = c.withContext(ctx, func() error {
		resp, err := c.readReply()
		if err != nil {
			return fmt.Errorf("failed to read greeting: %w", err)
		}
		c.logger.Debug("ftp greeting", "code", resp.Code, "message", resp.Message)
		if resp.Code != 220 {
			return newProtocolError("CONNECT", resp)
		}
		return nil
	})
	if err != nil {
		conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// Login authenticates with USER and, when the server asks for it, PASS.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.withContext(ctx, func() error {
		resp, err := c.sendCommand("USER", username)
		if err != nil {
			return err
		}

		switch resp.Code {
		case 230:
			// no password required
			return nil
		case 331, 332:
		default:
			return newProtocolError("USER", resp)
		}

		_, err = c.expectCode(230, "PASS", password)
		return err
	})
}

// Type sets the representation type, skipping the command when it is
// already in effect.
func (c *Client) Type(ctx context.Context, t TransferType) error {
	if c.currentType == t {
		c.logger.Debug("transfer type already set, skipping TYPE command", "type", string(t))
		return nil
	}
	return c.withContext(ctx, func() error {
		return c.setType(t)
	})
}

func (c *Client) setType(t TransferType) error {
	if c.currentType == t {
		return nil
	}
	if _, err := c.expectCode(200, "TYPE", string(t)); err != nil {
		return err
	}
	c.currentType = t
	return nil
}

// SetPassive switches between passive and active data connections for
// subsequent transfers. It sends nothing to the server.
func (c *Client) SetPassive(enabled bool) {
	c.mu.Lock()
	c.passive = enabled
	c.mu.Unlock()
}

// Passive reports the current data connection mode.
func (c *Client) Passive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passive
}

// Noop sends NOOP.
func (c *Client) Noop(ctx context.Context) error {
	return c.withContext(ctx, func() error {
		_, err := c.expect2xx("NOOP")
		return err
	})
}

// Quit sends QUIT and closes the control connection. An active transfer is
// aborted by closing its data connection. Calling Quit on a closed client is
// a no-op.
func (c *Client) Quit() error {
	if c.conn == nil {
		return nil
	}

	c.dataMu.Lock()
	if c.activeData != nil {
		c.activeData.Close()
		c.activeData = nil
	}
	c.dataMu.Unlock()

	grace := c.timeout
	if grace == 0 {
		grace = quitGrace
	}
	_ = c.conn.SetDeadline(time.Now().Add(grace))
	// The server may already be gone; QUIT is a courtesy.
	_, _ = c.sendCommand("QUIT")

	err := c.conn.Close()
	c.conn = nil
	return err
}

// withContext runs fn with ctx bound to the connection: cancellation forces
// an immediate deadline so blocked reads and writes return.
func (c *Client) withContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.conn == nil {
		return fmt.Errorf("ftp: connection closed")
	}

	conn := c.conn
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(done)
		c.interrupt(conn)
	})
	err := fn()
	if stop() {
		return err
	}

	// The interrupt already started; wait so it never races a later Quit.
	// The control channel is dead now even if fn got its reply.
	<-done
	if err == nil {
		err = errors.New("interrupted")
	}
	return fmt.Errorf("%w: %v", ctx.Err(), err)
}

func (c *Client) interrupt(conn net.Conn) {
	c.interrupted.Store(true)
	past := time.Unix(1, 0)
	_ = conn.SetDeadline(past)
	c.dataMu.Lock()
	if c.activeData != nil {
		_ = c.activeData.SetDeadline(past)
	}
	c.dataMu.Unlock()
}

func (c *Client) setActiveData(conn net.Conn) {
	c.dataMu.Lock()
	c.activeData = conn
	c.dataMu.Unlock()
}

// CurrentDir returns the working directory reported by PWD.
// Example reply: 257 "/home/user" is the current directory
func (c *Client) CurrentDir(ctx context.Context) (string, error) {
	var dir string
	err := c.withContext(ctx, func() error {
		resp, err := c.expect2xx("PWD")
		if err != nil {
			return err
		}
		msg := resp.Message
		start := strings.Index(msg, "\"")
		if start == -1 {
			return fmt.Errorf("invalid PWD response: %s", msg)
		}
		end := strings.Index(msg[start+1:], "\"")
		if end == -1 {
			return fmt.Errorf("invalid PWD response: %s", msg)
		}
		dir = msg[start+1 : start+1+end]
		return nil
	})
	return dir, err
}
