package wire

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Option configures a Client at Dial time.
type Option func(*Client) error

// WithTimeout bounds the dial and each read or write on the control and
// data connections. Zero disables the per-operation deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("negative timeout %v", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger logs every command and reply at debug level. Passwords are masked.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithDialer sets the dialer used for the control and passive data connections.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		if dialer == nil {
			return fmt.Errorf("nil dialer")
		}
		c.dialer = dialer
		return nil
	}
}

// WithPassive selects the initial data connection mode. Passive is the default.
func WithPassive(enabled bool) Option {
	return func(c *Client) error {
		c.passive = enabled
		return nil
	}
}

// WithDisableEPSV makes passive transfers use PASV directly, for servers or
// middleboxes that mishandle EPSV.
func WithDisableEPSV() Option {
	return func(c *Client) error {
		c.disableEPSV = true
		return nil
	}
}
