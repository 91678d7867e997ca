package ftpsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gonzalop/ftpsession/internal/ratelimit"
	"github.com/gonzalop/ftpsession/internal/wire"
)

// TransportOption configures the built-in transports.
type TransportOption func(*transportConfig) error

type transportConfig struct {
	timeout     time.Duration
	bandwidth   int64
	disableEPSV bool
	logger      *slog.Logger
}

func newTransportConfig(options []TransportOption) (transportConfig, error) {
	cfg := transportConfig{
		timeout: 30 * time.Second,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to apply transport option: %w", err)
		}
	}
	return cfg, nil
}

// WithDialTimeout bounds the dial and each read or write on the control and
// data connections. Zero means no per-operation limit; the context still
// applies.
func WithDialTimeout(timeout time.Duration) TransportOption {
	return func(c *transportConfig) error {
		if timeout < 0 {
			return fmt.Errorf("negative timeout %v", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithBandwidthLimit caps each connection's transfers at bytesPerSecond.
// Zero means unlimited.
func WithBandwidthLimit(bytesPerSecond int64) TransportOption {
	return func(c *transportConfig) error {
		if bytesPerSecond < 0 {
			return fmt.Errorf("negative bandwidth limit %d", bytesPerSecond)
		}
		c.bandwidth = bytesPerSecond
		return nil
	}
}

// WithDisableEPSV makes passive transfers use PASV directly.
func WithDisableEPSV() TransportOption {
	return func(c *transportConfig) error {
		c.disableEPSV = true
		return nil
	}
}

// WithTransportLogger logs every FTP command and reply at debug level.
// Passwords are masked.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(c *transportConfig) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WireTransport is the default Transport, built on the package's own FTP
// client. It supports active mode and cancels in-flight transfers when the
// context is done.
type WireTransport struct {
	cfg transportConfig
	err error
}

// NewWireTransport returns a WireTransport. An invalid option makes every
// Dial fail with its error.
func NewWireTransport(options ...TransportOption) *WireTransport {
	cfg, err := newTransportConfig(options)
	return &WireTransport{cfg: cfg, err: err}
}

func (t *WireTransport) Dial(ctx context.Context, server string) (Conn, error) {
	if t.err != nil {
		return nil, t.err
	}

	opts := []wire.Option{
		wire.WithTimeout(t.cfg.timeout),
		wire.WithLogger(t.cfg.logger),
	}
	if t.cfg.disableEPSV {
		opts = append(opts, wire.WithDisableEPSV())
	}

	c, err := wire.Dial(ctx, serverAddr(server), opts...)
	if err != nil {
		return nil, err
	}
	return &wireConn{client: c, bandwidth: t.cfg.bandwidth}, nil
}

type wireConn struct {
	client    *wire.Client
	bandwidth int64
}

func wireType(mode TransferMode) wire.TransferType {
	if mode == ModeBinary {
		return wire.TypeBinary
	}
	return wire.TypeASCII
}

func (c *wireConn) Login(ctx context.Context, user, pass string) error {
	return c.client.Login(ctx, user, pass)
}

func (c *wireConn) SetTransferMode(ctx context.Context, mode TransferMode) error {
	return c.client.Type(ctx, wireType(mode))
}

func (c *wireConn) SetPassive(enabled bool) error {
	c.client.SetPassive(enabled)
	return nil
}

func (c *wireConn) Put(ctx context.Context, remotePath, localPath string, mode TransferMode) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := ratelimit.NewReader(ctx, f, ratelimit.New(c.bandwidth))
	_, err = c.client.Store(ctx, remotePath, r, wireType(mode))
	return err
}

func (c *wireConn) Get(ctx context.Context, localPath, remotePath string, mode TransferMode) error {
	return writeLocal(localPath, func(f *os.File) error {
		w := ratelimit.NewWriter(ctx, f, ratelimit.New(c.bandwidth))
		_, err := c.client.Retrieve(ctx, remotePath, w, wireType(mode))
		return err
	})
}

func (c *wireConn) Delete(ctx context.Context, remotePath string) error {
	return c.client.Delete(ctx, remotePath)
}

func (c *wireConn) ChangeDir(ctx context.Context, path string) error {
	return c.client.ChangeDir(ctx, path)
}

func (c *wireConn) MakeDir(ctx context.Context, path string) error {
	return c.client.MakeDir(ctx, path)
}

func (c *wireConn) Close() error {
	return c.client.Quit()
}

// writeLocal creates localPath and runs fill on it. The file is removed if
// fill or the final close fails, so no partial download is left behind.
func writeLocal(localPath string, fill func(*os.File) error) (err error) {
	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			if rerr := os.Remove(localPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				err = errors.Join(err, rerr)
			}
		}
	}()
	return fill(f)
}
