package ftpsession

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jlaffaye/ftp"

	"github.com/gonzalop/ftpsession/internal/ratelimit"
)

// ErrActiveModeUnsupported is returned by the jlaffaye transport when
// passive mode is turned off.
var ErrActiveModeUnsupported = errors.New("ftpsession: active mode not supported by this transport")

// JlaffayeTransport is a Transport backed by github.com/jlaffaye/ftp. It
// only supports passive mode. The context is honored while dialing and
// between reads and writes of a transfer, but a command already sent to the
// server runs to completion.
type JlaffayeTransport struct {
	cfg transportConfig
	err error
}

// NewJlaffayeTransport returns a JlaffayeTransport. An invalid option makes
// every Dial fail with its error.
func NewJlaffayeTransport(options ...TransportOption) *JlaffayeTransport {
	cfg, err := newTransportConfig(options)
	return &JlaffayeTransport{cfg: cfg, err: err}
}

func (t *JlaffayeTransport) Dial(ctx context.Context, server string) (Conn, error) {
	if t.err != nil {
		return nil, t.err
	}

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithDisabledEPSV(t.cfg.disableEPSV),
		ftp.DialWithDebugOutput(&debugWriter{logger: t.cfg.logger}),
	}
	if t.cfg.timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(t.cfg.timeout))
	}

	c, err := ftp.Dial(serverAddr(server), opts...)
	if err != nil {
		return nil, err
	}
	return &jlaffayeConn{c: c, bandwidth: t.cfg.bandwidth}, nil
}

type jlaffayeConn struct {
	c         *ftp.ServerConn
	bandwidth int64
	closed    bool
}

func jlaffayeType(mode TransferMode) ftp.TransferType {
	if mode == ModeBinary {
		return ftp.TransferTypeBinary
	}
	return ftp.TransferTypeASCII
}

func (c *jlaffayeConn) Login(ctx context.Context, user, pass string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.c.Login(user, pass)
}

func (c *jlaffayeConn) SetTransferMode(ctx context.Context, mode TransferMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.c.Type(jlaffayeType(mode))
}

func (c *jlaffayeConn) SetPassive(enabled bool) error {
	if !enabled {
		return ErrActiveModeUnsupported
	}
	return nil
}

func (c *jlaffayeConn) Put(ctx context.Context, remotePath, localPath string, mode TransferMode) error {
	if err := c.SetTransferMode(ctx, mode); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = &ctxReader{ctx: ctx, r: f}
	r = ratelimit.NewReader(ctx, r, ratelimit.New(c.bandwidth))
	return c.c.Stor(remotePath, r)
}

func (c *jlaffayeConn) Get(ctx context.Context, localPath, remotePath string, mode TransferMode) error {
	if err := c.SetTransferMode(ctx, mode); err != nil {
		return err
	}

	resp, err := c.c.Retr(remotePath)
	if err != nil {
		return err
	}

	return writeLocal(localPath, func(f *os.File) error {
		w := ratelimit.NewWriter(ctx, f, ratelimit.New(c.bandwidth))
		_, err := io.Copy(w, &ctxReader{ctx: ctx, r: resp})
		// Close reads the completion reply; it must run even after a failed copy
		if cerr := resp.Close(); err == nil {
			err = cerr
		}
		return err
	})
}

func (c *jlaffayeConn) Delete(ctx context.Context, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.c.Delete(remotePath)
}

func (c *jlaffayeConn) ChangeDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.c.ChangeDir(path)
}

func (c *jlaffayeConn) MakeDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.c.MakeDir(path)
}

func (c *jlaffayeConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.c.Quit()
}

// ctxReader stops a transfer at the next read once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// debugWriter turns the library's protocol trace into debug log lines.
type debugWriter struct {
	logger *slog.Logger
}

func (w *debugWriter) Write(p []byte) (int, error) {
	for line := range bytes.Lines(p) {
		s := strings.TrimRight(string(line), "\r\n")
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "PASS ") {
			s = "PASS ****"
		}
		w.logger.Debug("ftp trace", "line", s)
	}
	return len(p), nil
}
