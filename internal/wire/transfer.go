package wire

import (
	"context"
	"fmt"
	"io"
)

// Store uploads r to remotePath with STOR and returns the number of bytes
// read from r. In ASCII mode bare LF line endings are sent as CRLF.
func (c *Client) Store(ctx context.Context, remotePath string, r io.Reader, t TransferType) (int64, error) {
	var n int64
	err := c.withContext(ctx, func() error {
		if err := c.setType(t); err != nil {
			return fmt.Errorf("failed to set transfer type: %w", err)
		}

		conn, err := c.dataCommand(ctx, "STOR", remotePath)
		if err != nil {
			return err
		}

		var dst io.Writer = conn
		if t == TypeASCII {
			dst = &crlfWriter{w: conn}
		}

		var copyErr error
		n, copyErr = io.Copy(dst, r)

		// Always finish the data connection so the control channel stays in sync
		finishErr := c.finishData(conn)
		if copyErr != nil {
			return fmt.Errorf("upload failed: %w", copyErr)
		}
		return finishErr
	})
	return n, err
}

// Retrieve downloads remotePath with RETR into w and returns the number of
// bytes received. In ASCII mode CRLF line endings are written as LF.
func (c *Client) Retrieve(ctx context.Context, remotePath string, w io.Writer, t TransferType) (int64, error) {
	var n int64
	err := c.withContext(ctx, func() error {
		if err := c.setType(t); err != nil {
			return fmt.Errorf("failed to set transfer type: %w", err)
		}

		conn, err := c.dataCommand(ctx, "RETR", remotePath)
		if err != nil {
			return err
		}

		var copyErr error
		if t == TypeASCII {
			lw := &lfWriter{w: w}
			n, copyErr = io.Copy(lw, conn)
			if copyErr == nil {
				copyErr = lw.Flush()
			}
		} else {
			n, copyErr = io.Copy(w, conn)
		}

		finishErr := c.finishData(conn)
		if copyErr != nil {
			return fmt.Errorf("download failed: %w", copyErr)
		}
		return finishErr
	})
	return n, err
}
