package wire

import "context"

// Delete removes a remote file with DELE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.simple(ctx, "DELE", path)
}

// ChangeDir changes the remote working directory with CWD.
func (c *Client) ChangeDir(ctx context.Context, path string) error {
	return c.simple(ctx, "CWD", path)
}

// MakeDir creates a remote directory with MKD.
func (c *Client) MakeDir(ctx context.Context, path string) error {
	return c.simple(ctx, "MKD", path)
}

func (c *Client) simple(ctx context.Context, command, arg string) error {
	return c.withContext(ctx, func() error {
		_, err := c.expect2xx(command, arg)
		return err
	})
}
