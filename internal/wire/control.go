package wire

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Response is one (possibly multi-line) reply read from the control channel.
type Response struct {
	// Code is the three-digit reply code (e.g., 220, 550)
	Code int

	// Message is the reply text; multi-line replies are joined with "\n"
	Message string

	// Lines holds the raw reply lines
	Lines []string
}

// Is1xx reports a positive preliminary reply (e.g., 150 before a transfer).
func (r *Response) Is1xx() bool {
	return r.Code >= 100 && r.Code < 200
}

// Is2xx reports a positive completion reply.
func (r *Response) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// String returns the raw reply.
func (r *Response) String() string {
	return strings.Join(r.Lines, "\n")
}

// readResponse reads a complete reply.
//
// Single-line format: "220 Welcome\r\n"
// Multi-line format:
//
//	"220-Welcome to FTP\r\n"
//	"220-This is line 2\r\n"
//	"220 Ready\r\n"
//
// A multi-line reply ends at the first line carrying the same code followed by a space.
func readResponse(r *bufio.Reader) (*Response, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 {
		return nil, fmt.Errorf("invalid response line: %q", line)
	}

	code, err := strconv.Atoi(line[0:3])
	if err != nil {
		return nil, fmt.Errorf("invalid response code: %q", line[0:3])
	}

	switch line[3] {
	case ' ':
		return &Response{Code: code, Message: line[4:], Lines: []string{line}}, nil
	case '-':
	default:
		return nil, fmt.Errorf("invalid response format: %q", line)
	}

	lines := []string{line}
	prefix := line[0:3]
	for {
		next, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("unexpected EOF reading response")
			}
			return nil, err
		}
		next = strings.TrimRight(next, "\r\n")
		lines = append(lines, next)

		// RFC 2389 continuation lines start with a space and carry no code
		if len(next) > 0 && next[0] == ' ' {
			continue
		}
		if len(next) >= 4 && next[0:3] == prefix && next[3] == ' ' {
			break
		}
	}

	msg := make([]string, 0, len(lines))
	for _, l := range lines {
		if len(l) >= 4 && l[0:3] == prefix {
			msg = append(msg, l[4:])
		} else {
			msg = append(msg, strings.TrimSpace(l))
		}
	}

	return &Response{
		Code:    code,
		Message: strings.Join(msg, "\n"),
		Lines:   lines,
	}, nil
}

// sendCommand writes one command line and reads its reply.
func (c *Client) sendCommand(command string, args ...string) (*Response, error) {
	cmd := command
	if len(args) > 0 {
		cmd = command + " " + strings.Join(args, " ")
	}

	if command == "PASS" {
		c.logger.Debug("ftp command", "cmd", "PASS ****")
	} else {
		c.logger.Debug("ftp command", "cmd", cmd)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interrupted.Load() {
		return nil, fmt.Errorf("failed to send command: %w", os.ErrDeadlineExceeded)
	}

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if _, err := fmt.Fprintf(c.conn, "%s\r\n", cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	resp, err := c.readReply()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("ftp response", "code", resp.Code, "message", resp.Message)
	return resp, nil
}

// readReply reads the next reply with the operation timeout applied.
// Callers hold c.mu or own the connection exclusively.
func (c *Client) readReply() (*Response, error) {
	if c.interrupted.Load() {
		return nil, os.ErrDeadlineExceeded
	}
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}
	return readResponse(c.reader)
}

// expectCode sends a command and fails unless the reply code is exactly want.
func (c *Client) expectCode(want int, command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if resp.Code != want {
		return resp, newProtocolError(command, resp)
	}
	return resp, nil
}

// expect2xx sends a command and fails unless the reply is a positive completion.
func (c *Client) expect2xx(command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if !resp.Is2xx() {
		return resp, newProtocolError(command, resp)
	}
	return resp, nil
}
