package wire

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"
)

var (
	// pasvRegex matches: 227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)
	pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

	// epsvRegex matches: 229 Entering Extended Passive Mode (|||port|)
	epsvRegex = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)
)

// parsePASV turns a PASV reply into "host:port".
// "227 Entering Passive Mode (192,168,1,1,195,149)" -> "192.168.1.1:50069"
func parsePASV(response string) (string, error) {
	m := pasvRegex.FindStringSubmatch(response)
	if len(m) != 7 {
		return "", fmt.Errorf("invalid PASV response: %s", response)
	}

	var n [6]int
	for i := range n {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v < 0 || v > 255 {
			return "", fmt.Errorf("invalid PASV field: %s", m[i+1])
		}
		n[i] = v
	}

	host := fmt.Sprintf("%d.%d.%d.%d", n[0], n[1], n[2], n[3])
	port := n[4]*256 + n[5]
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// parseEPSV extracts the port from an EPSV reply.
// "229 Entering Extended Passive Mode (|||6446|)" -> "6446"
func parseEPSV(response string) (string, error) {
	m := epsvRegex.FindStringSubmatch(response)
	if len(m) != 2 {
		return "", fmt.Errorf("invalid EPSV response: %s", response)
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid EPSV port: %s", m[1])
	}
	return m[1], nil
}

// resolveDataAddr substitutes the control host when a server advertises an
// unroutable 0.0.0.0 in its PASV reply.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}
	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}
	return pasvAddr
}

// formatPORT renders "192.168.1.100:50000" as "192,168,1,100,195,80".
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return "", fmt.Errorf("PORT requires IPv4 address: %s", host)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid port: %s", portStr)
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port/256, port%256), nil
}

// formatEPRT renders an address as |af|addr|port| (RFC 2428).
func formatEPRT(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %s", host)
	}
	af := 2
	if ip.To4() != nil {
		af = 1
	}
	return fmt.Sprintf("|%d|%s|%s|", af, host, port), nil
}

// openDataConn prepares a data connection in the current mode. For active
// mode the returned conn accepts the server's connection lazily.
func (c *Client) openDataConn(ctx context.Context) (net.Conn, error) {
	if c.Passive() {
		return c.openPassiveDataConn(ctx)
	}
	return c.openActiveDataConn()
}

func (c *Client) openPassiveDataConn(ctx context.Context) (net.Conn, error) {
	var addr string

	if !c.disableEPSV {
		resp, err := c.sendCommand("EPSV")
		if err != nil {
			return nil, fmt.Errorf("EPSV failed: %w", err)
		}
		switch {
		case resp.Is2xx():
			if port, err := parseEPSV(resp.String()); err == nil {
				addr = net.JoinHostPort(c.host, port)
			}
		case resp.Code == 500 || resp.Code == 502:
			// not implemented; don't ask again on this connection
			c.disableEPSV = true
		}
	}

	if addr == "" {
		resp, err := c.expect2xx("PASV")
		if err != nil {
			return nil, err
		}
		pasv, err := parsePASV(resp.String())
		if err != nil {
			return nil, err
		}
		addr = resolveDataAddr(pasv, c.host)
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data port: %w", err)
	}
	return &deadlineConn{Conn: conn, timeout: c.timeout}, nil
}

func (c *Client) openActiveDataConn() (net.Conn, error) {
	host, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		host = "127.0.0.1"
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	addr := ln.Addr().String()

	// PORT for IPv4 since legacy servers know it; IPv6 needs EPRT
	cmd, arg := "PORT", ""
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		cmd = "EPRT"
		arg, err = formatEPRT(addr)
	} else {
		arg, err = formatPORT(addr)
	}
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to format %s command: %w", cmd, err)
	}

	if _, err := c.expect2xx(cmd, arg); err != nil {
		ln.Close()
		return nil, err
	}

	return &activeDataConn{listener: ln, timeout: c.timeout}, nil
}

// activeDataConn defers Accept until the first Read or Write, since the
// server only connects after the transfer command has been sent.
type activeDataConn struct {
	net.Conn
	listener net.Listener
	timeout  time.Duration
}

func (a *activeDataConn) accept() error {
	if a.Conn != nil {
		return nil
	}
	if l, ok := a.listener.(*net.TCPListener); ok && a.timeout > 0 {
		_ = l.SetDeadline(time.Now().Add(a.timeout))
	}
	conn, err := a.listener.Accept()
	if err != nil {
		return fmt.Errorf("failed to accept data connection: %w", err)
	}
	a.Conn = &deadlineConn{Conn: conn, timeout: a.timeout}
	return nil
}

func (a *activeDataConn) Read(p []byte) (int, error) {
	if err := a.accept(); err != nil {
		return 0, err
	}
	return a.Conn.Read(p)
}

func (a *activeDataConn) Write(p []byte) (int, error) {
	if err := a.accept(); err != nil {
		return 0, err
	}
	return a.Conn.Write(p)
}

func (a *activeDataConn) Close() error {
	var connErr error
	if a.Conn != nil {
		connErr = a.Conn.Close()
	}
	lnErr := a.listener.Close()
	if connErr != nil {
		return connErr
	}
	return lnErr
}

func (a *activeDataConn) SetDeadline(t time.Time) error {
	if a.Conn != nil {
		return a.Conn.SetDeadline(t)
	}
	if l, ok := a.listener.(*net.TCPListener); ok {
		return l.SetDeadline(t)
	}
	return nil
}

// dataCommand opens a data connection, sends cmd and checks the preliminary
// reply. The caller must hand the returned conn to finishData.
func (c *Client) dataCommand(ctx context.Context, cmd string, args ...string) (net.Conn, error) {
	conn, err := c.openDataConn(ctx)
	if err != nil {
		return nil, err
	}
	c.setActiveData(conn)

	resp, err := c.sendCommand(cmd, args...)
	if err == nil && !resp.Is1xx() && !resp.Is2xx() {
		err = newProtocolError(cmd, resp)
	}
	if err != nil {
		conn.Close()
		c.setActiveData(nil)
		return nil, err
	}
	return conn, nil
}

// finishData closes the data connection and reads the completion reply
// (normally 226).
func (c *Client) finishData(conn net.Conn) error {
	defer c.setActiveData(nil)

	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close data connection: %w", err)
	}

	c.mu.Lock()
	resp, err := c.readReply()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to read completion response: %w", err)
	}

	c.logger.Debug("ftp data transfer complete", "code", resp.Code, "message", resp.Message)
	if !resp.Is2xx() {
		return newProtocolError("DATA_TRANSFER", resp)
	}
	return nil
}
