// Package ftptest runs a small in-memory FTP server for tests.
//
// It speaks enough of RFC 959 for the transports in this module: USER/PASS,
// TYPE, EPSV, PASV, PORT, EPRT, STOR, RETR, DELE, CWD, MKD, PWD, NOOP and
// QUIT. Files are stored byte for byte, so TYPE A line ending translation is
// observable from the client side.
package ftptest

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const dataTimeout = 5 * time.Second

// Server is a running fake FTP server. Create one with New.
type Server struct {
	// Addr is the "host:port" the server listens on.
	Addr string

	ln net.Listener
	wg sync.WaitGroup

	mu          sync.Mutex
	users       map[string]string
	files       map[string][]byte
	dirs        map[string]bool
	conns       map[net.Conn]struct{}
	commands    []string
	connections int
	logins      int

	disableEPSV bool
	reject      bool
	closed      bool
}

// Option configures a Server.
type Option func(*Server)

// WithUser adds an account. Without any account every login succeeds.
func WithUser(user, pass string) Option {
	return func(s *Server) {
		s.users[user] = pass
	}
}

// WithoutEPSV answers EPSV with 502 so clients fall back to PASV.
func WithoutEPSV() Option {
	return func(s *Server) {
		s.disableEPSV = true
	}
}

// WithRejectConnections greets every client with 421 and hangs up.
func WithRejectConnections() Option {
	return func(s *Server) {
		s.reject = true
	}
}

// New starts a server on 127.0.0.1 and stops it when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ftptest: listen: %v", err)
	}

	s := &Server{
		Addr:  ln.Addr().String(),
		ln:    ln,
		users: make(map[string]string),
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
		conns: make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.ln.Close()
	s.wg.Wait()
}

// PutFile seeds a file. Parent directories are created as needed.
func (s *Server) PutFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = path.Clean("/" + p)
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		s.dirs[dir] = true
		if dir == "/" {
			break
		}
	}
	s.files[p] = append([]byte(nil), data...)
}

// File returns a copy of a stored file.
func (s *Server) File(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path.Clean("/"+p)]
	return append([]byte(nil), data...), ok
}

// HasDir reports whether a directory exists.
func (s *Server) HasDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[path.Clean("/"+p)]
}

// Connections is the number of accepted control connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Logins is the number of successful logins.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Commands returns the verbs received so far, across all connections.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.connections++
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				conn.Close()
			}()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	tp := textproto.NewConn(conn)
	if s.reject {
		_ = tp.PrintfLine("421 Service not available, closing control connection.")
		return
	}

	sess := &session{srv: s, tp: tp, cwd: "/"}
	defer sess.closeData()

	_ = tp.PrintfLine("220 ftptest ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)

		s.mu.Lock()
		s.commands = append(s.commands, verb)
		s.mu.Unlock()

		if verb == "QUIT" {
			_ = tp.PrintfLine("221 Goodbye.")
			return
		}
		sess.dispatch(verb, arg)
	}
}

type session struct {
	srv    *Server
	tp     *textproto.Conn
	user   string
	authed bool
	cwd    string

	pasv   net.Listener
	active string
}

func (c *session) reply(code int, format string, args ...any) {
	_ = c.tp.PrintfLine("%d %s", code, fmt.Sprintf(format, args...))
}

func (c *session) abs(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = path.Join(c.cwd, p)
	}
	return path.Clean(p)
}

func (c *session) dispatch(verb, arg string) {
	switch verb {
	case "USER":
		c.user, c.authed = arg, false
		c.reply(331, "User name okay, need password.")
		return
	case "PASS":
		c.login(arg)
		return
	case "FEAT":
		c.reply(502, "Command not implemented.")
		return
	case "NOOP":
		c.reply(200, "OK.")
		return
	}

	if !c.authed {
		c.reply(530, "Not logged in.")
		return
	}

	switch verb {
	case "TYPE":
		switch strings.ToUpper(arg) {
		case "A", "A N", "I", "L 8":
			c.reply(200, "Type set to %s.", arg)
		default:
			c.reply(504, "Type not implemented for that parameter.")
		}
	case "PWD":
		c.reply(257, "%q is the current directory.", c.cwd)
	case "CWD":
		c.cwdTo(arg)
	case "MKD":
		c.mkdir(arg)
	case "DELE":
		c.dele(arg)
	case "EPSV":
		if c.srv.disableEPSV {
			c.reply(502, "Command not implemented.")
			return
		}
		if port, ok := c.listen(); ok {
			c.reply(229, "Entering Extended Passive Mode (|||%d|)", port)
		}
	case "PASV":
		if port, ok := c.listen(); ok {
			c.reply(227, "Entering Passive Mode (127,0,0,1,%d,%d)", port/256, port%256)
		}
	case "PORT":
		c.port(arg)
	case "EPRT":
		c.eprt(arg)
	case "STOR":
		c.stor(arg)
	case "RETR":
		c.retr(arg)
	default:
		c.reply(502, "Command not implemented.")
	}
}

func (c *session) login(pass string) {
	s := c.srv
	s.mu.Lock()
	want, known := s.users[c.user]
	ok := len(s.users) == 0 || (known && want == pass)
	if ok {
		s.logins++
	}
	s.mu.Unlock()

	if !ok {
		c.reply(530, "Login incorrect.")
		return
	}
	c.authed = true
	c.reply(230, "User logged in, proceed.")
}

func (c *session) cwdTo(arg string) {
	p := c.abs(arg)
	if !c.srv.HasDir(p) {
		c.reply(550, "%s: No such directory.", arg)
		return
	}
	c.cwd = p
	c.reply(250, "Directory changed to %s.", p)
}

func (c *session) mkdir(arg string) {
	p := c.abs(arg)
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, isFile := s.files[p]; isFile || s.dirs[p] {
		c.reply(550, "%s: File exists.", arg)
		return
	}
	if !s.dirs[path.Dir(p)] {
		c.reply(550, "%s: No such file or directory.", arg)
		return
	}
	s.dirs[p] = true
	c.reply(257, "%q created.", p)
}

func (c *session) dele(arg string) {
	p := c.abs(arg)
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[p]; !ok {
		c.reply(550, "%s: No such file.", arg)
		return
	}
	delete(s.files, p)
	c.reply(250, "File deleted.")
}

func (c *session) listen() (int, bool) {
	c.closeData()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		c.reply(425, "Can't open data connection.")
		return 0, false
	}
	c.pasv = ln
	return ln.Addr().(*net.TCPAddr).Port, true
}

func (c *session) port(arg string) {
	parts := strings.Split(arg, ",")
	if len(parts) != 6 {
		c.reply(501, "Syntax error in parameters.")
		return
	}
	p1, err1 := strconv.Atoi(parts[4])
	p2, err2 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil {
		c.reply(501, "Syntax error in parameters.")
		return
	}
	c.closeData()
	host := strings.Join(parts[:4], ".")
	c.active = net.JoinHostPort(host, strconv.Itoa(p1*256+p2))
	c.reply(200, "PORT command successful.")
}

func (c *session) eprt(arg string) {
	// |af|addr|port|
	fields := strings.Split(arg, "|")
	if len(fields) != 5 {
		c.reply(501, "Syntax error in parameters.")
		return
	}
	c.closeData()
	c.active = net.JoinHostPort(fields[2], fields[3])
	c.reply(200, "EPRT command successful.")
}

// openData returns the data connection negotiated by the last
// EPSV/PASV/PORT/EPRT. The negotiation is consumed either way.
func (c *session) openData() (net.Conn, error) {
	defer c.closeData()
	switch {
	case c.pasv != nil:
		if tl, ok := c.pasv.(*net.TCPListener); ok {
			_ = tl.SetDeadline(time.Now().Add(dataTimeout))
		}
		return c.pasv.Accept()
	case c.active != "":
		return net.DialTimeout("tcp", c.active, dataTimeout)
	}
	return nil, errors.New("no data connection negotiated")
}

func (c *session) closeData() {
	if c.pasv != nil {
		c.pasv.Close()
		c.pasv = nil
	}
	c.active = ""
}

func (c *session) stor(arg string) {
	p := c.abs(arg)
	if !c.srv.HasDir(path.Dir(p)) {
		c.closeData()
		c.reply(553, "%s: No such directory.", path.Dir(p))
		return
	}

	c.reply(150, "Opening data connection for %s.", arg)
	conn, err := c.openData()
	if err != nil {
		c.reply(425, "Can't open data connection.")
		return
	}
	_ = conn.SetDeadline(time.Now().Add(dataTimeout))
	data, err := io.ReadAll(conn)
	conn.Close()
	if err != nil {
		c.reply(426, "Connection closed; transfer aborted.")
		return
	}

	s := c.srv
	s.mu.Lock()
	s.files[p] = data
	s.mu.Unlock()
	c.reply(226, "Transfer complete.")
}

func (c *session) retr(arg string) {
	data, ok := c.srv.File(c.abs(arg))
	if !ok {
		c.closeData()
		c.reply(550, "%s: No such file.", arg)
		return
	}

	c.reply(150, "Opening data connection for %s (%d bytes).", arg, len(data))
	conn, err := c.openData()
	if err != nil {
		c.reply(425, "Can't open data connection.")
		return
	}
	_ = conn.SetDeadline(time.Now().Add(dataTimeout))
	_, err = conn.Write(data)
	conn.Close()
	if err != nil {
		c.reply(426, "Connection closed; transfer aborted.")
		return
	}
	c.reply(226, "Transfer complete.")
}
