package ftpsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the connection state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is one logical client session against one FTP server.
//
// Commands connect and log in lazily. With auto-disconnect on (the default)
// every command closes the connection when it finishes, so a one-shot
// upload never leaves a connection open. Turn it off to run several
// commands over one login, and call Close when done.
//
// A Session serializes its operations. Use one Session per concurrent
// transfer.
type Session struct {
	id     string
	server string
	user   string
	pass   string
	lang   string

	localizer Localizer
	transport Transport
	logger    *slog.Logger
	metrics   MetricsCollector

	// mu guards everything below and is held for the whole of each operation
	mu    sync.Mutex
	state State

	// conn is non-nil iff state != StateDisconnected
	conn Conn

	mode           TransferMode
	passive        bool
	autoDisconnect bool
}

// New creates a disconnected session. Server is "host" or "host:port";
// port 21 is used when none is given.
func New(server, user, pass string, options ...Option) (*Session, error) {
	if server == "" {
		return nil, errors.New("ftpsession: empty server")
	}

	s := &Session{
		id:             uuid.NewString(),
		server:         server,
		user:           user,
		pass:           pass,
		lang:           "en",
		localizer:      &CatalogLocalizer{},
		logger:         slog.New(slog.DiscardHandler),
		mode:           ModeASCII,
		passive:        true,
		autoDisconnect: true,
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if s.transport == nil {
		s.transport = NewWireTransport(WithTransportLogger(s.logger))
	}
	s.logger = s.logger.With("session", s.id, "server", s.server)

	return s, nil
}

// ID returns a random identifier that tags the session's log lines.
func (s *Session) ID() string { return s.id }

// Server returns the server the session connects to.
func (s *Session) Server() string { return s.server }

// User returns the login name.
func (s *Session) User() string { return s.user }

// Language returns the language of error messages.
func (s *Session) Language() string { return s.lang }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TransferMode returns the mode used by Upload and Download.
func (s *Session) TransferMode() TransferMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Passive reports whether passive data connections are configured.
func (s *Session) Passive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passive
}

// AutoDisconnect reports whether commands disconnect when they finish.
func (s *Session) AutoDisconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoDisconnect
}

// Connect dials the server and applies the passive setting. It does
// nothing if the session is already connected. On failure the session
// stays disconnected and the transport's error is returned.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connect(ctx)
}

func (s *Session) connect(ctx context.Context) error {
	if s.state != StateDisconnected {
		return nil
	}

	conn, err := s.transport.Dial(ctx, s.server)
	if err == nil {
		if perr := conn.SetPassive(s.passive); perr != nil {
			_ = conn.Close()
			err = fmt.Errorf("failed to set passive mode: %w", perr)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordConnection(err == nil, s.server)
	}
	if err != nil {
		s.logger.Debug("connection failed", "error", err)
		return err
	}

	s.conn = conn
	s.state = StateConnected
	s.logger.Info("connected", "passive", s.passive)
	return nil
}

// Login authenticates with the session's credentials. The session must be
// connected; ErrNotConnected is returned otherwise. A rejected login
// leaves the session connected; a login cut short by ctx disconnects it.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return ErrNotConnected
	}
	return s.login(ctx)
}

func (s *Session) login(ctx context.Context) error {
	if s.state == StateAuthenticated {
		return nil
	}

	err := s.conn.Login(ctx, s.user, s.pass)
	if s.metrics != nil {
		s.metrics.RecordAuthentication(err == nil, s.user)
	}
	if err != nil {
		s.logger.Debug("login failed", "user", s.user, "error", err)
		if interrupted(err) {
			s.disconnect()
		}
		return err
	}
	s.state = StateAuthenticated
	s.logger.Info("logged in", "user", s.user)

	// Put and Get set the type again as needed
	if err := s.conn.SetTransferMode(ctx, s.mode); err != nil {
		s.logger.Debug("initial transfer mode not applied", "mode", s.mode, "error", err)
		if interrupted(err) {
			s.disconnect()
			return err
		}
	}
	return nil
}

// interrupted reports whether err came from a done context. The transport
// may have abandoned the exchange half way, so the connection is dropped
// and the next command dials again.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Disconnect closes the connection, if any. Errors from the transport are
// logged and dropped. Calling it on a disconnected session is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnect()
}

func (s *Session) disconnect() {
	if s.conn == nil {
		s.state = StateDisconnected
		return
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("error closing connection", "error", err)
	}
	s.conn = nil
	s.state = StateDisconnected
	s.logger.Info("disconnected")
}

// Close disconnects the session. It always returns nil and may be called
// any number of times.
func (s *Session) Close() error {
	s.Disconnect()
	return nil
}

// SetPassive changes the passive setting. When connected it is applied
// right away and the transport's error, if any, is returned; otherwise it
// takes effect on the next connect.
func (s *Session) SetPassive(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passive = enabled
	if s.conn == nil {
		return nil
	}
	return s.conn.SetPassive(enabled)
}

// SetAutoDisconnect turns auto-disconnect on or off. The current connection
// is left alone.
func (s *Session) SetAutoDisconnect(enabled bool) {
	s.mu.Lock()
	s.autoDisconnect = enabled
	s.mu.Unlock()
}

// SetMode selects the transfer mode by name: "ascii" or "bin". Any other
// name is ignored and the mode stays as it was.
func (s *Session) SetMode(name string) {
	mode, ok := ParseTransferMode(name)
	if !ok {
		s.logger.Debug("ignoring unknown transfer mode", "mode", name)
		return
	}
	s.SetTransferMode(mode)
}

// SetTransferMode sets the mode used by subsequent uploads and downloads.
func (s *Session) SetTransferMode(mode TransferMode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// ensureReady connects and logs in as needed, at most once each. Failures
// come back as *Error with the localized message.
func (s *Session) ensureReady(ctx context.Context, op string) error {
	if s.state == StateDisconnected {
		if err := s.connect(ctx); err != nil {
			return &Error{
				Kind:    KindConnection,
				Op:      op,
				Subject: s.server,
				Message: localize(s.localizer, s.lang, KindConnection, s.server),
				Err:     err,
			}
		}
	}
	if s.state != StateAuthenticated {
		if err := s.login(ctx); err != nil {
			return &Error{
				Kind:    KindLogin,
				Op:      op,
				Subject: s.user,
				Message: localize(s.localizer, s.lang, KindLogin, s.user),
				Err:     err,
			}
		}
	}
	return nil
}

// run is the template shared by every remote command: make the session
// ready, run fn on the connection, then disconnect if auto-disconnect is on,
// whatever fn returned. A command cut short by its context disconnects even
// with auto-disconnect off. A failed guard returns before fn and leaves the
// state as the guard left it.
func (s *Session) run(ctx context.Context, op Op, subject string, fn func(Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	logger := s.logger.With("op", string(op), "path", subject)

	err := s.ensureReady(ctx, string(op))
	if err == nil {
		if cerr := fn(s.conn); cerr != nil {
			err = &Error{Kind: KindCommand, Op: string(op), Subject: subject, Err: cerr}
		}
		if s.autoDisconnect || interrupted(err) {
			s.disconnect()
		}
	}

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordCommand(string(op), err == nil, elapsed)
	}
	if err != nil {
		logger.Debug("command failed", "error", err, "duration", elapsed)
		return err
	}
	logger.Debug("command done", "duration", elapsed)
	return nil
}

// recordTransfer reports the size of a finished transfer's local file.
func (s *Session) recordTransfer(op Op, localPath string, start time.Time) {
	if s.metrics == nil {
		return
	}
	var size int64
	if fi, err := os.Stat(localPath); err == nil {
		size = fi.Size()
	}
	s.metrics.RecordTransfer(string(op), size, time.Since(start))
}

// Upload stores the local file at remotePath using the current transfer
// mode.
func (s *Session) Upload(ctx context.Context, localPath, remotePath string) error {
	return s.run(ctx, OpUpload, remotePath, func(c Conn) error {
		start := time.Now()
		if err := c.Put(ctx, remotePath, localPath, s.mode); err != nil {
			return err
		}
		s.recordTransfer(OpUpload, localPath, start)
		return nil
	})
}

// Download fetches remotePath into the local file using the current
// transfer mode.
func (s *Session) Download(ctx context.Context, remotePath, localPath string) error {
	return s.run(ctx, OpDownload, remotePath, func(c Conn) error {
		start := time.Now()
		if err := c.Get(ctx, localPath, remotePath, s.mode); err != nil {
			return err
		}
		s.recordTransfer(OpDownload, localPath, start)
		return nil
	})
}

// Delete removes a remote file.
func (s *Session) Delete(ctx context.Context, remotePath string) error {
	return s.run(ctx, OpDelete, remotePath, func(c Conn) error {
		return c.Delete(ctx, remotePath)
	})
}

// ChangeDir changes the remote working directory. With auto-disconnect on
// the change is lost when the command's connection closes.
func (s *Session) ChangeDir(ctx context.Context, path string) error {
	return s.run(ctx, OpChangeDir, path, func(c Conn) error {
		return c.ChangeDir(ctx, path)
	})
}

// MakeDir creates a remote directory.
func (s *Session) MakeDir(ctx context.Context, path string) error {
	return s.run(ctx, OpMakeDir, path, func(c Conn) error {
		return c.MakeDir(ctx, path)
	})
}

// Do creates a session, passes it to fn and closes it on every return
// path, including panics.
//
//	err := ftpsession.Do(ctx, "ftp.example.com", "user", "pass",
//	    func(ctx context.Context, s *ftpsession.Session) error {
//	        return s.Upload(ctx, "report.csv", "/incoming/report.csv")
//	    })
func Do(ctx context.Context, server, user, pass string, fn func(context.Context, *Session) error, options ...Option) error {
	s, err := New(server, user, pass, options...)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
