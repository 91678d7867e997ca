package ftpsession

import (
	"errors"
	"fmt"

	"github.com/gonzalop/ftpsession/internal/wire"
)

// Sentinels for errors.Is. Every *Error matches exactly one of the first
// three, according to its Kind.
var (
	ErrConnectionFailed = errors.New("ftpsession: connection failed")
	ErrLoginFailed      = errors.New("ftpsession: login failed")
	ErrCommandFailed    = errors.New("ftpsession: command failed")

	// ErrNotConnected is returned by Login on a disconnected session.
	ErrNotConnected = errors.New("ftpsession: not connected")
)

// ProtocolError carries the FTP reply code of a failure reported by the
// native transport. Use errors.As to get at it:
//
//	var pe *ftpsession.ProtocolError
//	if errors.As(err, &pe) && pe.Code == 550 {
//	    // no such file
//	}
type ProtocolError = wire.ProtocolError

// ErrorKind classifies session failures.
type ErrorKind int

const (
	// KindConnection: the server could not be reached or refused the connection.
	KindConnection ErrorKind = iota
	// KindLogin: the server rejected the credentials.
	KindLogin
	// KindCommand: a remote command ran and failed.
	KindCommand
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindLogin:
		return "login"
	case KindCommand:
		return "command"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by every session operation that fails.
//
// For connection and login failures Error() is the localized message, e.g.
// `Connection error: "ftp.example.com"`; the transport's own error is
// available through errors.Unwrap.
type Error struct {
	Kind ErrorKind

	// Op is the session operation, e.g. "upload" or "cd".
	Op string

	// Subject is the server (connection), user (login) or remote path (command).
	Subject string

	// Message is the localized text for connection and login failures.
	Message string

	// Err is the underlying transport error.
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err == nil {
		return fmt.Sprintf("ftpsession: %s %s failed", e.Op, e.Subject)
	}
	return fmt.Sprintf("ftpsession: %s %s: %v", e.Op, e.Subject, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnectionFailed:
		return e.Kind == KindConnection
	case ErrLoginFailed:
		return e.Kind == KindLogin
	case ErrCommandFailed:
		return e.Kind == KindCommand
	}
	return false
}
