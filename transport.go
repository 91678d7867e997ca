package ftpsession

import (
	"context"
	"net"
)

// TransferMode is the data representation used by uploads and downloads.
type TransferMode int

const (
	// ModeASCII transfers text; line endings are translated.
	ModeASCII TransferMode = iota
	// ModeBinary transfers bytes unchanged.
	ModeBinary
)

func (m TransferMode) String() string {
	switch m {
	case ModeASCII:
		return "ascii"
	case ModeBinary:
		return "bin"
	default:
		return "unknown"
	}
}

// ParseTransferMode maps "ascii" and "bin" to their modes. Other names are
// not recognized.
func ParseTransferMode(name string) (TransferMode, bool) {
	switch name {
	case "ascii":
		return ModeASCII, true
	case "bin":
		return ModeBinary, true
	}
	return 0, false
}

// Transport opens connections to FTP servers. Session owns every Conn it
// dials and closes it on disconnect.
type Transport interface {
	Dial(ctx context.Context, server string) (Conn, error)
}

// Conn is one open control connection as seen by a Session.
//
// Put and Get take the mode for each transfer; SetTransferMode only sets
// the server's representation type right after login.
type Conn interface {
	Login(ctx context.Context, user, pass string) error
	SetTransferMode(ctx context.Context, mode TransferMode) error
	SetPassive(enabled bool) error
	Put(ctx context.Context, remotePath, localPath string, mode TransferMode) error
	Get(ctx context.Context, localPath, remotePath string, mode TransferMode) error
	Delete(ctx context.Context, remotePath string) error
	ChangeDir(ctx context.Context, path string) error
	MakeDir(ctx context.Context, path string) error
	Close() error
}

const defaultPort = "21"

// serverAddr appends the standard FTP port when server has none.
func serverAddr(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, defaultPort)
}
