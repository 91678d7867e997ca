// Package ftpsession manages client sessions against FTP servers.
//
// # Overview
//
// A Session holds the server address, credentials and transfer settings for
// one logical connection, and takes care of the connection's lifecycle:
//   - connecting and logging in lazily, on the first command that needs it
//   - disconnecting after every command (auto-disconnect, on by default)
//   - ASCII or binary transfers, passive or active data connections
//   - localized connection and login error messages
//
// # Basic Usage
//
// A one-shot upload needs no explicit connect or cleanup beyond Close:
//
//	s, err := ftpsession.New("ftp.example.com", "username", "password")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Upload(ctx, "report.csv", "/incoming/report.csv"); err != nil {
//	    log.Fatal(err)
//	}
//
// To run several commands over one login, turn auto-disconnect off and let
// Close (or Do) release the connection:
//
//	s.SetAutoDisconnect(false)
//	s.SetMode("bin")
//	_ = s.ChangeDir(ctx, "/pub")
//	_ = s.Download(ctx, "archive.tar.gz", "archive.tar.gz")
//
// # Connection States
//
// A session is Disconnected, Connected or Authenticated. Every command runs
// the same steps: connect if disconnected, log in if not authenticated, run
// the command, then disconnect when auto-disconnect is on, whether the
// command succeeded or not. A failed connect or login is reported right away
// and not retried; a failed login leaves the session connected. A command
// or login whose context ends midway always disconnects, so the next
// command starts on a fresh connection.
//
// # Error Handling
//
// Every failure is an *Error, which matches one of ErrConnectionFailed,
// ErrLoginFailed or ErrCommandFailed with errors.Is. Connection and login
// errors print as a localized message selected with WithLanguage:
//
//	Error de conexión: "ftp.example.com"
//
// Reply codes from the server are available through ProtocolError:
//
//	var pe *ftpsession.ProtocolError
//	if errors.As(err, &pe) && pe.IsPermanent() {
//	    // 5xx
//	}
//
// # Transports
//
// The wire protocol is pluggable through Transport. NewWireTransport, the
// default, is this module's own client: EPSV with PASV fallback, active
// mode, ASCII line ending translation and context cancellation of
// in-flight transfers. NewJlaffayeTransport uses github.com/jlaffaye/ftp
// instead. Both accept a bandwidth limit.
//
// # Concurrency
//
// A Session runs one operation at a time. Parallel runs jobs on separate
// sessions with a concurrency limit.
package ftpsession
