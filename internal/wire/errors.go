package wire

import "fmt"

// ProtocolError is a negative or unexpected server reply, kept together with
// the command that provoked it.
type ProtocolError struct {
	// Command is the FTP verb that was sent (e.g., "STOR", "CWD").
	Command string

	// Response is the reply text without the code.
	Response string

	// Code is the three-digit reply code (e.g., 550).
	Code int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// IsTemporary reports a 4xx reply; the same command may succeed later.
func (e *ProtocolError) IsTemporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent reports a 5xx reply.
func (e *ProtocolError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}

func newProtocolError(command string, resp *Response) *ProtocolError {
	return &ProtocolError{
		Command:  command,
		Response: resp.Message,
		Code:     resp.Code,
	}
}
