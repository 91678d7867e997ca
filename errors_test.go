package ftpsession

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	t.Parallel()
	sentinels := map[ErrorKind]error{
		KindConnection: ErrConnectionFailed,
		KindLogin:      ErrLoginFailed,
		KindCommand:    ErrCommandFailed,
	}
	for kind, want := range sentinels {
		err := fmt.Errorf("wrapped: %w", &Error{Kind: kind})
		for other, sentinel := range sentinels {
			assert.Equal(t, other == kind, errors.Is(err, sentinel), "%s vs %s", kind, other)
		}
		assert.False(t, errors.Is(err, ErrNotConnected))
		assert.True(t, errors.Is(err, want))
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()
	cause := errors.New("timeout")

	e := &Error{Kind: KindConnection, Subject: "h", Message: `Connection error: "h"`, Err: cause}
	assert.Equal(t, `Connection error: "h"`, e.Error())
	assert.ErrorIs(t, e, cause)

	e = &Error{Kind: KindCommand, Op: "cd", Subject: "/pub", Err: cause}
	assert.Equal(t, "ftpsession: cd /pub: timeout", e.Error())

	e = &Error{Kind: KindCommand, Op: "cd", Subject: "/pub"}
	assert.Equal(t, "ftpsession: cd /pub failed", e.Error())
}

func TestErrorKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "connection", KindConnection.String())
	assert.Equal(t, "login", KindLogin.String())
	assert.Equal(t, "command", KindCommand.String())
	assert.Equal(t, "ErrorKind(9)", ErrorKind(9).String())
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "State(5)", State(5).String())
}

func TestProtocolError_Classes(t *testing.T) {
	t.Parallel()
	assert.True(t, (&ProtocolError{Code: 421}).IsTemporary())
	assert.True(t, (&ProtocolError{Code: 550}).IsPermanent())
	assert.False(t, (&ProtocolError{Code: 550}).IsTemporary())
}
