package ftpsession

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonzalop/ftpsession/internal/ftptest"
)

// transports lists every built-in Transport for tests that must hold for
// both.
func transports() map[string]func(...TransportOption) Transport {
	return map[string]func(...TransportOption) Transport{
		"wire":     func(o ...TransportOption) Transport { return NewWireTransport(o...) },
		"jlaffaye": func(o ...TransportOption) Transport { return NewJlaffayeTransport(o...) },
	}
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestTransports_RoundTrip(t *testing.T) {
	t.Parallel()
	for name, newTransport := range transports() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := ftptest.New(t, ftptest.WithUser("alice", "secret"))
			tr := newTransport(WithDialTimeout(5 * time.Second))
			stats := NewStats()

			s, err := New(srv.Addr, "alice", "secret",
				WithTransport(tr), WithMetrics(stats), WithTransferMode(ModeBinary))
			require.NoError(t, err)
			defer s.Close()
			ctx := context.Background()

			payload := []byte("binary\r\n\x00\xffpayload\n")
			local := writeTemp(t, "up.bin", payload)

			require.NoError(t, s.MakeDir(ctx, "/pub"))
			assert.True(t, srv.HasDir("/pub"))
			require.NoError(t, s.Upload(ctx, local, "/pub/up.bin"))

			got, ok := srv.File("/pub/up.bin")
			require.True(t, ok)
			assert.Equal(t, payload, got)

			down := filepath.Join(t.TempDir(), "down.bin")
			require.NoError(t, s.Download(ctx, "/pub/up.bin", down))
			data, err := os.ReadFile(down)
			require.NoError(t, err)
			assert.Equal(t, payload, data)

			require.NoError(t, s.ChangeDir(ctx, "/pub"))
			require.NoError(t, s.Delete(ctx, "/pub/up.bin"))
			_, ok = srv.File("/pub/up.bin")
			assert.False(t, ok)

			// auto-disconnect: one connection and login per command
			assert.Equal(t, 5, srv.Connections())
			assert.Equal(t, 5, srv.Logins())
			assert.Equal(t, StateDisconnected, s.State())

			assert.Equal(t, int64(len(payload)), stats.Bytes("put"))
			assert.Equal(t, int64(len(payload)), stats.Bytes("get"))
		})
	}
}

func TestTransports_ASCIIMode(t *testing.T) {
	t.Parallel()
	for name, newTransport := range transports() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := ftptest.New(t)
			s, err := New(srv.Addr, "anonymous", "ftp", WithTransport(newTransport()))
			require.NoError(t, err)
			defer s.Close()
			ctx := context.Background()

			require.NoError(t, s.Upload(ctx, writeTemp(t, "a.txt", []byte("one\ntwo\n")), "/a.txt"))
			require.Contains(t, srv.Commands(), "TYPE")

			srv.PutFile("/b.bin", []byte{1, 2, 3})
			s.SetMode("bin")
			down := filepath.Join(t.TempDir(), "b.bin")
			require.NoError(t, s.Download(ctx, "/b.bin", down))
			data, err := os.ReadFile(down)
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3}, data)
		})
	}
}

func TestTransports_Failures(t *testing.T) {
	t.Parallel()
	for name, newTransport := range transports() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := ftptest.New(t, ftptest.WithUser("alice", "secret"))
			ctx := context.Background()

			bad, err := New(srv.Addr, "alice", "wrong", WithTransport(newTransport()))
			require.NoError(t, err)
			defer bad.Close()
			err = bad.Delete(ctx, "/x")
			require.ErrorIs(t, err, ErrLoginFailed)
			assert.Equal(t, StateConnected, bad.State())

			s, err := New(srv.Addr, "alice", "secret", WithTransport(newTransport()))
			require.NoError(t, err)
			defer s.Close()

			err = s.Delete(ctx, "/missing")
			require.ErrorIs(t, err, ErrCommandFailed)
			assert.Equal(t, StateDisconnected, s.State())

			// failed download leaves no partial file behind
			local := filepath.Join(t.TempDir(), "missing")
			require.ErrorIs(t, s.Download(ctx, "/missing", local), ErrCommandFailed)
			assert.NoFileExists(t, local)

			err = s.Upload(ctx, filepath.Join(t.TempDir(), "nope"), "/nope")
			require.ErrorIs(t, err, ErrCommandFailed)
			require.ErrorIs(t, err, os.ErrNotExist)
		})
	}
}

func TestTransports_ConnectionRefused(t *testing.T) {
	t.Parallel()
	for name, newTransport := range transports() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := ftptest.New(t, ftptest.WithRejectConnections())
			s, err := New(srv.Addr, "u", "p", WithTransport(newTransport(WithDialTimeout(2*time.Second))))
			require.NoError(t, err)

			err = s.MakeDir(context.Background(), "/d")
			require.ErrorIs(t, err, ErrConnectionFailed)
			assert.Equal(t, `Connection error: "`+srv.Addr+`"`, err.Error())
			assert.Equal(t, StateDisconnected, s.State())
		})
	}
}

func TestTransports_BandwidthLimit(t *testing.T) {
	t.Parallel()
	for name, newTransport := range transports() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := ftptest.New(t)
			tr := newTransport(WithBandwidthLimit(2048))
			s, err := New(srv.Addr, "u", "p", WithTransport(tr), WithTransferMode(ModeBinary))
			require.NoError(t, err)

			// burst covers the first 2KB; the rest needs about one second
			local := writeTemp(t, "big", make([]byte, 4096))
			start := time.Now()
			require.NoError(t, s.Upload(context.Background(), local, "/big"))
			assert.GreaterOrEqual(t, time.Since(start), 700*time.Millisecond)

			got, _ := srv.File("/big")
			assert.Len(t, got, 4096)
		})
	}
}

func TestTransports_CancelledTransferReconnects(t *testing.T) {
	t.Parallel()
	for name, newTransport := range transports() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := ftptest.New(t)
			srv.PutFile("/big.bin", make([]byte, 4000))
			tr := newTransport(WithBandwidthLimit(1000), WithDialTimeout(5*time.Second))
			s, err := New(srv.Addr, "u", "p",
				WithTransport(tr), WithTransferMode(ModeBinary), WithAutoDisconnect(false))
			require.NoError(t, err)
			defer s.Close()

			ctx, cancel := context.WithCancel(context.Background())
			timer := time.AfterFunc(300*time.Millisecond, cancel)
			defer timer.Stop()

			local := filepath.Join(t.TempDir(), "big.bin")
			err = s.Download(ctx, "/big.bin", local)
			require.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, StateDisconnected, s.State())
			assert.NoFileExists(t, local)

			// a fresh context gets a fresh connection
			for range 3 {
				require.NoError(t, s.ChangeDir(context.Background(), "/"))
			}
			assert.Equal(t, StateAuthenticated, s.State())
			assert.Equal(t, 2, srv.Connections())
		})
	}
}

func TestTransportOptions_Invalid(t *testing.T) {
	t.Parallel()
	for name, newTransport := range transports() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			for _, opt := range []TransportOption{WithDialTimeout(-1), WithBandwidthLimit(-1)} {
				_, err := newTransport(opt).Dial(context.Background(), "127.0.0.1:1")
				assert.ErrorContains(t, err, "transport option")
			}
		})
	}
}

func TestWireTransport_ActiveMode(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	s, err := New(srv.Addr, "u", "p", WithPassive(false), WithAutoDisconnect(false))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, writeTemp(t, "a", []byte("active")), "/a"))
	assert.True(t, slices.Contains(srv.Commands(), "PORT"))

	require.NoError(t, s.SetPassive(true))
	require.NoError(t, s.Upload(ctx, writeTemp(t, "b", []byte("passive")), "/b"))
	assert.True(t, slices.Contains(srv.Commands(), "EPSV"))
	assert.Equal(t, 1, srv.Connections())
}

func TestWireTransport_DisableEPSV(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	s, err := New(srv.Addr, "u", "p", WithTransport(NewWireTransport(WithDisableEPSV())))
	require.NoError(t, err)

	require.NoError(t, s.Upload(context.Background(), writeTemp(t, "a", []byte("x")), "/a"))
	cmds := srv.Commands()
	assert.Contains(t, cmds, "PASV")
	assert.NotContains(t, cmds, "EPSV")
}

func TestWireTransport_DialHonorsContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWireTransport().Dial(ctx, "localhost")
	require.ErrorIs(t, err, context.Canceled)
}

func TestJlaffayeTransport_NoActiveMode(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	s, err := New(srv.Addr, "u", "p", WithTransport(NewJlaffayeTransport()), WithPassive(false))
	require.NoError(t, err)

	err = s.MakeDir(context.Background(), "/d")
	require.ErrorIs(t, err, ErrConnectionFailed)
	require.ErrorIs(t, err, ErrActiveModeUnsupported)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestJlaffayeTransport_CancelledCommand(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	s, err := New(srv.Addr, "u", "p", WithTransport(NewJlaffayeTransport()), WithAutoDisconnect(false))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Login(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.MakeDir(ctx, "/d")
	require.ErrorIs(t, err, ErrCommandFailed)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestDebugWriter_MasksPassword(t *testing.T) {
	t.Parallel()
	var buf syncBuffer
	w := &debugWriter{logger: newBufferLogger(&buf)}

	trace := []byte("USER alice\r\nPASS secret\r\n\r\n")
	n, err := w.Write(trace)
	require.NoError(t, err)
	assert.Equal(t, len(trace), n)

	out := buf.String()
	assert.Contains(t, out, "USER alice")
	assert.Contains(t, out, "PASS ****")
	assert.NotContains(t, out, "secret")
}
