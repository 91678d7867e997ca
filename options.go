package ftpsession

import (
	"fmt"
	"log/slog"
)

// Option is a functional option for configuring a Session.
type Option func(*Session) error

// WithLanguage selects the language of connection and login error
// messages, e.g. "es" or "es_ES.UTF-8". It is fixed for the life of the
// session. Unknown languages fall back to English.
func WithLanguage(lang string) Option {
	return func(s *Session) error {
		if lang == "" {
			return fmt.Errorf("empty language tag")
		}
		s.lang = lang
		return nil
	}
}

// WithLocalizer replaces the built-in message catalog.
func WithLocalizer(l Localizer) Option {
	return func(s *Session) error {
		if l == nil {
			return fmt.Errorf("nil localizer")
		}
		s.localizer = l
		return nil
	}
}

// WithTransport sets the FTP implementation used to reach the server.
// The default is NewWireTransport().
func WithTransport(t Transport) Option {
	return func(s *Session) error {
		if t == nil {
			return fmt.Errorf("nil transport")
		}
		s.transport = t
		return nil
	}
}

// WithLogger enables session logging. Connection lifecycle events are
// logged at info level, everything else at debug.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics sets a collector for connection, login, command and transfer
// metrics.
func WithMetrics(m MetricsCollector) Option {
	return func(s *Session) error {
		s.metrics = m
		return nil
	}
}

// WithTransferMode sets the initial transfer mode. ASCII is the default.
func WithTransferMode(mode TransferMode) Option {
	return func(s *Session) error {
		if mode != ModeASCII && mode != ModeBinary {
			return fmt.Errorf("invalid transfer mode %d", mode)
		}
		s.mode = mode
		return nil
	}
}

// WithPassive sets the initial passive mode setting. Passive is the default.
func WithPassive(enabled bool) Option {
	return func(s *Session) error {
		s.passive = enabled
		return nil
	}
}

// WithAutoDisconnect sets whether each command closes the connection when
// it finishes. It is on by default.
func WithAutoDisconnect(enabled bool) Option {
	return func(s *Session) error {
		s.autoDisconnect = enabled
		return nil
	}
}
