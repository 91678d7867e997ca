package ftpsession

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"time"
)

// MetricsCollector is an optional interface for collecting session metrics.
// Implementations can forward to Prometheus, StatsD and the like.
//
// Methods are called synchronously from session operations and should not
// block. The session checks for a nil collector before calling.
type MetricsCollector interface {
	// RecordConnection records a dial attempt against server.
	RecordConnection(success bool, server string)

	// RecordAuthentication records a login attempt for user.
	RecordAuthentication(success bool, user string)

	// RecordCommand records one remote command, e.g. "put" or "cd".
	// The duration includes connecting and logging in when the command
	// needed it.
	RecordCommand(op string, success bool, duration time.Duration)

	// RecordTransfer records a completed upload ("put") or download ("get").
	RecordTransfer(op string, bytes int64, duration time.Duration)
}

// Stats is an in-memory MetricsCollector safe for use by several sessions
// at once.
type Stats struct {
	mu sync.Mutex

	connections       int
	failedConnections int
	logins            int
	failedLogins      int
	commands          map[string]*opStats
}

type opStats struct {
	ok, failed int
	elapsed    time.Duration
	bytes      int64
	transfers  int
}

// NewStats returns an empty collector.
func NewStats() *Stats {
	return &Stats{commands: make(map[string]*opStats)}
}

func (s *Stats) op(name string) *opStats {
	if s.commands == nil {
		s.commands = make(map[string]*opStats)
	}
	o, ok := s.commands[name]
	if !ok {
		o = &opStats{}
		s.commands[name] = o
	}
	return o
}

func (s *Stats) RecordConnection(success bool, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.connections++
	} else {
		s.failedConnections++
	}
}

func (s *Stats) RecordAuthentication(success bool, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.logins++
	} else {
		s.failedLogins++
	}
}

func (s *Stats) RecordCommand(op string, success bool, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.op(op)
	if success {
		o.ok++
	} else {
		o.failed++
	}
	o.elapsed += d
}

func (s *Stats) RecordTransfer(op string, bytes int64, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.op(op)
	o.transfers++
	o.bytes += bytes
}

// Connections returns the number of successful and failed dials.
func (s *Stats) Connections() (ok, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections, s.failedConnections
}

// Logins returns the number of successful and failed logins.
func (s *Stats) Logins() (ok, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins, s.failedLogins
}

// Commands returns how many times op succeeded and failed.
func (s *Stats) Commands(op string) (ok, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, found := s.commands[op]; found {
		return o.ok, o.failed
	}
	return 0, 0
}

// Bytes returns the total bytes moved by op.
func (s *Stats) Bytes(op string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, found := s.commands[op]; found {
		return o.bytes
	}
	return 0
}

// WriteTo prints a summary table, one line per command.
func (s *Stats) WriteTo(w io.Writer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	n, err := fmt.Fprintf(w, "connections: %d ok, %d failed\nlogins: %d ok, %d failed\n",
		s.connections, s.failedConnections, s.logins, s.failedLogins)
	total += int64(n)
	if err != nil {
		return total, err
	}

	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		o := s.commands[name]
		n, err = fmt.Fprintf(w, "%-6s %d ok, %d failed, %d bytes, %v\n",
			name, o.ok, o.failed, o.bytes, o.elapsed.Round(time.Millisecond))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
