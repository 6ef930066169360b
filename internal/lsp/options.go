package lsp

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Mode selects the scheduling discipline.
type Mode string

const (
	// ModeCooperative runs jobs on the goroutine that calls Run.
	ModeCooperative Mode = "cooperative"
	// ModeWorker runs jobs on a dedicated executor goroutine.
	ModeWorker Mode = "worker"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCooperative, ModeWorker:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeCooperative, ModeWorker)
	}
}

// Option configures a Server.
type Option func(*Server)

// WithMode selects the scheduler. The default is ModeCooperative.
func WithMode(mode Mode) Option {
	return func(s *Server) { s.mode = mode }
}

// WithLogger sets the server's logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithPendingTTL bounds how long an outgoing request waits for its response.
// Zero disables expiry.
func WithPendingTTL(ttl time.Duration) Option {
	return func(s *Server) { s.pendingTTL = ttl }
}

// WithClock overrides the time source used for request expiry and status.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}
