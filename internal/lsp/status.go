package lsp

import "time"

// Status is a snapshot of the server's state.
type Status struct {
	SessionID       string    `json:"sessionId"`
	Mode            Mode      `json:"mode"`
	Initialized     bool      `json:"initialized"`
	ShuttingDown    bool      `json:"shuttingDown"`
	QueuedJobs      int       `json:"queuedJobs"`
	PendingRequests int       `json:"pendingRequests"`
	DelayedTasks    int       `json:"delayedTasks"`
	Received        uint64    `json:"received"`
	Sent            uint64    `json:"sent"`
	StartedAt       time.Time `json:"startedAt"`
}

// Status returns a snapshot of the server's state.
func (s *Server) Status() Status {
	return Status{
		SessionID:       s.sessionID,
		Mode:            s.mode,
		Initialized:     s.initialized.Load(),
		ShuttingDown:    s.shutdown.Load(),
		QueuedJobs:      s.scheduler.Pending(),
		PendingRequests: s.pending.Len(),
		DelayedTasks:    s.delayed.Len(),
		Received:        s.received.Load(),
		Sent:            s.sent.Load(),
		StartedAt:       s.startedAt,
	}
}
