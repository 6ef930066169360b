package lsp

import (
	"context"

	"github.com/mcncl/lsp-boot/internal/transport"
)

// Scheduler runs jobs one at a time against the implementation.
type Scheduler interface {
	// Push queues a job. It is safe to call from any goroutine.
	Push(job Job)
	// Run consumes the inbox until exit, end of input, or ctx is done.
	Run(ctx context.Context) error
	// Pending returns the number of queued jobs not yet started.
	Pending() int
}

// engine is the part of the server a scheduler drives.
type engine interface {
	route(msg transport.ReceivedMessage) Route
	execute(ctx context.Context, job Job)
	pump(ctx context.Context)
	ready() bool
}
