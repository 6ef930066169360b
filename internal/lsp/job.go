package lsp

import (
	"context"
	"time"

	"go.lsp.dev/jsonrpc2"
)

// Job is a unit of work executed against the implementation. The set of
// variants is closed: StoredRequest, StoredNotification and InternalTask.
type Job interface {
	isJob()
}

// StoredRequest is a request waiting for its response.
type StoredRequest struct {
	ID         jsonrpc2.ID
	Request    Request
	ReceivedAt time.Time
}

// StoredNotification is a notification waiting to be handled.
type StoredNotification struct {
	Notification Notification
	ReceivedAt   time.Time
}

// InternalTask is work originated by the server itself, such as a fired
// delayed task or a response callback.
type InternalTask struct {
	Name string
	Run  func(ctx context.Context)
}

func (StoredRequest) isJob()      {}
func (StoredNotification) isJob() {}
func (InternalTask) isJob()       {}
