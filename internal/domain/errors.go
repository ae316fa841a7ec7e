package domain

import "github.com/cockroachdb/errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidEvent      = errors.New("event kind must not be empty")
	ErrInvalidChannel    = errors.New("channel must not be empty")
	ErrInvalidWorkflowID = errors.New("workflow id must be positive")
	ErrInvalidUserID     = errors.New("user id must be positive")
	ErrDuplicateStep     = errors.New("step already registered")
	ErrUnknownChannel    = errors.New("no channel registered under that name")
	ErrNoAddress         = errors.New("receiver has no deliverable address")
	ErrBatchEmpty        = errors.New("batch must contain at least one event")
	ErrBatchTooLarge     = errors.New("batch must not exceed 100 events")
	ErrQueueFull         = errors.New("queue is at capacity, try again later")
	ErrWorkflowChanged   = errors.New("workflow changed since the notification was scheduled")
)
