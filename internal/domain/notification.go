package domain

import "time"

// Message is the rendered subject and body of a notification.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notification is one delivery handed to a channel: a rendered message for a
// single receiver on that channel.
type Notification struct {
	Workflow *Workflow
	Event    *EventContext
	Channel  string
	Record   ReceiverRecord
	// User is set when the receiver is a UserRef that resolved to a user.
	User    *User
	Message Message
}

// DeliveryResult reports the outcome for one address of a delivery.
type DeliveryResult struct {
	Address string
	Err     error
}

// OutcomeKind classifies what happened to a notification.
type OutcomeKind string

const (
	OutcomeSent      OutcomeKind = "sent"
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeScheduled OutcomeKind = "scheduled"
)

// Outcome is reported to action steps after every dispatch decision.
type Outcome struct {
	Kind       OutcomeKind
	WorkflowID int64
	Event      EventKind
	Channel    string
	Receiver   string
	Signature  string
	Latency    time.Duration
	Err        error
}

// ScheduledNotification is a deferred workflow firing.
type ScheduledNotification struct {
	ID          string    `json:"id"`
	Hook        string    `json:"hook"`
	Key         string    `json:"key"`
	WorkflowID  int64     `json:"workflow_id"`
	Args        EventArgs `json:"args"`
	RunAt       time.Time `json:"run_at"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
