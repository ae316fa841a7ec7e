package provider

import "context"

// Message is one email handed to a mail transport. To is a bare address;
// the "Name/address" form has already been split by the caller.
type Message struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	ToName  string `json:"to_name,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendResponse maps the transport's acceptance response.
type SendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Mailer abstracts the mail transport.
// Mocking this interface in tests gives full control over transport
// behaviour without making real HTTP calls.
type Mailer interface {
	Send(ctx context.Context, m Message) (*SendResponse, error)
}
