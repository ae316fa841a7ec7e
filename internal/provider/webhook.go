package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// WebhookMailer delivers mail by POSTing it as JSON to a relay endpoint.
// The base URL is injected from config so tests can point to a local mock.
type WebhookMailer struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookMailer(baseURL string, timeout time.Duration) *WebhookMailer {
	return &WebhookMailer{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the message to the relay and expects 200 OK or 202 Accepted.
// A JSON body with a messageId is decoded when present.
func (p *WebhookMailer) Send(ctx context.Context, m Message) (*SendResponse, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected relay status: %d", resp.StatusCode)
	}

	var sendResp SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode response")
	}
	return &sendResp, nil
}

// compile-time check that WebhookMailer implements Mailer
var _ Mailer = (*WebhookMailer)(nil)
