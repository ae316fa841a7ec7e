package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/provider"
)

func TestWebhookMailer_Send(t *testing.T) {
	var got provider.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"messageId":"m-1","status":"accepted","timestamp":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	m := provider.NewWebhookMailer(srv.URL, time.Second)
	resp, err := m.Send(context.Background(), provider.Message{To: "jane@example.com", Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", resp.MessageID)
	assert.Equal(t, "jane@example.com", got.To)
}

func TestWebhookMailer_EmptyBodyIsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := provider.NewWebhookMailer(srv.URL, time.Second).Send(context.Background(), provider.Message{To: "a@example.com"})
	assert.NoError(t, err)
}

func TestWebhookMailer_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := provider.NewWebhookMailer(srv.URL, time.Second).Send(context.Background(), provider.Message{To: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestLogMailer_Send(t *testing.T) {
	resp, err := provider.NewLogMailer(zap.NewNop()).Send(context.Background(), provider.Message{To: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "logged", resp.Status)
	assert.NotEmpty(t, resp.MessageID)
}
