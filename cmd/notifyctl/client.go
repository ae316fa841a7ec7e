package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/notifyhub/editorial-notify/internal/api/handler"
	"github.com/notifyhub/editorial-notify/internal/domain"
)

// client is a thin JSON client for the server's /api/v1 routes.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return errors.Newf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *client) Fire(ctx context.Context, args domain.EventArgs) (handler.EventResponse, error) {
	var resp handler.EventResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/events", args, &resp)
	return resp, err
}

func (c *client) Scheduled(ctx context.Context) ([]domain.ScheduledNotification, error) {
	var resp struct {
		Data []domain.ScheduledNotification `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/scheduled", nil, &resp)
	return resp.Data, err
}

type preference struct {
	UserID     int64  `json:"user_id"`
	WorkflowID int64  `json:"workflow_id"`
	Channel    string `json:"channel"`
}

func preferencePath(userID, workflowID int64) string {
	return "/api/v1/users/" + strconv.FormatInt(userID, 10) + "/channels/" + strconv.FormatInt(workflowID, 10)
}

func (c *client) GetChannel(ctx context.Context, userID, workflowID int64) (preference, error) {
	var p preference
	err := c.do(ctx, http.MethodGet, preferencePath(userID, workflowID), nil, &p)
	return p, err
}

func (c *client) SetChannel(ctx context.Context, userID, workflowID int64, channel string) (preference, error) {
	var p preference
	err := c.do(ctx, http.MethodPut, preferencePath(userID, workflowID), handler.PreferenceRequest{Channel: channel}, &p)
	return p, err
}

func (c *client) ClearChannel(ctx context.Context, userID, workflowID int64) error {
	return c.do(ctx, http.MethodDelete, preferencePath(userID, workflowID), nil, nil)
}
