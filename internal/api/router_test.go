package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/api"
	"github.com/notifyhub/editorial-notify/internal/api/handler"
	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/engine"
	"github.com/notifyhub/editorial-notify/internal/metrics"
	"github.com/notifyhub/editorial-notify/internal/queue"
	"github.com/notifyhub/editorial-notify/internal/repository"
	"github.com/notifyhub/editorial-notify/internal/scheduler"
	"github.com/notifyhub/editorial-notify/internal/service"
	"github.com/notifyhub/editorial-notify/internal/step"
)

type countingChannel struct {
	mu   sync.Mutex
	sent int
}

func (*countingChannel) Name() string { return domain.ChannelEmail }

func (c *countingChannel) Deliver(_ context.Context, n *domain.Notification) ([]domain.DeliveryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
	return []domain.DeliveryResult{{Address: n.User.Email}}, nil
}

type testServer struct {
	handler http.Handler
	email   *countingChannel
	engine  *engine.Engine
	adapter *scheduler.Adapter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	store.AddUser(&domain.User{ID: 7, Login: "author", Email: "author@example.com"})
	store.AddContent(&domain.Content{ID: 42, Type: "post", Title: "Launch plan", AuthorID: 7})
	require.NoError(t, store.SaveWorkflow(context.Background(), &domain.Workflow{
		ID: 1, Title: "Published", Status: domain.StatusPublish,
		Meta: map[string][]string{
			domain.EventMetaKey(domain.EventStatusTransition): {"1"},
			domain.MetaReceiverAuthor:                         {"1"},
			domain.MetaContentSubject:                         {`[post] is live`},
		},
	}))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	steps := step.NewRegistry()
	require.NoError(t, step.RegisterDefaults(steps, step.Dependencies{Content: store, Users: store}))
	email := &countingChannel{}
	steps.MustRegister(email, m)

	eng := engine.New(engine.Deps{Workflows: store, Meta: store, Content: store, Users: store, Steps: steps},
		engine.Options{}, zap.NewNop())
	adapter := scheduler.NewAdapter(scheduler.NewMemoryBackend(),
		scheduler.Config{Delay: time.Minute, Round: time.Minute}, zap.NewNop())

	svc := service.NewEventService(eng, adapter, store, store, m, zap.NewNop())
	return &testServer{
		handler: api.NewRouter(svc, queue.New(10), reg, nil, zap.NewNop()),
		email:   email,
		engine:  eng,
		adapter: adapter,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

var publishEvent = domain.EventArgs{
	Kind:   domain.EventStatusTransition,
	Params: domain.EventParams{PostID: 42, OldStatus: "draft", NewStatus: "publish"},
}

func TestPublishEvent(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/events", publishEvent)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handler.EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int64{1}, resp.Workflows)
	assert.Equal(t, 1, resp.Sent)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	// A new request gets a new duplicate guard.
	rec = s.do(t, http.MethodPost, "/api/v1/events", publishEvent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, s.email.sent)
}

func TestPublishBatchSharesDuplicateGuard(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/events/batch", handler.BatchRequest{
		Events: []domain.EventArgs{publishEvent, publishEvent},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Results []handler.EventResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Results[0].Sent)
	assert.Equal(t, 0, resp.Results[1].Sent)
	assert.Equal(t, 1, resp.Results[1].Duplicate)
	assert.Equal(t, 1, s.email.sent)
}

func TestPublishEvent_BadRequests(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/events", domain.EventArgs{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/events/batch", handler.BatchRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPublishEvent_UnknownKindMatchesWithoutEventRestriction(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/events", domain.EventArgs{
		Kind:   "save_widget",
		Params: domain.EventParams{PostID: 42},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handler.EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Error)
	assert.Equal(t, []int64{1}, resp.Workflows)
	assert.Equal(t, 1, resp.Sent)
}

func TestChannelPreference_MuteSilencesWorkflow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/v1/users/7/channels/1", handler.PreferenceRequest{Channel: "mute"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/users/7/channels/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"channel":"mute"`)

	s.do(t, http.MethodPost, "/api/v1/events", publishEvent)
	assert.Equal(t, 0, s.email.sent)

	rec = s.do(t, http.MethodDelete, "/api/v1/users/7/channels/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	s.do(t, http.MethodPost, "/api/v1/events", publishEvent)
	assert.Equal(t, 1, s.email.sent)
}

func TestChannelPreference_Errors(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnprocessableEntity,
		s.do(t, http.MethodPut, "/api/v1/users/abc/channels/1", handler.PreferenceRequest{Channel: "email"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		s.do(t, http.MethodPut, "/api/v1/users/7/channels/0", handler.PreferenceRequest{Channel: "email"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		s.do(t, http.MethodPut, "/api/v1/users/7/channels/1", handler.PreferenceRequest{}).Code)
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodPut, "/api/v1/users/99/channels/1", handler.PreferenceRequest{Channel: "email"}).Code)
}

func TestListScheduled(t *testing.T) {
	s := newTestServer(t)
	s.engine.SetRunner(s.adapter)

	rec := s.do(t, http.MethodPost, "/api/v1/events", publishEvent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.email.sent)

	rec = s.do(t, http.MethodGet, "/api/v1/scheduled", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data  []domain.ScheduledNotification `json:"data"`
		Total int                            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, int64(1), resp.Data[0].WorkflowID)
	assert.Equal(t, publishEvent, resp.Data[0].Args)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.do(t, http.MethodPost, "/api/v1/events", publishEvent)
	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "editorial_notifications_total")

	rec = s.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"free":10`)
}

func TestHealth_ReportsFailingCheck(t *testing.T) {
	s := newTestServer(t)
	svc := service.NewEventService(s.engine, s.adapter, repository.NewMemoryStore(), repository.NewMemoryStore(), nil, zap.NewNop())
	h := api.NewRouter(svc, queue.New(1), prometheus.NewRegistry(), map[string]handler.HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["postgres"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}
