package service_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/engine"
	"github.com/notifyhub/editorial-notify/internal/repository"
	"github.com/notifyhub/editorial-notify/internal/service"
)

// fakeEngine records the DispatchContext every event was fired with.
type fakeEngine struct {
	contexts []*engine.DispatchContext
	matched  []int64
}

func (f *fakeEngine) OnEvent(ctx context.Context, args domain.EventArgs) engine.Report {
	f.contexts = append(f.contexts, engine.DispatchContextFrom(ctx))
	return engine.Report{Event: args.Kind, Workflows: f.matched}
}

type observation struct {
	kind    domain.EventKind
	matched int
	aborted bool
}

type fakeObserver struct{ seen []observation }

func (f *fakeObserver) ObserveEvent(kind domain.EventKind, matched int, aborted bool) {
	f.seen = append(f.seen, observation{kind, matched, aborted})
}

func newService() (*service.EventService, *fakeEngine, *fakeObserver, *repository.MemoryStore) {
	eng := &fakeEngine{matched: []int64{1, 2}}
	obs := &fakeObserver{}
	store := repository.NewMemoryStore()
	store.AddUser(&domain.User{ID: 7, Login: "jdoe"})
	svc := service.NewEventService(eng, nil, store, store, obs, zap.NewNop())
	return svc, eng, obs, store
}

var published = domain.EventArgs{
	Kind:   domain.EventStatusTransition,
	Params: domain.EventParams{PostID: 42, OldStatus: "draft", NewStatus: "publish"},
}

func TestEventService_Publish(t *testing.T) {
	svc, eng, obs, _ := newService()

	report, err := svc.Publish(context.Background(), published)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Workflows) != 2 {
		t.Fatalf("expected 2 matched workflows, got %d", len(report.Workflows))
	}
	if eng.contexts[0] == nil {
		t.Fatal("expected the engine to run with a DispatchContext")
	}
	if len(obs.seen) != 1 || obs.seen[0] != (observation{domain.EventStatusTransition, 2, false}) {
		t.Fatalf("unexpected observations: %+v", obs.seen)
	}
}

func TestEventService_PublishKeepsRequestDispatchContext(t *testing.T) {
	svc, eng, _, _ := newService()
	dc := engine.NewDispatchContext()
	ctx := engine.WithDispatchContext(context.Background(), dc)

	if _, err := svc.Publish(ctx, published); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.contexts[0] != dc {
		t.Fatal("expected the request's DispatchContext to be reused")
	}
}

func TestEventService_PublishInvalidEvent(t *testing.T) {
	svc, eng, _, _ := newService()

	_, err := svc.Publish(context.Background(), domain.EventArgs{})
	if !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if len(eng.contexts) != 0 {
		t.Fatal("invalid events must not reach the engine")
	}
}

func TestEventService_PublishBatchSharesDispatchContext(t *testing.T) {
	svc, eng, _, _ := newService()

	reports, err := svc.PublishBatch(context.Background(), []domain.EventArgs{published, published, published})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	for i, dc := range eng.contexts {
		if dc == nil || dc != eng.contexts[0] {
			t.Fatalf("event %d ran with a different DispatchContext", i)
		}
	}
}

func TestEventService_PublishBatchLimits(t *testing.T) {
	svc, eng, _, _ := newService()
	ctx := context.Background()

	if _, err := svc.PublishBatch(ctx, nil); !errors.Is(err, domain.ErrBatchEmpty) {
		t.Fatalf("expected ErrBatchEmpty, got %v", err)
	}

	tooMany := make([]domain.EventArgs, service.MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = published
	}
	if _, err := svc.PublishBatch(ctx, tooMany); !errors.Is(err, domain.ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}

	_, err := svc.PublishBatch(ctx, []domain.EventArgs{published, {}})
	if !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if len(eng.contexts) != 0 {
		t.Fatal("a rejected batch must not fire any event")
	}
}

func TestEventService_ChannelPreference(t *testing.T) {
	svc, _, _, store := newService()
	ctx := context.Background()

	if err := svc.SetChannelPreference(ctx, 7, 3, " mute "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := store.Get(ctx, repository.ScopeUser, 7, repository.ChannelPreferenceKey(3))
	if err != nil || len(got) != 1 || got[0] != domain.ChannelMute {
		t.Fatalf("expected stored mute preference, got %v (err=%v)", got, err)
	}

	pref, err := svc.ChannelPreference(ctx, 7, 3)
	if err != nil || pref != domain.ChannelMute {
		t.Fatalf("expected mute, got %q (err=%v)", pref, err)
	}

	if err := svc.ClearChannelPreference(ctx, 7, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pref, _ = svc.ChannelPreference(ctx, 7, 3)
	if pref != "" {
		t.Fatalf("expected no preference after clear, got %q", pref)
	}
}

func TestEventService_ChannelPreferenceValidation(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	cases := []struct {
		name           string
		user, workflow int64
		channel        string
		want           error
	}{
		{"bad user", 0, 3, "email", domain.ErrInvalidUserID},
		{"bad workflow", 7, -1, "email", domain.ErrInvalidWorkflowID},
		{"empty channel", 7, 3, "  ", domain.ErrInvalidChannel},
		{"unknown user", 99, 3, "email", domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SetChannelPreference(ctx, tc.user, tc.workflow, tc.channel)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
