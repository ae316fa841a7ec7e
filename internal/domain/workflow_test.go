package domain_test

import (
	"reflect"
	"testing"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

func TestDecodeConfig(t *testing.T) {
	meta := map[string][]string{
		domain.EventMetaKey(domain.EventStatusTransition): {"1"},
		domain.EventMetaKey(domain.EventEditorialComment): {"0"},
		domain.MetaStatusFrom:         {"draft", ""},
		domain.MetaStatusTo:           {"publish"},
		domain.MetaCategoryEnabled:    {"1"},
		domain.MetaCategories:         {"news", "0"},
		domain.MetaReceiverAuthor:     {"1"},
		domain.MetaReceiverUsers:      {"7", "abc", "-2", "9"},
		domain.MetaReceiverGroups:     {"editor"},
		domain.MetaSkipUser:           {"false"},
		domain.MetaContentSubject:     {"Published: [post field=\"title\"]"},
	}

	cfg, err := domain.DecodeConfig(meta)
	if err == nil {
		t.Fatal("expected an error describing the malformed user ids")
	}

	t.Run("events", func(t *testing.T) {
		if !cfg.Events[domain.EventStatusTransition] {
			t.Fatal("expected status transition event to be selected")
		}
		if cfg.Events[domain.EventEditorialComment] {
			t.Fatal("a stored 0 must not select the event")
		}
	})

	t.Run("filters drop unset values", func(t *testing.T) {
		if !reflect.DeepEqual(cfg.StatusFrom, []string{"draft"}) {
			t.Fatalf("unexpected from list: %v", cfg.StatusFrom)
		}
		if !cfg.Categories.Enabled || !reflect.DeepEqual(cfg.Categories.Values, []string{"news"}) {
			t.Fatalf("unexpected category filter: %+v", cfg.Categories)
		}
		if cfg.PostTypes.Enabled {
			t.Fatal("post type filter was never configured")
		}
	})

	t.Run("receivers keep valid user ids only", func(t *testing.T) {
		if !reflect.DeepEqual(cfg.Receivers.Users, []int64{7, 9}) {
			t.Fatalf("unexpected users: %v", cfg.Receivers.Users)
		}
		if !cfg.Receivers.Author || cfg.Receivers.SkipUser {
			t.Fatalf("unexpected receiver flags: %+v", cfg.Receivers)
		}
	})

	t.Run("content template", func(t *testing.T) {
		if cfg.Content.Subject == "" || cfg.Content.Body != "" {
			t.Fatalf("unexpected content: %+v", cfg.Content)
		}
	})
}

func TestDecodeConfig_EmptyMetaIsValid(t *testing.T) {
	cfg, err := domain.DecodeConfig(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cfg.Events) != 0 || cfg.Receivers.Author {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestWorkflow_Fingerprint(t *testing.T) {
	wf := &domain.Workflow{
		ID: 1, Title: "Publish", Status: domain.StatusPublish,
		Meta: map[string][]string{"a": {"1"}, "b": {"x", "y"}},
	}
	same := &domain.Workflow{
		ID: 1, Title: "Publish", Status: domain.StatusPublish,
		Meta: map[string][]string{"b": {"x", "y"}, "a": {"1"}},
	}
	if wf.Fingerprint() != same.Fingerprint() {
		t.Fatal("fingerprint must not depend on map iteration order")
	}

	changed := *same
	changed.Meta = map[string][]string{"a": {"1"}, "b": {"x"}}
	if wf.Fingerprint() == changed.Fingerprint() {
		t.Fatal("expected fingerprint to change with configuration")
	}

	unpublished := *same
	unpublished.Status = "draft"
	if wf.Fingerprint() == unpublished.Fingerprint() {
		t.Fatal("expected fingerprint to change with status")
	}
}
