package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/repository"
	"github.com/notifyhub/editorial-notify/internal/seed"
)

const sample = `
[[workflows]]
id = 1
title = "Published"
status = "publish"
[workflows.meta]
"event.transition_post_status" = ["1"]
"filter.post_status.to" = ["publish"]
"receiver.author" = ["1"]
"content.subject" = ['[post] is live']

[[users]]
id = 7
login = "jdoe"
email = "jdoe@example.com"
groups = ["editors"]

[[content]]
id = 42
type = "post"
title = "Launch plan"
author_id = 7
[content.terms]
category = ["news"]

[[comments]]
id = 5
content_id = 42
author_id = 7
body = "Looks good"

[[preferences]]
user = 7
workflow = 1
channel = "mute"
`

func TestParseAndApply(t *testing.T) {
	file, err := seed.Parse(strings.NewReader(sample))
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, file.Apply(ctx, seed.Targets{Workflows: store, Meta: store, Host: store}))

	wf, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowType, wf.Type)
	assert.Equal(t, []string{"publish"}, wf.Config.StatusTo)
	assert.NoError(t, wf.ConfigErr)

	user, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"editors"}, user.Groups)

	content, err := store.GetContent(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"news"}, content.TermSlugs("category"))

	comment, err := store.GetComment(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Looks good", comment.Body)

	pref, err := store.Get(ctx, repository.ScopeUser, 7, repository.ChannelPreferenceKey(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"mute"}, pref)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := seed.Parse(strings.NewReader("[[workflow]]\nid = 1\n"))
	assert.Error(t, err)
}

func TestApply_IncompletePreference(t *testing.T) {
	file, err := seed.Parse(strings.NewReader("[[preferences]]\nuser = 7\n"))
	require.NoError(t, err)
	store := repository.NewMemoryStore()
	assert.Error(t, file.Apply(context.Background(), seed.Targets{Workflows: store, Meta: store, Host: store}))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	file, err := seed.Load(path)
	require.NoError(t, err)
	assert.Len(t, file.Workflows, 1)

	_, err = seed.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
