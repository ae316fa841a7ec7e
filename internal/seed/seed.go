// Package seed loads workflows, host entities and user preferences from a
// TOML file into the stores. It backs development runs on the memory and
// SQLite drivers.
package seed

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/repository"
)

// File is the seed file layout.
//
//	[[workflows]]
//	id = 1
//	title = "Published"
//	status = "publish"
//	[workflows.meta]
//	"event.transition_post_status" = ["1"]
//	"receiver.author" = ["1"]
//
//	[[users]]
//	id = 7
//	login = "jdoe"
//	email = "jdoe@example.com"
//	groups = ["editors"]
//
//	[[preferences]]
//	user = 7
//	workflow = 1
//	channel = "mute"
type File struct {
	Workflows   []Workflow   `toml:"workflows"`
	Users       []User       `toml:"users"`
	Content     []Content    `toml:"content"`
	Comments    []Comment    `toml:"comments"`
	Preferences []Preference `toml:"preferences"`
}

type Workflow struct {
	ID     int64               `toml:"id"`
	Title  string              `toml:"title"`
	Status string              `toml:"status"`
	Meta   map[string][]string `toml:"meta"`
}

type User struct {
	ID          int64    `toml:"id"`
	Login       string   `toml:"login"`
	Email       string   `toml:"email"`
	DisplayName string   `toml:"display_name"`
	Groups      []string `toml:"groups"`
}

type Content struct {
	ID           int64               `toml:"id"`
	Type         string              `toml:"type"`
	Title        string              `toml:"title"`
	Status       string              `toml:"status"`
	AuthorID     int64               `toml:"author_id"`
	ParentID     int64               `toml:"parent_id"`
	LastEditorID int64               `toml:"last_editor_id"`
	Permalink    string              `toml:"permalink"`
	Terms        map[string][]string `toml:"terms"`
}

type Comment struct {
	ID        int64  `toml:"id"`
	ContentID int64  `toml:"content_id"`
	AuthorID  int64  `toml:"author_id"`
	Body      string `toml:"body"`
}

type Preference struct {
	User     int64  `toml:"user"`
	Workflow int64  `toml:"workflow"`
	Channel  string `toml:"channel"`
}

// HostWriter accepts host entities. *repository.MemoryStore implements it.
type HostWriter interface {
	AddUser(u *domain.User)
	AddContent(c *domain.Content)
	AddComment(c *domain.Comment)
}

// Targets are the stores a seed file is applied to.
type Targets struct {
	Workflows repository.WorkflowWriter
	Meta      repository.MetaStore
	Host      HostWriter
}

// Load reads and parses the seed file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a seed file. Unknown keys are rejected so typos surface.
func Parse(r io.Reader) (*File, error) {
	var file File
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Wrap(err, "parse seed file")
	}
	return &file, nil
}

// Apply writes the seed into t. Host entities go first so workflows that
// reference them are never seen half-seeded.
func (f *File) Apply(ctx context.Context, t Targets) error {
	if t.Host != nil {
		for _, u := range f.Users {
			t.Host.AddUser(&domain.User{
				ID: u.ID, Login: u.Login, Email: u.Email,
				DisplayName: u.DisplayName, Groups: u.Groups,
			})
		}
		for _, c := range f.Content {
			t.Host.AddContent(&domain.Content{
				ID: c.ID, Type: c.Type, Title: c.Title, Status: c.Status,
				AuthorID: c.AuthorID, ParentID: c.ParentID, LastEditorID: c.LastEditorID,
				Permalink: c.Permalink, Terms: c.Terms,
			})
		}
		for _, c := range f.Comments {
			t.Host.AddComment(&domain.Comment{ID: c.ID, ContentID: c.ContentID, AuthorID: c.AuthorID, Body: c.Body})
		}
	}

	for _, w := range f.Workflows {
		wf := &domain.Workflow{
			ID:     w.ID,
			Title:  w.Title,
			Status: w.Status,
			Type:   domain.WorkflowType,
			Meta:   w.Meta,
		}
		if wf.Meta == nil {
			wf.Meta = map[string][]string{}
		}
		if err := t.Workflows.SaveWorkflow(ctx, wf); err != nil {
			return errors.Wrapf(err, "seed workflow %d", w.ID)
		}
	}

	for _, p := range f.Preferences {
		if p.User <= 0 || p.Workflow <= 0 || p.Channel == "" {
			return errors.Newf("seed preference %+v is incomplete", p)
		}
		if err := t.Meta.Set(ctx, repository.ScopeUser, p.User, repository.ChannelPreferenceKey(p.Workflow), p.Channel); err != nil {
			return errors.Wrapf(err, "seed preference for user %d", p.User)
		}
	}
	return nil
}
