package repository

import (
	"context"
	"strconv"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/query"
)

// WorkflowRepository is the content query service for workflows.
// The engine only reads through it.
// Implementations: MemoryStore (tests, seeded dev runs), the SQLite and
// PostgreSQL repositories (query push-down via query.Compile).
type WorkflowRepository interface {
	// Query returns the workflows matching cond, ordered by ID.
	Query(ctx context.Context, cond query.Condition) ([]*domain.Workflow, error)
	GetByID(ctx context.Context, id int64) (*domain.Workflow, error)
}

// WorkflowWriter stores workflow definitions. Used by the seed loader;
// the engine never writes workflows.
type WorkflowWriter interface {
	SaveWorkflow(ctx context.Context, wf *domain.Workflow) error
}

// MetaScope namespaces entity ids in the metadata store.
type MetaScope string

const (
	ScopeWorkflow MetaScope = "workflow"
	ScopeUser     MetaScope = "user"
)

// MetaStore is a generic key/value store keyed by entity. Atomicity of
// read-modify-write sequences is the caller's concern.
type MetaStore interface {
	Get(ctx context.Context, scope MetaScope, id int64, key string) ([]string, error)
	// Set replaces every value stored under key. No values deletes the key.
	Set(ctx context.Context, scope MetaScope, id int64, key string, values ...string) error
}

// ContentRepository reads host content items and editorial comments.
type ContentRepository interface {
	GetContent(ctx context.Context, id int64) (*domain.Content, error)
	GetComment(ctx context.Context, id int64) (*domain.Comment, error)
}

// UserRepository reads host users and group membership.
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	// GroupMembers returns the ids of the users in group, ordered by id.
	GroupMembers(ctx context.Context, group string) ([]int64, error)
}

// ChannelPreferenceKey is the user meta key holding a user's channel for
// one workflow.
func ChannelPreferenceKey(workflowID int64) string {
	return "channel_pref." + strconv.FormatInt(workflowID, 10)
}
