package step

import (
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/repository"
)

// Dependencies are the collaborators the built-in steps need.
type Dependencies struct {
	Content repository.ContentRepository
	Users   repository.UserRepository
	Site    domain.Site
	Logger  *zap.Logger
}

// RegisterDefaults registers the built-in event, filter, receiver, content
// and action steps. Channels are registered by the caller.
func RegisterDefaults(r *Registry, d Dependencies) error {
	steps := append(DefaultEvents(), DefaultFilters()...)
	steps = append(steps,
		AuthorReceiver{},
		NewSiteAdminReceiver(d.Site),
		UsersReceiver{},
		NewGroupsReceiver(d.Users),
		EmailsReceiver{},
		NewParentAuthorReceiver(d.Content),
		RevisionAuthorReceiver{},
		TemplateContent{},
	)
	if d.Logger != nil {
		steps = append(steps, NewLogAction(d.Logger))
	}
	for _, s := range steps {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
