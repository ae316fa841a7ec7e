package step

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/repository"
)

// AuthorReceiver notifies the author of the content item.
type AuthorReceiver struct{}

func (AuthorReceiver) Name() string { return "receiver_author" }

func (AuthorReceiver) Receivers(_ context.Context, wf *domain.Workflow, ec *domain.EventContext) ([]domain.ReceiverRecord, error) {
	if !wf.Config.Receivers.Author || ec.Content == nil {
		return nil, nil
	}
	return []domain.ReceiverRecord{{
		Receiver: domain.UserRef{ID: ec.Content.AuthorID},
		Group:    domain.GroupAuthor,
	}}, nil
}

// SiteAdminReceiver notifies the site administration address.
type SiteAdminReceiver struct {
	site domain.Site
}

func NewSiteAdminReceiver(site domain.Site) *SiteAdminReceiver {
	return &SiteAdminReceiver{site: site}
}

func (*SiteAdminReceiver) Name() string { return "receiver_site_admin" }

func (s *SiteAdminReceiver) Receivers(_ context.Context, wf *domain.Workflow, _ *domain.EventContext) ([]domain.ReceiverRecord, error) {
	if !wf.Config.Receivers.SiteAdmin || s.site.AdminEmail == "" {
		return nil, nil
	}
	return []domain.ReceiverRecord{{
		Receiver: domain.Address{Channel: domain.ChannelEmail, Address: s.site.AdminEmail},
		Group:    domain.GroupSiteAdmin,
		Channel:  domain.ChannelEmail,
	}}, nil
}

// UsersReceiver notifies the users picked explicitly in the workflow.
type UsersReceiver struct{}

func (UsersReceiver) Name() string { return "receiver_users" }

func (UsersReceiver) Receivers(_ context.Context, wf *domain.Workflow, _ *domain.EventContext) ([]domain.ReceiverRecord, error) {
	users := wf.Config.Receivers.Users
	if len(users) == 0 {
		return nil, nil
	}
	out := make([]domain.ReceiverRecord, 0, len(users))
	for _, id := range users {
		out = append(out, domain.ReceiverRecord{Receiver: domain.UserRef{ID: id}, Group: domain.GroupUser})
	}
	return out, nil
}

// GroupsReceiver expands the selected user groups into their members.
type GroupsReceiver struct {
	users repository.UserRepository
}

func NewGroupsReceiver(users repository.UserRepository) *GroupsReceiver {
	return &GroupsReceiver{users: users}
}

func (*GroupsReceiver) Name() string { return "receiver_groups" }

// Receivers keeps expanding the remaining groups when one lookup fails and
// reports the failures together.
func (g *GroupsReceiver) Receivers(ctx context.Context, wf *domain.Workflow, _ *domain.EventContext) ([]domain.ReceiverRecord, error) {
	var out []domain.ReceiverRecord
	var errs error
	for _, group := range wf.Config.Receivers.Groups {
		members, err := g.users.GroupMembers(ctx, group)
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "expand group %q", group))
			continue
		}
		for _, id := range members {
			out = append(out, domain.ReceiverRecord{
				Receiver: domain.UserRef{ID: id},
				Group:    domain.GroupGroup,
				Subgroup: group,
			})
		}
	}
	return out, errs
}

// EmailsReceiver notifies the raw addresses listed in the workflow.
type EmailsReceiver struct{}

func (EmailsReceiver) Name() string { return "receiver_emails" }

func (EmailsReceiver) Receivers(_ context.Context, wf *domain.Workflow, _ *domain.EventContext) ([]domain.ReceiverRecord, error) {
	emails := wf.Config.Receivers.Emails
	if len(emails) == 0 {
		return nil, nil
	}
	out := make([]domain.ReceiverRecord, 0, len(emails))
	for _, addr := range emails {
		out = append(out, domain.ReceiverRecord{
			Receiver: domain.Address{Channel: domain.ChannelEmail, Address: addr},
			Group:    domain.GroupEmail,
			Channel:  domain.ChannelEmail,
		})
	}
	return out, nil
}

// ParentAuthorReceiver notifies the author of the content's parent item.
type ParentAuthorReceiver struct {
	content repository.ContentRepository
}

func NewParentAuthorReceiver(content repository.ContentRepository) *ParentAuthorReceiver {
	return &ParentAuthorReceiver{content: content}
}

func (*ParentAuthorReceiver) Name() string { return "receiver_parent_author" }

func (p *ParentAuthorReceiver) Receivers(ctx context.Context, wf *domain.Workflow, ec *domain.EventContext) ([]domain.ReceiverRecord, error) {
	if !wf.Config.Receivers.ParentAuthor || ec.Content == nil || ec.Content.ParentID <= 0 {
		return nil, nil
	}
	parent, err := p.content.GetContent(ctx, ec.Content.ParentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load parent content")
	}
	return []domain.ReceiverRecord{{
		Receiver: domain.UserRef{ID: parent.AuthorID},
		Group:    domain.GroupParentAuthor,
	}}, nil
}

// RevisionAuthorReceiver notifies whoever last edited the content item.
type RevisionAuthorReceiver struct{}

func (RevisionAuthorReceiver) Name() string { return "receiver_revision_author" }

func (RevisionAuthorReceiver) Receivers(_ context.Context, wf *domain.Workflow, ec *domain.EventContext) ([]domain.ReceiverRecord, error) {
	if !wf.Config.Receivers.RevisionAuthor || ec.Content == nil || ec.Content.LastEditorID <= 0 {
		return nil, nil
	}
	return []domain.ReceiverRecord{{
		Receiver: domain.UserRef{ID: ec.Content.LastEditorID},
		Group:    domain.GroupRevisionAuthor,
	}}, nil
}
