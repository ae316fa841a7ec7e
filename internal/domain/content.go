package domain

import "time"

// Content is the host's view of a content item (post, page, ...).
type Content struct {
	ID           int64               `json:"id"`
	Type         string              `json:"type"`
	Title        string              `json:"title"`
	Status       string              `json:"status"`
	AuthorID     int64               `json:"author_id"`
	ParentID     int64               `json:"parent_id,omitempty"`
	LastEditorID int64               `json:"last_editor_id,omitempty"`
	Permalink    string              `json:"permalink,omitempty"`
	Terms        map[string][]string `json:"terms,omitempty"`
	ModifiedAt   time.Time           `json:"modified_at"`
}

// TermSlugs returns the slugs assigned to the item in the given taxonomy.
func (c *Content) TermSlugs(taxonomy string) []string {
	if c == nil {
		return nil
	}
	return c.Terms[taxonomy]
}

// Comment is an editorial comment left on a content item.
type Comment struct {
	ID        int64     `json:"id"`
	ContentID int64     `json:"content_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a host account that can receive notifications.
type User struct {
	ID          int64    `json:"id"`
	Login       string   `json:"login"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Groups      []string `json:"groups,omitempty"`
}

// Name returns the display name, falling back to the login.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Login
}

// Site carries the host-wide values the renderer and site-admin receiver need.
type Site struct {
	Name       string
	URL        string
	AdminEmail string
}
