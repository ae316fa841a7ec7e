// Package render expands shortcodes in notification subjects and bodies.
//
// A shortcode looks like [post field="title"] or [terms taxonomy="post_tag"].
// Expansion is a pure function of the message and the Scope it is given, so
// nothing set up for one receiver can leak into the next one.
package render

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// Scope is everything a shortcode may read.
type Scope struct {
	Workflow *domain.Workflow
	Event    *domain.EventContext
	Record   domain.ReceiverRecord
	// User is the resolved receiver when the record is a UserRef.
	User    *domain.User
	Channel string
	Site    domain.Site
}

var (
	shortcodeRe = regexp.MustCompile(`\[([a-z_]+)((?:\s+[a-z_]+="[^"]*")*)\s*\]`)
	attrRe      = regexp.MustCompile(`([a-z_]+)="([^"]*)"`)
)

type handler func(s Scope, attrs map[string]string) string

var handlers = map[string]handler{
	"post":     postField,
	"actor":    actorField,
	"workflow": workflowField,
	"receiver": receiverField,
	"comment":  commentField,
	"site":     siteField,
	"terms":    terms,
}

// Expand expands the shortcodes in both parts of msg.
func Expand(msg domain.Message, s Scope) domain.Message {
	return domain.Message{
		Subject: ExpandString(msg.Subject, s),
		Body:    ExpandString(msg.Body, s),
	}
}

// ExpandString expands the shortcodes in text. Unknown shortcodes are left
// as they are.
func ExpandString(text string, s Scope) string {
	if !strings.Contains(text, "[") {
		return text
	}
	return shortcodeRe.ReplaceAllStringFunc(text, func(code string) string {
		m := shortcodeRe.FindStringSubmatch(code)
		h, ok := handlers[m[1]]
		if !ok {
			return code
		}
		return h(s, parseAttrs(m[2]))
	})
}

func parseAttrs(raw string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(raw, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

func field(attrs map[string]string, def string) string {
	if f := attrs["field"]; f != "" {
		return f
	}
	return def
}

func id(v int64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func postField(s Scope, attrs map[string]string) string {
	if s.Event == nil {
		return ""
	}
	p := s.Event.Args.Params
	c := s.Event.Content
	f := field(attrs, "title")
	switch f {
	case "old_status":
		return p.OldStatus
	case "new_status":
		return p.NewStatus
	}
	if c == nil {
		if f == "id" {
			return id(p.PostID)
		}
		return ""
	}
	switch f {
	case "id":
		return id(c.ID)
	case "title":
		return c.Title
	case "type":
		return c.Type
	case "status":
		return c.Status
	case "permalink", "url":
		return c.Permalink
	case "author_id":
		return id(c.AuthorID)
	case "modified":
		if c.ModifiedAt.IsZero() {
			return ""
		}
		return c.ModifiedAt.UTC().Format(time.RFC3339)
	}
	return ""
}

func userField(u *domain.User, f string) string {
	if u == nil {
		return ""
	}
	switch f {
	case "id":
		return id(u.ID)
	case "name":
		return u.Name()
	case "login":
		return u.Login
	case "email":
		return u.Email
	}
	return ""
}

func actorField(s Scope, attrs map[string]string) string {
	if s.Event == nil {
		return ""
	}
	return userField(s.Event.Actor, field(attrs, "name"))
}

func workflowField(s Scope, attrs map[string]string) string {
	if s.Workflow == nil {
		return ""
	}
	switch field(attrs, "title") {
	case "id":
		return id(s.Workflow.ID)
	case "title":
		return s.Workflow.Title
	}
	return ""
}

func receiverField(s Scope, attrs map[string]string) string {
	f := field(attrs, "name")
	switch f {
	case "channel":
		return s.Channel
	case "group":
		return s.Record.Group
	}
	if addr, ok := s.Record.Receiver.(domain.Address); ok {
		name, email := domain.SplitAddress(addr.Address)
		switch f {
		case "name":
			if name == "" {
				return email
			}
			return name
		case "email":
			return email
		}
		return ""
	}
	return userField(s.User, f)
}

func commentField(s Scope, attrs map[string]string) string {
	if s.Event == nil || s.Event.Comment == nil {
		return ""
	}
	c := s.Event.Comment
	switch field(attrs, "body") {
	case "id":
		return id(c.ID)
	case "body":
		return c.Body
	case "author_id":
		return id(c.AuthorID)
	}
	return ""
}

func siteField(s Scope, attrs map[string]string) string {
	switch field(attrs, "name") {
	case "name":
		return s.Site.Name
	case "url":
		return s.Site.URL
	case "admin_email":
		return s.Site.AdminEmail
	}
	return ""
}

func terms(s Scope, attrs map[string]string) string {
	if s.Event == nil {
		return ""
	}
	taxonomy := attrs["taxonomy"]
	if taxonomy == "" {
		taxonomy = "category"
	}
	sep, ok := attrs["separator"]
	if !ok {
		sep = ", "
	}
	return strings.Join(s.Event.Content.TermSlugs(taxonomy), sep)
}
