package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// WorkflowType is the record type every workflow is stored under.
const WorkflowType = "notification_workflow"

// StatusPublish is the only workflow status eligible to fire.
const StatusPublish = "publish"

// Workflow field names understood by query conditions.
const (
	FieldStatus = "status"
	FieldType   = "type"
)

// Metadata keys holding step configuration.
const (
	MetaStatusFrom      = "filter.post_status.from"
	MetaStatusTo        = "filter.post_status.to"
	MetaPostTypeEnabled = "filter.post_type.enabled"
	MetaPostTypes       = "filter.post_type.list"
	MetaCategoryEnabled = "filter.category.enabled"
	MetaCategories      = "filter.category.list"
	MetaTaxonomyEnabled = "filter.taxonomy.enabled"
	MetaTaxonomies      = "filter.taxonomy.list"

	MetaReceiverAuthor         = "receiver.author"
	MetaReceiverSiteAdmin      = "receiver.site_admin"
	MetaReceiverUsers          = "receiver.users"
	MetaReceiverGroups         = "receiver.groups"
	MetaReceiverEmails         = "receiver.emails"
	MetaReceiverParentAuthor   = "receiver.parent_author"
	MetaReceiverRevisionAuthor = "receiver.revision_author"
	MetaSkipUser               = "receiver.skip_user"

	MetaContentSubject = "content.subject"
	MetaContentBody    = "content.body"
)

// EventMetaKey is the key an event step stores its "selected" flag under.
func EventMetaKey(kind EventKind) string {
	return "event." + string(kind)
}

// Workflow is a persisted notification rule. Meta holds the raw
// multi-valued configuration, Config its decoded form.
type Workflow struct {
	ID         int64               `json:"id"`
	Title      string              `json:"title"`
	Status     string              `json:"status"`
	Type       string              `json:"type"`
	Meta       map[string][]string `json:"meta"`
	Config     WorkflowConfig      `json:"-"`
	ModifiedAt time.Time           `json:"modified_at"`

	// ConfigErr holds the problems found by the last Decode, for logging.
	ConfigErr error `json:"-"`
}

// Decode refreshes Config from Meta.
func (w *Workflow) Decode() {
	w.Config, w.ConfigErr = DecodeConfig(w.Meta)
}

// FieldValue implements query.Record.
func (w *Workflow) FieldValue(name string) string {
	switch name {
	case FieldStatus:
		return w.Status
	case FieldType:
		return w.Type
	}
	return ""
}

// MetaValues implements query.Record.
func (w *Workflow) MetaValues(key string) []string {
	return w.Meta[key]
}

// Fingerprint digests the title, status and configuration of the workflow.
// Two loads of an unchanged workflow produce the same fingerprint.
func (w *Workflow) Fingerprint() string {
	h := sha1.New()
	h.Write([]byte(w.Title + "\x00" + w.Status + "\x00"))
	keys := make([]string, 0, len(w.Meta))
	for k := range w.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k + "=" + strings.Join(w.Meta[k], "\x1f") + "\x00"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ListFilter is an "enabled + allow-list" filter setting.
type ListFilter struct {
	Enabled bool
	Values  []string
}

// ReceiverConfig holds the receiver selections of a workflow.
type ReceiverConfig struct {
	Author         bool
	SiteAdmin      bool
	ParentAuthor   bool
	RevisionAuthor bool
	SkipUser       bool
	Users          []int64
	Groups         []string
	Emails         []string
}

// ContentTemplate is the unexpanded subject and body of a workflow.
type ContentTemplate struct {
	Subject string
	Body    string
}

// WorkflowConfig is the typed view of a workflow's metadata.
type WorkflowConfig struct {
	Events     map[EventKind]bool
	StatusFrom []string
	StatusTo   []string
	PostTypes  ListFilter
	Categories ListFilter
	Taxonomies ListFilter
	Receivers  ReceiverConfig
	Content    ContentTemplate
}

// DecodeConfig builds the typed configuration from raw metadata.
// Incomplete configuration is not an error; malformed values are skipped
// and reported through the returned error so callers can log them.
func DecodeConfig(meta map[string][]string) (WorkflowConfig, error) {
	cfg := WorkflowConfig{Events: make(map[EventKind]bool)}
	var problems error

	for key, values := range meta {
		if kind, ok := strings.CutPrefix(key, "event."); ok && truthy(values) {
			cfg.Events[EventKind(kind)] = true
		}
	}

	cfg.StatusFrom = nonEmpty(meta[MetaStatusFrom])
	cfg.StatusTo = nonEmpty(meta[MetaStatusTo])
	cfg.PostTypes = ListFilter{Enabled: truthy(meta[MetaPostTypeEnabled]), Values: nonEmpty(meta[MetaPostTypes])}
	cfg.Categories = ListFilter{Enabled: truthy(meta[MetaCategoryEnabled]), Values: nonEmpty(meta[MetaCategories])}
	cfg.Taxonomies = ListFilter{Enabled: truthy(meta[MetaTaxonomyEnabled]), Values: nonEmpty(meta[MetaTaxonomies])}

	r := &cfg.Receivers
	r.Author = truthy(meta[MetaReceiverAuthor])
	r.SiteAdmin = truthy(meta[MetaReceiverSiteAdmin])
	r.ParentAuthor = truthy(meta[MetaReceiverParentAuthor])
	r.RevisionAuthor = truthy(meta[MetaReceiverRevisionAuthor])
	r.SkipUser = truthy(meta[MetaSkipUser])
	r.Groups = nonEmpty(meta[MetaReceiverGroups])
	r.Emails = nonEmpty(meta[MetaReceiverEmails])
	for _, v := range nonEmpty(meta[MetaReceiverUsers]) {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			problems = errors.CombineErrors(problems, errors.Newf("invalid receiver user id %q", v))
			continue
		}
		r.Users = append(r.Users, id)
	}

	cfg.Content = ContentTemplate{
		Subject: first(meta[MetaContentSubject]),
		Body:    first(meta[MetaContentBody]),
	}
	return cfg, problems
}

// IsUnsetValue reports whether a stored value counts as "not configured".
func IsUnsetValue(v string) bool {
	return v == "" || v == "0"
}

func truthy(values []string) bool {
	for _, v := range values {
		if !IsUnsetValue(v) && v != "false" {
			return true
		}
	}
	return false
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); !IsUnsetValue(v) {
			out = append(out, v)
		}
	}
	return out
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
