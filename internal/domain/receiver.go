package domain

import (
	"strconv"
	"strings"
)

// Receiver is either a reference to a host user or an explicit address.
// The unexported method closes the set of implementations.
type Receiver interface {
	// Key identifies the receiver for deduplication and signatures.
	Key() string
	isReceiver()
}

// UserRef points at a host user by ID. An ID <= 0 means the originating
// step could not find an identifier; such receivers are dropped.
type UserRef struct {
	ID int64
}

func (u UserRef) Key() string { return "user:" + strconv.FormatInt(u.ID, 10) }
func (UserRef) isReceiver()   {}

// Address is a raw address on a given channel. Channel may be empty, in
// which case the default channel applies. Email addresses may use the
// "Name/email@example.com" form.
type Address struct {
	Channel string
	Address string
}

func (a Address) Key() string { return "address:" + a.Address }
func (Address) isReceiver()   {}

// SplitAddress splits the "Name/email@example.com" form into its parts.
// Values without a slash are returned as the address with no name.
func SplitAddress(s string) (name, address string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return "", s
}

// ValidEmail reports whether the address part of s, after SplitAddress,
// looks like local@domain.
func ValidEmail(s string) bool {
	_, addr := SplitAddress(s)
	at := strings.LastIndex(addr, "@")
	return at > 0 && at < len(addr)-1 && !strings.ContainsAny(addr, " \t<>")
}

// Receiver groups. Steps may use others.
const (
	GroupAuthor         = "author"
	GroupSiteAdmin      = "site_admin"
	GroupUser           = "user"
	GroupGroup          = "group"
	GroupEmail          = "email"
	GroupParentAuthor   = "parent_author"
	GroupRevisionAuthor = "revision_author"
)

// ReceiverRecord is one receiver contribution from a receiver step.
type ReceiverRecord struct {
	Receiver Receiver
	Group    string
	Subgroup string
	// Channel is an explicit channel override; empty means "use preference".
	Channel string
}

// ChannelMute is the channel preference that silences a user for a workflow.
const ChannelMute = "mute"

// ChannelEmail is the built-in channel name and the usual default.
const ChannelEmail = "email"

// ChannelBucket maps channel names to the receivers to deliver on it.
type ChannelBucket map[string][]ReceiverRecord
