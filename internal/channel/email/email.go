// Package email is the built-in email channel.
package email

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/provider"
	"github.com/notifyhub/editorial-notify/internal/ratelimiter"
)

// Channel delivers notifications through a provider.Mailer, one message
// per resolved address. Failed addresses are kept in a registry keyed by
// FailureSignature so callers can look them up after the fact.
type Channel struct {
	mailer   provider.Mailer
	limiter  *ratelimiter.ChannelLimiters
	from     string
	failures *FailureRegistry
	logger   *zap.Logger
}

func New(mailer provider.Mailer, limiter *ratelimiter.ChannelLimiters, from string, logger *zap.Logger) *Channel {
	return &Channel{
		mailer:   mailer,
		limiter:  limiter,
		from:     from,
		failures: NewFailureRegistry(DefaultFailureCapacity),
		logger:   logger,
	}
}

func (c *Channel) Name() string { return domain.ChannelEmail }

// Failures exposes the failure registry.
func (c *Channel) Failures() *FailureRegistry { return c.failures }

// Deliver sends n to the receiver's address. Transport failures are
// reported in the results, not as the returned error; the error is only set
// when the receiver has no address at all.
func (c *Channel) Deliver(ctx context.Context, n *domain.Notification) ([]domain.DeliveryResult, error) {
	name, addr := recipient(n)
	if addr == "" {
		return nil, errors.Wrapf(domain.ErrNoAddress, "receiver %s", n.Record.Receiver.Key())
	}

	result := domain.DeliveryResult{Address: addr}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.Name()); err != nil {
			result.Err = errors.Wrap(err, "rate limiter")
		}
	}
	if result.Err == nil {
		resp, err := c.mailer.Send(ctx, provider.Message{
			From:    c.from,
			To:      addr,
			ToName:  name,
			Subject: n.Message.Subject,
			Body:    n.Message.Body,
		})
		if err != nil {
			result.Err = err
		} else if resp != nil {
			c.logger.Debug("mail accepted", zap.String("to", addr), zap.String("message_id", resp.MessageID))
		}
	}

	if result.Err != nil {
		sig := FailureSignature(n.Record.Receiver.Key(), n.Message.Subject, n.Message.Body)
		c.failures.Record(sig, result)
		c.logger.Warn("mail delivery failed",
			zap.String("to", addr),
			zap.String("failure_signature", sig),
			zap.Error(result.Err),
		)
	}
	return []domain.DeliveryResult{result}, nil
}

func recipient(n *domain.Notification) (name, addr string) {
	switch r := n.Record.Receiver.(type) {
	case domain.UserRef:
		if n.User == nil {
			return "", ""
		}
		return n.User.Name(), n.User.Email
	case domain.Address:
		return domain.SplitAddress(r.Address)
	}
	return "", ""
}

// FailureSignature identifies a failed delivery by receiver and content.
func FailureSignature(receiverKey, subject, body string) string {
	h := sha1.New()
	for _, part := range []string{receiverKey, subject, body} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DefaultFailureCapacity bounds the failure registry.
const DefaultFailureCapacity = 1024

// FailureRegistry keeps the most recent delivery failures by signature.
// The oldest entry is evicted once capacity is reached.
type FailureRegistry struct {
	mu       sync.Mutex
	capacity int
	order    []string
	entries  map[string][]domain.DeliveryResult
}

func NewFailureRegistry(capacity int) *FailureRegistry {
	if capacity <= 0 {
		capacity = DefaultFailureCapacity
	}
	return &FailureRegistry{capacity: capacity, entries: make(map[string][]domain.DeliveryResult)}
}

func (r *FailureRegistry) Record(sig string, result domain.DeliveryResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[sig]; !ok {
		if len(r.order) >= r.capacity {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.entries, oldest)
		}
		r.order = append(r.order, sig)
	}
	r.entries[sig] = append(r.entries[sig], result)
}

// Lookup returns the failures recorded under sig.
func (r *FailureRegistry) Lookup(sig string) []domain.DeliveryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DeliveryResult(nil), r.entries[sig]...)
}

func (r *FailureRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
