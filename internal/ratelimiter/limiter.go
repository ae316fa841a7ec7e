package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// ChannelLimiters holds one token bucket limiter per delivery channel.
// Channels are registered at runtime, so limiters are created on first use.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type ChannelLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// New creates a ChannelLimiters with ratePerSec tokens per second per channel.
// A ratePerSec of zero or less disables limiting.
func New(ratePerSec int) *ChannelLimiters {
	limit := rate.Limit(ratePerSec)
	if ratePerSec <= 0 {
		limit = rate.Inf
	}
	return &ChannelLimiters{
		limit:    limit,
		burst:    ratePerSec,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (cl *ChannelLimiters) limiter(channel string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	l, ok := cl.limiters[channel]
	if !ok {
		l = rate.NewLimiter(cl.limit, cl.burst)
		cl.limiters[channel] = l
	}
	return l
}

// Wait blocks until the channel's limiter grants a token.
// Called by a channel immediately before handing a message to its transport.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (cl *ChannelLimiters) Wait(ctx context.Context, channel string) error {
	return cl.limiter(channel).Wait(ctx)
}
