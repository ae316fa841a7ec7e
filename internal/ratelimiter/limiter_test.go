package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/editorial-notify/internal/ratelimiter"
)

func TestChannelLimiters_IndependentPerChannel(t *testing.T) {
	cl := ratelimiter.New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, cl.Wait(ctx, "email"))
	require.NoError(t, cl.Wait(ctx, "slack"), "a fresh channel has its own bucket")
	assert.Error(t, cl.Wait(ctx, "email"), "the second email token is not available within the deadline")
}

func TestChannelLimiters_ZeroRateDisablesLimiting(t *testing.T) {
	cl := ratelimiter.New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 100; i++ {
		require.NoError(t, cl.Wait(ctx, "email"))
	}
}
