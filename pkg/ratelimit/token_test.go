package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitWithinBudget(t *testing.T) {
	limiter := NewTokenLimiter(3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx, 1))
	}
}

func TestWaitBlocksWhenExhausted(t *testing.T) {
	limiter := NewTokenLimiter(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, limiter.Wait(ctx, 1))

	blockedCtx, blockedCancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer blockedCancel()
	err := limiter.Wait(blockedCtx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitOversizedRequestFailsFast(t *testing.T) {
	limiter := NewTokenLimiter(2)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	// A request larger than the full budget can never succeed.
	err := limiter.Wait(ctx, 5)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
