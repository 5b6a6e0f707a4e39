package ratelimit

import (
	"context"
	"sync"
	"time"
)

const pollInterval = 100 * time.Millisecond

// TokenLimiter enforces a fixed per-minute request budget. The bucket
// resets in full at the start of each window rather than refilling
// continuously, matching how upstream APIs meter their quotas.
type TokenLimiter struct {
	mu           sync.Mutex
	capacity     int
	remaining    int
	refillPeriod time.Duration
	windowStart  time.Time
}

func NewTokenLimiter(tokensPerMinute int) *TokenLimiter {
	return &TokenLimiter{
		capacity:     tokensPerMinute,
		remaining:    tokensPerMinute,
		refillPeriod: time.Minute,
		windowStart:  time.Now(),
	}
}

// Wait blocks until the budget covers tokens or ctx is done.
func (l *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	for {
		if l.take(tokens) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (l *TokenLimiter) take(tokens int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.windowStart) >= l.refillPeriod {
		l.remaining = l.capacity
		l.windowStart = now
	}
	if l.remaining < tokens {
		return false
	}
	l.remaining -= tokens
	return true
}
