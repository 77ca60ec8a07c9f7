package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// defaultQuota is GitHub's hourly allowance for an authenticated client
	defaultQuota = 5000
	// quotaFloor is the remaining budget at which calls hold until the reset
	quotaFloor = 10
)

// RateLimiter paces GitHub API calls and holds them while the hourly quota
// is exhausted
type RateLimiter interface {
	Wait(ctx context.Context) error
	UpdateLimit(remaining int, resetTime time.Time)
}

type quotaLimiter struct {
	pace   *rate.Limiter
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	remaining int
	resetTime time.Time
}

// NewRateLimiter spaces calls at least minDelay apart. A zero minDelay only
// enforces the quota.
func NewRateLimiter(minDelay time.Duration, logger *zap.Logger) RateLimiter {
	return newQuotaLimiter(minDelay, logger, time.Now)
}

func newQuotaLimiter(minDelay time.Duration, logger *zap.Logger, now func() time.Time) *quotaLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}
	return &quotaLimiter{
		pace:      rate.NewLimiter(limit, 1),
		logger:    logger,
		now:       now,
		remaining: defaultQuota,
		resetTime: now().Add(time.Hour),
	}
}

// Wait blocks until the quota allows another call and the pacing interval
// has passed
func (r *quotaLimiter) Wait(ctx context.Context) error {
	if err := r.waitForReset(ctx); err != nil {
		return err
	}
	return r.pace.Wait(ctx)
}

func (r *quotaLimiter) waitForReset(ctx context.Context) error {
	r.mu.Lock()
	remaining := r.remaining
	wait := r.resetTime.Sub(r.now())
	if remaining <= quotaFloor && wait <= 0 {
		r.refill()
	}
	r.mu.Unlock()

	if remaining > quotaFloor || wait <= 0 {
		return nil
	}

	r.logger.Info("Rate limit low, waiting for reset",
		zap.Int("remaining", remaining),
		zap.Duration("wait", wait.Round(time.Second)))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	r.mu.Lock()
	r.refill()
	r.mu.Unlock()
	return nil
}

// refill assumes r.mu is held
func (r *quotaLimiter) refill() {
	r.remaining = defaultQuota
	r.resetTime = r.now().Add(time.Hour)
}

// UpdateLimit records the quota reported by the last API response
func (r *quotaLimiter) UpdateLimit(remaining int, resetTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = remaining
	r.resetTime = resetTime
}
