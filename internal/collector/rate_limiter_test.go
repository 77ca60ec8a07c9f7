package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaLimiter_PlentyOfQuota(t *testing.T) {
	r := newQuotaLimiter(0, nil, time.Now)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
}

func TestQuotaLimiter_ElapsedResetRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newQuotaLimiter(0, nil, func() time.Time { return now })
	r.UpdateLimit(2, now.Add(-time.Minute))

	require.NoError(t, r.Wait(context.Background()))
	assert.Equal(t, defaultQuota, r.remaining)
	assert.Equal(t, now.Add(time.Hour), r.resetTime)
}

func TestQuotaLimiter_ExhaustedHoldsUntilCancelled(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newQuotaLimiter(0, nil, func() time.Time { return now })
	r.UpdateLimit(0, now.Add(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, 0, r.remaining)
}

func TestQuotaLimiter_PacesCalls(t *testing.T) {
	r := newQuotaLimiter(30*time.Millisecond, nil, time.Now)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, r.Wait(ctx))
	require.NoError(t, r.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
