package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_Wait(t *testing.T) {
	// 600 per minute = one token every 100ms.
	l := New(Config{RequestsPerMinute: 600, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://archive.today/submit/"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://archive.today/submit/"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_DifferentHosts(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond, "host b must not be blocked by host a")
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(ctx, "https://oauth.reddit.com/api/comment"))
	}
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := New(Config{RequestsPerMinute: 1, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Wait(ctx, "https://a.example"))
	cancel()
	require.ErrorIs(t, l.Wait(ctx, "https://a.example"), context.Canceled)
}
