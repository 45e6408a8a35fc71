package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	literrors "github.com/litfuse/litfuse/internal/errors"
)

func TestAcquireRespectsBucketRate(t *testing.T) {
	r := NewRegistry(map[string]Limit{"pubmed": {Rate: 100, Burst: 3}})
	ctx := context.Background()

	start := time.Now()
	// Burst drains immediately, the next token costs ~10ms.
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Acquire(ctx, "pubmed"))
	}
	assert.Less(t, time.Since(start), 5*time.Millisecond)

	require.NoError(t, r.Acquire(ctx, "pubmed"))
	assert.GreaterOrEqual(t, time.Since(start), 8*time.Millisecond)
}

func TestAcquireWindowBound(t *testing.T) {
	// Bucket (rate=50/s, burst=5): in 100ms at most burst + rate*T = 10
	// acquisitions may return.
	r := NewRegistry(map[string]Limit{"pubmed": {Rate: 50, Burst: 5}})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	granted := 0
	for {
		if err := r.Acquire(ctx, "pubmed"); err != nil {
			break
		}
		granted++
	}
	assert.LessOrEqual(t, granted, 11) // +1 jitter tolerance
	assert.GreaterOrEqual(t, granted, 5)
}

func TestAcquireUnlimitedKey(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, r.Acquire(ctx, "anything"))
	}
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestAcquireCancelledWaiter(t *testing.T) {
	r := NewRegistry(map[string]Limit{"pubmed": {Rate: 0.1, Burst: 1}})
	ctx := context.Background()

	require.NoError(t, r.Acquire(ctx, "pubmed"))

	waitCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- r.Acquire(waitCtx, "pubmed") }()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, literrors.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter never released")
	}
}

func TestBucketsAreIndependentPerKey(t *testing.T) {
	r := NewRegistry(map[string]Limit{
		"pubmed":   {Rate: 1, Burst: 1},
		"openalex": {Rate: 1, Burst: 1},
	})
	ctx := context.Background()

	require.NoError(t, r.Acquire(ctx, "pubmed"))
	// Draining pubmed leaves openalex untouched.
	assert.True(t, r.Allow("openalex"))
	assert.False(t, r.Allow("pubmed"))
}

func TestSetLimitReplacesBucket(t *testing.T) {
	r := NewRegistry(map[string]Limit{"pubmed": {Rate: 1, Burst: 1}})

	require.True(t, r.Allow("pubmed"))
	require.False(t, r.Allow("pubmed"))

	r.SetLimit("pubmed", Limit{Rate: 10, Burst: 5})
	assert.True(t, r.Allow("pubmed"))
}
