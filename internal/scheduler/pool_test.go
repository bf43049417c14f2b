package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_RunReturnsOneResultPerJobInOriginalSet(t *testing.T) {
	pool := NewPool(4, zap.NewNop())
	jobs := []Job{
		{TokenAddress: "a", Timeframe: "15m"},
		{TokenAddress: "b", Timeframe: "1h"},
		{TokenAddress: "c", Timeframe: "4h"},
	}

	results := pool.Run(context.Background(), jobs, func(ctx context.Context, job Job) error {
		return nil
	})

	require.Len(t, results, len(jobs))
	seen := map[string]bool{}
	for _, r := range results {
		assert.Equal(t, JobSucceeded, r.Status)
		assert.NoError(t, r.Err)
		seen[r.Job.TokenAddress] = true
	}
	assert.Len(t, seen, 3, "every job must be represented exactly once regardless of dispatch order")
}

func TestPool_RunIsolatesOneJobsFailureFromTheRest(t *testing.T) {
	pool := NewPool(2, zap.NewNop())
	boom := errors.New("boom")
	jobs := []Job{
		{TokenAddress: "good-1"},
		{TokenAddress: "bad"},
		{TokenAddress: "good-2"},
	}

	results := pool.Run(context.Background(), jobs, func(ctx context.Context, job Job) error {
		if job.TokenAddress == "bad" {
			return boom
		}
		return nil
	})

	failures, successes := 0, 0
	for _, r := range results {
		if r.Job.TokenAddress == "bad" {
			assert.Equal(t, JobFailed, r.Status)
			assert.ErrorIs(t, r.Err, boom)
			failures++
			continue
		}
		assert.Equal(t, JobSucceeded, r.Status)
		successes++
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 2, successes, "a failing job must not prevent the others from completing")
}

func TestPool_RunRespectsBoundedConcurrency(t *testing.T) {
	const poolSize = 3
	pool := NewPool(poolSize, zap.NewNop())
	jobs := make([]Job, 20)

	var inFlight, maxObserved int32
	_ = pool.Run(context.Background(), jobs, func(ctx context.Context, job Job) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxObserved)
			if n <= cur || atomic.CompareAndSwapInt32(&maxObserved, cur, n) {
				break
			}
		}
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	assert.LessOrEqual(t, int(maxObserved), poolSize)
}

func TestNewPool_ClampsNonPositiveSizeToOne(t *testing.T) {
	pool := NewPool(0, zap.NewNop())
	assert.Equal(t, 1, pool.size)
}
