// Package scheduler implements the Scheduler Core (C10): a cron-driven tick
// that selects the due set, dispatches one pipeline run per (token,
// timeframe) to a bounded worker pool, and runs the indicator/alert passes.
// The worker pool is adapted from the teacher's internal/supervisor package,
// generalized from "one long-running worker per exchange stream" to "one
// worker per due pipeline run within a single tick."
package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// JobStatus mirrors the teacher supervisor's WorkerStatus enum, scoped to
// the lifetime of one tick's job instead of a long-running stream.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one unit of dispatchable work: a single (token, timeframe) pipeline run.
type Job struct {
	TokenAddress string
	PairAddress  string
	Timeframe    string
}

// JobResult carries the outcome of one job back to the tick driver. Failures
// are isolated per spec.md §5: one bad token does not stall the tick.
type JobResult struct {
	Job    Job
	Status JobStatus
	Err    error
}

// Pool runs jobs with bounded concurrency, collecting all results before
// returning — same "each worker owns one pipeline run end to end" ownership
// model the spec requires for per-token indicator-state safety.
type Pool struct {
	size   int
	logger *zap.Logger
}

func NewPool(size int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size, logger: logger.Named("scheduler.pool")}
}

// Run dispatches jobs across the pool's bounded goroutines and returns one
// JobResult per job, in no particular order.
func (p *Pool) Run(ctx context.Context, jobs []Job, fn func(ctx context.Context, job Job) error) []JobResult {
	results := make([]JobResult, len(jobs))
	jobCh := make(chan int, len(jobs))
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	var wg sync.WaitGroup
	for w := 0; w < p.size; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				job := jobs[idx]
				err := fn(ctx, job)
				status := JobSucceeded
				if err != nil {
					status = JobFailed
					p.logger.Error("job failed",
						zap.String("tokenAddress", job.TokenAddress),
						zap.String("timeframe", job.Timeframe),
						zap.Error(err))
				}
				results[idx] = JobResult{Job: job, Status: status, Err: err}
			}
		}()
	}
	wg.Wait()
	return results
}
