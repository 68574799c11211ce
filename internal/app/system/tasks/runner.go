// Package tasks runs periodic background jobs for the lifetime of the app.
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a named unit of periodic work. Run is invoked once per Interval;
// errors are logged and the job keeps its schedule.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner owns a set of jobs and the goroutines that drive them.
type Runner struct {
	log  *zap.Logger
	jobs []Job

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates an empty runner. Add jobs before calling Start.
func NewRunner(log *zap.Logger) *Runner {
	return &Runner{log: log}
}

// Add registers a job. Must be called before Start.
func (r *Runner) Add(jobs ...Job) {
	r.jobs = append(r.jobs, jobs...)
}

// Start launches one goroutine per job. Calling Start while already running
// is a no-op. Each job runs once immediately, then on its interval.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)

	for _, job := range r.jobs {
		job := job
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.runLoop(ctx, job)
		}()
	}
	r.log.Info("background jobs started", zap.Int("count", len(r.jobs)))
}

// Stop cancels all jobs and waits for them to exit. Idempotent.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.log.Info("background jobs stopped")
}

func (r *Runner) runLoop(ctx context.Context, job Job) {
	r.runOnce(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx, job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	if err := job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Warn("background job failed",
			zap.String("job", job.Name),
			zap.Error(err))
	}
}
