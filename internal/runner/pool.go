package runner

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/logger"
)

// Pool runs jobs on a bounded number of workers.
type Pool struct {
	runner   *Runner
	size     int
	progress *Progress
	logger   *logger.SampledLogger
}

// NewPool creates a pool of size workers. progress may be nil.
func NewPool(r *Runner, size int, progress *Progress, log logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		runner:   r,
		size:     size,
		progress: progress,
		logger:   logger.NewPipelineLogger(log),
	}
}

// Run executes all jobs and waits for them. The first failure cancels the
// jobs still running, no further job is started, and that failure is
// returned.
func (p *Pool) Run(ctx context.Context, jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		mu       sync.Mutex
		finished int
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	pool, err := ants.NewPoolWithFunc(p.size, func(arg interface{}) {
		defer wg.Done()
		job := arg.(Job)

		p.logger.DebugWithCategory(logger.CategoryJobStart, "Job started", logger.Fields{"job": job.Name})
		if p.progress != nil {
			p.progress.JobStarted()
		}

		err := p.runner.Exec(ctx, job)

		if p.progress != nil {
			p.progress.JobFinished(err)
		}
		if err != nil {
			fail(err)
			return
		}

		mu.Lock()
		finished++
		n := finished
		mu.Unlock()

		p.logger.InfoWithCategory(logger.CategoryProgress, "Jobs progress", logger.Fields{
			"step":      job.Step,
			"finished":  n,
			"remaining": len(jobs) - n,
		})
	})
	if err != nil {
		return apperrors.WrapInternalError(err, "failed to create worker pool")
	}
	defer pool.Release()

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Invoke(job); err != nil {
			wg.Done()
			fail(apperrors.WrapInternalError(err, "failed to schedule job"))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	// The parent context was canceled before any job could fail.
	if err := ctx.Err(); err != nil {
		return apperrors.NewCanceledError(err)
	}
	return nil
}
