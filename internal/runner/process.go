package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/logger"
	"github.com/zsiec/omafgen/internal/metrics"
)

// DefaultStopTimeout is how long an interrupted tool gets before it is killed.
const DefaultStopTimeout = 5 * time.Second

// Runner executes jobs one at a time. It is safe for concurrent use.
type Runner struct {
	logger      logger.Logger
	stopTimeout time.Duration
}

// New creates a runner. A non-positive stopTimeout uses DefaultStopTimeout.
func New(log logger.Logger, stopTimeout time.Duration) *Runner {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Runner{
		logger:      log,
		stopTimeout: stopTimeout,
	}
}

// Exec runs job to completion. A non-zero exit yields a TOOL_FAILED error
// with the exit code; a canceled ctx interrupts the tool and yields CANCELED.
func (r *Runner) Exec(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewCanceledError(err)
	}

	log := r.logger.WithFields(logger.Fields{
		"job":  job.Name,
		"step": job.Step,
		"tool": job.Tool(),
	})
	log.Debug(job.CommandLine())

	out, err := r.output(job, log)
	if err != nil {
		return err
	}
	defer out.Close()

	cmd := exec.Command(job.Bin, job.Args...)
	cmd.Dir = job.Dir
	if len(job.Env) > 0 {
		cmd.Env = append(os.Environ(), job.Env...)
	}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = r.stopTimeout

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return apperrors.NewNotFoundError(job.Bin).WithDetails(map[string]interface{}{"job": job.Name})
		}
		return apperrors.WrapIOError(err, fmt.Sprintf("failed to start %s", job.Tool()))
	}
	metrics.JobStarted()

	done := make(chan struct{})
	go func() {
		select {
		case <-done:
		case <-ctx.Done():
			r.stop(cmd, done)
		}
	}()

	err = cmd.Wait()
	close(done)
	elapsed := time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		metrics.JobFinished(job.Step, metrics.StatusCanceled, elapsed)
		return apperrors.NewCanceledError(ctx.Err())
	case err != nil:
		metrics.JobFinished(job.Step, metrics.StatusFailed, elapsed)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr := apperrors.NewToolError(job.Tool(), exitErr.ExitCode(), err)
			toolErr.Details["job"] = job.Name
			if job.LogPath != "" {
				toolErr.Details["log"] = job.LogPath
			}
			return toolErr
		}
		return apperrors.WrapInternalError(err, fmt.Sprintf("%s did not finish", job.Tool()))
	}

	metrics.JobFinished(job.Step, metrics.StatusOK, elapsed)
	log.WithField("duration", elapsed.Round(time.Millisecond)).Debug("Job finished")
	return nil
}

// output opens the sink for the tool's stdout and stderr.
func (r *Runner) output(job Job, log logger.Logger) (io.WriteCloser, error) {
	if job.LogPath == "" {
		return log.Writer(logrus.DebugLevel), nil
	}

	if err := os.MkdirAll(filepath.Dir(job.LogPath), 0755); err != nil {
		return nil, apperrors.WrapIOError(err, "failed to create log directory")
	}
	f, err := os.Create(job.LogPath)
	if err != nil {
		return nil, apperrors.WrapIOError(err, fmt.Sprintf("failed to create %s", job.LogPath))
	}
	return f, nil
}

// stop interrupts the process and kills it if it is still running after the
// stop timeout. exec.CommandContext is not used since it kills right away.
func (r *Runner) stop(cmd *exec.Cmd, done <-chan struct{}) {
	cmd.Process.Signal(os.Interrupt) //nolint:errcheck

	select {
	case <-done:
	case <-time.After(r.stopTimeout):
		cmd.Process.Kill() //nolint:errcheck
		<-done
	}
}

// Status maps a job error to its metrics label.
func Status(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case apperrors.IsType(err, apperrors.ErrorTypeCanceled):
		return metrics.StatusCanceled
	default:
		return metrics.StatusFailed
	}
}
