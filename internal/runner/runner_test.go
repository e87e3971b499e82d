package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/logger"
)

// TestHelperProcess is the fake external tool. It only does something when
// started by helperJob.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("OMAFGEN_HELPER_PROCESS") != "1" {
		return
	}
	if d := os.Getenv("HELPER_SLEEP"); d != "" {
		dur, _ := time.ParseDuration(d)
		time.Sleep(dur)
	}
	if p := os.Getenv("HELPER_TOUCH"); p != "" {
		_ = os.WriteFile(p, nil, 0644)
	}
	fmt.Fprintln(os.Stdout, "stdout line")
	fmt.Fprintln(os.Stderr, "stderr line")

	code, _ := strconv.Atoi(os.Getenv("HELPER_EXIT"))
	os.Exit(code)
}

func helperJob(name string, env ...string) Job {
	return Job{
		Name: name,
		Step: 4,
		Bin:  os.Args[0],
		Args: []string{"-test.run=TestHelperProcess", "--"},
		Env:  append([]string{"OMAFGEN_HELPER_PROCESS=1"}, env...),
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger(out *syncBuffer) logger.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return logger.FromLogrus(l)
}

func TestExec_LogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "qp22", "tile.log")
	job := helperJob("encode tile 0")
	job.LogPath = logPath

	r := New(logger.NewNullLogger(), time.Second)
	require.NoError(t, r.Exec(context.Background(), job))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stdout line")
	assert.Contains(t, string(data), "stderr line")
}

func TestExec_OutputToLogger(t *testing.T) {
	var out syncBuffer
	r := New(testLogger(&out), time.Second)

	require.NoError(t, r.Exec(context.Background(), helperJob("scale")))

	assert.Eventually(t, func() bool {
		s := out.String()
		return bytes.Contains([]byte(s), []byte("stdout line")) && bytes.Contains([]byte(s), []byte("stderr line"))
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), `job=scale`)
}

func TestExec_NonZeroExit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "fail.log")
	job := helperJob("package", "HELPER_EXIT=3")
	job.LogPath = logPath

	r := New(logger.NewNullLogger(), time.Second)
	err := r.Exec(context.Background(), job)
	require.Error(t, err)

	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeToolFailed, appErr.Type)
	assert.Equal(t, 3, appErr.Details["exit_code"])
	assert.Equal(t, "package", appErr.Details["job"])
	assert.Equal(t, logPath, appErr.Details["log"])
	assert.Equal(t, apperrors.ExitToolFailed, apperrors.ExitCode(err))
	assert.Equal(t, "failed", Status(err))
}

func TestExec_MissingBinary(t *testing.T) {
	r := New(logger.NewNullLogger(), time.Second)
	err := r.Exec(context.Background(), Job{
		Name: "convert",
		Step: 1,
		Bin:  filepath.Join(t.TempDir(), "TApp360Convert"),
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestExec_Cancel(t *testing.T) {
	r := New(logger.NewNullLogger(), 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := r.Exec(ctx, helperJob("sleeper", "HELPER_SLEEP=1h"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCanceled))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, "canceled", Status(err))
}

func TestExec_AlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	r := New(logger.NewNullLogger(), time.Second)
	err := r.Exec(ctx, helperJob("never", "HELPER_TOUCH="+marker))

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCanceled))
	assert.NoFileExists(t, marker)
}

func TestPool_RunsAllJobs(t *testing.T) {
	dir := t.TempDir()
	var jobs []Job
	for i := 0; i < 12; i++ {
		jobs = append(jobs, helperJob(fmt.Sprintf("tile %d", i), "HELPER_TOUCH="+filepath.Join(dir, strconv.Itoa(i))))
	}

	progress := NewProgress("run-1")
	progress.BeginStep(3, "tiling", len(jobs))

	pool := NewPool(New(logger.NewNullLogger(), time.Second), 4, progress, logger.NewNullLogger())
	require.NoError(t, pool.Run(context.Background(), jobs))

	for i := 0; i < 12; i++ {
		assert.FileExists(t, filepath.Join(dir, strconv.Itoa(i)))
	}

	snap := progress.Snapshot()
	assert.Equal(t, 12, snap.Total)
	assert.Equal(t, 12, snap.Finished)
	assert.Equal(t, 0, snap.Failed)
	assert.Equal(t, 0, snap.Running)
	assert.Equal(t, 0, snap.Remaining)
}

func TestPool_FirstFailureWins(t *testing.T) {
	jobs := []Job{helperJob("bad", "HELPER_EXIT=2")}
	for i := 0; i < 10; i++ {
		jobs = append(jobs, helperJob(fmt.Sprintf("slow %d", i), "HELPER_SLEEP=1h"))
	}

	pool := NewPool(New(logger.NewNullLogger(), time.Second), 2, nil, logger.NewNullLogger())

	start := time.Now()
	err := pool.Run(context.Background(), jobs)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 30*time.Second)

	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeToolFailed, appErr.Type)
	assert.Equal(t, 2, appErr.Details["exit_code"])
}

func TestPool_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewPool(New(logger.NewNullLogger(), time.Second), 2, nil, logger.NewNullLogger())
	err := pool.Run(ctx, []Job{helperJob("a"), helperJob("b")})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCanceled))
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool(New(logger.NewNullLogger(), time.Second), 0, nil, logger.NewNullLogger())
	assert.NoError(t, pool.Run(context.Background(), nil))
}

func TestProgress(t *testing.T) {
	p := NewProgress("run-7")
	p.BeginStep(4, "encoding", 3)
	p.JobStarted()
	p.JobStarted()
	p.JobFinished(nil)
	p.JobFinished(apperrors.NewToolError("TAppEncoder", 1, nil))
	p.AddJobs(2)

	snap := p.Snapshot()
	assert.Equal(t, "run-7", snap.RunID)
	assert.Equal(t, 4, snap.Step)
	assert.Equal(t, "encoding", snap.StepName)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 2, snap.Finished)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 0, snap.Running)
	assert.Equal(t, 3, snap.Remaining)
	assert.False(t, snap.Done)

	p.BeginStep(5, "packaging", 1)
	p.Finish()
	snap = p.Snapshot()
	assert.Equal(t, 0, snap.Finished)
	assert.True(t, snap.Done)
}

func TestJobCommandLine(t *testing.T) {
	job := Job{
		Bin:     "bin/linux/TApp360Convert",
		Args:    []string{"--InputFile=in.yuv", "--CodingFPStructure=2 3  4 0 0 0 5 0  1 0 3 90 2 270", ""},
		LogPath: "out/convert.log",
	}
	assert.Equal(t,
		`bin/linux/TApp360Convert --InputFile=in.yuv "--CodingFPStructure=2 3  4 0 0 0 5 0  1 0 3 90 2 270" "" &> out/convert.log`,
		job.CommandLine())
	assert.Equal(t, "TApp360Convert", job.Tool())
}
