package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMetrics(t *testing.T) {
	initialOK := testutil.ToFloat64(jobsTotal.WithLabelValues("4", StatusOK))
	initialFailed := testutil.ToFloat64(jobsTotal.WithLabelValues("4", StatusFailed))
	initialRunning := testutil.ToFloat64(jobsRunning)

	JobStarted()
	JobStarted()
	assert.Equal(t, initialRunning+2, testutil.ToFloat64(jobsRunning))

	JobFinished(4, StatusOK, 2*time.Second)
	JobFinished(4, StatusFailed, 500*time.Millisecond)

	assert.Equal(t, initialRunning, testutil.ToFloat64(jobsRunning))
	assert.Equal(t, initialOK+1, testutil.ToFloat64(jobsTotal.WithLabelValues("4", StatusOK)))
	assert.Equal(t, initialFailed+1, testutil.ToFloat64(jobsTotal.WithLabelValues("4", StatusFailed)))

	histogram := jobDuration.WithLabelValues("4").(prometheus.Histogram)
	var m dto.Metric
	require.NoError(t, histogram.Write(&m))
	assert.GreaterOrEqual(t, m.Histogram.GetSampleCount(), uint64(2))
	assert.GreaterOrEqual(t, m.Histogram.GetSampleSum(), 2.5)
}

func TestRecordStep(t *testing.T) {
	initial := testutil.ToFloat64(stepsTotal.WithLabelValues("2", StatusOK))

	RecordStep(2, StatusOK, 90*time.Second)
	assert.Equal(t, initial+1, testutil.ToFloat64(stepsTotal.WithLabelValues("2", StatusOK)))
	assert.Equal(t, 90.0, testutil.ToFloat64(stepDuration.WithLabelValues("2")))

	// Failed steps do not overwrite the duration of the last good one.
	RecordStep(2, StatusFailed, time.Second)
	assert.Equal(t, 90.0, testutil.ToFloat64(stepDuration.WithLabelValues("2")))
}

func TestRecordBitstream(t *testing.T) {
	initialFiltered := testutil.ToFloat64(bitstreamFilesTotal.WithLabelValues("filtered"))
	initialSkipped := testutil.ToFloat64(bitstreamFilesTotal.WithLabelValues("skipped"))
	initialKept := testutil.ToFloat64(bitstreamUnitsTotal.WithLabelValues("kept"))
	initialDropped := testutil.ToFloat64(bitstreamUnitsTotal.WithLabelValues("dropped"))
	initialIn := testutil.ToFloat64(bitstreamBytesTotal.WithLabelValues("in"))
	initialOut := testutil.ToFloat64(bitstreamBytesTotal.WithLabelValues("out"))

	RecordBitstream(10, 1, 4096, 4000)
	RecordSkippedBitstream()

	assert.Equal(t, initialFiltered+1, testutil.ToFloat64(bitstreamFilesTotal.WithLabelValues("filtered")))
	assert.Equal(t, initialSkipped+1, testutil.ToFloat64(bitstreamFilesTotal.WithLabelValues("skipped")))
	assert.Equal(t, initialKept+9, testutil.ToFloat64(bitstreamUnitsTotal.WithLabelValues("kept")))
	assert.Equal(t, initialDropped+1, testutil.ToFloat64(bitstreamUnitsTotal.WithLabelValues("dropped")))
	assert.Equal(t, initialIn+4096, testutil.ToFloat64(bitstreamBytesTotal.WithLabelValues("in")))
	assert.Equal(t, initialOut+4000, testutil.ToFloat64(bitstreamBytesTotal.WithLabelValues("out")))
}

func TestSetRunInfo(t *testing.T) {
	SetRunInfo("run-1", "v1.0.0")
	assert.Equal(t, 1.0, testutil.ToFloat64(runInfo.WithLabelValues("run-1", "v1.0.0")))
}

func TestWriteTextfile(t *testing.T) {
	SetRunInfo("textfile-run", "dev")
	JobStarted()
	JobFinished(5, StatusOK, time.Second)

	path := filepath.Join(t.TempDir(), "omafgen.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "omafgen_jobs_total")
	assert.Contains(t, string(data), `run_id="textfile-run"`)
}

func TestConcurrentJobUpdates(t *testing.T) {
	initial := testutil.ToFloat64(jobsTotal.WithLabelValues("3", StatusOK))

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				JobStarted()
				JobFinished(3, StatusOK, time.Millisecond)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, initial+1000, testutil.ToFloat64(jobsTotal.WithLabelValues("3", StatusOK)))
}
