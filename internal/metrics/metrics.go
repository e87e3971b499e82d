package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcomes used as the status label.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

var (
	// Run metrics
	runInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "omafgen_run_info",
		Help: "Identifies the current pipeline run",
	}, []string{"run_id", "version"})

	stepDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "omafgen_step_duration_seconds",
		Help: "Wall time of each completed pipeline step",
	}, []string{"step"})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omafgen_steps_total",
		Help: "Pipeline steps finished, by outcome",
	}, []string{"step", "status"})

	// External tool jobs
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omafgen_jobs_total",
		Help: "External tool invocations, by step and outcome",
	}, []string{"step", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "omafgen_job_duration_seconds",
		Help:    "Duration of external tool invocations",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 16), // 100ms to ~55min
	}, []string{"step"})

	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omafgen_jobs_running",
		Help: "External tool invocations currently running",
	})

	// Bitstream filtering
	bitstreamFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omafgen_bitstream_files_total",
		Help: "Bitstream files handled by the filter, by result",
	}, []string{"result"})

	bitstreamUnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omafgen_bitstream_units_total",
		Help: "NAL units scanned by the filter, by fate",
	}, []string{"fate"})

	bitstreamBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omafgen_bitstream_bytes_total",
		Help: "Bytes read and written by the filter",
	}, []string{"direction"})
)

// SetRunInfo marks the run id of this process.
func SetRunInfo(runID, version string) {
	runInfo.WithLabelValues(runID, version).Set(1)
}

// RecordStep records a finished pipeline step.
func RecordStep(step int, status string, d time.Duration) {
	label := strconv.Itoa(step)
	stepsTotal.WithLabelValues(label, status).Inc()
	if status == StatusOK {
		stepDuration.WithLabelValues(label).Set(d.Seconds())
	}
}

// JobStarted tracks a tool invocation that began running.
func JobStarted() {
	jobsRunning.Inc()
}

// JobFinished records the outcome of a tool invocation.
func JobFinished(step int, status string, d time.Duration) {
	jobsRunning.Dec()
	label := strconv.Itoa(step)
	jobsTotal.WithLabelValues(label, status).Inc()
	jobDuration.WithLabelValues(label).Observe(d.Seconds())
}

// RecordBitstream records one filtered file.
func RecordBitstream(units, dropped int, bytesIn, bytesOut int64) {
	bitstreamFilesTotal.WithLabelValues("filtered").Inc()
	bitstreamUnitsTotal.WithLabelValues("kept").Add(float64(units - dropped))
	bitstreamUnitsTotal.WithLabelValues("dropped").Add(float64(dropped))
	bitstreamBytesTotal.WithLabelValues("in").Add(float64(bytesIn))
	bitstreamBytesTotal.WithLabelValues("out").Add(float64(bytesOut))
}

// RecordSkippedBitstream records a file without any NAL unit.
func RecordSkippedBitstream() {
	bitstreamFilesTotal.WithLabelValues("skipped").Inc()
}

// WriteTextfile dumps the default registry in the text exposition format,
// for the node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
