package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SampledLogger thins out high-volume log categories such as per-job lines.
// Errors and uncategorized messages always go through.
type SampledLogger struct {
	Logger
	samplers map[string]*logSampler
	mu       *sync.RWMutex
}

type logSampler struct {
	gate   *rate.Sometimes
	seen   atomic.Int64
	logged atomic.Int64
}

// SamplerStats holds statistics for a log sampler
type SamplerStats struct {
	Name    string  `json:"name"`
	Seen    int64   `json:"seen"`
	Logged  int64   `json:"logged"`
	Dropped int64   `json:"dropped"`
	Rate    float64 `json:"rate"`
}

// Log categories used by the pipeline.
const (
	CategoryJobDone   = "job_done"
	CategoryJobStart  = "job_start"
	CategoryBitstream = "bitstream"
	CategoryProgress  = "progress"
)

// NewSampledLogger creates a sampled logger without any sampler; every
// category logs until WithSampler configures it.
func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		Logger:   base,
		samplers: make(map[string]*logSampler),
		mu:       &sync.RWMutex{},
	}
}

// WithSampler lets the first messages of category through, then every
// every-th message or one per interval, whichever comes first. Zero disables
// the corresponding rule.
func (s *SampledLogger) WithSampler(category string, first, every int, interval time.Duration) *SampledLogger {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samplers[category] = &logSampler{
		gate: &rate.Sometimes{First: first, Every: every, Interval: interval},
	}
	return s
}

// NewPipelineLogger returns the sampled logger the pipeline runs with.
func NewPipelineLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		WithSampler(CategoryJobStart, 3, 0, 5*time.Second).
		WithSampler(CategoryJobDone, 5, 25, 2*time.Second).
		WithSampler(CategoryBitstream, 3, 10, 0).
		WithSampler(CategoryProgress, 1, 0, 5*time.Second)
}

// LogCategory logs msg at level unless the category sampler drops it.
func (s *SampledLogger) LogCategory(level logrus.Level, category, msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["category"] = category

	if level <= logrus.ErrorLevel {
		s.Logger.WithFields(fields).Log(level, msg)
		return
	}

	s.mu.RLock()
	sampler, ok := s.samplers[category]
	s.mu.RUnlock()
	if !ok {
		s.Logger.WithFields(fields).Log(level, msg)
		return
	}

	seen := sampler.seen.Add(1)
	sampler.gate.Do(func() {
		logged := sampler.logged.Add(1)
		if seen > logged {
			fields["_sampling_seen"] = seen
			fields["_sampling_logged"] = logged
		}
		s.Logger.WithFields(fields).Log(level, msg)
	})
}

func (s *SampledLogger) InfoWithCategory(category, msg string, fields map[string]interface{}) {
	s.LogCategory(logrus.InfoLevel, category, msg, fields)
}

func (s *SampledLogger) DebugWithCategory(category, msg string, fields map[string]interface{}) {
	s.LogCategory(logrus.DebugLevel, category, msg, fields)
}

// Stats returns statistics for all samplers.
func (s *SampledLogger) Stats() map[string]SamplerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]SamplerStats, len(s.samplers))
	for name, sampler := range s.samplers {
		seen := sampler.seen.Load()
		logged := sampler.logged.Load()
		st := SamplerStats{Name: name, Seen: seen, Logged: logged, Dropped: seen - logged}
		if seen > 0 {
			st.Rate = float64(logged) / float64(seen)
		}
		stats[name] = st
	}
	return stats
}

// Derived loggers share the samplers of their parent.

func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithFields(fields), samplers: s.samplers, mu: s.mu}
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithField(key, value), samplers: s.samplers, mu: s.mu}
}

func (s *SampledLogger) WithError(err error) Logger {
	return &SampledLogger{Logger: s.Logger.WithError(err), samplers: s.samplers, mu: s.mu}
}
