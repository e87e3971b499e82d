package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/logger"
)

// DefaultCheckTimeout bounds a single check.
const DefaultCheckTimeout = 5 * time.Second

// Status represents the health status of a component.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Check represents a health check result.
type Check struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"-"`
	DurationMS  float64                `json:"duration_ms"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Checker is implemented by everything the manager can check.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Manager runs checks and keeps their latest results.
type Manager struct {
	checkers []Checker
	results  map[string]*Check
	timeout  time.Duration
	mu       sync.RWMutex
	logger   logger.Logger
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		results: make(map[string]*Check),
		timeout: DefaultCheckTimeout,
		logger:  log,
	}
}

// Register adds a checker.
func (m *Manager) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
	m.logger.WithField("checker", checker.Name()).Debug("Registered health checker")
}

// RunChecks executes all registered checks concurrently.
func (m *Manager) RunChecks(ctx context.Context) map[string]*Check {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	var wg sync.WaitGroup
	resultsChan := make(chan *Check, len(checkers))

	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			resultsChan <- m.run(ctx, c)
		}(checker)
	}

	wg.Wait()
	close(resultsChan)

	results := make(map[string]*Check, len(checkers))
	m.mu.Lock()
	for check := range resultsChan {
		results[check.Name] = check
		m.results[check.Name] = check
	}
	m.mu.Unlock()

	return results
}

func (m *Manager) run(ctx context.Context, c Checker) *Check {
	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(checkCtx)
	duration := time.Since(start)

	check := &Check{
		Name:        c.Name(),
		Status:      StatusOK,
		LastChecked: time.Now(),
		Duration:    duration,
		DurationMS:  float64(duration.Milliseconds()),
	}

	log := m.logger.WithFields(logger.Fields{
		"checker":  c.Name(),
		"duration": duration,
	})
	if err != nil {
		check.Status = StatusDown
		check.Message = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			check.Message = "Health check timed out"
		}
		log.WithError(err).Error("Health check failed")
	} else {
		log.Debug("Health check passed")
	}

	return check
}

// GetResults returns copies of the latest results.
func (m *Manager) GetResults() map[string]*Check {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]*Check, len(m.results))
	for k, v := range m.results {
		checkCopy := *v
		results[k] = &checkCopy
	}
	return results
}

// GetOverallStatus folds the latest results; no results at all is down.
func (m *Manager) GetOverallStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.results) == 0 {
		return StatusDown
	}

	status := StatusOK
	for _, check := range m.results {
		switch check.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// Preflight runs every check once and fails with NOT_FOUND naming each
// failed check. It is meant to run before any tool is started.
func (m *Manager) Preflight(ctx context.Context) error {
	var failed []string
	for name, check := range m.RunChecks(ctx) {
		if check.Status == StatusDown {
			failed = append(failed, fmt.Sprintf("%s (%s)", name, check.Message))
		}
	}
	if len(failed) == 0 {
		return nil
	}

	sort.Strings(failed)
	return apperrors.NewNotFoundError(strings.Join(failed, ", ")).
		WithDetails(map[string]interface{}{"checks": failed})
}
