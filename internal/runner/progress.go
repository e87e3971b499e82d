package runner

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	Step      int       `json:"step"`
	StepName  string    `json:"step_name"`
	Total     int       `json:"total"`
	Finished  int       `json:"finished"`
	Failed    int       `json:"failed"`
	Running   int       `json:"running"`
	Remaining int       `json:"remaining"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   string    `json:"elapsed"`
	Done      bool      `json:"done"`
}

// Progress tracks the jobs of the current step. Readers and writers may run
// concurrently.
type Progress struct {
	mu        sync.RWMutex
	runID     string
	step      int
	stepName  string
	total     int
	finished  int
	failed    int
	running   int
	startedAt time.Time
	done      bool
}

func NewProgress(runID string) *Progress {
	return &Progress{runID: runID, startedAt: time.Now()}
}

// BeginStep resets the counters for a new step with total jobs.
func (p *Progress) BeginStep(step int, name string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.step = step
	p.stepName = name
	p.total = total
	p.finished = 0
	p.failed = 0
	p.running = 0
}

// AddJobs grows the job total of the current step.
func (p *Progress) AddJobs(n int) {
	p.mu.Lock()
	p.total += n
	p.mu.Unlock()
}

func (p *Progress) JobStarted() {
	p.mu.Lock()
	p.running++
	p.mu.Unlock()
}

func (p *Progress) JobFinished(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running--
	p.finished++
	if err != nil {
		p.failed++
	}
}

// Finish marks the run as complete.
func (p *Progress) Finish() {
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	remaining := p.total - p.finished
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		RunID:     p.runID,
		Step:      p.step,
		StepName:  p.stepName,
		Total:     p.total,
		Finished:  p.finished,
		Failed:    p.failed,
		Running:   p.running,
		Remaining: remaining,
		StartedAt: p.startedAt,
		Elapsed:   time.Since(p.startedAt).Round(time.Second).String(),
		Done:      p.done,
	}
}
