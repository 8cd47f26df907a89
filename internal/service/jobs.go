package service

import (
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned by TryStart while another job is running.
var ErrBusy = errors.New("a job is already running")

// JobState is the lifecycle of the single tracked job.
type JobState string

const (
	JobIdle    JobState = "idle"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobStatus is a snapshot of the tracker.
type JobStatus struct {
	State      JobState  `json:"state"`
	Kind       string    `json:"kind,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// JobTracker is a single-slot job status store. At most one job runs at a
// time; callers gate on TryStart.
type JobTracker struct {
	mu     sync.Mutex
	status JobStatus
	now    func() time.Time
}

func NewJobTracker() *JobTracker {
	return &JobTracker{status: JobStatus{State: JobIdle}, now: time.Now}
}

// TryStart marks a job of kind as running, or returns ErrBusy.
func (t *JobTracker) TryStart(kind string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State == JobRunning {
		return ErrBusy
	}
	t.status = JobStatus{State: JobRunning, Kind: kind, StartedAt: t.now()}
	return nil
}

// Finish records the outcome of the running job.
func (t *JobTracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.FinishedAt = t.now()
	if err != nil {
		t.status.State = JobFailed
		t.status.Message = err.Error()
		return
	}
	t.status.State = JobDone
	t.status.Message = ""
}

func (t *JobTracker) Status() JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *JobTracker) Busy() bool {
	return t.Status().State == JobRunning
}

// AnalysisCache holds the last computed analysis with its timestamp.
type AnalysisCache struct {
	mu        sync.RWMutex
	analysis  *Analysis
	updatedAt time.Time
}

// Get returns the cached analysis and when it was stored; ok is false when
// the cell is empty.
func (c *AnalysisCache) Get() (a *Analysis, updatedAt time.Time, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.analysis, c.updatedAt, c.analysis != nil
}

func (c *AnalysisCache) Set(a *Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analysis = a
	c.updatedAt = time.Now()
}

func (c *AnalysisCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analysis = nil
	c.updatedAt = time.Time{}
}
