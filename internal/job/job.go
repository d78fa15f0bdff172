// Package job tracks the per-directory jobs of a balancing run. It includes
// the Job entity with its state machine, a repository for the jobs of a
// run, and the Service that dispatches jobs across a bounded worker pool.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/soundset/internal/balance"
	"github.com/maauso/soundset/internal/job/id"
	"github.com/maauso/soundset/internal/report"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the directory is waiting for a worker.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates a worker is balancing the directory.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates synthetic files were generated.
	StatusCompleted Status = "COMPLETED"
	// StatusSkipped indicates the directory already met the target.
	StatusSkipped Status = "SKIPPED"
	// StatusFailed indicates the directory could not be balanced.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusSkipped, StatusFailed},
	StatusCompleted: {},
	StatusSkipped:   {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job is the balancing job for a single leaf directory.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Directory is the leaf directory being balanced.
	Directory string
	// Target is the requested file count.
	Target int
	// Status is the current job state.
	Status Status
	// BeforeCount is the number of audio files found before balancing.
	BeforeCount int
	// AfterCount is the number of audio files after balancing.
	AfterCount int
	// Created lists the synthetic files written.
	Created []string
	// FileErrors lists per-file failures that did not abort the job.
	FileErrors []balance.FileError
	// Error contains the message that failed the job.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when a worker picked the job up.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a queued job for dir with a generated ID.
func New(dir string, target int) *Job {
	return NewWithID(id.Generate("dir"), dir, target)
}

// NewWithID creates a queued job with the specified ID.
func NewWithID(jobID, dir string, target int) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Directory: dir,
		Target:    target,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusSkipped, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Start transitions the job from QUEUED to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Finish records the balancing result and moves the job to COMPLETED, or
// to SKIPPED when the directory needed no work.
func (j *Job) Finish(res *balance.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.recordLocked(res)
	if res.Skipped {
		return j.transitionLocked(StatusSkipped)
	}
	return j.transitionLocked(StatusCompleted)
}

// Fail records an optional partial result and moves the job to FAILED.
func (j *Job) Fail(errMsg string, partial *balance.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if partial != nil {
		j.recordLocked(partial)
	}
	j.Error = errMsg
	return j.transitionLocked(StatusFailed)
}

func (j *Job) recordLocked(res *balance.Result) {
	j.BeforeCount = res.Before
	j.AfterCount = res.After
	j.Created = append([]string(nil), res.Created...)
	j.FileErrors = append([]balance.FileError(nil), res.Errors...)
	j.UpdatedAt = time.Now()
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusSkipped ||
		j.Status == StatusFailed
}

// Report converts the job into its run report entry.
func (j *Job) Report() report.Directory {
	j.mu.RLock()
	defer j.mu.RUnlock()

	d := report.Directory{
		Path:        j.Directory,
		Status:      string(j.Status),
		BeforeCount: j.BeforeCount,
		AfterCount:  j.AfterCount,
		Created:     append([]string(nil), j.Created...),
		Error:       j.Error,
	}
	for _, fe := range j.FileErrors {
		d.Errors = append(d.Errors, report.FileError{File: fe.File, Error: fe.Error})
	}
	return d
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Directory:   j.Directory,
		Target:      j.Target,
		Status:      j.Status,
		BeforeCount: j.BeforeCount,
		AfterCount:  j.AfterCount,
		Created:     append([]string(nil), j.Created...),
		FileErrors:  append([]balance.FileError(nil), j.FileErrors...),
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
