package jobs

import (
	"fmt"
	"sync"
	"time"
)

const (
	initialMessage  = "initialized"
	completeMessage = "processing complete"
	failedMessage   = "processing failed"
)

// Store is the authoritative in-memory registry of jobs. All access is
// serialized behind a single mutex; snapshots returned to callers never
// alias the stored records.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create inserts a new pending job. IDs are caller-generated and must be
// unique; a duplicate indicates a bug upstream.
func (s *Store) Create(jobID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobID]; exists {
		return Job{}, fmt.Errorf("job %s already exists", jobID)
	}

	now := s.now().UTC()
	job := &Job{
		ID:        jobID,
		Status:    StatusPending,
		Progress:  0,
		Message:   initialMessage,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[jobID] = job
	return job.snapshot(), nil
}

// Update applies a partial update to the job. Empty message and nil progress
// leave the current values unchanged. Unknown IDs are ignored: the pipeline
// that owns a job always creates it first, so a miss here is a caller bug,
// not a runtime fault.
func (s *Store) Update(jobID, status, message string, progress *int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if status != "" {
		job.Status = status
	}
	if message != "" {
		job.Message = message
	}
	if progress != nil {
		job.Progress = *progress
	}
	job.UpdatedAt = s.now().UTC()
}

// SetResult marks the job completed and stores its result payload.
func (s *Store) SetResult(jobID string, result map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.Status = StatusCompleted
	job.Progress = 100
	job.Message = completeMessage
	job.Result = result
	job.Error = ""
	job.UpdatedAt = s.now().UTC()
}

// SetError marks the job failed with a human-readable message.
func (s *Store) SetError(jobID, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.Status = StatusFailed
	job.Message = failedMessage
	job.Error = errMsg
	job.Result = nil
	job.UpdatedAt = s.now().UTC()
}

// Get returns a snapshot of the job, or false when it does not exist.
func (s *Store) Get(jobID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return job.snapshot(), true
}

// List returns snapshots of all jobs, for diagnostics.
func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.snapshot())
	}
	return out
}
