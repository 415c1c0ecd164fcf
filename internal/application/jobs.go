package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/housing-allocator/internal/planner"
	"github.com/puzpuzpuz/xsync/v4"
)

// JobStatus is the lifecycle state of a background auto-assign run.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is a snapshot of a background auto-assign run.
type Job struct {
	ID         string
	Status     JobStatus
	Request    AutoAssignRequest
	Result     AutoAssignResult
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// jobRegistry keeps running jobs and finished jobs until they expire.
type jobRegistry struct {
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    *xsync.Map[string, *jobEntry]
}

type jobEntry struct {
	mu        sync.Mutex
	job       Job
	cancel    context.CancelFunc
	expiresAt time.Time
}

func newJobRegistry(ttl time.Duration, maxEntries int, now func() time.Time) *jobRegistry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &jobRegistry{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    xsync.NewMap[string, *jobEntry](),
	}
}

func (e *jobEntry) snapshot() Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	job := e.job
	job.Result.Errors = append([]string(nil), e.job.Result.Errors...)
	job.Result.Proposals = append([]ProposedAssignment(nil), e.job.Result.Proposals...)
	return job
}

func (e *jobEntry) finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Status != JobRunning
}

func (r *jobRegistry) add(entry *jobEntry) {
	r.cleanup()
	if r.entries.Size() >= r.maxEntries {
		r.evictOne()
	}
	r.entries.Store(entry.job.ID, entry)
}

func (r *jobRegistry) get(id string) (*jobEntry, bool) {
	entry, ok := r.entries.Load(id)
	if !ok {
		return nil, false
	}
	entry.mu.Lock()
	expired := entry.job.Status != JobRunning && r.now().After(entry.expiresAt)
	entry.mu.Unlock()
	if expired {
		r.entries.Delete(id)
		return nil, false
	}
	return entry, true
}

func (r *jobRegistry) finish(entry *jobEntry, result AutoAssignResult, err error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.job.Result = result
	entry.job.FinishedAt = r.now()
	entry.expiresAt = entry.job.FinishedAt.Add(r.ttl)
	switch {
	case err != nil:
		entry.job.Status = JobFailed
		entry.job.Error = err.Error()
	case result.Cancelled:
		entry.job.Status = JobCancelled
	default:
		entry.job.Status = JobSucceeded
	}
}

func (r *jobRegistry) cleanup() {
	now := r.now()
	r.entries.Range(func(id string, entry *jobEntry) bool {
		entry.mu.Lock()
		expired := entry.job.Status != JobRunning && now.After(entry.expiresAt)
		entry.mu.Unlock()
		if expired {
			r.entries.Delete(id)
		}
		return true
	})
}

// evictOne drops the oldest finished job. Running jobs are never evicted.
func (r *jobRegistry) evictOne() {
	var (
		oldestID string
		oldest   time.Time
	)
	r.entries.Range(func(id string, entry *jobEntry) bool {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if entry.job.Status == JobRunning {
			return true
		}
		if oldestID == "" || entry.job.FinishedAt.Before(oldest) {
			oldestID, oldest = id, entry.job.FinishedAt
		}
		return true
	})
	if oldestID != "" {
		r.entries.Delete(oldestID)
	}
}

// StartJob runs req in the background and returns the job as started. The run
// outlives ctx; CancelJob stops it.
func (s *AutoAssignService) StartJob(ctx context.Context, req AutoAssignRequest) (Job, error) {
	if s == nil || s.store == nil || s.roster == nil || s.ledger == nil {
		return Job{}, fmt.Errorf("AutoAssignService is not configured")
	}
	if req.Strategy == "" {
		req.Strategy = planner.FillRooms
	}
	if vErr := validateAutoAssign(req); vErr.HasErrors() {
		return Job{}, vErr
	}

	id := s.idGenerator()
	if id == "" {
		return Job{}, fmt.Errorf("AutoAssignService: id generator returned an empty id")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	entry := &jobEntry{
		job: Job{
			ID:        id,
			Status:    JobRunning,
			Request:   req,
			StartedAt: s.now(),
		},
		cancel: cancel,
	}
	s.jobs.add(entry)
	s.loggerWith(ctx, "StartJob", "job_id", id, "strategy", string(req.Strategy)).InfoContext(ctx, "auto-assign job started")

	go func() {
		defer cancel()
		result, err := s.Run(runCtx, req)
		s.jobs.finish(entry, result, err)
	}()

	return entry.snapshot(), nil
}

// Job returns the current state of a job. Finished jobs are kept until their
// retention expires.
func (s *AutoAssignService) Job(ctx context.Context, id string) (Job, error) {
	if s == nil || s.jobs == nil {
		return Job{}, fmt.Errorf("AutoAssignService is not configured")
	}
	entry, ok := s.jobs.get(id)
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return entry.snapshot(), nil
}

// CancelJob asks a running job to stop submitting proposals. Cancelling a
// finished job is a no-op.
func (s *AutoAssignService) CancelJob(ctx context.Context, id string) (Job, error) {
	if s == nil || s.jobs == nil {
		return Job{}, fmt.Errorf("AutoAssignService is not configured")
	}
	entry, ok := s.jobs.get(id)
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	if !entry.finished() {
		entry.cancel()
		s.loggerWith(ctx, "CancelJob", "job_id", id).InfoContext(ctx, "auto-assign job cancellation requested")
	}
	return entry.snapshot(), nil
}
