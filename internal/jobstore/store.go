package jobstore

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genfinity/covergen/internal/domain"
)

// TransitionPayload carries the fields a transition is allowed to set
// alongside the status change.
type TransitionPayload struct {
	ResultRef          string
	PreviewRef         string
	Error              *domain.JobError
	PendingPersistence bool
}

// Store is an in-memory, concurrency-safe registry of jobs. All reads return
// snapshot copies; jobs are mutated exclusively through Transition so no
// caller can observe a partially-updated record.
type Store struct {
	mu sync.Mutex
	// jobs and keys only grow; reclaiming terminal jobs and aged-out keys
	// is left to an external sweep, none runs in-process.
	jobs map[string]*domain.Job
	// idempotency key -> job id, valid for the retention window
	keys   map[string]string
	window time.Duration
	now    func() time.Time
}

// New creates a Store. window bounds how long an idempotency key maps
// resubmissions back to the original job.
func New(window time.Duration) *Store {
	return &Store{
		jobs:   make(map[string]*domain.Job),
		keys:   make(map[string]string),
		window: window,
		now:    time.Now,
	}
}

// Create registers a new job in the queued state and returns its id. When
// the submission carries an idempotency key already seen within the
// retention window, the existing job's id is returned with created=false
// and no new job is made.
func (s *Store) Create(spec domain.Job) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(spec.IdempotencyKey)
	if key != "" {
		if existingID, ok := s.keys[key]; ok {
			if existing, ok := s.jobs[existingID]; ok && s.now().Sub(existing.CreatedAt) < s.window {
				return existingID, false, nil
			}
			delete(s.keys, key)
		}
	}

	job := spec
	job.ID = uuid.NewString()
	job.Status = domain.JobStatusQueued
	job.ResultRef = ""
	job.PreviewRef = ""
	job.Error = nil
	job.PendingPersistence = false
	job.SelectedAssets = append([]string(nil), spec.SelectedAssets...)
	job.CreatedAt = s.now()
	job.UpdatedAt = job.CreatedAt

	s.jobs[job.ID] = &job
	if key != "" {
		s.keys[key] = job.ID
	}
	return job.ID, true, nil
}

// Lookup returns the job id recorded for an idempotency key, when the key
// is known and its job is still within the retention window.
func (s *Store) Lookup(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	if !ok {
		return "", false
	}
	job, ok := s.jobs[id]
	if !ok || s.now().Sub(job.CreatedAt) >= s.window {
		return "", false
	}
	return id, true
}

// Get returns a snapshot of the job or domain.ErrNotFound.
func (s *Store) Get(jobID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return snapshot(job), nil
}

// Transition atomically moves a job from any status in from to the given
// status and applies the payload. When the job's current status is not a
// member of from, domain.ErrInvalidTransition is returned and the job is
// left untouched. The post-transition snapshot is returned on success.
func (s *Store) Transition(jobID string, from []domain.JobStatus, to domain.JobStatus, payload TransitionPayload) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	if !statusIn(job.Status, from) {
		return domain.Job{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, to)
	}

	job.Status = to
	if payload.ResultRef != "" {
		job.ResultRef = payload.ResultRef
	}
	if payload.PreviewRef != "" {
		job.PreviewRef = payload.PreviewRef
	}
	if payload.Error != nil {
		e := *payload.Error
		job.Error = &e
	}
	if payload.PendingPersistence {
		job.PendingPersistence = true
	}
	job.UpdatedAt = s.now()
	return snapshot(job), nil
}

func statusIn(status domain.JobStatus, set []domain.JobStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func snapshot(job *domain.Job) domain.Job {
	out := *job
	out.SelectedAssets = append([]string(nil), job.SelectedAssets...)
	if job.Error != nil {
		e := *job.Error
		out.Error = &e
	}
	return out
}
