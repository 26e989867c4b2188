package approval

import (
	"errors"

	"github.com/genfinity/covergen/internal/domain"
	"github.com/genfinity/covergen/internal/jobstore"
)

// Gate enforces the single-decision rule for manually reviewed jobs. A job
// in awaiting_approval accepts exactly one decision; the compare-and-swap in
// the job store makes concurrent duplicates lose cleanly.
type Gate struct {
	store *jobstore.Store
}

// NewGate returns a Gate over the given store.
func NewGate(store *jobstore.Store) *Gate {
	return &Gate{store: store}
}

// Approve moves an awaiting_approval job to approved. A second decision
// fails with domain.ErrAlreadyDecided and the first decision stands;
// decisions against jobs in any other state fail with
// domain.ErrInvalidTransition.
func (g *Gate) Approve(jobID string) (domain.Job, error) {
	return g.decide(jobID, domain.JobStatusApproved)
}

// Reject moves an awaiting_approval job to rejected, a terminal state.
func (g *Gate) Reject(jobID string) (domain.Job, error) {
	return g.decide(jobID, domain.JobStatusRejected)
}

func (g *Gate) decide(jobID string, to domain.JobStatus) (domain.Job, error) {
	job, err := g.store.Transition(jobID, []domain.JobStatus{domain.JobStatusAwaitingApproval}, to, jobstore.TransitionPayload{})
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrInvalidTransition) {
		return domain.Job{}, err
	}
	current, getErr := g.store.Get(jobID)
	if getErr != nil {
		return domain.Job{}, getErr
	}
	if current.Workflow == domain.WorkflowManual && decided(current.Status) {
		return current, domain.ErrAlreadyDecided
	}
	return domain.Job{}, err
}

func decided(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusApproved, domain.JobStatusCompleted, domain.JobStatusRejected:
		return true
	}
	return false
}
