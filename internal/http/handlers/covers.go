package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/genfinity/covergen/internal/domain"
	"github.com/genfinity/covergen/internal/orchestrator"
)

type automatedRequest struct {
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	Size           string `json:"size"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type manualRequest struct {
	Title          string   `json:"title"`
	Subtitle       string   `json:"subtitle,omitempty"`
	SelectedAssets []string `json:"selected_assets,omitempty"`
	CustomPrompt   string   `json:"custom_prompt,omitempty"`
	Size           string   `json:"size"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (a *App) SubmitAutomated(w http.ResponseWriter, r *http.Request) {
	var req automatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	size, err := parseSize(req.Size)
	if err != nil {
		a.error(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	jobID, err := a.Service.SubmitAutomated(orchestrator.AutomatedRequest{
		Title:          strings.TrimSpace(req.Title),
		Subtitle:       strings.TrimSpace(req.Subtitle),
		ClientID:       req.ClientID,
		Size:           size,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		a.submitError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{JobID: jobID, Status: string(domain.JobStatusQueued)})
}

func (a *App) SubmitManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	size, err := parseSize(req.Size)
	if err != nil {
		a.error(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	jobID, err := a.Service.SubmitManual(orchestrator.ManualRequest{
		Title:          strings.TrimSpace(req.Title),
		Subtitle:       strings.TrimSpace(req.Subtitle),
		SelectedAssets: req.SelectedAssets,
		CustomPrompt:   req.CustomPrompt,
		Size:           size,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		a.submitError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{JobID: jobID, Status: string(domain.JobStatusQueued)})
}

func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Service.GetStatus(jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, jobSnapshot(job))
}

func (a *App) Approve(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Service.Approve(r.Context(), jobID)
	a.decision(w, job, err)
}

func (a *App) Reject(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Service.Reject(jobID)
	a.decision(w, job, err)
}

func (a *App) decision(w http.ResponseWriter, job domain.Job, err error) {
	switch {
	case err == nil:
		a.json(w, http.StatusOK, jobSnapshot(job))
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrAlreadyDecided):
		a.json(w, http.StatusConflict, map[string]any{
			"error":   "already_decided",
			"message": "a decision was already recorded for this job",
			"job":     jobSnapshot(job),
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		a.error(w, http.StatusInternalServerError, "internal", "decision failed")
	}
}

func (a *App) submitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		a.error(w, http.StatusServiceUnavailable, "queue_full", "generation queue is full, retry later")
	default:
		a.Logger.Error().Err(err).Msg("submit failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
	}
}

func jobSnapshot(job domain.Job) map[string]any {
	out := map[string]any{
		"job_id":     job.ID,
		"workflow":   string(job.Workflow),
		"status":     string(job.Status),
		"title":      job.Title,
		"size":       job.TargetSize.String(),
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
	if job.Subtitle != "" {
		out["subtitle"] = job.Subtitle
	}
	if job.ClientID != "" {
		out["client_id"] = job.ClientID
	}
	if job.ResultRef != "" {
		out["result_ref"] = job.ResultRef
	}
	if job.PreviewRef != "" {
		out["preview_ref"] = job.PreviewRef
	}
	if job.Error != nil {
		out["error"] = map[string]string{
			"kind":    string(job.Error.Kind),
			"message": job.Error.Message,
		}
	}
	if job.PendingPersistence {
		out["pending_persistence"] = true
	}
	return out
}

// parseSize accepts "WIDTHxHEIGHT", e.g. "1800x900".
func parseSize(s string) (domain.TargetSize, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return domain.TargetSize{}, fmt.Errorf("size is required")
	}
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return domain.TargetSize{}, fmt.Errorf("size must be WIDTHxHEIGHT, got %q", s)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return domain.TargetSize{}, fmt.Errorf("invalid width %q", parts[0])
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return domain.TargetSize{}, fmt.Errorf("invalid height %q", parts[1])
	}
	return domain.TargetSize{Width: width, Height: height}, nil
}
