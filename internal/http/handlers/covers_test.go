package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/genfinity/covergen/internal/domain"
	"github.com/genfinity/covergen/internal/http/handlers"
	"github.com/genfinity/covergen/internal/http/httpapi"
	"github.com/genfinity/covergen/internal/orchestrator"
)

type stubService struct {
	jobs      map[string]domain.Job
	submitErr error
	decideErr error
	lastAuto  orchestrator.AutomatedRequest
	lastMan   orchestrator.ManualRequest
}

func newStubService() *stubService {
	return &stubService{jobs: map[string]domain.Job{}}
}

func (s *stubService) SubmitAutomated(req orchestrator.AutomatedRequest) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.lastAuto = req
	return "job-auto-1", nil
}

func (s *stubService) SubmitManual(req orchestrator.ManualRequest) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.lastMan = req
	return "job-man-1", nil
}

func (s *stubService) GetStatus(jobID string) (domain.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return job, nil
}

func (s *stubService) Approve(ctx context.Context, jobID string) (domain.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	if s.decideErr != nil {
		return job, s.decideErr
	}
	job.Status = domain.JobStatusCompleted
	job.ResultRef = "covers/" + jobID + ".png"
	s.jobs[jobID] = job
	return job, nil
}

func (s *stubService) Reject(jobID string) (domain.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	if s.decideErr != nil {
		return job, s.decideErr
	}
	job.Status = domain.JobStatusRejected
	s.jobs[jobID] = job
	return job, nil
}

func newServer(t *testing.T, svc *stubService) *httptest.Server {
	t.Helper()
	app := handlers.NewApp(svc, zerolog.Nop())
	srv := httptest.NewServer(httpapi.NewRouter(app, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func TestSubmitAutomatedAccepted(t *testing.T) {
	svc := newStubService()
	srv := newServer(t, svc)

	resp, payload := post(t, srv.URL+"/v1/covers/automated",
		`{"title":"Bitcoin Hits 100k","client_id":"bitcoin","size":"1800x900"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["job_id"] != "job-auto-1" || payload["status"] != "queued" {
		t.Fatalf("payload = %v", payload)
	}
	if svc.lastAuto.Size.Width != 1800 || svc.lastAuto.Size.Height != 900 {
		t.Fatalf("parsed size = %+v", svc.lastAuto.Size)
	}
}

func TestSubmitManualAccepted(t *testing.T) {
	svc := newStubService()
	srv := newServer(t, svc)

	resp, payload := post(t, srv.URL+"/v1/covers/manual",
		`{"title":"Deep Dive","selected_assets":["hedera"],"custom_prompt":"dark lattice","size":"1920x1080"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["job_id"] != "job-man-1" {
		t.Fatalf("payload = %v", payload)
	}
	if len(svc.lastMan.SelectedAssets) != 1 || svc.lastMan.SelectedAssets[0] != "hedera" {
		t.Fatalf("assets = %v", svc.lastMan.SelectedAssets)
	}
	if svc.lastMan.CustomPrompt != "dark lattice" {
		t.Fatalf("custom prompt = %q", svc.lastMan.CustomPrompt)
	}
}

func TestSubmitRejectsBadSize(t *testing.T) {
	srv := newServer(t, newStubService())
	for _, size := range []string{"", "1800", "1800x", "wide x tall", "1800x900x3"} {
		resp, payload := post(t, srv.URL+"/v1/covers/automated",
			fmt.Sprintf(`{"title":"t","size":%q}`, size))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("size %q: status = %d", size, resp.StatusCode)
		}
		if payload["error"] != "validation" {
			t.Fatalf("size %q: payload = %v", size, payload)
		}
	}
}

func TestSubmitValidationError(t *testing.T) {
	svc := newStubService()
	svc.submitErr = fmt.Errorf("%w: title is required", domain.ErrValidation)
	srv := newServer(t, svc)

	resp, payload := post(t, srv.URL+"/v1/covers/automated", `{"title":"","size":"600x300"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["error"] != "validation" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	svc := newStubService()
	svc.submitErr = domain.ErrQueueFull
	srv := newServer(t, svc)

	resp, payload := post(t, srv.URL+"/v1/covers/automated", `{"title":"t","size":"600x300"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["error"] != "queue_full" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestStatusSnapshot(t *testing.T) {
	svc := newStubService()
	svc.jobs["job-7"] = domain.Job{
		ID:         "job-7",
		Workflow:   domain.WorkflowAutomated,
		Title:      "Bitcoin Hits 100k",
		ClientID:   "bitcoin",
		TargetSize: domain.TargetSize{Width: 1800, Height: 900},
		Status:     domain.JobStatusCompleted,
		ResultRef:  "covers/job-7.png",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	srv := newServer(t, svc)

	resp, err := http.Get(srv.URL + "/v1/covers/status/job-7")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload["status"] != "completed" || payload["size"] != "1800x900" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["result_ref"] != "covers/job-7.png" {
		t.Fatalf("payload = %v", payload)
	}
	if _, ok := payload["preview_ref"]; ok {
		t.Fatal("empty preview_ref must be omitted")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	srv := newServer(t, newStubService())
	resp, err := http.Get(srv.URL + "/v1/covers/status/ghost")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestApproveAndAlreadyDecided(t *testing.T) {
	svc := newStubService()
	svc.jobs["job-9"] = domain.Job{
		ID:       "job-9",
		Workflow: domain.WorkflowManual,
		Title:    "Preview",
		Status:   domain.JobStatusAwaitingApproval,
	}
	srv := newServer(t, svc)

	resp, payload := post(t, srv.URL+"/v1/covers/approve/job-9", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["status"] != "completed" {
		t.Fatalf("payload = %v", payload)
	}

	svc.decideErr = domain.ErrAlreadyDecided
	resp, payload = post(t, srv.URL+"/v1/covers/approve/job-9", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["error"] != "already_decided" {
		t.Fatalf("payload = %v", payload)
	}
	job, ok := payload["job"].(map[string]any)
	if !ok {
		t.Fatalf("conflict payload must embed the job snapshot: %v", payload)
	}
	if job["status"] != "completed" {
		t.Fatalf("embedded snapshot = %v", job)
	}
}

func TestRejectReturnsSnapshot(t *testing.T) {
	svc := newStubService()
	svc.jobs["job-3"] = domain.Job{
		ID:       "job-3",
		Workflow: domain.WorkflowManual,
		Title:    "Preview",
		Status:   domain.JobStatusAwaitingApproval,
	}
	srv := newServer(t, svc)

	resp, payload := post(t, srv.URL+"/v1/covers/reject/job-3", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["status"] != "rejected" {
		t.Fatalf("payload = %v", payload)
	}
	if _, ok := payload["result_ref"]; ok {
		t.Fatal("rejected job must not expose a result_ref")
	}
}

func TestDecisionOnWrongState(t *testing.T) {
	svc := newStubService()
	svc.jobs["job-4"] = domain.Job{
		ID:       "job-4",
		Workflow: domain.WorkflowManual,
		Status:   domain.JobStatusGenerating,
	}
	svc.decideErr = fmt.Errorf("%w: generating -> approved", domain.ErrInvalidTransition)
	srv := newServer(t, svc)

	resp, payload := post(t, srv.URL+"/v1/covers/approve/job-4", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["error"] != "invalid_transition" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t, newStubService())
	resp, err := http.Get(srv.URL + "/v1/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
