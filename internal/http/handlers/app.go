package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/genfinity/covergen/internal/domain"
	"github.com/genfinity/covergen/internal/infra"
	"github.com/genfinity/covergen/internal/orchestrator"
)

// CoverService is the slice of the orchestrator the HTTP surface needs.
type CoverService interface {
	SubmitAutomated(req orchestrator.AutomatedRequest) (string, error)
	SubmitManual(req orchestrator.ManualRequest) (string, error)
	GetStatus(jobID string) (domain.Job, error)
	Approve(ctx context.Context, jobID string) (domain.Job, error)
	Reject(jobID string) (domain.Job, error)
}

// App bundles handler dependencies.
type App struct {
	Service CoverService
	Logger  infra.Logger
}

// NewApp creates the handler container.
func NewApp(service CoverService, logger infra.Logger) *App {
	return &App{Service: service, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
