package orchestrator

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/genfinity/covergen/internal/approval"
	"github.com/genfinity/covergen/internal/branding"
	"github.com/genfinity/covergen/internal/compositor"
	"github.com/genfinity/covergen/internal/domain"
	"github.com/genfinity/covergen/internal/inference"
	"github.com/genfinity/covergen/internal/infra"
	"github.com/genfinity/covergen/internal/jobstore"
	"github.com/genfinity/covergen/internal/prompt"
	"github.com/genfinity/covergen/internal/storage"
)

// Config bounds what the orchestrator accepts and how long it waits.
type Config struct {
	MaxWidth         int
	MaxHeight        int
	InferenceTimeout time.Duration
	QueueCapacity    int
}

// AutomatedRequest is a validated automated-workflow submission.
type AutomatedRequest struct {
	Title          string
	Subtitle       string
	ClientID       string
	Size           domain.TargetSize
	IdempotencyKey string
}

// ManualRequest is a validated manual-workflow submission.
type ManualRequest struct {
	Title          string
	Subtitle       string
	SelectedAssets []string
	CustomPrompt   string
	Size           domain.TargetSize
	IdempotencyKey string
}

// Orchestrator turns submissions into tracked jobs and drives each one
// through the state machine. Submissions and status queries are
// non-blocking; the per-job pipeline contends for a single serialized
// inference slot (the Run loop), while composition and storage handoff run
// concurrently across jobs.
type Orchestrator struct {
	cfg        Config
	store      *jobstore.Store
	resolver   *branding.Resolver
	engine     inference.Engine
	compositor *compositor.Compositor
	backend    storage.Backend
	watermark  image.Image
	logger     infra.Logger

	// submitMu makes the capacity check and enqueue atomic so the FIFO
	// channel send never blocks.
	submitMu sync.Mutex
	queue    chan string

	gate *approval.Gate

	// artifacts holds composed covers for manual jobs awaiting a decision.
	artifactMu sync.Mutex
	artifacts  map[string]storage.Cover
}

// New wires an orchestrator. watermark may be nil for unwatermarked
// deployments.
func New(cfg Config, store *jobstore.Store, resolver *branding.Resolver, engine inference.Engine, comp *compositor.Compositor, backend storage.Backend, watermark image.Image, logger infra.Logger) *Orchestrator {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 128
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 120 * time.Second
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 4096
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 4096
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		gate:       approval.NewGate(store),
		resolver:   resolver,
		engine:     engine,
		compositor: comp,
		backend:    backend,
		watermark:  watermark,
		logger:     logger,
		queue:      make(chan string, cfg.QueueCapacity),
		artifacts:  make(map[string]storage.Cover),
	}
}

// SubmitAutomated validates and registers an automated job.
func (o *Orchestrator) SubmitAutomated(req AutomatedRequest) (string, error) {
	if err := o.validate(req.Title, req.Size); err != nil {
		return "", err
	}
	return o.enqueue(domain.Job{
		Workflow:       domain.WorkflowAutomated,
		Title:          req.Title,
		Subtitle:       req.Subtitle,
		ClientID:       req.ClientID,
		TargetSize:     req.Size,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// SubmitManual validates and registers a manual job.
func (o *Orchestrator) SubmitManual(req ManualRequest) (string, error) {
	if err := o.validate(req.Title, req.Size); err != nil {
		return "", err
	}
	return o.enqueue(domain.Job{
		Workflow:       domain.WorkflowManual,
		Title:          req.Title,
		Subtitle:       req.Subtitle,
		SelectedAssets: req.SelectedAssets,
		CustomPrompt:   req.CustomPrompt,
		TargetSize:     req.Size,
		IdempotencyKey: req.IdempotencyKey,
	})
}

func (o *Orchestrator) validate(title string, size domain.TargetSize) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("%w: size must be positive, got %s", domain.ErrValidation, size)
	}
	if size.Width > o.cfg.MaxWidth || size.Height > o.cfg.MaxHeight {
		return fmt.Errorf("%w: size %s exceeds maximum %dx%d", domain.ErrValidation, size, o.cfg.MaxWidth, o.cfg.MaxHeight)
	}
	return nil
}

func (o *Orchestrator) enqueue(spec domain.Job) (string, error) {
	o.submitMu.Lock()
	defer o.submitMu.Unlock()
	// A dedupe hit enqueues nothing, so it must not be turned away by a
	// full queue.
	if existingID, ok := o.store.Lookup(spec.IdempotencyKey); ok {
		return existingID, nil
	}
	if len(o.queue) == cap(o.queue) {
		return "", domain.ErrQueueFull
	}
	jobID, created, err := o.store.Create(spec)
	if err != nil {
		return "", err
	}
	if created {
		o.queue <- jobID
		o.logger.Info().Str("job_id", jobID).Str("workflow", string(spec.Workflow)).Str("size", spec.TargetSize.String()).Msg("job queued")
	}
	return jobID, nil
}

// GetStatus returns a snapshot of the job.
func (o *Orchestrator) GetStatus(jobID string) (domain.Job, error) {
	return o.store.Get(jobID)
}

// Run drains the FIFO queue, holding the single inference slot. Only one
// inference call is in flight system-wide; jobs take the slot in submission
// order. Run returns when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info().Msg("orchestrator started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case jobID := <-o.queue:
			o.process(ctx, jobID)
		}
	}
}

func (o *Orchestrator) process(ctx context.Context, jobID string) {
	job, err := o.store.Transition(jobID,
		[]domain.JobStatus{domain.JobStatusQueued},
		domain.JobStatusGenerating, jobstore.TransitionPayload{})
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("job not in queued state, skipping")
		return
	}

	desc := o.brandingFor(job)
	built := prompt.Build(prompt.Input{
		Title:        job.Title,
		ClientID:     job.ClientID,
		CustomPrompt: job.CustomPrompt,
	})

	canvas, err := o.infer(ctx, job, desc, built)
	if err != nil {
		return
	}

	// Composition and finalize are off the inference slot so the next job
	// can start generating immediately.
	go o.finish(ctx, job, desc, built, canvas)
}

func (o *Orchestrator) brandingFor(job domain.Job) *branding.Descriptor {
	if job.Workflow == domain.WorkflowManual {
		if len(job.SelectedAssets) == 0 {
			return nil
		}
		return &branding.Descriptor{AssetName: job.SelectedAssets[0], BlendWeight: branding.DefaultBlendWeight}
	}
	desc, ok := o.resolver.Resolve(job.ClientID)
	if !ok {
		// A miss is normal: generation proceeds unbranded.
		return nil
	}
	return &desc
}

type inferOutcome struct {
	canvas image.Image
	err    error
}

// infer invokes the engine under the configured deadline. On timeout the
// job fails with inference_timeout and the underlying call is abandoned,
// not forcibly cancelled.
func (o *Orchestrator) infer(ctx context.Context, job domain.Job, desc *branding.Descriptor, built string) (image.Image, error) {
	results := make(chan inferOutcome, 1)
	callCtx := context.WithoutCancel(ctx)
	go func() {
		canvas, err := o.engine.Generate(callCtx, inference.Request{
			Prompt:         built,
			NegativePrompt: prompt.Negative,
			Branding:       desc,
			Width:          job.TargetSize.Width,
			Height:         job.TargetSize.Height,
		})
		results <- inferOutcome{canvas: canvas, err: err}
	}()

	timer := time.NewTimer(o.cfg.InferenceTimeout)
	defer timer.Stop()
	select {
	case out := <-results:
		if out.err != nil {
			o.fail(job.ID, domain.ErrorKindInferenceFailure, out.err.Error())
			return nil, out.err
		}
		return out.canvas, nil
	case <-timer.C:
		err := fmt.Errorf("inference exceeded %s", o.cfg.InferenceTimeout)
		o.fail(job.ID, domain.ErrorKindInferenceTimeout, err.Error())
		return nil, err
	case <-ctx.Done():
		o.fail(job.ID, domain.ErrorKindInferenceFailure, "shutdown during generation")
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) finish(ctx context.Context, job domain.Job, desc *branding.Descriptor, built string, canvas image.Image) {
	res, err := o.compositor.Compose(compositor.Request{
		Canvas:     canvas,
		TargetSize: job.TargetSize,
		Watermark:  o.watermark,
		Title:      job.Title,
		Subtitle:   job.Subtitle,
	})
	if err != nil {
		o.fail(job.ID, domain.ErrorKindComposition, err.Error())
		return
	}
	data, err := compositor.EncodePNG(res)
	if err != nil {
		o.fail(job.ID, domain.ErrorKindComposition, err.Error())
		return
	}

	cover := storage.Cover{
		Data:     data,
		Title:    job.Title,
		Subtitle: job.Subtitle,
		ClientID: job.ClientID,
		Width:    job.TargetSize.Width,
		Height:   job.TargetSize.Height,
		Params:   generationParams(desc, built),
	}

	if job.Workflow == domain.WorkflowManual {
		o.holdArtifact(job.ID, cover)
		if _, err := o.store.Transition(job.ID,
			[]domain.JobStatus{domain.JobStatusGenerating},
			domain.JobStatusAwaitingApproval,
			jobstore.TransitionPayload{PreviewRef: "preview/" + job.ID}); err != nil {
			o.dropArtifact(job.ID)
			o.logger.Error().Err(err).Str("job_id", job.ID).Msg("preview transition failed")
		}
		return
	}

	o.persist(ctx, job.ID, domain.JobStatusGenerating, cover)
}

// persist hands the cover to the storage backend and completes the job. A
// storage failure does not fail the job: it completes flagged as pending
// persistence so an external mechanism can retry the write.
func (o *Orchestrator) persist(ctx context.Context, jobID string, from domain.JobStatus, cover storage.Cover) {
	ref, err := o.backend.SaveCover(ctx, cover)
	payload := jobstore.TransitionPayload{ResultRef: ref}
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("storage handoff failed")
		payload = jobstore.TransitionPayload{PendingPersistence: true}
	}
	if _, terr := o.store.Transition(jobID,
		[]domain.JobStatus{from},
		domain.JobStatusCompleted, payload); terr != nil {
		o.logger.Error().Err(terr).Str("job_id", jobID).Msg("completion transition failed")
		return
	}
	o.logger.Info().Str("job_id", jobID).Str("result_ref", ref).Msg("job completed")
}

// Approve finalizes a manual job: gate decision, storage handoff, completed.
func (o *Orchestrator) Approve(ctx context.Context, jobID string) (domain.Job, error) {
	job, err := o.gate.Approve(jobID)
	if err != nil {
		return job, err
	}
	cover, ok := o.takeArtifact(jobID)
	if !ok {
		// Artifact lost (e.g. restart between preview and decision).
		o.fail(jobID, domain.ErrorKindStorage, "approved artifact no longer held")
		return o.store.Get(jobID)
	}
	o.persist(ctx, jobID, domain.JobStatusApproved, cover)
	return o.store.Get(jobID)
}

// Reject records the rejection and discards the held artifact; nothing is
// written to storage.
func (o *Orchestrator) Reject(jobID string) (domain.Job, error) {
	job, err := o.gate.Reject(jobID)
	if err != nil {
		return job, err
	}
	o.dropArtifact(jobID)
	o.logger.Info().Str("job_id", jobID).Msg("job rejected, artifact discarded")
	return job, nil
}

func (o *Orchestrator) fail(jobID string, kind domain.ErrorKind, msg string) {
	nonTerminal := []domain.JobStatus{
		domain.JobStatusQueued,
		domain.JobStatusGenerating,
		domain.JobStatusAwaitingApproval,
		domain.JobStatusApproved,
	}
	if _, err := o.store.Transition(jobID, nonTerminal, domain.JobStatusFailed,
		jobstore.TransitionPayload{Error: &domain.JobError{Kind: kind, Message: msg}}); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("failure transition rejected")
		return
	}
	o.dropArtifact(jobID)
	o.logger.Warn().Str("job_id", jobID).Str("kind", string(kind)).Str("reason", msg).Msg("job failed")
}

func (o *Orchestrator) holdArtifact(jobID string, cover storage.Cover) {
	o.artifactMu.Lock()
	o.artifacts[jobID] = cover
	o.artifactMu.Unlock()
}

func (o *Orchestrator) takeArtifact(jobID string) (storage.Cover, bool) {
	o.artifactMu.Lock()
	defer o.artifactMu.Unlock()
	cover, ok := o.artifacts[jobID]
	if ok {
		delete(o.artifacts, jobID)
	}
	return cover, ok
}

func (o *Orchestrator) dropArtifact(jobID string) {
	o.artifactMu.Lock()
	delete(o.artifacts, jobID)
	o.artifactMu.Unlock()
}

func generationParams(desc *branding.Descriptor, built string) map[string]any {
	params := map[string]any{
		"prompt":          built,
		"negative_prompt": prompt.Negative,
	}
	if desc != nil {
		params["branding_asset"] = desc.AssetName
		params["blend_weight"] = desc.BlendWeight
	}
	return params
}
