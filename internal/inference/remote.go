package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"
	"time"
)

// RemoteOptions configures a RemoteEngine.
type RemoteOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Steps      int
	Guidance   float64
}

// RemoteEngine calls a diffusion backend over HTTP. The backend exposes a
// single generation endpoint accepting prompt, dimensions and an optional
// fine-tune reference, and returns the rendered canvas as base64 PNG.
type RemoteEngine struct {
	httpClient *http.Client
	baseURL    string
	token      string
	steps      int
	guidance   float64
}

// NewRemoteEngine builds a RemoteEngine from options, applying defaults for
// anything unset.
func NewRemoteEngine(opts RemoteOptions) *RemoteEngine {
	base := strings.TrimRight(opts.BaseURL, "/")
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	steps := opts.Steps
	if steps <= 0 {
		steps = 30
	}
	guidance := opts.Guidance
	if guidance <= 0 {
		guidance = 7.5
	}
	return &RemoteEngine{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIKey),
		steps:      steps,
		guidance:   guidance,
	}
}

type remoteFineTune struct {
	Asset  string  `json:"asset"`
	Weight float64 `json:"weight"`
}

type remoteRequest struct {
	Prompt         string          `json:"prompt"`
	NegativePrompt string          `json:"negative_prompt,omitempty"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	Steps          int             `json:"steps"`
	GuidanceScale  float64         `json:"guidance_scale"`
	FineTune       *remoteFineTune `json:"fine_tune,omitempty"`
	Seed           *int64          `json:"seed,omitempty"`
}

type remoteResponse struct {
	Image   string `json:"image"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Generate posts the request and decodes the returned canvas.
func (e *RemoteEngine) Generate(ctx context.Context, req Request) (image.Image, error) {
	if e == nil || e.baseURL == "" {
		return nil, errors.New("inference: remote engine not configured")
	}
	payload := remoteRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          e.steps,
		GuidanceScale:  e.guidance,
		Seed:           req.Seed,
	}
	if req.Branding != nil {
		payload.FineTune = &remoteFineTune{Asset: req.Branding.AssetName, Weight: req.Branding.BlendWeight}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("inference: http %d", resp.StatusCode)
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Message != "" {
			return nil, fmt.Errorf("inference: %s (%s)", out.Message, out.Code)
		}
		return nil, fmt.Errorf("inference: http %d", resp.StatusCode)
	}
	if strings.TrimSpace(out.Image) == "" {
		return nil, errors.New("inference: empty canvas in response")
	}
	raw, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("inference: decode canvas: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("inference: decode png: %w", err)
	}
	return img, nil
}
