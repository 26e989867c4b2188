package inference

import (
	"context"
	"image"

	"github.com/genfinity/covergen/internal/branding"
)

// Request describes one generation call. Width and Height are hints: the
// engine renders at its model-native resolution near the hint and the
// compositor is responsible for the exact output dimensions.
type Request struct {
	Prompt         string
	NegativePrompt string
	Branding       *branding.Descriptor
	Width          int
	Height         int
	Seed           *int64
}

// Engine is the external image-synthesis collaborator. Implementations are
// treated as stateful and non-reentrant: the orchestrator guarantees at most
// one Generate call is in flight system-wide.
type Engine interface {
	Generate(ctx context.Context, req Request) (image.Image, error)
}
