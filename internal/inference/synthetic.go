package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
)

// SyntheticEngine renders deterministic placeholder canvases. It stands in
// for the diffusion backend in development and tests: same request, same
// pixels, rendered at a model-native resolution (dimensions snapped down to
// multiples of 64) so the compositor's exact-resize path is exercised.
type SyntheticEngine struct{}

// NewSyntheticEngine returns a SyntheticEngine.
func NewSyntheticEngine() *SyntheticEngine { return &SyntheticEngine{} }

// Generate renders a seeded gradient-and-stripe canvas.
func (e *SyntheticEngine) Generate(ctx context.Context, req Request) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := snapDown(req.Width)
	h := snapDown(req.Height)

	seed := deterministicSeed(req.Prompt, req.NegativePrompt, req.Seed, brandingKey(req), w, h)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := max(32, h/12)
	for y := 0; y < h; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, w, min(h, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for i := 0; i < max(w, h); i += max(16, w/32) {
		for y := 0; y < h; y++ {
			x := i + y
			if x >= w {
				break
			}
			img.Set(x, y, diagonal)
		}
	}
	return img, nil
}

// snapDown mimics a diffusion backend whose latent space works in 64px
// blocks: 1800x900 comes back as 1792x896.
func snapDown(v int) int {
	if v <= 0 {
		v = 1024
	}
	snapped := v / 64 * 64
	if snapped < 512 {
		snapped = 512
	}
	return snapped
}

func brandingKey(req Request) string {
	if req.Branding == nil {
		return ""
	}
	return fmt.Sprintf("%s@%.2f", req.Branding.AssetName, req.Branding.BlendWeight)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: parseHexByte(segment[0:2]),
		G: parseHexByte(segment[2:4]),
		B: parseHexByte(segment[4:6]),
		A: 255,
	}
}

func parseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}
