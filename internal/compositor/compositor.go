package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/genfinity/covergen/internal/domain"
)

// Error is a composition failure. Any internal step that would yield output
// dimensions other than the requested target surfaces one of these instead
// of silently returning a wrong-sized image.
type Error struct {
	Stage   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("compose %s: %s", e.Stage, e.Message)
}

// Style tunes the text overlay. Zero values fall back to defaults.
type Style struct {
	TitleColor    color.NRGBA
	SubtitleColor color.NRGBA
	ShadowOffset  int
}

// Request is the full input to one composition. Stateless; the canvas and
// watermark are not mutated.
type Request struct {
	Canvas     image.Image
	TargetSize domain.TargetSize
	// Watermark, when present, is alpha-composited as a full-canvas layer.
	Watermark image.Image
	Title     string
	Subtitle  string
	Style     Style
}

// Result is the composed cover at exactly the requested dimensions.
type Result struct {
	Image *image.NRGBA
}

// Compositor renders publishable covers from raw generated canvases. It is
// deterministic: identical requests produce identical pixels.
type Compositor struct {
	titleFont    *opentype.Font
	subtitleFont *opentype.Font
}

// New parses the embedded fonts and returns a ready Compositor.
func New() (*Compositor, error) {
	title, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("compositor: parse title font: %w", err)
	}
	subtitle, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("compositor: parse subtitle font: %w", err)
	}
	return &Compositor{titleFont: title, subtitleFont: subtitle}, nil
}

const (
	minTitleSize = 28
	// title may occupy at most this fraction of the target width
	maxTitleWidthFraction = 0.9
)

// Compose turns a raw canvas into the final cover. The fixed policy is:
//
//  1. center-crop the canvas to the target aspect ratio, then Catmull-Rom
//     resample to exactly the target dimensions;
//  2. alpha-composite the watermark (scaled to the full target size,
//     centered) over the base, preserving translucency of both layers;
//  3. render the title with a drop shadow, font size auto-fit to the
//     available width, baseline anchored in the lower third; the subtitle,
//     when present, renders below at reduced size and weight.
func (c *Compositor) Compose(req Request) (Result, error) {
	w, h := req.TargetSize.Width, req.TargetSize.Height
	if w <= 0 || h <= 0 {
		return Result{}, &Error{Stage: "validate", Message: fmt.Sprintf("non-positive target size %s", req.TargetSize)}
	}
	if req.Canvas == nil {
		return Result{}, &Error{Stage: "validate", Message: "nil canvas"}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	srcRect := coverCrop(req.Canvas.Bounds(), w, h)
	draw.CatmullRom.Scale(dst, dst.Bounds(), req.Canvas, srcRect, draw.Src, nil)
	if got := dst.Bounds(); got.Dx() != w || got.Dy() != h {
		return Result{}, &Error{Stage: "resize", Message: fmt.Sprintf("got %dx%d, want %s", got.Dx(), got.Dy(), req.TargetSize)}
	}

	if req.Watermark != nil {
		overlay := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(overlay, overlay.Bounds(), req.Watermark, req.Watermark.Bounds(), draw.Src, nil)
		if got := overlay.Bounds(); got.Dx() != w || got.Dy() != h {
			return Result{}, &Error{Stage: "watermark", Message: fmt.Sprintf("overlay %dx%d, want %s", got.Dx(), got.Dy(), req.TargetSize)}
		}
		// Over, never Src: an opaque overwrite would hide the generated
		// content underneath the overlay.
		draw.Draw(dst, dst.Bounds(), overlay, image.Point{}, draw.Over)
	}

	if err := c.drawText(dst, req); err != nil {
		return Result{}, err
	}

	if got := dst.Bounds(); got.Dx() != w || got.Dy() != h {
		return Result{}, &Error{Stage: "finalize", Message: fmt.Sprintf("got %dx%d, want %s", got.Dx(), got.Dy(), req.TargetSize)}
	}
	return Result{Image: dst}, nil
}

func (c *Compositor) drawText(dst *image.NRGBA, req Request) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil
	}
	w, h := req.TargetSize.Width, req.TargetSize.Height
	style := req.Style
	if style.TitleColor == (color.NRGBA{}) {
		style.TitleColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	if style.SubtitleColor == (color.NRGBA{}) {
		style.SubtitleColor = color.NRGBA{R: 235, G: 235, B: 235, A: 255}
	}
	if style.ShadowOffset <= 0 {
		style.ShadowOffset = 3
	}

	maxWidth := fixed.I(int(float64(w) * maxTitleWidthFraction))
	titleFace, titleWidth, err := c.fitFace(c.titleFont, title, w/12, maxWidth)
	if err != nil {
		return &Error{Stage: "title", Message: err.Error()}
	}
	defer titleFace.Close()

	// The title baseline sits at 3/4 of the height regardless of how long
	// the title is.
	titleX := (fixed.I(w) - titleWidth) / 2
	titleY := fixed.I(h * 3 / 4)
	shadow := color.NRGBA{A: 128}
	drawString(dst, titleFace, title, titleX+fixed.I(style.ShadowOffset), titleY+fixed.I(style.ShadowOffset), shadow)
	drawString(dst, titleFace, title, titleX, titleY, style.TitleColor)

	subtitle := strings.TrimSpace(req.Subtitle)
	if subtitle == "" {
		return nil
	}
	metrics := titleFace.Metrics()
	subFace, subWidth, err := c.fitFace(c.subtitleFont, subtitle, w/18, maxWidth)
	if err != nil {
		return &Error{Stage: "subtitle", Message: err.Error()}
	}
	defer subFace.Close()
	subX := (fixed.I(w) - subWidth) / 2
	subY := titleY + metrics.Descent + subFace.Metrics().Ascent + fixed.I(8)
	drawString(dst, subFace, subtitle, subX+fixed.I(style.ShadowOffset), subY+fixed.I(style.ShadowOffset), shadow)
	drawString(dst, subFace, subtitle, subX, subY, style.SubtitleColor)
	return nil
}

// fitFace walks the font size down from the given upper bound until the text
// measures within maxWidth, bottoming out at minTitleSize.
func (c *Compositor) fitFace(f *opentype.Font, text string, upper int, maxWidth fixed.Int26_6) (font.Face, fixed.Int26_6, error) {
	if upper < minTitleSize {
		upper = minTitleSize
	}
	for size := upper; ; size -= 2 {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, 0, err
		}
		width := font.MeasureString(face, text)
		if width <= maxWidth || size <= minTitleSize {
			return face, width, nil
		}
		face.Close()
	}
}

func drawString(dst *image.NRGBA, face font.Face, text string, x, y fixed.Int26_6, col color.NRGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: y},
	}
	d.DrawString(text)
}

// coverCrop returns the centered sub-rectangle of src whose aspect ratio
// matches w:h, so a single resample lands exactly on the target.
func coverCrop(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw <= 0 || sh <= 0 {
		return src
	}
	// compare sw/sh with w/h without floats
	if sw*h > w*sh {
		// source is wider: crop width
		cw := sh * w / h
		x0 := src.Min.X + (sw-cw)/2
		return image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	}
	// source is taller (or equal): crop height
	ch := sw * h / w
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
}

// EncodePNG serializes a composed cover for the storage handoff.
func EncodePNG(res Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, res.Image); err != nil {
		return nil, fmt.Errorf("compositor: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
