package compositor

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/genfinity/covergen/internal/domain"
)

func testCanvas(w, h int, fill color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{fill}, image.Point{}, draw.Src)
	return img
}

func mustCompositor(t *testing.T) *Compositor {
	t.Helper()
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestComposeExactDimensions(t *testing.T) {
	c := mustCompositor(t)
	cases := []struct {
		name           string
		canvasW, canvasH int
		target         domain.TargetSize
	}{
		{"model native to standard", 1792, 896, domain.TargetSize{Width: 1800, Height: 900}},
		{"hd", 1792, 1024, domain.TargetSize{Width: 1920, Height: 1080}},
		{"downscale", 4096, 4096, domain.TargetSize{Width: 600, Height: 300}},
		{"portrait source", 900, 1800, domain.TargetSize{Width: 1800, Height: 900}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := c.Compose(Request{
				Canvas:     testCanvas(tc.canvasW, tc.canvasH, color.NRGBA{R: 40, G: 60, B: 80, A: 255}),
				TargetSize: tc.target,
				Title:      "Bitcoin Hits 100k",
			})
			if err != nil {
				t.Fatalf("Compose: %v", err)
			}
			if got := res.Image.Bounds(); got.Dx() != tc.target.Width || got.Dy() != tc.target.Height {
				t.Fatalf("dimensions %dx%d, want %s", got.Dx(), got.Dy(), tc.target)
			}
		})
	}
}

func TestComposeInvalidInput(t *testing.T) {
	c := mustCompositor(t)
	if _, err := c.Compose(Request{Canvas: testCanvas(10, 10, color.NRGBA{A: 255}), TargetSize: domain.TargetSize{Width: 0, Height: 900}}); err == nil {
		t.Fatal("zero width must fail")
	}
	if _, err := c.Compose(Request{TargetSize: domain.TargetSize{Width: 100, Height: 100}}); err == nil {
		t.Fatal("nil canvas must fail")
	}
}

func TestWatermarkAlphaComposite(t *testing.T) {
	c := mustCompositor(t)
	target := domain.TargetSize{Width: 400, Height: 200}
	base := testCanvas(400, 200, color.NRGBA{R: 200, G: 0, B: 0, A: 255})
	// half-transparent blue watermark layer
	wm := testCanvas(400, 200, color.NRGBA{R: 0, G: 0, B: 200, A: 128})

	res, err := c.Compose(Request{Canvas: base, TargetSize: target, Watermark: wm})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	r, _, b, _ := res.Image.At(10, 10).RGBA()
	// True alpha blending keeps the red base visible under the blue layer.
	// An opaque overwrite would leave r == 0.
	if r == 0 {
		t.Fatal("watermark overwrote the canvas instead of alpha compositing")
	}
	if b == 0 {
		t.Fatal("watermark layer not composited")
	}
}

func TestWatermarkScaledToFullCanvas(t *testing.T) {
	c := mustCompositor(t)
	target := domain.TargetSize{Width: 300, Height: 150}
	base := testCanvas(300, 150, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	// small watermark scales up to cover the whole canvas
	wm := testCanvas(30, 15, color.NRGBA{R: 0, G: 255, B: 0, A: 255})

	res, err := c.Compose(Request{Canvas: base, TargetSize: target, Watermark: wm})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for _, p := range []image.Point{{0, 0}, {299, 0}, {0, 149}, {299, 149}, {150, 75}} {
		_, g, _, _ := res.Image.At(p.X, p.Y).RGBA()
		if g < 0x8000 {
			t.Fatalf("watermark missing at %v", p)
		}
	}
}

func TestComposeDeterministic(t *testing.T) {
	c := mustCompositor(t)
	req := Request{
		Canvas:     testCanvas(1792, 896, color.NRGBA{R: 33, G: 66, B: 99, A: 255}),
		TargetSize: domain.TargetSize{Width: 1800, Height: 900},
		Watermark:  testCanvas(64, 32, color.NRGBA{R: 255, G: 255, B: 255, A: 60}),
		Title:      "Hedera Upgrade Ships",
		Subtitle:   "Consensus nodes roll out v0.50",
	}
	first, err := c.Compose(req)
	if err != nil {
		t.Fatalf("first compose: %v", err)
	}
	second, err := c.Compose(req)
	if err != nil {
		t.Fatalf("second compose: %v", err)
	}
	if !bytes.Equal(first.Image.Pix, second.Image.Pix) {
		t.Fatal("identical requests produced different pixels")
	}
}

func TestTitleAnchoredLowerThird(t *testing.T) {
	c := mustCompositor(t)
	target := domain.TargetSize{Width: 800, Height: 400}
	base := color.NRGBA{R: 5, G: 5, B: 5, A: 255}

	plain, err := c.Compose(Request{Canvas: testCanvas(800, 400, base), TargetSize: target})
	if err != nil {
		t.Fatal(err)
	}
	titled, err := c.Compose(Request{Canvas: testCanvas(800, 400, base), TargetSize: target, Title: "Algorand Goes Green"})
	if err != nil {
		t.Fatal(err)
	}

	changedUpper, changedLower := false, false
	for y := 0; y < target.Height; y++ {
		for x := 0; x < target.Width; x++ {
			if plain.Image.NRGBAAt(x, y) != titled.Image.NRGBAAt(x, y) {
				if y < target.Height/2 {
					changedUpper = true
				} else {
					changedLower = true
				}
			}
		}
	}
	if !changedLower {
		t.Fatal("title not rendered in the lower half")
	}
	if changedUpper {
		t.Fatal("title leaked into the upper half of the canvas")
	}
}

func TestTitleAutoFitLongTitle(t *testing.T) {
	c := mustCompositor(t)
	target := domain.TargetSize{Width: 600, Height: 300}
	long := "An Extremely Long Cover Title That Must Shrink To Stay Within The Frame"
	res, err := c.Compose(Request{Canvas: testCanvas(600, 300, color.NRGBA{A: 255}), TargetSize: target, Title: long})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := res.Image.Bounds(); got.Dx() != 600 || got.Dy() != 300 {
		t.Fatalf("dimensions %v", got)
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	c := mustCompositor(t)
	res, err := c.Compose(Request{
		Canvas:     testCanvas(1792, 896, color.NRGBA{R: 1, G: 2, B: 3, A: 255}),
		TargetSize: domain.TargetSize{Width: 1800, Height: 900},
		Title:      "Bitcoin Hits 100k",
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := EncodePNG(res)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 1800 || cfg.Height != 900 {
		t.Fatalf("stored image is %dx%d, want 1800x900", cfg.Width, cfg.Height)
	}
}

func TestCoverCrop(t *testing.T) {
	// wider source: width cropped to match aspect
	r := coverCrop(image.Rect(0, 0, 2000, 500), 100, 50)
	if r.Dy() != 500 || r.Dx() != 1000 || r.Min.X != 500 {
		t.Fatalf("wide crop = %v", r)
	}
	// taller source: height cropped
	r = coverCrop(image.Rect(0, 0, 500, 2000), 100, 50)
	if r.Dx() != 500 || r.Dy() != 250 {
		t.Fatalf("tall crop = %v", r)
	}
	// matching aspect: untouched
	r = coverCrop(image.Rect(0, 0, 200, 100), 100, 50)
	if r != image.Rect(0, 0, 200, 100) {
		t.Fatalf("matched crop = %v", r)
	}
}
