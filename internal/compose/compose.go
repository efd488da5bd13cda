// Package compose flattens a camera frame and an overlay into the booth's
// output image.
package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	ErrInvalidSource      = errors.New("source frame is not ready")
	ErrOverlayUnavailable = errors.New("overlay unavailable")
)

// Output size used by the booth page.
const (
	DefaultWidth  = 1080
	DefaultHeight = 1440
)

// Crop is the region of the source that is scaled to fill the output.
type Crop struct {
	X, Y, W, H float64
	Scale      float64
}

// CoverCrop computes the centred crop that scales srcW x srcH to fill
// outW x outH with no letterboxing.
func CoverCrop(srcW, srcH, outW, outH int) (Crop, error) {
	if srcW <= 0 || srcH <= 0 {
		return Crop{}, fmt.Errorf("%w: source is %dx%d", ErrInvalidSource, srcW, srcH)
	}
	if outW <= 0 || outH <= 0 {
		return Crop{}, fmt.Errorf("invalid output size %dx%d", outW, outH)
	}
	scale := math.Max(float64(outW)/float64(srcW), float64(outH)/float64(srcH))
	w := float64(outW) / scale
	h := float64(outH) / scale
	return Crop{
		X:     (float64(srcW) - w) / 2,
		Y:     (float64(srcH) - h) / 2,
		W:     w,
		H:     h,
		Scale: scale,
	}, nil
}

// DrawCover scales src into dst with cover-fit and flips the result
// horizontally when mirror is set.
func DrawCover(dst *image.RGBA, src image.Image, mirror bool) error {
	return drawCover(dst, src, mirror, xdraw.CatmullRom)
}

func drawCover(dst *image.RGBA, src image.Image, mirror bool, scaler xdraw.Transformer) error {
	if src == nil {
		return ErrInvalidSource
	}
	sb, db := src.Bounds(), dst.Bounds()
	crop, err := CoverCrop(sb.Dx(), sb.Dy(), db.Dx(), db.Dy())
	if err != nil {
		return err
	}

	s := crop.Scale
	m := f64.Aff3{
		s, 0, float64(db.Min.X) - (float64(sb.Min.X)+crop.X)*s,
		0, s, float64(db.Min.Y) - (float64(sb.Min.Y)+crop.Y)*s,
	}
	scaler.Transform(dst, m, src, sb, xdraw.Src, nil)

	if mirror {
		flipHorizontal(dst)
	}
	return nil
}

// flipHorizontal mirrors img in place.
func flipHorizontal(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for l, r := 0, len(row)-4; l < r; l, r = l+4, r-4 {
			for i := 0; i < 4; i++ {
				row[l+i], row[r+i] = row[r+i], row[l+i]
			}
		}
	}
}

// Request is one capture to be flattened.
type Request struct {
	Source  image.Image
	Overlay image.Image
	Width   int
	Height  int
	Mirror  bool
}

// Render draws the source with cover-fit (mirrored if asked) and the overlay
// on top at its native size. The overlay must match the output size.
func Render(req Request) (*image.RGBA, error) {
	if req.Source == nil || req.Source.Bounds().Empty() {
		return nil, ErrInvalidSource
	}
	if req.Overlay == nil {
		return nil, ErrOverlayUnavailable
	}
	ob := req.Overlay.Bounds()
	if ob.Dx() != req.Width || ob.Dy() != req.Height {
		return nil, fmt.Errorf("%w: overlay is %dx%d, output is %dx%d",
			ErrOverlayUnavailable, ob.Dx(), ob.Dy(), req.Width, req.Height)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, req.Width, req.Height))
	if err := DrawCover(canvas, req.Source, req.Mirror); err != nil {
		return nil, err
	}
	draw.Draw(canvas, canvas.Bounds(), req.Overlay, ob.Min, draw.Over)
	return canvas, nil
}

// Compose renders req and encodes it as PNG.
func Compose(req Request) ([]byte, error) {
	img, err := Render(req)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// OverlayResolver turns an overlay name into decoded pixels.
type OverlayResolver interface {
	Overlay(ctx context.Context, name string) (image.Image, error)
}

// Composer binds the output size to an overlay source.
type Composer struct {
	Width    int
	Height   int
	Overlays OverlayResolver
}

func NewComposer(width, height int, overlays OverlayResolver) *Composer {
	return &Composer{Width: width, Height: height, Overlays: overlays}
}

// Compose resolves overlayName and flattens it over src.
func (c *Composer) Compose(ctx context.Context, src image.Image, overlayName string, mirror bool) ([]byte, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrInvalidSource
	}
	overlay, err := c.Overlays.Overlay(ctx, overlayName)
	if err != nil {
		if errors.Is(err, ErrOverlayUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrOverlayUnavailable, overlayName, err)
	}
	return Compose(Request{
		Source:  src,
		Overlay: overlay,
		Width:   c.Width,
		Height:  c.Height,
		Mirror:  mirror,
	})
}
