// Package booth owns the overlay and photo stores and is the only code that
// mutates them.
package booth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/harrylevesque/photobooth/internal/compose"
	"github.com/harrylevesque/photobooth/internal/files"
	"github.com/harrylevesque/photobooth/internal/models"
	"github.com/harrylevesque/photobooth/internal/qr"
)

// MaxOverlaysPerUpload is the most overlays accepted by one AddOverlays call.
const MaxOverlaysPerUpload = 10

var (
	ErrTooMany         = fmt.Errorf("too many overlays in one upload (max %d)", MaxOverlaysPerUpload)
	ErrNoUploads       = errors.New("no files uploaded")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var acceptedTypes = []string{"image/png", "image/jpeg", "image/webp"}

// Upload is one file received from a client.
type Upload struct {
	Filename string
	Content  []byte
}

type Coordinator struct {
	overlays files.Store
	photos   files.Store
	links    *qr.Encoder
	composer *compose.Composer
	baseURL  string
	log      *zap.Logger

	// decoded overlays; names are immutable so entries only go stale on removal
	decoded sync.Map
	// mu guards removals, which counts overlay removals so a decode that
	// raced one is not cached
	mu       sync.Mutex
	removals uint64
}

type Options struct {
	// BaseURL prefixes QR targets. When empty targets stay relative.
	BaseURL string
	Width   int
	Height  int
}

func NewCoordinator(overlays, photos files.Store, links *qr.Encoder, opts Options, log *zap.Logger) *Coordinator {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = compose.DefaultWidth, compose.DefaultHeight
	}
	c := &Coordinator{
		overlays: overlays,
		photos:   photos,
		links:    links,
		baseURL:  opts.BaseURL,
		log:      log,
	}
	c.composer = compose.NewComposer(opts.Width, opts.Height, c)
	return c
}

// ListOverlays returns every overlay, newest name first. An empty store
// yields an empty, non-nil slice.
func (c *Coordinator) ListOverlays(ctx context.Context) ([]models.Asset, error) {
	names, err := c.overlays.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list overlays: %w", err)
	}
	assets := make([]models.Asset, 0, len(names))
	for _, name := range names {
		assets = append(assets, models.Asset{Name: name, URL: c.overlays.Address(name)})
	}
	return assets, nil
}

// AddOverlays stores between 1 and MaxOverlaysPerUpload overlays. Every file
// is checked before any is written; if a write fails, the ones already
// written by this call are removed again.
func (c *Coordinator) AddOverlays(ctx context.Context, uploads []Upload) ([]models.Asset, error) {
	switch {
	case len(uploads) == 0:
		return nil, ErrNoUploads
	case len(uploads) > MaxOverlaysPerUpload:
		return nil, ErrTooMany
	}

	declared := make([]string, len(uploads))
	for i, up := range uploads {
		ext, err := sniff(up)
		if err != nil {
			return nil, err
		}
		declared[i] = ext
	}

	added := make([]models.Asset, 0, len(uploads))
	for i, up := range uploads {
		name, err := c.overlays.Add(ctx, up.Content, declared[i])
		if err != nil {
			c.rollback(added)
			return nil, fmt.Errorf("store overlay %q: %w", up.Filename, err)
		}
		c.log.Info("overlay added", zap.String("name", name), zap.Int("bytes", len(up.Content)))
		added = append(added, models.Asset{Name: name, URL: c.overlays.Address(name)})
	}
	return added, nil
}

func (c *Coordinator) rollback(added []models.Asset) {
	for _, a := range added {
		if err := c.overlays.Remove(context.Background(), a.Name); err != nil {
			c.log.Warn("rollback overlay", zap.String("name", a.Name), zap.Error(err))
		}
	}
}

// RemoveOverlay deletes one overlay. Unknown names give files.ErrNotFound,
// unsafe names files.ErrInvalidName.
func (c *Coordinator) RemoveOverlay(ctx context.Context, name string) error {
	if err := c.overlays.Remove(ctx, name); err != nil {
		return err
	}
	c.mu.Lock()
	c.removals++
	c.decoded.Delete(name)
	c.mu.Unlock()
	c.log.Info("overlay removed", zap.String("name", name))
	return nil
}

// RecordOutput stores a finished photo and returns its asset.
func (c *Coordinator) RecordOutput(ctx context.Context, up Upload) (models.Asset, error) {
	ext, err := sniff(up)
	if err != nil {
		return models.Asset{}, err
	}
	name, err := c.photos.Add(ctx, up.Content, ext)
	if err != nil {
		return models.Asset{}, fmt.Errorf("store photo: %w", err)
	}
	c.log.Info("photo recorded", zap.String("name", name), zap.Int("bytes", len(up.Content)))
	return models.Asset{Name: name, URL: c.photos.Address(name)}, nil
}

// SubmitPhoto records the photo and encodes a link to it. The photo is kept
// even if encoding fails.
func (c *Coordinator) SubmitPhoto(ctx context.Context, up Upload) (models.PhotoResult, error) {
	asset, err := c.RecordOutput(ctx, up)
	if err != nil {
		return models.PhotoResult{}, err
	}
	link, err := c.links.Encode(asset.URL, c.baseURL)
	if err != nil {
		c.log.Error("encode photo link", zap.String("name", asset.Name), zap.Error(err))
		return models.PhotoResult{}, err
	}
	return models.PhotoResult{
		PhotoURL:  asset.URL,
		QRDataURL: link.DataURL(),
		TargetURL: link.Target,
	}, nil
}

// ComposePhoto flattens a raw camera frame with a stored overlay on the
// server and submits the result.
func (c *Coordinator) ComposePhoto(ctx context.Context, frame image.Image, overlay string, mirror bool) (models.PhotoResult, error) {
	out, err := c.composer.Compose(ctx, frame, overlay, mirror)
	if err != nil {
		return models.PhotoResult{}, err
	}
	return c.SubmitPhoto(ctx, Upload{Filename: "capture.png", Content: out})
}

// Overlay decodes a stored overlay. It makes Coordinator a
// compose.OverlayResolver.
func (c *Coordinator) Overlay(ctx context.Context, name string) (image.Image, error) {
	if img, ok := c.decoded.Load(name); ok {
		return img.(image.Image), nil
	}
	c.mu.Lock()
	seen := c.removals
	c.mu.Unlock()

	obj, err := c.overlays.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", compose.ErrOverlayUnavailable, err)
	}
	img, _, err := compose.Decode(obj.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", compose.ErrOverlayUnavailable, name, err)
	}
	// a removal that ran while decoding may have been for this name
	c.mu.Lock()
	if c.removals == seen {
		c.decoded.Store(name, img)
	}
	c.mu.Unlock()
	return img, nil
}

// OverlayObject reads back stored overlay bytes.
func (c *Coordinator) OverlayObject(ctx context.Context, name string) (files.Object, error) {
	return c.overlays.Get(ctx, name)
}

// PhotoObject reads back stored photo bytes.
func (c *Coordinator) PhotoObject(ctx context.Context, name string) (files.Object, error) {
	return c.photos.Get(ctx, name)
}

// sniff checks that up holds an accepted image and returns the name to
// derive its extension from: the declared filename when it carries an image
// extension, otherwise the detected type's extension.
func sniff(up Upload) (string, error) {
	mt := mimetype.Detect(up.Content)
	if !mimetype.EqualsAny(mt.String(), acceptedTypes...) {
		return "", fmt.Errorf("%w: %s is %s", ErrUnsupportedType, up.Filename, mt.String())
	}
	if files.HasImageExt(up.Filename) {
		return up.Filename, nil
	}
	return mt.Extension(), nil
}
