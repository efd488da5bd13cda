package booth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harrylevesque/photobooth/internal/compose"
	"github.com/harrylevesque/photobooth/internal/files"
	"github.com/harrylevesque/photobooth/internal/qr"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	out, err := compose.EncodePNG(img)
	require.NoError(t, err)
	return out
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil))
	return buf.Bytes()
}

func newCoordinator(t *testing.T) (*Coordinator, *files.MemStore, *files.MemStore) {
	overlays := files.NewMemStore(files.OverlayLayout)
	photos := files.NewMemStore(files.PhotoLayout)
	c := NewCoordinator(overlays, photos, qr.NewEncoder(), Options{Width: 6, Height: 8}, zaptest.NewLogger(t))
	return c, overlays, photos
}

func uploads(t *testing.T, n int) []Upload {
	ups := make([]Upload, n)
	for i := range ups {
		ups[i] = Upload{Filename: fmt.Sprintf("frame%d.png", i), Content: pngBytes(t, 6, 8)}
	}
	return ups
}

func TestAddThreeThenList(t *testing.T) {
	c, _, _ := newCoordinator(t)
	ctx := context.Background()

	added, err := c.AddOverlays(ctx, uploads(t, 3))
	require.NoError(t, err)
	require.Len(t, added, 3)

	listed, err := c.ListOverlays(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i := 1; i < len(listed); i++ {
		assert.Greater(t, listed[i-1].Name, listed[i].Name)
	}
	for _, a := range listed {
		assert.Equal(t, files.OverlayLayout.Address(a.Name), a.URL)
	}
}

func TestTooManyLeavesStoreUnchanged(t *testing.T) {
	c, _, _ := newCoordinator(t)
	ctx := context.Background()
	_, err := c.AddOverlays(ctx, uploads(t, 2))
	require.NoError(t, err)

	_, err = c.AddOverlays(ctx, uploads(t, 11))
	assert.ErrorIs(t, err, ErrTooMany)

	listed, err := c.ListOverlays(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestAddOverlaysAcceptsTenAndRejectsNone(t *testing.T) {
	c, _, _ := newCoordinator(t)
	added, err := c.AddOverlays(context.Background(), uploads(t, MaxOverlaysPerUpload))
	require.NoError(t, err)
	assert.Len(t, added, MaxOverlaysPerUpload)

	_, err = c.AddOverlays(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoUploads)
}

func TestAddOverlaysRejectsNonImagesWholesale(t *testing.T) {
	c, _, _ := newCoordinator(t)
	ups := uploads(t, 2)
	ups = append(ups, Upload{Filename: "notes.png", Content: []byte("hello, not an image")})

	_, err := c.AddOverlays(context.Background(), ups)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	listed, err := c.ListOverlays(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.NotNil(t, listed)
}

func TestAddOverlaysExtensionFromContentWhenUndeclared(t *testing.T) {
	c, _, _ := newCoordinator(t)
	added, err := c.AddOverlays(context.Background(), []Upload{
		{Filename: "blob", Content: jpegBytes(t)},
		{Filename: "Frame.WEBP", Content: pngBytes(t, 6, 8)},
	})
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(added[0].Name))
	assert.Equal(t, ".webp", filepath.Ext(added[1].Name))
}

type failingStore struct {
	*files.MemStore
	failAfter int
	adds      int
}

func (s *failingStore) Add(ctx context.Context, content []byte, declared string) (string, error) {
	s.adds++
	if s.adds > s.failAfter {
		return "", errors.New("disk full")
	}
	return s.MemStore.Add(ctx, content, declared)
}

func TestAddOverlaysRollsBackOnStoreFailure(t *testing.T) {
	store := &failingStore{MemStore: files.NewMemStore(files.OverlayLayout), failAfter: 2}
	c := NewCoordinator(store, files.NewMemStore(files.PhotoLayout), qr.NewEncoder(), Options{}, zaptest.NewLogger(t))

	_, err := c.AddOverlays(context.Background(), uploads(t, 4))
	require.Error(t, err)

	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRemoveOverlay(t *testing.T) {
	c, _, _ := newCoordinator(t)
	ctx := context.Background()
	added, err := c.AddOverlays(ctx, uploads(t, 1))
	require.NoError(t, err)
	name := added[0].Name

	_, err = c.Overlay(ctx, name)
	require.NoError(t, err)

	require.NoError(t, c.RemoveOverlay(ctx, name))
	assert.ErrorIs(t, c.RemoveOverlay(ctx, name), files.ErrNotFound)
	assert.ErrorIs(t, c.RemoveOverlay(ctx, "../secret"), files.ErrInvalidName)

	_, err = c.Overlay(ctx, name)
	assert.ErrorIs(t, err, compose.ErrOverlayUnavailable)
}

func TestSubmitPhotoRoundTrip(t *testing.T) {
	c, _, photos := newCoordinator(t)
	ctx := context.Background()
	content := pngBytes(t, 6, 8)

	res, err := c.SubmitPhoto(ctx, Upload{Filename: "photo.png", Content: content})
	require.NoError(t, err)
	require.NotEmpty(t, res.PhotoURL)
	assert.True(t, strings.HasPrefix(res.PhotoURL, "/uploads/photos/photo_"))
	assert.Equal(t, res.PhotoURL, res.TargetURL)
	assert.True(t, strings.HasPrefix(res.QRDataURL, "data:image/png;base64,"))

	name := strings.TrimPrefix(res.PhotoURL, files.PhotoLayout.URLPrefix)
	obj, err := photos.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, content, obj.Content)
}

func TestSubmitPhotoUsesConfiguredBase(t *testing.T) {
	c := NewCoordinator(files.NewMemStore(files.OverlayLayout), files.NewMemStore(files.PhotoLayout),
		qr.NewEncoder(), Options{BaseURL: "https://booth.example"}, zaptest.NewLogger(t))
	res, err := c.SubmitPhoto(context.Background(), Upload{Content: pngBytes(t, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, "https://booth.example"+res.PhotoURL, res.TargetURL)
}

// blockingStore hands out the first Get result only after release is closed.
type blockingStore struct {
	*files.MemStore
	fetched chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) Get(ctx context.Context, name string) (files.Object, error) {
	obj, err := s.MemStore.Get(ctx, name)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.fetched)
		<-s.release
	}
	return obj, err
}

func TestRemoveDuringOverlayDecodeIsNotCached(t *testing.T) {
	store := &blockingStore{
		MemStore: files.NewMemStore(files.OverlayLayout),
		fetched:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	c := NewCoordinator(store, files.NewMemStore(files.PhotoLayout), qr.NewEncoder(),
		Options{Width: 6, Height: 8}, zaptest.NewLogger(t))
	ctx := context.Background()

	name, err := store.MemStore.Add(ctx, pngBytes(t, 6, 8), "frame.png")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Overlay(ctx, name)
		done <- err
	}()

	<-store.fetched
	require.NoError(t, c.RemoveOverlay(ctx, name))
	close(store.release)
	require.NoError(t, <-done)

	_, err = c.Overlay(ctx, name)
	assert.ErrorIs(t, err, compose.ErrOverlayUnavailable)

	_, err = c.ComposePhoto(ctx, image.NewRGBA(image.Rect(0, 0, 12, 9)), name, false)
	assert.ErrorIs(t, err, compose.ErrOverlayUnavailable)
}

func TestSubmitPhotoRejectsNonImage(t *testing.T) {
	c, _, photos := newCoordinator(t)
	_, err := c.SubmitPhoto(context.Background(), Upload{Filename: "p.png", Content: []byte("plain text")})
	assert.ErrorIs(t, err, ErrUnsupportedType)
	names, err := photos.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestComposePhoto(t *testing.T) {
	c, _, photos := newCoordinator(t)
	ctx := context.Background()
	added, err := c.AddOverlays(ctx, uploads(t, 1))
	require.NoError(t, err)

	frame := image.NewRGBA(image.Rect(0, 0, 12, 9))
	res, err := c.ComposePhoto(ctx, frame, added[0].Name, true)
	require.NoError(t, err)
	assert.Equal(t, res.PhotoURL, res.TargetURL)

	obj, err := photos.Get(ctx, strings.TrimPrefix(res.PhotoURL, files.PhotoLayout.URLPrefix))
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(obj.Content))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Width)
	assert.Equal(t, 8, cfg.Height)

	_, err = c.ComposePhoto(ctx, frame, "frame_0_missing.png", false)
	assert.ErrorIs(t, err, compose.ErrOverlayUnavailable)

	_, err = c.ComposePhoto(ctx, image.NewRGBA(image.Rectangle{}), added[0].Name, false)
	assert.ErrorIs(t, err, compose.ErrInvalidSource)

	names, err := photos.List(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 1)
}
