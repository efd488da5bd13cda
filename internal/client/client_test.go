package client

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harrylevesque/photobooth/internal/api"
	"github.com/harrylevesque/photobooth/internal/auth"
	"github.com/harrylevesque/photobooth/internal/booth"
	"github.com/harrylevesque/photobooth/internal/capture"
	"github.com/harrylevesque/photobooth/internal/compose"
	"github.com/harrylevesque/photobooth/internal/files"
	"github.com/harrylevesque/photobooth/internal/qr"
	"github.com/harrylevesque/photobooth/internal/utils"
)

func startServer(t *testing.T, token string) *httptest.Server {
	log := zaptest.NewLogger(t)
	coord := booth.NewCoordinator(files.NewMemStore(files.OverlayLayout), files.NewMemStore(files.PhotoLayout),
		qr.NewEncoder(), booth.Options{Width: 6, Height: 8}, log)
	srv := httptest.NewServer(api.NewRouter(api.NewServer(coord, auth.NewGate(token, ""), api.Options{}, log)))
	t.Cleanup(srv.Close)
	return srv
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	data, err := compose.EncodePNG(image.NewRGBA(image.Rect(0, 0, w, h)))
	require.NoError(t, err)
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestOverlayLifecycle(t *testing.T) {
	srv := startServer(t, "s3cret")
	ctx := context.Background()
	dir := t.TempDir()
	paths := []string{writePNG(t, dir, "a.png", 6, 8), writePNG(t, dir, "b.png", 6, 8)}

	_, err := New(srv.URL, "").AddOverlays(ctx, paths)
	var he *utils.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusUnauthorized, he.Code)

	c := New(srv.URL+"/", "s3cret")
	added, err := c.AddOverlays(ctx, paths)
	require.NoError(t, err)
	assert.Len(t, added, 2)

	listed, err := c.ListOverlays(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	require.NoError(t, c.RemoveOverlay(ctx, listed[0].Name))
	err = c.RemoveOverlay(ctx, listed[0].Name)
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestLocalCaptureThenSubmit(t *testing.T) {
	srv := startServer(t, "")
	ctx := context.Background()
	dir := t.TempDir()
	c := New(srv.URL, "")

	added, err := c.AddOverlays(ctx, []string{writePNG(t, dir, "frame.png", 6, 8)})
	require.NoError(t, err)

	session := capture.NewSession(capture.StillOpener(writePNG(t, dir, "still.png", 40, 30)),
		compose.NewComposer(6, 8, c), capture.FacingUser)
	require.NoError(t, session.Start(ctx))
	defer session.Close()
	session.SelectOverlay(added[0].Name)

	png, err := session.Capture(ctx)
	require.NoError(t, err)

	res, err := c.SubmitPhoto(ctx, png)
	require.NoError(t, err)
	assert.Equal(t, res.PhotoURL, res.TargetURL)
	assert.NotEmpty(t, res.QRDataURL)
}

func TestComposeRemote(t *testing.T) {
	srv := startServer(t, "")
	ctx := context.Background()
	dir := t.TempDir()
	c := New(srv.URL, "")

	added, err := c.AddOverlays(ctx, []string{writePNG(t, dir, "frame.png", 6, 8)})
	require.NoError(t, err)

	frame, err := os.ReadFile(writePNG(t, dir, "still.png", 30, 40))
	require.NoError(t, err)
	res, err := c.ComposeRemote(ctx, frame, added[0].Name, false)
	require.NoError(t, err)
	assert.NotEmpty(t, res.PhotoURL)
}

func TestOverlayMissing(t *testing.T) {
	srv := startServer(t, "")
	c := New(srv.URL, "")
	require.NoError(t, c.Health(context.Background()))
	_, err := c.Overlay(context.Background(), "frame_0_nope.png")
	assert.Error(t, err)
}
