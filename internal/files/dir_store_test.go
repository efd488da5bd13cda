package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStoreTraversalLeavesSiblingsAlone(t *testing.T) {
	root := t.TempDir()
	secret := filepath.Join(root, "secret")
	require.NoError(t, os.WriteFile(secret, []byte("top secret"), 0o600))

	s, err := NewDirStore(root, OverlayLayout)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Remove(context.Background(), "../secret"), ErrInvalidName)
	assert.ErrorIs(t, s.Remove(context.Background(), secret), ErrInvalidName)

	data, err := os.ReadFile(secret)
	require.NoError(t, err)
	assert.Equal(t, "top secret", string(data))
}

func TestDirStoreIgnoresForeignFiles(t *testing.T) {
	s, err := NewDirStore(t.TempDir(), OverlayLayout)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "nested.png"), 0o755))

	name, err := s.Add(context.Background(), []byte("x"), "a.jpg")
	require.NoError(t, err)

	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names)
}

func TestDirStoreCleansStaging(t *testing.T) {
	s, err := NewDirStore(t.TempDir(), PhotoLayout)
	require.NoError(t, err)
	_, err = s.Add(context.Background(), []byte("payload"), "p.png")
	require.NoError(t, err)

	left, err := os.ReadDir(filepath.Join(s.Dir(), stagingDir))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDirStoreSurvivesReopen(t *testing.T) {
	root := t.TempDir()
	first, err := NewDirStore(root, OverlayLayout)
	require.NoError(t, err)
	name, err := first.Add(context.Background(), []byte("persisted"), "a.png")
	require.NoError(t, err)

	second, err := NewDirStore(root, OverlayLayout)
	require.NoError(t, err)
	obj, err := second.Get(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(obj.Content))
}
