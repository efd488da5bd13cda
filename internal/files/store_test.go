package files

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"dir": func(t *testing.T) Store {
			s, err := NewDirStore(t.TempDir(), OverlayLayout)
			require.NoError(t, err)
			return s
		},
		"memory": func(t *testing.T) Store {
			return NewMemStore(OverlayLayout)
		},
		"bolt": func(t *testing.T) Store {
			db, err := OpenBolt(filepath.Join(t.TempDir(), "booth.db"))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			s, err := db.Store(OverlayLayout)
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Run("AddThenListContainsOnce", func(t *testing.T) { testAddThenList(t, open(t)) })
			t.Run("ListIsDescending", func(t *testing.T) { testListDescending(t, open(t)) })
			t.Run("RemoveThenNotFound", func(t *testing.T) { testRemove(t, open(t)) })
			t.Run("RejectsTraversal", func(t *testing.T) { testTraversal(t, open(t)) })
			t.Run("GetReturnsExactBytes", func(t *testing.T) { testGet(t, open(t)) })
			t.Run("ExtensionNormalized", func(t *testing.T) { testExtension(t, open(t)) })
			t.Run("UniqueNames", func(t *testing.T) { testUnique(t, open(t), 1000) })
		})
	}
}

func testAddThenList(t *testing.T, s Store) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		name, err := s.Add(ctx, []byte{byte(i)}, "overlay.png")
		require.NoError(t, err)

		names, err := s.List(ctx)
		require.NoError(t, err)
		count := 0
		for _, n := range names {
			if n == name {
				count++
			}
		}
		assert.Equal(t, 1, count, "name %s listed %d times", name, count)
	}
}

func testListDescending(t *testing.T, s Store) {
	ctx := context.Background()
	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 0; i < 10; i++ {
		_, err := s.Add(ctx, []byte("x"), "a.webp")
		require.NoError(t, err)
	}
	names, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, names, 10)
	assert.True(t, sort.IsSorted(sort.Reverse(sort.StringSlice(names))))
}

func testRemove(t *testing.T, s Store) {
	ctx := context.Background()
	name, err := s.Add(ctx, []byte("frame"), "f.png")
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, name))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, name)

	assert.ErrorIs(t, s.Remove(ctx, name), ErrNotFound)
	assert.ErrorIs(t, s.Remove(ctx, "frame_0_missing.png"), ErrNotFound)
}

func testTraversal(t *testing.T, s Store) {
	ctx := context.Background()
	keep, err := s.Add(ctx, []byte("keep"), "k.png")
	require.NoError(t, err)

	for _, bad := range []string{
		"../secret",
		"../../etc/passwd",
		"..",
		".",
		"",
		"/etc/passwd",
		"sub/../../x.png",
		`..\secret`,
		".staging",
	} {
		assert.ErrorIs(t, s.Remove(ctx, bad), ErrInvalidName, "name %q", bad)
		_, err := s.Get(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", bad)
	}

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, names)
}

func testGet(t *testing.T, s Store) {
	ctx := context.Background()
	content := []byte("\x89PNG\r\n\x1a\nnot really")
	name, err := s.Add(ctx, content, "p.png")
	require.NoError(t, err)

	obj, err := s.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, content, obj.Content)
	assert.Equal(t, name, obj.Name)
	assert.Len(t, obj.Digest, 64)

	again, err := s.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, obj.Digest, again.Digest)

	_, err = s.Get(ctx, "frame_1_abc.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testExtension(t *testing.T, s Store) {
	ctx := context.Background()
	cases := map[string]string{
		"x.PNG":   ".png",
		"x.JpEg":  ".jpeg",
		"x.webp":  ".webp",
		"x.gif":   ".png",
		"noext":   ".png",
		"":        ".png",
		"x.tar.j": ".png",
	}
	for declared, want := range cases {
		name, err := s.Add(ctx, []byte("x"), declared)
		require.NoError(t, err)
		assert.Equal(t, want, filepath.Ext(name), "declared %q", declared)
		assert.Regexp(t, `^frame_\d+_[0-9a-f]{16}\.`, name)
	}
}

func testUnique(t *testing.T, s Store, n int) {
	ctx := context.Background()
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		name, err := s.Add(ctx, []byte{1}, "a.png")
		require.NoError(t, err)
		_, dup := seen[name]
		require.False(t, dup, "duplicate name %s after %d adds", name, i)
		seen[name] = struct{}{}
	}
}

func TestMemStoreUniqueUnderStress(t *testing.T) {
	testUnique(t, NewMemStore(PhotoLayout), 10000)
}

func TestAddHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, open := range backends() {
		_, err := open(t).Add(ctx, []byte("x"), "a.png")
		assert.ErrorIs(t, err, context.Canceled, name)
	}
}
