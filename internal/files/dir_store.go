package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const stagingDir = ".staging"

// DirStore keeps each asset as a plain file in one directory.
type DirStore struct {
	dir     string
	staging string
	layout  Layout
	namer   *Namer
	retired nameSet
}

// NewDirStore opens (creating if needed) root/<layout.Bucket>.
func NewDirStore(root string, layout Layout) (*DirStore, error) {
	dir, err := filepath.Abs(filepath.Join(root, layout.Bucket))
	if err != nil {
		return nil, err
	}
	staging := filepath.Join(dir, stagingDir)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &DirStore{
		dir:     dir,
		staging: staging,
		layout:  layout,
		namer:   NewNamer(layout),
	}, nil
}

// Dir returns the absolute directory backing the store.
func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) Address(name string) string { return s.layout.Address(name) }

// Add stages content in a temporary file and publishes it with a hard link,
// which fails instead of replacing an existing name.
func (s *DirStore) Add(ctx context.Context, content []byte, declared string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := s.stage(content)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	for i := 0; i < maxNameAttempts; i++ {
		name, err := s.namer.Next(declared)
		if err != nil {
			return "", err
		}
		if s.retired.has(name) {
			continue
		}
		err = os.Link(tmp, filepath.Join(s.dir, name))
		if err == nil {
			return name, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return "", fmt.Errorf("publish %s: %w", name, err)
	}
	return "", ErrNameExhausted
}

func (s *DirStore) stage(content []byte) (string, error) {
	f, err := os.CreateTemp(s.staging, "add-*")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	path := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(path)
		}
	}()

	if _, err := f.Write(content); err != nil {
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staging file: %w", err)
	}
	success = true
	return path, nil
}

func (s *DirStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsImageName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (s *DirStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("remove %s: %w", name, err)
	}
	s.retired.add(name)
	return nil
}

func (s *DirStore) Get(ctx context.Context, name string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	path, err := s.resolve(name)
	if err != nil {
		return Object{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Object{}, err
	}
	if !info.Mode().IsRegular() {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Object{}, fmt.Errorf("read %s: %w", name, err)
	}
	return newObject(name, content, info.ModTime()), nil
}

// resolve maps name to an absolute path and confirms it stays inside the
// store directory.
func (s *DirStore) resolve(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	path, err := filepath.Abs(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return path, nil
}
