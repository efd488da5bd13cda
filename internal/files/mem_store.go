package files

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is a map-backed Store for tests and ephemeral kiosks.
type MemStore struct {
	mu      sync.RWMutex
	layout  Layout
	namer   *Namer
	objects map[string]memObject
	retired nameSet
}

type memObject struct {
	content []byte
	created time.Time
}

func NewMemStore(layout Layout) *MemStore {
	return &MemStore{
		layout:  layout,
		namer:   NewNamer(layout),
		objects: make(map[string]memObject),
	}
}

func (s *MemStore) Address(name string) string { return s.layout.Address(name) }

func (s *MemStore) Add(ctx context.Context, content []byte, declared string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	buf := make([]byte, len(content))
	copy(buf, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < maxNameAttempts; i++ {
		name, err := s.namer.Next(declared)
		if err != nil {
			return "", err
		}
		if _, exists := s.objects[name]; exists || s.retired.has(name) {
			continue
		}
		s.objects[name] = memObject{content: buf, created: time.Now()}
		return name, nil
	}
	return "", ErrNameExhausted
}

func (s *MemStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.objects))
	for name := range s.objects {
		if IsImageName(name) {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (s *MemStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.objects, name)
	s.retired.add(name)
	return nil
}

func (s *MemStore) Get(ctx context.Context, name string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if err := checkName(name); err != nil {
		return Object{}, err
	}
	s.mu.RLock()
	obj, ok := s.objects[name]
	s.mu.RUnlock()
	if !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return newObject(name, obj.content, obj.created), nil
}
