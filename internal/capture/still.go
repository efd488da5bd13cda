package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/harrylevesque/photobooth/internal/compose"
)

var ErrSourceClosed = errors.New("frame source is closed")

// StillSource serves a single image file as every frame.
type StillSource struct {
	path string

	mu     sync.Mutex
	closed bool
	frame  image.Image
}

func NewStillSource(path string) *StillSource {
	return &StillSource{path: path}
}

// StillOpener opens the same still file regardless of facing mode.
func StillOpener(path string) Opener {
	return OpenFunc(func(ctx context.Context, _ Facing) (FrameSource, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewStillSource(path), nil
	})
}

func (s *StillSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}
	if s.frame != nil {
		return s.frame, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read still %s: %w", s.path, err)
	}
	img, err := compose.DecodeSource(data)
	if err != nil {
		return nil, err
	}
	s.frame = img
	return img, nil
}

func (s *StillSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.frame = nil
	return nil
}
