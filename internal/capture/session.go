// Package capture holds the state of one booth session: which camera is
// live, which overlay is selected, and whether a capture is running.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
)

var (
	ErrNoSource        = errors.New("camera is not started")
	ErrNoOverlay       = errors.New("no overlay selected")
	ErrCaptureInFlight = errors.New("a capture is already in progress")
)

// Facing is the camera direction.
type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// Mirrored reports whether frames from this camera are shown mirrored to the
// user and must therefore be saved mirrored.
func (f Facing) Mirrored() bool { return f == FacingUser }

func (f Facing) Toggle() Facing {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// FrameSource is an open camera (or anything that yields stills).
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener acquires a FrameSource for a facing mode. Open may block until the
// user grants camera access.
type Opener interface {
	Open(ctx context.Context, facing Facing) (FrameSource, error)
}

// OpenFunc adapts a function to Opener.
type OpenFunc func(ctx context.Context, facing Facing) (FrameSource, error)

func (f OpenFunc) Open(ctx context.Context, facing Facing) (FrameSource, error) {
	return f(ctx, facing)
}

// Compositor flattens a frame with a named overlay. *compose.Composer
// satisfies it.
type Compositor interface {
	Compose(ctx context.Context, src image.Image, overlayName string, mirror bool) ([]byte, error)
}

// Session replaces ambient "current stream" and "selected overlay" globals.
type Session struct {
	opener   Opener
	composer Compositor

	mu      sync.Mutex
	facing  Facing
	overlay string
	source  FrameSource

	busy atomic.Bool
}

func NewSession(opener Opener, composer Compositor, facing Facing) *Session {
	if facing == "" {
		facing = FacingUser
	}
	return &Session{opener: opener, composer: composer, facing: facing}
}

func (s *Session) Facing() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

func (s *Session) Overlay() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay
}

// SelectOverlay picks the overlay used by the next Capture.
func (s *Session) SelectOverlay(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay = name
}

// Start opens the camera for the current facing mode, releasing any camera
// that is already open first.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reopen(ctx, s.facing)
}

// Switch toggles between front and rear camera. The old device is closed
// before the new one is opened so two are never held at once. On failure
// the facing mode is left unchanged and no camera is open.
func (s *Session) Switch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reopen(ctx, s.facing.Toggle())
}

func (s *Session) reopen(ctx context.Context, facing Facing) error {
	if err := s.closeSource(); err != nil {
		return err
	}
	src, err := s.opener.Open(ctx, facing)
	if err != nil {
		return fmt.Errorf("open %s camera: %w", facing, err)
	}
	s.source = src
	s.facing = facing
	return nil
}

func (s *Session) closeSource() error {
	if s.source == nil {
		return nil
	}
	err := s.source.Close()
	s.source = nil
	if err != nil {
		return fmt.Errorf("release camera: %w", err)
	}
	return nil
}

// Capture grabs one frame and composes it with the selected overlay,
// mirrored when the front camera is live. Only one capture runs at a time.
func (s *Session) Capture(ctx context.Context) ([]byte, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrCaptureInFlight
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	src, overlay, facing := s.source, s.overlay, s.facing
	if src == nil {
		s.mu.Unlock()
		return nil, ErrNoSource
	}
	if overlay == "" {
		s.mu.Unlock()
		return nil, ErrNoOverlay
	}
	frame, err := src.Frame(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("grab frame: %w", err)
	}

	return s.composer.Compose(ctx, frame, overlay, facing.Mirrored())
}

// Close releases the camera.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeSource()
}
