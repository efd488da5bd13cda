package api

import (
	"go.uber.org/zap"

	"github.com/harrylevesque/photobooth/internal/auth"
	"github.com/harrylevesque/photobooth/internal/booth"
)

// Limits caps request sizes.
type Limits struct {
	OverlayBytes int64
	PhotoBytes   int64
}

// Server holds what the handlers need.
type Server struct {
	booth     *booth.Coordinator
	gate      *auth.Gate
	limits    Limits
	publicDir string
	origins   []string
	log       *zap.Logger
}

type Options struct {
	Limits Limits
	// PublicDir is served for every path the API does not claim. Empty
	// disables static files.
	PublicDir      string
	AllowedOrigins []string
}

func NewServer(coord *booth.Coordinator, gate *auth.Gate, opts Options, log *zap.Logger) *Server {
	if opts.Limits.OverlayBytes <= 0 {
		opts.Limits.OverlayBytes = 10 << 20
	}
	if opts.Limits.PhotoBytes <= 0 {
		opts.Limits.PhotoBytes = 15 << 20
	}
	return &Server{
		booth:     coord,
		gate:      gate,
		limits:    opts.Limits,
		publicDir: opts.PublicDir,
		origins:   opts.AllowedOrigins,
		log:       log,
	}
}
