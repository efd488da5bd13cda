package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/harrylevesque/photobooth/internal/api"
	"github.com/harrylevesque/photobooth/internal/auth"
	"github.com/harrylevesque/photobooth/internal/booth"
	"github.com/harrylevesque/photobooth/internal/certs"
	"github.com/harrylevesque/photobooth/internal/config"
	"github.com/harrylevesque/photobooth/internal/files"
	"github.com/harrylevesque/photobooth/internal/qr"
	"github.com/harrylevesque/photobooth/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml or /etc/photobooth/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := utils.NewLogger(cfg.Log.Level, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	station := utils.StationID(cfg.Station)
	log = log.With(zap.String("station", station))

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			log.Fatal("init sentry", zap.Error(err))
		}
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("station", station)
		})
		defer sentry.Flush(2 * time.Second)
	}

	if err := run(cfg, log); err != nil {
		sentry.CaptureException(err)
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	overlays, photos, closer, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.Admin.Token == "" && cfg.Admin.TokenHash == "" {
		log.Warn("no admin token configured, overlay uploads and deletes are open")
	}

	coord := booth.NewCoordinator(overlays, photos, qr.NewEncoder(), booth.Options{
		BaseURL: cfg.Server.BaseURL,
		Width:   cfg.Capture.Width,
		Height:  cfg.Capture.Height,
	}, log)
	server := api.NewServer(coord, auth.NewGate(cfg.Admin.Token, cfg.Admin.TokenHash), api.Options{
		Limits: api.Limits{
			OverlayBytes: cfg.Limits.OverlayBytes,
			PhotoBytes:   cfg.Limits.PhotoBytes,
		},
		PublicDir:      cfg.Server.PublicDir,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(cfg, srv, log)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serve(cfg *config.Config, srv *http.Server, log *zap.Logger) error {
	if !cfg.TLS.Enabled {
		log.Info("server running", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Backend))
		return srv.ListenAndServe()
	}

	cm := certs.NewCertManager(cfg.TLS.CertDir, cfg.TLS.Hosts)
	if len(cfg.TLS.AutocertDomains) > 0 {
		srv.TLSConfig = cm.ACME(cfg.TLS.AutocertDomains).TLSConfig()
	} else {
		tlsConfig, err := cm.TLSConfig()
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsConfig
	}
	log.Info("server running with TLS", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Backend))
	return srv.ListenAndServeTLS("", "")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStores(cfg *config.Config) (files.Store, files.Store, io.Closer, error) {
	switch cfg.Storage.Backend {
	case "bolt":
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return nil, nil, nil, err
		}
		db, err := files.OpenBolt(cfg.Storage.BoltPath)
		if err != nil {
			return nil, nil, nil, err
		}
		overlays, err := db.Store(files.OverlayLayout)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		photos, err := db.Store(files.PhotoLayout)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return overlays, photos, db, nil
	case "memory":
		return files.NewMemStore(files.OverlayLayout), files.NewMemStore(files.PhotoLayout), nopCloser{}, nil
	default:
		overlays, err := files.NewDirStore(cfg.Storage.Dir, files.OverlayLayout)
		if err != nil {
			return nil, nil, nil, err
		}
		photos, err := files.NewDirStore(cfg.Storage.Dir, files.PhotoLayout)
		if err != nil {
			return nil, nil, nil, err
		}
		return overlays, photos, nopCloser{}, nil
	}
}
