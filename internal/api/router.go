package api

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires the booth API, the asset addresses and the static booth
// page into one handler.
func NewRouter(s *Server) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.Health).Methods("GET")
	api.HandleFunc("/overlays", s.ListOverlays).Methods("GET")
	api.Handle("/overlays", s.gate.Middleware(http.HandlerFunc(s.AddOverlays))).Methods("POST")
	api.Handle("/overlays/{name}", s.gate.Middleware(http.HandlerFunc(s.RemoveOverlay))).Methods("DELETE")
	api.HandleFunc("/photo", s.SubmitPhoto).Methods("POST")
	api.HandleFunc("/compose", s.Compose).Methods("POST")
	api.PathPrefix("/").HandlerFunc(s.NotFound)

	r.HandleFunc("/uploads/overlays/{name}", s.ServeOverlay).Methods("GET", "HEAD")
	r.HandleFunc("/uploads/photos/{name}", s.ServePhoto).Methods("GET", "HEAD")

	if s.publicDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.publicDir)))
	}

	var h http.Handler = r
	if len(s.origins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.origins),
			handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "X-Admin-Token"}),
		)(h)
	}
	h = s.accessLog(h)
	h = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.log)),
		handlers.PrintRecoveryStack(true),
	)(h)
	return h
}
