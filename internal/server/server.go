// Package server exposes the HTTP surface: audio upload with transcription,
// word-selection clip assembly, and file serving for the stored artifacts.
package server

import (
	"context"
	"embed"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wordclip/wordclip/internal/asr"
	"github.com/wordclip/wordclip/internal/clip"
	"github.com/wordclip/wordclip/internal/oplog"
	"github.com/wordclip/wordclip/internal/store"
	"github.com/wordclip/wordclip/internal/transcript"
)

//go:embed static
var staticFS embed.FS

// HealthChecker reports transcription backend health for /healthz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*asr.HealthStatus, error)
}

// Options wires a Server. Uploads, Clips, Cache and Assembler are required.
type Options struct {
	Uploads           store.Store
	Clips             store.Store
	Cache             *transcript.Cache
	Assembler         *clip.Assembler
	AllowedExtensions []string
	Health            HealthChecker // optional
	Log               logrus.FieldLogger
	Ops               *oplog.Logger
}

// Server is the upload/serve gateway.
type Server struct {
	uploads     store.Store
	clips       store.Store
	cache       *transcript.Cache
	assembler   *clip.Assembler
	allowedExts []string
	health      HealthChecker
	log         logrus.FieldLogger
	ops         *oplog.Logger
	hub         *Hub
	router      *mux.Router
}

// New builds the gateway and its routes.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Ops == nil {
		opts.Ops = oplog.NewNoOp()
	}
	s := &Server{
		uploads:     opts.Uploads,
		clips:       opts.Clips,
		cache:       opts.Cache,
		assembler:   opts.Assembler,
		allowedExts: opts.AllowedExtensions,
		health:      opts.Health,
		log:         opts.Log,
		ops:         opts.Ops,
		hub:         NewHub(opts.Log),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/clip", s.handleClip).Methods(http.MethodPost)
	r.HandleFunc("/uploads/{filename}", s.serveFrom(s.uploads)).Methods(http.MethodGet)
	r.HandleFunc("/clips/{filename}", s.serveFrom(s.clips)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/events", s.hub.handleWS).Methods(http.MethodGet)
	r.Use(s.withRequestID)
	s.router = r

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
