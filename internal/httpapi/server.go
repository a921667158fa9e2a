package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/subtrans-engine/internal/config"
	"github.com/MimeLyc/subtrans-engine/internal/engine"
	"github.com/MimeLyc/subtrans-engine/internal/library"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	engine   *engine.Engine
	scanner  *library.Scanner
	source   *library.Source
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func NewServer(eng *engine.Engine, scanner *library.Scanner, source *library.Source, opts ...Option) *Server {
	s := &Server{
		engine:  eng,
		scanner: scanner,
		source:  source,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/library/contents", s.handleListContents)
	s.mux.HandleFunc("/api/scan", s.handleScan)
	s.mux.HandleFunc("/api/tasks", s.handleTasks)
	s.mux.HandleFunc("/api/tasks/", s.handleTaskRoutes)
	s.mux.HandleFunc("/api/translations", s.handleTranslations)
	s.mux.HandleFunc("/api/edits", s.handleEditsView)
	s.mux.HandleFunc("/api/edits/", s.handleEditActions)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
}
