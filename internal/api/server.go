// Package api is the REST+WebSocket facade (§6): a go-chi router exposing
// the script catalog, run/stop control, log content and tailing, on-disk
// upload and scan, and settings endpoints over the core components.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/scriptd/scriptd/internal/logsink"
	"github.com/scriptd/scriptd/internal/notifier"
	"github.com/scriptd/scriptd/internal/scheduler"
	"github.com/scriptd/scriptd/internal/store"
	"github.com/scriptd/scriptd/internal/supervisor"
)

// Scanner triggers an on-demand disk-sync pass (POST /scan, §6) and reports
// how many records were created, updated, or removed.
type Scanner interface {
	Sync() (int, error)
}

// Server wires the core components onto an HTTP router.
type Server struct {
	store      store.Store
	sup        *supervisor.Supervisor
	jobs       *scheduler.Registry
	sink       *logsink.Sink
	tailer     *logsink.Tailer
	notifier   *notifier.Notifier
	scanner    Scanner
	scriptRoot string
}

// Config bundles the dependencies a Server needs.
type Config struct {
	Store      store.Store
	Supervisor *supervisor.Supervisor
	Jobs       *scheduler.Registry
	Sink       *logsink.Sink
	Notifier   *notifier.Notifier
	Scanner    Scanner
	ScriptRoot string
}

// New builds a Server from cfg.
func New(cfg Config) *Server {
	return &Server{
		store:      cfg.Store,
		sup:        cfg.Supervisor,
		jobs:       cfg.Jobs,
		sink:       cfg.Sink,
		tailer:     logsink.NewTailer(cfg.Sink),
		notifier:   cfg.Notifier,
		scanner:    cfg.Scanner,
		scriptRoot: cfg.ScriptRoot,
	}
}

// Router builds the chi.Mux serving the /api prefix described in §6.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", s.handleHealthz)

		r.Route("/scripts", func(r chi.Router) {
			r.Get("/", s.handleListScripts)
			r.Post("/", s.handleCreateScript)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", s.handleUpdateScript)
				r.Delete("/", s.handleDeleteScript)
				r.Post("/run", s.handleRunScript)
				r.Post("/stop", s.handleStopScript)
				r.Get("/content", s.handleGetContent)
				r.Put("/content", s.handlePutContent)
			})
		})

		r.Get("/logs/{id}/stream", s.handleLogStream)

		r.Post("/upload", s.handleUpload)
		r.Post("/scan", s.handleScan)

		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handlePostSettings)
		r.Post("/settings/apply", s.handleSettingsApply)
		r.Post("/test-tg", s.handleTestTelegram)
	})

	return r
}
