// Package server wires the HTTP API: watchlist, history, portfolio, notes,
// filings, alerts and system endpoints, plus the quote WebSocket stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/config"
	"github.com/aristath/marginwatch/internal/modules/alerts"
	"github.com/aristath/marginwatch/internal/modules/filings"
	"github.com/aristath/marginwatch/internal/modules/history"
	"github.com/aristath/marginwatch/internal/modules/notes"
	"github.com/aristath/marginwatch/internal/modules/portfolio"
	"github.com/aristath/marginwatch/internal/modules/watchlist"
	"github.com/aristath/marginwatch/internal/stream"
)

// Deps holds everything the server routes to
type Deps struct {
	Config    *config.Config
	Log       zerolog.Logger
	Watchlist *watchlist.Handlers
	History   *history.Handlers
	Portfolio *portfolio.Handlers
	Notes     *notes.Handlers
	Filings   *filings.Handlers
	Alerts    *alerts.Handlers
	System    *SystemHandlers
	Stream    *stream.Hub
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	deps   Deps
}

// New creates a new HTTP server
func New(deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    deps.Log.With().Str("component", "server").Logger(),
		deps:   deps,
	}

	s.setupMiddleware(deps.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", deps.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", s.deps.Watchlist.HandleList)
			r.Post("/", s.deps.Watchlist.HandleCreate)
			r.Get("/{ticker}", s.deps.Watchlist.HandleGet)
			r.Put("/{ticker}", s.deps.Watchlist.HandleUpdate)
			r.Delete("/{ticker}", s.deps.Watchlist.HandleDelete)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/{ticker}", s.deps.History.HandleRecent)
			r.Get("/{ticker}/daily", s.deps.History.HandleDailyBars)
			r.Get("/{ticker}/stats", s.deps.History.HandleStats)
			r.Post("/{ticker}/sync", s.deps.History.HandleSync)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", s.deps.Portfolio.HandleList)
			r.Post("/", s.deps.Portfolio.HandleCreate)
			r.Put("/{id}", s.deps.Portfolio.HandleUpdate)
			r.Delete("/{id}", s.deps.Portfolio.HandleDelete)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", s.deps.Notes.HandleList)
			r.Post("/", s.deps.Notes.HandleCreate)
			r.Get("/{uuid}", s.deps.Notes.HandleGet)
			r.Put("/{uuid}", s.deps.Notes.HandleUpdate)
			r.Delete("/{uuid}", s.deps.Notes.HandleDelete)
		})

		r.Route("/filings", func(r chi.Router) {
			r.Get("/{ticker}", s.deps.Filings.HandleRecent)
			r.Delete("/{ticker}/cache", s.deps.Filings.HandleInvalidate)
		})

		r.Get("/alerts", s.deps.Alerts.HandleRecent)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.deps.System.HandleStatus)
			r.Get("/db-stats", s.deps.System.HandleDatabaseStats)
			r.Post("/refresh", s.deps.System.HandleTriggerRefresh)
			r.Post("/backup", s.deps.System.HandleTriggerBackup)
			r.Get("/backups", s.deps.System.HandleListBackups)
		})
	})

	s.router.Get("/ws/quotes", s.deps.Stream.HandleWS)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.deps.Config.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
