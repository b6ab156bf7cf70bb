// Package server provides the HTTP server and routing for the vault.
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

	"github.com/trivault/trivault/internal/config"
	"github.com/trivault/trivault/internal/database"
	"github.com/trivault/trivault/internal/events"
	"github.com/trivault/trivault/internal/modules/analytics"
	"github.com/trivault/trivault/internal/modules/assets"
	"github.com/trivault/trivault/internal/modules/settings"
	"github.com/trivault/trivault/internal/modules/vault"
	"github.com/trivault/trivault/internal/reliability"
	"github.com/trivault/trivault/internal/scheduler"
)

// Config holds server construction parameters
type Config struct {
	Log              zerolog.Logger
	Cfg              *config.Config
	Databases        map[string]*database.DB
	VaultService     *vault.Service
	Ledger           *assets.Ledger
	AnalyticsService *analytics.Service
	AnalyticsRepo    *analytics.Repository
	Health           *reliability.DatabaseHealthService
	Scheduler        *scheduler.Scheduler
	Settings         *settings.Repository
	Bus              *events.Bus
}

// Server is the HTTP server
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	cfg        *config.Config
	vaultAPI   *vault.Handler
	analytics  *analytics.Handler
	system     *SystemHandlers
	admin      *AdminHandlers
	eventsWS   *EventsStreamHandler
	adminToken string
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg.Cfg,
		vaultAPI:   vault.NewHandler(cfg.VaultService, cfg.Log),
		analytics:  analytics.NewHandler(cfg.AnalyticsService, cfg.AnalyticsRepo, cfg.Log),
		system:     NewSystemHandlers(cfg.Databases, cfg.Health, cfg.Scheduler, cfg.Settings, cfg.Log),
		admin:      NewAdminHandlers(cfg.Ledger, cfg.VaultService, cfg.Log),
		eventsWS:   NewEventsStreamHandler(cfg.Bus, cfg.Log),
		adminToken: cfg.Cfg.AdminToken,
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetJobs registers jobs for manual triggering via the system API
func (s *Server) SetJobs(backup, maintenance scheduler.Job) {
	s.system.SetJobs(backup, maintenance)
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
		r.Route("/vault", func(r chi.Router) {
			r.Post("/deposit", s.vaultAPI.HandleDeposit)
			r.Post("/withdraw", s.vaultAPI.HandleWithdraw)
			r.Get("/policy/{holder}", s.vaultAPI.HandleGetPolicy)
			r.Put("/policy/{holder}", s.vaultAPI.HandleSetPolicy)
			r.Post("/rebalance/{holder}", s.vaultAPI.HandleRebalance)
			r.Post("/rebalance/{holder}/partial", s.vaultAPI.HandlePartialRebalance)
			r.Get("/position/{holder}", s.vaultAPI.HandleGetPosition)
			r.Get("/value", s.vaultAPI.HandleGetValue)
			r.Get("/operations/{holder}", s.vaultAPI.HandleGetOperations)
		})

		r.Route("/assets", func(r chi.Router) {
			r.Post("/approve", s.admin.HandleApprove)
			r.Get("/balance/{account}", s.admin.HandleBalance)
			r.With(s.requireAdminToken).Post("/mint", s.admin.HandleMint)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdminToken)
			r.Get("/strategies", s.admin.HandleListStrategies)
			r.Post("/strategies/{slot}/rebind", s.admin.HandleRebindStrategy)
			r.Post("/backup", s.system.HandleTriggerBackup)
			r.Post("/maintenance", s.system.HandleTriggerMaintenance)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/info", s.system.HandleSystemInfo)
			r.Get("/databases", s.system.HandleDatabaseStats)
			r.Get("/databases/health", s.system.HandleDatabaseHealth)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", s.analytics.HandleGetSummary)
			r.Get("/snapshots", s.analytics.HandleGetSnapshots)
		})

		r.Get("/events/ws", s.eventsWS.ServeHTTP)
	})
}

// requireAdminToken guards operator endpoints. An empty configured token
// disables the check, which is only sensible in dev mode.
func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken != "" && r.Header.Get("Authorization") != "Bearer "+s.adminToken {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth is the liveness probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
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
