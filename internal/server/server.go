// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It decides which URL maps to which
// handler, what middleware runs where, and how the server starts and stops.
//
// DEPENDENCY INJECTION FLOW:
// main.go builds the store (Firestore or SQLite) and hands it in:
//
//	repository.Store → services → handlers → routes
//
// Everything else is assembled in New/setupRoutes, the "composition root".
// Tests pass an in-memory SQLite store and drive the router through Handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/stampcard/internal/config"
	"github.com/sakif/stampcard/internal/formsg"
	"github.com/sakif/stampcard/internal/handler"
	"github.com/sakif/stampcard/internal/metrics"
	"github.com/sakif/stampcard/internal/middleware"
	"github.com/sakif/stampcard/internal/repository"
	"github.com/sakif/stampcard/internal/service"
)

// Server owns the router and the store. The store is closed on shutdown.
type Server struct {
	router      *chi.Mux
	config      config.Config
	logger      *slog.Logger
	store       repository.Store
	registry    *prometheus.Registry
	rateLimiter *middleware.RateLimiter
}

// New wires services and handlers around store. It fails only when the
// FormSG secret key is malformed.
func New(cfg config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	processor, err := formsg.NewProcessor(formsg.Config{
		WebhookSecret: cfg.FormSGWebhookSecret,
		SecretKey:     cfg.FormSGSecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring formsg: %w", err)
	}
	if !processor.VerifiesSignatures() {
		logger.Warn("FORMSG_WEBHOOK_SECRET not set, webhook signatures are not checked")
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if cfg.RateLimitPerMinute > 0 {
		s.rateLimiter = middleware.NewRateLimiter(
			middleware.PerMinute(cfg.RateLimitPerMinute, cfg.RateLimitBurst), logger)
	}

	s.setupRoutes(processor)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /health                    → liveness
// GET  /metrics                   → Prometheus
// POST /api/create-guest          → nickname registration (rate limited)
// POST /api/formsg-webhook        → FormSG delivery
// POST /api/receive-submission    → relayed submission id (rate limited)
// GET  /api/formsg-redirect       → FormSG post-submit redirect
// GET  /api/get-stamp?id=         → read a card
// POST /api/mark-stamp?id=&booth= → booth scan (rate limited)
// GET  /api/booths                → booth catalog
// GET  /api/admin/stats           → dashboard data
// GET  /api/test-store            → storage round-trip check
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so every later log line can carry it. RealIP comes
// before the logger and rate limiter so both see the client's address.
func (s *Server) setupRoutes(processor *formsg.Processor) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	// CORS runs before routing, so preflights to any path get their 204
	// without a matching OPTIONS route.
	s.router.Use(middleware.CORS(s.config.CORSAllowedOrigin))

	rec := metrics.NewCollector(s.registry)

	registration := service.NewRegistrationService(s.store, s.logger, rec)
	webhooks := service.NewWebhookService(s.store, processor, s.config.BaseURL, s.logger, rec)
	stamps := service.NewStampService(s.store, s.logger, rec)
	admin := service.NewAdminService(s.store, s.logger, rec)

	devMode := s.config.DevMode
	registrationHandler := handler.NewRegistrationHandler(registration, webhooks, s.logger, devMode)
	stampHandler := handler.NewStampHandler(stamps, s.logger, devMode)
	adminHandler := handler.NewAdminHandler(admin, s.logger, devMode)

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler(s.registry))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/formsg-webhook", registrationHandler.HandleFormSGWebhook)
		r.Get("/formsg-redirect", registrationHandler.HandleFormRedirect)
		r.Get("/get-stamp", stampHandler.HandleGet)
		r.Get("/booths", stampHandler.HandleBooths)
		r.Get("/admin/stats", adminHandler.HandleStats)
		r.Get("/test-store", adminHandler.HandleTestStore)

		r.Group(func(r chi.Router) {
			if s.rateLimiter != nil {
				r.Use(s.rateLimiter.Middleware)
			}
			r.Post("/create-guest", registrationHandler.HandleCreateGuest)
			r.Post("/receive-submission", registrationHandler.HandleReceiveSubmission)
			r.Post("/mark-stamp", stampHandler.HandleMark)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// Close releases the rate limiter and the store.
func (s *Server) Close() error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return s.store.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.StoreBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
