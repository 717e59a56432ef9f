// Package server is the composition root: it opens storage, builds the
// services and handlers, and mounts them on a chi router behind the auth
// gates.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  → storage.OpenCached (SQLite or Postgres, optional Redis catalog cache)
//	  → services (auth, quiz, scoring, user)
//	  → handlers
//	  → routes
//
// Handlers never touch storage; services never touch HTTP.
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
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/disaster-ready/internal/auth"
	"github.com/sakif/disaster-ready/internal/config"
	"github.com/sakif/disaster-ready/internal/handler"
	"github.com/sakif/disaster-ready/internal/metrics"
	"github.com/sakif/disaster-ready/internal/middleware"
	"github.com/sakif/disaster-ready/internal/service"
	"github.com/sakif/disaster-ready/internal/storage"
)

// Server owns the router and the storage it was built on. Start closes the
// storage on the way out; callers that never Start must call Close.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	stores *storage.Stores
	tokens *auth.TokenService
}

// New wires the whole application from cfg. The signing key and database
// settings are read here once and never change afterwards.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords, err := auth.NewPasswordService(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("creating password service: %w", err)
	}

	stores, err := storage.OpenCached(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		stores: stores,
		tokens: tokens,
	}
	s.setupRoutes(passwords)
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the storage.
func (s *Server) Close() error {
	return s.stores.Close()
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET    /healthz                  public
//	GET    /metrics                  public (Prometheus)
//	POST   /api/register             public
//	POST   /api/login                public
//	GET    /api/me                   identity gate
//	GET    /api/quizzes              identity gate
//	GET    /api/quizzes/{id}         identity gate
//	POST   /api/quizzes/submit       identity gate
//	GET    /api/leaderboard          identity gate
//	GET    /api/admin/users          identity + admin gate
//	GET    /api/admin/users/{id}     identity + admin gate
//	PUT    /api/admin/users/{id}     identity + admin gate
//	DELETE /api/admin/users/{id}     identity + admin gate
//
// MIDDLEWARE ORDER:
// RequestID runs first so the logger can print it. CORS answers pre-flight
// requests before the auth gates ever see them.
func (s *Server) setupRoutes(passwords service.PasswordHasher) {
	authService := service.NewAuthService(s.stores.Users, s.tokens, passwords, s.logger)
	quizService := service.NewQuizService(s.stores.Quizzes, s.logger)
	scoringService := service.NewScoringService(s.stores.Users, s.stores.Quizzes, s.stores.Ledger, metrics.Scoring{}, s.logger)
	userService := service.NewUserService(s.stores.Users, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	quizHandler := handler.NewQuizHandler(quizService, scoringService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", handler.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens, s.logger))

			r.Get("/me", authHandler.HandleMe)
			r.Get("/quizzes", quizHandler.HandleList)
			r.Get("/quizzes/{id}", quizHandler.HandleGet)
			r.Post("/quizzes/submit", quizHandler.HandleSubmit)
			r.Get("/leaderboard", userHandler.HandleLeaderboard)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Get("/users", userHandler.HandleList)
				r.Get("/users/{id}", userHandler.HandleGet)
				r.Put("/users/{id}", userHandler.HandleUpdate)
				r.Delete("/users/{id}", userHandler.HandleDelete)
			})
		})
	})
}

// Start serves until ctx is canceled, SIGINT/SIGTERM arrives or the listener
// fails, then drains in-flight requests within the configured shutdown
// timeout and closes the storage.
func (s *Server) Start(ctx context.Context) error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing storage", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("database", s.config.Database.Driver),
			slog.Bool("cache", s.config.Redis.Addr != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}
