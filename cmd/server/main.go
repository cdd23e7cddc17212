package main

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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/site-content/pkg/sitecontent/api"
	"github.com/tendant/site-content/pkg/sitecontent/config"
)

func main() {
	// A missing .env is fine; the process environment still applies
	_ = godotenv.Load()

	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(serverConfig.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, serverConfig, logger); err != nil {
		logger.Error("Server error", "err", err)
		os.Exit(1)
	}
}

func newLogger(environment string) *slog.Logger {
	if environment == "development" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func run(ctx context.Context, serverConfig *config.ServerConfig, logger *slog.Logger) error {
	rt, err := serverConfig.Build(ctx, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer rt.Close()

	if err := seed(ctx, serverConfig, rt); err != nil {
		return err
	}

	if rt.Subscriber != nil {
		go func() {
			if err := rt.Subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Invalidation subscriber stopped", "err", err)
			}
		}()
	}

	server := NewHTTPServer(rt, serverConfig, logger, prometheus.DefaultRegisterer)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Site content server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"storage", serverConfig.StorageType,
			"document", serverConfig.DocumentKey)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Let in-flight invalidations finish before connections close
	rt.Service.Wait()
	logger.Info("Server exiting")
	return nil
}

func seed(ctx context.Context, serverConfig *config.ServerConfig, rt *config.Runtime) error {
	doc, err := serverConfig.LoadSeed()
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	created, err := rt.Service.Seed(ctx, serverConfig.DocumentKey, doc)
	if err != nil {
		return fmt.Errorf("failed to seed content: %w", err)
	}
	if created {
		slog.Info("Seeded content", "document", serverConfig.DocumentKey, "file", serverConfig.SeedFile)
	}
	return nil
}

// HTTPServer wraps the site content service for HTTP access
type HTTPServer struct {
	runtime *config.Runtime
	config  *config.ServerConfig
	logger  *slog.Logger
	metrics *api.HTTPMetrics
}

// NewHTTPServer creates a new HTTP server wrapper. reg may be nil to skip
// request metrics.
func NewHTTPServer(rt *config.Runtime, serverConfig *config.ServerConfig, logger *slog.Logger, reg prometheus.Registerer) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{
		runtime: rt,
		config:  serverConfig,
		logger:  logger,
	}
	if reg != nil {
		s.metrics = api.NewHTTPMetrics(reg)
	}
	return s
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.LoggingMiddleware(s.logger))
	r.Use(api.RecoveryMiddleware(s.logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(api.CORSMiddleware(s.config.AllowedOrigins, nil, nil))
	r.Use(api.RequestSizeLimitMiddleware(s.config.MaxBodyBytes))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/", api.Health)
	r.Get("/health", api.Health)
	r.Get("/healthz", api.Health)
	r.Handle("/metrics", promhttp.Handler())

	handler := api.NewContentHandler(s.runtime.Service,
		api.WithDocumentKey(s.config.DocumentKey),
		api.WithAdminGuard(api.AdminGuard(api.NewTokenAuth(s.config.JWTSecret))),
		api.WithHandlerLogger(s.logger),
	)
	r.Mount("/api", handler.Routes())

	return r
}
