package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fdg312/coach-nutrition/internal/adherence"
	"github.com/fdg312/coach-nutrition/internal/auth"
	"github.com/fdg312/coach-nutrition/internal/blob"
	"github.com/fdg312/coach-nutrition/internal/config"
	"github.com/fdg312/coach-nutrition/internal/localcache"
	"github.com/fdg312/coach-nutrition/internal/reconcile"
	"github.com/fdg312/coach-nutrition/internal/storage"
	"github.com/fdg312/coach-nutrition/internal/storage/memory"
	"github.com/fdg312/coach-nutrition/internal/storage/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the HTTP API of the nutrition tracker.
type Server struct {
	config         *config.Config
	logger         *zap.Logger
	mux            *http.ServeMux
	storage        storage.Storage
	registry       *prometheus.Registry
	httpMetrics    *httpMetrics
	nutrition      *adherence.Service
	authMiddleware *auth.Middleware
	httpServer     *http.Server
}

// New creates the server. Storage falls back to memory when Postgres is
// unreachable; a misconfigured blob store is an error.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.httpMetrics = newHTTPMetrics(s.registry)

	s.initStorage()

	blobStore, mode, err := blob.NewBlobStore(cfg.Blob, logger)
	if err != nil {
		s.storage.Close()
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	logger.Info("checked-state cache ready", zap.String("blob_mode", mode))

	metrics := reconcile.NewMetrics(s.registry)
	mealStore := reconcile.NewStore(s.storage.GetMealsStorage(), reconcile.Options{
		BatchSize:   cfg.Nutrition.MealLookupBatchSize,
		Concurrency: cfg.Nutrition.MealLookupConcurrency,
	}, logger, metrics)

	s.nutrition = adherence.NewService(adherence.Deps{
		Plans:            s.storage.GetPlansStorage(),
		Snapshots:        s.storage.GetSnapshotsStorage(),
		Catalog:          s.storage.GetMealsStorage(),
		Store:            mealStore,
		Cache:            localcache.New(blobStore),
		Logger:           logger,
		Metrics:          metrics,
		Location:         cfg.Nutrition.PlanTimezone,
		SnapshotInterval: cfg.Nutrition.SnapshotInterval,
	})

	s.routes()
	return s, nil
}

func (s *Server) initStorage() {
	if s.config.DatabaseURL == "" {
		s.logger.Info("using in-memory storage")
		s.storage = memory.New()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pgStorage, err := postgres.New(ctx, s.config.DatabaseURL)
	if err != nil {
		s.logger.Error("postgres unavailable, falling back to in-memory storage", zap.Error(err))
		s.storage = memory.New()
		return
	}
	s.logger.Info("postgres connected")
	s.storage = pgStorage
}

func (s *Server) routes() {
	// Health check (no auth required)
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	authService := auth.NewService(s.config)
	s.authMiddleware = auth.NewMiddleware(s.config, authService, s.logger)
	if s.config.AuthMode == config.AuthModeDev {
		// POST /v1/auth/dev - dev token for any client id
		s.mux.HandleFunc("POST /v1/auth/dev", auth.NewHandlers(authService, s.logger).HandleDevAuth)
	}

	adherence.NewHandler(s.nutrition, s.logger).Register(s.mux)
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	// Outermost first: CORS → Rate Limit → Auth → Metrics → Router
	handler := s.httpMetrics.instrument(s.mux)
	if s.config.AuthMode != config.AuthModeNone && s.config.AuthMode != "" {
		handler = s.authMiddleware.RequireAuth(handler)
	}
	handler = RateLimitMiddleware(s.config, s.httpMetrics, handler)
	handler = CORSMiddleware(s.config, handler)
	return handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server listening",
		zap.String("addr", addr),
		zap.String("auth_mode", s.config.AuthMode),
		zap.Bool("auth_required", s.config.AuthRequired))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, flushes tracking sessions and closes
// storage.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.nutrition.Close(ctx)
	if closeErr := s.storage.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
