package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/store-ratings/internal/config"
	"github.com/Clark-Hu/store-ratings/internal/logger"
	"github.com/Clark-Hu/store-ratings/internal/service"
)

// HealthChecker is the part of store.Store the health endpoint needs.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Stats() *pgxpool.Stat
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	health  HealthChecker
	svc     *service.Service
	logger  *logger.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, health HealthChecker, svc *service.Service, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:    cfg,
		health: health,
		svc:    svc,
		logger: log.With("component", "http"),
		router: r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/stores", func(r chi.Router) {
		r.Get("/", s.handleListStores)
		r.Post("/", s.handleCreateStore)
		r.Get("/owner/{ownerId}", s.handleGetStoreByOwner)
		r.Route("/{storeId}", func(r chi.Router) {
			r.Get("/", s.handleGetStore)
			r.Get("/ratings", s.handleListStoreRatings)
			r.Post("/ratings", s.handleSubmitRating)
			r.Get("/users/{userId}/rating", s.handleGetUserRating)
		})
	})
	s.router.Route("/ratings", func(r chi.Router) {
		r.Get("/", s.handleListRatings)
		r.Put("/{ratingId}", s.handleUpdateRating)
	})
	s.router.Route("/users", func(r chi.Router) {
		r.Get("/", s.handleListUsers)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Put("/password", s.handleUpdatePassword)
		r.Get("/{userId}", s.handleGetUser)
	})
}

// Start boots the HTTP server and blocks until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status string        `json:"status"`
	Pool   *poolResponse `json:"pool,omitempty"`
}

type poolResponse struct {
	TotalConns    int32 `json:"totalConns"`
	IdleConns     int32 `json:"idleConns"`
	AcquiredConns int32 `json:"acquiredConns"`
	MaxConns      int32 `json:"maxConns"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health == nil {
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database not configured")
		return
	}
	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
		return
	}

	resp := healthResponse{Status: "ok"}
	if stat := s.health.Stats(); stat != nil {
		resp.Pool = &poolResponse{
			TotalConns:    stat.TotalConns(),
			IdleConns:     stat.IdleConns(),
			AcquiredConns: stat.AcquiredConns(),
			MaxConns:      stat.MaxConns(),
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}
