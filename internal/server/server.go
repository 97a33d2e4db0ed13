// Package server is the composition root: it opens the store, builds the
// services and handlers, mounts the routes and runs the HTTP server with
// graceful shutdown.
//
// DEPENDENCY FLOW:
//
//	config.Config → repository.Store (postgres | sqlite)
//	              → auth.TokenService, auth.TokenSealer, auth.SpotifyProvider
//	              → service.AuthService, StatsService, WrapService
//	              → handler.AuthHandler, SpotifyHandler, HealthHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/wrapify/wrapify/internal/auth"
	"github.com/wrapify/wrapify/internal/cache"
	"github.com/wrapify/wrapify/internal/config"
	"github.com/wrapify/wrapify/internal/handler"
	"github.com/wrapify/wrapify/internal/metrics"
	"github.com/wrapify/wrapify/internal/middleware"
	"github.com/wrapify/wrapify/internal/repository"
	pgRepo "github.com/wrapify/wrapify/internal/repository/postgres"
	sqliteRepo "github.com/wrapify/wrapify/internal/repository/sqlite"
	"github.com/wrapify/wrapify/internal/service"
	"github.com/wrapify/wrapify/internal/spotify"
)

const (
	// PruneInterval is how often expired sessions are deleted.
	PruneInterval = 15 * time.Minute

	shutdownTimeout  = 30 * time.Second
	cachePingTimeout = 2 * time.Second
)

// Server owns the router, the store and the background workers.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	cache  cache.Cache
	auth   *service.AuthService

	// stop cancels the background goroutines (rate-limit sweeps, pruning).
	stop context.CancelFunc
	ctx  context.Context
}

// OpenStore opens the database selected by cfg.DatabaseURL and applies
// pending migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	store, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

// Migrate applies pending migrations to the database selected by
// cfg.DatabaseURL and reports how many ran.
func Migrate(ctx context.Context, cfg *config.Config) (int, error) {
	store, err := connect(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	n, err := store.Migrate(ctx)
	if err != nil {
		return n, fmt.Errorf("running migrations: %w", err)
	}
	return n, nil
}

func connect(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.IsPostgres() {
		db, err := pgRepo.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return db, nil
	}

	if dir := sqliteDir(cfg.DatabaseURL); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqliteRepo.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	return db, nil
}

// sqliteDir returns the directory to create for a plain file path, or ""
// for in-memory databases and file: URIs.
func sqliteDir(dsn string) string {
	if dsn == "" || strings.Contains(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return ""
	}
	return dir
}

// New opens the store from cfg and wires the server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := NewWithStore(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore wires the server around an already opened store. The server
// takes ownership of store and closes it on shutdown.
func NewWithStore(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		ctx:    ctx,
		stop:   stop,
	}

	if err := s.setupRoutes(); err != nil {
		stop()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes builds every dependency and mounts the routes.
//
// ROUTES:
//
//	GET  /healthz               → database ping
//	GET  /metrics               → Prometheus
//	GET  /api/auth/login        → redirect to Spotify          (rate limited)
//	GET  /api/auth/callback     → finish login                 (rate limited)
//	POST /api/auth/logout       → delete session               (session)
//	GET  /api/me                → current user                 (session)
//	GET  /api/stats             → top tracks, artists, genres  (session)
//	POST /api/generate-wrap     → create a wrap                (session)
//	GET  /api/wraps             → list wraps                   (session)
//	GET  /*                     → SPA, when StaticDir is set
func (s *Server) setupRoutes() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("session tokens: %w", err)
	}
	sealer, err := auth.NewTokenSealer(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("token sealer: %w", err)
	}

	statsCache, err := cache.New(cache.Options{
		Driver:     cfg.CacheDriver,
		DefaultTTL: cfg.StatsCacheTTL,
		RedisAddr:  cfg.RedisAddr,
		RedisDB:    cfg.RedisDB,
		KeyPrefix:  "wrapify:",
	})
	if err != nil {
		return fmt.Errorf("stats cache: %w", err)
	}
	s.cache = statsCache
	s.pingCache(statsCache)

	metricsHandler, err := metrics.Register(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	provider := auth.NewSpotifyProvider(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.CallbackURL(), cfg.SpotifyAccountsURL)
	if !cfg.SpotifyConfigured() {
		s.logger.Warn("spotify credentials missing; /api/auth/login will return 503")
	}
	api := spotify.NewClient(cfg.SpotifyAPIURL, nil)
	creds := service.NewCredentials(s.store, sealer, provider, s.logger)

	statsService := service.NewStatsService(api, creds, statsCache, cfg.StatsCacheTTL, s.logger)
	s.auth = service.NewAuthService(service.AuthDeps{
		Users:      s.store,
		Sessions:   s.store,
		Provider:   provider,
		Spotify:    api,
		Tokens:     tokens,
		Sealer:     sealer,
		Stats:      statsService,
		SessionTTL: cfg.SessionTTL,
		Logger:     s.logger,
	})
	wrapService := service.NewWrapService(s.store, api, creds, s.logger)

	cookies := auth.Cookies{Secure: cfg.CookieSecure}
	authHandler := handler.NewAuthHandler(s.auth, cookies, s.logger)
	spotifyHandler := handler.NewSpotifyHandler(statsService, wrapService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)
	requireAuth := auth.RequireAuth(s.auth, cookies, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", metricsHandler)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(s.ctx, cfg.AuthRateLimit, cfg.AuthRateBurst))
				r.Get("/login", authHandler.HandleLogin)
				r.Get("/callback", authHandler.HandleCallback)
			})
			r.With(requireAuth).Post("/logout", authHandler.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Get("/stats", spotifyHandler.HandleStats)
			r.Post("/generate-wrap", spotifyHandler.HandleGenerateWrap)
			r.Get("/wraps", spotifyHandler.HandleListWraps)
		})
	})

	if cfg.StaticDir != "" {
		s.router.Handle("/*", handler.SPA(cfg.StaticDir))
	}

	return nil
}

// pingCache warns when a networked cache is unreachable at startup. The
// server still starts: cache errors read as misses.
func (s *Server) pingCache(c cache.Cache) {
	p, ok := c.(interface{ Ping(context.Context) error })
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, cachePingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		s.logger.Warn("stats cache unreachable; every stats request will hit Spotify",
			slog.String("driver", s.config.CacheDriver),
			slog.String("error", err.Error()),
		)
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// pruneLoop deletes expired sessions every interval until ctx ends.
func (s *Server) pruneLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s *Server) prune(ctx context.Context) {
	n, err := s.auth.PruneSessions(ctx)
	if err != nil {
		s.logger.Error("pruning sessions", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Info("pruned expired sessions", slog.Int64("count", n))
	}
}

// Close stops the background workers and releases the store and cache.
func (s *Server) Close() error {
	s.stop()
	var errs []error
	if c, ok := s.cache.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// Start serves HTTP until SIGINT or SIGTERM, then drains in-flight requests
// for up to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.pruneLoop(s.ctx, PruneInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.Bool("postgres", s.config.IsPostgres()),
			slog.String("cache", s.config.CacheDriver),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
