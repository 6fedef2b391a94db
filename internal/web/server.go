// Package web provides the HTTP API for the statement normalization service.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JonMunkholm/statements/internal/cache"
	"github.com/JonMunkholm/statements/internal/config"
	"github.com/JonMunkholm/statements/internal/core"
	"github.com/JonMunkholm/statements/internal/schemas"
	"github.com/JonMunkholm/statements/internal/web/middleware"
)

// Deps are the collaborators a Server drives. Store and Cache may be nil.
type Deps struct {
	Pipeline *core.Pipeline
	Limiter  *core.RunLimiter
	Schemas  *schemas.Set
	Fetcher  core.Fetcher
	Store    Store
	Cache    cache.Client
}

// Server is the HTTP server for the normalization API.
type Server struct {
	cfg      *config.Config
	pipeline *core.Pipeline
	limiter  *core.RunLimiter
	schemas  *schemas.Set
	fetcher  core.Fetcher
	store    Store
	cache    cache.Client

	router       *chi.Mux
	server       *http.Server
	rateLimiters []*middleware.RateLimiter
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: deps.Pipeline,
		limiter:  deps.Limiter,
		schemas:  deps.Schemas,
		fetcher:  deps.Fetcher,
		store:    deps.Store,
		cache:    deps.Cache,
		router:   chi.NewRouter(),
	}
	if s.limiter == nil {
		s.limiter = core.NewRunLimiter(cfg.Runs.MaxConcurrent, cfg.Runs.MaxWaitTime)
	}
	if s.schemas == nil {
		s.schemas = schemas.NewSet(nil)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id", "X-Schemas"},
		ExposedHeaders: []string{"X-Cast-Status", "X-Provider", "X-Run-Id", "X-Cache"},
		MaxAge:         300,
	}))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP, s.cfg.Server.Header))

	if s.cfg.Rate.Enabled {
		rl := middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute)
		s.rateLimiters = append(s.rateLimiters, rl)
		s.router.Use(rl.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleStatus)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/docs", s.handleDocs)
	if s.cfg.Server.DocsDir != "" {
		s.router.Handle("/docs/files/*", http.StripPrefix("/docs/files/", http.FileServer(http.Dir(s.cfg.Server.DocsDir))))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

		r.Get("/providers", s.handleProviders)

		// Normalization, with a tighter rate limit since each call runs the pipeline
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				rl := middleware.NewRateLimiter(s.cfg.Rate.NormalizeLimit)
				s.rateLimiters = append(s.rateLimiters, rl)
				r.Use(rl.Handler)
			}
			r.Post("/normalize", s.handleNormalize)
			r.Post("/normalize/url", s.handleNormalizeURL)
			r.Post("/classify", s.handleClassify)
			r.Post("/proxy/download", s.handleProxyDownload)
		})

		// Dynamic schemas
		r.Get("/schemas", s.handleListSchemas)
		r.Post("/schemas", s.handleCreateSchemas)
		r.Delete("/schemas/{name}", s.handleDeleteSchema)

		// Run history
		r.Get("/runs", s.handleRuns)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for in-flight runs.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.rateLimiters {
		rl.Stop()
	}
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}

	if active := s.limiter.ActiveCount(); active > 0 {
		slog.Info("waiting for runs to finish", "active", active)
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool, serverHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// The docs page uses inline styles only
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if serverHeader != "" {
				w.Header().Set("Server", serverHeader)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// runTimeout bounds one pipeline run.
func (s *Server) runTimeout() time.Duration {
	if s.cfg.Runs.Timeout > 0 {
		return s.cfg.Runs.Timeout
	}
	return time.Minute
}
