package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/statements/internal/cache"
	"github.com/JonMunkholm/statements/internal/config"
	"github.com/JonMunkholm/statements/internal/core"
	_ "github.com/JonMunkholm/statements/internal/core/providers" // Register all casters
	"github.com/JonMunkholm/statements/internal/extract"
	"github.com/JonMunkholm/statements/internal/fetch"
	"github.com/JonMunkholm/statements/internal/logging"
	"github.com/JonMunkholm/statements/internal/schemas"
	"github.com/JonMunkholm/statements/internal/store"
	"github.com/JonMunkholm/statements/internal/tabular"
	"github.com/JonMunkholm/statements/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	policy, err := core.ParseCastPolicy(cfg.Runs.CastPolicy)
	if err != nil {
		slog.Error("invalid cast policy", "error", err)
		os.Exit(1)
	}

	// Background jobs stop when jobCtx is cancelled
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	// Dynamic schemas: file layer first, then anything saved in the database
	set := schemas.NewSet(nil)
	if cfg.Schemas.File != "" {
		defs, err := schemas.Load(cfg.Schemas.File)
		if err != nil {
			slog.Error("failed to load schemas", "error", err)
			os.Exit(1)
		}
		set.Replace(defs)
		slog.Info("schemas loaded", "path", cfg.Schemas.File, "count", len(defs))

		if cfg.Schemas.Watch {
			go func() {
				if err := schemas.Watch(jobCtx, cfg.Schemas.File, set, logger); err != nil {
					slog.Error("schema watcher stopped", "error", err)
				}
			}()
		}
	}

	deps := web.Deps{
		Schemas: set,
		Limiter: core.NewRunLimiter(cfg.Runs.MaxConcurrent, cfg.Runs.MaxWaitTime),
	}

	// Optional persistence
	if cfg.Database.Enabled() {
		pool, err := openPool(jobCtx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		st := store.New(pool)
		if err := st.Migrate(jobCtx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		saved, err := st.ListSchemas(jobCtx)
		if err != nil {
			slog.Error("failed to read saved schemas", "error", err)
			os.Exit(1)
		}
		for _, def := range saved {
			set.Put(def)
		}
		slog.Info("saved schemas loaded", "count", len(saved))

		go store.StartRetention(jobCtx, st, store.RetentionConfig{
			KeepFor:       cfg.Database.RunRetention,
			CheckInterval: cfg.Database.RetentionInterval,
		}, logger)

		deps.Store = st
	} else {
		slog.Info("DATABASE_URL not set, run history disabled and schemas kept in memory")
	}

	// Optional response cache
	if cfg.Cache.Enabled {
		client, err := openCache(jobCtx, cfg.Cache)
		if err != nil {
			slog.Error("failed to connect to cache", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		deps.Cache = client
	}

	// Pipeline collaborators
	fetcher := fetch.New(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes, cfg.Fetch.AllowLocal)
	fetcher.Logger = logger
	deps.Fetcher = fetcher

	opts := []core.Option{
		core.WithFetcher(fetcher),
		core.WithCastPolicy(policy),
		core.WithLogger(logger),
	}
	pdf := extract.NewPDFText(cfg.Extract.PDFToText, extract.ExecRunner{Logger: logger})
	if pdf.Available() {
		opts = append(opts, core.WithExtractor(pdf))
	} else {
		slog.Warn("pdftotext not found, PDF documents will be rejected", "binary", cfg.Extract.PDFToText)
	}
	deps.Pipeline = core.NewPipeline(tabular.Parser{}, opts...)

	// Log registered casters
	slog.Info("casters registered", "count", core.CasterCount())
	for _, def := range core.Casters() {
		slog.Debug("caster", "provider", def.Info.Provider, "fields", len(def.FieldSpecs))
	}

	server := web.NewServer(cfg, deps)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stops listening, then waits for active runs
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown did not complete cleanly", "error", err)
		} else {
			slog.Info("all runs completed")
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

// openPool connects to Postgres with the configured pool settings.
func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// openCache returns Redis when an address is configured, otherwise an
// in-memory cache.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Client, error) {
	if cfg.RedisAddr == "" {
		slog.Info("using in-memory response cache", "max_entries", cfg.MaxEntries, "ttl", cfg.TTL.String())
		return cache.NewMemoryClient(cfg.MaxEntries), nil
	}

	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("using redis response cache", "addr", cfg.RedisAddr, "ttl", cfg.TTL.String())
	return client, nil
}
