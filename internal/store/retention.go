package store

// retention.go runs periodic cleanup of normalization run history.
//
// The loop is long-running and stops when its context is cancelled. A failed
// purge is logged and retried on the next tick; it never stops the server.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the retention scheduler.
// Zero values are replaced with defaults.
type RetentionConfig struct {
	KeepFor       time.Duration // Age after which runs are purged (default: 30 days)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.KeepFor <= 0 {
		c.KeepFor = 30 * 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// Purger deletes runs older than a cutoff.
type Purger interface {
	PurgeRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartRetention purges old runs immediately and then every CheckInterval
// until ctx is cancelled.
func StartRetention(ctx context.Context, p Purger, cfg RetentionConfig, logger *slog.Logger) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("retention scheduler started",
		"keep_for", cfg.KeepFor.String(),
		"interval", cfg.CheckInterval.String(),
	)

	runRetentionJob(ctx, p, cfg, logger)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			runRetentionJob(ctx, p, cfg, logger)
		}
	}
}

func runRetentionJob(ctx context.Context, p Purger, cfg RetentionConfig, logger *slog.Logger) {
	start := time.Now()
	purged, err := p.PurgeRuns(ctx, start.Add(-cfg.KeepFor))
	if err != nil {
		logger.Error("purge runs failed", "error", err)
		return
	}
	logger.Info("purged old runs",
		"runs_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
