package core

// scheduler.go runs the retention job that keeps memory bounded.
//
// Versions live in memory only. Every CheckInterval the job drops versions
// older than FileRetention and audit entries older than AuditRetention. A
// failed purge is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds the retention policy. Zero fields use the defaults.
type RetentionConfig struct {
	FileRetention  time.Duration // default 24h
	AuditRetention time.Duration // default 30 days
	CheckInterval  time.Duration // default 1h
}

const (
	DefaultFileRetention  = 24 * time.Hour
	DefaultAuditRetention = 30 * 24 * time.Hour
	DefaultCheckInterval  = time.Hour
)

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.FileRetention <= 0 {
		c.FileRetention = DefaultFileRetention
	}
	if c.AuditRetention <= 0 {
		c.AuditRetention = DefaultAuditRetention
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	return c
}

// StartRetentionScheduler runs the retention job immediately and then every
// CheckInterval until ctx is cancelled. It blocks; run it in a goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention scheduler started",
		"file_retention", cfg.FileRetention.String(),
		"audit_retention", cfg.AuditRetention.String(),
		"check_interval", cfg.CheckInterval.String(),
	)

	s.RunRetention(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.RunRetention(ctx, cfg)
		}
	}
}

// RetentionResult reports what one retention pass removed.
type RetentionResult struct {
	VersionsPurged int
	AuditPurged    int64
}

// RunRetention performs one purge pass.
func (s *Service) RunRetention(ctx context.Context, cfg RetentionConfig) RetentionResult {
	cfg = cfg.withDefaults()
	start := time.Now()
	var res RetentionResult

	res.VersionsPurged = s.store.Purge(start.Add(-cfg.FileRetention))
	if res.VersionsPurged > 0 {
		slog.Info("purged expired versions",
			"versions_purged", res.VersionsPurged,
			"versions_remaining", s.store.Len(),
		)
		s.record(ctx, ActionRetentionPurge, nil, nil, res.VersionsPurged, map[string]any{
			"versions_purged": res.VersionsPurged,
		})
	}

	purged, err := s.audit.PurgeBefore(ctx, start.Add(-cfg.AuditRetention))
	if err != nil {
		slog.Error("audit purge failed", "error", err)
	} else {
		res.AuditPurged = purged
	}

	slog.Debug("retention job completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"audit_purged", res.AuditPurged,
	)
	return res
}
