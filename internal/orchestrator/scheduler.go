package orchestrator

import (
	"context"
	"time"

	"github.com/northbound-policy/ingest/internal/metrics"
)

// RetentionConfig governs the periodic sweep of terminal scrape jobs.
type RetentionConfig struct {
	Enabled       bool
	JobRetention  time.Duration
	SweepInterval time.Duration
}

// RunRetentionSweep blocks, purging terminal ScrapeJob rows older than
// JobRetention every SweepInterval, until ctx is cancelled. Callers run
// this in its own goroutine alongside Start.
func (o *Orchestrator) RunRetentionSweep(ctx context.Context, cfg RetentionConfig) {
	if !cfg.Enabled {
		return
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := o.store.SweepExpiredScrapeJobs(ctx, cfg.JobRetention)
		if err != nil {
			o.log.Warn("retention sweep failed", "err", err)
			continue
		}
		if n > 0 {
			o.log.Info("retention sweep purged expired scrape jobs", "count", n)
		}
		metrics.RecordRetentionSweep(n)
	}
}
