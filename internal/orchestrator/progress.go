package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/northbound-policy/ingest/internal/model"
)

// ProgressPublisher broadcasts job stat updates over a Redis pub/sub
// channel so a dashboard can follow a running crawl without polling
// ScrapeJob rows. Publish failures are logged and swallowed: a dropped
// progress tick never fails the crawl itself.
type ProgressPublisher struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewProgressPublisher wraps a Redis client for job progress broadcast.
func NewProgressPublisher(rdb *redis.Client, log *slog.Logger) *ProgressPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &ProgressPublisher{rdb: rdb, log: log}
}

type progressMessage struct {
	JobID  string         `json:"job_id"`
	Status model.JobStatus `json:"status"`
	Stats  model.JobStats `json:"stats"`
}

func (p *ProgressPublisher) publish(ctx context.Context, jobID string, status model.JobStatus, stats model.JobStats) {
	if p == nil || p.rdb == nil {
		return
	}
	payload, err := json.Marshal(progressMessage{JobID: jobID, Status: status, Stats: stats})
	if err != nil {
		p.log.Warn("progress message encode failed", "job_id", jobID, "err", err)
		return
	}
	channel := "scrape:progress:" + jobID
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		p.log.Warn("progress publish failed", "job_id", jobID, "channel", channel, "err", err)
	}
}

// WithProgressPublisher attaches a Redis-backed progress broadcaster,
// returning the Orchestrator for chaining at construction time.
func (o *Orchestrator) WithProgressPublisher(p *ProgressPublisher) *Orchestrator {
	o.progress = p
	return o
}
