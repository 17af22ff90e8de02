package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// ScrapeJobRow mirrors the scrape_jobs table.
type ScrapeJobRow struct {
	JobID              string
	SourceID           string
	StartedAt          time.Time
	FinishedAt         *time.Time
	Status             string
	StopSignal         bool
	StatDiscovered     int64
	StatNew            int64
	StatUnchanged      int64
	StatFailedMetadata int64
	StatPagesScraped   int64
	Error              string
}

const scrapeJobColumns = `job_id, source_id, started_at, finished_at, status, stop_signal,
	stat_discovered, stat_new, stat_unchanged, stat_failed_metadata, stat_pages_scraped, error`

func scanScrapeJobRow(row pgx.Row) (ScrapeJobRow, error) {
	var j ScrapeJobRow
	err := row.Scan(&j.JobID, &j.SourceID, &j.StartedAt, &j.FinishedAt, &j.Status,
		&j.StopSignal, &j.StatDiscovered, &j.StatNew, &j.StatUnchanged,
		&j.StatFailedMetadata, &j.StatPagesScraped, &j.Error)
	return j, err
}

// InsertScrapeJob creates a new job row in the running state.
func (q *Queries) InsertScrapeJob(ctx context.Context, j ScrapeJobRow) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO scrape_jobs (job_id, source_id, started_at, status, stop_signal)
		VALUES ($1,$2,$3,$4,$5)`,
		j.JobID, j.SourceID, j.StartedAt, j.Status, j.StopSignal)
	return err
}

// UpdateScrapeJobStats persists incremental per-document outcome counters
// so progress survives a crash mid-job.
func (q *Queries) UpdateScrapeJobStats(ctx context.Context, jobID string, stats ScrapeJobRow) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE scrape_jobs SET stat_discovered=$2, stat_new=$3, stat_unchanged=$4,
			stat_failed_metadata=$5, stat_pages_scraped=$6
		WHERE job_id=$1`,
		jobID, stats.StatDiscovered, stats.StatNew, stats.StatUnchanged,
		stats.StatFailedMetadata, stats.StatPagesScraped)
	return err
}

// SetScrapeJobStopSignal marks a job for cooperative cancellation.
func (q *Queries) SetScrapeJobStopSignal(ctx context.Context, jobID string) error {
	_, err := q.pool.Exec(ctx, `UPDATE scrape_jobs SET stop_signal=TRUE, status='stopping' WHERE job_id=$1`, jobID)
	return err
}

// FinishScrapeJob marks a job terminal (stopped, succeeded, or failed).
func (q *Queries) FinishScrapeJob(ctx context.Context, jobID, status, errMsg string, finishedAt time.Time) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE scrape_jobs SET status=$2, error=$3, finished_at=$4 WHERE job_id=$1`,
		jobID, status, errMsg, finishedAt)
	return err
}

// GetScrapeJob fetches a single job by id.
func (q *Queries) GetScrapeJob(ctx context.Context, jobID string) (ScrapeJobRow, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+scrapeJobColumns+` FROM scrape_jobs WHERE job_id=$1`, jobID)
	return scanScrapeJobRow(row)
}

// ListActiveScrapeJobs returns all jobs in a non-terminal state.
func (q *Queries) ListActiveScrapeJobs(ctx context.Context) ([]ScrapeJobRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT `+scrapeJobColumns+` FROM scrape_jobs
		WHERE status IN ('running','stopping') ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScrapeJobRow
	for rows.Next() {
		j, err := scanScrapeJobRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// DeleteScrapeJobsOlderThan purges terminal jobs older than cutoff, backing
// the retention sweep (internal/orchestrator/scheduler.go).
func (q *Queries) DeleteScrapeJobsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM scrape_jobs
		WHERE status IN ('succeeded','failed','stopped') AND started_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
