package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// SourceRow mirrors the sources table. internal/store converts it to
// model.Source.
type SourceRow struct {
	ID                 string
	Name               string
	BaseURL            string
	Dialect            string
	Keywords           []string
	MaxDocs            int32
	MaxPages           int32
	PaginationEnabled  bool
	WindowSize         int32
	Schedule           string
	Enabled            bool
	LastScrapedAt      *time.Time
	StatsTotalDocs     int64
	StatsLastNew       int64
	StatsLastUnchanged int64
	StatsLastFailed    int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const sourceColumns = `id, name, base_url, dialect, keywords, max_docs, max_pages,
	pagination_enabled, window_size, schedule, enabled, last_scraped_at,
	stats_total_docs, stats_last_new, stats_last_unchanged, stats_last_failed,
	created_at, updated_at`

func scanSourceRow(row pgx.Row) (SourceRow, error) {
	var s SourceRow
	err := row.Scan(&s.ID, &s.Name, &s.BaseURL, &s.Dialect, &s.Keywords, &s.MaxDocs,
		&s.MaxPages, &s.PaginationEnabled, &s.WindowSize, &s.Schedule, &s.Enabled,
		&s.LastScrapedAt, &s.StatsTotalDocs, &s.StatsLastNew, &s.StatsLastUnchanged,
		&s.StatsLastFailed, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// InsertSource creates a new source row.
func (q *Queries) InsertSource(ctx context.Context, s SourceRow) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO sources (id, name, base_url, dialect, keywords, max_docs, max_pages,
			pagination_enabled, window_size, schedule, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		s.ID, s.Name, s.BaseURL, s.Dialect, s.Keywords, s.MaxDocs, s.MaxPages,
		s.PaginationEnabled, s.WindowSize, s.Schedule, s.Enabled, s.CreatedAt, s.UpdatedAt)
	return err
}

// UpdateSource updates the mutable operator-facing fields of a source.
func (q *Queries) UpdateSource(ctx context.Context, s SourceRow) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE sources SET name=$2, base_url=$3, dialect=$4, keywords=$5, max_docs=$6,
			max_pages=$7, pagination_enabled=$8, window_size=$9, schedule=$10,
			enabled=$11, updated_at=$12
		WHERE id=$1`,
		s.ID, s.Name, s.BaseURL, s.Dialect, s.Keywords, s.MaxDocs, s.MaxPages,
		s.PaginationEnabled, s.WindowSize, s.Schedule, s.Enabled, s.UpdatedAt)
	return err
}

// UpdateSourceStats updates the orchestrator-owned stats fields after a
// scrape job completes.
func (q *Queries) UpdateSourceStats(ctx context.Context, id string, lastScrapedAt time.Time, newCount, unchangedCount, failedCount int64) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE sources SET last_scraped_at=$2,
			stats_total_docs = stats_total_docs + $3,
			stats_last_new = $3, stats_last_unchanged = $4, stats_last_failed = $5,
			updated_at = now()
		WHERE id=$1`,
		id, lastScrapedAt, newCount, unchangedCount, failedCount)
	return err
}

// DeleteSource removes a source row. Callers must first verify no running
// job references it.
func (q *Queries) DeleteSource(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM sources WHERE id=$1`, id)
	return err
}

// GetSource fetches a single source by id.
func (q *Queries) GetSource(ctx context.Context, id string) (SourceRow, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id=$1`, id)
	return scanSourceRow(row)
}

// ListSources returns all sources ordered by name.
func (q *Queries) ListSources(ctx context.Context) ([]SourceRow, error) {
	rows, err := q.pool.Query(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceRow
	for rows.Next() {
		s, err := scanSourceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountRunningJobsForSource counts non-terminal scrape jobs for a source,
// used to enforce the delete-refused-if-running invariant.
func (q *Queries) CountRunningJobsForSource(ctx context.Context, sourceID string) (int64, error) {
	var n int64
	err := q.pool.QueryRow(ctx, `
		SELECT count(*) FROM scrape_jobs
		WHERE source_id=$1 AND status IN ('running','stopping')`, sourceID).Scan(&n)
	return n, err
}
