package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// ExternalDataSourceRow mirrors the external_data_sources table.
type ExternalDataSourceRow struct {
	ID                   string
	Name                 string
	Dialect              string
	Host                 string
	Port                 int32
	DBName               string
	Username             string
	PasswordEncrypted    []byte
	Storage              string
	ObjectStoreEndpoint  string
	ObjectStoreBucket    string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreUseSSL    bool
	TableName            string
	FileColumn           string
	FilenameColumn       string
	MetadataColumns      []string
	PathPrefix           string
	LastSyncAt           *time.Time
}

const externalColumns = `id, name, dialect, host, port, db_name, username, password_encrypted,
	storage, object_store_endpoint, object_store_bucket, object_store_access_key,
	object_store_secret_key, object_store_use_ssl, table_name, file_column,
	filename_column, metadata_columns, path_prefix, last_sync_at`

func scanExternalRow(row pgx.Row) (ExternalDataSourceRow, error) {
	var e ExternalDataSourceRow
	err := row.Scan(&e.ID, &e.Name, &e.Dialect, &e.Host, &e.Port, &e.DBName, &e.Username,
		&e.PasswordEncrypted, &e.Storage, &e.ObjectStoreEndpoint, &e.ObjectStoreBucket,
		&e.ObjectStoreAccessKey, &e.ObjectStoreSecretKey, &e.ObjectStoreUseSSL,
		&e.TableName, &e.FileColumn, &e.FilenameColumn, &e.MetadataColumns,
		&e.PathPrefix, &e.LastSyncAt)
	return e, err
}

// InsertExternalDataSource creates a new external data source row.
func (q *Queries) InsertExternalDataSource(ctx context.Context, e ExternalDataSourceRow) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO external_data_sources (id, name, dialect, host, port, db_name, username,
			password_encrypted, storage, object_store_endpoint, object_store_bucket,
			object_store_access_key, object_store_secret_key, object_store_use_ssl,
			table_name, file_column, filename_column, metadata_columns, path_prefix)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		e.ID, e.Name, e.Dialect, e.Host, e.Port, e.DBName, e.Username, e.PasswordEncrypted,
		e.Storage, e.ObjectStoreEndpoint, e.ObjectStoreBucket, e.ObjectStoreAccessKey,
		e.ObjectStoreSecretKey, e.ObjectStoreUseSSL, e.TableName, e.FileColumn,
		e.FilenameColumn, e.MetadataColumns, e.PathPrefix)
	return err
}

// GetExternalDataSource fetches one external data source by id.
func (q *Queries) GetExternalDataSource(ctx context.Context, id string) (ExternalDataSourceRow, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+externalColumns+` FROM external_data_sources WHERE id=$1`, id)
	return scanExternalRow(row)
}

// ListExternalDataSources returns all registered external data sources.
func (q *Queries) ListExternalDataSources(ctx context.Context) ([]ExternalDataSourceRow, error) {
	rows, err := q.pool.Query(ctx, `SELECT `+externalColumns+` FROM external_data_sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExternalDataSourceRow
	for rows.Next() {
		e, err := scanExternalRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetExternalDataSourceLastSync updates last_sync_at after a sync run.
func (q *Queries) SetExternalDataSourceLastSync(ctx context.Context, id string, at time.Time) error {
	_, err := q.pool.Exec(ctx, `UPDATE external_data_sources SET last_sync_at=$2 WHERE id=$1`, id, at)
	return err
}

// SyncLogRow mirrors the sync_logs table.
type SyncLogRow struct {
	ID         string
	SourceID   string
	StartedAt  time.Time
	FinishedAt *time.Time
	Processed  int64
	Failed     int64
	Status     string
	Error      string
}

const syncLogColumns = `id, source_id, started_at, finished_at, processed, failed, status, error`

func scanSyncLogRow(row pgx.Row) (SyncLogRow, error) {
	var s SyncLogRow
	err := row.Scan(&s.ID, &s.SourceID, &s.StartedAt, &s.FinishedAt, &s.Processed,
		&s.Failed, &s.Status, &s.Error)
	return s, err
}

// InsertSyncLog appends a new sync log row (append-only).
func (q *Queries) InsertSyncLog(ctx context.Context, s SyncLogRow) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO sync_logs (id, source_id, started_at, status)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.SourceID, s.StartedAt, s.Status)
	return err
}

// FinishSyncLog records the terminal state of a sync run.
func (q *Queries) FinishSyncLog(ctx context.Context, id string, processed, failed int64, status, errMsg string, finishedAt time.Time) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE sync_logs SET processed=$2, failed=$3, status=$4, error=$5, finished_at=$6
		WHERE id=$1`, id, processed, failed, status, errMsg, finishedAt)
	return err
}

// ListSyncLogs returns recent sync log entries for a source, newest first.
func (q *Queries) ListSyncLogs(ctx context.Context, sourceID string, limit int) ([]SyncLogRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT `+syncLogColumns+` FROM sync_logs
		WHERE source_id=$1 ORDER BY started_at DESC LIMIT $2`, sourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncLogRow
	for rows.Next() {
		s, err := scanSyncLogRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
