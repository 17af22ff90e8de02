// Package store wraps internal/db's generated-style Queries with the
// domain model, converting rows to model types and back.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/db"
	"github.com/northbound-policy/ingest/internal/model"
)

// Store is the single persistence facade injected into every component
// that needs the relational database.
type Store struct {
	q *db.Queries
}

// New wraps a Queries in a Store.
func New(q *db.Queries) *Store {
	return &Store{q: q}
}

func sourceFromRow(r db.SourceRow) model.Source {
	return model.Source{
		ID:                r.ID,
		Name:              r.Name,
		BaseURL:           r.BaseURL,
		Dialect:           model.Dialect(r.Dialect),
		Keywords:          r.Keywords,
		MaxDocs:           int(r.MaxDocs),
		MaxPages:          int(r.MaxPages),
		PaginationEnabled: r.PaginationEnabled,
		WindowSize:        int(r.WindowSize),
		Schedule:          r.Schedule,
		Enabled:           r.Enabled,
		LastScrapedAt:     r.LastScrapedAt,
		Stats: model.SourceStats{
			TotalDocuments: r.StatsTotalDocs,
			LastNew:        r.StatsLastNew,
			LastUnchanged:  r.StatsLastUnchanged,
			LastFailed:     r.StatsLastFailed,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// CreateSource persists a new Source as given, assigning an id if it has
// none and setting its timestamps; keyword normalization is left to the
// registry in internal/sources.
func (s *Store) CreateSource(ctx context.Context, src model.Source) (model.Source, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	src.CreatedAt, src.UpdatedAt = now, now

	row := db.SourceRow{
		ID: src.ID, Name: src.Name, BaseURL: src.BaseURL, Dialect: string(src.Dialect),
		Keywords: src.Keywords, MaxDocs: int32(src.MaxDocs), MaxPages: int32(src.MaxPages),
		PaginationEnabled: src.PaginationEnabled, WindowSize: int32(src.WindowSize),
		Schedule: src.Schedule, Enabled: src.Enabled, CreatedAt: now, UpdatedAt: now,
	}
	if err := s.q.InsertSource(ctx, row); err != nil {
		return model.Source{}, apperr.Wrap(apperr.KindIndexFailure, err, "failed to create source")
	}
	return src, nil
}

// UpdateSource persists mutated operator-facing fields of a Source.
func (s *Store) UpdateSource(ctx context.Context, src model.Source) error {
	src.UpdatedAt = time.Now().UTC()
	row := db.SourceRow{
		ID: src.ID, Name: src.Name, BaseURL: src.BaseURL, Dialect: string(src.Dialect),
		Keywords: src.Keywords, MaxDocs: int32(src.MaxDocs), MaxPages: int32(src.MaxPages),
		PaginationEnabled: src.PaginationEnabled, WindowSize: int32(src.WindowSize),
		Schedule: src.Schedule, Enabled: src.Enabled, UpdatedAt: src.UpdatedAt,
	}
	if err := s.q.UpdateSource(ctx, row); err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to update source")
	}
	return nil
}

// DeleteSource refuses deletion while a job is running or stopping against
// the source.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	running, err := s.q.CountRunningJobsForSource(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to check running jobs")
	}
	if running > 0 {
		return apperr.New(apperr.KindInputInvalid, "source has a running scrape job; stop it before deleting")
	}
	if err := s.q.DeleteSource(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to delete source")
	}
	return nil
}

// GetSource fetches a source by id.
func (s *Store) GetSource(ctx context.Context, id string) (model.Source, error) {
	row, err := s.q.GetSource(ctx, id)
	if err != nil {
		return model.Source{}, apperr.Wrap(apperr.KindNotFound, err, "source not found")
	}
	return sourceFromRow(row), nil
}

// ListSources returns all registered sources.
func (s *Store) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.q.ListSources(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to list sources")
	}
	out := make([]model.Source, 0, len(rows))
	for _, r := range rows {
		out = append(out, sourceFromRow(r))
	}
	return out, nil
}

// RecordSourceScrapeStats updates a source's orchestrator-owned counters
// after a job finishes.
func (s *Store) RecordSourceScrapeStats(ctx context.Context, sourceID string, newCount, unchangedCount, failedCount int64) error {
	return s.q.UpdateSourceStats(ctx, sourceID, time.Now().UTC(), newCount, unchangedCount, failedCount)
}

func jobFromRow(r db.ScrapeJobRow) model.ScrapeJob {
	return model.ScrapeJob{
		JobID: r.JobID, SourceID: r.SourceID, StartedAt: r.StartedAt,
		FinishedAt: r.FinishedAt, Status: model.JobStatus(r.Status), StopSignal: r.StopSignal,
		Stats: model.JobStats{
			Discovered: r.StatDiscovered, New: r.StatNew, Unchanged: r.StatUnchanged,
			FailedMetadata: r.StatFailedMetadata, PagesScraped: r.StatPagesScraped,
		},
		Error: r.Error,
	}
}

// CreateScrapeJob inserts a new running job row.
func (s *Store) CreateScrapeJob(ctx context.Context, sourceID string) (model.ScrapeJob, error) {
	job := model.ScrapeJob{
		JobID: uuid.NewString(), SourceID: sourceID,
		StartedAt: time.Now().UTC(), Status: model.JobRunning,
	}
	row := db.ScrapeJobRow{JobID: job.JobID, SourceID: sourceID, StartedAt: job.StartedAt, Status: string(job.Status)}
	if err := s.q.InsertScrapeJob(ctx, row); err != nil {
		return model.ScrapeJob{}, apperr.Wrap(apperr.KindIndexFailure, err, "failed to create scrape job")
	}
	return job, nil
}

// UpdateScrapeJobStats persists incremental counters mid-job.
func (s *Store) UpdateScrapeJobStats(ctx context.Context, jobID string, stats model.JobStats) error {
	row := db.ScrapeJobRow{
		StatDiscovered: stats.Discovered, StatNew: stats.New, StatUnchanged: stats.Unchanged,
		StatFailedMetadata: stats.FailedMetadata, StatPagesScraped: stats.PagesScraped,
	}
	return s.q.UpdateScrapeJobStats(ctx, jobID, row)
}

// RequestStop flags a job for cooperative cancellation.
func (s *Store) RequestStop(ctx context.Context, jobID string) error {
	return s.q.SetScrapeJobStopSignal(ctx, jobID)
}

// FinishScrapeJob marks a job terminal.
func (s *Store) FinishScrapeJob(ctx context.Context, jobID string, status model.JobStatus, errMsg string) error {
	return s.q.FinishScrapeJob(ctx, jobID, string(status), errMsg, time.Now().UTC())
}

// GetScrapeJob fetches a job by id.
func (s *Store) GetScrapeJob(ctx context.Context, jobID string) (model.ScrapeJob, error) {
	row, err := s.q.GetScrapeJob(ctx, jobID)
	if err != nil {
		return model.ScrapeJob{}, apperr.Wrap(apperr.KindNotFound, err, "scrape job not found")
	}
	return jobFromRow(row), nil
}

// ListActiveScrapeJobs returns all non-terminal jobs.
func (s *Store) ListActiveScrapeJobs(ctx context.Context) ([]model.ScrapeJob, error) {
	rows, err := s.q.ListActiveScrapeJobs(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to list active jobs")
	}
	out := make([]model.ScrapeJob, 0, len(rows))
	for _, r := range rows {
		out = append(out, jobFromRow(r))
	}
	return out, nil
}

// SweepExpiredScrapeJobs purges terminal jobs older than the retention
// window and returns the count removed.
func (s *Store) SweepExpiredScrapeJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.q.DeleteScrapeJobsOlderThan(ctx, cutoff)
}

func documentFromRow(r db.DocumentRow) model.DocumentRecord {
	d := model.DocumentRecord{
		ID: r.ID, SourceURL: r.SourceURL, CanonicalFilename: r.CanonicalFilename,
		FileType: r.FileType, BlobURL: r.BlobURL, ContentHash: r.ContentHash,
		SourceID: r.SourceID, UploadedAt: r.UploadedAt, UploaderID: r.UploaderID,
		InstitutionID: r.InstitutionID, Visibility: model.Visibility(r.Visibility),
		ApprovalStatus: model.ApprovalStatus(r.ApprovalStatus), RequiresMoEApproval: r.RequiresMoEApproval,
		Version: int(r.Version), VersionDate: r.VersionDate, IsScanned: r.IsScanned,
		ExtractedTextRef: r.ExtractedTextRef, ETag: r.ETag, LastModified: r.LastModified,
	}
	if r.ParentDocumentID != nil {
		d.ParentDocumentID = *r.ParentDocumentID
	}
	return d
}

// CreateDocument atomically persists a document record. The unique
// (source_id, content_hash) constraint enforces dedup; a violation is
// surfaced as IndexFailure like any other insert error, and the
// orchestrator counts it as a failed document and deletes the blobs it
// uploaded.
func (s *Store) CreateDocument(ctx context.Context, d model.DocumentRecord) (model.DocumentRecord, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	if d.Version == 0 {
		d.Version = 1
	}
	row := db.DocumentRow{
		ID: d.ID, SourceURL: d.SourceURL, CanonicalFilename: d.CanonicalFilename,
		FileType: d.FileType, BlobURL: d.BlobURL, ContentHash: d.ContentHash,
		SourceID: d.SourceID, UploadedAt: d.UploadedAt, UploaderID: d.UploaderID,
		InstitutionID: d.InstitutionID, Visibility: string(d.Visibility),
		ApprovalStatus: string(d.ApprovalStatus), RequiresMoEApproval: d.RequiresMoEApproval,
		Version: int32(d.Version), VersionDate: d.VersionDate, IsScanned: d.IsScanned,
		ExtractedTextRef: d.ExtractedTextRef, ETag: d.ETag, LastModified: d.LastModified,
	}
	if d.ParentDocumentID != "" {
		row.ParentDocumentID = &d.ParentDocumentID
	}
	if err := s.q.InsertDocument(ctx, row); err != nil {
		return model.DocumentRecord{}, apperr.Wrap(apperr.KindIndexFailure, err, "failed to persist document record")
	}
	return d, nil
}

// FindDocumentByContentHash returns (doc, true, nil) if a record already
// exists for this source+hash, or (zero, false, nil) if not found.
func (s *Store) FindDocumentByContentHash(ctx context.Context, sourceID, hash string) (model.DocumentRecord, bool, error) {
	row, err := s.q.FindDocumentByContentHash(ctx, sourceID, hash)
	if err != nil {
		if isNoRows(err) {
			return model.DocumentRecord{}, false, nil
		}
		return model.DocumentRecord{}, false, apperr.Wrap(apperr.KindIndexFailure, err, "dedup lookup failed")
	}
	return documentFromRow(row), true, nil
}

// FindDocumentBySourceURL returns the latest known record for a source's
// URL, if any, so the orchestrator can attempt a conditional HEAD request
// before committing to a full download.
func (s *Store) FindDocumentBySourceURL(ctx context.Context, sourceID, sourceURL string) (model.DocumentRecord, bool, error) {
	row, err := s.q.FindDocumentBySourceURL(ctx, sourceID, sourceURL)
	if err != nil {
		if isNoRows(err) {
			return model.DocumentRecord{}, false, nil
		}
		return model.DocumentRecord{}, false, apperr.Wrap(apperr.KindIndexFailure, err, "source URL lookup failed")
	}
	return documentFromRow(row), true, nil
}

// GetDocument fetches a document record by id.
func (s *Store) GetDocument(ctx context.Context, id string) (model.DocumentRecord, error) {
	row, err := s.q.GetDocument(ctx, id)
	if err != nil {
		return model.DocumentRecord{}, apperr.Wrap(apperr.KindNotFound, err, "document not found")
	}
	return documentFromRow(row), nil
}

// DeleteDocument removes a document record, used when metadata extraction
// fails and the strict retention policy applies.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.q.DeleteDocument(ctx, id)
}

// ListDocumentsBySource paginates documents for the browse endpoint.
func (s *Store) ListDocumentsBySource(ctx context.Context, sourceID string, page, pageSize int) ([]model.DocumentRecord, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	rows, err := s.q.ListDocumentsBySource(ctx, sourceID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to list documents")
	}
	out := make([]model.DocumentRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, documentFromRow(r))
	}
	return out, nil
}

// SearchDocuments runs the lexical candidate leg of hybrid retrieval,
// restricted at the SQL level to visibilities (empty means unrestricted)
// so a caller never receives, not even as a discarded candidate slot, a
// document their role could never see.
func (s *Store) SearchDocuments(ctx context.Context, query string, visibilities []model.Visibility, limit int) ([]model.DocumentRecord, error) {
	vis := make([]string, len(visibilities))
	for i, v := range visibilities {
		vis[i] = string(v)
	}
	rows, err := s.q.SearchDocuments(ctx, query, vis, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "metadata search failed")
	}
	out := make([]model.DocumentRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, documentFromRow(r))
	}
	return out, nil
}

func metadataFromRow(r db.DocumentMetadataRow) model.DocumentMetadata {
	return model.DocumentMetadata{
		DocID: r.DocID, Title: r.Title, Department: r.Department, DocumentType: r.DocumentType,
		Summary: r.Summary, Keywords: r.Keywords, Language: r.Language, QualityScore: r.QualityScore,
		EmbeddingStatus: model.EmbeddingStatus(r.EmbeddingStatus), MetadataStatus: model.MetadataStatus(r.MetadataStatus),
	}
}

// UpsertDocumentMetadata creates or replaces the metadata satellite.
func (s *Store) UpsertDocumentMetadata(ctx context.Context, m model.DocumentMetadata) error {
	row := db.DocumentMetadataRow{
		DocID: m.DocID, Title: m.Title, Department: m.Department, DocumentType: m.DocumentType,
		Summary: m.Summary, Keywords: m.Keywords, Language: m.Language, QualityScore: m.QualityScore,
		EmbeddingStatus: string(m.EmbeddingStatus), MetadataStatus: string(m.MetadataStatus),
	}
	if err := s.q.UpsertDocumentMetadata(ctx, row); err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to persist document metadata")
	}
	return nil
}

// SetEmbeddingStatus updates a document's embedding lifecycle field.
func (s *Store) SetEmbeddingStatus(ctx context.Context, docID string, status model.EmbeddingStatus) error {
	return s.q.SetEmbeddingStatus(ctx, docID, string(status))
}

// GetDocumentMetadata fetches a document's metadata satellite.
func (s *Store) GetDocumentMetadata(ctx context.Context, docID string) (model.DocumentMetadata, error) {
	row, err := s.q.GetDocumentMetadata(ctx, docID)
	if err != nil {
		if isNoRows(err) {
			return model.DocumentMetadata{}, apperr.New(apperr.KindNotFound, "document has no metadata yet")
		}
		return model.DocumentMetadata{}, apperr.Wrap(apperr.KindIndexFailure, err, "failed to fetch document metadata")
	}
	return metadataFromRow(row), nil
}

// ListMetadataByFilter paginates document_metadata for browse filters.
func (s *Store) ListMetadataByFilter(ctx context.Context, department, documentType string, year, page, pageSize int) ([]model.DocumentMetadata, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	rows, err := s.q.ListMetadataByFilter(ctx, department, documentType, year, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to list document metadata")
	}
	out := make([]model.DocumentMetadata, 0, len(rows))
	for _, r := range rows {
		out = append(out, metadataFromRow(r))
	}
	return out, nil
}

// ReplaceChunks recomputes the chunk set for a document, on re-embed only.
func (s *Store) ReplaceChunks(ctx context.Context, docID string, chunks []model.Chunk) error {
	rows := make([]db.ChunkRow, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, db.ChunkRow{
			DocID: docID, ChunkIndex: int32(c.ChunkIndex), Text: c.Text,
			SectionHeader: c.SectionHeader, HasSection: c.HasSection,
			CharOffsetStart: int32(c.CharOffsetStart), CharOffsetEnd: int32(c.CharOffsetEnd),
		})
	}
	if err := s.q.ReplaceChunks(ctx, docID, rows); err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to persist chunks")
	}
	return nil
}

// ListChunks returns all chunks for a document.
func (s *Store) ListChunks(ctx context.Context, docID string) ([]model.Chunk, error) {
	rows, err := s.q.ListChunks(ctx, docID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to list chunks")
	}
	out := make([]model.Chunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Chunk{
			DocID: r.DocID, ChunkIndex: int(r.ChunkIndex), Text: r.Text,
			SectionHeader: r.SectionHeader, HasSection: r.HasSection,
			CharOffsetStart: int(r.CharOffsetStart), CharOffsetEnd: int(r.CharOffsetEnd),
		})
	}
	return out, nil
}

func externalFromRow(r db.ExternalDataSourceRow) model.ExternalDataSource {
	e := model.ExternalDataSource{
		ID: r.ID, Name: r.Name, Dialect: r.Dialect, Host: r.Host, Port: int(r.Port),
		DBName: r.DBName, Username: r.Username, PasswordEncrypted: r.PasswordEncrypted,
		Storage: model.ExternalStorageMode(r.Storage),
		FileColumn: r.FileColumn, FilenameColumn: r.FilenameColumn,
		MetadataColumns: r.MetadataColumns, PathPrefix: r.PathPrefix, LastSyncAt: r.LastSyncAt,
	}
	e.Table = r.TableName
	if r.Storage == string(model.ExternalStorageObjectStore) {
		e.ObjectStoreCfg = &model.ExternalObjectStoreConfig{
			Endpoint: r.ObjectStoreEndpoint, Bucket: r.ObjectStoreBucket,
			AccessKey: r.ObjectStoreAccessKey, SecretKey: r.ObjectStoreSecretKey,
			UseSSL: r.ObjectStoreUseSSL,
		}
	}
	return e
}

// CreateExternalDataSource persists a new external data source with
// already-encrypted credentials.
func (s *Store) CreateExternalDataSource(ctx context.Context, e model.ExternalDataSource) (model.ExternalDataSource, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := db.ExternalDataSourceRow{
		ID: e.ID, Name: e.Name, Dialect: e.Dialect, Host: e.Host, Port: int32(e.Port),
		DBName: e.DBName, Username: e.Username, PasswordEncrypted: e.PasswordEncrypted,
		Storage: string(e.Storage), TableName: e.Table, FileColumn: e.FileColumn,
		FilenameColumn: e.FilenameColumn, MetadataColumns: e.MetadataColumns, PathPrefix: e.PathPrefix,
	}
	if e.ObjectStoreCfg != nil {
		row.ObjectStoreEndpoint = e.ObjectStoreCfg.Endpoint
		row.ObjectStoreBucket = e.ObjectStoreCfg.Bucket
		row.ObjectStoreAccessKey = e.ObjectStoreCfg.AccessKey
		row.ObjectStoreSecretKey = e.ObjectStoreCfg.SecretKey
		row.ObjectStoreUseSSL = e.ObjectStoreCfg.UseSSL
	}
	if err := s.q.InsertExternalDataSource(ctx, row); err != nil {
		return model.ExternalDataSource{}, apperr.Wrap(apperr.KindIndexFailure, err, "failed to create external data source")
	}
	return e, nil
}

// GetExternalDataSource fetches one external data source by id.
func (s *Store) GetExternalDataSource(ctx context.Context, id string) (model.ExternalDataSource, error) {
	row, err := s.q.GetExternalDataSource(ctx, id)
	if err != nil {
		return model.ExternalDataSource{}, apperr.Wrap(apperr.KindNotFound, err, "external data source not found")
	}
	return externalFromRow(row), nil
}

// ListExternalDataSources returns all registered external data sources.
func (s *Store) ListExternalDataSources(ctx context.Context) ([]model.ExternalDataSource, error) {
	rows, err := s.q.ListExternalDataSources(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to list external data sources")
	}
	out := make([]model.ExternalDataSource, 0, len(rows))
	for _, r := range rows {
		out = append(out, externalFromRow(r))
	}
	return out, nil
}

// CreateSyncLog appends a new running sync log entry.
func (s *Store) CreateSyncLog(ctx context.Context, sourceID string) (model.SyncLog, error) {
	log := model.SyncLog{ID: uuid.NewString(), SourceID: sourceID, StartedAt: time.Now().UTC(), Status: model.SyncRunning}
	row := db.SyncLogRow{ID: log.ID, SourceID: sourceID, StartedAt: log.StartedAt, Status: string(log.Status)}
	if err := s.q.InsertSyncLog(ctx, row); err != nil {
		return model.SyncLog{}, apperr.Wrap(apperr.KindIndexFailure, err, "failed to create sync log")
	}
	return log, nil
}

// FinishSyncLog records the terminal state of a sync run and updates the
// source's last_sync_at.
func (s *Store) FinishSyncLog(ctx context.Context, sourceID, logID string, processed, failed int64, status model.SyncStatus, errMsg string) error {
	now := time.Now().UTC()
	if err := s.q.FinishSyncLog(ctx, logID, processed, failed, string(status), errMsg, now); err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to finish sync log")
	}
	return s.q.SetExternalDataSourceLastSync(ctx, sourceID, now)
}

// ListSyncLogs returns recent sync log entries for an external data source.
func (s *Store) ListSyncLogs(ctx context.Context, sourceID string, limit int) ([]model.SyncLog, error) {
	rows, err := s.q.ListSyncLogs(ctx, sourceID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to list sync logs")
	}
	out := make([]model.SyncLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.SyncLog{
			ID: r.ID, SourceID: r.SourceID, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt,
			Processed: r.Processed, Failed: r.Failed, Status: model.SyncStatus(r.Status), Error: r.Error,
		})
	}
	return out, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
