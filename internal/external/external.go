// Package external syncs documents out of registered external relational
// databases. Each ExternalDataSource names a table and column
// mapping; a sync streams rows, turns each into a DocumentRecord candidate
// deduplicated by content hash, and merges recognized metadata columns
// into DocumentMetadata.
package external

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/blobstore"
	"github.com/northbound-policy/ingest/internal/logging"
	"github.com/northbound-policy/ingest/internal/metrics"
	"github.com/northbound-policy/ingest/internal/model"
	"github.com/northbound-policy/ingest/internal/store"
)

// metadataFieldNames lists the DocumentMetadata fields a metadata column
// can be merged into by exact, case-insensitive name match.
var metadataFieldNames = map[string]bool{
	"title": true, "department": true, "document_type": true,
	"summary": true, "language": true,
}

// Syncer runs sync(source_id, limit?) against registered external data
// sources.
type Syncer struct {
	store  *store.Store
	blobs  *blobstore.Store
	cipher *credentialCipher
	log    *slog.Logger
}

// New builds a Syncer. keyHex is the symmetric CREDENTIAL_ENCRYPTION_KEY.
func New(st *store.Store, blobs *blobstore.Store, keyHex string, log *slog.Logger) (*Syncer, error) {
	cipher, err := newCredentialCipher(keyHex)
	if err != nil {
		return nil, err
	}
	return &Syncer{store: st, blobs: blobs, cipher: cipher, log: log}, nil
}

// EncryptPassword is exposed so the data-source creation endpoint can
// encrypt a plaintext password before persisting it.
func (s *Syncer) EncryptPassword(plaintext string) ([]byte, error) {
	return s.cipher.encrypt(plaintext)
}

// Sync streams rows from one external data source's configured table,
// creating a DocumentRecord per row not already seen for this source
// (deduped by content_hash), and appends a SyncLog entry.
func (s *Syncer) Sync(ctx context.Context, sourceID string, limit int) (model.SyncLog, error) {
	src, err := s.store.GetExternalDataSource(ctx, sourceID)
	if err != nil {
		return model.SyncLog{}, err
	}

	log, err := s.store.CreateSyncLog(ctx, sourceID)
	if err != nil {
		return model.SyncLog{}, err
	}

	processed, failed, syncErr := s.syncRows(ctx, src, limit)

	status := model.SyncSuccess
	errMsg := ""
	switch {
	case syncErr != nil:
		status = model.SyncFailed
		errMsg = syncErr.Error()
	case failed > 0:
		status = model.SyncPartial
	}
	if err := s.store.FinishSyncLog(ctx, sourceID, log.ID, processed, failed, status, errMsg); err != nil {
		return model.SyncLog{}, err
	}
	metrics.RecordExternalSync(src.Dialect, string(status))

	log.Processed, log.Failed, log.Status, log.Error = processed, failed, status, errMsg
	if syncErr != nil {
		return log, syncErr
	}
	return log, nil
}

func (s *Syncer) syncRows(ctx context.Context, src model.ExternalDataSource, limit int) (processed, failed int64, err error) {
	password, err := s.cipher.decrypt(src.PasswordEncrypted)
	if err != nil {
		return 0, 0, err
	}

	db, err := openExternalDB(src, password)
	if err != nil {
		return 0, 0, err
	}
	defer db.Close()

	query, err := buildSelect(src, limit)
	if err != nil {
		return 0, 0, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.KindUpstreamTransient, err, "external query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.KindUpstreamTransient, err, "failed to read column list")
	}

	var sourceFiles *blobstore.Store
	if src.Storage == model.ExternalStorageObjectStore {
		sourceFiles, err = blobstore.New(ctx, blobstore.Config{
			Endpoint:  src.ObjectStoreCfg.Endpoint,
			Bucket:    src.ObjectStoreCfg.Bucket,
			AccessKey: src.ObjectStoreCfg.AccessKey,
			SecretKey: src.ObjectStoreCfg.SecretKey,
			UseSSL:    src.ObjectStoreCfg.UseSSL,
		})
		if err != nil {
			return 0, 0, err
		}
	}

	for rows.Next() {
		select {
		case <-ctx.Done():
			return processed, failed, ctx.Err()
		default:
		}

		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			s.log.Warn("external sync: row scan failed", "source_id", logging.Safe(src.ID), "err", err)
			failed++
			continue
		}

		row := indexRow(columns, values)
		if err := s.ingestRow(ctx, src, row, sourceFiles); err != nil {
			s.log.Warn("external sync: row ingest failed", "source_id", logging.Safe(src.ID), "err", err)
			failed++
			continue
		}
		processed++
	}
	if err := rows.Err(); err != nil {
		return processed, failed, apperr.Wrap(apperr.KindUpstreamTransient, err, "row iteration failed")
	}
	return processed, failed, nil
}

func (s *Syncer) ingestRow(ctx context.Context, src model.ExternalDataSource, row map[string]any, sourceFiles *blobstore.Store) error {
	filename := asString(row[src.FilenameColumn])
	if filename == "" {
		return apperr.New(apperr.KindInputInvalid, "row has no filename")
	}

	var data []byte
	switch src.Storage {
	case model.ExternalStorageDatabase:
		data = asBytes(row[src.FileColumn])
	case model.ExternalStorageObjectStore:
		path := src.PathPrefix + asString(row[src.FileColumn])
		var err error
		data, err = sourceFiles.Download(ctx, path)
		if err != nil {
			return err
		}
	default:
		return apperr.New(apperr.KindInputInvalid, "unknown external storage mode")
	}
	if len(data) == 0 {
		return apperr.New(apperr.KindInputInvalid, "row has no file content")
	}

	hash := sha256.Sum256(data)
	contentHash := hex.EncodeToString(hash[:])

	if _, found, err := s.store.FindDocumentByContentHash(ctx, src.ID, contentHash); err != nil {
		return err
	} else if found {
		return nil
	}

	ext := fileExt(filename)
	canonicalName := fmt.Sprintf("external_%s_%s.%s", src.ID, contentHash[:16], ext)
	blobURL, err := s.blobs.Upload(ctx, canonicalName, data, contentTypeFor(ext))
	if err != nil {
		return err
	}

	doc, err := s.store.CreateDocument(ctx, model.DocumentRecord{
		SourceURL:         fmt.Sprintf("external://%s/%s/%s", src.Name, src.Table, filename),
		CanonicalFilename: filename,
		FileType:          ext,
		BlobURL:           blobURL,
		ContentHash:       contentHash,
		SourceID:          src.ID,
		Visibility:        model.VisibilityInstitutionOnly,
		ApprovalStatus:    model.ApprovalPending,
	})
	if err != nil {
		return err
	}

	meta := model.DocumentMetadata{
		DocID:           doc.ID,
		MetadataStatus:  model.MetadataReady,
		EmbeddingStatus: model.EmbeddingNotEmbedded,
	}
	for _, col := range src.MetadataColumns {
		mergeMetadataColumn(&meta, col, row[col])
	}
	return s.store.UpsertDocumentMetadata(ctx, meta)
}

// mergeMetadataColumn writes a raw column value into DocumentMetadata's
// structured fields when the column name matches a known field (spec
// §4.L "metadata columns ... merged ... when names match known fields").
// Unrecognized columns are dropped rather than guessed at.
func mergeMetadataColumn(meta *model.DocumentMetadata, column string, value any) {
	key := strings.ToLower(column)
	if !metadataFieldNames[key] {
		return
	}
	v := asString(value)
	switch key {
	case "title":
		meta.Title = v
	case "department":
		meta.Department = v
	case "document_type":
		meta.DocumentType = v
	case "summary":
		meta.Summary = v
	case "language":
		meta.Language = v
	}
}

func indexRow(columns []string, values []interface{}) map[string]any {
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asBytes(v any) []byte {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return nil
	}
}

func fileExt(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i == -1 || i == len(filename)-1 {
		return "bin"
	}
	return strings.ToLower(filename[i+1:])
}

func contentTypeFor(ext string) string {
	switch ext {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func buildSelect(src model.ExternalDataSource, limit int) (string, error) {
	columns := []string{src.FileColumn, src.FilenameColumn}
	columns = append(columns, src.MetadataColumns...)
	for _, c := range columns {
		if strings.ContainsAny(c, " ;\"'") {
			return "", apperr.New(apperr.KindInputInvalid, "invalid column name in external source configuration")
		}
	}
	if strings.ContainsAny(src.Table, " ;\"'") {
		return "", apperr.New(apperr.KindInputInvalid, "invalid table name in external source configuration")
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), src.Table)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, nil
}

func openExternalDB(src model.ExternalDataSource, password string) (*sql.DB, error) {
	var driver, dsn string
	switch src.Dialect {
	case "mysql":
		driver = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", src.Username, password, src.Host, src.Port, src.DBName)
	case "postgres":
		driver = "postgres"
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=require", src.Username, password, src.Host, src.Port, src.DBName)
	default:
		return nil, apperr.New(apperr.KindInputInvalid, "unsupported external dialect: "+src.Dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamTransient, err, "failed to open external database connection")
	}
	db.SetMaxOpenConns(2)
	return db, nil
}
