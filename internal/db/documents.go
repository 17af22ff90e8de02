package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// DocumentRow mirrors the document_records table.
type DocumentRow struct {
	ID                  string
	SourceURL           string
	CanonicalFilename   string
	FileType            string
	BlobURL             string
	ContentHash         string
	SourceID            string
	UploadedAt          time.Time
	UploaderID          string
	InstitutionID       string
	Visibility          string
	ApprovalStatus      string
	RequiresMoEApproval bool
	Version             int32
	VersionDate         *time.Time
	IsScanned           bool
	ExtractedTextRef    string
	ParentDocumentID    *string
	ETag                string
	LastModified        string
}

const documentColumns = `id, source_url, canonical_filename, file_type, blob_url, content_hash,
	source_id, uploaded_at, uploader_id, institution_id, visibility, approval_status,
	requires_moe_approval, version, version_date, is_scanned, extracted_text_ref, parent_document_id,
	etag, last_modified`

func scanDocumentRow(row pgx.Row) (DocumentRow, error) {
	var d DocumentRow
	err := row.Scan(&d.ID, &d.SourceURL, &d.CanonicalFilename, &d.FileType, &d.BlobURL,
		&d.ContentHash, &d.SourceID, &d.UploadedAt, &d.UploaderID, &d.InstitutionID,
		&d.Visibility, &d.ApprovalStatus, &d.RequiresMoEApproval, &d.Version,
		&d.VersionDate, &d.IsScanned, &d.ExtractedTextRef, &d.ParentDocumentID,
		&d.ETag, &d.LastModified)
	return d, err
}

// InsertDocument atomically persists a document record. The unique
// (source_id, content_hash) constraint enforces dedup at the database level.
func (q *Queries) InsertDocument(ctx context.Context, d DocumentRow) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO document_records (id, source_url, canonical_filename, file_type, blob_url,
			content_hash, source_id, uploaded_at, uploader_id, institution_id, visibility,
			approval_status, requires_moe_approval, version, version_date, is_scanned,
			extracted_text_ref, parent_document_id, etag, last_modified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		d.ID, d.SourceURL, d.CanonicalFilename, d.FileType, d.BlobURL, d.ContentHash,
		d.SourceID, d.UploadedAt, d.UploaderID, d.InstitutionID, d.Visibility,
		d.ApprovalStatus, d.RequiresMoEApproval, d.Version, d.VersionDate, d.IsScanned,
		d.ExtractedTextRef, d.ParentDocumentID, d.ETag, d.LastModified)
	return err
}

// FindDocumentByContentHash looks up an existing record for the same
// source + hash, backing the post-download dedup check: a downloaded body
// whose hash is already recorded is treated as unchanged.
func (q *Queries) FindDocumentByContentHash(ctx context.Context, sourceID, hash string) (DocumentRow, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+documentColumns+`
		FROM document_records WHERE source_id=$1 AND content_hash=$2`, sourceID, hash)
	return scanDocumentRow(row)
}

// FindDocumentBySourceURL returns the most recently uploaded record for
// this source+URL, backing the pre-download conditional-fetch check: its
// stored ETag/Last-Modified let the downloader issue a HEAD request and
// skip the full GET entirely when the upstream document is unchanged.
func (q *Queries) FindDocumentBySourceURL(ctx context.Context, sourceID, sourceURL string) (DocumentRow, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+documentColumns+`
		FROM document_records WHERE source_id=$1 AND source_url=$2
		ORDER BY uploaded_at DESC LIMIT 1`, sourceID, sourceURL)
	return scanDocumentRow(row)
}

// GetDocument fetches a document by id.
func (q *Queries) GetDocument(ctx context.Context, id string) (DocumentRow, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM document_records WHERE id=$1`, id)
	return scanDocumentRow(row)
}

// DeleteDocument removes a document record (used when metadata extraction
// fails under a strict retention policy).
func (q *Queries) DeleteDocument(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM document_records WHERE id=$1`, id)
	return err
}

// ListDocumentsBySource paginates document records for browse endpoints,
// newest first.
func (q *Queries) ListDocumentsBySource(ctx context.Context, sourceID string, limit, offset int) ([]DocumentRow, error) {
	rows, err := q.pool.Query(ctx, `SELECT `+documentColumns+`
		FROM document_records WHERE source_id=$1
		ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`, sourceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		d, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SearchDocuments runs a simple ILIKE-based metadata/filename search used
// as the lexical leg of hybrid retrieval. When visibilities is non-empty,
// results are restricted to those visibility values at the SQL level, so
// a caller never even learns a confidential/restricted document exists
// for roles that can't see it — visibility scoping is enforced here, not
// only in the later in-process access check.
func (q *Queries) SearchDocuments(ctx context.Context, needle string, visibilities []string, limit int) ([]DocumentRow, error) {
	args := []any{"%" + needle + "%"}
	query := `
		SELECT ` + qualify("d", documentColumns) + `
		FROM document_records d
		LEFT JOIN document_metadata m ON m.doc_id = d.id
		WHERE (d.canonical_filename ILIKE $1
		   OR m.title ILIKE $1
		   OR m.summary ILIKE $1
		   OR EXISTS (SELECT 1 FROM unnest(m.keywords) k WHERE k ILIKE $1))`
	if len(visibilities) > 0 {
		args = append(args, visibilities)
		query += fmt.Sprintf(" AND d.visibility = ANY($%d)", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY d.uploaded_at DESC LIMIT $%d", len(args))

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		d, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// qualify prefixes each comma-separated column name with a table alias, so
// a shared column-list constant can be reused in joined queries.
func qualify(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
