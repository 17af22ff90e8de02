package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DocumentMetadataRow mirrors the document_metadata table.
type DocumentMetadataRow struct {
	DocID           string
	Title           string
	Department      string
	DocumentType    string
	Summary         string
	Keywords        []string
	Language        string
	QualityScore    float64
	EmbeddingStatus string
	MetadataStatus  string
}

const metadataColumns = `doc_id, title, department, document_type, summary, keywords,
	language, quality_score, embedding_status, metadata_status`

func scanMetadataRow(row pgx.Row) (DocumentMetadataRow, error) {
	var m DocumentMetadataRow
	err := row.Scan(&m.DocID, &m.Title, &m.Department, &m.DocumentType, &m.Summary,
		&m.Keywords, &m.Language, &m.QualityScore, &m.EmbeddingStatus, &m.MetadataStatus)
	return m, err
}

// UpsertDocumentMetadata creates or replaces the 1:1 metadata satellite for
// a document. Re-created only on explicit re-extraction.
func (q *Queries) UpsertDocumentMetadata(ctx context.Context, m DocumentMetadataRow) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO document_metadata (doc_id, title, department, document_type, summary,
			keywords, language, quality_score, embedding_status, metadata_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (doc_id) DO UPDATE SET
			title=$2, department=$3, document_type=$4, summary=$5, keywords=$6,
			language=$7, quality_score=$8, embedding_status=$9, metadata_status=$10`,
		m.DocID, m.Title, m.Department, m.DocumentType, m.Summary, m.Keywords,
		m.Language, m.QualityScore, m.EmbeddingStatus, m.MetadataStatus)
	return err
}

// SetEmbeddingStatus updates only the embedding lifecycle field, used by
// the lazy embedding trigger without disturbing other metadata fields
// (last-writer-wins on satellite fields).
func (q *Queries) SetEmbeddingStatus(ctx context.Context, docID, status string) error {
	_, err := q.pool.Exec(ctx, `UPDATE document_metadata SET embedding_status=$2 WHERE doc_id=$1`, docID, status)
	return err
}

// GetDocumentMetadata fetches a document's metadata satellite.
func (q *Queries) GetDocumentMetadata(ctx context.Context, docID string) (DocumentMetadataRow, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+metadataColumns+` FROM document_metadata WHERE doc_id=$1`, docID)
	return scanMetadataRow(row)
}

// ListMetadataByFilter paginates document_metadata for the browse endpoint,
// filtering by department/document_type/year when non-empty.
func (q *Queries) ListMetadataByFilter(ctx context.Context, department, documentType string, year int, limit, offset int) ([]DocumentMetadataRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT `+qualify("m", metadataColumns)+`
		FROM document_metadata m
		JOIN document_records d ON d.id = m.doc_id
		WHERE ($1 = '' OR m.department = $1)
		  AND ($2 = '' OR m.document_type = $2)
		  AND ($3 = 0 OR EXTRACT(YEAR FROM d.version_date) = $3)
		ORDER BY d.uploaded_at DESC
		LIMIT $4 OFFSET $5`, department, documentType, year, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentMetadataRow
	for rows.Next() {
		m, err := scanMetadataRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
