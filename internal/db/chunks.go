package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// ChunkRow mirrors the chunks table.
type ChunkRow struct {
	DocID           string
	ChunkIndex      int32
	Text            string
	SectionHeader   string
	HasSection      bool
	CharOffsetStart int32
	CharOffsetEnd   int32
}

const chunkColumns = `doc_id, chunk_index, text, section_header, has_section, char_offset_start, char_offset_end`

func scanChunkRow(row pgx.Row) (ChunkRow, error) {
	var c ChunkRow
	err := row.Scan(&c.DocID, &c.ChunkIndex, &c.Text, &c.SectionHeader, &c.HasSection,
		&c.CharOffsetStart, &c.CharOffsetEnd)
	return c, err
}

// ReplaceChunks deletes and re-inserts all chunks for a document, used on
// (re-)embed since chunks are recomputed only then.
func (q *Queries) ReplaceChunks(ctx context.Context, docID string, chunks []ChunkRow) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE doc_id=$1`, docID); err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (doc_id, chunk_index, text, section_header, has_section,
				char_offset_start, char_offset_end)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			docID, c.ChunkIndex, c.Text, c.SectionHeader, c.HasSection,
			c.CharOffsetStart, c.CharOffsetEnd); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListChunks returns all chunks for a document ordered by index.
func (q *Queries) ListChunks(ctx context.Context, docID string) ([]ChunkRow, error) {
	rows, err := q.pool.Query(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE doc_id=$1 ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		c, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
