// Package vectorstore adapts Qdrant for dense chunk-vector storage with
// the metadata filters the hybrid retriever requires.
package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/model"
)

// Config addresses the Qdrant gRPC endpoint and target collection.
type Config struct {
	Addr       string
	Collection string
	Dimension  int
}

// Store upserts, deletes, and searches chunk embeddings.
type Store struct {
	client     *qdrant.Client
	collection string
}

// New connects to Qdrant and ensures the configured collection exists
// with the canonical dimension.
func New(ctx context.Context, cfg Config) (*Store, error) {
	host, port := splitAddr(cfg.Addr)
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to construct qdrant client")
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to check collection existence")
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(cfg.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to create collection")
		}
	}

	return &Store{client: client, collection: cfg.Collection}, nil
}

func splitAddr(addr string) (string, int) {
	host, port := "localhost", 6334
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		if addr != "" {
			host = addr
		}
		return host, port
	}
	if h != "" {
		host = h
	}
	if n, err := strconv.Atoi(p); err == nil {
		port = n
	}
	return host, port
}

func pointID(docID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%d", docID, chunkIndex)
}

// Upsert stores or replaces one chunk's vector and filterable metadata.
func (s *Store) Upsert(ctx context.Context, e model.Embedding) error {
	raw := map[string]any{
		"doc_id":          e.DocID,
		"chunk_index":     int64(e.ChunkIndex),
		"section_header":  e.Metadata.SectionHeader,
		"filename":        e.Metadata.Filename,
		"institution_id":  e.Metadata.InstitutionID,
		"visibility":      string(e.Metadata.Visibility),
		"approval_status": string(e.Metadata.ApprovalStatus),
		"version_year":    int64(e.Metadata.VersionYear),
		"document_type":   e.Metadata.DocumentType,
	}
	payload, err := qdrant.TryValueMap(raw)
	if err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to build embedding payload")
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(pointID(e.DocID, e.ChunkIndex)),
		Vectors: qdrant.NewVectors(e.Vector...),
		Payload: payload,
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to upsert embedding")
	}
	return nil
}

// DeleteByDoc removes every chunk vector belonging to a document, used
// when chunks are recomputed on re-embed.
func (s *Store) DeleteByDoc(ctx context.Context, docID string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchKeyword("doc_id", docID)},
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to delete embeddings for document")
	}
	return nil
}

// Filters expresses the required access/scoping filters for a search:
// each non-empty set restricts results to that set of values.
type Filters struct {
	InstitutionIDs []string
	Visibilities   []model.Visibility
	ApprovalStatus []model.ApprovalStatus
	VersionYears   []int
	DocumentTypes  []string
}

// ScoredChunk is one dense search result.
type ScoredChunk struct {
	DocID      string
	ChunkIndex int
	Score      float32
	Metadata   model.EmbeddingMetadata
}

// Search runs a filtered dense similarity search, returning up to k
// results. Filters are applied at the store level, never post-hoc, to
// avoid leaking information through result counts.
func (s *Store) Search(ctx context.Context, queryVector []float32, f Filters, k int) ([]ScoredChunk, error) {
	req := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         queryVector,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if must := buildMust(f); len(must) > 0 {
		req.Filter = &qdrant.Filter{Must: must}
	}

	result, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "vector search failed")
	}

	out := make([]ScoredChunk, 0, len(result.Result))
	for _, p := range result.Result {
		out = append(out, toScoredChunk(p))
	}
	return out, nil
}

// buildMust converts each non-empty filter set into a Qdrant "must"
// condition so the search is scoped at the store level before the access
// matrix check runs, never post-hoc.
func buildMust(f Filters) []*qdrant.Condition {
	var conds []*qdrant.Condition
	if len(f.InstitutionIDs) > 0 {
		conds = append(conds, qdrant.NewMatchKeywords("institution_id", f.InstitutionIDs...))
	}
	if len(f.Visibilities) > 0 {
		vals := make([]string, len(f.Visibilities))
		for i, v := range f.Visibilities {
			vals[i] = string(v)
		}
		conds = append(conds, qdrant.NewMatchKeywords("visibility", vals...))
	}
	if len(f.ApprovalStatus) > 0 {
		vals := make([]string, len(f.ApprovalStatus))
		for i, v := range f.ApprovalStatus {
			vals[i] = string(v)
		}
		conds = append(conds, qdrant.NewMatchKeywords("approval_status", vals...))
	}
	if len(f.VersionYears) > 0 {
		ints := make([]int64, len(f.VersionYears))
		for i, y := range f.VersionYears {
			ints[i] = int64(y)
		}
		conds = append(conds, qdrant.NewMatchInts("version_year", ints...))
	}
	if len(f.DocumentTypes) > 0 {
		conds = append(conds, qdrant.NewMatchKeywords("document_type", f.DocumentTypes...))
	}
	return conds
}

func toScoredChunk(p *qdrant.ScoredPoint) ScoredChunk {
	sc := ScoredChunk{Score: p.Score}
	if p.Payload != nil {
		if v, ok := p.Payload["doc_id"]; ok {
			sc.DocID = v.GetStringValue()
		}
		if v, ok := p.Payload["chunk_index"]; ok {
			sc.ChunkIndex = int(v.GetIntegerValue())
		}
		sc.Metadata = model.EmbeddingMetadata{
			SectionHeader:  stringField(p.Payload, "section_header"),
			Filename:       stringField(p.Payload, "filename"),
			InstitutionID:  stringField(p.Payload, "institution_id"),
			Visibility:     model.Visibility(stringField(p.Payload, "visibility")),
			ApprovalStatus: model.ApprovalStatus(stringField(p.Payload, "approval_status")),
			DocumentType:   stringField(p.Payload, "document_type"),
		}
		if v, ok := p.Payload["version_year"]; ok {
			sc.Metadata.VersionYear = int(v.GetIntegerValue())
		}
	}
	return sc
}

func stringField(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// Close releases the underlying Qdrant client connection.
func (s *Store) Close() error {
	return s.client.Close()
}
