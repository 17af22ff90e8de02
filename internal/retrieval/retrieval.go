// Package retrieval answers natural-language queries over ingested
// documents: candidate generation across lexical and dense legs, lazy
// embedding of metadata-only documents, role-scoped access filtering, and
// LLM-assisted reranking.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/northbound-policy/ingest/internal/blobstore"
	"github.com/northbound-policy/ingest/internal/chunker"
	"github.com/northbound-policy/ingest/internal/embedder"
	"github.com/northbound-policy/ingest/internal/llm"
	"github.com/northbound-policy/ingest/internal/logging"
	"github.com/northbound-policy/ingest/internal/metrics"
	"github.com/northbound-policy/ingest/internal/model"
	"github.com/northbound-policy/ingest/internal/store"
	"github.com/northbound-policy/ingest/internal/vectorstore"
)

// Config bounds the cost of a single retrieval call.
type Config struct {
	MaxCandidatesPerLeg int
	MaxLazyEmbeds       int
	TopK                int
	Alpha               float64 // dense-leg weight in the fallback score, [0,1]
}

// DefaultConfig returns conservative defaults: enough candidates to rerank
// meaningfully without paying for an unbounded scan.
func DefaultConfig() Config {
	return Config{
		MaxCandidatesPerLeg: 40,
		MaxLazyEmbeds:       5,
		TopK:                8,
		Alpha:               0.6,
	}
}

// ResultChunk is one ranked passage returned to the caller, carrying
// enough document context to render a citation.
type ResultChunk struct {
	DocID          string
	Filename       string
	ApprovalStatus model.ApprovalStatus
	SectionHeader  string
	Text           string
	Confidence     float64
}

// Retriever wires the store, vector index, embedding pipeline, and a
// reranking LLM client into the hybrid retrieval flow.
type Retriever struct {
	cfg      Config
	store    *store.Store
	vectors  *vectorstore.Store
	embedder *embedder.Embedder
	blobs    *blobstore.Store
	reranker llm.Client
	log      *slog.Logger
}

// New builds a Retriever. reranker may be nil, in which case Retrieve
// falls back directly to the score-weighted union ranking.
func New(cfg Config, st *store.Store, vs *vectorstore.Store, emb *embedder.Embedder, blobs *blobstore.Store, reranker llm.Client, log *slog.Logger) *Retriever {
	return &Retriever{cfg: cfg, store: st, vectors: vs, embedder: emb, blobs: blobs, reranker: reranker, log: log}
}

type candidate struct {
	doc      model.DocumentRecord
	meta     model.DocumentMetadata
	hasMeta  bool
	denseHit bool
	score    vectorstore.ScoredChunk
	rank     int // 1-based rank in its originating leg, for the bm25 proxy
}

// Retrieve runs the full stage 1-6 pipeline for a query scoped to user.
func (r *Retriever) Retrieve(ctx context.Context, query string, user model.UserContext) ([]ResultChunk, error) {
	start := time.Now()
	intent := ClassifyIntent(query)
	filters := accessFilters(user)

	lexical, err := r.store.SearchDocuments(ctx, query, filters.Visibilities, r.cfg.MaxCandidatesPerLeg)
	if err != nil {
		return nil, err
	}

	queryVectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	var dense []vectorstore.ScoredChunk
	if len(queryVectors) > 0 {
		dense, err = r.vectors.Search(ctx, queryVectors[0], filters, r.cfg.MaxCandidatesPerLeg)
		if err != nil {
			return nil, err
		}
	}

	merged := r.mergeCandidates(ctx, lexical, dense)

	r.lazyEmbed(ctx, merged)

	allowed := merged[:0]
	for _, c := range merged {
		if CanAccess(c.doc, user) {
			allowed = append(allowed, c)
		}
	}

	ranked := r.rankCandidates(ctx, query, intent, allowed)

	out := make([]ResultChunk, 0, r.cfg.TopK)
	for i, c := range ranked {
		if i >= r.cfg.TopK {
			break
		}
		chunkText, sectionHeader := r.bestChunk(ctx, c)
		out = append(out, ResultChunk{
			DocID:          c.doc.ID,
			Filename:       c.doc.CanonicalFilename,
			ApprovalStatus: c.doc.ApprovalStatus,
			SectionHeader:  sectionHeader,
			Text:           chunkText,
			Confidence:     float64(c.score.Score),
		})
	}

	metrics.RecordRetrieval(string(intent.Kind), 0)
	return out, nil
}

// mergeCandidates combines the lexical and dense legs by doc id, ranking
// each leg so the fallback score can be computed without a raw BM25 score:
// store.SearchDocuments exposes no relevance score, so rank position
// stands in for it.
func (r *Retriever) mergeCandidates(ctx context.Context, lexical []model.DocumentRecord, dense []vectorstore.ScoredChunk) []candidate {
	byDoc := make(map[string]*candidate)
	order := make([]string, 0, len(lexical)+len(dense))

	for i, doc := range lexical {
		c, ok := byDoc[doc.ID]
		if !ok {
			c = &candidate{doc: doc, rank: i + 1}
			byDoc[doc.ID] = c
			order = append(order, doc.ID)
		}
	}

	for _, hit := range dense {
		c, ok := byDoc[hit.DocID]
		if !ok {
			doc, err := r.store.GetDocument(ctx, hit.DocID)
			if err != nil {
				continue
			}
			c = &candidate{doc: doc}
			byDoc[hit.DocID] = c
			order = append(order, hit.DocID)
		}
		if !c.denseHit || hit.Score > c.score.Score {
			c.denseHit = true
			c.score = hit
		}
	}

	out := make([]candidate, 0, len(order))
	for _, id := range order {
		c := *byDoc[id]
		if meta, err := r.store.GetDocumentMetadata(ctx, id); err == nil {
			c.meta = meta
			c.hasMeta = true
		}
		out = append(out, c)
	}
	return out
}

// EmbedDocuments runs the embedding pipeline for an explicit set of
// document ids, used by the manual pre-embed endpoint. Unlike the lazy
// trigger inside Retrieve, this does
// not respect MaxLazyEmbeds: the caller asked for these documents
// specifically.
func (r *Retriever) EmbedDocuments(ctx context.Context, docIDs []string) (embedded int, err error) {
	candidates := make([]candidate, 0, len(docIDs))
	for _, id := range docIDs {
		doc, err := r.store.GetDocument(ctx, id)
		if err != nil {
			return embedded, err
		}
		meta, err := r.store.GetDocumentMetadata(ctx, id)
		c := candidate{doc: doc}
		if err == nil {
			c.meta = meta
			c.hasMeta = true
		}
		candidates = append(candidates, c)
	}

	r.lazyEmbedUpTo(ctx, candidates, len(candidates))

	for _, c := range candidates {
		if c.meta.EmbeddingStatus == model.EmbeddingEmbedded {
			embedded++
		}
	}
	return embedded, nil
}

// lazyEmbed chunks, embeds, and indexes every candidate that has metadata
// but has not yet been embedded, bounded by MaxLazyEmbeds. Failures are
// logged and skipped; the document remains retrievable
// via its lexical leg alone.
func (r *Retriever) lazyEmbed(ctx context.Context, candidates []candidate) {
	r.lazyEmbedUpTo(ctx, candidates, r.cfg.MaxLazyEmbeds)
}

func (r *Retriever) lazyEmbedUpTo(ctx context.Context, candidates []candidate, max int) {
	embedded := 0
	for i := range candidates {
		if embedded >= max {
			return
		}
		c := &candidates[i]
		if !c.hasMeta || c.meta.EmbeddingStatus == model.EmbeddingEmbedded {
			continue
		}
		if c.doc.ExtractedTextRef == "" {
			continue
		}

		text, err := r.blobs.Download(ctx, c.doc.ExtractedTextRef)
		if err != nil {
			r.log.Warn("lazy embed: failed to read extracted text", "doc_id", logging.Safe(c.doc.ID), "err", err)
			continue
		}

		chunks := chunker.Chunk(c.doc.ID, string(text))
		if len(chunks) == 0 {
			continue
		}
		texts := make([]string, len(chunks))
		for j, ch := range chunks {
			texts[j] = ch.Text
		}
		vectors, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			r.log.Warn("lazy embed: embedding failed", "doc_id", logging.Safe(c.doc.ID), "err", err)
			continue
		}

		for j, ch := range chunks {
			if j >= len(vectors) {
				break
			}
			emb := model.Embedding{
				DocID:      c.doc.ID,
				ChunkIndex: ch.ChunkIndex,
				Vector:     vectors[j],
				Metadata: model.EmbeddingMetadata{
					SectionHeader:  ch.SectionHeader,
					Filename:       c.doc.CanonicalFilename,
					InstitutionID:  c.doc.InstitutionID,
					Visibility:     c.doc.Visibility,
					ApprovalStatus: c.doc.ApprovalStatus,
					DocumentType:   c.meta.DocumentType,
				},
			}
			if err := r.vectors.Upsert(ctx, emb); err != nil {
				r.log.Warn("lazy embed: upsert failed", "doc_id", logging.Safe(c.doc.ID), "err", err)
				continue
			}
		}

		if err := r.store.ReplaceChunks(ctx, c.doc.ID, chunks); err != nil {
			r.log.Warn("lazy embed: failed to persist chunks", "doc_id", logging.Safe(c.doc.ID), "err", err)
			continue
		}
		if err := r.store.SetEmbeddingStatus(ctx, c.doc.ID, model.EmbeddingEmbedded); err != nil {
			r.log.Warn("lazy embed: failed to update embedding status", "doc_id", logging.Safe(c.doc.ID), "err", err)
			continue
		}
		metrics.RecordEmbedding("lazy", int64(len(chunks)))
		c.meta.EmbeddingStatus = model.EmbeddingEmbedded
		c.denseHit = true
		embedded++
	}
}

// rankCandidates orders allowed candidates by LLM rerank when a reranker
// is configured, falling back to the score-weighted union otherwise.
func (r *Retriever) rankCandidates(ctx context.Context, query string, intent Intent, candidates []candidate) []candidate {
	scored := make([]candidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		scored[i].score.Score = float32(fallbackScore(r.cfg.Alpha, scored[i]))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score.Score > scored[j].score.Score
	})

	if r.reranker == nil || len(scored) == 0 {
		return scored
	}

	prompt := rerankPrompt(intent)
	text := rerankCandidateText(query, scored)
	raw, err := r.reranker.GenerateStructured(ctx, prompt, text)
	if err != nil {
		r.log.Warn("rerank failed, using fallback ranking", "err", err)
		return scored
	}
	order := parseRerankOrder(raw, len(scored))
	if order == nil {
		return scored
	}

	reordered := make([]candidate, 0, len(scored))
	seen := make(map[int]bool, len(order))
	for _, idx := range order {
		if idx < 0 || idx >= len(scored) || seen[idx] {
			continue
		}
		seen[idx] = true
		reordered = append(reordered, scored[idx])
	}
	for i := range scored {
		if !seen[i] {
			reordered = append(reordered, scored[i])
		}
	}
	return reordered
}

// fallbackScore is the alpha-weighted union of the dense similarity and a
// rank-based lexical proxy (1/rank), used whenever no reranker is
// configured or the reranker call fails.
func fallbackScore(alpha float64, c candidate) float64 {
	dense := 0.0
	if c.denseHit {
		dense = float64(c.score.Score)
	}
	lexical := 0.0
	if c.rank > 0 {
		lexical = 1.0 / float64(c.rank)
	}
	return alpha*dense + (1-alpha)*lexical
}

func rerankPrompt(intent Intent) string {
	return fmt.Sprintf(
		"You are ranking candidate documents for a policy retrieval query of type %q. "+
			"Return a JSON object with a single field \"order\": an array of zero-based "+
			"candidate indexes, most relevant first. Include every index exactly once.",
		intent.Kind,
	)
}

func rerankCandidateText(query string, candidates []candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nCandidates:\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s", i, c.doc.CanonicalFilename)
		if c.hasMeta {
			fmt.Fprintf(&b, " - %s: %s", c.meta.Title, c.meta.Summary)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func parseRerankOrder(raw string, n int) []int {
	var parsed struct {
		Order []int `json:"order"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || len(parsed.Order) == 0 {
		return nil
	}
	return parsed.Order
}

// bestChunk returns the text and section header for the candidate's
// strongest matching chunk, falling back to the first persisted chunk.
func (r *Retriever) bestChunk(ctx context.Context, c candidate) (string, string) {
	chunks, err := r.store.ListChunks(ctx, c.doc.ID)
	if err != nil || len(chunks) == 0 {
		return "", ""
	}
	if c.denseHit {
		for _, ch := range chunks {
			if ch.ChunkIndex == c.score.ChunkIndex {
				return ch.Text, ch.SectionHeader
			}
		}
	}
	return chunks[0].Text, chunks[0].SectionHeader
}

// accessFilters narrows both the lexical and dense legs at the store
// level before CanAccess re-checks every surviving candidate. Filtering
// happens at the store, never post-hoc. Developers and university and
// ministry admins can see confidential documents, so their legs are left
// unfiltered and rely entirely on the CanAccess pass; every other role is
// restricted to the visibilities it could ever see.
func accessFilters(user model.UserContext) vectorstore.Filters {
	switch user.Role {
	case model.RoleDeveloper, model.RoleUniversityAdmin, model.RoleMinistryAdmin:
		return vectorstore.Filters{}
	case model.RoleDocumentOfficer:
		return vectorstore.Filters{
			Visibilities: []model.Visibility{model.VisibilityPublic, model.VisibilityInstitutionOnly, model.VisibilityRestricted},
		}
	default:
		return vectorstore.Filters{
			Visibilities: []model.Visibility{model.VisibilityPublic, model.VisibilityInstitutionOnly},
		}
	}
}
