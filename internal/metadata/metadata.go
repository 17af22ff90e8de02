// Package metadata extracts structured document metadata via a primary
// and fallback LLM provider, enforcing a quality gate before accepting a
// result.
package metadata

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/llm"
	"github.com/northbound-policy/ingest/internal/model"
)

// maxChars bounds how much extracted text is sent to the LLM.
const maxChars = 8000

const prompt = `Extract document metadata as a JSON object with exactly these keys:
title (string), department (string), document_type (string),
summary (1-3 sentences), keywords (array of 3-10 strings), language (ISO 639-1 code).
Respond with only the JSON object.`

// QualityThresholds gates an extraction result before it is accepted.
type QualityThresholds struct {
	MinTitleLen   int
	MinSummaryLen int
	MinKeywords   int
}

// DefaultThresholds are the design-default quality gate minimums.
func DefaultThresholds() QualityThresholds {
	return QualityThresholds{MinTitleLen: 3, MinSummaryLen: 20, MinKeywords: 3}
}

var placeholders = map[string]struct{}{
	"n/a": {}, "na": {}, "unknown": {}, "untitled": {}, "none": {}, "tbd": {},
}

type rawFields struct {
	Title        string   `json:"title"`
	Department   string   `json:"department"`
	DocumentType string   `json:"document_type"`
	Summary      string   `json:"summary"`
	Keywords     []string `json:"keywords"`
	Language     string   `json:"language"`
}

// Extractor runs the primary-then-fallback metadata extraction contract.
type Extractor struct {
	primary    llm.Client
	fallback   llm.Client
	thresholds QualityThresholds
}

// New builds an Extractor. fallback may be nil if no fallback provider is
// configured.
func New(primary, fallback llm.Client, thresholds QualityThresholds) *Extractor {
	return &Extractor{primary: primary, fallback: fallback, thresholds: thresholds}
}

// Extract truncates text to maxChars and calls the primary provider, then
// the fallback, then gives up with a partial result.
func (e *Extractor) Extract(ctx context.Context, docID, text string) (model.DocumentMetadata, error) {
	if len(text) > maxChars {
		text = text[:maxChars]
	}

	if e.primary != nil {
		if md, ok := e.tryProvider(ctx, docID, text, e.primary); ok {
			return md, nil
		}
	}
	if e.fallback != nil {
		if md, ok := e.tryProvider(ctx, docID, text, e.fallback); ok {
			return md, nil
		}
	}

	return model.DocumentMetadata{
		DocID:          docID,
		MetadataStatus: model.MetadataFailed,
	}, apperr.New(apperr.KindMetadataFailed, "primary and fallback providers failed the quality gate")
}

func (e *Extractor) tryProvider(ctx context.Context, docID, text string, c llm.Client) (model.DocumentMetadata, bool) {
	raw, err := c.GenerateStructured(ctx, prompt, text)
	if err != nil {
		return model.DocumentMetadata{}, false
	}
	var f rawFields
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return model.DocumentMetadata{}, false
	}
	md := model.DocumentMetadata{
		DocID: docID, Title: strings.TrimSpace(f.Title), Department: strings.TrimSpace(f.Department),
		DocumentType: strings.TrimSpace(f.DocumentType), Summary: strings.TrimSpace(f.Summary),
		Keywords: f.Keywords, Language: strings.TrimSpace(f.Language),
		EmbeddingStatus: model.EmbeddingNotEmbedded, MetadataStatus: model.MetadataReady,
		QualityScore: 1.0,
	}
	if !e.passesGate(md) {
		return model.DocumentMetadata{}, false
	}
	return md, true
}

// passesGate implements the quality gate: title and summary length
// minimums, keyword count minimum, and a placeholder-string check on
// title and document_type.
func (e *Extractor) passesGate(md model.DocumentMetadata) bool {
	if len(md.Title) < e.thresholds.MinTitleLen {
		return false
	}
	if len(md.Summary) < e.thresholds.MinSummaryLen {
		return false
	}
	if len(md.Keywords) < e.thresholds.MinKeywords {
		return false
	}
	if isPlaceholder(md.Title) || isPlaceholder(md.DocumentType) {
		return false
	}
	return true
}

func isPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
