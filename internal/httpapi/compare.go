package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/llm"
	"github.com/northbound-policy/ingest/internal/model"
	"github.com/northbound-policy/ingest/internal/retrieval"
)

// maxCompareChars bounds how much of each document's text is sent to the
// comparison LLM call (internal/metadata uses a larger 8000-character budget
// for its single-document call), bounding provider context use and per-call
// cost.
const maxCompareChars = 6000

// comparableDoc is the minimal view of a document a comparison or
// conflict-detection call needs.
type comparableDoc struct {
	DocID string
	Title string
	Text  string
}

func (h *handlers) loadComparableDocuments(ctx context.Context, docIDs []string, user model.UserContext) ([]comparableDoc, error) {
	docs := make([]comparableDoc, 0, len(docIDs))
	for _, id := range docIDs {
		doc, err := h.d.Store.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		if !retrieval.CanAccess(doc, user) {
			return nil, apperr.New(apperr.KindAccessDenied, "restricted to institution members")
		}

		chunks, err := h.d.Store.ListChunks(ctx, id)
		if err != nil {
			return nil, err
		}
		var text strings.Builder
		for _, ch := range chunks {
			text.WriteString(ch.Text)
			text.WriteString("\n")
			if text.Len() >= maxCompareChars {
				break
			}
		}
		truncated := text.String()
		if len(truncated) > maxCompareChars {
			truncated = truncated[:maxCompareChars]
		}

		title := doc.CanonicalFilename
		if meta, err := h.d.Store.GetDocumentMetadata(ctx, id); err == nil && meta.Title != "" {
			title = meta.Title
		}
		docs = append(docs, comparableDoc{DocID: id, Title: title, Text: truncated})
	}
	return docs, nil
}

const comparePrompt = `Compare the provided documents. Return a JSON object with a single field
"aspects": an array of {"aspect": string, "values": {doc_id: string}} entries,
one per requested aspect (or per salient difference if none were requested).`

func compareDocuments(ctx context.Context, client llm.Client, docs []comparableDoc, aspects []string) (map[string]any, error) {
	if client == nil {
		return nil, apperr.New(apperr.KindInputInvalid, "no chat provider configured for comparison")
	}

	var text strings.Builder
	if len(aspects) > 0 {
		fmt.Fprintf(&text, "Requested aspects: %s\n\n", strings.Join(aspects, ", "))
	}
	for _, d := range docs {
		fmt.Fprintf(&text, "Document %s (%s):\n%s\n\n", d.DocID, d.Title, d.Text)
	}

	raw, err := client.GenerateStructured(ctx, comparePrompt, text.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamTransient, err, "comparison failed")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, apperr.Wrap(apperr.KindMetadataFailed, err, "comparison response was not valid JSON")
	}
	return result, nil
}

const conflictPrompt = `Identify factual or policy conflicts between the provided documents (for
example contradictory deadlines, fee amounts, or eligibility rules). Return a
JSON object with a single field "conflicts": an array of
{"description": string, "doc_ids": [string]} entries. An empty array means
no conflicts were found.`

func findConflicts(ctx context.Context, client llm.Client, docs []comparableDoc) ([]any, error) {
	if client == nil {
		return nil, apperr.New(apperr.KindInputInvalid, "no chat provider configured for conflict detection")
	}

	var text strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&text, "Document %s (%s):\n%s\n\n", d.DocID, d.Title, d.Text)
	}

	raw, err := client.GenerateStructured(ctx, conflictPrompt, text.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamTransient, err, "conflict detection failed")
	}

	var parsed struct {
		Conflicts []any `json:"conflicts"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindMetadataFailed, err, "conflict response was not valid JSON")
	}
	return parsed.Conflicts, nil
}
