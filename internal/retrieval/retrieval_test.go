package retrieval

import (
	"strings"
	"testing"

	"github.com/northbound-policy/ingest/internal/model"
	"github.com/northbound-policy/ingest/internal/vectorstore"
)

func TestFallbackScoreWeightsDenseAndLexical(t *testing.T) {
	denseOnly := candidate{denseHit: true, score: vectorstore.ScoredChunk{Score: 0.8}}
	lexicalOnly := candidate{rank: 1}

	got := fallbackScore(0.6, denseOnly)
	want := 0.6 * 0.8
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("dense-only score = %v, want %v", got, want)
	}

	got = fallbackScore(0.6, lexicalOnly)
	want = 0.4 * 1.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("lexical-only score = %v, want %v", got, want)
	}
}

func TestFallbackScoreLowerRankScoresLower(t *testing.T) {
	first := fallbackScore(0.6, candidate{rank: 1})
	second := fallbackScore(0.6, candidate{rank: 2})
	if first <= second {
		t.Fatalf("rank 1 score %v should exceed rank 2 score %v", first, second)
	}
}

func TestParseRerankOrderValid(t *testing.T) {
	order := parseRerankOrder(`{"order": [2, 0, 1]}`, 3)
	if len(order) != 3 || order[0] != 2 || order[1] != 0 || order[2] != 1 {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestParseRerankOrderInvalidJSONReturnsNil(t *testing.T) {
	if order := parseRerankOrder("not json", 3); order != nil {
		t.Fatalf("expected nil order, got %v", order)
	}
}

func TestParseRerankOrderEmptyReturnsNil(t *testing.T) {
	if order := parseRerankOrder(`{"order": []}`, 3); order != nil {
		t.Fatalf("expected nil order, got %v", order)
	}
}

func TestAccessFiltersRestrictsStudent(t *testing.T) {
	f := accessFilters(model.UserContext{Role: model.RoleStudent})
	if len(f.Visibilities) != 2 {
		t.Fatalf("expected student to be scoped to 2 visibilities, got %d", len(f.Visibilities))
	}
}

func TestAccessFiltersUnrestrictsDeveloper(t *testing.T) {
	f := accessFilters(model.UserContext{Role: model.RoleDeveloper})
	if len(f.Visibilities) != 0 {
		t.Fatalf("expected developer leg to be unfiltered, got %v", f.Visibilities)
	}
}

func TestRerankCandidateTextIncludesEachCandidate(t *testing.T) {
	candidates := []candidate{
		{doc: model.DocumentRecord{CanonicalFilename: "circular-2024.pdf"}},
		{
			doc:     model.DocumentRecord{CanonicalFilename: "policy-2023.pdf"},
			hasMeta: true,
			meta:    model.DocumentMetadata{Title: "Fee Policy", Summary: "Annual fee structure"},
		},
	}
	text := rerankCandidateText("fee policy", candidates)
	if !strings.Contains(text, "circular-2024.pdf") || !strings.Contains(text, "policy-2023.pdf") {
		t.Fatalf("candidate text missing a filename: %s", text)
	}
	if !strings.Contains(text, "Fee Policy") {
		t.Fatalf("candidate text missing metadata title: %s", text)
	}
}

func TestRankCandidatesFallsBackWithoutReranker(t *testing.T) {
	r := &Retriever{cfg: Config{Alpha: 0.6}}
	candidates := []candidate{
		{doc: model.DocumentRecord{ID: "low"}, rank: 5},
		{doc: model.DocumentRecord{ID: "high"}, rank: 1},
	}
	ranked := r.rankCandidates(nil, "query", Intent{Kind: IntentQA}, candidates)
	if ranked[0].doc.ID != "high" {
		t.Fatalf("expected higher-ranked lexical candidate first, got %s", ranked[0].doc.ID)
	}
}
