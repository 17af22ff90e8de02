package orchestrator

import (
	"testing"

	"github.com/northbound-policy/ingest/internal/model"
)

func TestResolveParamsAppliesOverrides(t *testing.T) {
	src := model.Source{MaxDocs: 500, MaxPages: 50, PaginationEnabled: true, WindowSize: 20}
	maxDocs := 10
	maxDocs2, maxPages, windowSize := resolveParams(src, Overrides{MaxDocuments: &maxDocs})
	if maxDocs2 != 10 {
		t.Errorf("maxDocs = %d, want 10", maxDocs2)
	}
	if maxPages != 50 {
		t.Errorf("maxPages = %d, want 50 (unchanged)", maxPages)
	}
	if windowSize != 20 {
		t.Errorf("windowSize = %d, want 20", windowSize)
	}
}

func TestResolveParamsDisablingPaginationClampsToOnePage(t *testing.T) {
	src := model.Source{MaxDocs: 500, MaxPages: 50, PaginationEnabled: true, WindowSize: 20}
	disabled := false
	_, maxPages, _ := resolveParams(src, Overrides{PaginationEnabled: &disabled})
	if maxPages != 1 {
		t.Errorf("maxPages = %d, want 1 when pagination disabled", maxPages)
	}
}

func TestResolveParamsDefaultsWindowSize(t *testing.T) {
	src := model.Source{MaxDocs: 500, MaxPages: 50, PaginationEnabled: true, WindowSize: 0}
	_, _, windowSize := resolveParams(src, Overrides{})
	if windowSize != 3 {
		t.Errorf("windowSize = %d, want default 3", windowSize)
	}
}

func TestDocOutcomeString(t *testing.T) {
	cases := map[docOutcome]string{outcomeNew: "new", outcomeUnchanged: "duplicate", outcomeFailed: "failed"}
	for outcome, want := range cases {
		if got := outcome.String(); got != want {
			t.Errorf("docOutcome(%d).String() = %q, want %q", outcome, got, want)
		}
	}
}

func TestSha256HexIsDeterministic(t *testing.T) {
	a := sha256Hex([]byte("hello world"))
	b := sha256Hex([]byte("hello world"))
	if a != b {
		t.Fatal("expected identical hashes for identical bytes")
	}
	if sha256Hex([]byte("other")) == a {
		t.Fatal("expected different hashes for different bytes")
	}
}
