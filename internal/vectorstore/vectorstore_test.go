package vectorstore

import (
	"testing"

	"github.com/northbound-policy/ingest/internal/model"
)

func TestBuildMustOmitsEmptyFilters(t *testing.T) {
	conds := buildMust(Filters{})
	if len(conds) != 0 {
		t.Fatalf("expected no conditions for empty filters, got %d", len(conds))
	}
}

func TestBuildMustIncludesEachNonEmptyFilter(t *testing.T) {
	conds := buildMust(Filters{
		InstitutionIDs: []string{"inst-1"},
		Visibilities:   []model.Visibility{model.VisibilityPublic},
		ApprovalStatus: []model.ApprovalStatus{model.ApprovalApproved},
		VersionYears:   []int{2025, 2026},
		DocumentTypes:  []string{"circular"},
	})
	if len(conds) != 5 {
		t.Fatalf("got %d conditions, want 5", len(conds))
	}
}

func TestPointIDIsStableAndUnique(t *testing.T) {
	a := pointID("doc-1", 0)
	b := pointID("doc-1", 1)
	c := pointID("doc-2", 0)
	if a == b || a == c || b == c {
		t.Fatalf("expected distinct point IDs, got %q %q %q", a, b, c)
	}
	if pointID("doc-1", 0) != a {
		t.Fatal("expected pointID to be deterministic")
	}
}

func TestSplitAddr(t *testing.T) {
	host, port := splitAddr("qdrant.internal:6334")
	if host != "qdrant.internal" || port != 6334 {
		t.Errorf("splitAddr() = (%q, %d)", host, port)
	}
}
