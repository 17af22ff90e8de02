package sources

import (
	"context"
	"reflect"
	"testing"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/model"
)

func TestNormalizeKeywords(t *testing.T) {
	in := []string{" Syllabus ", "syllabus", "ADMISSIONS", "", "  "}
	got := NormalizeKeywords(in)
	want := []string{"admissions", "syllabus"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeKeywords(%v) = %v, want %v", in, got, want)
	}
}

func TestMatchesKeywordsEmptyMatchesAll(t *testing.T) {
	if !MatchesKeywords("anything at all", nil) {
		t.Fatal("expected empty keyword list to match everything")
	}
}

func TestMatchesKeywordsCaseInsensitive(t *testing.T) {
	if !MatchesKeywords("Annual Syllabus Update 2026", []string{"syllabus"}) {
		t.Fatal("expected case-insensitive substring match")
	}
	if MatchesKeywords("Annual Report", []string{"syllabus", "admissions"}) {
		t.Fatal("expected no match")
	}
}

func TestImportRejectsMalformedYAML(t *testing.T) {
	r := New(nil)
	_, err := r.Import(context.Background(), []byte("sources: [not: valid: yaml"))
	if !apperr.Is(err, apperr.KindInputInvalid) {
		t.Fatalf("expected InputInvalid, got %v", err)
	}
}

func TestImportRejectsEmptyList(t *testing.T) {
	r := New(nil)
	_, err := r.Import(context.Background(), []byte("sources: []"))
	if !apperr.Is(err, apperr.KindInputInvalid) {
		t.Fatalf("expected InputInvalid, got %v", err)
	}
}

func TestImportRejectsMissingSourcesKey(t *testing.T) {
	r := New(nil)
	_, err := r.Import(context.Background(), []byte("name: not-a-list-document"))
	if !apperr.Is(err, apperr.KindInputInvalid) {
		t.Fatalf("expected InputInvalid, got %v", err)
	}
}

func TestValidDialect(t *testing.T) {
	cases := map[string]bool{
		"moe": true, "ugc": true, "aicte": true, "generic": true, "bogus": false,
	}
	for d, want := range cases {
		if got := validDialect(model.Dialect(d)); got != want {
			t.Errorf("validDialect(%q) = %v, want %v", d, got, want)
		}
	}
}
