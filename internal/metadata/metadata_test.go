package metadata

import (
	"context"
	"testing"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/model"
)

type stubClient struct {
	response string
	err      error
}

func (s stubClient) GenerateStructured(ctx context.Context, prompt, text string) (string, error) {
	return s.response, s.err
}

const goodJSON = `{"title":"Annual Admissions Circular","department":"Higher Education","document_type":"circular","summary":"Describes the admissions process for the upcoming academic year.","keywords":["admissions","circular","academic year"],"language":"en"}`

const thinJSON = `{"title":"x","department":"","document_type":"unknown","summary":"short","keywords":["a"],"language":"en"}`

func TestExtractPrimarySucceeds(t *testing.T) {
	e := New(stubClient{response: goodJSON}, nil, DefaultThresholds())
	md, err := e.Extract(context.Background(), "doc-1", "some extracted text")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if md.Title != "Annual Admissions Circular" {
		t.Errorf("Title = %q", md.Title)
	}
	if len(md.Keywords) != 3 {
		t.Errorf("Keywords = %v, want 3", md.Keywords)
	}
}

func TestExtractFallsBackWhenPrimaryFailsGate(t *testing.T) {
	e := New(stubClient{response: thinJSON}, stubClient{response: goodJSON}, DefaultThresholds())
	md, err := e.Extract(context.Background(), "doc-1", "text")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if md.Title != "Annual Admissions Circular" {
		t.Errorf("expected fallback result, got Title = %q", md.Title)
	}
}

func TestExtractReturnsPartialWhenBothFail(t *testing.T) {
	e := New(stubClient{response: thinJSON}, stubClient{response: thinJSON}, DefaultThresholds())
	md, err := e.Extract(context.Background(), "doc-1", "text")
	if !apperr.Is(err, apperr.KindMetadataFailed) {
		t.Fatalf("expected MetadataFailed, got %v", err)
	}
	if md.MetadataStatus != "failed" {
		t.Errorf("MetadataStatus = %q, want failed", md.MetadataStatus)
	}
}

func TestQualityGateRejectsPlaceholderTitle(t *testing.T) {
	e := New(nil, nil, DefaultThresholds())
	md := model.DocumentMetadata{
		Title: "Unknown", DocumentType: "circular",
		Summary:  "A sufficiently long summary describing the document contents.",
		Keywords: []string{"a", "b", "c"},
	}
	if e.passesGate(md) {
		t.Fatal("expected placeholder title to fail the quality gate")
	}
}
