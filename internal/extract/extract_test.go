package extract

import (
	"context"
	"image"
	"testing"

	"github.com/northbound-policy/ingest/internal/apperr"
)

type stubOCR struct {
	text string
	err  error
}

func (s stubOCR) RecognizeImage(ctx context.Context, img image.Image) (string, error) {
	return s.text, s.err
}

func (s stubOCR) RecognizePDF(ctx context.Context, pdfBytes []byte) (string, error) {
	return s.text, s.err
}

func TestExtractUnsupportedType(t *testing.T) {
	e := New(nil)
	_, err := e.Extract(context.Background(), []byte("x"), "exe")
	if !apperr.Is(err, apperr.KindExtractionFailed) {
		t.Fatalf("expected ExtractionFailed, got %v", err)
	}
}

func TestExtractDOCXEmptyFails(t *testing.T) {
	e := New(nil)
	// A byte slice that is not a valid zip/docx must surface a typed error,
	// not a panic.
	_, err := e.Extract(context.Background(), []byte("not a docx"), "docx")
	if !apperr.Is(err, apperr.KindExtractionFailed) {
		t.Fatalf("expected ExtractionFailed, got %v", err)
	}
}

func TestExtractImageWithoutOCRMarksScanned(t *testing.T) {
	e := New(nil)
	res, err := e.Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "png")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !res.IsScanned {
		t.Error("expected IsScanned=true when no OCR collaborator configured")
	}
}

func TestExtractHTMLConvertsToMarkdown(t *testing.T) {
	e := New(nil)
	res, err := e.Extract(context.Background(), []byte("<h1>Notice</h1><p>Filed under section 12</p>"), "html")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Text == "" {
		t.Fatal("expected non-empty extracted text")
	}
	if res.Pages != 1 {
		t.Errorf("Pages = %d, want 1", res.Pages)
	}
}

func TestExtractHTMLEmptyFails(t *testing.T) {
	e := New(nil)
	_, err := e.Extract(context.Background(), []byte("<html></html>"), "htm")
	if !apperr.Is(err, apperr.KindExtractionFailed) {
		t.Fatalf("expected ExtractionFailed, got %v", err)
	}
}

func TestExtractXLSXInvalidFails(t *testing.T) {
	e := New(nil)
	_, err := e.Extract(context.Background(), []byte("not an xlsx"), "xlsx")
	if !apperr.Is(err, apperr.KindExtractionFailed) {
		t.Fatalf("expected ExtractionFailed, got %v", err)
	}
}

func TestNormalizeNewlines(t *testing.T) {
	in := "a\r\nb\rc\n"
	want := "a\nb\nc\n"
	if got := normalizeNewlines(in); got != want {
		t.Errorf("normalizeNewlines(%q) = %q, want %q", in, got, want)
	}
}
