package embedder

import (
	"testing"

	"github.com/northbound-policy/ingest/internal/apperr"
)

func TestNormalizePadsSmallerVector(t *testing.T) {
	e := &Embedder{cfg: Config{CanonicalDim: 1024}}
	vec := make([]float32, 384)
	for i := range vec {
		vec[i] = 1.0
	}
	out, err := e.normalize(vec)
	if err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if len(out) != 1024 {
		t.Fatalf("len(out) = %d, want 1024", len(out))
	}
	for i := 384; i < 1024; i++ {
		if out[i] != 0 {
			t.Fatalf("expected zero padding at index %d, got %v", i, out[i])
		}
	}
}

func TestNormalizePassesThroughEqualDim(t *testing.T) {
	e := &Embedder{cfg: Config{CanonicalDim: 1024}}
	vec := make([]float32, 1024)
	out, err := e.normalize(vec)
	if err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if len(out) != 1024 {
		t.Fatalf("len(out) = %d, want 1024", len(out))
	}
}

func TestNormalizeFailsFastWhenNativeDimExceedsCanonical(t *testing.T) {
	e := &Embedder{cfg: Config{CanonicalDim: 512}}
	_, err := e.normalize(make([]float32, 1024))
	if !apperr.Is(err, apperr.KindInputInvalid) {
		t.Fatalf("expected InputInvalid, got %v", err)
	}
}

func TestNewRejectsNonPositiveCanonicalDim(t *testing.T) {
	if _, err := New(Config{CanonicalDim: 0}); err == nil {
		t.Fatal("expected error for zero canonical dimension")
	}
}
