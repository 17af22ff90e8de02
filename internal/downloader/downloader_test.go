package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/northbound-policy/ingest/internal/apperr"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	d := New(DefaultConfig())
	res, err := d.Fetch(context.Background(), srv.URL, srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, want application/pdf", res.ContentType)
	}
}

func TestFetchNotFoundIsBlockedNotRetried(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := New(Config{Attempts: 3, RequestTimeout: 5 * time.Second, MaxRedirects: 5, MaxBytes: 1 << 20})
	_, err := d.Fetch(context.Background(), srv.URL, "")
	if !apperr.Is(err, apperr.KindUpstreamBlocked) {
		t.Fatalf("expected UpstreamBlocked, got %v", err)
	}
	if hits != 1 {
		t.Errorf("expected exactly one attempt for a terminal 404, got %d", hits)
	}
}

func TestFetchServerErrorRetries(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := New(Config{Attempts: 3, RequestTimeout: 5 * time.Second, MaxRedirects: 5, MaxBytes: 1 << 20})
	res, err := d.Fetch(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(res.Bytes) != "ok" {
		t.Errorf("Bytes = %q, want ok", res.Bytes)
	}
	if hits != 2 {
		t.Errorf("expected 2 attempts, got %d", hits)
	}
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer srv.Close()

	d := New(Config{Attempts: 3, RequestTimeout: 5 * time.Second, MaxRedirects: 5, MaxBytes: 16})
	_, err := d.Fetch(context.Background(), srv.URL, "")
	if !apperr.Is(err, apperr.KindTooLarge) {
		t.Fatalf("expected TooLarge, got %v", err)
	}
	if apperr.Retryable(err) {
		t.Fatal("TooLarge must not be retryable")
	}
}
