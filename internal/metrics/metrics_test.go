package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	RecordRequest("GET", "/v1/sources", 200, 42)

	out := Export()
	if !strings.Contains(out, `ingest_http_requests_total{method="GET",path="/v1/sources",status="200"}`) {
		t.Fatalf("expected HTTP request metric for GET /v1/sources in export, got:\n%s", out)
	}
	if !strings.Contains(out, "ingest_http_request_duration_ms_sum") || !strings.Contains(out, "ingest_http_request_duration_ms_count") {
		t.Fatalf("expected latency metrics headers in export, got:\n%s", out)
	}
}

func TestRecordScrapeMetrics(t *testing.T) {
	RecordScrapeJob("moe", "completed", 5000)
	RecordScrapeDocument("moe", "new")
	RecordScrapeDocument("moe", "duplicate")

	out := Export()
	if !strings.Contains(out, `ingest_scrape_jobs_total{source_type="moe",status="completed"}`) {
		t.Fatalf("expected scrape_jobs_total for moe/completed, got:\n%s", out)
	}
	if !strings.Contains(out, `ingest_scrape_documents_total{source_type="moe",outcome="new"}`) {
		t.Fatalf("expected scrape_documents_total new, got:\n%s", out)
	}
	if !strings.Contains(out, `ingest_scrape_documents_total{source_type="moe",outcome="duplicate"}`) {
		t.Fatalf("expected scrape_documents_total duplicate, got:\n%s", out)
	}
}

func TestRecordMetadataExtraction(t *testing.T) {
	RecordMetadataExtraction("openai", "success")
	RecordMetadataExtraction("anthropic", "fallback")

	out := Export()
	if !strings.Contains(out, `ingest_metadata_extractions_total{provider="openai",outcome="success"}`) {
		t.Fatalf("expected metadata_extractions_total openai/success, got:\n%s", out)
	}
	if !strings.Contains(out, `ingest_metadata_extractions_total{provider="anthropic",outcome="fallback"}`) {
		t.Fatalf("expected metadata_extractions_total anthropic/fallback, got:\n%s", out)
	}
}

func TestEmbeddingAndRetrievalMetrics(t *testing.T) {
	SetEmbeddingQueueDepth(7)
	RecordEmbedding("openai", 3)
	RecordRetrieval("hybrid", 120)

	out := Export()
	if !strings.Contains(out, "ingest_embedding_queue_depth 7") {
		t.Fatalf("expected embedding_queue_depth 7, got:\n%s", out)
	}
	if !strings.Contains(out, `ingest_embeddings_total{provider="openai"} 3`) {
		t.Fatalf("expected embeddings_total openai=3, got:\n%s", out)
	}
	if !strings.Contains(out, `ingest_retrieval_requests_total{mode="hybrid"} 1`) {
		t.Fatalf("expected retrieval_requests_total hybrid=1, got:\n%s", out)
	}
}

func TestExternalSyncMetrics(t *testing.T) {
	RecordExternalSync("mysql", "success")
	out := Export()
	if !strings.Contains(out, `ingest_external_sync_total{dialect="mysql",outcome="success"}`) {
		t.Fatalf("expected external_sync_total mysql/success, got:\n%s", out)
	}
}
