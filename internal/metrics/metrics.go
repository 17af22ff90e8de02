// Package metrics is an in-memory Prometheus-text exporter. Counters and
// latency histograms live in mutex-guarded maps and are rendered to text on
// demand by Export; there is no background scrape loop or remote-write path.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	mu sync.RWMutex

	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	scrapeJobsTotal     = make(map[scrapeJobKey]int64)
	scrapeDocsTotal     = make(map[scrapeDocKey]int64)
	scrapeJobDurationMs = make(map[string]int64)

	metadataExtractTotal = make(map[metadataKey]int64)

	embeddingQueueDepth int64
	embeddingsTotal     = make(map[string]int64)

	retrievalRequestsTotal  = make(map[string]int64)
	retrievalLatencyMsSum   = make(map[string]int64)
	retrievalLatencyMsCount = make(map[string]int64)

	externalSyncTotal = make(map[syncKey]int64)

	retentionJobsDeletedTotal int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type scrapeJobKey struct {
	SourceType string
	Status     string
}

type scrapeDocKey struct {
	SourceType string
	Outcome    string // "new", "duplicate", "failed"
}

type metadataKey struct {
	Provider string
	Outcome  string // "success", "fallback", "failed"
}

type syncKey struct {
	Dialect string
	Outcome string
}

// RecordRequest increments the HTTP request counter and records latency,
// matching the request-id + latency middleware in internal/httpapi.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	requestsTotal[reqKey{Method: method, Path: path, Status: status}]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordScrapeJob increments the scrape job counter for a terminal status
// (succeeded, failed, stopped) and records wall-clock duration.
func RecordScrapeJob(sourceType, status string, durationMs int64) {
	mu.Lock()
	defer mu.Unlock()

	scrapeJobsTotal[scrapeJobKey{SourceType: sourceType, Status: status}]++
	scrapeJobDurationMs[sourceType] += durationMs
}

// RecordScrapeDocument increments the per-source-type document outcome
// counter (new, duplicate, failed) emitted once per URL processed by the
// orchestrator.
func RecordScrapeDocument(sourceType, outcome string) {
	mu.Lock()
	defer mu.Unlock()
	scrapeDocsTotal[scrapeDocKey{SourceType: sourceType, Outcome: outcome}]++
}

// RecordMetadataExtraction increments the metadata extraction counter for a
// given provider and outcome (success, fallback, failed), matching the
// primary+fallback chain in internal/metadata.
func RecordMetadataExtraction(provider, outcome string) {
	mu.Lock()
	defer mu.Unlock()
	metadataExtractTotal[metadataKey{Provider: provider, Outcome: outcome}]++
}

// SetEmbeddingQueueDepth records the current count of chunks pending
// embedding (the lazy embedding backlog).
func SetEmbeddingQueueDepth(depth int64) {
	mu.Lock()
	defer mu.Unlock()
	embeddingQueueDepth = depth
}

// RecordEmbedding increments the embedding counter for a given provider.
func RecordEmbedding(provider string, count int64) {
	if count <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	embeddingsTotal[provider] += count
}

// RecordRetrieval increments retrieval request counters and latency for a
// given mode label; the retriever passes the query's classified intent kind
// (qa, comparison, count, list).
func RecordRetrieval(mode string, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()
	retrievalRequestsTotal[mode]++
	retrievalLatencyMsSum[mode] += latencyMs
	retrievalLatencyMsCount[mode]++
}

// RecordExternalSync increments the external data source sync counter by
// dialect and outcome (success, partial, failed).
func RecordExternalSync(dialect, outcome string) {
	mu.Lock()
	defer mu.Unlock()
	externalSyncTotal[syncKey{Dialect: dialect, Outcome: outcome}]++
}

// RecordRetentionSweep increments the count of scrape jobs purged by the
// retention sweep (internal/orchestrator/scheduler.go).
func RecordRetentionSweep(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeletedTotal += deleted
}

// Export renders all recorded metrics as Prometheus exposition text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP ingest_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE ingest_http_requests_total counter\n")
	reqKeys := make([]reqKey, 0, len(requestsTotal))
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})
	for _, k := range reqKeys {
		fmt.Fprintf(&b, "ingest_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP ingest_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE ingest_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP ingest_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE ingest_http_request_duration_ms_count counter\n")
	latKeys := make([]latKey, 0, len(latencyMsSum))
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})
	for _, k := range latKeys {
		fmt.Fprintf(&b, "ingest_http_request_duration_ms_sum{method=%q,path=%q} %d\n", k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "ingest_http_request_duration_ms_count{method=%q,path=%q} %d\n", k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP ingest_scrape_jobs_total Total scrape jobs by source type and terminal status\n")
	b.WriteString("# TYPE ingest_scrape_jobs_total counter\n")
	jobKeys := make([]scrapeJobKey, 0, len(scrapeJobsTotal))
	for k := range scrapeJobsTotal {
		jobKeys = append(jobKeys, k)
	}
	sort.Slice(jobKeys, func(i, j int) bool {
		if jobKeys[i].SourceType != jobKeys[j].SourceType {
			return jobKeys[i].SourceType < jobKeys[j].SourceType
		}
		return jobKeys[i].Status < jobKeys[j].Status
	})
	for _, k := range jobKeys {
		fmt.Fprintf(&b, "ingest_scrape_jobs_total{source_type=%q,status=%q} %d\n", k.SourceType, k.Status, scrapeJobsTotal[k])
	}

	b.WriteString("# HELP ingest_scrape_documents_total Total documents processed by source type and outcome\n")
	b.WriteString("# TYPE ingest_scrape_documents_total counter\n")
	docKeys := make([]scrapeDocKey, 0, len(scrapeDocsTotal))
	for k := range scrapeDocsTotal {
		docKeys = append(docKeys, k)
	}
	sort.Slice(docKeys, func(i, j int) bool {
		if docKeys[i].SourceType != docKeys[j].SourceType {
			return docKeys[i].SourceType < docKeys[j].SourceType
		}
		return docKeys[i].Outcome < docKeys[j].Outcome
	})
	for _, k := range docKeys {
		fmt.Fprintf(&b, "ingest_scrape_documents_total{source_type=%q,outcome=%q} %d\n", k.SourceType, k.Outcome, scrapeDocsTotal[k])
	}

	b.WriteString("# HELP ingest_metadata_extractions_total Total metadata extractions by provider and outcome\n")
	b.WriteString("# TYPE ingest_metadata_extractions_total counter\n")
	metaKeys := make([]metadataKey, 0, len(metadataExtractTotal))
	for k := range metadataExtractTotal {
		metaKeys = append(metaKeys, k)
	}
	sort.Slice(metaKeys, func(i, j int) bool {
		if metaKeys[i].Provider != metaKeys[j].Provider {
			return metaKeys[i].Provider < metaKeys[j].Provider
		}
		return metaKeys[i].Outcome < metaKeys[j].Outcome
	})
	for _, k := range metaKeys {
		fmt.Fprintf(&b, "ingest_metadata_extractions_total{provider=%q,outcome=%q} %d\n", k.Provider, k.Outcome, metadataExtractTotal[k])
	}

	b.WriteString("# HELP ingest_embedding_queue_depth Chunks pending embedding\n")
	b.WriteString("# TYPE ingest_embedding_queue_depth gauge\n")
	fmt.Fprintf(&b, "ingest_embedding_queue_depth %d\n", embeddingQueueDepth)

	b.WriteString("# HELP ingest_embeddings_total Total chunks embedded by provider\n")
	b.WriteString("# TYPE ingest_embeddings_total counter\n")
	providers := make([]string, 0, len(embeddingsTotal))
	for p := range embeddingsTotal {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	for _, p := range providers {
		fmt.Fprintf(&b, "ingest_embeddings_total{provider=%q} %d\n", p, embeddingsTotal[p])
	}

	b.WriteString("# HELP ingest_retrieval_requests_total Total retrieval requests by mode\n")
	b.WriteString("# TYPE ingest_retrieval_requests_total counter\n")
	b.WriteString("# HELP ingest_retrieval_latency_ms_sum Total retrieval latency in milliseconds by mode\n")
	b.WriteString("# TYPE ingest_retrieval_latency_ms_sum counter\n")
	modes := make([]string, 0, len(retrievalRequestsTotal))
	for m := range retrievalRequestsTotal {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	for _, m := range modes {
		fmt.Fprintf(&b, "ingest_retrieval_requests_total{mode=%q} %d\n", m, retrievalRequestsTotal[m])
		fmt.Fprintf(&b, "ingest_retrieval_latency_ms_sum{mode=%q} %d\n", m, retrievalLatencyMsSum[m])
		fmt.Fprintf(&b, "ingest_retrieval_latency_ms_count{mode=%q} %d\n", m, retrievalLatencyMsCount[m])
	}

	b.WriteString("# HELP ingest_external_sync_total Total external data source syncs by dialect and outcome\n")
	b.WriteString("# TYPE ingest_external_sync_total counter\n")
	syncKeys := make([]syncKey, 0, len(externalSyncTotal))
	for k := range externalSyncTotal {
		syncKeys = append(syncKeys, k)
	}
	sort.Slice(syncKeys, func(i, j int) bool {
		if syncKeys[i].Dialect != syncKeys[j].Dialect {
			return syncKeys[i].Dialect < syncKeys[j].Dialect
		}
		return syncKeys[i].Outcome < syncKeys[j].Outcome
	})
	for _, k := range syncKeys {
		fmt.Fprintf(&b, "ingest_external_sync_total{dialect=%q,outcome=%q} %d\n", k.Dialect, k.Outcome, externalSyncTotal[k])
	}

	b.WriteString("# HELP ingest_retention_jobs_deleted_total Total scrape jobs purged by retention sweep\n")
	b.WriteString("# TYPE ingest_retention_jobs_deleted_total counter\n")
	fmt.Fprintf(&b, "ingest_retention_jobs_deleted_total %d\n", retentionJobsDeletedTotal)

	return b.String()
}
