// Package orchestrator drives per-source scrape jobs: pagination, link
// discovery, download, extraction, metadata, and upload, with cooperative
// cancellation and crash-safe persistence at every stage.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/blobstore"
	"github.com/northbound-policy/ingest/internal/dialect"
	"github.com/northbound-policy/ingest/internal/downloader"
	"github.com/northbound-policy/ingest/internal/extract"
	"github.com/northbound-policy/ingest/internal/logging"
	"github.com/northbound-policy/ingest/internal/metadata"
	"github.com/northbound-policy/ingest/internal/metrics"
	"github.com/northbound-policy/ingest/internal/model"
	"github.com/northbound-policy/ingest/internal/sources"
	"github.com/northbound-policy/ingest/internal/store"
)

// Config holds the design-floor rate limits and retention policy flags.
type Config struct {
	InterPageDelay    time.Duration
	InterDocDelay     time.Duration
	DeleteWithoutMeta bool
}

// DefaultConfig returns the conservative default floors.
func DefaultConfig() Config {
	return Config{InterPageDelay: time.Second, InterDocDelay: 200 * time.Millisecond, DeleteWithoutMeta: false}
}

// Overrides are the per-invocation knobs accepted by start().
type Overrides struct {
	MaxDocuments      *int
	PaginationEnabled *bool
	MaxPages          *int
	ForceFullScan     bool
}

// Orchestrator owns the process-local map of in-flight job cancellation
// flags. Inject this component once at startup rather than reaching for a
// package-level singleton.
type Orchestrator struct {
	cfg        Config
	sources    *sources.Registry
	store      *store.Store
	downloader *downloader.Downloader
	extractor  *extract.Extractor
	metadata   *metadata.Extractor
	blobs      *blobstore.Store
	log        *slog.Logger
	renderer   *downloader.JSRenderer
	progress   *ProgressPublisher

	mu    sync.Mutex
	stops map[string]*atomic.Bool
}

// New wires an Orchestrator over its collaborators.
func New(cfg Config, reg *sources.Registry, st *store.Store, dl *downloader.Downloader, ex *extract.Extractor, md *metadata.Extractor, blobs *blobstore.Store, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg: cfg, sources: reg, store: st, downloader: dl, extractor: ex,
		metadata: md, blobs: blobs, log: log, stops: make(map[string]*atomic.Bool),
	}
}

// WithJSRenderer attaches a headless-browser fallback used when a listing
// page's static HTML yields no links, returning the Orchestrator for
// chaining at construction time.
func (o *Orchestrator) WithJSRenderer(r *downloader.JSRenderer) *Orchestrator {
	o.renderer = r
	return o
}

// Start creates a ScrapeJob and launches its pipeline in a background
// goroutine, returning immediately with the job id.
func (o *Orchestrator) Start(ctx context.Context, sourceID string, overrides Overrides) (string, error) {
	src, err := o.sources.Get(ctx, sourceID)
	if err != nil {
		return "", err
	}
	if !src.Enabled {
		return "", apperr.New(apperr.KindInputInvalid, "source is disabled")
	}

	job, err := o.store.CreateScrapeJob(ctx, sourceID)
	if err != nil {
		return "", err
	}

	flag := &atomic.Bool{}
	o.mu.Lock()
	o.stops[job.JobID] = flag
	o.mu.Unlock()

	go o.run(context.Background(), job.JobID, src, overrides, flag)

	return job.JobID, nil
}

// Stop requests cooperative cancellation of a running job. The job
// observes the flag at the next checkpoint and leaves already-persisted
// documents intact.
func (o *Orchestrator) Stop(ctx context.Context, jobID string) error {
	if err := o.store.RequestStop(ctx, jobID); err != nil {
		return err
	}
	o.mu.Lock()
	flag, ok := o.stops[jobID]
	o.mu.Unlock()
	if ok {
		flag.Store(true)
	}
	return nil
}

// Status returns the persisted view of a job.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (model.ScrapeJob, error) {
	return o.store.GetScrapeJob(ctx, jobID)
}

// ActiveJobs returns every non-terminal job across all sources.
func (o *Orchestrator) ActiveJobs(ctx context.Context) ([]model.ScrapeJob, error) {
	return o.store.ListActiveScrapeJobs(ctx)
}

func (o *Orchestrator) forget(jobID string) {
	o.mu.Lock()
	delete(o.stops, jobID)
	o.mu.Unlock()
}

// run executes the full sliding-window paginated crawl for one job. It
// never panics the process: a panic inside the job is recovered and the job
// is finished as failed rather than propagating.
func (o *Orchestrator) run(ctx context.Context, jobID string, src model.Source, ov Overrides, stopFlag *atomic.Bool) {
	defer o.forget(jobID)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("scrape job panicked, marking failed", "job_id", jobID, "panic", r)
			if err := o.store.FinishScrapeJob(ctx, jobID, model.JobFailed, fmt.Sprint(r)); err != nil {
				o.log.Error("failed to finalize scrape job", "job_id", jobID, "err", err)
			}
			metrics.RecordScrapeJob(string(src.Dialect), string(model.JobFailed), time.Since(start).Milliseconds())
		}
	}()

	maxDocs, maxPages, windowSize := resolveParams(src, ov)

	scraper := dialect.For(src.Dialect, src.Keywords)

	stats := model.JobStats{}
	pageURL := src.BaseURL
	status := model.JobSucceeded
	var jobErr string

pageLoop:
	for stats.PagesScraped < int64(maxPages) {
		if stopFlag.Load() { // checkpoint (i): before starting each pagination page
			status = model.JobStopped
			break
		}

		page, err := o.downloader.Fetch(ctx, pageURL, src.BaseURL)
		if err != nil {
			o.log.Warn("page fetch failed, ending crawl at this page", "job_id", jobID, "page_url", pageURL, "err", err)
			break
		}

		links, err := scraper.DiscoverLinks(string(page.Bytes), pageURL)
		if err != nil {
			o.log.Warn("link discovery failed, continuing crawl", "job_id", jobID, "page_url", pageURL, "err", err)
		}
		if len(links) == 0 && o.renderer != nil {
			rendered, rErr := o.renderer.Render(ctx, pageURL)
			if rErr != nil {
				o.log.Warn("js render fallback failed, continuing crawl", "job_id", jobID, "page_url", pageURL, "err", rErr)
			} else if jsLinks, jsErr := scraper.DiscoverLinks(rendered, pageURL); jsErr == nil && len(jsLinks) > 0 {
				o.log.Info("js render fallback found links a static parse missed", "job_id", jobID, "page_url", pageURL, "count", len(jsLinks))
				links = jsLinks
			}
		}

		pageNew := 0
		for _, link := range links {
			if stats.New+stats.Unchanged >= int64(maxDocs) {
				break pageLoop
			}
			if stopFlag.Load() { // checkpoint (ii): before fetching each document
				status = model.JobStopped
				break pageLoop
			}

			outcome := o.processDocument(ctx, jobID, src, link, stopFlag)
			stats.Discovered++
			switch outcome {
			case outcomeNew:
				stats.New++
				pageNew++
			case outcomeUnchanged:
				stats.Unchanged++
			case outcomeFailed:
				stats.FailedMetadata++
			}
			metrics.RecordScrapeDocument(string(src.Dialect), outcome.String())

			_ = o.store.UpdateScrapeJobStats(ctx, jobID, stats)
			o.progress.publish(ctx, jobID, model.JobRunning, stats)
			time.Sleep(o.cfg.InterDocDelay)
		}

		stats.PagesScraped++
		next, ok := scraper.NextPage(string(page.Bytes), pageURL)
		if !ok {
			break
		}
		if !ov.ForceFullScan && stats.PagesScraped >= int64(windowSize) && pageNew == 0 {
			break
		}
		if stats.New+stats.Unchanged >= int64(maxDocs) {
			break
		}
		pageURL = next
		time.Sleep(o.cfg.InterPageDelay)
	}

	_ = o.store.UpdateScrapeJobStats(ctx, jobID, stats)
	if err := o.store.FinishScrapeJob(ctx, jobID, status, jobErr); err != nil {
		o.log.Error("failed to finalize scrape job", "job_id", jobID, "err", err)
	}
	o.progress.publish(ctx, jobID, status, stats)
	_ = o.store.RecordSourceScrapeStats(ctx, src.ID, stats.New, stats.Unchanged, stats.FailedMetadata)

	metrics.RecordScrapeJob(string(src.Dialect), string(status), time.Since(start).Milliseconds())
	o.log.Info("scrape job finished", "job_id", jobID, "source_id", src.ID, "status", status,
		"new", stats.New, "unchanged", stats.Unchanged, "failed", stats.FailedMetadata, "pages", stats.PagesScraped)
}

type docOutcome int

const (
	outcomeFailed docOutcome = iota
	outcomeNew
	outcomeUnchanged
)

func (o docOutcome) String() string {
	switch o {
	case outcomeNew:
		return "new"
	case outcomeUnchanged:
		return "duplicate"
	default:
		return "failed"
	}
}

// processDocument runs the ordered per-document pipeline: conditional
// pre-check, download, extract, upload, persist. A prior record for the
// same source_url with a stored ETag/Last-Modified is checked with a HEAD
// request first, so an unchanged upstream document is skipped without a
// full GET; the post-download content-hash check remains as a fallback
// for servers that omit conditional validators. It never aborts the job
// on a single document's failure.
func (o *Orchestrator) processDocument(ctx context.Context, jobID string, src model.Source, link dialect.Link, stopFlag *atomic.Bool) docOutcome {
	if prior, found, err := o.store.FindDocumentBySourceURL(ctx, src.ID, link.URL); err == nil && found && (prior.ETag != "" || prior.LastModified != "") {
		if head, headErr := o.downloader.Head(ctx, link.URL); headErr == nil {
			if (head.ETag != "" && head.ETag == prior.ETag) || (head.ETag == "" && head.LastModified != "" && head.LastModified == prior.LastModified) {
				o.log.Debug("document unchanged per conditional HEAD, skipping full download", "job_id", jobID, "doc_id", prior.ID, "url", link.URL)
				return outcomeUnchanged
			}
		}
	}

	dl, err := o.downloader.Fetch(ctx, link.URL, src.BaseURL)
	if err != nil {
		o.log.Warn("document download failed after retries", "job_id", jobID, "url", link.URL, "title", logging.Safe(link.Title), "err", err)
		return outcomeFailed
	}

	hash := sha256Hex(dl.Bytes)
	if existing, found, err := o.store.FindDocumentByContentHash(ctx, src.ID, hash); err == nil && found {
		o.log.Debug("document unchanged", "job_id", jobID, "doc_id", existing.ID, "url", link.URL)
		return outcomeUnchanged
	}

	if stopFlag.Load() { // checkpoint (iii): between processing stages
		return outcomeFailed
	}

	fileType := link.FileType
	if fileType == "" {
		fileType = dl.ContentType
	}
	result, extractErr := o.extractor.Extract(ctx, dl.Bytes, fileType)
	if extractErr != nil {
		o.log.Warn("extraction failed, keeping document with empty text", "job_id", jobID, "url", link.URL, "err", extractErr)
	}

	if stopFlag.Load() {
		return outcomeFailed
	}

	now := time.Now().UTC()
	canonical := dialect.SanitizeFilename(link.Title, fileType, now)

	blobURL, err := o.blobs.Upload(ctx, canonical, dl.Bytes, dl.ContentType)
	if err != nil {
		o.log.Warn("blob upload failed", "job_id", jobID, "url", link.URL, "err", err)
		return outcomeFailed
	}

	textRef := canonical + ".txt"
	if result.Text != "" {
		if _, err := o.blobs.Upload(ctx, textRef, []byte(result.Text), "text/plain; charset=utf-8"); err != nil {
			o.log.Warn("extracted text upload failed", "job_id", jobID, "url", link.URL, "err", err)
		}
	}

	if stopFlag.Load() {
		return outcomeFailed
	}

	doc, err := o.store.CreateDocument(ctx, model.DocumentRecord{
		SourceURL: link.URL, CanonicalFilename: canonical, FileType: fileType,
		BlobURL: blobURL, ContentHash: hash, SourceID: src.ID,
		Visibility: model.VisibilityPublic, ApprovalStatus: model.ApprovalPending,
		IsScanned: result.IsScanned, ExtractedTextRef: textRef,
		ETag: dl.ETag, LastModified: dl.LastModified,
	})
	if err != nil {
		o.log.Warn("document persistence failed", "job_id", jobID, "url", link.URL, "err", err)
		_ = o.blobs.Delete(ctx, canonical)
		_ = o.blobs.Delete(ctx, textRef)
		return outcomeFailed
	}

	md, mdErr := o.metadata.Extract(ctx, doc.ID, result.Text)
	provider := "primary"
	if mdErr != nil && apperr.Is(mdErr, apperr.KindMetadataFailed) {
		if o.cfg.DeleteWithoutMeta {
			metrics.RecordMetadataExtraction(provider, "failed")
			_ = o.store.DeleteDocument(ctx, doc.ID)
			_ = o.blobs.Delete(ctx, canonical)
			_ = o.blobs.Delete(ctx, textRef)
			return outcomeFailed
		}
		md.MetadataStatus = model.MetadataFailed
		metrics.RecordMetadataExtraction(provider, "failed")
	} else {
		metrics.RecordMetadataExtraction(provider, "success")
	}
	md.DocID = doc.ID
	if md.MetadataStatus == "" {
		md.MetadataStatus = model.MetadataReady
	}
	md.EmbeddingStatus = model.EmbeddingNotEmbedded

	if err := o.store.UpsertDocumentMetadata(ctx, md); err != nil {
		o.log.Warn("metadata persistence failed", "job_id", jobID, "doc_id", doc.ID, "err", err)
	}

	if md.MetadataStatus == model.MetadataFailed {
		return outcomeFailed
	}
	return outcomeNew
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// resolveParams merges per-invocation overrides onto a source's stored
// policy, applying the window-size default and the pagination-disabled
// single-page clamp.
func resolveParams(src model.Source, ov Overrides) (maxDocs, maxPages, windowSize int) {
	maxDocs = src.MaxDocs
	if ov.MaxDocuments != nil {
		maxDocs = *ov.MaxDocuments
	}
	maxPages = src.MaxPages
	if ov.MaxPages != nil {
		maxPages = *ov.MaxPages
	}
	paginationEnabled := src.PaginationEnabled
	if ov.PaginationEnabled != nil {
		paginationEnabled = *ov.PaginationEnabled
	}
	windowSize = src.WindowSize
	if windowSize <= 0 {
		windowSize = 3
	}
	if !paginationEnabled {
		maxPages = 1
	}
	return maxDocs, maxPages, windowSize
}
