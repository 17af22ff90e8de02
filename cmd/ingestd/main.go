package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/northbound-policy/ingest/internal/blobstore"
	"github.com/northbound-policy/ingest/internal/config"
	"github.com/northbound-policy/ingest/internal/db"
	"github.com/northbound-policy/ingest/internal/downloader"
	"github.com/northbound-policy/ingest/internal/embedder"
	"github.com/northbound-policy/ingest/internal/extract"
	"github.com/northbound-policy/ingest/internal/external"
	"github.com/northbound-policy/ingest/internal/httpapi"
	"github.com/northbound-policy/ingest/internal/llm"
	"github.com/northbound-policy/ingest/internal/logging"
	"github.com/northbound-policy/ingest/internal/metadata"
	"github.com/northbound-policy/ingest/internal/migrate"
	"github.com/northbound-policy/ingest/internal/orchestrator"
	"github.com/northbound-policy/ingest/internal/retrieval"
	"github.com/northbound-policy/ingest/internal/sources"
	"github.com/northbound-policy/ingest/internal/store"
	"github.com/northbound-policy/ingest/internal/vectorstore"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.New(logging.Options{Level: slog.LevelInfo, JSON: true})

	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	queries, err := db.New(ctx, cfg.Database.DSN)
	cancel()
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}

	st := store.New(queries)
	registry := sources.New(st)
	dl := downloader.New(downloader.Config{
		Attempts:       3,
		RequestTimeout: time.Duration(cfg.Scrape.RequestTimeoutSecs) * time.Second,
		MaxRedirects:   cfg.Scrape.MaxRedirects,
		MaxBytes:       cfg.Scrape.MaxDownloadBytes,
		RespectRobots:  cfg.Scrape.RespectRobots,
		RatePerSecond:  cfg.Scrape.RatePerSecond,
	})
	extractor := extract.New(nil)

	metadataPrimary, err := llm.FromConfig(cfg, cfg.LLM.MetadataPrimary)
	if err != nil {
		log.Fatalf("construct metadata primary LLM client: %v", err)
	}
	var metadataFallback llm.Client
	if cfg.LLM.MetadataFallback != "" {
		metadataFallback, err = llm.FromConfig(cfg, cfg.LLM.MetadataFallback)
		if err != nil {
			logger.Warn("metadata fallback provider unavailable", "provider", cfg.LLM.MetadataFallback, "error", err)
		}
	}
	metadataExtractor := metadata.New(metadataPrimary, metadataFallback, metadata.DefaultThresholds())

	blobCtx, blobCancel := context.WithTimeout(context.Background(), 15*time.Second)
	blobs, err := blobstore.New(blobCtx, blobstore.Config{
		Endpoint:  cfg.ObjectStore.Endpoint,
		Bucket:    cfg.ObjectStore.Bucket,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		UseSSL:    cfg.ObjectStore.UseSSL,
		PublicURL: cfg.ObjectStore.PublicURL,
	})
	blobCancel()
	if err != nil {
		log.Fatalf("connect to object store: %v", err)
	}

	embed, err := embedder.New(embedder.Config{
		Provider:     cfg.Embedding.Provider,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Embedding.APIKey,
		BaseURL:      cfg.Embedding.BaseURL,
		CanonicalDim: cfg.Embedding.CanonicalDim,
	})
	if err != nil {
		log.Fatalf("construct embedder: %v", err)
	}

	vecCtx, vecCancel := context.WithTimeout(context.Background(), 15*time.Second)
	vectors, err := vectorstore.New(vecCtx, vectorstore.Config{
		Addr:       cfg.VectorStore.Addr,
		Collection: cfg.VectorStore.Collection,
		Dimension:  cfg.Embedding.CanonicalDim,
	})
	vecCancel()
	if err != nil {
		log.Fatalf("connect to vector store: %v", err)
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.InterPageDelay = time.Duration(cfg.Scrape.InterPageDelayMs) * time.Millisecond
	orchCfg.InterDocDelay = time.Duration(cfg.Scrape.InterDocDelayMs) * time.Millisecond
	orchCfg.DeleteWithoutMeta = cfg.Scrape.DeleteWithoutMeta
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unavailable, job progress broadcast disabled", "addr", cfg.Redis.Addr, "error", err)
	}

	orch := orchestrator.New(orchCfg, registry, st, dl, extractor, metadataExtractor, blobs, logger).
		WithJSRenderer(downloader.NewJSRenderer(time.Duration(cfg.Scrape.RequestTimeoutSecs) * time.Second)).
		WithProgressPublisher(orchestrator.NewProgressPublisher(rdb, logger))

	var reranker llm.Client
	if cfg.LLM.RerankerProvider != "" {
		reranker, err = llm.FromConfig(cfg, cfg.LLM.RerankerProvider)
		if err != nil {
			logger.Warn("reranker provider unavailable, falling back to rank-based scoring", "provider", cfg.LLM.RerankerProvider, "error", err)
		}
	}
	retriever := retrieval.New(retrieval.DefaultConfig(), st, vectors, embed, blobs, reranker, logger)

	syncer, err := external.New(st, blobs, cfg.Crypto.KeyHex, logger)
	if err != nil {
		log.Fatalf("construct external data source syncer: %v", err)
	}

	var chatClient llm.Client
	if cfg.LLM.ChatProvider != "" {
		chatClient, err = llm.FromConfig(cfg, cfg.LLM.ChatProvider)
		if err != nil {
			logger.Warn("chat provider unavailable, compare/conflict endpoints will fail", "provider", cfg.LLM.ChatProvider, "error", err)
		}
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Config:       cfg,
		Store:        st,
		Sources:      registry,
		Orchestrator: orch,
		Retriever:    retriever,
		External:     syncer,
		ChatClient:   chatClient,
		Log:          logger,
	})

	if cfg.Retention.Enabled {
		sweepCtx, sweepCancel := context.WithCancel(context.Background())
		defer sweepCancel()
		go orch.RunRetentionSweep(sweepCtx, orchestrator.RetentionConfig{
			Enabled:       cfg.Retention.Enabled,
			JobRetention:  time.Duration(cfg.Retention.JobRetentionDays) * 24 * time.Hour,
			SweepInterval: time.Duration(cfg.Retention.SweepIntervalMins) * time.Minute,
		})
	}

	go func() {
		if err := srv.Listen(); err != nil {
			logger.Error("http listener stopped", "error", err)
		}
	}()
	logger.Info("ingestd started", "host", cfg.Server.Host, "port", cfg.Server.Port)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
