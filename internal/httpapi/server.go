// Package httpapi exposes the ingestion pipeline's external HTTP surface
// over fiber, the same framework the rest of this codebase's lineage uses
// for its API layer.
package httpapi

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/northbound-policy/ingest/internal/config"
	"github.com/northbound-policy/ingest/internal/external"
	"github.com/northbound-policy/ingest/internal/llm"
	"github.com/northbound-policy/ingest/internal/metrics"
	"github.com/northbound-policy/ingest/internal/orchestrator"
	"github.com/northbound-policy/ingest/internal/retrieval"
	"github.com/northbound-policy/ingest/internal/sources"
	"github.com/northbound-policy/ingest/internal/store"
)

// Server wires every pipeline component into a single fiber app.
type Server struct {
	app    *fiber.App
	config *config.Config
	log    *slog.Logger
}

// Deps collects every collaborator the HTTP surface delegates to.
type Deps struct {
	Config       *config.Config
	Store        *store.Store
	Sources      *sources.Registry
	Orchestrator *orchestrator.Orchestrator
	Retriever    *retrieval.Retriever
	External     *external.Syncer
	ChatClient   llm.Client
	Log          *slog.Logger
}

// NewServer builds the fiber app and registers every route the
// ingestion pipeline exposes.
func NewServer(d Deps) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		metrics.RecordRequest(c.Method(), c.Route().Path, status, time.Since(start).Milliseconds())
		if d.Log != nil {
			d.Log.Info("request", "request_id", reqID, "method", c.Method(), "path", c.Path(),
				"status", status, "latency_ms", time.Since(start).Milliseconds())
		}
		return err
	})
	app.Use(userContextMiddleware)

	h := &handlers{d: d}

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	ws := app.Group("/web-scraping")
	ws.Post("/sources", h.createSource)
	ws.Post("/sources/import", h.importSources)
	ws.Put("/sources/:id", h.updateSource)
	ws.Delete("/sources/:id", h.deleteSource)
	ws.Get("/sources", h.listSources)
	ws.Post("/sources/:id/scrape", h.startScrape)
	ws.Post("/stop", h.stopScrape)
	ws.Get("/active-jobs", h.activeJobs)
	ws.Get("/scraped-documents", h.browseDocuments)

	docs := app.Group("/documents")
	docs.Post("/embed", h.embedDocuments)
	docs.Get("/:id/status", h.documentStatus)
	docs.Get("/browse/metadata", h.browseMetadata)
	docs.Post("/compare", h.compareDocuments)
	docs.Post("/compare/conflicts", h.compareConflicts)

	app.Post("/chat/query", h.chatQuery)

	ds := app.Group("/data-sources")
	ds.Post("/", h.createDataSource)
	ds.Post("/:id/sync", h.syncDataSource)

	return &Server{app: app, config: d.Config, log: d.Log}
}

// Listen starts the HTTP listener; it blocks until the listener exits.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
