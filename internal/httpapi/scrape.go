package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/northbound-policy/ingest/internal/orchestrator"
	"github.com/northbound-policy/ingest/internal/retrieval"
)

type scrapeRequest struct {
	MaxDocuments      *int  `json:"max_documents"`
	PaginationEnabled *bool `json:"pagination_enabled"`
	MaxPages          *int  `json:"max_pages"`
	ForceFullScan     bool  `json:"force_full_scan"`
}

func (h *handlers) startScrape(c *fiber.Ctx) error {
	var req scrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	ov := orchestrator.Overrides{
		MaxDocuments:      req.MaxDocuments,
		PaginationEnabled: req.PaginationEnabled,
		MaxPages:          req.MaxPages,
		ForceFullScan:     req.ForceFullScan,
	}
	jobID, err := h.d.Orchestrator.Start(c.Context(), c.Params("id"), ov)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID})
}

func (h *handlers) stopScrape(c *fiber.Ctx) error {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if req.JobID == "" {
		return badRequest(c, "job_id is required")
	}
	if err := h.d.Orchestrator.Stop(c.Context(), req.JobID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"status": "stopping"})
}

func (h *handlers) activeJobs(c *fiber.Ctx) error {
	jobs, err := h.d.Orchestrator.ActiveJobs(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(jobs)
}

func (h *handlers) browseDocuments(c *fiber.Ctx) error {
	sourceID := c.Query("source_id")
	if sourceID == "" {
		return badRequest(c, "source_id is required")
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	docs, err := h.d.Store.ListDocumentsBySource(c.Context(), sourceID, page, 20)
	if err != nil {
		return writeError(c, err)
	}
	user := userFromCtx(c)
	visible := make([]any, 0, len(docs))
	for _, doc := range docs {
		if retrieval.CanAccess(doc, user) {
			visible = append(visible, doc)
		}
	}
	return c.JSON(fiber.Map{"page": page, "documents": visible})
}
