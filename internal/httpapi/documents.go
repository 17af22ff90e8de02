package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/northbound-policy/ingest/internal/retrieval"
)

func (h *handlers) embedDocuments(c *fiber.Ctx) error {
	var req struct {
		DocIDs []string `json:"doc_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if len(req.DocIDs) == 0 {
		return badRequest(c, "doc_ids is required")
	}

	n, err := h.d.Retriever.EmbedDocuments(c.Context(), req.DocIDs)
	if err != nil {
		return writeError(c, err)
	}
	estimateSecs := len(req.DocIDs) * 2
	return c.JSON(fiber.Map{"status": "completed", "embedded": n, "estimated_time": estimateSecs})
}

func (h *handlers) documentStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	doc, err := h.d.Store.GetDocument(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	user := userFromCtx(c)
	if !retrieval.CanAccess(doc, user) {
		return forbidden(c, "restricted to institution members")
	}

	meta, err := h.d.Store.GetDocumentMetadata(c.Context(), id)
	resp := fiber.Map{
		"doc_id":          doc.ID,
		"filename":        doc.CanonicalFilename,
		"approval_status": doc.ApprovalStatus,
		"is_scanned":      doc.IsScanned,
		"metadata_status": "missing",
		"embedding_status": "not_embedded",
	}
	if err == nil {
		resp["metadata_status"] = meta.MetadataStatus
		resp["embedding_status"] = meta.EmbeddingStatus
		resp["title"] = meta.Title
		resp["department"] = meta.Department
	}
	return c.JSON(resp)
}

func (h *handlers) browseMetadata(c *fiber.Ctx) error {
	department := c.Query("department")
	documentType := c.Query("document_type")
	year, _ := strconv.Atoi(c.Query("year", "0"))
	page, _ := strconv.Atoi(c.Query("page", "1"))

	list, err := h.d.Store.ListMetadataByFilter(c.Context(), department, documentType, year, page, 20)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"page": page, "metadata": list})
}

func (h *handlers) compareDocuments(c *fiber.Ctx) error {
	var req struct {
		DocumentIDs       []string `json:"document_ids"`
		ComparisonAspects []string `json:"comparison_aspects"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if len(req.DocumentIDs) < 2 || len(req.DocumentIDs) > 5 {
		return badRequest(c, "document_ids must name between 2 and 5 documents")
	}

	user := userFromCtx(c)
	docs, err := h.loadComparableDocuments(c.Context(), req.DocumentIDs, user)
	if err != nil {
		return writeError(c, err)
	}

	matrix, err := compareDocuments(c.Context(), h.d.ChatClient, docs, req.ComparisonAspects)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(matrix)
}

func (h *handlers) compareConflicts(c *fiber.Ctx) error {
	var req struct {
		DocumentIDs []string `json:"document_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if len(req.DocumentIDs) < 2 {
		return badRequest(c, "document_ids must name at least 2 documents")
	}

	user := userFromCtx(c)
	docs, err := h.loadComparableDocuments(c.Context(), req.DocumentIDs, user)
	if err != nil {
		return writeError(c, err)
	}

	conflicts, err := findConflicts(c.Context(), h.d.ChatClient, docs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"conflicts": conflicts})
}
