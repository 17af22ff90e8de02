package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/northbound-policy/ingest/internal/model"
)

type sourceRequest struct {
	Name              string   `json:"name"`
	BaseURL           string   `json:"base_url"`
	Dialect           string   `json:"dialect"`
	Keywords          []string `json:"keywords"`
	MaxDocs           int      `json:"max_docs"`
	MaxPages          int      `json:"max_pages"`
	PaginationEnabled *bool    `json:"pagination_enabled"`
	WindowSize        int      `json:"window_size"`
	Schedule          string   `json:"schedule"`
	Enabled           *bool    `json:"enabled"`
}

func (r sourceRequest) toModel() model.Source {
	src := model.Source{
		Name: r.Name, BaseURL: r.BaseURL, Dialect: model.Dialect(r.Dialect),
		Keywords: r.Keywords, MaxDocs: r.MaxDocs, MaxPages: r.MaxPages,
		WindowSize: r.WindowSize, Schedule: r.Schedule,
		PaginationEnabled: true, Enabled: true,
	}
	if r.PaginationEnabled != nil {
		src.PaginationEnabled = *r.PaginationEnabled
	}
	if r.Enabled != nil {
		src.Enabled = *r.Enabled
	}
	return src
}

type handlers struct {
	d Deps
}

func (h *handlers) createSource(c *fiber.Ctx) error {
	var req sourceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	src, err := h.d.Sources.Create(c.Context(), req.toModel())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(src)
}

func (h *handlers) updateSource(c *fiber.Ctx) error {
	var req sourceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	src := req.toModel()
	src.ID = c.Params("id")
	if err := h.d.Sources.Update(c.Context(), src); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"status": "updated"})
}

func (h *handlers) deleteSource(c *fiber.Ctx) error {
	if err := h.d.Sources.Delete(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

func (h *handlers) listSources(c *fiber.Ctx) error {
	list, err := h.d.Sources.List(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// importSources accepts a YAML body (content-type is not enforced, since
// operators script this with curl against flat files) listing sources
// under a top-level `sources:` key and creates each in order.
func (h *handlers) importSources(c *fiber.Ctx) error {
	created, err := h.d.Sources.Import(c.Context(), c.Body())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"created": created, "count": len(created)})
}
