package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/northbound-policy/ingest/internal/apperr"
)

// detailResponse is the JSON error body every handler returns: a 4xx/5xx
// status paired with a {detail} string.
type detailResponse struct {
	Detail string `json:"detail"`
}

// writeError renders err as the appropriate status code and {detail}
// body. AccessDenied reasons are surfaced verbatim so handlers can supply
// the specific 403 reasons ("elevated clearance required",
// "limited access permissions", "restricted to institution members").
func writeError(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(detailResponse{Detail: err.Error()})
	}
	detail := appErr.Reason
	if detail == "" {
		detail = appErr.Error()
	}
	return c.Status(apperr.HTTPStatus(appErr.Kind)).JSON(detailResponse{Detail: detail})
}

func forbidden(c *fiber.Ctx, reason string) error {
	return c.Status(fiber.StatusForbidden).JSON(detailResponse{Detail: reason})
}

func badRequest(c *fiber.Ctx, reason string) error {
	return c.Status(fiber.StatusBadRequest).JSON(detailResponse{Detail: reason})
}
