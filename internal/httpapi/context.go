package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/northbound-policy/ingest/internal/model"
)

// userContextMiddleware derives the caller's model.UserContext from the
// headers an upstream auth gateway is expected to attach; this layer only
// trusts what it is handed and never authenticates the caller itself.
func userContextMiddleware(c *fiber.Ctx) error {
	user := model.UserContext{
		UserID:        c.Get("X-User-Id"),
		Role:          model.Role(c.Get("X-User-Role", string(model.RoleStudent))),
		InstitutionID: c.Get("X-Institution-Id"),
	}
	c.Locals("user", user)
	return c.Next()
}

func userFromCtx(c *fiber.Ctx) model.UserContext {
	if u, ok := c.Locals("user").(model.UserContext); ok {
		return u
	}
	return model.UserContext{Role: model.RoleStudent}
}
