package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/dispatch-service/internal/auth"
	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/service"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

func respond(c *fiber.Ctx, status int, message string, data any) error {
	body := fiber.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

func ok(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusOK, "", data)
}

func created(c *fiber.Ctx, message string, data any) error {
	return respond(c, fiber.StatusCreated, message, data)
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func currentPrincipal(c *fiber.Ctx) (domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	return service.ParseTicketID(c.Params("ticketId"))
}

// emailParam decodes an email path segment ("%40" arrives escaped from some clients).
func emailParam(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
