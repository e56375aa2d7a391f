package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/auth"
	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/observability"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

func newTestApp(metrics *observability.Metrics) *fiber.App {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0, "")
	return app
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestErrorEnvelopeForDomainErrors(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newTestApp(metrics)
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return apperrors.NewConflict("Task already accepted by another engineer", map[string]any{"ticketId": 7})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/conflict", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Task already accepted by another engineer", body["message"])
	assert.Equal(t, apperrors.CodeConflict, body["code"])
	assert.Equal(t, map[string]any{"ticketId": float64(7)}, body["details"])
	assert.Equal(t, int64(1), metrics.Snapshot().Errors["/conflict|GET|"+apperrors.CodeConflict])
}

func TestErrorEnvelopeRecoversPanics(t *testing.T) {
	app := newTestApp(nil)
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("nil map")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := decode(t, resp.Body)
	assert.Equal(t, apperrors.CodeInternal, body["code"])
	assert.NotContains(t, body, "details")
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	app := newTestApp(nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Route not found", decode(t, resp.Body)["message"])
}

func TestRequireRoleRendersForbidden(t *testing.T) {
	app := newTestApp(nil)
	asEngineer := func(c *fiber.Ctx) error {
		auth.WithPrincipal(c, domain.EngineerPrincipal{EmailAddr: "eng@x.com"})
		return c.Next()
	}
	app.Get("/admin", asEngineer, auth.RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/anyone", asEngineer, auth.RequireRole(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodeForbidden, decode(t, resp.Body)["code"])

	resp, err = app.Test(httptest.NewRequest("GET", "/anyone", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(nil)
	app.Get("/api/tasks", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("OPTIONS", "/api/tasks", nil)
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")
}
