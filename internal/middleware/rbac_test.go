package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-activity-timeline/internal/utils"
)

func newRoleApp(role interface{}, allowed ...string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != nil {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Use(RequireRole(allowed...))
	app.Get("/timeline", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func roleStatus(t *testing.T, app *fiber.App) (int, utils.APIResponse) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/timeline", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body utils.APIResponse
	if resp.StatusCode != fiber.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestRequireRoleAllowsConfiguredRoles(t *testing.T) {
	for _, role := range []string{"admin", " Auditor "} {
		status, _ := roleStatus(t, newRoleApp(role, "admin", "auditor"))
		require.Equal(t, fiber.StatusOK, status, role)
	}
}

func TestRequireRoleRejectsOtherRoles(t *testing.T) {
	status, body := roleStatus(t, newRoleApp("viewer", "admin", "auditor"))
	require.Equal(t, fiber.StatusForbidden, status)
	require.False(t, body.Success)
	require.Equal(t, "insufficient permissions", body.Message)
}

func TestRequireRoleRejectsTokensWithoutRole(t *testing.T) {
	for _, role := range []interface{}{nil, "  "} {
		status, body := roleStatus(t, newRoleApp(role, "admin", "auditor"))
		require.Equal(t, fiber.StatusForbidden, status)
		require.Equal(t, "role missing from token", body.Message)
	}
}

func TestRequireRoleWithoutListAcceptsAnyRole(t *testing.T) {
	status, _ := roleStatus(t, newRoleApp("viewer"))
	require.Equal(t, fiber.StatusOK, status)

	status, _ = roleStatus(t, newRoleApp(nil))
	require.Equal(t, fiber.StatusForbidden, status)
}
