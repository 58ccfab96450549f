package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, body io.Reader) ErrorResponse {
	t.Helper()
	var errResp ErrorResponse
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &errResp))
	return errResp
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler func(*fiber.Ctx) error
		status  int
		title   string
	}{
		{"bad request", func(c *fiber.Ctx) error { return BadRequest(c, "m") }, 400, "Bad Request"},
		{"unauthorized", func(c *fiber.Ctx) error { return Unauthorized(c, "m") }, 401, "Unauthorized"},
		{"forbidden", func(c *fiber.Ctx) error { return Forbidden(c, "m") }, 403, "Forbidden"},
		{"not found", func(c *fiber.Ctx) error { return NotFound(c, "m") }, 404, "Not Found"},
		{"conflict", func(c *fiber.Ctx) error { return Conflict(c, "m") }, 409, "Conflict"},
		{"unprocessable", func(c *fiber.Ctx) error { return UnprocessableEntity(c, "m") }, 422, "Unprocessable Entity"},
		{"internal", func(c *fiber.Ctx) error { return InternalServerError(c, "m") }, 500, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(RequestLogging(logger.NewNop()))
			app.Get("/test", tt.handler)

			resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			errResp := decodeError(t, resp.Body)
			assert.Equal(t, tt.title, errResp.Error)
			assert.Equal(t, "m", errResp.Message)
			assert.NotEmpty(t, errResp.RequestID)
			assert.Equal(t, "/test", errResp.Path)
			assert.False(t, errResp.Timestamp.IsZero())
		})
	}
}

func TestErrorWithDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/test", func(c *fiber.Ctx) error {
		return ErrorWithDetails(c, fiber.StatusBadRequest, "unknown scope", fiber.Map{"sector_ids": []string{"s-9"}})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	errResp := decodeError(t, resp.Body)
	assert.Equal(t, map[string]any{"sector_ids": []any{"s-9"}}, errResp.Details)
	assert.Empty(t, errResp.RequestID)
}
