package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWTApp(t *testing.T, svc *auth.JWTService) (*fiber.App, *string) {
	t.Helper()
	var actor string
	app := fiber.New()
	app.Use(JWTAuth(svc, []string{"/health", "/health/"}))
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/audits", func(c *fiber.Ctx) error {
		actor = GetActorID(c)
		return c.SendString("ok")
	})
	app.Post("/admin/backup", RequireRole("admin"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app, &actor
}

func TestJWTAuth(t *testing.T) {
	svc := auth.NewJWTService("test-jwt-secret-0123456789", 15*time.Minute, "auditledger")
	collectorToken, err := svc.GenerateToken("collector-1", "ana", []string{"collector"})
	require.NoError(t, err)
	adminToken, err := svc.GenerateToken("admin-1", "root", []string{"admin"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		status int
	}{
		{"public prefix", "GET", "/health/live", "", 200},
		{"missing header", "GET", "/audits", "", 401},
		{"wrong scheme", "GET", "/audits", "Basic abc", 401},
		{"garbage token", "GET", "/audits", "Bearer abc", 401},
		{"valid token", "GET", "/audits", "Bearer " + collectorToken, 200},
		{"lowercase scheme", "GET", "/audits", "bearer " + collectorToken, 200},
		{"missing role", "POST", "/admin/backup", "Bearer " + collectorToken, 403},
		{"admin role", "POST", "/admin/backup", "Bearer " + adminToken, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newJWTApp(t, svc)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestJWTAuth_SetsActor(t *testing.T) {
	svc := auth.NewJWTService("test-jwt-secret-0123456789", 15*time.Minute, "auditledger")
	token, err := svc.GenerateToken("collector-1", "ana", nil)
	require.NoError(t, err)

	app, actor := newJWTApp(t, svc)
	req := httptest.NewRequest("GET", "/audits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "collector-1", *actor)
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	svc := auth.NewJWTService("test-jwt-secret-0123456789", 15*time.Minute, "auditledger")
	expired, err := auth.NewJWTService("test-jwt-secret-0123456789", -time.Minute, "auditledger").GenerateToken("u", "", nil)
	require.NoError(t, err)

	app, _ := newJWTApp(t, svc)
	req := httptest.NewRequest("GET", "/audits", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token expired", decodeError(t, resp.Body).Message)
}

func TestHeaderIdentity(t *testing.T) {
	tests := []struct {
		name    string
		require bool
		method  string
		actor   string
		status  int
		want    string
	}{
		{"actor header", true, "POST", "collector-9", 200, "collector-9"},
		{"required on writes", true, "POST", "", 401, ""},
		{"reads stay open", true, "GET", "", 200, ""},
		{"optional", false, "PUT", "", 200, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			app := fiber.New()
			app.Use(HeaderIdentity(tt.require, nil))
			app.All("/audits", func(c *fiber.Ctx) error {
				got = GetActorID(c)
				return c.SendString("ok")
			})

			req := httptest.NewRequest(tt.method, "/audits", nil)
			if tt.actor != "" {
				req.Header.Set(ActorHeader, tt.actor)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.want, got)
		})
	}
}
