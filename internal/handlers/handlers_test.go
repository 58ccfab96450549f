package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/directory"
	"github.com/neogan74/auditledger/internal/inventory"
	"github.com/neogan74/auditledger/internal/ledger"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/middleware"
	"github.com/neogan74/auditledger/internal/persistence"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testServer struct {
	app    *fiber.App
	engine *persistence.MemoryEngine
	dir    *directory.MemoryDirectory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := directory.NewMemoryDirectory()
	for _, a := range []directory.Asset{
		{ID: "as-1", Code: "PAT-001", SectorID: "sector-1", LocationID: "room-101", Condition: "GOOD", AcquisitionValue: 1500, Active: true},
		{ID: "as-2", Code: "PAT-002", SectorID: "sector-1", LocationID: "room-101", Condition: "GOOD", AcquisitionValue: 300, Active: true},
		{ID: "as-3", Code: "PAT-003", SectorID: "sector-1", LocationID: "room-102", Condition: "GOOD", AcquisitionValue: 900, Active: true},
	} {
		require.NoError(t, dir.Put(a))
	}

	engine := persistence.NewMemoryEngine()
	signer, err := ledger.NewSigner("handlers-test-secret")
	require.NoError(t, err)
	led := ledger.New(engine, signer, logger.NewNop())
	clock := inventory.ClockFunc(func() time.Time { return testNow })
	svc := inventory.NewService(engine, led, dir, clock, inventory.Options{}, logger.NewNop())

	app := fiber.New()
	app.Use(middleware.HeaderIdentity(false, nil))

	audits := NewAuditHandler(svc)
	app.Post("/audits", audits.Create)
	app.Get("/audits", audits.List)
	app.Get("/audits/:id", audits.Get)
	app.Get("/audits/:id/items", audits.Items)
	app.Get("/audits/:id/count-list", audits.CountList)
	app.Put("/audits/:id/start", audits.Start)
	app.Post("/audits/:id/readings", audits.Collect)
	app.Put("/audits/:id/reconcile", audits.Reconcile)
	app.Get("/audits/:id/report", audits.Report)
	app.Put("/audits/:id/finalize", audits.Finalize)
	app.Put("/audits/:id/cancel", audits.Cancel)

	ledgerHandler := NewLedgerHandler(svc)
	app.Get("/ledger/:asset", ledgerHandler.Entries)
	app.Get("/ledger/:asset/verify", ledgerHandler.Verify)

	return &testServer{app: app, engine: engine, dir: dir}
}

// do sends a request as actor and decodes the JSON response into out.
func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, "auditor-7")

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) createAudit(t *testing.T, code string) string {
	t.Helper()
	var created map[string]any
	status := s.do(t, http.MethodPost, "/audits", map[string]any{
		"code":  code,
		"name":  "Audit " + code,
		"type":  "FULL",
		"scope": map[string]any{"sector_ids": []string{"sector-1"}},
	}, &created)
	require.Equal(t, fiber.StatusCreated, status)
	return created["id"].(string)
}
