package handlers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/inventory"
	"github.com/neogan74/auditledger/internal/middleware"
	"github.com/neogan74/auditledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	id := s.createAudit(t, "AUD-001")

	var audit store.Audit
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/audits/"+id, nil, &audit))
	assert.Equal(t, store.StatusPlanned, audit.Status)
	assert.Equal(t, 3, audit.TotalItems)
	assert.Equal(t, "auditor-7", audit.CreatedBy)

	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodPut, "/audits/"+id+"/start", nil, &audit))
	assert.Equal(t, store.StatusInProgress, audit.Status)

	var result inventory.BatchResult
	status := s.do(t, http.MethodPost, "/audits/"+id+"/readings", map[string]any{
		"readings": []map[string]any{
			{"code": "PAT-001", "location_id": "room-101", "condition": "GOOD"},
			{"code": "PAT-002", "location_id": "room-999", "condition": "GOOD"},
			{"code": "NOPE-404"},
		},
	}, &result)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, result.Successes, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, store.ResultConformant, result.Successes[0].Result)
	assert.Equal(t, store.ResultDivergent, result.Successes[1].Result)
	assert.Equal(t, 2, result.Failures[0].Index)
	assert.Equal(t, inventory.FailureUnknownCode, result.Failures[0].Reason)

	var summary inventory.Summary
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodPut, "/audits/"+id+"/reconcile", nil, &summary))
	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, 2, summary.Collected)
	assert.Equal(t, 1, summary.Conformant)
	assert.Equal(t, 1, summary.Divergent)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 0, summary.NotFound)

	var report inventory.Report
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/audits/"+id+"/report", nil, &report))
	assert.Len(t, report.Conformant, 1)
	assert.Len(t, report.Divergent, 1)
	assert.Len(t, report.Pending, 1)

	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodPut, "/audits/"+id+"/finalize",
		map[string]any{"notes": "room 101 recounted"}, &audit))
	assert.Equal(t, store.StatusFinalized, audit.Status)
	assert.Equal(t, "auditor-7", audit.FinalizedBy)
	assert.Equal(t, "room 101 recounted", audit.FinalNotes)

	verified, _ := s.dir.Get("as-1")
	assert.NotNil(t, verified.LastVerifiedAt)
	divergent, _ := s.dir.Get("as-2")
	assert.Nil(t, divergent.LastVerifiedAt)

	var errResp middleware.ErrorResponse
	assert.Equal(t, fiber.StatusConflict, s.do(t, http.MethodPut, "/audits/"+id+"/cancel", nil, &errResp))
}

func TestAuditHandler_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	id := s.createAudit(t, "AUD-ERR")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"duplicate code", http.MethodPost, "/audits", map[string]any{
			"code": "AUD-ERR", "name": "again", "type": "FULL",
		}, fiber.StatusConflict},
		{"unknown type", http.MethodPost, "/audits", map[string]any{
			"code": "AUD-X", "name": "x", "type": "WEEKLY",
		}, fiber.StatusBadRequest},
		{"missing audit", http.MethodGet, "/audits/does-not-exist", nil, fiber.StatusNotFound},
		{"collect before start", http.MethodPost, "/audits/" + id + "/readings", map[string]any{
			"readings": []map[string]any{{"code": "PAT-001"}},
		}, fiber.StatusConflict},
		{"report before reconcile", http.MethodGet, "/audits/" + id + "/report", nil, fiber.StatusConflict},
		{"finalize from planned", http.MethodPut, "/audits/" + id + "/finalize", nil, fiber.StatusConflict},
		{"bad list filter", http.MethodGet, "/audits?status=DONE", nil, fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp middleware.ErrorResponse
			assert.Equal(t, tt.status, s.do(t, tt.method, tt.path, tt.body, &resp))
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestAuditHandler_UnknownScope(t *testing.T) {
	s := newTestServer(t)

	var resp struct {
		Message string `json:"message"`
		Details struct {
			SectorIDs []string `json:"sector_ids"`
		} `json:"details"`
	}
	status := s.do(t, http.MethodPost, "/audits", map[string]any{
		"code":  "AUD-SCOPE",
		"name":  "scope",
		"type":  "FULL",
		"scope": map[string]any{"sector_ids": []string{"sector-1", "sector-404"}},
	}, &resp)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, []string{"sector-404"}, resp.Details.SectorIDs)
}

func TestAuditHandler_EmptyBatchAndEmptyReconcile(t *testing.T) {
	s := newTestServer(t)
	id := s.createAudit(t, "AUD-EMPTY")
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodPut, "/audits/"+id+"/start", nil, nil))

	var resp middleware.ErrorResponse
	assert.Equal(t, fiber.StatusBadRequest,
		s.do(t, http.MethodPost, "/audits/"+id+"/readings", map[string]any{"readings": []any{}}, &resp))
	assert.Equal(t, fiber.StatusUnprocessableEntity,
		s.do(t, http.MethodPut, "/audits/"+id+"/reconcile", nil, &resp))

	var audit store.Audit
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodPut, "/audits/"+id+"/cancel", nil, &audit))
	assert.Equal(t, store.StatusCancelled, audit.Status)
}

func TestAuditHandler_ListAndItems(t *testing.T) {
	s := newTestServer(t)
	first := s.createAudit(t, "AUD-L1")
	s.createAudit(t, "AUD-L2")
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodPut, "/audits/"+first+"/start", nil, nil))

	var list struct {
		Audits []store.Audit `json:"audits"`
		Count  int           `json:"count"`
	}
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/audits", nil, &list))
	assert.Equal(t, 2, list.Count)

	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/audits?status=IN_PROGRESS", nil, &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, first, list.Audits[0].ID)

	var items struct {
		Items []store.AuditItem `json:"items"`
		Count int               `json:"count"`
	}
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/audits/"+first+"/items", nil, &items))
	assert.Equal(t, 3, items.Count)
}

func TestAuditHandler_CountList(t *testing.T) {
	s := newTestServer(t)
	id := s.createAudit(t, "AUD-COUNT")

	var list inventory.CountList
	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/audits/"+id+"/count-list?priority=value", nil, &list))
	require.Len(t, list.Entries, 3)
	assert.Equal(t, []string{"as-1", "as-3", "as-2"},
		[]string{list.Entries[0].AssetID, list.Entries[1].AssetID, list.Entries[2].AssetID})

	require.Equal(t, fiber.StatusOK, s.do(t, http.MethodGet, "/audits/"+id+"/count-list?location_id=room-102", nil, &list))
	assert.Equal(t, 1, list.Total)

	var resp middleware.ErrorResponse
	assert.Equal(t, fiber.StatusBadRequest,
		s.do(t, http.MethodGet, "/audits/"+id+"/count-list?priority=alphabetical", nil, &resp))
}
