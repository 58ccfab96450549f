package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exitCode int

// testCLI returns a CLI whose Exit panics so a failing command stops.
func testCLI() (*CLI, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &CLI{
		Output: &out,
		Error:  &errOut,
		Exit:   func(code int) { panic(exitCode(code)) },
	}, &out, &errOut
}

func run(cli *CLI, args ...string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(c)
		}
	}()
	cli.Run(args)
	return 0
}

type recorded struct {
	method string
	path   string
	actor  string
	body   string
}

type recorder struct {
	mu       sync.Mutex
	requests []recorded
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.requests...)
}

func fakeServer(t *testing.T, rec *recorder) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	respond := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /audits", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"audits": []Audit{
			{ID: "a1", Code: "AUD-1", Type: "FULL", Status: r.URL.Query().Get("status"), TotalItems: 3, ConformancePct: 66.7},
		}})
	})
	mux.HandleFunc("PUT /audits/{id}/finalize", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, Audit{ID: r.PathValue("id"), Code: "AUD-1", Status: "FINALIZED", FinalizedBy: r.Header.Get("X-Actor-ID")})
	})
	mux.HandleFunc("PUT /audits/{id}/start", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusConflict, ErrorResponse{Error: "Conflict", Message: "invalid transition from FINALIZED to IN_PROGRESS"})
	})
	mux.HandleFunc("POST /audits/{id}/readings", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{
			"audit_id":  r.PathValue("id"),
			"successes": []map[string]any{{"index": 0, "result": "CONFORMANT"}},
			"failures":  []map[string]any{{"index": 1, "reason": "UNKNOWN_CODE", "message": "code X matches nothing"}},
		})
	})
	mux.HandleFunc("GET /ledger/{asset}/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("asset") == "as-bad" {
			respond(w, http.StatusConflict, map[string]any{
				"error":   "Conflict",
				"message": "chain integrity violation",
				"details": Verification{AssetID: "as-bad", FirstInvalidEntryID: "e2", Reason: "record hash mismatch"},
			})
			return
		}
		respond(w, http.StatusOK, Verification{AssetID: r.PathValue("asset"), Valid: true, Entries: 4})
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		rec.mu.Lock()
		rec.requests = append(rec.requests, recorded{method: r.Method, path: r.URL.Path, actor: r.Header.Get("X-Actor-ID"), body: string(body)})
		rec.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCLI_AuditList(t *testing.T) {
	rec := &recorder{}
	server := fakeServer(t, rec)
	cli, out, _ := testCLI()

	code := run(cli, "audit", "list", "--server", server.URL, "--status", "IN_PROGRESS")
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "AUD-1")
	assert.Contains(t, out.String(), "66.7%")
	requests := rec.all()
	require.Len(t, requests, 1)
	assert.Equal(t, "/audits", requests[0].path)
}

func TestCLI_FinalizeSendsNotesAndActor(t *testing.T) {
	rec := &recorder{}
	server := fakeServer(t, rec)
	cli, out, _ := testCLI()

	code := run(cli, "audit", "finalize", "--server", server.URL, "--actor", "auditor-3", "--notes", "all good", "a1")
	assert.Equal(t, 0, code)
	assert.Equal(t, "Audit AUD-1 finalized by auditor-3\n", out.String())
	requests := rec.all()
	require.Len(t, requests, 1)
	assert.Equal(t, "auditor-3", requests[0].actor)
	assert.JSONEq(t, `{"notes":"all good"}`, requests[0].body)
}

func TestCLI_ServerErrorExitsNonZero(t *testing.T) {
	rec := &recorder{}
	server := fakeServer(t, rec)
	cli, _, errOut := testCLI()

	code := run(cli, "audit", "start", "--server", server.URL, "a1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "invalid transition")
}

func TestCLI_Collect(t *testing.T) {
	rec := &recorder{}
	server := fakeServer(t, rec)
	cli, out, _ := testCLI()

	path := filepath.Join(t.TempDir(), "readings.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"code":"PAT-001"},{"code":"X"}]`), 0644))

	code := run(cli, "collect", "--server", server.URL, "a1", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Applied 1 reading(s), rejected 1")
	assert.Contains(t, out.String(), "#1 UNKNOWN_CODE")
	requests := rec.all()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPost, requests[0].method)
	assert.JSONEq(t, `{"readings":[{"code":"PAT-001"},{"code":"X"}]}`, requests[0].body)
}

func TestCLI_LedgerVerify(t *testing.T) {
	rec := &recorder{}
	server := fakeServer(t, rec)

	cli, out, _ := testCLI()
	assert.Equal(t, 0, run(cli, "ledger", "verify", "--server", server.URL, "as-1"))
	assert.Equal(t, "Chain of as-1 is valid (4 entries)\n", out.String())

	cli, _, errOut := testCLI()
	assert.Equal(t, 1, run(cli, "ledger", "verify", "--server", server.URL, "as-bad"))
	assert.Contains(t, errOut.String(), "BROKEN at entry e2: record hash mismatch")
}

func TestCLI_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 1},
		{"unknown command", []string{"frobnicate"}, 1},
		{"missing audit id", []string{"audit", "get"}, 1},
		{"unknown ledger subcommand", []string{"ledger", "rewrite", "as-1"}, 1},
		{"version", []string{"version"}, 0},
		{"help", []string{"help"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, _, _ := testCLI()
			assert.Equal(t, tt.code, run(cli, tt.args...))
		})
	}
}
