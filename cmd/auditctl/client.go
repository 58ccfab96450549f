package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the auditledger HTTP API.
type Client struct {
	BaseURL    string
	Actor      string
	Token      string
	HTTPClient *http.Client
}

type ErrorResponse struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

type Audit struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	TotalItems     int     `json:"total_items"`
	Conformant     int     `json:"conformant"`
	Divergent      int     `json:"divergent"`
	NotFound       int     `json:"not_found"`
	Extra          int     `json:"extra"`
	ConformancePct float64 `json:"conformance_pct"`
	CreatedBy      string  `json:"created_by"`
	FinalizedBy    string  `json:"finalized_by,omitempty"`
}

type Summary struct {
	AuditID        string  `json:"audit_id"`
	TotalItems     int     `json:"total_items"`
	Collected      int     `json:"collected"`
	Pending        int     `json:"pending"`
	Conformant     int     `json:"conformant"`
	Divergent      int     `json:"divergent"`
	NotFound       int     `json:"not_found"`
	Extra          int     `json:"extra"`
	ConformancePct float64 `json:"conformance_pct"`
}

type BatchResult struct {
	AuditID   string `json:"audit_id"`
	Successes []struct {
		Index   int    `json:"index"`
		ItemID  string `json:"item_id"`
		AssetID string `json:"asset_id"`
		Result  string `json:"result"`
	} `json:"successes"`
	Failures []struct {
		Index   int    `json:"index"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"failures"`
}

type LedgerEntry struct {
	ID         string         `json:"id"`
	Seq        uint64         `json:"seq"`
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id"`
	RecordHash string         `json:"record_hash"`
	CreatedAt  time.Time      `json:"created_at"`
	Payload    map[string]any `json:"payload"`
}

type Verification struct {
	AssetID             string `json:"asset_id"`
	Valid               bool   `json:"valid"`
	Entries             int    `json:"entries"`
	FirstInvalidEntryID string `json:"first_invalid_entry_id,omitempty"`
	Reason              string `json:"reason,omitempty"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status   int
	Response ErrorResponse
}

func (e *APIError) Error() string {
	if e.Response.Message != "" {
		return fmt.Sprintf("server error: %s - %s", e.Response.Error, e.Response.Message)
	}
	return fmt.Sprintf("unexpected status code: %d", e.Status)
}

func NewClient(baseURL, actor, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Actor:   actor,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Actor != "" {
		req.Header.Set("X-Actor-ID", c.Actor)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, &apiErr.Response)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) ListAudits(status string) ([]Audit, error) {
	path := "/audits"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Audits []Audit `json:"audits"`
	}
	err := c.do(http.MethodGet, path, nil, &resp)
	return resp.Audits, err
}

func (c *Client) GetAudit(id string) (*Audit, error) {
	var audit Audit
	if err := c.do(http.MethodGet, "/audits/"+url.PathEscape(id), nil, &audit); err != nil {
		return nil, err
	}
	return &audit, nil
}

// Transition issues a lifecycle PUT such as start or cancel.
func (c *Client) Transition(id, action string, body any) (*Audit, error) {
	var audit Audit
	if err := c.do(http.MethodPut, "/audits/"+url.PathEscape(id)+"/"+action, body, &audit); err != nil {
		return nil, err
	}
	return &audit, nil
}

func (c *Client) Reconcile(id string) (*Summary, error) {
	var summary Summary
	if err := c.do(http.MethodPut, "/audits/"+url.PathEscape(id)+"/reconcile", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) Report(id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(http.MethodGet, "/audits/"+url.PathEscape(id)+"/report", nil, &raw)
	return raw, err
}

func (c *Client) Collect(id string, readings json.RawMessage) (*BatchResult, error) {
	var result BatchResult
	body := map[string]json.RawMessage{"readings": readings}
	if err := c.do(http.MethodPost, "/audits/"+url.PathEscape(id)+"/readings", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) LedgerEntries(assetID string) ([]LedgerEntry, error) {
	var resp struct {
		Entries []LedgerEntry `json:"entries"`
	}
	err := c.do(http.MethodGet, "/ledger/"+url.PathEscape(assetID), nil, &resp)
	return resp.Entries, err
}

// VerifyLedger returns the verification result for both valid and broken
// chains; a broken chain arrives as a 409 carrying the result.
func (c *Client) VerifyLedger(assetID string) (*Verification, error) {
	var result Verification
	err := c.do(http.MethodGet, "/ledger/"+url.PathEscape(assetID)+"/verify", nil, &result)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusConflict && len(apiErr.Response.Details) > 0 {
		if jsonErr := json.Unmarshal(apiErr.Response.Details, &result); jsonErr == nil {
			return &result, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateBackup() (string, error) {
	var resp struct {
		BackupPath string `json:"backup_path"`
	}
	err := c.do(http.MethodPost, "/admin/backup", nil, &resp)
	return resp.BackupPath, err
}
