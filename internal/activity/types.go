// Package activity records an operational trail of mutating API calls.
// It complements the per-asset ledger: the ledger proves what was collected,
// the trail shows who called which endpoint and with what outcome.
package activity

import "time"

// Resource is the target of an API call.
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Event is one recorded API call.
type Event struct {
	ID          string            `json:"event_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Operation   string            `json:"operation"`
	Result      string            `json:"result"`
	Resource    Resource          `json:"resource"`
	ActorID     string            `json:"actor_id,omitempty"`
	AuthMethod  string            `json:"auth_method,omitempty"`
	SourceIP    string            `json:"source_ip,omitempty"`
	HTTPMethod  string            `json:"http_method,omitempty"`
	HTTPPath    string            `json:"http_path,omitempty"`
	HTTPStatus  int               `json:"http_status,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
	RequestHash string            `json:"request_hash,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Result values
const (
	ResultSuccess = "success"
	ResultDenied  = "denied"
	ResultError   = "error"
)
