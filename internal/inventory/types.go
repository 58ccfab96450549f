package inventory

import (
	"time"

	"github.com/neogan74/auditledger/internal/store"
)

// ActionAuditRead is the ledger action recorded for every collected reading.
const ActionAuditRead = "AUDIT_READ"

// ItemsTable is the subject table name of collection ledger entries.
const ItemsTable = "audit_items"

// Options tunes generation and collection.
type Options struct {
	SampleSize         int
	CyclicStaleness    time.Duration
	CollectConcurrency int
	OperationTimeout   time.Duration
	VerifyBatchSize    int
	ItemChunkSize      int
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		SampleSize:         100,
		CyclicStaleness:    180 * 24 * time.Hour,
		CollectConcurrency: 8,
		OperationTimeout:   10 * time.Second,
		VerifyBatchSize:    200,
		ItemChunkSize:      1000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleSize <= 0 {
		o.SampleSize = d.SampleSize
	}
	if o.CyclicStaleness <= 0 {
		o.CyclicStaleness = d.CyclicStaleness
	}
	if o.CollectConcurrency <= 0 {
		o.CollectConcurrency = d.CollectConcurrency
	}
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = d.OperationTimeout
	}
	if o.VerifyBatchSize <= 0 {
		o.VerifyBatchSize = d.VerifyBatchSize
	}
	if o.ItemChunkSize <= 0 {
		o.ItemChunkSize = d.ItemChunkSize
	}
	return o
}

// CreateAuditRequest describes a new audit.
type CreateAuditRequest struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Type         store.AuditType `json:"type"`
	Scope        store.Scope     `json:"scope"`
	SampleSize   int             `json:"sample_size,omitempty"`
	PlannedStart *time.Time      `json:"planned_start,omitempty"`
	PlannedEnd   *time.Time      `json:"planned_end,omitempty"`
}

// Reading is one decoded field observation. ItemID is optional; without it
// the reading is resolved by Code. A nil Code records the item as not found.
type Reading struct {
	ItemID      string     `json:"item_id,omitempty"`
	Code        *string    `json:"code"`
	LocationID  string     `json:"location_id,omitempty"`
	Condition   string     `json:"condition,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	EvidenceRef string     `json:"evidence_ref,omitempty"`
	CollectedAt *time.Time `json:"collected_at,omitempty"`
}

// FailureReason classifies a rejected reading.
type FailureReason string

const (
	FailureUnknownCode            FailureReason = "UNKNOWN_CODE"
	FailureUnknownItem            FailureReason = "UNKNOWN_ITEM"
	FailureInvalidReading         FailureReason = "INVALID_READING"
	FailureConcurrentModification FailureReason = "CONCURRENT_MODIFICATION"
	FailureTimeout                FailureReason = "TIMEOUT"
	FailureStorage                FailureReason = "STORAGE_ERROR"
	FailureDirectory              FailureReason = "DIRECTORY_ERROR"
	FailureNotAttempted           FailureReason = "NOT_ATTEMPTED"
)

// ReadingSuccess reports one applied reading.
type ReadingSuccess struct {
	Index      int            `json:"index"`
	ItemID     string         `json:"item_id"`
	AssetID    string         `json:"asset_id"`
	Result     store.Result   `json:"result"`
	Reasons    []store.Reason `json:"reasons,omitempty"`
	EntryID    string         `json:"ledger_entry_id"`
	Correction bool           `json:"correction,omitempty"`
}

// ReadingFailure reports one rejected reading.
type ReadingFailure struct {
	Index   int           `json:"index"`
	Reason  FailureReason `json:"reason"`
	Message string        `json:"message"`
	ItemID  string        `json:"item_id,omitempty"`
	Code    *string       `json:"code,omitempty"`
}

// BatchResult lists the outcome of every reading of a Collect call, each
// slice ordered by reading index.
type BatchResult struct {
	AuditID   string           `json:"audit_id"`
	Successes []ReadingSuccess `json:"successes"`
	Failures  []ReadingFailure `json:"failures"`
}

// Summary holds the aggregate counters of an audit.
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

// ReportLine shows one item with expected and found state side by side.
type ReportLine struct {
	ItemID      string                   `json:"item_id"`
	AssetID     string                   `json:"asset_id,omitempty"`
	Expected    *store.ExpectedSnapshot  `json:"expected,omitempty"`
	Found       *store.CollectedSnapshot `json:"found,omitempty"`
	Result      store.Result             `json:"result,omitempty"`
	Reasons     []store.Reason           `json:"reasons,omitempty"`
	Corrections int                      `json:"corrections"`
}

// Report is the read-only reconciliation view of an audit.
type Report struct {
	Audit       *store.Audit `json:"audit"`
	Summary     Summary      `json:"summary"`
	Conformant  []ReportLine `json:"conformant"`
	Divergent   []ReportLine `json:"divergent"`
	NotFound    []ReportLine `json:"not_found"`
	Extra       []ReportLine `json:"extra"`
	Pending     []ReportLine `json:"pending"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// CountPriority orders a counting list.
type CountPriority string

const (
	PriorityValue     CountPriority = "value"
	PriorityStaleness CountPriority = "staleness"
	PriorityRisk      CountPriority = "risk"
)

// CountListFilter narrows a counting list.
type CountListFilter struct {
	SectorID   string        `json:"sector_id,omitempty"`
	LocationID string        `json:"location_id,omitempty"`
	Priority   CountPriority `json:"priority"`
}

// CountListEntry is one asset a collector should look for.
type CountListEntry struct {
	ItemID              string     `json:"item_id"`
	AssetID             string     `json:"asset_id"`
	AssetCode           string     `json:"asset_code"`
	Description         string     `json:"description,omitempty"`
	ExpectedLocationID  string     `json:"expected_location_id"`
	ExpectedCustodianID string     `json:"expected_custodian_id,omitempty"`
	SectorID            string     `json:"sector_id,omitempty"`
	AcquisitionValue    float64    `json:"acquisition_value"`
	LastVerifiedAt      *time.Time `json:"last_verified_at,omitempty"`
	Risk                float64    `json:"risk"`
	Collected           bool       `json:"collected"`
}

// CountList is the prioritized field list for an audit.
type CountList struct {
	AuditID string           `json:"audit_id"`
	Total   int              `json:"total"`
	Filter  CountListFilter  `json:"filter"`
	Entries []CountListEntry `json:"entries"`
}
