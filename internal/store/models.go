package store

import "time"

// Status is the lifecycle state of an audit.
type Status string

const (
	StatusPlanned        Status = "PLANNED"
	StatusInProgress     Status = "IN_PROGRESS"
	StatusReconciliation Status = "RECONCILIATION"
	StatusFinalized      Status = "FINALIZED"
	StatusCancelled      Status = "CANCELLED"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusReconciliation, StatusFinalized, StatusCancelled:
		return true
	}
	return false
}

// ReachedReconciliation reports whether aggregates may be non-zero.
func (s Status) ReachedReconciliation() bool {
	return s == StatusReconciliation || s == StatusFinalized
}

// AuditType selects how expected items are chosen.
type AuditType string

const (
	TypeFull     AuditType = "FULL"
	TypeCyclic   AuditType = "CYCLIC"
	TypeSampling AuditType = "SAMPLING"
	TypeAdHoc    AuditType = "AD_HOC"
)

// Valid reports whether t is a known audit type
func (t AuditType) Valid() bool {
	switch t {
	case TypeFull, TypeCyclic, TypeSampling, TypeAdHoc:
		return true
	}
	return false
}

// Result is the classification of one audit item.
type Result string

const (
	ResultConformant Result = "CONFORMANT"
	ResultDivergent  Result = "DIVERGENT"
	ResultNotFound   Result = "NOT_FOUND"
	ResultExtra      Result = "EXTRA"
)

// Reason is one kind of mismatch between expected and collected state.
type Reason string

const (
	ReasonLocation  Reason = "LOCATION"
	ReasonCondition Reason = "CONDITION"
	ReasonTag       Reason = "TAG"
)

// Scope restricts an audit to sectors and/or locations. Empty means all.
type Scope struct {
	SectorIDs   []string `json:"sector_ids,omitempty"`
	LocationIDs []string `json:"location_ids,omitempty"`
}

// Empty reports whether the scope is unrestricted
func (s Scope) Empty() bool {
	return len(s.SectorIDs) == 0 && len(s.LocationIDs) == 0
}

// Audit is one physical verification campaign.
type Audit struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        AuditType `json:"type"`
	Scope       Scope     `json:"scope"`
	SampleSize  int       `json:"sample_size,omitempty"`
	Status      Status    `json:"status"`

	TotalItems     int     `json:"total_items"`
	Conformant     int     `json:"conformant"`
	Divergent      int     `json:"divergent"`
	NotFound       int     `json:"not_found"`
	Extra          int     `json:"extra"`
	ConformancePct float64 `json:"conformance_pct"`

	PlannedStart     *time.Time `json:"planned_start,omitempty"`
	PlannedEnd       *time.Time `json:"planned_end,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	ReconciliationAt *time.Time `json:"reconciliation_at,omitempty"`
	FinalizedAt      *time.Time `json:"finalized_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`

	CreatedBy   string `json:"created_by,omitempty"`
	FinalizedBy string `json:"finalized_by,omitempty"`
	FinalNotes  string `json:"final_notes,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ModifyIndex uint64    `json:"modify_index"`
}

// ExpectedSnapshot is the asset state captured when the item was generated.
type ExpectedSnapshot struct {
	AssetCode        string     `json:"asset_code"`
	Description      string     `json:"description,omitempty"`
	LocationID       string     `json:"location_id"`
	CustodianID      string     `json:"custodian_id,omitempty"`
	Condition        string     `json:"condition"`
	SectorID         string     `json:"sector_id,omitempty"`
	AcquisitionValue float64    `json:"acquisition_value"`
	LastVerifiedAt   *time.Time `json:"last_verified_at,omitempty"`
	DivergenceCount  int        `json:"divergence_count"`
}

// CollectedSnapshot is what a collector observed in the field. A nil Code
// means the asset was looked for and not found.
type CollectedSnapshot struct {
	Code        *string   `json:"code"`
	LocationID  string    `json:"location_id,omitempty"`
	Condition   string    `json:"condition,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	EvidenceRef string    `json:"evidence_ref,omitempty"`
	CollectorID string    `json:"collector_id,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// AuditItem tracks one expected or extra asset within an audit.
type AuditItem struct {
	ID       string `json:"id"`
	AuditID  string `json:"audit_id"`
	AssetID  string `json:"asset_id,omitempty"`
	Position int    `json:"position"`

	Expected  *ExpectedSnapshot  `json:"expected,omitempty"`
	Collected *CollectedSnapshot `json:"collected,omitempty"`

	Result      Result   `json:"result,omitempty"`
	Reasons     []Reason `json:"reasons,omitempty"`
	Corrections int      `json:"corrections"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCollected reports whether a reading has been recorded for the item
func (i *AuditItem) IsCollected() bool {
	return i.Collected != nil && !i.Collected.CollectedAt.IsZero()
}

// IsExtra reports whether the item was discovered outside the expected set
func (i *AuditItem) IsExtra() bool {
	return i.Expected == nil
}
