package store

import (
	"fmt"
	"regexp"
	"time"
)

// Field limits
const (
	MaxCodeLength        = 64
	MaxNameLength        = 255
	MaxDescriptionLength = 2000
	MaxScopeIDs          = 512
	MaxNotesLength       = 2000
	MaxEvidenceRefLength = 512
	MaxIdentifierLength  = 128

	// MaxClockSkew is how far ahead of the server clock a collector's
	// timestamp may run.
	MaxClockSkew = 5 * time.Minute
)

// Audit code format: alphanumeric, -, _, ., /
var codeFormatRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_./]+$`)

// ValidateAudit validates the caller-supplied fields of a new audit
func ValidateAudit(a *Audit) error {
	if a.Code == "" {
		return &ValidationError{Field: "code", Message: "is required"}
	}
	if len(a.Code) > MaxCodeLength {
		return &ValidationError{Field: "code", Message: fmt.Sprintf("too long: %d chars (max %d)", len(a.Code), MaxCodeLength)}
	}
	if !codeFormatRegex.MatchString(a.Code) {
		return &ValidationError{Field: "code", Message: fmt.Sprintf("%q has invalid format (allowed: alphanumeric, -, _, ., /)", a.Code)}
	}

	if a.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if len(a.Name) > MaxNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("too long: %d chars (max %d)", len(a.Name), MaxNameLength)}
	}
	if len(a.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Message: fmt.Sprintf("too long: %d chars (max %d)", len(a.Description), MaxDescriptionLength)}
	}

	if !a.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown audit type %q", a.Type)}
	}
	if a.SampleSize < 0 {
		return &ValidationError{Field: "sample_size", Message: "must not be negative"}
	}

	if err := ValidateScope(a.Scope); err != nil {
		return err
	}

	if a.PlannedStart != nil && a.PlannedEnd != nil && a.PlannedEnd.Before(*a.PlannedStart) {
		return &ValidationError{Field: "planned_end", Message: "must not be before planned_start"}
	}

	return nil
}

// ValidateScope validates sector and location filters
func ValidateScope(scope Scope) error {
	if err := validateIDs("scope.sector_ids", scope.SectorIDs); err != nil {
		return err
	}
	return validateIDs("scope.location_ids", scope.LocationIDs)
}

func validateIDs(field string, ids []string) error {
	if len(ids) > MaxScopeIDs {
		return &ValidationError{Field: field, Message: fmt.Sprintf("too many ids: %d (max %d)", len(ids), MaxScopeIDs)}
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return &ValidationError{Field: field, Message: "empty id not allowed"}
		}
		if len(id) > MaxIdentifierLength {
			return &ValidationError{Field: field, Message: fmt.Sprintf("id too long: %d chars (max %d)", len(id), MaxIdentifierLength)}
		}
		if seen[id] {
			return &ValidationError{Field: field, Message: fmt.Sprintf("duplicate id: %s", id)}
		}
		seen[id] = true
	}
	return nil
}

// ValidateCollected validates the free-form parts of a field reading
func ValidateCollected(c *CollectedSnapshot) error {
	if c.Code != nil && len(*c.Code) > MaxCodeLength {
		return &ValidationError{Field: "code", Message: fmt.Sprintf("too long: %d chars (max %d)", len(*c.Code), MaxCodeLength)}
	}
	if len(c.LocationID) > MaxIdentifierLength {
		return &ValidationError{Field: "location_id", Message: fmt.Sprintf("too long: %d chars (max %d)", len(c.LocationID), MaxIdentifierLength)}
	}
	if len(c.Condition) > MaxIdentifierLength {
		return &ValidationError{Field: "condition", Message: fmt.Sprintf("too long: %d chars (max %d)", len(c.Condition), MaxIdentifierLength)}
	}
	if len(c.Notes) > MaxNotesLength {
		return &ValidationError{Field: "notes", Message: fmt.Sprintf("too long: %d chars (max %d)", len(c.Notes), MaxNotesLength)}
	}
	if len(c.EvidenceRef) > MaxEvidenceRefLength {
		return &ValidationError{Field: "evidence_ref", Message: fmt.Sprintf("too long: %d chars (max %d)", len(c.EvidenceRef), MaxEvidenceRefLength)}
	}
	return nil
}

// ValidateCollectedAt rejects a zero collection time or one later than now
// plus MaxClockSkew.
func ValidateCollectedAt(at, now time.Time) error {
	if at.IsZero() {
		return &ValidationError{Field: "collected_at", Message: "must not be zero"}
	}
	if at.After(now.Add(MaxClockSkew)) {
		return &ValidationError{Field: "collected_at", Message: fmt.Sprintf("%s is in the future", at.UTC().Format(time.RFC3339))}
	}
	return nil
}
