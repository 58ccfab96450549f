package inventory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neogan74/auditledger/internal/store"
)

var (
	// ErrEmptyCollectionSet is returned when reconciliation is requested for
	// an audit without any collected item.
	ErrEmptyCollectionSet = errors.New("audit has no collected items")
	// ErrUnknownCode marks a reading that matches neither an item nor an asset.
	ErrUnknownCode = errors.New("code matches neither an audit item nor a catalogued asset")
	// ErrEmptyBatch is returned by Collect when no readings are submitted.
	ErrEmptyBatch = errors.New("no readings submitted")
)

// InvalidTransitionError is returned for a lifecycle move the state machine
// does not allow.
type InvalidTransitionError struct {
	AuditID   string
	Current   store.Status
	Requested store.Status
	Detail    string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition for audit %s: %s -> %s", e.AuditID, e.Current, e.Requested)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsInvalidTransition checks if an error is an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// InvalidStateError is returned when an operation is not available in the
// audit's current status.
type InvalidStateError struct {
	AuditID   string
	Operation string
	Current   store.Status
	Allowed   []store.Status
}

func (e *InvalidStateError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("%s is not available for audit %s in status %s (allowed: %s)",
		e.Operation, e.AuditID, e.Current, strings.Join(allowed, ", "))
}

// IsInvalidState checks if an error is an InvalidStateError
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// ScopeNotFoundError lists scope references unknown to the asset directory.
type ScopeNotFoundError struct {
	SectorIDs   []string
	LocationIDs []string
}

func (e *ScopeNotFoundError) Error() string {
	var parts []string
	if len(e.SectorIDs) > 0 {
		parts = append(parts, "sectors "+strings.Join(e.SectorIDs, ", "))
	}
	if len(e.LocationIDs) > 0 {
		parts = append(parts, "locations "+strings.Join(e.LocationIDs, ", "))
	}
	return "scope references not found: " + strings.Join(parts, "; ")
}

// IsScopeNotFound checks if an error is a ScopeNotFoundError
func IsScopeNotFound(err error) bool {
	var target *ScopeNotFoundError
	return errors.As(err, &target)
}

// ConcurrentModificationError is returned when a version check or a
// storage conflict rejects a write.
type ConcurrentModificationError struct {
	Resource string
	ID       string
	Err      error
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %s: %v", e.Resource, e.ID, e.Err)
}

func (e *ConcurrentModificationError) Unwrap() error {
	return e.Err
}

// IsConcurrentModification checks if an error is a ConcurrentModificationError
func IsConcurrentModification(err error) bool {
	var target *ConcurrentModificationError
	return errors.As(err, &target)
}
