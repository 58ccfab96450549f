package store

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/neogan74/auditledger/internal/persistence"
)

const (
	auditPrefix     = "audit/"
	auditCodePrefix = "audit-code/"
)

// AuditFilter narrows ListAudits. Zero values match everything.
type AuditFilter struct {
	Type      AuditType
	Status    Status
	CreatedBy string
	Skip      int
	Limit     int
}

// EnsureCodeAvailable fails with a DuplicateError when another audit already
// holds code.
func EnsureCodeAvailable(tx persistence.Txn, code string) error {
	if _, err := tx.Get(auditCodePrefix + url.PathEscape(code)); err == nil {
		return &DuplicateError{Type: "audit", Field: "code", Value: code}
	} else if !persistence.IsNotFound(err) {
		return fmt.Errorf("failed to check audit code: %w", err)
	}
	return nil
}

// CreateAudit stores a new audit and reserves its code. The audit starts at
// ModifyIndex 1.
func CreateAudit(tx persistence.Txn, a *Audit) error {
	if err := EnsureCodeAvailable(tx, a.Code); err != nil {
		return err
	}
	if _, err := tx.Get(auditPrefix + a.ID); err == nil {
		return &DuplicateError{Type: "audit", Field: "id", Value: a.ID}
	} else if !persistence.IsNotFound(err) {
		return fmt.Errorf("failed to check audit id: %w", err)
	}

	a.ModifyIndex = 1
	if err := putJSON(tx, auditPrefix+a.ID, a); err != nil {
		return err
	}
	return tx.Set(auditCodePrefix+url.PathEscape(a.Code), []byte(a.ID))
}

// GetAudit loads an audit by id
func GetAudit(tx persistence.Txn, id string) (*Audit, error) {
	var a Audit
	if err := getJSON(tx, auditPrefix+id, &a); err != nil {
		if persistence.IsNotFound(err) {
			return nil, &NotFoundError{Type: "audit", Key: id}
		}
		return nil, err
	}
	return &a, nil
}

// SaveAuditCAS replaces the stored audit only if its ModifyIndex still equals
// expectedIndex. On success a.ModifyIndex is advanced.
func SaveAuditCAS(tx persistence.Txn, a *Audit, expectedIndex uint64) error {
	current, err := GetAudit(tx, a.ID)
	if err != nil {
		return err
	}
	if current.ModifyIndex != expectedIndex {
		return &CASConflictError{
			Key:           a.ID,
			ExpectedIndex: expectedIndex,
			CurrentIndex:  current.ModifyIndex,
			OperationType: "audit",
		}
	}

	a.ModifyIndex = expectedIndex + 1
	return putJSON(tx, auditPrefix+a.ID, a)
}

// ListAudits returns audits matching filter, newest first
func ListAudits(tx persistence.Txn, filter AuditFilter) ([]*Audit, error) {
	var audits []*Audit
	err := tx.Scan(auditPrefix, func(_ string, value []byte) error {
		var a Audit
		if err := json.Unmarshal(value, &a); err != nil {
			return fmt.Errorf("failed to decode audit: %w", err)
		}
		if filter.Type != "" && a.Type != filter.Type {
			return nil
		}
		if filter.Status != "" && a.Status != filter.Status {
			return nil
		}
		if filter.CreatedBy != "" && a.CreatedBy != filter.CreatedBy {
			return nil
		}
		audits = append(audits, &a)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(audits, func(i, j int) bool {
		if audits[i].CreatedAt.Equal(audits[j].CreatedAt) {
			return audits[i].Code > audits[j].Code
		}
		return audits[i].CreatedAt.After(audits[j].CreatedAt)
	})

	return paginate(audits, filter.Skip, filter.Limit), nil
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func putJSON(tx persistence.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return tx.Set(key, data)
}

func getJSON(tx persistence.Txn, key string, v any) error {
	data, err := tx.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}
