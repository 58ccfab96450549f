package inventory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/neogan74/auditledger/internal/persistence"
	"github.com/neogan74/auditledger/internal/store"
)

// CountList builds the prioritized field list of expected items. It is
// available while the audit is PLANNED or IN_PROGRESS.
func (s *Service) CountList(ctx context.Context, auditID string, filter CountListFilter) (*CountList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch filter.Priority {
	case "":
		filter.Priority = PriorityRisk
	case PriorityValue, PriorityStaleness, PriorityRisk:
	default:
		return nil, &store.ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q (allowed: value, staleness, risk)", filter.Priority)}
	}

	var items []*store.AuditItem
	err := s.engine.View(func(tx persistence.Txn) error {
		audit, err := store.GetAudit(tx, auditID)
		if err != nil {
			return err
		}
		if audit.Status != store.StatusPlanned && audit.Status != store.StatusInProgress {
			return &InvalidStateError{
				AuditID:   auditID,
				Operation: "count list",
				Current:   audit.Status,
				Allowed:   []store.Status{store.StatusPlanned, store.StatusInProgress},
			}
		}
		items, err = store.ListItems(tx, auditID)
		return err
	})
	if err != nil {
		return nil, err
	}

	type ranked struct {
		entry    CountListEntry
		position int
	}
	var rows []ranked
	for _, item := range items {
		exp := item.Expected
		if exp == nil {
			continue
		}
		if filter.SectorID != "" && exp.SectorID != filter.SectorID {
			continue
		}
		if filter.LocationID != "" && exp.LocationID != filter.LocationID {
			continue
		}
		rows = append(rows, ranked{
			position: item.Position,
			entry: CountListEntry{
				ItemID:              item.ID,
				AssetID:             item.AssetID,
				AssetCode:           exp.AssetCode,
				Description:         exp.Description,
				ExpectedLocationID:  exp.LocationID,
				ExpectedCustodianID: exp.CustodianID,
				SectorID:            exp.SectorID,
				AcquisitionValue:    exp.AcquisitionValue,
				LastVerifiedAt:      exp.LastVerifiedAt,
				Risk:                exp.AcquisitionValue * float64(exp.DivergenceCount),
				Collected:           item.IsCollected(),
			},
		})
	}

	compare := compareByPriority(filter.Priority)
	slices.SortStableFunc(rows, func(a, b ranked) int {
		if c := compare(a.entry, b.entry); c != 0 {
			return c
		}
		return cmp.Compare(a.position, b.position)
	})

	list := &CountList{AuditID: auditID, Filter: filter, Entries: make([]CountListEntry, 0, len(rows))}
	for _, r := range rows {
		list.Entries = append(list.Entries, r.entry)
	}
	list.Total = len(list.Entries)
	return list, nil
}

func compareByPriority(p CountPriority) func(a, b CountListEntry) int {
	switch p {
	case PriorityValue:
		return func(a, b CountListEntry) int {
			return cmp.Compare(b.AcquisitionValue, a.AcquisitionValue)
		}
	case PriorityStaleness:
		// never verified first, then oldest verification
		return func(a, b CountListEntry) int {
			switch {
			case a.LastVerifiedAt == nil && b.LastVerifiedAt == nil:
				return 0
			case a.LastVerifiedAt == nil:
				return -1
			case b.LastVerifiedAt == nil:
				return 1
			}
			return a.LastVerifiedAt.Compare(*b.LastVerifiedAt)
		}
	default:
		return func(a, b CountListEntry) int {
			return cmp.Compare(b.Risk, a.Risk)
		}
	}
}
