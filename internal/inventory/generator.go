package inventory

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/neogan74/auditledger/internal/directory"
	"github.com/neogan74/auditledger/internal/store"
)

// selectAssets applies the type-specific selection rule to the in-scope
// candidates. The result is ordered by code, except for SAMPLING which is
// ordered by descending acquisition value.
func selectAssets(auditType store.AuditType, candidates []directory.Asset, sampleSize int, staleness time.Duration, now time.Time) []directory.Asset {
	active := make([]directory.Asset, 0, len(candidates))
	for _, a := range candidates {
		if a.Active {
			active = append(active, a)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Code < active[j].Code })

	switch auditType {
	case store.TypeSampling:
		sort.SliceStable(active, func(i, j int) bool {
			return active[i].AcquisitionValue > active[j].AcquisitionValue
		})
		if sampleSize > 0 && len(active) > sampleSize {
			active = active[:sampleSize]
		}
		return active

	case store.TypeCyclic:
		threshold := now.Add(-staleness)
		stale := active[:0]
		for _, a := range active {
			if a.LastVerifiedAt == nil || a.LastVerifiedAt.Before(threshold) {
				stale = append(stale, a)
			}
		}
		return stale

	default:
		return active
	}
}

// buildItems captures one expected snapshot per selected asset.
func buildItems(auditID string, assets []directory.Asset, now time.Time) []*store.AuditItem {
	items := make([]*store.AuditItem, 0, len(assets))
	for i, a := range assets {
		items = append(items, &store.AuditItem{
			ID:       uuid.NewString(),
			AuditID:  auditID,
			AssetID:  a.ID,
			Position: i,
			Expected: &store.ExpectedSnapshot{
				AssetCode:        a.Code,
				Description:      a.Description,
				LocationID:       a.LocationID,
				CustodianID:      a.CustodianID,
				Condition:        a.Condition,
				SectorID:         a.SectorID,
				AcquisitionValue: a.AcquisitionValue,
				LastVerifiedAt:   a.LastVerifiedAt,
				DivergenceCount:  a.DivergenceCount,
			},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return items
}
