package inventory

import (
	"context"
	"testing"

	"github.com/neogan74/auditledger/internal/directory"
	"github.com/neogan74/auditledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countListAssets() []directory.Asset {
	old := testNow.AddDate(-2, 0, 0)
	recent := testNow.AddDate(0, -1, 0)

	a := asset("as-1", "PAT-001", "sector-1", "room-101", 1000)
	a.LastVerifiedAt = &recent
	a.DivergenceCount = 1
	b := asset("as-2", "PAT-002", "sector-1", "room-102", 200)
	b.LastVerifiedAt = &old
	b.DivergenceCount = 10
	c := asset("as-3", "PAT-003", "sector-1", "room-101", 5000)
	d := asset("as-4", "PAT-004", "sector-2", "room-201", 700)
	d.LastVerifiedAt = &old
	d.DivergenceCount = 2
	return []directory.Asset{a, b, c, d}
}

func entryCodes(list *CountList) []string {
	out := make([]string, len(list.Entries))
	for i, e := range list.Entries {
		out[i] = e.AssetCode
	}
	return out
}

func TestCountList_Priorities(t *testing.T) {
	f := newFixture(t, countListAssets()...)
	audit := f.create(t, "AUD-1", store.TypeFull, store.Scope{})

	tests := []struct {
		name   string
		filter CountListFilter
		want   []string
	}{
		{"value", CountListFilter{Priority: PriorityValue}, []string{"PAT-003", "PAT-001", "PAT-004", "PAT-002"}},
		{"staleness", CountListFilter{Priority: PriorityStaleness}, []string{"PAT-003", "PAT-002", "PAT-004", "PAT-001"}},
		{"risk", CountListFilter{Priority: PriorityRisk}, []string{"PAT-002", "PAT-004", "PAT-001", "PAT-003"}},
		{"risk by default", CountListFilter{}, []string{"PAT-002", "PAT-004", "PAT-001", "PAT-003"}},
		{"sector filter", CountListFilter{SectorID: "sector-2", Priority: PriorityValue}, []string{"PAT-004"}},
		{"location filter", CountListFilter{LocationID: "room-101", Priority: PriorityValue}, []string{"PAT-003", "PAT-001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := f.svc.CountList(context.Background(), audit.ID, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entryCodes(list))
			assert.Equal(t, len(tt.want), list.Total)
		})
	}
}

func TestCountList_RiskValue(t *testing.T) {
	f := newFixture(t, countListAssets()...)
	audit := f.create(t, "AUD-1", store.TypeFull, store.Scope{})

	list, err := f.svc.CountList(context.Background(), audit.ID, CountListFilter{})
	require.NoError(t, err)
	assert.Equal(t, PriorityRisk, list.Filter.Priority)
	assert.Equal(t, 2000.0, list.Entries[0].Risk)
	assert.Equal(t, "room-102", list.Entries[0].ExpectedLocationID)
}

func TestCountList_StatusAndPriorityChecks(t *testing.T) {
	f := newFixture(t, countListAssets()...)
	ctx := context.Background()
	audit := f.started(t, "AUD-1", store.Scope{})

	_, err := f.svc.CountList(ctx, audit.ID, CountListFilter{Priority: "alphabetical"})
	assert.True(t, store.IsValidation(err))

	_, err = f.svc.Collect(ctx, audit.ID, []Reading{{Code: strPtr("PAT-001"), LocationID: "room-101", Condition: "GOOD"}}, "collector-1")
	require.NoError(t, err)

	list, err := f.svc.CountList(ctx, audit.ID, CountListFilter{Priority: PriorityValue})
	require.NoError(t, err)
	assert.True(t, list.Entries[1].Collected)
	assert.False(t, list.Entries[0].Collected)

	_, err = f.svc.StartReconciliation(ctx, audit.ID, "manager-1")
	require.NoError(t, err)
	_, err = f.svc.CountList(ctx, audit.ID, CountListFilter{})
	assert.True(t, IsInvalidState(err))
}
