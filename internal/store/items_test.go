package store

import (
	"testing"
	"time"

	"github.com/neogan74/auditledger/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItems_PutGetFind(t *testing.T) {
	engine := persistence.NewMemoryEngine()
	now := time.Now()

	item := &AuditItem{
		ID:        "item-1",
		AuditID:   "a1",
		AssetID:   "asset/1",
		Expected:  &ExpectedSnapshot{AssetCode: "PAT-1", LocationID: "loc-1", Condition: "GOOD"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, engine.Update(func(tx persistence.Txn) error {
		return PutItem(tx, item)
	}))

	require.NoError(t, engine.View(func(tx persistence.Txn) error {
		got, err := GetItem(tx, "a1", "item-1")
		require.NoError(t, err)
		assert.Equal(t, "PAT-1", got.Expected.AssetCode)
		assert.False(t, got.IsCollected())
		assert.False(t, got.IsExtra())

		found, err := FindItemByAsset(tx, "a1", "asset/1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "item-1", found.ID)

		missing, err := FindItemByAsset(tx, "a1", "asset-2")
		require.NoError(t, err)
		assert.Nil(t, missing)

		_, err = GetItem(tx, "a2", "item-1")
		assert.True(t, IsNotFound(err))
		return nil
	}))
}

func TestDeleteItem(t *testing.T) {
	engine := persistence.NewMemoryEngine()
	keep := &AuditItem{ID: "item-1", AuditID: "a1", AssetID: "asset-1"}
	drop := &AuditItem{ID: "item-2", AuditID: "a1", AssetID: "asset-2"}
	require.NoError(t, engine.Update(func(tx persistence.Txn) error {
		require.NoError(t, PutItem(tx, keep))
		return PutItem(tx, drop)
	}))

	require.NoError(t, engine.Update(func(tx persistence.Txn) error {
		return DeleteItem(tx, drop)
	}))

	require.NoError(t, engine.View(func(tx persistence.Txn) error {
		items, err := ListItems(tx, "a1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "item-1", items[0].ID)

		found, err := FindItemByAsset(tx, "a1", "asset-2")
		require.NoError(t, err)
		assert.Nil(t, found)
		return nil
	}))
}

func TestListItems_Order(t *testing.T) {
	engine := persistence.NewMemoryEngine()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	items := []*AuditItem{
		{ID: "z", AuditID: "a1", AssetID: "x1", Position: 0, CreatedAt: base},
		{ID: "b", AuditID: "a1", AssetID: "x2", Position: 1, CreatedAt: base},
		{ID: "extra-2", AuditID: "a1", AssetID: "x4", Position: 2, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "extra-1", AuditID: "a1", AssetID: "x3", Position: 2, CreatedAt: base.Add(time.Minute)},
		{ID: "other", AuditID: "a2", AssetID: "x1", Position: 0, CreatedAt: base},
	}
	require.NoError(t, engine.Update(func(tx persistence.Txn) error {
		for _, item := range items {
			if err := PutItem(tx, item); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, engine.View(func(tx persistence.Txn) error {
		got, err := ListItems(tx, "a1")
		require.NoError(t, err)

		ids := make([]string, 0, len(got))
		for _, item := range got {
			ids = append(ids, item.ID)
		}
		assert.Equal(t, []string{"z", "b", "extra-1", "extra-2"}, ids)
		return nil
	}))
}

func TestAuditItem_IsCollected(t *testing.T) {
	item := &AuditItem{Collected: &CollectedSnapshot{}}
	assert.False(t, item.IsCollected())

	item.Collected.CollectedAt = time.Now()
	assert.True(t, item.IsCollected())
	assert.True(t, item.IsExtra())
}
