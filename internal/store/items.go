package store

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/neogan74/auditledger/internal/persistence"
)

const (
	itemPrefix      = "item/"
	itemAssetPrefix = "item-asset/"
)

func itemsPrefix(auditID string) string {
	return itemPrefix + auditID + "/"
}

func itemAssetKey(auditID, assetID string) string {
	return itemAssetPrefix + auditID + "/" + url.PathEscape(assetID)
}

// PutItem creates or replaces an audit item and maintains the asset index
func PutItem(tx persistence.Txn, item *AuditItem) error {
	if item.AssetID != "" {
		if err := tx.Set(itemAssetKey(item.AuditID, item.AssetID), []byte(item.ID)); err != nil {
			return err
		}
	}
	return putJSON(tx, itemsPrefix(item.AuditID)+item.ID, item)
}

// DeleteItem removes an item and its asset index entry
func DeleteItem(tx persistence.Txn, item *AuditItem) error {
	if item.AssetID != "" {
		if err := tx.Delete(itemAssetKey(item.AuditID, item.AssetID)); err != nil {
			return err
		}
	}
	return tx.Delete(itemsPrefix(item.AuditID) + item.ID)
}

// GetItem loads one item of an audit
func GetItem(tx persistence.Txn, auditID, itemID string) (*AuditItem, error) {
	var item AuditItem
	if err := getJSON(tx, itemsPrefix(auditID)+itemID, &item); err != nil {
		if persistence.IsNotFound(err) {
			return nil, &NotFoundError{Type: "audit item", Key: itemID}
		}
		return nil, err
	}
	return &item, nil
}

// FindItemByAsset returns the item tracking assetID within an audit, or
// nil if the asset is not part of it.
func FindItemByAsset(tx persistence.Txn, auditID, assetID string) (*AuditItem, error) {
	id, err := tx.Get(itemAssetKey(auditID, assetID))
	if persistence.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read item index: %w", err)
	}
	return GetItem(tx, auditID, string(id))
}

// ListItems returns every item of an audit in generation order, extra
// items last in discovery order.
func ListItems(tx persistence.Txn, auditID string) ([]*AuditItem, error) {
	var items []*AuditItem
	err := tx.Scan(itemsPrefix(auditID), func(_ string, value []byte) error {
		var item AuditItem
		if err := json.Unmarshal(value, &item); err != nil {
			return fmt.Errorf("failed to decode audit item: %w", err)
		}
		items = append(items, &item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return items, nil
}
