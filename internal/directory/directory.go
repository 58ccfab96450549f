// Package directory adapts the external asset catalog consumed by the
// inventory engine.
package directory

import (
	"context"
	"errors"
	"time"
)

// ErrAssetNotFound is returned by MarkVerified for an unknown asset id.
var ErrAssetNotFound = errors.New("asset not found")

// Asset is the directory's view of one tracked asset.
type Asset struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	Description      string     `json:"description,omitempty"`
	SectorID         string     `json:"sector_id,omitempty"`
	LocationID       string     `json:"location_id,omitempty"`
	CustodianID      string     `json:"custodian_id,omitempty"`
	Condition        string     `json:"condition,omitempty"`
	AcquisitionValue float64    `json:"acquisition_value"`
	LastVerifiedAt   *time.Time `json:"last_verified_at,omitempty"`
	Active           bool       `json:"active"`
	DivergenceCount  int        `json:"divergence_count"`
}

// ScopeGap lists scope references the directory does not know.
type ScopeGap struct {
	SectorIDs   []string `json:"sector_ids,omitempty"`
	LocationIDs []string `json:"location_ids,omitempty"`
}

// Empty reports whether every scope reference resolved
func (g ScopeGap) Empty() bool {
	return len(g.SectorIDs) == 0 && len(g.LocationIDs) == 0
}

// Directory is the asset catalog. Sector and location filters are combined
// with AND; an empty filter matches everything.
type Directory interface {
	// FindByScope returns active assets in scope ordered by code.
	FindByScope(ctx context.Context, sectorIDs, locationIDs []string) ([]Asset, error)
	// FindByCode returns the asset carrying code, or nil if none does.
	FindByCode(ctx context.Context, code string) (*Asset, error)
	MarkVerified(ctx context.Context, assetID string, at time.Time) error
	MissingScope(ctx context.Context, sectorIDs, locationIDs []string) (ScopeGap, error)
}

// BatchVerifier is implemented by directories that can propagate many
// verification timestamps in one round trip.
type BatchVerifier interface {
	MarkVerifiedBatch(ctx context.Context, assetIDs []string, at time.Time) error
}

// Pinger is implemented by directories backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
