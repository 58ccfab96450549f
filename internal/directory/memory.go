package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// MemoryDirectory is an in-process Directory used for local runs and tests.
type MemoryDirectory struct {
	mu        sync.RWMutex
	assets    map[string]*Asset
	byCode    map[string]string
	sectors   map[string]bool
	locations map[string]bool
}

// Seed is the JSON document accepted by LoadSeed.
type Seed struct {
	Sectors   []string `json:"sectors"`
	Locations []string `json:"locations"`
	Assets    []Asset  `json:"assets"`
}

// NewMemoryDirectory creates an empty directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		assets:    make(map[string]*Asset),
		byCode:    make(map[string]string),
		sectors:   make(map[string]bool),
		locations: make(map[string]bool),
	}
}

// LoadSeed reads a Seed document from path into a new directory
func LoadSeed(path string) (*MemoryDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory seed: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to decode directory seed: %w", err)
	}

	d := NewMemoryDirectory()
	d.AddSectors(seed.Sectors...)
	d.AddLocations(seed.Locations...)
	for _, asset := range seed.Assets {
		if err := d.Put(asset); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// AddSectors registers sector ids
func (d *MemoryDirectory) AddSectors(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.sectors[id] = true
	}
}

// AddLocations registers location ids
func (d *MemoryDirectory) AddLocations(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.locations[id] = true
	}
}

// Put adds or replaces an asset. Its sector and location become known.
func (d *MemoryDirectory) Put(asset Asset) error {
	if asset.ID == "" || asset.Code == "" {
		return fmt.Errorf("asset id and code are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if owner, ok := d.byCode[asset.Code]; ok && owner != asset.ID {
		return fmt.Errorf("asset code %q already assigned to %s", asset.Code, owner)
	}
	if previous, ok := d.assets[asset.ID]; ok && previous.Code != asset.Code {
		delete(d.byCode, previous.Code)
	}

	stored := asset
	d.assets[asset.ID] = &stored
	d.byCode[asset.Code] = asset.ID
	if asset.SectorID != "" {
		d.sectors[asset.SectorID] = true
	}
	if asset.LocationID != "" {
		d.locations[asset.LocationID] = true
	}
	return nil
}

// Get returns a copy of the asset with id
func (d *MemoryDirectory) Get(id string) (Asset, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	asset, ok := d.assets[id]
	if !ok {
		return Asset{}, false
	}
	return *asset, true
}

func (d *MemoryDirectory) FindByScope(ctx context.Context, sectorIDs, locationIDs []string) ([]Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sectors := toSet(sectorIDs)
	locations := toSet(locationIDs)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []Asset
	for _, asset := range d.assets {
		if !asset.Active {
			continue
		}
		if len(sectors) > 0 && !sectors[asset.SectorID] {
			continue
		}
		if len(locations) > 0 && !locations[asset.LocationID] {
			continue
		}
		result = append(result, *asset)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (d *MemoryDirectory) FindByCode(ctx context.Context, code string) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byCode[code]
	if !ok {
		return nil, nil
	}
	asset := *d.assets[id]
	return &asset, nil
}

func (d *MemoryDirectory) MarkVerified(ctx context.Context, assetID string, at time.Time) error {
	return d.MarkVerifiedBatch(ctx, []string{assetID}, at)
}

// MarkVerifiedBatch updates every asset or none
func (d *MemoryDirectory) MarkVerifiedBatch(ctx context.Context, assetIDs []string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range assetIDs {
		if _, ok := d.assets[id]; !ok {
			return fmt.Errorf("%w: %s", ErrAssetNotFound, id)
		}
	}
	for _, id := range assetIDs {
		verified := at
		d.assets[id].LastVerifiedAt = &verified
	}
	return nil
}

func (d *MemoryDirectory) MissingScope(ctx context.Context, sectorIDs, locationIDs []string) (ScopeGap, error) {
	if err := ctx.Err(); err != nil {
		return ScopeGap{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var gap ScopeGap
	for _, id := range sectorIDs {
		if !d.sectors[id] {
			gap.SectorIDs = append(gap.SectorIDs, id)
		}
	}
	for _, id := range locationIDs {
		if !d.locations[id] {
			gap.LocationIDs = append(gap.LocationIDs, id)
		}
	}
	return gap, nil
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
