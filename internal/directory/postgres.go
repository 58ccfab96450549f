package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/neogan74/auditledger/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type assetRow struct {
	ID               string `gorm:"primaryKey;size:64"`
	Code             string `gorm:"uniqueIndex;size:64;not null"`
	Description      string
	SectorID         string `gorm:"index;size:64"`
	LocationID       string `gorm:"index;size:64"`
	CustodianID      string `gorm:"size:64"`
	Condition        string `gorm:"size:64"`
	AcquisitionValue float64
	LastVerifiedAt   *time.Time
	Active           bool `gorm:"index;default:true"`
	DivergenceCount  int  `gorm:"default:0"`
}

func (assetRow) TableName() string { return "assets" }

func (r assetRow) toAsset() Asset {
	return Asset{
		ID:               r.ID,
		Code:             r.Code,
		Description:      r.Description,
		SectorID:         r.SectorID,
		LocationID:       r.LocationID,
		CustodianID:      r.CustodianID,
		Condition:        r.Condition,
		AcquisitionValue: r.AcquisitionValue,
		LastVerifiedAt:   r.LastVerifiedAt,
		Active:           r.Active,
		DivergenceCount:  r.DivergenceCount,
	}
}

type sectorRow struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string
}

func (sectorRow) TableName() string { return "sectors" }

type locationRow struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string
}

func (locationRow) TableName() string { return "locations" }

// PostgresDirectory reads the asset catalog from a relational database.
type PostgresDirectory struct {
	db  *gorm.DB
	log logger.Logger
}

// OpenPostgres connects to dsn
func OpenPostgres(dsn string, log logger.Logger) (*PostgresDirectory, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to asset directory: %w", err)
	}
	log.Info("Connected to postgres asset directory")
	return NewPostgresDirectory(db, log), nil
}

// NewPostgresDirectory wraps an existing gorm handle
func NewPostgresDirectory(db *gorm.DB, log logger.Logger) *PostgresDirectory {
	return &PostgresDirectory{db: db, log: log}
}

// Migrate creates the catalog tables if they do not exist
func (d *PostgresDirectory) Migrate(ctx context.Context) error {
	return d.db.WithContext(ctx).AutoMigrate(&sectorRow{}, &locationRow{}, &assetRow{})
}

// Ping checks that the database is reachable
func (d *PostgresDirectory) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool
func (d *PostgresDirectory) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *PostgresDirectory) scopeQuery(ctx context.Context, sectorIDs, locationIDs []string) *gorm.DB {
	query := d.db.WithContext(ctx).Model(&assetRow{}).Where("active = ?", true)
	if len(sectorIDs) > 0 {
		query = query.Where("sector_id IN ?", sectorIDs)
	}
	if len(locationIDs) > 0 {
		query = query.Where("location_id IN ?", locationIDs)
	}
	return query.Order("code")
}

func (d *PostgresDirectory) FindByScope(ctx context.Context, sectorIDs, locationIDs []string) ([]Asset, error) {
	var rows []assetRow
	if err := d.scopeQuery(ctx, sectorIDs, locationIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query assets in scope: %w", err)
	}

	assets := make([]Asset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, row.toAsset())
	}
	return assets, nil
}

func (d *PostgresDirectory) FindByCode(ctx context.Context, code string) (*Asset, error) {
	var rows []assetRow
	if err := d.db.WithContext(ctx).Where("code = ?", code).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query asset by code: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	asset := rows[0].toAsset()
	return &asset, nil
}

func (d *PostgresDirectory) MarkVerified(ctx context.Context, assetID string, at time.Time) error {
	result := d.db.WithContext(ctx).Model(&assetRow{}).Where("id = ?", assetID).Update("last_verified_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark asset verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	return nil
}

// MarkVerifiedBatch updates every asset in one transaction, or none
func (d *PostgresDirectory) MarkVerifiedBatch(ctx context.Context, assetIDs []string, at time.Time) error {
	if len(assetIDs) == 0 {
		return nil
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&assetRow{}).Where("id IN ?", assetIDs).Update("last_verified_at", at)
		if result.Error != nil {
			return fmt.Errorf("failed to mark assets verified: %w", result.Error)
		}
		if result.RowsAffected != int64(len(assetIDs)) {
			return fmt.Errorf("%w: %d of %d assets updated", ErrAssetNotFound, result.RowsAffected, len(assetIDs))
		}
		d.log.Debug("Marked assets verified", logger.Int("count", len(assetIDs)))
		return nil
	})
}

func (d *PostgresDirectory) MissingScope(ctx context.Context, sectorIDs, locationIDs []string) (ScopeGap, error) {
	var gap ScopeGap

	missingSectors, err := d.missingIDs(ctx, &sectorRow{}, sectorIDs)
	if err != nil {
		return gap, err
	}
	missingLocations, err := d.missingIDs(ctx, &locationRow{}, locationIDs)
	if err != nil {
		return gap, err
	}

	gap.SectorIDs = missingSectors
	gap.LocationIDs = missingLocations
	return gap, nil
}

func (d *PostgresDirectory) missingIDs(ctx context.Context, model any, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []string
	if err := d.db.WithContext(ctx).Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to check scope references: %w", err)
	}

	known := toSet(found)
	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
