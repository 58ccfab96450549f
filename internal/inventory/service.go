// Package inventory implements the physical inventory audit engine: item
// generation, collection, the audit lifecycle and reconciliation.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neogan74/auditledger/internal/directory"
	"github.com/neogan74/auditledger/internal/keylock"
	"github.com/neogan74/auditledger/internal/ledger"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/metrics"
	"github.com/neogan74/auditledger/internal/persistence"
	"github.com/neogan74/auditledger/internal/store"
	"github.com/neogan74/auditledger/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Service is the audit engine. It keeps no state between calls beyond what
// is committed to the persistence engine; the lock maps only serialize
// in-flight work.
type Service struct {
	engine     persistence.Engine
	ledger     *ledger.Ledger
	dir        directory.Directory
	clock      Clock
	auditLocks *keylock.Map
	opts       Options
	log        logger.Logger
}

// NewService wires the engine to its collaborators
func NewService(engine persistence.Engine, led *ledger.Ledger, dir directory.Directory, clock Clock, opts Options, log logger.Logger) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{
		engine:     engine,
		ledger:     led,
		dir:        dir,
		clock:      clock,
		auditLocks: keylock.New(),
		opts:       opts.withDefaults(),
		log:        log,
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.OperationTimeout)
}

// CreateAudit validates the scope, generates the expected item set and
// stores the audit in PLANNED status. Items are written in chunks of
// Options.ItemChunkSize before the audit record itself, so an audit is only
// visible once every item has landed; a failed create removes the chunks it
// wrote.
func (s *Service) CreateAudit(ctx context.Context, req CreateAuditRequest, actorID string) (*store.Audit, error) {
	ctx, span := telemetry.StartSpan(ctx, "inventory.CreateAudit", attribute.String("audit.code", req.Code))
	audit, err := s.createAudit(ctx, req, actorID)
	telemetry.EndSpan(span, err)
	return audit, err
}

func (s *Service) createAudit(ctx context.Context, req CreateAuditRequest, actorID string) (*store.Audit, error) {
	now := s.now()
	audit := &store.Audit{
		ID:           uuid.NewString(),
		Code:         req.Code,
		Name:         req.Name,
		Description:  req.Description,
		Type:         req.Type,
		Scope:        req.Scope,
		SampleSize:   req.SampleSize,
		Status:       store.StatusPlanned,
		PlannedStart: req.PlannedStart,
		PlannedEnd:   req.PlannedEnd,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.ValidateAudit(audit); err != nil {
		return nil, err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	gap, err := s.dir.MissingScope(opCtx, req.Scope.SectorIDs, req.Scope.LocationIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to validate audit scope: %w", err)
	}
	if !gap.Empty() {
		return nil, &ScopeNotFoundError{SectorIDs: gap.SectorIDs, LocationIDs: gap.LocationIDs}
	}

	candidates, err := s.dir.FindByScope(opCtx, req.Scope.SectorIDs, req.Scope.LocationIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load assets in scope: %w", err)
	}

	sampleSize := audit.SampleSize
	if sampleSize <= 0 {
		sampleSize = s.opts.SampleSize
	}
	selected := selectAssets(audit.Type, candidates, sampleSize, s.opts.CyclicStaleness, now)
	items := buildItems(audit.ID, selected, now)
	audit.TotalItems = len(items)

	if err := opCtx.Err(); err != nil {
		return nil, err
	}

	err = s.engine.View(func(tx persistence.Txn) error {
		return store.EnsureCodeAvailable(tx, audit.Code)
	})
	if err != nil {
		return nil, err
	}

	if err := s.writeItems(ctx, items); err != nil {
		s.discardItems(audit.ID, items)
		return nil, s.wrapConflict("audit", audit.ID, err)
	}
	err = s.engine.Update(func(tx persistence.Txn) error {
		return store.CreateAudit(tx, audit)
	})
	if err != nil {
		s.discardItems(audit.ID, items)
		return nil, s.wrapConflict("audit", audit.ID, err)
	}

	metrics.AuditsCreatedTotal.WithLabelValues(string(audit.Type)).Inc()
	metrics.AuditItemsGenerated.WithLabelValues(string(audit.Type)).Observe(float64(len(items)))
	s.log.Info("Audit created",
		logger.AuditID(audit.ID),
		logger.String("code", audit.Code),
		logger.String("type", string(audit.Type)),
		logger.Int("items", len(items)),
		logger.ActorID(actorID))

	return audit, nil
}

func (s *Service) writeItems(ctx context.Context, items []*store.AuditItem) error {
	for start := 0; start < len(items); start += s.opts.ItemChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := items[start:min(start+s.opts.ItemChunkSize, len(items))]
		err := s.engine.Update(func(tx persistence.Txn) error {
			for _, item := range chunk {
				if err := store.PutItem(tx, item); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write audit items: %w", err)
		}
	}
	return nil
}

// discardItems removes items of an audit that never got its record. Chunks
// that never landed are deleted as no-ops.
func (s *Service) discardItems(auditID string, items []*store.AuditItem) {
	for start := 0; start < len(items); start += s.opts.ItemChunkSize {
		chunk := items[start:min(start+s.opts.ItemChunkSize, len(items))]
		err := s.engine.Update(func(tx persistence.Txn) error {
			for _, item := range chunk {
				if err := store.DeleteItem(tx, item); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.log.Warn("Failed to discard items of an uncreated audit",
				logger.AuditID(auditID),
				logger.Int("offset", start),
				logger.Error(err))
		}
	}
}

// GetAudit returns one audit
func (s *Service) GetAudit(ctx context.Context, auditID string) (*store.Audit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var audit *store.Audit
	err := s.engine.View(func(tx persistence.Txn) error {
		var err error
		audit, err = store.GetAudit(tx, auditID)
		return err
	})
	return audit, err
}

// ListAudits returns audits matching filter, newest first
func (s *Service) ListAudits(ctx context.Context, filter store.AuditFilter) ([]*store.Audit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var audits []*store.Audit
	err := s.engine.View(func(tx persistence.Txn) error {
		var err error
		audits, err = store.ListAudits(tx, filter)
		return err
	})
	return audits, err
}

// ListItems returns the items of an audit in generation order
func (s *Service) ListItems(ctx context.Context, auditID string) ([]*store.AuditItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var items []*store.AuditItem
	err := s.engine.View(func(tx persistence.Txn) error {
		if _, err := store.GetAudit(tx, auditID); err != nil {
			return err
		}
		var err error
		items, err = store.ListItems(tx, auditID)
		return err
	})
	return items, err
}

// ReconciliationReport groups items by result with expected and found state
// side by side. It performs no writes.
func (s *Service) ReconciliationReport(ctx context.Context, auditID string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		audit *store.Audit
		items []*store.AuditItem
	)
	err := s.engine.View(func(tx persistence.Txn) error {
		var err error
		if audit, err = store.GetAudit(tx, auditID); err != nil {
			return err
		}
		if !audit.Status.ReachedReconciliation() {
			return &InvalidStateError{
				AuditID:   auditID,
				Operation: "reconciliation report",
				Current:   audit.Status,
				Allowed:   []store.Status{store.StatusReconciliation, store.StatusFinalized},
			}
		}
		items, err = store.ListItems(tx, auditID)
		return err
	})
	if err != nil {
		return nil, err
	}

	report := buildReport(audit, items)
	report.GeneratedAt = s.now()
	return report, nil
}

// VerifyChain replays the ledger of one asset
func (s *Service) VerifyChain(ctx context.Context, assetID string) (*ledger.VerificationResult, error) {
	return s.ledger.Verify(ctx, assetID)
}

// LedgerEntries returns the ledger history of one asset
func (s *Service) LedgerEntries(ctx context.Context, assetID string) ([]*ledger.Entry, error) {
	return s.ledger.Entries(ctx, assetID)
}

func (s *Service) wrapConflict(resource, id string, err error) error {
	if persistence.IsConflict(err) || store.IsCASConflict(err) {
		return &ConcurrentModificationError{Resource: resource, ID: id, Err: err}
	}
	return err
}
