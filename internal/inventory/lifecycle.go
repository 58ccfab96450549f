package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neogan74/auditledger/internal/directory"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/metrics"
	"github.com/neogan74/auditledger/internal/persistence"
	"github.com/neogan74/auditledger/internal/store"
	"github.com/neogan74/auditledger/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var transitions = map[store.Status][]store.Status{
	store.StatusPlanned:        {store.StatusInProgress, store.StatusCancelled},
	store.StatusInProgress:     {store.StatusReconciliation, store.StatusCancelled},
	store.StatusReconciliation: {store.StatusFinalized},
}

// CanTransition reports whether the state machine allows from -> to
func CanTransition(from, to store.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition runs apply on the current audit under the per-audit lock and
// saves it with a ModifyIndex check, all inside one transaction.
func (s *Service) transition(ctx context.Context, auditID, actorID string, to store.Status, apply func(tx persistence.Txn, audit *store.Audit) error) (*store.Audit, error) {
	ctx, span := telemetry.StartSpan(ctx, "inventory.Transition",
		attribute.String("audit.id", auditID),
		attribute.String("audit.to", string(to)))

	unlock := s.auditLocks.Lock(auditID)
	defer unlock()

	var (
		saved *store.Audit
		from  store.Status
	)
	err := ctx.Err()
	if err == nil {
		err = s.engine.Update(func(tx persistence.Txn) error {
			audit, err := store.GetAudit(tx, auditID)
			if err != nil {
				return err
			}
			from = audit.Status
			if !CanTransition(audit.Status, to) {
				return &InvalidTransitionError{AuditID: auditID, Current: audit.Status, Requested: to}
			}

			expected := audit.ModifyIndex
			if apply != nil {
				if err := apply(tx, audit); err != nil {
					return err
				}
			}
			audit.Status = to
			audit.UpdatedAt = s.now()
			if err := store.SaveAuditCAS(tx, audit, expected); err != nil {
				return err
			}
			saved = audit
			return nil
		})
		err = s.wrapConflict("audit", auditID, err)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	if from != "" {
		metrics.AuditTransitionsTotal.WithLabelValues(string(from), string(to), status).Inc()
	}
	telemetry.EndSpan(span, err)

	if err != nil {
		return nil, err
	}
	s.log.Info("Audit status changed",
		logger.AuditID(auditID),
		logger.String("from", string(from)),
		logger.String("to", string(to)),
		logger.ActorID(actorID))
	return saved, nil
}

// StartAudit moves a PLANNED audit to IN_PROGRESS.
func (s *Service) StartAudit(ctx context.Context, auditID, actorID string) (*store.Audit, error) {
	return s.transition(ctx, auditID, actorID, store.StatusInProgress, func(_ persistence.Txn, audit *store.Audit) error {
		if audit.StartedAt != nil {
			return &InvalidTransitionError{
				AuditID:   auditID,
				Current:   audit.Status,
				Requested: store.StatusInProgress,
				Detail:    "audit was already started",
			}
		}
		now := s.now()
		audit.StartedAt = &now
		return nil
	})
}

// StartReconciliation closes collection and stores the aggregate counters.
func (s *Service) StartReconciliation(ctx context.Context, auditID, actorID string) (*Summary, error) {
	var summary Summary
	_, err := s.transition(ctx, auditID, actorID, store.StatusReconciliation, func(tx persistence.Txn, audit *store.Audit) error {
		items, err := store.ListItems(tx, auditID)
		if err != nil {
			return err
		}
		summary = Summarize(auditID, items, audit.TotalItems)
		if summary.Collected+summary.Extra == 0 {
			return ErrEmptyCollectionSet
		}
		applySummary(audit, summary)
		now := s.now()
		audit.ReconciliationAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// CancelAudit abandons a PLANNED or IN_PROGRESS audit.
func (s *Service) CancelAudit(ctx context.Context, auditID, actorID string) (*store.Audit, error) {
	return s.transition(ctx, auditID, actorID, store.StatusCancelled, func(_ persistence.Txn, audit *store.Audit) error {
		now := s.now()
		audit.CancelledAt = &now
		return nil
	})
}

// FinalizeAudit marks every CONFORMANT asset as verified in the directory
// and closes the audit. The directory is updated before the status change
// is committed; a failed directory call leaves the audit in RECONCILIATION
// so the request can be repeated.
func (s *Service) FinalizeAudit(ctx context.Context, auditID, actorID, notes string) (*store.Audit, error) {
	if len(notes) > store.MaxNotesLength {
		return nil, &store.ValidationError{Field: "notes", Message: fmt.Sprintf("too long: %d chars (max %d)", len(notes), store.MaxNotesLength)}
	}

	ctx, span := telemetry.StartSpan(ctx, "inventory.FinalizeAudit", attribute.String("audit.id", auditID))
	audit, err := s.finalize(ctx, auditID, actorID, notes)
	telemetry.EndSpan(span, err)
	return audit, err
}

func (s *Service) finalize(ctx context.Context, auditID, actorID, notes string) (*store.Audit, error) {
	unlock := s.auditLocks.Lock(auditID)
	defer unlock()

	var (
		audit *store.Audit
		items []*store.AuditItem
	)
	err := s.engine.View(func(tx persistence.Txn) error {
		var err error
		if audit, err = store.GetAudit(tx, auditID); err != nil {
			return err
		}
		if !CanTransition(audit.Status, store.StatusFinalized) {
			return &InvalidTransitionError{AuditID: auditID, Current: audit.Status, Requested: store.StatusFinalized}
		}
		items, err = store.ListItems(tx, auditID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var verified []string
	for _, item := range items {
		if !item.IsExtra() && item.IsCollected() && item.Result == store.ResultConformant {
			verified = append(verified, item.AssetID)
		}
	}

	// Stamped before the save; a retry after a failed save stamps again.
	now := s.now()
	missing, err := s.markVerified(ctx, verified, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark conformant assets as verified: %w", err)
	}
	if len(missing) > 0 {
		s.log.Warn("Conformant assets missing from the catalog were not marked verified",
			logger.AuditID(auditID),
			logger.Strings("asset_ids", missing))
	}
	metrics.AssetsMarkedVerifiedTotal.Add(float64(len(verified) - len(missing)))

	expected := audit.ModifyIndex
	from := audit.Status
	err = s.engine.Update(func(tx persistence.Txn) error {
		audit.Status = store.StatusFinalized
		audit.FinalizedAt = &now
		audit.FinalizedBy = actorID
		audit.FinalNotes = notes
		audit.UpdatedAt = now
		return store.SaveAuditCAS(tx, audit, expected)
	})
	err = s.wrapConflict("audit", auditID, err)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.AuditTransitionsTotal.WithLabelValues(string(from), string(store.StatusFinalized), status).Inc()
	if err != nil {
		return nil, err
	}

	s.log.Info("Audit finalized",
		logger.AuditID(auditID),
		logger.ActorID(actorID),
		logger.Int("verified_assets", len(verified)))
	return audit, nil
}

// markVerified stamps every asset with at and returns the ids the catalog
// no longer holds. A missing asset is skipped, any other error aborts.
func (s *Service) markVerified(ctx context.Context, assetIDs []string, at time.Time) ([]string, error) {
	batcher, ok := s.dir.(directory.BatchVerifier)
	if !ok {
		return s.markEach(ctx, assetIDs, at)
	}

	var missing []string
	for start := 0; start < len(assetIDs); start += s.opts.VerifyBatchSize {
		chunk := assetIDs[start:min(start+s.opts.VerifyBatchSize, len(assetIDs))]
		opCtx, cancel := s.withTimeout(ctx)
		err := batcher.MarkVerifiedBatch(opCtx, chunk, at)
		cancel()
		if errors.Is(err, directory.ErrAssetNotFound) {
			// batches are all or nothing, so find the gap one by one
			gone, err := s.markEach(ctx, chunk, at)
			if err != nil {
				return nil, err
			}
			missing = append(missing, gone...)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return missing, nil
}

func (s *Service) markEach(ctx context.Context, assetIDs []string, at time.Time) ([]string, error) {
	var missing []string
	for _, id := range assetIDs {
		opCtx, cancel := s.withTimeout(ctx)
		err := s.dir.MarkVerified(opCtx, id, at)
		cancel()
		if errors.Is(err, directory.ErrAssetNotFound) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", id, err)
		}
	}
	return missing, nil
}
