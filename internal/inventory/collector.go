package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neogan74/auditledger/internal/directory"
	"github.com/neogan74/auditledger/internal/ledger"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/metrics"
	"github.com/neogan74/auditledger/internal/persistence"
	"github.com/neogan74/auditledger/internal/store"
	"github.com/neogan74/auditledger/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// resolved is a reading bound to the asset whose chain it extends.
type resolved struct {
	index   int
	reading Reading
	itemID  string
	assetID string
}

// batch accumulates per-reading outcomes from concurrent groups.
type batch struct {
	mu        sync.Mutex
	successes []ReadingSuccess
	failures  []ReadingFailure
}

func (b *batch) succeed(s ReadingSuccess) {
	b.mu.Lock()
	b.successes = append(b.successes, s)
	b.mu.Unlock()
	metrics.ReadingsTotal.WithLabelValues(string(s.Result)).Inc()
}

func (b *batch) fail(index int, r Reading, reason FailureReason, msg string) {
	b.mu.Lock()
	b.failures = append(b.failures, ReadingFailure{
		Index:   index,
		Reason:  reason,
		Message: msg,
		ItemID:  r.ItemID,
		Code:    r.Code,
	})
	b.mu.Unlock()
	metrics.ReadingsTotal.WithLabelValues(string(reason)).Inc()
}

func (b *batch) result(auditID string) *BatchResult {
	sort.Slice(b.successes, func(i, j int) bool { return b.successes[i].Index < b.successes[j].Index })
	sort.Slice(b.failures, func(i, j int) bool { return b.failures[i].Index < b.failures[j].Index })
	res := &BatchResult{AuditID: auditID, Successes: b.successes, Failures: b.failures}
	if res.Successes == nil {
		res.Successes = []ReadingSuccess{}
	}
	if res.Failures == nil {
		res.Failures = []ReadingFailure{}
	}
	return res
}

// Collect applies a batch of field readings to an IN_PROGRESS audit. Each
// reading commits or rolls back on its own; the returned error is reserved
// for failures of the whole call.
func (s *Service) Collect(ctx context.Context, auditID string, readings []Reading, actorID string) (*BatchResult, error) {
	if len(readings) == 0 {
		return nil, ErrEmptyBatch
	}

	ctx, span := telemetry.StartSpan(ctx, "inventory.Collect",
		attribute.String("audit.id", auditID),
		attribute.Int("readings", len(readings)))
	start := time.Now()

	res, err := s.collect(ctx, auditID, readings, actorID)

	metrics.CollectBatchDuration.Observe(time.Since(start).Seconds())
	metrics.CollectBatchSize.Observe(float64(len(readings)))
	telemetry.EndSpan(span, err)

	if err != nil {
		return nil, err
	}
	s.log.Info("Readings collected",
		logger.AuditID(auditID),
		logger.ActorID(actorID),
		logger.Int("applied", len(res.Successes)),
		logger.Int("rejected", len(res.Failures)))
	return res, nil
}

func (s *Service) collect(ctx context.Context, auditID string, readings []Reading, actorID string) (*BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []*store.AuditItem
	err := s.engine.View(func(tx persistence.Txn) error {
		audit, err := store.GetAudit(tx, auditID)
		if err != nil {
			return err
		}
		if audit.Status != store.StatusInProgress {
			return &InvalidStateError{
				AuditID:   auditID,
				Operation: "collect",
				Current:   audit.Status,
				Allowed:   []store.Status{store.StatusInProgress},
			}
		}
		items, err = store.ListItems(tx, auditID)
		return err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*store.AuditItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	out := &batch{}
	var (
		order  []string
		groups = make(map[string][]resolved)
	)
	for i, r := range readings {
		if ctx.Err() != nil {
			out.fail(i, r, FailureNotAttempted, "batch cancelled before the reading was processed")
			continue
		}
		res, reason, msg := s.resolve(ctx, i, r, byID)
		if reason != "" {
			out.fail(i, r, reason, msg)
			continue
		}
		if _, ok := groups[res.assetID]; !ok {
			order = append(order, res.assetID)
		}
		groups[res.assetID] = append(groups[res.assetID], res)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.CollectConcurrency)
	for _, assetID := range order {
		group := groups[assetID]
		g.Go(func() error {
			for _, r := range group {
				if gctx.Err() != nil {
					out.fail(r.index, r.reading, FailureNotAttempted, "batch stopped before the reading was processed")
					continue
				}
				success, err := s.apply(gctx, auditID, actorID, r)
				if err != nil {
					if errors.Is(err, ledger.ErrCanonicalization) {
						return fmt.Errorf("reading %d: %w", r.index, err)
					}
					reason := failureReason(err)
					if reason == FailureStorage {
						s.log.Error("Failed to apply reading",
							logger.AuditID(auditID),
							logger.AssetID(r.assetID),
							logger.Error(err))
					}
					out.fail(r.index, r.reading, reason, err.Error())
					continue
				}
				out.succeed(*success)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out.result(auditID), nil
}

// resolve binds a reading to an asset. It returns a failure reason when
// the reading cannot be applied.
func (s *Service) resolve(ctx context.Context, index int, r Reading, byID map[string]*store.AuditItem) (resolved, FailureReason, string) {
	res := resolved{index: index, reading: r}

	snapshot := &store.CollectedSnapshot{
		Code:        r.Code,
		LocationID:  r.LocationID,
		Condition:   r.Condition,
		Notes:       r.Notes,
		EvidenceRef: r.EvidenceRef,
	}
	if err := store.ValidateCollected(snapshot); err != nil {
		return res, FailureInvalidReading, err.Error()
	}
	if r.CollectedAt != nil {
		if err := store.ValidateCollectedAt(*r.CollectedAt, s.now()); err != nil {
			return res, FailureInvalidReading, err.Error()
		}
	}

	if r.ItemID != "" {
		if item, ok := byID[r.ItemID]; ok {
			res.itemID = item.ID
			res.assetID = item.AssetID
			return res, "", ""
		}
		if r.Code == nil {
			return res, FailureUnknownItem, fmt.Sprintf("item %s does not belong to this audit", r.ItemID)
		}
	}
	if r.Code == nil {
		return res, FailureInvalidReading, "item_id is required when no code was read"
	}
	if *r.Code == "" {
		return res, FailureInvalidReading, "code must not be empty"
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	asset, err := s.dir.FindByCode(opCtx, *r.Code)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return res, FailureTimeout, err.Error()
	case errors.Is(err, directory.ErrAssetNotFound) || (err == nil && asset == nil):
		return res, FailureUnknownCode, fmt.Sprintf("%s: %s", ErrUnknownCode, *r.Code)
	case err != nil:
		return res, FailureDirectory, err.Error()
	}

	res.assetID = asset.ID
	return res, "", ""
}

// apply commits one reading: the item update and its ledger entry share
// one transaction.
func (s *Service) apply(ctx context.Context, auditID, actorID string, r resolved) (*ReadingSuccess, error) {
	unlock := s.ledger.Lock(r.assetID)
	defer unlock()

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var success *ReadingSuccess
	err := s.engine.Update(func(tx persistence.Txn) error {
		if err := opCtx.Err(); err != nil {
			return err
		}

		audit, err := store.GetAudit(tx, auditID)
		if err != nil {
			return err
		}
		if audit.Status != store.StatusInProgress {
			return &InvalidStateError{
				AuditID:   auditID,
				Operation: "collect",
				Current:   audit.Status,
				Allowed:   []store.Status{store.StatusInProgress},
			}
		}

		now := s.now()
		item, err := s.itemFor(tx, audit, r, now)
		if err != nil {
			return err
		}

		reading := r.reading
		result, reasons := Classify(item.Expected, Observation{
			Code:       reading.Code,
			LocationID: reading.LocationID,
			Condition:  reading.Condition,
		})

		correction := item.IsCollected()
		var change *ledger.Change
		if correction {
			item.Corrections++
			change = &ledger.Change{Field: "result", OldValue: string(item.Result), NewValue: string(result)}
		}

		collectedAt := now
		if reading.CollectedAt != nil {
			collectedAt = reading.CollectedAt.UTC()
		}
		item.Collected = &store.CollectedSnapshot{
			Code:        reading.Code,
			LocationID:  reading.LocationID,
			Condition:   reading.Condition,
			Notes:       reading.Notes,
			EvidenceRef: reading.EvidenceRef,
			CollectorID: actorID,
			CollectedAt: collectedAt,
		}
		item.Result = result
		item.Reasons = reasons
		item.UpdatedAt = now
		if err := store.PutItem(tx, item); err != nil {
			return err
		}

		entry, err := s.ledger.AppendTx(tx, ledger.Record{
			AssetID:   item.AssetID,
			Action:    ActionAuditRead,
			Subject:   ledger.Subject{Table: ItemsTable, RecordID: item.ID},
			Change:    change,
			Payload:   readPayload(audit, item, actorID, correction),
			ActorID:   actorID,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		if err := opCtx.Err(); err != nil {
			return err
		}

		success = &ReadingSuccess{
			Index:      r.index,
			ItemID:     item.ID,
			AssetID:    item.AssetID,
			Result:     result,
			Reasons:    reasons,
			EntryID:    entry.ID,
			Correction: correction,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return success, nil
}

// itemFor loads the item a reading applies to, creating an EXTRA item for
// an asset the audit did not expect.
func (s *Service) itemFor(tx persistence.Txn, audit *store.Audit, r resolved, now time.Time) (*store.AuditItem, error) {
	if r.itemID != "" {
		return store.GetItem(tx, audit.ID, r.itemID)
	}

	item, err := store.FindItemByAsset(tx, audit.ID, r.assetID)
	if err != nil || item != nil {
		return item, err
	}

	return &store.AuditItem{
		ID:        uuid.NewString(),
		AuditID:   audit.ID,
		AssetID:   r.assetID,
		Position:  audit.TotalItems,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func readPayload(audit *store.Audit, item *store.AuditItem, actorID string, correction bool) ledger.Payload {
	reasons := make([]string, len(item.Reasons))
	for i, r := range item.Reasons {
		reasons[i] = string(r)
	}

	payload := ledger.Payload{
		"audit_id":           audit.ID,
		"audit_status":       string(audit.Status),
		"item_id":            item.ID,
		"collector_id":       actorID,
		"scanned_code":       item.Collected.Code,
		"found_location_id":  item.Collected.LocationID,
		"found_condition":    item.Collected.Condition,
		"result":             string(item.Result),
		"divergence_reasons": reasons,
		"correction":         correction,
	}
	if item.Collected.Notes != "" {
		payload["notes"] = item.Collected.Notes
	}
	if item.Collected.EvidenceRef != "" {
		payload["evidence_ref"] = item.Collected.EvidenceRef
	}
	return payload
}

func failureReason(err error) FailureReason {
	switch {
	case IsInvalidState(err), persistence.IsConflict(err), store.IsCASConflict(err):
		return FailureConcurrentModification
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureNotAttempted
	case store.IsNotFound(err):
		return FailureUnknownItem
	default:
		return FailureStorage
	}
}
