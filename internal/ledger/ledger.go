// Package ledger implements the per-asset tamper-evident event chain.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/neogan74/auditledger/internal/keylock"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/metrics"
	"github.com/neogan74/auditledger/internal/persistence"
	"github.com/neogan74/auditledger/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

const (
	headPrefix  = "ledger/head/"
	entryPrefix = "ledger/entries/"
)

// Record is the caller-supplied part of a new entry.
type Record struct {
	AssetID   string
	Action    string
	Subject   Subject
	Change    *Change
	Payload   Payload
	ActorID   string
	CreatedAt time.Time
}

// head tracks the tip of one asset chain.
type head struct {
	Seq        uint64 `json:"seq"`
	RecordHash string `json:"record_hash"`
	EntryID    string `json:"entry_id"`
}

// VerificationResult is the outcome of replaying one asset chain.
type VerificationResult struct {
	AssetID             string    `json:"asset_id"`
	Valid               bool      `json:"valid"`
	Entries             int       `json:"entries"`
	FirstInvalidEntryID string    `json:"first_invalid_entry_id,omitempty"`
	Reason              string    `json:"reason,omitempty"`
	VerifiedAt          time.Time `json:"verified_at"`
}

// Violation returns the failure as an error, or nil for a valid chain.
func (r *VerificationResult) Violation() *ChainIntegrityViolationError {
	if r.Valid {
		return nil
	}
	return &ChainIntegrityViolationError{AssetID: r.AssetID, EntryID: r.FirstInvalidEntryID, Reason: r.Reason}
}

// Ledger appends and verifies asset chains stored in a persistence engine.
type Ledger struct {
	engine persistence.Engine
	signer *Signer
	locks  *keylock.Map
	now    func() time.Time
	log    logger.Logger
}

// New creates a ledger over engine
func New(engine persistence.Engine, signer *Signer, log logger.Logger) *Ledger {
	return &Ledger{
		engine: engine,
		signer: signer,
		locks:  keylock.New(),
		now:    time.Now,
		log:    log,
	}
}

// Lock serializes appends for one asset. Callers of AppendTx must hold it
// until their transaction has committed.
func (l *Ledger) Lock(assetID string) (unlock func()) {
	return l.locks.Lock(assetID)
}

// Append adds one entry to the asset chain in its own transaction.
func (l *Ledger) Append(ctx context.Context, rec Record) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := l.Lock(rec.AssetID)
	defer unlock()

	var entry *Entry
	err := l.engine.Update(func(tx persistence.Txn) error {
		var err error
		entry, err = l.AppendTx(tx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AppendTx builds, signs and stages the next entry for rec.AssetID inside
// tx. The head record is rewritten in the same transaction, so two
// transactions racing on one asset conflict at commit.
func (l *Ledger) AppendTx(tx persistence.Txn, rec Record) (*Entry, error) {
	if rec.AssetID == "" || rec.Action == "" {
		metrics.LedgerAppendsTotal.WithLabelValues(rec.Action, "invalid").Inc()
		return nil, fmt.Errorf("%w: asset id and action are required", ErrInvalidRecord)
	}

	payload, err := normalizeMap(rec.Payload)
	if err != nil {
		metrics.LedgerAppendsTotal.WithLabelValues(rec.Action, "invalid").Inc()
		return nil, err
	}

	tip, err := readHead(tx, rec.AssetID)
	if err != nil {
		metrics.LedgerAppendsTotal.WithLabelValues(rec.Action, "error").Inc()
		return nil, err
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = l.now()
	}

	entry := &Entry{
		ID:                 uuid.NewString(),
		AssetID:            rec.AssetID,
		Seq:                tip.Seq + 1,
		Action:             rec.Action,
		Subject:            rec.Subject,
		Change:             rec.Change,
		Payload:            payload,
		PreviousHash:       tip.RecordHash,
		SignatureAlgorithm: l.signer.Algorithm(),
		ActorID:            rec.ActorID,
		CreatedAt:          createdAt.UTC(),
	}

	entry.RecordHash, err = entry.ComputeHash()
	if err != nil {
		metrics.LedgerAppendsTotal.WithLabelValues(rec.Action, "invalid").Inc()
		return nil, err
	}
	entry.Signature = l.signer.Sign(entry.PreviousHash, entry.RecordHash)

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger entry: %w", err)
	}
	if err := tx.Set(entryKey(rec.AssetID, entry.Seq), data); err != nil {
		metrics.LedgerAppendsTotal.WithLabelValues(rec.Action, "error").Inc()
		return nil, err
	}

	headData, err := json.Marshal(head{Seq: entry.Seq, RecordHash: entry.RecordHash, EntryID: entry.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger head: %w", err)
	}
	if err := tx.Set(headKey(rec.AssetID), headData); err != nil {
		metrics.LedgerAppendsTotal.WithLabelValues(rec.Action, "error").Inc()
		return nil, err
	}

	metrics.LedgerAppendsTotal.WithLabelValues(rec.Action, "success").Inc()
	return entry, nil
}

// Entries returns the chain for assetID in creation order.
func (l *Ledger) Entries(ctx context.Context, assetID string) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := l.engine.View(func(tx persistence.Txn) error {
		var err error
		entries, err = scanEntries(tx, assetID)
		return err
	})
	return entries, err
}

// Verify replays the chain for assetID, recomputing every record hash and
// signature. A broken chain is reported in the result, not as an error.
func (l *Ledger) Verify(ctx context.Context, assetID string) (*VerificationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.Verify", attribute.String("asset.id", assetID))
	start := time.Now()

	var (
		entries []*Entry
		tip     head
	)
	err := ctx.Err()
	if err == nil {
		err = l.engine.View(func(tx persistence.Txn) error {
			var err error
			if entries, err = scanEntries(tx, assetID); err != nil {
				return err
			}
			tip, err = readHead(tx, assetID)
			return err
		})
	}
	if err != nil {
		telemetry.EndSpan(span, err)
		return nil, err
	}

	result := l.replay(assetID, entries, tip)
	metrics.LedgerVerifyDuration.Observe(time.Since(start).Seconds())

	if result.Valid {
		metrics.LedgerVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		metrics.LedgerVerificationsTotal.WithLabelValues("invalid").Inc()
		l.log.Warn("Ledger chain integrity violation",
			logger.AssetID(assetID),
			logger.String("entry_id", result.FirstInvalidEntryID),
			logger.String("reason", result.Reason))
	}
	span.SetAttributes(attribute.Bool("ledger.valid", result.Valid), attribute.Int("ledger.entries", result.Entries))
	telemetry.EndSpan(span, nil)

	return result, nil
}

func (l *Ledger) replay(assetID string, entries []*Entry, tip head) *VerificationResult {
	result := &VerificationResult{
		AssetID:    assetID,
		Valid:      true,
		Entries:    len(entries),
		VerifiedAt: l.now().UTC(),
	}
	fail := func(entryID, reason string) *VerificationResult {
		result.Valid = false
		result.FirstInvalidEntryID = entryID
		result.Reason = reason
		return result
	}

	previous := ""
	for i, entry := range entries {
		if entry.Seq != uint64(i+1) {
			return fail(entry.ID, fmt.Sprintf("sequence gap: expected %d, found %d", i+1, entry.Seq))
		}
		if entry.AssetID != assetID {
			return fail(entry.ID, "entry belongs to asset "+entry.AssetID)
		}
		if entry.PreviousHash != previous {
			return fail(entry.ID, "previous hash does not match prior record hash")
		}
		if entry.SignatureAlgorithm != l.signer.Algorithm() {
			return fail(entry.ID, "unsupported signature algorithm "+entry.SignatureAlgorithm)
		}
		recomputed, err := entry.ComputeHash()
		if err != nil {
			return fail(entry.ID, "payload cannot be canonicalized: "+err.Error())
		}
		if recomputed != entry.RecordHash {
			return fail(entry.ID, "record hash mismatch")
		}
		if !l.signer.Verify(previous, recomputed, entry.Signature) {
			return fail(entry.ID, "signature mismatch")
		}
		previous = entry.RecordHash
	}

	if tip.Seq != uint64(len(entries)) || tip.RecordHash != previous {
		return fail(tip.EntryID, fmt.Sprintf("chain head at seq %d does not match %d stored entries", tip.Seq, len(entries)))
	}
	return result
}

func readHead(tx persistence.Txn, assetID string) (head, error) {
	var tip head
	data, err := tx.Get(headKey(assetID))
	if persistence.IsNotFound(err) {
		return tip, nil
	}
	if err != nil {
		return tip, fmt.Errorf("failed to read ledger head: %w", err)
	}
	if err := json.Unmarshal(data, &tip); err != nil {
		return tip, fmt.Errorf("failed to decode ledger head: %w", err)
	}
	return tip, nil
}

func scanEntries(tx persistence.Txn, assetID string) ([]*Entry, error) {
	var entries []*Entry
	err := tx.Scan(entriesPrefix(assetID), func(_ string, value []byte) error {
		dec := json.NewDecoder(bytes.NewReader(value))
		dec.UseNumber()
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("failed to decode ledger entry: %w", err)
		}
		entries = append(entries, &entry)
		return nil
	})
	return entries, err
}

func headKey(assetID string) string {
	return headPrefix + url.PathEscape(assetID)
}

func entriesPrefix(assetID string) string {
	return entryPrefix + url.PathEscape(assetID) + "/"
}

func entryKey(assetID string, seq uint64) string {
	return fmt.Sprintf("%s%020d", entriesPrefix(assetID), seq)
}
