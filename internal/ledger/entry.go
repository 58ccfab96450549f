package ledger

import (
	"encoding/json"
	"strconv"
	"time"
)

// Subject identifies the record an entry is about.
type Subject struct {
	Table    string `json:"table"`
	RecordID string `json:"record_id"`
}

// Change describes a single field mutation.
type Change struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Entry is one immutable, chained and signed ledger record.
type Entry struct {
	ID                 string         `json:"id"`
	AssetID            string         `json:"asset_id"`
	Seq                uint64         `json:"seq"`
	Action             string         `json:"action"`
	Subject            Subject        `json:"subject"`
	Change             *Change        `json:"change,omitempty"`
	Payload            map[string]any `json:"payload"`
	PreviousHash       string         `json:"previous_hash"`
	RecordHash         string         `json:"record_hash"`
	Signature          string         `json:"signature"`
	SignatureAlgorithm string         `json:"signature_algorithm"`
	ActorID            string         `json:"actor_id"`
	CreatedAt          time.Time      `json:"created_at"`
}

// document is the hashed form of the entry. It envelopes the payload with
// every stored field except the hash, signature and link themselves.
func (e *Entry) document() map[string]any {
	doc := map[string]any{
		"entry_id":            e.ID,
		"asset_id":            e.AssetID,
		"seq":                 json.Number(strconv.FormatUint(e.Seq, 10)),
		"action":              e.Action,
		"subject":             map[string]any{"table": e.Subject.Table, "record_id": e.Subject.RecordID},
		"payload":             e.Payload,
		"actor_id":            e.ActorID,
		"signature_algorithm": e.SignatureAlgorithm,
		"created_at":          e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Change != nil {
		doc["change"] = map[string]any{
			"field":     e.Change.Field,
			"old_value": e.Change.OldValue,
			"new_value": e.Change.NewValue,
		}
	}
	return doc
}

// ComputeHash returns the record hash for the entry's current contents.
func (e *Entry) ComputeHash() (string, error) {
	canonical, err := Canonicalize(e.document())
	if err != nil {
		return "", err
	}
	return Hash(canonical), nil
}
