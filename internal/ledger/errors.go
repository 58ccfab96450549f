package ledger

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned when a record lacks an asset id or action.
var ErrInvalidRecord = errors.New("invalid ledger record")

// ChainIntegrityViolationError reports the first entry of an asset chain
// whose stored hash, signature or link does not match a replay.
type ChainIntegrityViolationError struct {
	AssetID string
	EntryID string
	Reason  string
}

func (e *ChainIntegrityViolationError) Error() string {
	return fmt.Sprintf("chain integrity violation for asset %s at entry %s: %s", e.AssetID, e.EntryID, e.Reason)
}

// IsChainIntegrityViolation checks if an error is a ChainIntegrityViolationError
func IsChainIntegrityViolation(err error) bool {
	var target *ChainIntegrityViolationError
	return errors.As(err, &target)
}
