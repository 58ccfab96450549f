package inventory

import "github.com/neogan74/auditledger/internal/store"

// Observation is the part of a reading the classifier compares.
type Observation struct {
	Code       *string
	LocationID string
	Condition  string
}

// Classify compares an expected snapshot with a field observation. A nil
// expected snapshot denotes an extra item. Reasons are reported in the
// fixed order LOCATION, CONDITION, TAG.
func Classify(expected *store.ExpectedSnapshot, obs Observation) (store.Result, []store.Reason) {
	if expected == nil {
		return store.ResultExtra, nil
	}
	if obs.Code == nil {
		return store.ResultNotFound, nil
	}

	var reasons []store.Reason
	if obs.LocationID != expected.LocationID {
		reasons = append(reasons, store.ReasonLocation)
	}
	if obs.Condition != expected.Condition {
		reasons = append(reasons, store.ReasonCondition)
	}
	if *obs.Code != expected.AssetCode {
		reasons = append(reasons, store.ReasonTag)
	}

	if len(reasons) == 0 {
		return store.ResultConformant, nil
	}
	return store.ResultDivergent, reasons
}
