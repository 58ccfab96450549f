package inventory

import (
	"testing"

	"github.com/neogan74/auditledger/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	expected := &store.ExpectedSnapshot{AssetCode: "PAT-001", LocationID: "room-101", Condition: "GOOD"}

	tests := []struct {
		name        string
		expected    *store.ExpectedSnapshot
		obs         Observation
		wantResult  store.Result
		wantReasons []store.Reason
	}{
		{
			name:       "conformant",
			expected:   expected,
			obs:        Observation{Code: strPtr("PAT-001"), LocationID: "room-101", Condition: "GOOD"},
			wantResult: store.ResultConformant,
		},
		{
			name:        "wrong location",
			expected:    expected,
			obs:         Observation{Code: strPtr("PAT-001"), LocationID: "room-102", Condition: "GOOD"},
			wantResult:  store.ResultDivergent,
			wantReasons: []store.Reason{store.ReasonLocation},
		},
		{
			name:        "condition and tag",
			expected:    expected,
			obs:         Observation{Code: strPtr("PAT-001-X"), LocationID: "room-101", Condition: "BROKEN"},
			wantResult:  store.ResultDivergent,
			wantReasons: []store.Reason{store.ReasonCondition, store.ReasonTag},
		},
		{
			name:        "everything differs",
			expected:    expected,
			obs:         Observation{Code: strPtr(""), LocationID: "", Condition: ""},
			wantResult:  store.ResultDivergent,
			wantReasons: []store.Reason{store.ReasonLocation, store.ReasonCondition, store.ReasonTag},
		},
		{
			name:       "code absent",
			expected:   expected,
			obs:        Observation{LocationID: "room-999", Condition: "BROKEN"},
			wantResult: store.ResultNotFound,
		},
		{
			name:       "not expected",
			obs:        Observation{Code: strPtr("PAT-777"), LocationID: "room-101"},
			wantResult: store.ResultExtra,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, reasons := Classify(tt.expected, tt.obs)
			assert.Equal(t, tt.wantResult, result)
			assert.Equal(t, tt.wantReasons, reasons)
		})
	}
}
