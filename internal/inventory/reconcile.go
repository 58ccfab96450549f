package inventory

import (
	"math"

	"github.com/neogan74/auditledger/internal/store"
)

// Summarize counts item results. Extra items are counted separately and
// never enter the percentage denominator.
func Summarize(auditID string, items []*store.AuditItem, totalExpected int) Summary {
	s := Summary{AuditID: auditID, TotalItems: totalExpected}

	for _, item := range items {
		if item.IsExtra() {
			if item.IsCollected() {
				s.Extra++
			}
			continue
		}
		if !item.IsCollected() {
			s.Pending++
			continue
		}
		s.Collected++
		switch item.Result {
		case store.ResultConformant:
			s.Conformant++
		case store.ResultDivergent:
			s.Divergent++
		case store.ResultNotFound:
			s.NotFound++
		}
	}

	s.ConformancePct = conformancePct(s.Conformant, totalExpected)
	return s
}

// conformancePct is conformant / max(total, 1) * 100, capped at 100 and
// rounded to one decimal.
func conformancePct(conformant, total int) float64 {
	if total < 1 {
		total = 1
	}
	pct := float64(conformant) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*10) / 10
}

func applySummary(audit *store.Audit, s Summary) {
	audit.Conformant = s.Conformant
	audit.Divergent = s.Divergent
	audit.NotFound = s.NotFound
	audit.Extra = s.Extra
	audit.ConformancePct = s.ConformancePct
}

// summaryOf rebuilds a Summary from the stored counters of an audit.
func summaryOf(audit *store.Audit, items []*store.AuditItem) Summary {
	s := Summarize(audit.ID, items, audit.TotalItems)
	if audit.Status.ReachedReconciliation() {
		s.Conformant = audit.Conformant
		s.Divergent = audit.Divergent
		s.NotFound = audit.NotFound
		s.Extra = audit.Extra
		s.ConformancePct = audit.ConformancePct
	}
	return s
}

func buildReport(audit *store.Audit, items []*store.AuditItem) *Report {
	r := &Report{
		Audit:      audit,
		Summary:    summaryOf(audit, items),
		Conformant: []ReportLine{},
		Divergent:  []ReportLine{},
		NotFound:   []ReportLine{},
		Extra:      []ReportLine{},
		Pending:    []ReportLine{},
	}

	for _, item := range items {
		line := ReportLine{
			ItemID:      item.ID,
			AssetID:     item.AssetID,
			Expected:    item.Expected,
			Found:       item.Collected,
			Result:      item.Result,
			Reasons:     item.Reasons,
			Corrections: item.Corrections,
		}
		switch {
		case item.IsExtra():
			r.Extra = append(r.Extra, line)
		case !item.IsCollected():
			r.Pending = append(r.Pending, line)
		case item.Result == store.ResultConformant:
			r.Conformant = append(r.Conformant, line)
		case item.Result == store.ResultDivergent:
			r.Divergent = append(r.Divergent, line)
		case item.Result == store.ResultNotFound:
			r.NotFound = append(r.NotFound, line)
		}
	}
	return r
}
