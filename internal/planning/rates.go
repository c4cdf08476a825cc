package planning

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate is a candidate price for one performer's person-day. ProjectID
// is nil for a business-unit default rate and set for a project
// override. EffectiveTo nil means open-ended.
type Rate struct {
	ID            string
	PerformerID   string
	ProjectID     *string
	Unit          string // "day" or "fte_month"
	Value         decimal.Decimal
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// RateUnitDay prices a single person-day directly; RateUnitFTEMonth
// prices a full month of one FTE and is divided by the working-day
// divisor to get a per-day value.
const (
	RateUnitDay      = "day"
	RateUnitFTEMonth = "fte_month"
)

func (r Rate) covers(month time.Time) bool {
	month = NormalizeMonth(month)
	if month.Before(NormalizeMonth(r.EffectiveFrom)) {
		return false
	}
	if r.EffectiveTo != nil && month.After(NormalizeMonth(*r.EffectiveTo)) {
		return false
	}
	return true
}

// ResolveRate picks the winning rate for (performer, project, month)
// out of candidates, or false when nothing covers the month. A missing
// rate is a value, not an error: the caller marks the cell unresolved.
//
// Precedence: any project-scoped covering rate beats every
// business-unit default. Within a tier the latest EffectiveFrom wins;
// remaining ties go to the latest EffectiveTo (open-ended counts as
// latest), then the greater ID so the outcome is deterministic.
func ResolveRate(candidates []Rate, performerID, projectID string, month time.Time) (Rate, bool) {
	month = NormalizeMonth(month)
	var best Rate
	found := false
	for _, c := range candidates {
		if c.PerformerID != performerID {
			continue
		}
		if c.ProjectID != nil && *c.ProjectID != projectID {
			continue
		}
		if !c.covers(month) {
			continue
		}
		if !found || betterRate(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func betterRate(a, b Rate) bool {
	aProj := a.ProjectID != nil
	bProj := b.ProjectID != nil
	if aProj != bProj {
		return aProj
	}
	af, bf := NormalizeMonth(a.EffectiveFrom), NormalizeMonth(b.EffectiveFrom)
	if !af.Equal(bf) {
		return af.After(bf)
	}
	at, bt := rateEnd(a), rateEnd(b)
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return a.ID > b.ID
}

// rateEnd maps an open-ended rate to a far-future sentinel so it sorts
// after every bounded one.
func rateEnd(r Rate) time.Time {
	if r.EffectiveTo == nil {
		return time.Date(9999, 12, 1, 0, 0, 0, 0, time.UTC)
	}
	return NormalizeMonth(*r.EffectiveTo)
}

// CostPerDay converts a resolved rate into a per-person-day price.
// fteDivisor is the configured working days per FTE month and must be
// positive for fte_month rates.
func CostPerDay(r Rate, fteDivisor int) decimal.Decimal {
	if r.Unit == RateUnitFTEMonth {
		if fteDivisor <= 0 {
			return decimal.Zero
		}
		return r.Value.Div(decimal.NewFromInt(int64(fteDivisor)))
	}
	return r.Value
}

// RangesOverlap reports whether two effective ranges share at least one
// month. Nil end bounds are open-ended.
func RangesOverlap(fromA time.Time, toA *time.Time, fromB time.Time, toB *time.Time) bool {
	endA := time.Date(9999, 12, 1, 0, 0, 0, 0, time.UTC)
	if toA != nil {
		endA = NormalizeMonth(*toA)
	}
	endB := time.Date(9999, 12, 1, 0, 0, 0, 0, time.UTC)
	if toB != nil {
		endB = NormalizeMonth(*toB)
	}
	return !NormalizeMonth(fromA).After(endB) && !NormalizeMonth(fromB).After(endA)
}
