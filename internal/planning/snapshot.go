package planning

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotRow is the derived monthly picture of one project: effort and
// cost sums for the month plus running sums from the project's first
// month. One row exists for every month in the project range, including
// months with no entries at all.
type SnapshotRow struct {
	Month             time.Time
	PlannedPersonDays decimal.Decimal
	ActualPersonDays  decimal.Decimal
	PlannedCost       decimal.Decimal
	ActualCost        decimal.Decimal
	RevenueAmount     decimal.Decimal
	InvoiceAmount     decimal.Decimal

	CumulativePlannedCost   decimal.Decimal
	CumulativeActualCost    decimal.Decimal
	CumulativeRevenue       decimal.Decimal
	CumulativeInvoiceAmount decimal.Decimal
}

// MonthMargin is this month's revenue minus this month's actual cost.
func (s SnapshotRow) MonthMargin() decimal.Decimal {
	return s.RevenueAmount.Sub(s.ActualCost)
}

// CumulativeMargin is cumulative revenue minus cumulative actual cost
// as of this month.
func (s SnapshotRow) CumulativeMargin() decimal.Decimal {
	return s.CumulativeRevenue.Sub(s.CumulativeActualCost)
}

// MarginPercent returns the cumulative margin relative to cumulative
// revenue, or nil while cumulative revenue is still zero. The nil is
// deliberate: "no revenue yet" must stay distinguishable from a
// genuine 0%.
func (s SnapshotRow) MarginPercent() *decimal.Decimal {
	if s.CumulativeRevenue.IsZero() {
		return nil
	}
	v := s.CumulativeMargin().Div(s.CumulativeRevenue).Mul(decimal.NewFromInt(100))
	return &v
}

// RealizationPercent returns cumulative actual cost relative to
// cumulative revenue, or nil while cumulative revenue is still zero.
// It measures how much of the earned revenue the booked labor has
// consumed; invoicing is tracked separately on the register fields.
func (s SnapshotRow) RealizationPercent() *decimal.Decimal {
	if s.CumulativeRevenue.IsZero() {
		return nil
	}
	v := s.CumulativeActualCost.Div(s.CumulativeRevenue).Mul(decimal.NewFromInt(100))
	return &v
}

// SnapshotInput bundles everything one recomputation reads. Revenue and
// invoice maps are keyed by normalized month.
type SnapshotInput struct {
	ProjectID      string
	ProjectStart   time.Time
	ProjectEnd     time.Time
	Entries        []Entry
	Rates          []Rate
	FTEDivisor     int
	RevenueByMonth map[time.Time]decimal.Decimal
	InvoiceByMonth map[time.Time]decimal.Decimal
}

// ComputeSnapshots rebuilds the full snapshot series for a project.
// It always covers the entire project range so a recompute is
// idempotent: the same inputs produce the same rows, and stale months
// outside the range simply do not appear. Cells without a resolved
// rate contribute effort but no cost.
func ComputeSnapshots(in SnapshotInput) []SnapshotRow {
	agg := Aggregate(in.Entries, in.Rates, in.ProjectID, in.FTEDivisor)

	months := MonthSequence(in.ProjectStart, in.ProjectEnd)
	rows := make([]SnapshotRow, 0, len(months))
	var cumPlanned, cumActual, cumRevenue, cumInvoice decimal.Decimal
	for _, m := range months {
		effort := agg.MonthEffort[m]
		cost := agg.MonthCost[m]
		revenue := in.RevenueByMonth[m]
		invoice := in.InvoiceByMonth[m]

		cumPlanned = cumPlanned.Add(cost.Planned)
		cumActual = cumActual.Add(cost.Actual)
		cumRevenue = cumRevenue.Add(revenue)
		cumInvoice = cumInvoice.Add(invoice)

		rows = append(rows, SnapshotRow{
			Month:                   m,
			PlannedPersonDays:       effort.Planned,
			ActualPersonDays:        effort.Actual,
			PlannedCost:             cost.Planned,
			ActualCost:              cost.Actual,
			RevenueAmount:           revenue,
			InvoiceAmount:           invoice,
			CumulativePlannedCost:   cumPlanned,
			CumulativeActualCost:    cumActual,
			CumulativeRevenue:       cumRevenue,
			CumulativeInvoiceAmount: cumInvoice,
		})
	}
	return rows
}
