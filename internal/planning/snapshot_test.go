package planning

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func snapshotFixture() SnapshotInput {
	rates := []Rate{
		{ID: "r1", PerformerID: "perf-a", Unit: RateUnitDay,
			Value: dec("500"), EffectiveFrom: month(2025, 1)},
	}
	entries := []Entry{
		{TaskID: "task-1", PerformerID: "perf-a", Month: month(2025, 1), PlannedPersonDays: dec("4"), ActualPersonDays: dec("4")},
		{TaskID: "task-1", PerformerID: "perf-a", Month: month(2025, 2), PlannedPersonDays: dec("6"), ActualPersonDays: dec("5")},
		{TaskID: "task-1", PerformerID: "perf-a", Month: month(2025, 4), PlannedPersonDays: dec("2"), ActualPersonDays: dec("0")},
	}
	return SnapshotInput{
		ProjectID:    "proj-1",
		ProjectStart: month(2025, 1),
		ProjectEnd:   month(2025, 4),
		Entries:      entries,
		Rates:        rates,
		FTEDivisor:   20,
		RevenueByMonth: map[time.Time]decimal.Decimal{
			month(2025, 2): dec("10000"),
			month(2025, 3): dec("5000"),
		},
		InvoiceByMonth: map[time.Time]decimal.Decimal{
			month(2025, 3): dec("8000"),
		},
	}
}

func TestComputeSnapshotsCoversFullRange(t *testing.T) {
	rows := ComputeSnapshots(snapshotFixture())
	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows for a 4-month project, got %d", len(rows))
	}
	// March has no entries, still gets a row.
	march := rows[2]
	if !march.Month.Equal(month(2025, 3)) {
		t.Fatalf("Expected row 2 to be March, got %v", march.Month)
	}
	if !march.PlannedPersonDays.IsZero() || !march.PlannedCost.IsZero() {
		t.Errorf("Empty month must have zero effort and cost")
	}
	if !march.RevenueAmount.Equal(dec("5000")) || !march.InvoiceAmount.Equal(dec("8000")) {
		t.Errorf("Expected March revenue 5000 / invoice 8000, got %s / %s",
			march.RevenueAmount, march.InvoiceAmount)
	}
}

func TestComputeSnapshotsCumulativeLaw(t *testing.T) {
	rows := ComputeSnapshots(snapshotFixture())

	var runPlanned, runActual, runRevenue, runInvoice decimal.Decimal
	for i, row := range rows {
		runPlanned = runPlanned.Add(row.PlannedCost)
		runActual = runActual.Add(row.ActualCost)
		runRevenue = runRevenue.Add(row.RevenueAmount)
		runInvoice = runInvoice.Add(row.InvoiceAmount)

		if !row.CumulativePlannedCost.Equal(runPlanned) {
			t.Errorf("Row %d: cumulative planned cost %s, want %s", i, row.CumulativePlannedCost, runPlanned)
		}
		if !row.CumulativeActualCost.Equal(runActual) {
			t.Errorf("Row %d: cumulative actual cost %s, want %s", i, row.CumulativeActualCost, runActual)
		}
		if !row.CumulativeRevenue.Equal(runRevenue) {
			t.Errorf("Row %d: cumulative revenue %s, want %s", i, row.CumulativeRevenue, runRevenue)
		}
		if !row.CumulativeInvoiceAmount.Equal(runInvoice) {
			t.Errorf("Row %d: cumulative invoice %s, want %s", i, row.CumulativeInvoiceAmount, runInvoice)
		}
	}

	last := rows[len(rows)-1]
	if !last.CumulativePlannedCost.Equal(dec("6000")) {
		t.Errorf("Expected final cumulative planned cost 6000, got %s", last.CumulativePlannedCost)
	}
	if !last.CumulativeActualCost.Equal(dec("4500")) {
		t.Errorf("Expected final cumulative actual cost 4500, got %s", last.CumulativeActualCost)
	}
}

func TestComputeSnapshotsIdempotent(t *testing.T) {
	in := snapshotFixture()
	first := ComputeSnapshots(in)
	second := ComputeSnapshots(in)
	if len(first) != len(second) {
		t.Fatalf("Row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if !a.Month.Equal(b.Month) ||
			!a.PlannedCost.Equal(b.PlannedCost) ||
			!a.CumulativeActualCost.Equal(b.CumulativeActualCost) ||
			!a.CumulativeInvoiceAmount.Equal(b.CumulativeInvoiceAmount) {
			t.Errorf("Row %d differs between runs: %+v vs %+v", i, a, b)
		}
	}
}

func TestSnapshotRealizationSentinel(t *testing.T) {
	rows := ComputeSnapshots(snapshotFixture())

	// January: no revenue yet, derived percentages must be nil, not 0.
	jan := rows[0]
	if jan.MarginPercent() != nil {
		t.Errorf("Expected nil margin percent with zero revenue, got %s", *jan.MarginPercent())
	}
	if jan.RealizationPercent() != nil {
		t.Errorf("Expected nil realization percent with zero revenue, got %s", *jan.RealizationPercent())
	}

	// March: cumulative revenue 15000, cumulative actual cost 4500.
	// Realization tracks booked labor against revenue, not invoicing.
	march := rows[2]
	rp := march.RealizationPercent()
	if rp == nil {
		t.Fatal("Expected realization percent with nonzero revenue")
	}
	want := dec("4500").Div(dec("15000")).Mul(dec("100"))
	if !rp.Equal(want) {
		t.Errorf("Expected realization %s, got %s", want, *rp)
	}
	mp := march.MarginPercent()
	if mp == nil {
		t.Fatal("Expected margin percent with nonzero revenue")
	}
}

func TestSnapshotRealizationIgnoresInvoices(t *testing.T) {
	in := snapshotFixture()
	// Bury March in invoices; realization must not move.
	in.InvoiceByMonth[month(2025, 3)] = dec("999999")
	rows := ComputeSnapshots(in)

	rp := rows[2].RealizationPercent()
	if rp == nil {
		t.Fatal("Expected realization percent with nonzero revenue")
	}
	want := dec("4500").Div(dec("15000")).Mul(dec("100"))
	if !rp.Equal(want) {
		t.Errorf("Expected realization %s regardless of invoices, got %s", want, *rp)
	}
}

func TestSnapshotMargins(t *testing.T) {
	rows := ComputeSnapshots(snapshotFixture())

	// February: revenue 10000 minus actual cost 2500 for the month.
	feb := rows[1]
	if !feb.MonthMargin().Equal(dec("7500")) {
		t.Errorf("Expected February month margin 7500, got %s", feb.MonthMargin())
	}
	// March has revenue 5000 and no effort at all.
	march := rows[2]
	if !march.MonthMargin().Equal(dec("5000")) {
		t.Errorf("Expected March month margin 5000, got %s", march.MonthMargin())
	}

	last := rows[len(rows)-1]
	// Cumulative revenue 15000 minus cumulative actual cost 4500.
	if !last.CumulativeMargin().Equal(dec("10500")) {
		t.Errorf("Expected cumulative margin 10500, got %s", last.CumulativeMargin())
	}
}
