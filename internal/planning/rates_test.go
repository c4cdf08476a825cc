package planning

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestResolveRateProjectOverridesDefault(t *testing.T) {
	rates := []Rate{
		{ID: "r-default", PerformerID: "perf-1", Unit: RateUnitDay,
			Value: decimal.NewFromInt(500), EffectiveFrom: month(2025, 1)},
		{ID: "r-override", PerformerID: "perf-1", ProjectID: strPtr("proj-1"), Unit: RateUnitDay,
			Value: decimal.NewFromInt(600), EffectiveFrom: month(2025, 1)},
	}

	r, ok := ResolveRate(rates, "perf-1", "proj-1", month(2025, 6))
	if !ok {
		t.Fatal("Expected a resolved rate")
	}
	if r.ID != "r-override" {
		t.Errorf("Expected project override to win, got %s", r.ID)
	}

	// A different project only sees the business-unit default.
	r, ok = ResolveRate(rates, "perf-1", "proj-2", month(2025, 6))
	if !ok || r.ID != "r-default" {
		t.Errorf("Expected default rate for proj-2, got %+v ok=%v", r, ok)
	}
}

func TestResolveRateLatestEffectiveFromWins(t *testing.T) {
	rates := []Rate{
		{ID: "r-old", PerformerID: "perf-1", Unit: RateUnitDay,
			Value: decimal.NewFromInt(400), EffectiveFrom: month(2024, 1)},
		{ID: "r-new", PerformerID: "perf-1", Unit: RateUnitDay,
			Value: decimal.NewFromInt(450), EffectiveFrom: month(2025, 1)},
	}
	r, ok := ResolveRate(rates, "perf-1", "proj-1", month(2025, 6))
	if !ok || r.ID != "r-new" {
		t.Errorf("Expected latest effective_from to win, got %+v ok=%v", r, ok)
	}

	// Before the newer rate starts, the older one still covers.
	r, ok = ResolveRate(rates, "perf-1", "proj-1", month(2024, 6))
	if !ok || r.ID != "r-old" {
		t.Errorf("Expected older rate for 2024-06, got %+v ok=%v", r, ok)
	}
}

func TestResolveRateRespectsEffectiveTo(t *testing.T) {
	rates := []Rate{
		{ID: "r-bounded", PerformerID: "perf-1", Unit: RateUnitDay,
			Value:         decimal.NewFromInt(500),
			EffectiveFrom: month(2025, 1), EffectiveTo: timePtr(month(2025, 3))},
	}
	if _, ok := ResolveRate(rates, "perf-1", "proj-1", month(2025, 4)); ok {
		t.Error("Month past effective_to must not resolve")
	}
	if _, ok := ResolveRate(rates, "perf-1", "proj-1", month(2025, 3)); !ok {
		t.Error("effective_to month itself is still covered")
	}
}

func TestResolveRateMissingIsNotAnError(t *testing.T) {
	if _, ok := ResolveRate(nil, "perf-1", "proj-1", month(2025, 1)); ok {
		t.Error("Empty candidate set must resolve to nothing")
	}
}

func TestCostPerDayFTEMonth(t *testing.T) {
	r := Rate{Unit: RateUnitFTEMonth, Value: decimal.NewFromInt(8000)}
	got := CostPerDay(r, 20)
	if !got.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Expected 400 per day, got %s", got)
	}

	day := Rate{Unit: RateUnitDay, Value: decimal.NewFromInt(650)}
	if got := CostPerDay(day, 20); !got.Equal(decimal.NewFromInt(650)) {
		t.Errorf("Day rate must pass through unchanged, got %s", got)
	}
}

func TestRangesOverlap(t *testing.T) {
	if !RangesOverlap(month(2025, 1), timePtr(month(2025, 6)), month(2025, 6), nil) {
		t.Error("Ranges sharing one month must overlap")
	}
	if RangesOverlap(month(2025, 1), timePtr(month(2025, 5)), month(2025, 6), nil) {
		t.Error("Adjacent ranges must not overlap")
	}
	if !RangesOverlap(month(2025, 1), nil, month(2030, 1), nil) {
		t.Error("Two open-ended ranges always overlap")
	}
}
