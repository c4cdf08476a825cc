package planning

import (
	"testing"
	"time"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeMonth(t *testing.T) {
	in := time.Date(2025, 3, 17, 14, 30, 0, 0, time.FixedZone("CET", 3600))
	got := NormalizeMonth(in)
	want := month(2025, 3)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got.Location() != time.UTC {
		t.Errorf("Expected UTC location, got %v", got.Location())
	}
}

func TestMonthSequence(t *testing.T) {
	months := MonthSequence(month(2025, 11), month(2026, 2))
	if len(months) != 4 {
		t.Fatalf("Expected 4 months, got %d", len(months))
	}
	if !months[0].Equal(month(2025, 11)) || !months[3].Equal(month(2026, 2)) {
		t.Errorf("Wrong bounds: %v .. %v", months[0], months[3])
	}

	if got := MonthSequence(month(2025, 5), month(2025, 3)); len(got) != 0 {
		t.Errorf("Inverted range should be empty, got %d months", len(got))
	}
	if got := MonthSequence(month(2025, 5), month(2025, 5)); len(got) != 1 {
		t.Errorf("Single-month range should have 1 month, got %d", len(got))
	}
}

func TestClipRange(t *testing.T) {
	projFrom, projTo := month(2025, 1), month(2025, 12)

	from, to, clipped := ClipRange(month(2024, 10), month(2026, 3), projFrom, projTo)
	if !clipped {
		t.Error("Expected clipped=true for a window spilling over both ends")
	}
	if !from.Equal(projFrom) || !to.Equal(projTo) {
		t.Errorf("Expected clip to project range, got %v .. %v", from, to)
	}

	_, _, clipped = ClipRange(month(2025, 3), month(2025, 6), projFrom, projTo)
	if clipped {
		t.Error("Window inside the range must not be reported as clipped")
	}

	from, to, clipped = ClipRange(month(2027, 1), month(2027, 6), projFrom, projTo)
	if !clipped {
		t.Error("Window entirely outside the range must be clipped")
	}
	if !from.After(to) {
		t.Errorf("Expected empty window, got %v .. %v", from, to)
	}
}
