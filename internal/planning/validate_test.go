package planning

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testBatchContext() BatchContext {
	return BatchContext{
		ProjectStart: month(2025, 1),
		ProjectEnd:   month(2025, 12),
		Tasks: map[string]TaskState{
			"task-1": {Active: true},
			"task-2": {Active: false},
		},
		Performers: map[string]PerformerState{
			"perf-1": {Active: true},
			"perf-2": {Active: false},
		},
		Assigned: map[string]bool{
			AssignmentKey("task-1", "perf-1"): true,
		},
	}
}

func validInput() EntryInput {
	return EntryInput{
		TaskID:            "task-1",
		PerformerID:       "perf-1",
		Month:             month(2025, 3),
		PlannedPersonDays: decimal.NewFromInt(5),
	}
}

func TestValidateEntriesReasonCodes(t *testing.T) {
	ctx := testBatchContext()

	cases := []struct {
		name   string
		mutate func(*EntryInput)
		reason string
	}{
		{"mid-month date", func(in *EntryInput) {
			in.Month = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
		}, ReasonMonthNotFirstDay},
		{"before project start", func(in *EntryInput) {
			in.Month = month(2024, 12)
		}, ReasonMonthOutOfRange},
		{"after project end", func(in *EntryInput) {
			in.Month = month(2026, 1)
		}, ReasonMonthOutOfRange},
		{"negative planned", func(in *EntryInput) {
			in.PlannedPersonDays = decimal.NewFromInt(-1)
		}, ReasonNegativePersonDays},
		{"negative actual", func(in *EntryInput) {
			in.ActualPersonDays = decimal.NewFromInt(-2)
		}, ReasonNegativePersonDays},
		{"unknown task", func(in *EntryInput) {
			in.TaskID = "task-nope"
		}, ReasonUnknownTask},
		{"inactive task", func(in *EntryInput) {
			in.TaskID = "task-2"
		}, ReasonInactiveTask},
		{"unknown performer", func(in *EntryInput) {
			in.PerformerID = "perf-nope"
		}, ReasonUnknownPerformer},
		{"inactive performer", func(in *EntryInput) {
			in.PerformerID = "perf-2"
		}, ReasonInactivePerformer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			accepted, failed := ValidateEntries([]EntryInput{in}, ctx)
			if len(accepted) != 0 {
				t.Fatalf("Expected rejection, row was accepted")
			}
			if len(failed) != 1 {
				t.Fatalf("Expected 1 failure, got %d", len(failed))
			}
			if failed[0].Reason != tc.reason {
				t.Errorf("Expected reason %q, got %q", tc.reason, failed[0].Reason)
			}
		})
	}
}

func TestValidateEntriesNotAssigned(t *testing.T) {
	ctx := testBatchContext()
	ctx.Tasks["task-3"] = TaskState{Active: true}

	in := validInput()
	in.TaskID = "task-3" // active task, but perf-1 is not assigned to it
	_, failed := ValidateEntries([]EntryInput{in}, ctx)
	if len(failed) != 1 || failed[0].Reason != ReasonNotAssigned {
		t.Fatalf("Expected not_assigned, got %+v", failed)
	}
}

func TestValidateEntriesPartialBatch(t *testing.T) {
	ctx := testBatchContext()
	bad := validInput()
	bad.Month = month(2030, 1)

	inputs := []EntryInput{validInput(), bad, func() EntryInput {
		in := validInput()
		in.Month = month(2025, 4)
		return in
	}()}

	accepted, failed := ValidateEntries(inputs, ctx)
	if len(accepted) != 2 {
		t.Errorf("Expected 2 accepted rows, got %d", len(accepted))
	}
	if len(failed) != 1 {
		t.Fatalf("Expected 1 failed row, got %d", len(failed))
	}
	if failed[0].Index != 1 {
		t.Errorf("Expected failure at index 1, got %d", failed[0].Index)
	}
	if len(accepted)+len(failed) != len(inputs) {
		t.Error("Every row must land in exactly one of accepted/failed")
	}
}

func TestValidateEntriesDuplicateCell(t *testing.T) {
	ctx := testBatchContext()
	first := validInput()
	first.PlannedPersonDays = decimal.NewFromInt(3)
	second := validInput()
	second.PlannedPersonDays = decimal.NewFromInt(7)

	accepted, failed := ValidateEntries([]EntryInput{first, second}, ctx)
	if len(accepted) != 1 {
		t.Fatalf("Expected first occurrence accepted, got %d accepted", len(accepted))
	}
	if !accepted[0].PlannedPersonDays.Equal(decimal.NewFromInt(3)) {
		t.Errorf("First occurrence must win, got %s", accepted[0].PlannedPersonDays)
	}
	if len(failed) != 1 || failed[0].Reason != ReasonDuplicateKey {
		t.Fatalf("Expected duplicate_key for the second row, got %+v", failed)
	}
}

func TestValidateEntriesNormalizesMonth(t *testing.T) {
	ctx := testBatchContext()
	in := validInput()
	in.Month = time.Date(2025, 3, 1, 9, 45, 0, 0, time.FixedZone("CET", 3600))

	accepted, failed := ValidateEntries([]EntryInput{in}, ctx)
	if len(failed) != 0 {
		t.Fatalf("Expected acceptance, got %+v", failed)
	}
	if !accepted[0].Month.Equal(month(2025, 3)) {
		t.Errorf("Expected normalized month, got %v", accepted[0].Month)
	}
}
