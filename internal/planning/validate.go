package planning

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Row rejection reason codes. These are part of the API contract:
// clients branch on them, so the strings never change meaning.
const (
	ReasonMonthNotFirstDay   = "month_not_first_day"
	ReasonMonthOutOfRange    = "month_out_of_range"
	ReasonNegativePersonDays = "negative_person_days"
	ReasonUnknownTask        = "unknown_task"
	ReasonInactiveTask       = "inactive_task"
	ReasonUnknownPerformer   = "unknown_performer"
	ReasonInactivePerformer  = "inactive_performer"
	ReasonNotAssigned        = "not_assigned"
	ReasonDuplicateKey       = "duplicate_key"
)

// EntryInput is one candidate effort cell from a batch write, before
// validation. Month arrives as submitted — not yet normalized.
type EntryInput struct {
	TaskID            string
	PerformerID       string
	Month             time.Time
	PlannedPersonDays decimal.Decimal
	ActualPersonDays  decimal.Decimal
}

// RowFailure describes one rejected batch row.
type RowFailure struct {
	Index       int    `json:"index"`
	TaskID      string `json:"task_id"`
	PerformerID string `json:"performer_id"`
	Month       string `json:"month"`
	Reason      string `json:"reason"`
	Detail      string `json:"detail,omitempty"`
}

// TaskState is what validation needs to know about a task.
type TaskState struct {
	Active bool
}

// PerformerState is what validation needs to know about a performer.
type PerformerState struct {
	Active bool
}

// BatchContext carries the loaded reference data one batch validates
// against. Assigned keys are task_id + "|" + performer_id.
type BatchContext struct {
	ProjectStart time.Time
	ProjectEnd   time.Time
	Tasks        map[string]TaskState
	Performers   map[string]PerformerState
	Assigned     map[string]bool
}

// AssignmentKey builds the lookup key for BatchContext.Assigned.
func AssignmentKey(taskID, performerID string) string {
	return taskID + "|" + performerID
}

// ValidateEntries splits a batch into rows that may be persisted and
// rows that are rejected, each rejection carrying a machine-readable
// reason. A bad row never blocks its neighbours. Accepted rows come
// back with their month normalized; when two rows address the same cell
// the first occurrence wins and later ones are rejected as duplicates.
func ValidateEntries(inputs []EntryInput, ctx BatchContext) (accepted []EntryInput, failed []RowFailure) {
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		if reason, detail := validateEntry(in, ctx); reason != "" {
			failed = append(failed, rowFailure(i, in, reason, detail))
			continue
		}
		month := NormalizeMonth(in.Month)
		cellKey := in.TaskID + "|" + in.PerformerID + "|" + month.Format("2006-01")
		if seen[cellKey] {
			failed = append(failed, rowFailure(i, in, ReasonDuplicateKey,
				"another row in this batch targets the same cell"))
			continue
		}
		seen[cellKey] = true
		in.Month = month
		accepted = append(accepted, in)
	}
	return accepted, failed
}

func validateEntry(in EntryInput, ctx BatchContext) (reason, detail string) {
	if !IsFirstOfMonth(in.Month) {
		return ReasonMonthNotFirstDay, fmt.Sprintf("month %s is not the first day of a month", in.Month.Format("2006-01-02"))
	}
	if !MonthInRange(in.Month, ctx.ProjectStart, ctx.ProjectEnd) {
		return ReasonMonthOutOfRange, fmt.Sprintf("month %s is outside the project range %s..%s",
			in.Month.Format("2006-01"), ctx.ProjectStart.Format("2006-01"), ctx.ProjectEnd.Format("2006-01"))
	}
	if in.PlannedPersonDays.IsNegative() || in.ActualPersonDays.IsNegative() {
		return ReasonNegativePersonDays, "person-day values must be >= 0"
	}
	task, ok := ctx.Tasks[in.TaskID]
	if !ok {
		return ReasonUnknownTask, "task does not belong to this project"
	}
	if !task.Active {
		return ReasonInactiveTask, "task is deactivated"
	}
	performer, ok := ctx.Performers[in.PerformerID]
	if !ok {
		return ReasonUnknownPerformer, "performer does not belong to this business unit"
	}
	if !performer.Active {
		return ReasonInactivePerformer, "performer is deactivated"
	}
	if !ctx.Assigned[AssignmentKey(in.TaskID, in.PerformerID)] {
		return ReasonNotAssigned, "performer is not assigned to this task"
	}
	return "", ""
}

func rowFailure(i int, in EntryInput, reason, detail string) RowFailure {
	return RowFailure{
		Index:       i,
		TaskID:      in.TaskID,
		PerformerID: in.PerformerID,
		Month:       in.Month.Format("2006-01-02"),
		Reason:      reason,
		Detail:      detail,
	}
}
