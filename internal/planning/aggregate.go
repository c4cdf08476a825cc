package planning

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one validated effort cell, month already normalized.
type Entry struct {
	TaskID            string
	PerformerID       string
	Month             time.Time
	PlannedPersonDays decimal.Decimal
	ActualPersonDays  decimal.Decimal
}

// CostedCell is an effort cell with its monetary value attached. When
// no rate covers the cell's month RateResolved is false and both cost
// fields stay zero; such a cell is excluded from every cost sum rather
// than counted as free.
type CostedCell struct {
	Entry
	RateID       string
	CostPerDay   decimal.Decimal
	PlannedCost  decimal.Decimal
	ActualCost   decimal.Decimal
	RateResolved bool
}

// UnresolvedCell flags a cell that carries effort but has no covering
// rate. Reads surface these as warnings instead of failing.
type UnresolvedCell struct {
	TaskID      string    `json:"task_id"`
	PerformerID string    `json:"performer_id"`
	Month       time.Time `json:"month"`
}

// Totals is a pair of planned/actual sums, used for both person-days
// and money.
type Totals struct {
	Planned decimal.Decimal `json:"planned"`
	Actual  decimal.Decimal `json:"actual"`
}

func (t Totals) add(planned, actual decimal.Decimal) Totals {
	return Totals{Planned: t.Planned.Add(planned), Actual: t.Actual.Add(actual)}
}

// Aggregation is the full derived view over one set of effort cells.
// Map keys are normalized months; money totals only include cells whose
// rate resolved.
type Aggregation struct {
	Cells []CostedCell

	TaskEffortByMonth      map[string]map[time.Time]Totals
	PerformerEffortByMonth map[string]map[time.Time]Totals
	MonthEffort            map[time.Time]Totals
	MonthCost              map[time.Time]Totals

	TaskEffortTotal      map[string]Totals
	PerformerEffortTotal map[string]Totals
	EffortTotal          Totals
	CostTotal            Totals

	Unresolved []UnresolvedCell
}

// Aggregate costs every entry against the supplied rate candidates and
// folds the results into task, performer and month totals. Entries with
// zero effort and no covering rate are quietly zero; entries with
// effort and no rate are reported in Unresolved.
func Aggregate(entries []Entry, rates []Rate, projectID string, fteDivisor int) Aggregation {
	agg := Aggregation{
		Cells:                  make([]CostedCell, 0, len(entries)),
		TaskEffortByMonth:      make(map[string]map[time.Time]Totals),
		PerformerEffortByMonth: make(map[string]map[time.Time]Totals),
		MonthEffort:            make(map[time.Time]Totals),
		MonthCost:              make(map[time.Time]Totals),
		TaskEffortTotal:        make(map[string]Totals),
		PerformerEffortTotal:   make(map[string]Totals),
	}
	for _, e := range entries {
		e.Month = NormalizeMonth(e.Month)
		cell := CostedCell{Entry: e}
		if r, ok := ResolveRate(rates, e.PerformerID, projectID, e.Month); ok {
			perDay := CostPerDay(r, fteDivisor)
			cell.RateID = r.ID
			cell.CostPerDay = perDay
			cell.PlannedCost = e.PlannedPersonDays.Mul(perDay)
			cell.ActualCost = e.ActualPersonDays.Mul(perDay)
			cell.RateResolved = true
		} else if !e.PlannedPersonDays.IsZero() || !e.ActualPersonDays.IsZero() {
			agg.Unresolved = append(agg.Unresolved, UnresolvedCell{
				TaskID:      e.TaskID,
				PerformerID: e.PerformerID,
				Month:       e.Month,
			})
		}
		agg.Cells = append(agg.Cells, cell)

		if agg.TaskEffortByMonth[e.TaskID] == nil {
			agg.TaskEffortByMonth[e.TaskID] = make(map[time.Time]Totals)
		}
		if agg.PerformerEffortByMonth[e.PerformerID] == nil {
			agg.PerformerEffortByMonth[e.PerformerID] = make(map[time.Time]Totals)
		}
		agg.TaskEffortByMonth[e.TaskID][e.Month] = agg.TaskEffortByMonth[e.TaskID][e.Month].add(e.PlannedPersonDays, e.ActualPersonDays)
		agg.PerformerEffortByMonth[e.PerformerID][e.Month] = agg.PerformerEffortByMonth[e.PerformerID][e.Month].add(e.PlannedPersonDays, e.ActualPersonDays)
		agg.MonthEffort[e.Month] = agg.MonthEffort[e.Month].add(e.PlannedPersonDays, e.ActualPersonDays)
		agg.TaskEffortTotal[e.TaskID] = agg.TaskEffortTotal[e.TaskID].add(e.PlannedPersonDays, e.ActualPersonDays)
		agg.PerformerEffortTotal[e.PerformerID] = agg.PerformerEffortTotal[e.PerformerID].add(e.PlannedPersonDays, e.ActualPersonDays)
		agg.EffortTotal = agg.EffortTotal.add(e.PlannedPersonDays, e.ActualPersonDays)

		if cell.RateResolved {
			agg.MonthCost[e.Month] = agg.MonthCost[e.Month].add(cell.PlannedCost, cell.ActualCost)
			agg.CostTotal = agg.CostTotal.add(cell.PlannedCost, cell.ActualCost)
		}
	}
	return agg
}
