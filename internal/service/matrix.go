package service

import (
	"context"
	"time"

	"github.com/atalarczyk/PPLAN/internal/access"
	"github.com/atalarczyk/PPLAN/internal/entity"
	"github.com/atalarczyk/PPLAN/internal/planning"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MatrixCell is one effort cell with its costing outcome.
type MatrixCell struct {
	TaskID            string          `json:"task_id"`
	PerformerID       string          `json:"performer_id"`
	Month             time.Time       `json:"month"`
	PlannedPersonDays decimal.Decimal `json:"planned_person_days"`
	ActualPersonDays  decimal.Decimal `json:"actual_person_days"`
	PlannedCost       decimal.Decimal `json:"planned_cost"`
	ActualCost        decimal.Decimal `json:"actual_cost"`
	RateResolved      bool            `json:"rate_resolved"`
}

// MonthTotals is effort and cost for one month of the window.
type MonthTotals struct {
	Month  time.Time       `json:"month"`
	Effort planning.Totals `json:"effort"`
	Cost   planning.Totals `json:"cost"`
}

// MatrixView is the assembled read model of one project window.
type MatrixView struct {
	Project         *entity.Project            `json:"project"`
	Stages          []entity.ProjectStage      `json:"stages"`
	Tasks           []entity.Task              `json:"tasks"`
	Performers      []entity.Performer         `json:"performers"`
	Months          []time.Time                `json:"months"`
	Cells           []MatrixCell               `json:"cells"`
	TaskTotals      map[string]planning.Totals `json:"task_totals"`
	PerformerTotals map[string]planning.Totals `json:"performer_totals"`
	MonthTotals     []MonthTotals              `json:"month_totals"`
	EffortTotal     planning.Totals            `json:"effort_total"`
	CostTotal       planning.Totals            `json:"cost_total"`
	Unresolved      []planning.UnresolvedCell  `json:"unresolved,omitempty"`

	WindowFrom time.Time `json:"window_from"`
	WindowTo   time.Time `json:"window_to"`
	Clipped    bool      `json:"clipped"`
}

// ReadMatrix assembles the matrix for a month window. A window spilling
// past the project range is clipped and flagged, never an error; nil
// bounds default to the full project range.
func (s *PlanningService) ReadMatrix(ctx context.Context, userID, projectID string, from, to *time.Time) (*MatrixView, error) {
	project, err := s.requireProject(ctx, userID, projectID, access.CapProjectRead)
	if err != nil {
		return nil, err
	}

	reqFrom := project.StartMonth
	if from != nil {
		reqFrom = *from
	}
	reqTo := project.EndMonth
	if to != nil {
		reqTo = *to
	}
	winFrom, winTo, clipped := planning.ClipRange(reqFrom, reqTo, project.StartMonth, project.EndMonth)

	stages, err := s.repos.Stage.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repos.Task.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	performers, err := s.repos.Performer.ListByBusinessUnit(ctx, project.BusinessUnitID, false)
	if err != nil {
		return nil, err
	}

	view := &MatrixView{
		Project:         project,
		Stages:          stages,
		Tasks:           tasks,
		Performers:      performers,
		Months:          planning.MonthSequence(winFrom, winTo),
		WindowFrom:      winFrom,
		WindowTo:        winTo,
		Clipped:         clipped,
		TaskTotals:      map[string]planning.Totals{},
		PerformerTotals: map[string]planning.Totals{},
	}
	if winFrom.After(winTo) {
		// Window clipped to nothing.
		view.Cells = []MatrixCell{}
		view.MonthTotals = []MonthTotals{}
		return view, nil
	}

	entries, err := s.repos.Effort.ListByProjectWindow(ctx, projectID, winFrom, winTo)
	if err != nil {
		return nil, err
	}
	performerIDs := make([]string, len(performers))
	for i, p := range performers {
		performerIDs[i] = p.ID
	}
	rateRows, err := s.repos.Rate.ListForProject(ctx, projectID, performerIDs)
	if err != nil {
		return nil, err
	}

	agg := planning.Aggregate(toEngineEntries(entries), toEngineRates(rateRows), projectID, s.fteDivisor)

	view.Cells = make([]MatrixCell, len(agg.Cells))
	for i, c := range agg.Cells {
		view.Cells[i] = MatrixCell{
			TaskID:            c.TaskID,
			PerformerID:       c.PerformerID,
			Month:             c.Month,
			PlannedPersonDays: c.PlannedPersonDays,
			ActualPersonDays:  c.ActualPersonDays,
			PlannedCost:       c.PlannedCost,
			ActualCost:        c.ActualCost,
			RateResolved:      c.RateResolved,
		}
	}
	view.TaskTotals = agg.TaskEffortTotal
	view.PerformerTotals = agg.PerformerEffortTotal
	view.EffortTotal = agg.EffortTotal
	view.CostTotal = agg.CostTotal
	view.Unresolved = agg.Unresolved

	view.MonthTotals = make([]MonthTotals, len(view.Months))
	for i, m := range view.Months {
		view.MonthTotals[i] = MonthTotals{
			Month:  m,
			Effort: agg.MonthEffort[m],
			Cost:   agg.MonthCost[m],
		}
	}
	return view, nil
}

// SnapshotView is one stored snapshot row with its derived margins and
// percentages. Percentages are nil while cumulative revenue is zero.
type SnapshotView struct {
	entity.ProjectMonthlySnapshot
	MonthMargin        decimal.Decimal  `json:"month_margin"`
	CumulativeMargin   decimal.Decimal  `json:"cumulative_margin"`
	MarginPercent      *decimal.Decimal `json:"margin_percent"`
	RealizationPercent *decimal.Decimal `json:"realization_percent"`
}

// snapshotView derives the read-side figures from one persisted row.
func snapshotView(row entity.ProjectMonthlySnapshot) SnapshotView {
	derived := planning.SnapshotRow{
		ActualCost:              row.ActualCost,
		RevenueAmount:           row.RevenueAmount,
		CumulativeActualCost:    row.CumulativeActualCost,
		CumulativeRevenue:       row.CumulativeRevenue,
		CumulativeInvoiceAmount: row.CumulativeInvoiceAmount,
	}
	return SnapshotView{
		ProjectMonthlySnapshot: row,
		MonthMargin:            derived.MonthMargin(),
		CumulativeMargin:       derived.CumulativeMargin(),
		MarginPercent:          derived.MarginPercent(),
		RealizationPercent:     derived.RealizationPercent(),
	}
}

// SnapshotWindow is the windowed snapshot read result.
type SnapshotWindow struct {
	Snapshots  []SnapshotView `json:"snapshots"`
	WindowFrom time.Time      `json:"window_from"`
	WindowTo   time.Time      `json:"window_to"`
	Clipped    bool           `json:"clipped"`
}

// ListSnapshots reads stored snapshot rows for a window, clipping it to
// the project range like ReadMatrix does.
func (s *PlanningService) ListSnapshots(ctx context.Context, userID, projectID string, from, to *time.Time) (*SnapshotWindow, error) {
	project, err := s.requireProject(ctx, userID, projectID, access.CapProjectRead)
	if err != nil {
		return nil, err
	}

	reqFrom := project.StartMonth
	if from != nil {
		reqFrom = *from
	}
	reqTo := project.EndMonth
	if to != nil {
		reqTo = *to
	}
	winFrom, winTo, clipped := planning.ClipRange(reqFrom, reqTo, project.StartMonth, project.EndMonth)

	result := &SnapshotWindow{
		Snapshots:  []SnapshotView{},
		WindowFrom: winFrom,
		WindowTo:   winTo,
		Clipped:    clipped,
	}
	if winFrom.After(winTo) {
		return result, nil
	}

	rows, err := s.repos.Snapshot.ListByProjectWindow(ctx, projectID, winFrom, winTo)
	if err != nil {
		return nil, err
	}
	result.Snapshots = make([]SnapshotView, len(rows))
	for i, row := range rows {
		result.Snapshots[i] = snapshotView(row)
	}
	return result, nil
}

// RecomputeSnapshots forces a full rebuild, for admin repair after
// direct data fixes.
func (s *PlanningService) RecomputeSnapshots(ctx context.Context, actorID, projectID string) error {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapProjectWrite)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.repos.Project.LockByID(ctx, tx, project.ID)
		if err != nil {
			return err
		}
		return s.refreshSnapshots(ctx, tx, locked)
	})
}
