package service

import (
	"context"
	"sort"
	"time"

	"github.com/atalarczyk/PPLAN/internal/access"
	"github.com/atalarczyk/PPLAN/internal/entity"
	"github.com/atalarczyk/PPLAN/internal/planning"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Report groupings and measures.
const (
	GroupByPerformer = "performer"
	GroupByTask      = "task"

	MeasureEffort = "effort"
	MeasureCost   = "cost"
)

// ReportService builds the read-only reporting surfaces from effort
// cells and stored snapshots.
type ReportService struct {
	repos      *repository.Repositories
	scopes     ScopeResolver
	fteDivisor int
	logger     *zap.Logger
}

func NewReportService(repos *repository.Repositories, scopes ScopeResolver, fteDivisor int, logger *zap.Logger) *ReportService {
	return &ReportService{
		repos:      repos,
		scopes:     scopes,
		fteDivisor: fteDivisor,
		logger:     logger,
	}
}

func (s *ReportService) requireProject(ctx context.Context, userID, projectID string, c access.Capability) (*entity.Project, error) {
	project, err := s.repos.Project.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	scope, err := s.scopes.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(c, project.BusinessUnitID) {
		return nil, access.ErrScopeDenied
	}
	return project, nil
}

// ReportRow is one grouped line: monthly values plus totals and the
// actual-minus-planned variance.
type ReportRow struct {
	Key      string                     `json:"key"`
	Name     string                     `json:"name"`
	Monthly  map[string]planning.Totals `json:"monthly"`
	Total    planning.Totals            `json:"total"`
	Variance decimal.Decimal            `json:"variance"`
}

// Report is a grouped monthly breakdown of one measure over a window.
type Report struct {
	ProjectID  string                    `json:"project_id"`
	GroupBy    string                    `json:"group_by"`
	Measure    string                    `json:"measure"`
	Months     []time.Time               `json:"months"`
	Rows       []ReportRow               `json:"rows"`
	Total      planning.Totals           `json:"total"`
	Unresolved []planning.UnresolvedCell `json:"unresolved,omitempty"`
	WindowFrom time.Time                 `json:"window_from"`
	WindowTo   time.Time                 `json:"window_to"`
	Clipped    bool                      `json:"clipped"`
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ReportFilter narrows a report: an optional month window plus optional
// performer and task ID lists. Empty lists mean "all".
type ReportFilter struct {
	From         *time.Time
	To           *time.Time
	PerformerIDs []string
	TaskIDs      []string
}

func idSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// BuildReport produces one of the four report variants: effort or cost,
// grouped by performer or task. Cost reports exclude unresolved cells
// from every sum and list them as warnings.
func (s *ReportService) BuildReport(ctx context.Context, userID, projectID, groupBy, measure string, filter ReportFilter) (*Report, error) {
	if groupBy != GroupByPerformer && groupBy != GroupByTask {
		return nil, validationf("unknown group_by %q", groupBy)
	}
	if measure != MeasureEffort && measure != MeasureCost {
		return nil, validationf("unknown measure %q", measure)
	}

	project, err := s.requireProject(ctx, userID, projectID, access.CapReportsView)
	if err != nil {
		return nil, err
	}

	reqFrom := project.StartMonth
	if filter.From != nil {
		reqFrom = *filter.From
	}
	reqTo := project.EndMonth
	if filter.To != nil {
		reqTo = *filter.To
	}
	winFrom, winTo, clipped := planning.ClipRange(reqFrom, reqTo, project.StartMonth, project.EndMonth)

	report := &Report{
		ProjectID:  projectID,
		GroupBy:    groupBy,
		Measure:    measure,
		Months:     planning.MonthSequence(winFrom, winTo),
		Rows:       []ReportRow{},
		WindowFrom: winFrom,
		WindowTo:   winTo,
		Clipped:    clipped,
	}
	if winFrom.After(winTo) {
		return report, nil
	}

	entries, err := s.repos.Effort.ListByProjectWindow(ctx, projectID, winFrom, winTo)
	if err != nil {
		return nil, err
	}
	if wantPerformers, wantTasks := idSet(filter.PerformerIDs), idSet(filter.TaskIDs); wantPerformers != nil || wantTasks != nil {
		filtered := entries[:0]
		for _, e := range entries {
			if wantPerformers != nil && !wantPerformers[e.PerformerID] {
				continue
			}
			if wantTasks != nil && !wantTasks[e.TaskID] {
				continue
			}
			filtered = append(filtered, e)
		}
		entries = filtered
	}
	performers, err := s.repos.Performer.ListByBusinessUnit(ctx, project.BusinessUnitID, false)
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
	tasks, err := s.repos.Task.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	agg := planning.Aggregate(toEngineEntries(entries), toEngineRates(rateRows), projectID, s.fteDivisor)

	names := make(map[string]string)
	if groupBy == GroupByPerformer {
		for _, p := range performers {
			names[p.ID] = p.DisplayName
		}
	} else {
		for _, t := range tasks {
			names[t.ID] = t.Name
		}
	}

	rows := make(map[string]*ReportRow)
	for _, cell := range agg.Cells {
		key := cell.PerformerID
		if groupBy == GroupByTask {
			key = cell.TaskID
		}
		row, ok := rows[key]
		if !ok {
			row = &ReportRow{Key: key, Name: names[key], Monthly: map[string]planning.Totals{}}
			rows[key] = row
		}

		var planned, actual decimal.Decimal
		if measure == MeasureEffort {
			planned, actual = cell.PlannedPersonDays, cell.ActualPersonDays
		} else {
			if !cell.RateResolved {
				continue
			}
			planned, actual = cell.PlannedCost, cell.ActualCost
		}
		mk := monthKey(cell.Month)
		mv := row.Monthly[mk]
		row.Monthly[mk] = planning.Totals{Planned: mv.Planned.Add(planned), Actual: mv.Actual.Add(actual)}
		row.Total = planning.Totals{Planned: row.Total.Planned.Add(planned), Actual: row.Total.Actual.Add(actual)}
		report.Total = planning.Totals{Planned: report.Total.Planned.Add(planned), Actual: report.Total.Actual.Add(actual)}
	}

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row := rows[k]
		row.Variance = row.Total.Actual.Sub(row.Total.Planned)
		report.Rows = append(report.Rows, *row)
	}

	if measure == MeasureCost {
		report.Unresolved = agg.Unresolved
	}
	return report, nil
}

// ProjectDashboard is one project's current financial picture, read
// from the stored snapshot series.
type ProjectDashboard struct {
	Project            *entity.Project  `json:"project"`
	PlannedPersonDays  decimal.Decimal  `json:"planned_person_days"`
	ActualPersonDays   decimal.Decimal  `json:"actual_person_days"`
	PlannedCost        decimal.Decimal  `json:"planned_cost"`
	ActualCost         decimal.Decimal  `json:"actual_cost"`
	Revenue            decimal.Decimal  `json:"revenue"`
	InvoicedAmount     decimal.Decimal  `json:"invoiced_amount"`
	Margin             decimal.Decimal  `json:"margin"`
	MarginPercent      *decimal.Decimal `json:"margin_percent"`
	RealizationPercent *decimal.Decimal `json:"realization_percent"`
	Months             []SnapshotView   `json:"months"`
}

// GetProjectDashboard reads the full snapshot series and derives the
// headline figures from the final cumulative row.
func (s *ReportService) GetProjectDashboard(ctx context.Context, userID, projectID string) (*ProjectDashboard, error) {
	project, err := s.requireProject(ctx, userID, projectID, access.CapDashboardView)
	if err != nil {
		return nil, err
	}
	rows, err := s.repos.Snapshot.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	dashboard := &ProjectDashboard{Project: project, Months: make([]SnapshotView, len(rows))}
	for i, row := range rows {
		dashboard.Months[i] = snapshotView(row)
		dashboard.PlannedPersonDays = dashboard.PlannedPersonDays.Add(row.PlannedPersonDays)
		dashboard.ActualPersonDays = dashboard.ActualPersonDays.Add(row.ActualPersonDays)
	}
	if len(rows) > 0 {
		last := dashboard.Months[len(rows)-1]
		dashboard.PlannedCost = last.CumulativePlannedCost
		dashboard.ActualCost = last.CumulativeActualCost
		dashboard.Revenue = last.CumulativeRevenue
		dashboard.InvoicedAmount = last.CumulativeInvoiceAmount
		dashboard.Margin = last.CumulativeMargin
		dashboard.MarginPercent = last.MarginPercent
		dashboard.RealizationPercent = last.RealizationPercent
	}
	return dashboard, nil
}

// UnitDashboardRow summarizes one project inside the unit dashboard.
type UnitDashboardRow struct {
	Project     entity.Project   `json:"project"`
	PlannedCost decimal.Decimal  `json:"planned_cost"`
	ActualCost  decimal.Decimal  `json:"actual_cost"`
	Revenue     decimal.Decimal  `json:"revenue"`
	Margin      decimal.Decimal  `json:"margin"`
	MarginPct   *decimal.Decimal `json:"margin_percent"`
}

// UnitDashboard aggregates every project of a business unit.
type UnitDashboard struct {
	BusinessUnitID string             `json:"business_unit_id"`
	Projects       []UnitDashboardRow `json:"projects"`
	PlannedCost    decimal.Decimal    `json:"planned_cost"`
	ActualCost     decimal.Decimal    `json:"actual_cost"`
	Revenue        decimal.Decimal    `json:"revenue"`
	Margin         decimal.Decimal    `json:"margin"`
}

// GetUnitDashboard rolls up the final cumulative snapshot of every
// project in the unit.
func (s *ReportService) GetUnitDashboard(ctx context.Context, userID, businessUnitID string) (*UnitDashboard, error) {
	scope, err := s.scopes.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(access.CapDashboardView, businessUnitID) {
		return nil, access.ErrScopeDenied
	}

	projects, err := s.repos.Project.ListByBusinessUnit(ctx, businessUnitID, "")
	if err != nil {
		return nil, err
	}

	dashboard := &UnitDashboard{BusinessUnitID: businessUnitID, Projects: make([]UnitDashboardRow, 0, len(projects))}
	for _, project := range projects {
		rows, err := s.repos.Snapshot.ListByProject(ctx, project.ID)
		if err != nil {
			return nil, err
		}
		row := UnitDashboardRow{Project: project}
		if len(rows) > 0 {
			last := snapshotView(rows[len(rows)-1])
			row.PlannedCost = last.CumulativePlannedCost
			row.ActualCost = last.CumulativeActualCost
			row.Revenue = last.CumulativeRevenue
			row.Margin = last.CumulativeMargin
			row.MarginPct = last.MarginPercent
		}
		dashboard.Projects = append(dashboard.Projects, row)
		dashboard.PlannedCost = dashboard.PlannedCost.Add(row.PlannedCost)
		dashboard.ActualCost = dashboard.ActualCost.Add(row.ActualCost)
		dashboard.Revenue = dashboard.Revenue.Add(row.Revenue)
	}
	dashboard.Margin = dashboard.Revenue.Sub(dashboard.ActualCost)
	return dashboard, nil
}
