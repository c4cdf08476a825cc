package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atalarczyk/PPLAN/internal/access"
	"github.com/atalarczyk/PPLAN/internal/entity"
	"github.com/atalarczyk/PPLAN/internal/planning"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/atalarczyk/PPLAN/internal/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type planningFixture struct {
	db        *gorm.DB
	repos     *repository.Repositories
	planning  *PlanningService
	finance   *FinanceService
	access    *AccessService
	user      *entity.User
	unit      *entity.BusinessUnit
	project   *entity.Project
	stage     *entity.ProjectStage
	task      *entity.Task
	performer *entity.Performer
}

// setupPlanningFixture builds a project with one stage, one active task
// and one assigned performer, owned by a business_unit_admin user.
func setupPlanningFixture(t *testing.T) *planningFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	logger := zap.NewNop()

	accessSvc := NewAccessService(repos, nil, time.Minute, logger)
	planningSvc := NewPlanningService(db, repos, accessSvc, 20, logger)
	financeSvc := NewFinanceService(db, repos, accessSvc, planningSvc, logger)

	user := testutil.SeedTestUser(t, db, "user-admin-1", "Unit Admin", "admin@pplan.test")
	unit := testutil.SeedBusinessUnit(t, db, "bu-1", "BU-ALPHA", "Alpha Unit")
	testutil.SeedRoleAssignment(t, db, "ra-1", user.ID, string(access.RoleBusinessUnitAdmin), unit.ID)

	project := &entity.Project{
		ID:             "proj-1",
		BusinessUnitID: unit.ID,
		Code:           "ALPHA-001",
		Name:           "Alpha Rollout",
		StartMonth:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndMonth:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:         entity.ProjectStatusActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}

	stage := &entity.ProjectStage{
		ID:         "stage-1",
		ProjectID:  project.ID,
		Name:       "Build",
		StartMonth: project.StartMonth,
		EndMonth:   project.EndMonth,
		ColorToken: "blue",
		SequenceNo: 1,
	}
	if err := db.Create(stage).Error; err != nil {
		t.Fatalf("Failed to seed stage: %v", err)
	}

	task := &entity.Task{
		ID:         "task-1",
		ProjectID:  project.ID,
		StageID:    stage.ID,
		Code:       "T-001",
		Name:       "Implementation",
		SequenceNo: 1,
		Active:     true,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}

	performer := &entity.Performer{
		ID:             "perf-1",
		BusinessUnitID: unit.ID,
		DisplayName:    "Jan Kowalski",
		Active:         true,
	}
	if err := db.Create(performer).Error; err != nil {
		t.Fatalf("Failed to seed performer: %v", err)
	}

	assignment := &entity.TaskPerformerAssignment{
		ID:          "assign-1",
		TaskID:      task.ID,
		PerformerID: performer.ID,
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("Failed to seed assignment: %v", err)
	}

	return &planningFixture{
		db:        db,
		repos:     repos,
		planning:  planningSvc,
		finance:   financeSvc,
		access:    accessSvc,
		user:      user,
		unit:      unit,
		project:   project,
		stage:     stage,
		task:      task,
		performer: performer,
	}
}

func (f *planningFixture) seedDayRate(t *testing.T, value string) *entity.PerformerRate {
	t.Helper()
	rate := &entity.PerformerRate{
		ID:                 "rate-" + value,
		BusinessUnitID:     f.unit.ID,
		PerformerID:        f.performer.ID,
		RateUnit:           entity.RateUnitDay,
		RateValue:          mustDecimal(t, value),
		EffectiveFromMonth: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := f.db.Create(rate).Error; err != nil {
		t.Fatalf("Failed to seed rate: %v", err)
	}
	return rate
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestBulkUpsertPartialBatch(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()

	rows := []EffortRow{
		{
			TaskID:            f.task.ID,
			PerformerID:       f.performer.ID,
			Month:             time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			PlannedPersonDays: mustDecimal(t, "5"),
			ActualPersonDays:  mustDecimal(t, "4"),
		},
		{
			TaskID:            f.task.ID,
			PerformerID:       f.performer.ID,
			Month:             time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			PlannedPersonDays: mustDecimal(t, "3"),
		},
		{
			TaskID:            f.task.ID,
			PerformerID:       "perf-unknown",
			Month:             time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			PlannedPersonDays: mustDecimal(t, "2"),
		},
	}

	result, err := f.planning.BulkUpsertEntries(ctx, f.user.ID, f.project.ID, rows)
	if err != nil {
		t.Fatalf("BulkUpsertEntries failed: %v", err)
	}
	if result.Accepted != 1 {
		t.Errorf("Expected 1 accepted row, got %d", result.Accepted)
	}
	if result.Failed != 2 {
		t.Errorf("Expected 2 failed rows, got %d", result.Failed)
	}
	reasons := map[string]bool{}
	for _, fail := range result.Failures {
		reasons[fail.Reason] = true
	}
	if !reasons[planning.ReasonMonthOutOfRange] {
		t.Errorf("Expected a %s failure, got %v", planning.ReasonMonthOutOfRange, result.Failures)
	}
	if !reasons[planning.ReasonUnknownPerformer] {
		t.Errorf("Expected a %s failure, got %v", planning.ReasonUnknownPerformer, result.Failures)
	}

	// The valid row is persisted even though siblings failed.
	var entries []entity.EffortMonthlyEntry
	if err := f.db.Where("project_id = ?", f.project.ID).Find(&entries).Error; err != nil {
		t.Fatalf("Failed to read effort entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 persisted entry, got %d", len(entries))
	}
	if !entries[0].PlannedPersonDays.Equal(mustDecimal(t, "5")) {
		t.Errorf("Expected planned 5, got %s", entries[0].PlannedPersonDays)
	}
}

func TestBulkUpsertOverwritesCell(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()
	month := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	write := func(planned string) {
		t.Helper()
		result, err := f.planning.BulkUpsertEntries(ctx, f.user.ID, f.project.ID, []EffortRow{{
			TaskID:            f.task.ID,
			PerformerID:       f.performer.ID,
			Month:             month,
			PlannedPersonDays: mustDecimal(t, planned),
		}})
		if err != nil {
			t.Fatalf("BulkUpsertEntries failed: %v", err)
		}
		if result.Accepted != 1 || result.Failed != 0 {
			t.Fatalf("Expected clean batch, got accepted=%d failed=%d", result.Accepted, result.Failed)
		}
	}
	write("5")
	write("7.5")

	var entries []entity.EffortMonthlyEntry
	if err := f.db.Where("project_id = ?", f.project.ID).Find(&entries).Error; err != nil {
		t.Fatalf("Failed to read effort entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected upsert to keep a single row, got %d", len(entries))
	}
	if !entries[0].PlannedPersonDays.Equal(mustDecimal(t, "7.5")) {
		t.Errorf("Expected planned 7.5 after overwrite, got %s", entries[0].PlannedPersonDays)
	}
}

func TestBulkUpsertRecomputesSnapshots(t *testing.T) {
	f := setupPlanningFixture(t)
	f.seedDayRate(t, "500")
	ctx := context.Background()

	_, err := f.planning.BulkUpsertEntries(ctx, f.user.ID, f.project.ID, []EffortRow{{
		TaskID:            f.task.ID,
		PerformerID:       f.performer.ID,
		Month:             time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		PlannedPersonDays: mustDecimal(t, "4"),
		ActualPersonDays:  mustDecimal(t, "3"),
	}})
	if err != nil {
		t.Fatalf("BulkUpsertEntries failed: %v", err)
	}

	window, err := f.planning.ListSnapshots(ctx, f.user.ID, f.project.ID, nil, nil)
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	// One row per project month regardless of where effort sits.
	if len(window.Snapshots) != 6 {
		t.Fatalf("Expected 6 snapshot rows, got %d", len(window.Snapshots))
	}

	feb := window.Snapshots[1]
	if !feb.PlannedCost.Equal(mustDecimal(t, "2000")) {
		t.Errorf("Expected planned cost 2000 in February, got %s", feb.PlannedCost)
	}
	if !feb.ActualCost.Equal(mustDecimal(t, "1500")) {
		t.Errorf("Expected actual cost 1500 in February, got %s", feb.ActualCost)
	}

	// Cumulative columns carry forward into empty months.
	june := window.Snapshots[5]
	if !june.CumulativePlannedCost.Equal(mustDecimal(t, "2000")) {
		t.Errorf("Expected cumulative planned cost 2000 in June, got %s", june.CumulativePlannedCost)
	}
}

func TestReadMatrixClipsWindow(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()

	from := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	view, err := f.planning.ReadMatrix(ctx, f.user.ID, f.project.ID, &from, &to)
	if err != nil {
		t.Fatalf("ReadMatrix failed: %v", err)
	}
	if !view.Clipped {
		t.Error("Expected the window to be flagged as clipped")
	}
	if len(view.Months) != 6 {
		t.Errorf("Expected 6 months after clipping, got %d", len(view.Months))
	}
	if !view.WindowFrom.Equal(f.project.StartMonth) || !view.WindowTo.Equal(f.project.EndMonth) {
		t.Errorf("Expected window %s..%s, got %s..%s",
			f.project.StartMonth, f.project.EndMonth, view.WindowFrom, view.WindowTo)
	}
}

func TestReadMatrixEmptyWindow(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()

	// Entirely before the project range: empty result, not an error.
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	view, err := f.planning.ReadMatrix(ctx, f.user.ID, f.project.ID, &from, &to)
	if err != nil {
		t.Fatalf("ReadMatrix failed: %v", err)
	}
	if !view.Clipped {
		t.Error("Expected the window to be flagged as clipped")
	}
	if len(view.Cells) != 0 || len(view.Months) != 0 {
		t.Errorf("Expected an empty view, got %d cells, %d months", len(view.Cells), len(view.Months))
	}
}

func TestReadMatrixUnresolvedRate(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()

	// No rate seeded: nonzero effort must surface as a warning and stay
	// out of the cost totals.
	_, err := f.planning.BulkUpsertEntries(ctx, f.user.ID, f.project.ID, []EffortRow{{
		TaskID:            f.task.ID,
		PerformerID:       f.performer.ID,
		Month:             time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		PlannedPersonDays: mustDecimal(t, "6"),
	}})
	if err != nil {
		t.Fatalf("BulkUpsertEntries failed: %v", err)
	}

	view, err := f.planning.ReadMatrix(ctx, f.user.ID, f.project.ID, nil, nil)
	if err != nil {
		t.Fatalf("ReadMatrix failed: %v", err)
	}
	if len(view.Unresolved) != 1 {
		t.Fatalf("Expected 1 unresolved cell, got %d", len(view.Unresolved))
	}
	if !view.CostTotal.Planned.IsZero() {
		t.Errorf("Expected zero planned cost total, got %s", view.CostTotal.Planned)
	}
	if !view.EffortTotal.Planned.Equal(mustDecimal(t, "6")) {
		t.Errorf("Expected effort total 6, got %s", view.EffortTotal.Planned)
	}
}

func TestUpdateProjectRangeShrinkRefused(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()

	_, err := f.planning.BulkUpsertEntries(ctx, f.user.ID, f.project.ID, []EffortRow{{
		TaskID:            f.task.ID,
		PerformerID:       f.performer.ID,
		Month:             time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		PlannedPersonDays: mustDecimal(t, "2"),
	}})
	if err != nil {
		t.Fatalf("BulkUpsertEntries failed: %v", err)
	}

	newEnd := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.planning.UpdateProject(ctx, f.user.ID, f.project.ID, UpdateProjectRequest{EndMonth: &newEnd})
	if !errors.Is(err, ErrInconsistentRange) {
		t.Fatalf("Expected ErrInconsistentRange, got %v", err)
	}

	// Shrinking to a range that still covers the data is fine and
	// rewrites the snapshot series for the new range.
	newEnd = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	project, err := f.planning.UpdateProject(ctx, f.user.ID, f.project.ID, UpdateProjectRequest{EndMonth: &newEnd})
	if err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	if !project.EndMonth.Equal(newEnd) {
		t.Errorf("Expected end month %s, got %s", newEnd, project.EndMonth)
	}
	window, err := f.planning.ListSnapshots(ctx, f.user.ID, f.project.ID, nil, nil)
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(window.Snapshots) != 4 {
		t.Errorf("Expected 4 snapshot rows after shrink, got %d", len(window.Snapshots))
	}
}

func TestBulkUpsertScopeDenied(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()

	viewer := testutil.SeedTestUser(t, f.db, "user-viewer-1", "Read Only", "viewer@pplan.test")
	testutil.SeedRoleAssignment(t, f.db, "ra-viewer", viewer.ID, string(access.RoleViewer), f.unit.ID)

	_, err := f.planning.BulkUpsertEntries(ctx, viewer.ID, f.project.ID, []EffortRow{{
		TaskID:            f.task.ID,
		PerformerID:       f.performer.ID,
		Month:             time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		PlannedPersonDays: mustDecimal(t, "1"),
	}})
	if !errors.Is(err, access.ErrScopeDenied) {
		t.Fatalf("Expected ErrScopeDenied for viewer, got %v", err)
	}

	// Other business unit's editor is denied too.
	otherUnit := testutil.SeedBusinessUnit(t, f.db, "bu-2", "BU-BETA", "Beta Unit")
	editor := testutil.SeedTestUser(t, f.db, "user-editor-2", "Beta Editor", "editor@pplan.test")
	testutil.SeedRoleAssignment(t, f.db, "ra-editor", editor.ID, string(access.RoleEditor), otherUnit.ID)

	_, err = f.planning.ReadMatrix(ctx, editor.ID, f.project.ID, nil, nil)
	if !errors.Is(err, access.ErrScopeDenied) {
		t.Fatalf("Expected ErrScopeDenied across units, got %v", err)
	}
}

func TestUnassignPerformerWithEffortRefused(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()

	_, err := f.planning.BulkUpsertEntries(ctx, f.user.ID, f.project.ID, []EffortRow{{
		TaskID:            f.task.ID,
		PerformerID:       f.performer.ID,
		Month:             time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ActualPersonDays:  mustDecimal(t, "3"),
		PlannedPersonDays: mustDecimal(t, "3"),
	}})
	if err != nil {
		t.Fatalf("BulkUpsertEntries failed: %v", err)
	}

	err = f.planning.UnassignPerformer(ctx, f.user.ID, f.project.ID, f.task.ID, f.performer.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict while effort rows exist, got %v", err)
	}
}

func TestDeleteTaskWithEffortRefused(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()

	_, err := f.planning.BulkUpsertEntries(ctx, f.user.ID, f.project.ID, []EffortRow{{
		TaskID:            f.task.ID,
		PerformerID:       f.performer.ID,
		Month:             time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PlannedPersonDays: mustDecimal(t, "1"),
	}})
	if err != nil {
		t.Fatalf("BulkUpsertEntries failed: %v", err)
	}

	if err := f.planning.DeleteTask(ctx, f.user.ID, f.project.ID, f.task.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	// Deactivation is the supported path; the next batch write for the
	// task must then fail per row.
	inactive := false
	if _, err := f.planning.UpdateTask(ctx, f.user.ID, f.project.ID, f.task.ID, UpdateTaskRequest{Active: &inactive}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	result, err := f.planning.BulkUpsertEntries(ctx, f.user.ID, f.project.ID, []EffortRow{{
		TaskID:            f.task.ID,
		PerformerID:       f.performer.ID,
		Month:             time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		PlannedPersonDays: mustDecimal(t, "1"),
	}})
	if err != nil {
		t.Fatalf("BulkUpsertEntries failed: %v", err)
	}
	if result.Accepted != 0 || result.Failed != 1 {
		t.Fatalf("Expected the row to fail, got accepted=%d failed=%d", result.Accepted, result.Failed)
	}
	if result.Failures[0].Reason != planning.ReasonInactiveTask {
		t.Errorf("Expected reason %s, got %s", planning.ReasonInactiveTask, result.Failures[0].Reason)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	f := setupPlanningFixture(t)
	ctx := context.Background()

	// Mid-month boundary is rejected.
	_, err := f.planning.CreateProject(ctx, f.user.ID, CreateProjectRequest{
		BusinessUnitID: f.unit.ID,
		Code:           "ALPHA-002",
		Name:           "Bad Range",
		StartMonth:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		EndMonth:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation for mid-month start, got %v", err)
	}

	// Duplicate code within the unit is a conflict.
	_, err = f.planning.CreateProject(ctx, f.user.ID, CreateProjectRequest{
		BusinessUnitID: f.unit.ID,
		Code:           "ALPHA-001",
		Name:           "Duplicate",
		StartMonth:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndMonth:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict for duplicate code, got %v", err)
	}
}
