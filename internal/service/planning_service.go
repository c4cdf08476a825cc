package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atalarczyk/PPLAN/internal/access"
	"github.com/atalarczyk/PPLAN/internal/entity"
	"github.com/atalarczyk/PPLAN/internal/planning"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PlanningService owns projects, their matrix structure and the effort
// cells. Every write that can move derived numbers recomputes the
// project's snapshots inside the same transaction.
type PlanningService struct {
	db         *gorm.DB
	repos      *repository.Repositories
	scopes     ScopeResolver
	fteDivisor int
	logger     *zap.Logger
}

func NewPlanningService(db *gorm.DB, repos *repository.Repositories, scopes ScopeResolver, fteDivisor int, logger *zap.Logger) *PlanningService {
	return &PlanningService{
		db:         db,
		repos:      repos,
		scopes:     scopes,
		fteDivisor: fteDivisor,
		logger:     logger,
	}
}

// requireProject loads the project and checks one capability in its
// business unit.
func (s *PlanningService) requireProject(ctx context.Context, userID, projectID string, c access.Capability) (*entity.Project, error) {
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

func (s *PlanningService) requireUnit(ctx context.Context, userID, businessUnitID string, c access.Capability) error {
	scope, err := s.scopes.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !scope.Allows(c, businessUnitID) {
		return access.ErrScopeDenied
	}
	return nil
}

func requireFirstOfMonth(name string, t time.Time) error {
	if !planning.IsFirstOfMonth(t) {
		return validationf("%s %s is not the first day of a month", name, t.Format("2006-01-02"))
	}
	return nil
}

// CreateProjectRequest creates a planning container.
type CreateProjectRequest struct {
	BusinessUnitID string    `json:"business_unit_id" binding:"required"`
	Code           string    `json:"code" binding:"required"`
	Name           string    `json:"name" binding:"required"`
	Description    string    `json:"description"`
	StartMonth     time.Time `json:"start_month" binding:"required"`
	EndMonth       time.Time `json:"end_month" binding:"required"`
}

func (s *PlanningService) CreateProject(ctx context.Context, actorID string, req CreateProjectRequest) (*entity.Project, error) {
	if err := s.requireUnit(ctx, actorID, req.BusinessUnitID, access.CapProjectWrite); err != nil {
		return nil, err
	}
	if err := requireFirstOfMonth("start_month", req.StartMonth); err != nil {
		return nil, err
	}
	if err := requireFirstOfMonth("end_month", req.EndMonth); err != nil {
		return nil, err
	}
	start := planning.NormalizeMonth(req.StartMonth)
	end := planning.NormalizeMonth(req.EndMonth)
	if start.After(end) {
		return nil, validationf("start_month %s is after end_month %s",
			start.Format("2006-01"), end.Format("2006-01"))
	}

	existing, err := s.repos.Project.ListByBusinessUnit(ctx, req.BusinessUnitID, "")
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.Code == req.Code {
			return nil, fmt.Errorf("%w: project code %s already exists in this business unit", ErrConflict, req.Code)
		}
	}

	now := time.Now().UTC()
	project := &entity.Project{
		ID:             uuid.New().String(),
		BusinessUnitID: req.BusinessUnitID,
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		StartMonth:     start,
		EndMonth:       end,
		Status:         entity.ProjectStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repos.Project.Create(ctx, project); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "project", project.ID, "create", nil, project)
	return project, nil
}

// UpdateProjectRequest changes metadata and, with care, the range.
type UpdateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	StartMonth  *time.Time `json:"start_month"`
	EndMonth    *time.Time `json:"end_month"`
}

// UpdateProject applies the patch. Shrinking the range is refused while
// any persisted effort entry or financial register row would fall
// outside it; a successful range change recomputes the snapshots.
func (s *PlanningService) UpdateProject(ctx context.Context, actorID, projectID string, req UpdateProjectRequest) (*entity.Project, error) {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapProjectWrite)
	if err != nil {
		return nil, err
	}
	before := *project

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Status != nil {
		switch *req.Status {
		case entity.ProjectStatusDraft, entity.ProjectStatusActive, entity.ProjectStatusClosed:
			project.Status = *req.Status
		default:
			return nil, validationf("unknown project status %q", *req.Status)
		}
	}

	rangeChanged := false
	if req.StartMonth != nil {
		if err := requireFirstOfMonth("start_month", *req.StartMonth); err != nil {
			return nil, err
		}
		project.StartMonth = planning.NormalizeMonth(*req.StartMonth)
		rangeChanged = true
	}
	if req.EndMonth != nil {
		if err := requireFirstOfMonth("end_month", *req.EndMonth); err != nil {
			return nil, err
		}
		project.EndMonth = planning.NormalizeMonth(*req.EndMonth)
		rangeChanged = true
	}
	if project.StartMonth.After(project.EndMonth) {
		return nil, validationf("start_month %s is after end_month %s",
			project.StartMonth.Format("2006-01"), project.EndMonth.Format("2006-01"))
	}

	if rangeChanged {
		if err := s.checkRangeCoversData(ctx, project); err != nil {
			return nil, err
		}
	}

	project.UpdatedAt = time.Now().UTC()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.repos.Project.LockByID(ctx, tx, project.ID); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Save(project).Error; err != nil {
			return err
		}
		if rangeChanged {
			return s.refreshSnapshots(ctx, tx, project)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "project", project.ID, "update", before, project)
	return project, nil
}

// checkRangeCoversData refuses a range that would orphan persisted
// months.
func (s *PlanningService) checkRangeCoversData(ctx context.Context, project *entity.Project) error {
	entries, err := s.repos.Effort.ListByProject(ctx, project.ID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !planning.MonthInRange(e.MonthStart, project.StartMonth, project.EndMonth) {
			return fmt.Errorf("%w: effort entry in %s would fall outside the new range",
				ErrInconsistentRange, e.MonthStart.Format("2006-01"))
		}
	}

	months, err := s.registerMonths(ctx, project.ID)
	if err != nil {
		return err
	}
	for _, m := range months {
		if !planning.MonthInRange(m, project.StartMonth, project.EndMonth) {
			return fmt.Errorf("%w: financial register row in %s would fall outside the new range",
				ErrInconsistentRange, m.Format("2006-01"))
		}
	}
	return nil
}

func (s *PlanningService) registerMonths(ctx context.Context, projectID string) ([]time.Time, error) {
	var months []time.Time
	requests, err := s.repos.FinancialRequest.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, r := range requests {
		months = append(months, r.MonthStart)
	}
	invoices, err := s.repos.Invoice.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, i := range invoices {
		months = append(months, i.MonthStart)
	}
	revenues, err := s.repos.Revenue.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, r := range revenues {
		months = append(months, r.MonthStart)
	}
	return months, nil
}

func (s *PlanningService) GetProject(ctx context.Context, userID, projectID string) (*entity.Project, error) {
	return s.requireProject(ctx, userID, projectID, access.CapProjectRead)
}

func (s *PlanningService) ListProjects(ctx context.Context, userID, businessUnitID, status string) ([]entity.Project, error) {
	if err := s.requireUnit(ctx, userID, businessUnitID, access.CapProjectRead); err != nil {
		return nil, err
	}
	return s.repos.Project.ListByBusinessUnit(ctx, businessUnitID, status)
}

// CreateStageRequest adds a display grouping.
type CreateStageRequest struct {
	Name       string    `json:"name" binding:"required"`
	StartMonth time.Time `json:"start_month" binding:"required"`
	EndMonth   time.Time `json:"end_month" binding:"required"`
	ColorToken string    `json:"color_token"`
	SequenceNo int       `json:"sequence_no"`
}

func (s *PlanningService) CreateStage(ctx context.Context, actorID, projectID string, req CreateStageRequest) (*entity.ProjectStage, error) {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapProjectWrite)
	if err != nil {
		return nil, err
	}
	if err := requireFirstOfMonth("start_month", req.StartMonth); err != nil {
		return nil, err
	}
	if err := requireFirstOfMonth("end_month", req.EndMonth); err != nil {
		return nil, err
	}
	start := planning.NormalizeMonth(req.StartMonth)
	end := planning.NormalizeMonth(req.EndMonth)
	if start.After(end) {
		return nil, validationf("stage start_month is after end_month")
	}
	if !planning.MonthInRange(start, project.StartMonth, project.EndMonth) ||
		!planning.MonthInRange(end, project.StartMonth, project.EndMonth) {
		return nil, validationf("stage range must sit inside the project range %s..%s",
			project.StartMonth.Format("2006-01"), project.EndMonth.Format("2006-01"))
	}

	stage := &entity.ProjectStage{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		Name:       req.Name,
		StartMonth: start,
		EndMonth:   end,
		ColorToken: req.ColorToken,
		SequenceNo: req.SequenceNo,
	}
	if err := s.repos.Stage.Create(ctx, stage); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "project_stage", stage.ID, "create", nil, stage)
	return stage, nil
}

func (s *PlanningService) DeleteStage(ctx context.Context, actorID, projectID, stageID string) error {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapProjectWrite)
	if err != nil {
		return err
	}
	stage, err := s.repos.Stage.FindByID(ctx, stageID)
	if err != nil {
		return err
	}
	if stage.ProjectID != projectID {
		return repository.ErrNotFound
	}
	count, err := s.repos.Stage.CountTasks(ctx, stageID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: stage still has %d tasks", ErrConflict, count)
	}
	if err := s.repos.Stage.Delete(ctx, stageID); err != nil {
		return err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "project_stage", stageID, "delete", stage, nil)
	return nil
}

// CreateTaskRequest adds a matrix row.
type CreateTaskRequest struct {
	StageID    string `json:"stage_id" binding:"required"`
	Code       string `json:"code" binding:"required"`
	Name       string `json:"name" binding:"required"`
	SequenceNo int    `json:"sequence_no"`
}

func (s *PlanningService) CreateTask(ctx context.Context, actorID, projectID string, req CreateTaskRequest) (*entity.Task, error) {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapProjectWrite)
	if err != nil {
		return nil, err
	}
	stage, err := s.repos.Stage.FindByID(ctx, req.StageID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, validationf("stage %s does not exist", req.StageID)
		}
		return nil, err
	}
	if stage.ProjectID != projectID {
		return nil, validationf("stage %s belongs to another project", req.StageID)
	}

	task := &entity.Task{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		StageID:    req.StageID,
		Code:       req.Code,
		Name:       req.Name,
		SequenceNo: req.SequenceNo,
		Active:     true,
	}
	if err := s.repos.Task.Create(ctx, task); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "task", task.ID, "create", nil, task)
	return task, nil
}

// UpdateTaskRequest patches a task. Setting Active=false soft-disables
// it: history stays, new effort writes are rejected.
type UpdateTaskRequest struct {
	Name       *string `json:"name"`
	StageID    *string `json:"stage_id"`
	SequenceNo *int    `json:"sequence_no"`
	Active     *bool   `json:"active"`
}

func (s *PlanningService) UpdateTask(ctx context.Context, actorID, projectID, taskID string, req UpdateTaskRequest) (*entity.Task, error) {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapProjectWrite)
	if err != nil {
		return nil, err
	}
	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.ProjectID != projectID {
		return nil, repository.ErrNotFound
	}
	before := *task

	if req.Name != nil {
		task.Name = *req.Name
	}
	if req.StageID != nil {
		stage, err := s.repos.Stage.FindByID(ctx, *req.StageID)
		if err != nil || stage.ProjectID != projectID {
			return nil, validationf("stage %s does not exist in this project", *req.StageID)
		}
		task.StageID = *req.StageID
	}
	if req.SequenceNo != nil {
		task.SequenceNo = *req.SequenceNo
	}
	if req.Active != nil {
		task.Active = *req.Active
	}
	if err := s.repos.Task.Update(ctx, task); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "task", task.ID, "update", before, task)
	return task, nil
}

// DeleteTask removes a task outright only while no effort rows
// reference it. Otherwise callers must deactivate instead.
func (s *PlanningService) DeleteTask(ctx context.Context, actorID, projectID, taskID string) error {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapProjectWrite)
	if err != nil {
		return err
	}
	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.ProjectID != projectID {
		return repository.ErrNotFound
	}
	count, err := s.repos.Task.CountEffortEntries(ctx, taskID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: task has %d effort entries, deactivate it instead", ErrConflict, count)
	}
	if err := s.repos.Task.Delete(ctx, taskID); err != nil {
		return err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "task", taskID, "delete", task, nil)
	return nil
}

// CreatePerformerRequest adds a unit-scoped actor.
type CreatePerformerRequest struct {
	BusinessUnitID string `json:"business_unit_id" binding:"required"`
	DisplayName    string `json:"display_name" binding:"required"`
	ExternalRef    string `json:"external_ref"`
}

func (s *PlanningService) CreatePerformer(ctx context.Context, actorID string, req CreatePerformerRequest) (*entity.Performer, error) {
	if err := s.requireUnit(ctx, actorID, req.BusinessUnitID, access.CapProjectWrite); err != nil {
		return nil, err
	}
	performer := &entity.Performer{
		ID:             uuid.New().String(),
		BusinessUnitID: req.BusinessUnitID,
		ExternalRef:    req.ExternalRef,
		DisplayName:    req.DisplayName,
		Active:         true,
	}
	if err := s.repos.Performer.Create(ctx, performer); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, req.BusinessUnitID, "performer", performer.ID, "create", nil, performer)
	return performer, nil
}

// UpdatePerformerRequest patches a performer; Active=false
// soft-disables.
type UpdatePerformerRequest struct {
	DisplayName *string `json:"display_name"`
	ExternalRef *string `json:"external_ref"`
	Active      *bool   `json:"active"`
}

func (s *PlanningService) UpdatePerformer(ctx context.Context, actorID, performerID string, req UpdatePerformerRequest) (*entity.Performer, error) {
	performer, err := s.repos.Performer.FindByID(ctx, performerID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUnit(ctx, actorID, performer.BusinessUnitID, access.CapProjectWrite); err != nil {
		return nil, err
	}
	before := *performer

	if req.DisplayName != nil {
		performer.DisplayName = *req.DisplayName
	}
	if req.ExternalRef != nil {
		performer.ExternalRef = *req.ExternalRef
	}
	if req.Active != nil {
		performer.Active = *req.Active
	}
	if err := s.repos.Performer.Update(ctx, performer); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, performer.BusinessUnitID, "performer", performer.ID, "update", before, performer)
	return performer, nil
}

func (s *PlanningService) ListPerformers(ctx context.Context, userID, businessUnitID string, activeOnly bool) ([]entity.Performer, error) {
	if err := s.requireUnit(ctx, userID, businessUnitID, access.CapProjectRead); err != nil {
		return nil, err
	}
	return s.repos.Performer.ListByBusinessUnit(ctx, businessUnitID, activeOnly)
}

// AssignPerformer links a performer to a task. The performer must live
// in the project's business unit.
func (s *PlanningService) AssignPerformer(ctx context.Context, actorID, projectID, taskID, performerID string) (*entity.TaskPerformerAssignment, error) {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapProjectWrite)
	if err != nil {
		return nil, err
	}
	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil || task.ProjectID != projectID {
		return nil, validationf("task %s does not exist in this project", taskID)
	}
	performer, err := s.repos.Performer.FindByID(ctx, performerID)
	if err != nil {
		return nil, validationf("performer %s does not exist", performerID)
	}
	if performer.BusinessUnitID != project.BusinessUnitID {
		return nil, validationf("performer %s belongs to another business unit", performerID)
	}
	exists, err := s.repos.Assignment.Exists(ctx, taskID, performerID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: performer already assigned to this task", ErrConflict)
	}

	assignment := &entity.TaskPerformerAssignment{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		PerformerID: performerID,
	}
	if err := s.repos.Assignment.Create(ctx, assignment); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "task_performer_assignment", assignment.ID, "create", nil, assignment)
	return assignment, nil
}

// UnassignPerformer removes the link, refused while effort rows exist
// for the pair.
func (s *PlanningService) UnassignPerformer(ctx context.Context, actorID, projectID, taskID, performerID string) error {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapProjectWrite)
	if err != nil {
		return err
	}
	count, err := s.repos.Assignment.CountEffortEntries(ctx, taskID, performerID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d effort entries exist for this pair", ErrConflict, count)
	}
	if err := s.repos.Assignment.Delete(ctx, taskID, performerID); err != nil {
		return err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "task_performer_assignment",
		planning.AssignmentKey(taskID, performerID), "delete", nil, nil)
	return nil
}

// EffortRow is one cell in a batch write.
type EffortRow struct {
	TaskID            string          `json:"task_id" binding:"required"`
	PerformerID       string          `json:"performer_id" binding:"required"`
	Month             time.Time       `json:"month" binding:"required"`
	PlannedPersonDays decimal.Decimal `json:"planned_person_days"`
	ActualPersonDays  decimal.Decimal `json:"actual_person_days"`
}

// BulkUpsertResult reports a partially-applied batch: accepted rows
// were persisted and the snapshots recomputed, failures carry a reason
// each.
type BulkUpsertResult struct {
	Accepted int                   `json:"accepted"`
	Failed   int                   `json:"failed"`
	Failures []planning.RowFailure `json:"failures,omitempty"`
}

// BulkUpsertEntries validates every row, persists the valid ones and
// recomputes the snapshot series, all inside one transaction holding
// the project row lock. Invalid rows never block valid ones.
func (s *PlanningService) BulkUpsertEntries(ctx context.Context, actorID, projectID string, rows []EffortRow) (*BulkUpsertResult, error) {
	checked, err := s.requireProject(ctx, actorID, projectID, access.CapMatrixEdit)
	if err != nil {
		return nil, err
	}

	var result *BulkUpsertResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		project, err := s.repos.Project.LockByID(ctx, tx, projectID)
		if err != nil {
			return err
		}

		batchCtx, err := s.loadBatchContext(ctx, project)
		if err != nil {
			return err
		}

		inputs := make([]planning.EntryInput, len(rows))
		for i, row := range rows {
			inputs[i] = planning.EntryInput{
				TaskID:            row.TaskID,
				PerformerID:       row.PerformerID,
				Month:             row.Month,
				PlannedPersonDays: row.PlannedPersonDays,
				ActualPersonDays:  row.ActualPersonDays,
			}
		}
		accepted, failed := planning.ValidateEntries(inputs, batchCtx)

		for _, in := range accepted {
			entry := &entity.EffortMonthlyEntry{
				ID:                uuid.New().String(),
				ProjectID:         projectID,
				TaskID:            in.TaskID,
				PerformerID:       in.PerformerID,
				MonthStart:        in.Month,
				PlannedPersonDays: in.PlannedPersonDays,
				ActualPersonDays:  in.ActualPersonDays,
			}
			if err := s.repos.Effort.Upsert(ctx, tx, entry); err != nil {
				return err
			}
		}

		if len(accepted) > 0 {
			if err := s.refreshSnapshots(ctx, tx, project); err != nil {
				return err
			}
		}

		result = &BulkUpsertResult{
			Accepted: len(accepted),
			Failed:   len(failed),
			Failures: failed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Accepted > 0 {
		recordAudit(ctx, s.repos.AuditEvent, actorID, checked.BusinessUnitID, "effort_monthly_entry", projectID, "bulk_upsert",
			nil, map[string]interface{}{"accepted": result.Accepted, "failed": result.Failed})
	}
	s.logger.Info("Effort batch applied",
		zap.String("project_id", projectID),
		zap.Int("accepted", result.Accepted),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *PlanningService) loadBatchContext(ctx context.Context, project *entity.Project) (planning.BatchContext, error) {
	tasks, err := s.repos.Task.ListByProject(ctx, project.ID)
	if err != nil {
		return planning.BatchContext{}, err
	}
	performers, err := s.repos.Performer.ListByBusinessUnit(ctx, project.BusinessUnitID, false)
	if err != nil {
		return planning.BatchContext{}, err
	}
	assignments, err := s.repos.Assignment.ListByProject(ctx, project.ID)
	if err != nil {
		return planning.BatchContext{}, err
	}

	batchCtx := planning.BatchContext{
		ProjectStart: project.StartMonth,
		ProjectEnd:   project.EndMonth,
		Tasks:        make(map[string]planning.TaskState, len(tasks)),
		Performers:   make(map[string]planning.PerformerState, len(performers)),
		Assigned:     make(map[string]bool, len(assignments)),
	}
	for _, t := range tasks {
		batchCtx.Tasks[t.ID] = planning.TaskState{Active: t.Active}
	}
	for _, p := range performers {
		batchCtx.Performers[p.ID] = planning.PerformerState{Active: p.Active}
	}
	for _, a := range assignments {
		batchCtx.Assigned[planning.AssignmentKey(a.TaskID, a.PerformerID)] = true
	}
	return batchCtx, nil
}

// refreshSnapshots recomputes and rewrites the full snapshot series
// inside the caller's transaction.
func (s *PlanningService) refreshSnapshots(ctx context.Context, tx *gorm.DB, project *entity.Project) error {
	var entries []entity.EffortMonthlyEntry
	if err := tx.WithContext(ctx).Where("project_id = ?", project.ID).Find(&entries).Error; err != nil {
		return err
	}

	performerIDs := make([]string, 0, len(entries))
	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.PerformerID] {
			seen[e.PerformerID] = true
			performerIDs = append(performerIDs, e.PerformerID)
		}
	}

	var rateRows []entity.PerformerRate
	if len(performerIDs) > 0 {
		if err := tx.WithContext(ctx).
			Where("performer_id IN ? AND (project_id IS NULL OR project_id = ?)", performerIDs, project.ID).
			Find(&rateRows).Error; err != nil {
			return err
		}
	}

	revenueByMonth, err := s.repos.Revenue.SumByMonth(ctx, tx, project.ID)
	if err != nil {
		return err
	}
	invoiceByMonth, err := s.repos.Invoice.SumByMonth(ctx, tx, project.ID)
	if err != nil {
		return err
	}

	rows := planning.ComputeSnapshots(planning.SnapshotInput{
		ProjectID:      project.ID,
		ProjectStart:   project.StartMonth,
		ProjectEnd:     project.EndMonth,
		Entries:        toEngineEntries(entries),
		Rates:          toEngineRates(rateRows),
		FTEDivisor:     s.fteDivisor,
		RevenueByMonth: revenueByMonth,
		InvoiceByMonth: invoiceByMonth,
	})

	snapshots := make([]entity.ProjectMonthlySnapshot, len(rows))
	for i, row := range rows {
		snapshots[i] = entity.ProjectMonthlySnapshot{
			ID:                      uuid.New().String(),
			ProjectID:               project.ID,
			MonthStart:              row.Month,
			PlannedPersonDays:       row.PlannedPersonDays,
			ActualPersonDays:        row.ActualPersonDays,
			PlannedCost:             row.PlannedCost,
			ActualCost:              row.ActualCost,
			RevenueAmount:           row.RevenueAmount,
			InvoiceAmount:           row.InvoiceAmount,
			CumulativePlannedCost:   row.CumulativePlannedCost,
			CumulativeActualCost:    row.CumulativeActualCost,
			CumulativeRevenue:       row.CumulativeRevenue,
			CumulativeInvoiceAmount: row.CumulativeInvoiceAmount,
		}
	}
	return s.repos.Snapshot.ReplaceForProject(ctx, tx, project.ID, snapshots)
}

func toEngineEntries(rows []entity.EffortMonthlyEntry) []planning.Entry {
	entries := make([]planning.Entry, len(rows))
	for i, row := range rows {
		entries[i] = planning.Entry{
			TaskID:            row.TaskID,
			PerformerID:       row.PerformerID,
			Month:             row.MonthStart,
			PlannedPersonDays: row.PlannedPersonDays,
			ActualPersonDays:  row.ActualPersonDays,
		}
	}
	return entries
}

func toEngineRates(rows []entity.PerformerRate) []planning.Rate {
	rates := make([]planning.Rate, len(rows))
	for i, row := range rows {
		rates[i] = planning.Rate{
			ID:            row.ID,
			PerformerID:   row.PerformerID,
			ProjectID:     row.ProjectID,
			Unit:          row.RateUnit,
			Value:         row.RateValue,
			EffectiveFrom: row.EffectiveFromMonth,
			EffectiveTo:   row.EffectiveToMonth,
		}
	}
	return rates
}
