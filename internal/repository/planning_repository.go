package repository

import (
	"context"
	"errors"
	"time"

	"github.com/atalarczyk/PPLAN/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectRepository persists planning containers.
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	var project entity.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// LockByID reads the project under FOR UPDATE. Matrix and finance
// writers call this first so concurrent writes to one project
// serialize at the database.
func (r *ProjectRepository) LockByID(ctx context.Context, tx *gorm.DB, id string) (*entity.Project, error) {
	var project entity.Project
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *ProjectRepository) Update(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *ProjectRepository) ListByBusinessUnit(ctx context.Context, businessUnitID string, status string) ([]entity.Project, error) {
	var projects []entity.Project
	query := r.db.WithContext(ctx).Where("business_unit_id = ?", businessUnitID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("code ASC").Find(&projects).Error
	return projects, err
}

// StageRepository persists display groupings of tasks.
type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

func (r *StageRepository) FindByID(ctx context.Context, id string) (*entity.ProjectStage, error) {
	var stage entity.ProjectStage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&stage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &stage, nil
}

func (r *StageRepository) Create(ctx context.Context, stage *entity.ProjectStage) error {
	return r.db.WithContext(ctx).Create(stage).Error
}

func (r *StageRepository) Update(ctx context.Context, stage *entity.ProjectStage) error {
	return r.db.WithContext(ctx).Save(stage).Error
}

func (r *StageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.ProjectStage{}).Error
}

func (r *StageRepository) ListByProject(ctx context.Context, projectID string) ([]entity.ProjectStage, error) {
	var stages []entity.ProjectStage
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sequence_no ASC").
		Find(&stages).Error
	return stages, err
}

// CountTasks returns how many tasks still reference a stage.
func (r *StageRepository) CountTasks(ctx context.Context, stageID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Task{}).
		Where("stage_id = ?", stageID).Count(&count).Error
	return count, err
}

// TaskRepository persists matrix rows.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*entity.Task, error) {
	var task entity.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Task{}).Error
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID string) ([]entity.Task, error) {
	var tasks []entity.Task
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sequence_no ASC, code ASC").
		Find(&tasks).Error
	return tasks, err
}

// CountEffortEntries reports how many effort rows reference the task.
// Delete guards use it.
func (r *TaskRepository) CountEffortEntries(ctx context.Context, taskID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.EffortMonthlyEntry{}).
		Where("task_id = ?", taskID).Count(&count).Error
	return count, err
}

// PerformerRepository persists matrix columns.
type PerformerRepository struct {
	db *gorm.DB
}

func NewPerformerRepository(db *gorm.DB) *PerformerRepository {
	return &PerformerRepository{db: db}
}

func (r *PerformerRepository) FindByID(ctx context.Context, id string) (*entity.Performer, error) {
	var performer entity.Performer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&performer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &performer, nil
}

func (r *PerformerRepository) Create(ctx context.Context, performer *entity.Performer) error {
	return r.db.WithContext(ctx).Create(performer).Error
}

func (r *PerformerRepository) Update(ctx context.Context, performer *entity.Performer) error {
	return r.db.WithContext(ctx).Save(performer).Error
}

func (r *PerformerRepository) ListByBusinessUnit(ctx context.Context, businessUnitID string, activeOnly bool) ([]entity.Performer, error) {
	var performers []entity.Performer
	query := r.db.WithContext(ctx).Where("business_unit_id = ?", businessUnitID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("display_name ASC").Find(&performers).Error
	return performers, err
}

// CountEffortEntries reports how many effort rows reference the
// performer.
func (r *PerformerRepository) CountEffortEntries(ctx context.Context, performerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.EffortMonthlyEntry{}).
		Where("performer_id = ?", performerID).Count(&count).Error
	return count, err
}

// AssignmentRepository persists task-performer links.
type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Create(ctx context.Context, assignment *entity.TaskPerformerAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *AssignmentRepository) Delete(ctx context.Context, taskID, performerID string) error {
	return r.db.WithContext(ctx).
		Where("task_id = ? AND performer_id = ?", taskID, performerID).
		Delete(&entity.TaskPerformerAssignment{}).Error
}

func (r *AssignmentRepository) Exists(ctx context.Context, taskID, performerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TaskPerformerAssignment{}).
		Where("task_id = ? AND performer_id = ?", taskID, performerID).
		Count(&count).Error
	return count > 0, err
}

// ListByProject returns every assignment for the project's tasks.
func (r *AssignmentRepository) ListByProject(ctx context.Context, projectID string) ([]entity.TaskPerformerAssignment, error) {
	var assignments []entity.TaskPerformerAssignment
	err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = task_performer_assignments.task_id").
		Where("tasks.project_id = ?", projectID).
		Find(&assignments).Error
	return assignments, err
}

// CountEffortEntries reports how many effort rows exist for the pair.
func (r *AssignmentRepository) CountEffortEntries(ctx context.Context, taskID, performerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.EffortMonthlyEntry{}).
		Where("task_id = ? AND performer_id = ?", taskID, performerID).
		Count(&count).Error
	return count, err
}

// EffortRepository persists the writable matrix cells.
type EffortRepository struct {
	db *gorm.DB
}

func NewEffortRepository(db *gorm.DB) *EffortRepository {
	return &EffortRepository{db: db}
}

// ListByProject loads every cell of one project.
func (r *EffortRepository) ListByProject(ctx context.Context, projectID string) ([]entity.EffortMonthlyEntry, error) {
	var entries []entity.EffortMonthlyEntry
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Find(&entries).Error
	return entries, err
}

// ListByProjectWindow loads cells within an inclusive month window.
func (r *EffortRepository) ListByProjectWindow(ctx context.Context, projectID string, from, to time.Time) ([]entity.EffortMonthlyEntry, error) {
	var entries []entity.EffortMonthlyEntry
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND month_start >= ? AND month_start <= ?", projectID, from, to).
		Find(&entries).Error
	return entries, err
}

// Upsert writes one cell, replacing the value if the cell key already
// exists.
func (r *EffortRepository) Upsert(ctx context.Context, tx *gorm.DB, entry *entity.EffortMonthlyEntry) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "project_id"}, {Name: "task_id"},
				{Name: "performer_id"}, {Name: "month_start"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"planned_person_days", "actual_person_days"}),
		}).
		Create(entry).Error
}

// SnapshotRepository persists derived monthly rows.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) ListByProject(ctx context.Context, projectID string) ([]entity.ProjectMonthlySnapshot, error) {
	var snapshots []entity.ProjectMonthlySnapshot
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("month_start ASC").
		Find(&snapshots).Error
	return snapshots, err
}

func (r *SnapshotRepository) ListByProjectWindow(ctx context.Context, projectID string, from, to time.Time) ([]entity.ProjectMonthlySnapshot, error) {
	var snapshots []entity.ProjectMonthlySnapshot
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND month_start >= ? AND month_start <= ?", projectID, from, to).
		Order("month_start ASC").
		Find(&snapshots).Error
	return snapshots, err
}

// ReplaceForProject swaps the whole snapshot series inside the caller's
// transaction. Recomputes always rewrite the full range, which also
// clears rows left over from an earlier, wider project range.
func (r *SnapshotRepository) ReplaceForProject(ctx context.Context, tx *gorm.DB, projectID string, snapshots []entity.ProjectMonthlySnapshot) error {
	if err := tx.WithContext(ctx).
		Where("project_id = ?", projectID).
		Delete(&entity.ProjectMonthlySnapshot{}).Error; err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&snapshots).Error
}
