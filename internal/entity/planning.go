package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project is a business-unit-scoped planning container. StartMonth and
// EndMonth are inclusive first-of-month bounds for every effort entry,
// stage and snapshot row underneath it.
type Project struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	BusinessUnitID string    `json:"business_unit_id" gorm:"size:36;not null;index;uniqueIndex:uq_projects_bu_code"`
	Code           string    `json:"code" gorm:"size:64;not null;uniqueIndex:uq_projects_bu_code"`
	Name           string    `json:"name" gorm:"size:255;not null"`
	Description    string    `json:"description" gorm:"size:2000"`
	StartMonth     time.Time `json:"start_month" gorm:"type:date;not null"`
	EndMonth       time.Time `json:"end_month" gorm:"type:date;not null"`
	Status         string    `json:"status" gorm:"size:16;not null;default:draft"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	BusinessUnit *BusinessUnit `json:"business_unit,omitempty" gorm:"foreignKey:BusinessUnitID"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectStage groups tasks for display. Stages never hold effort
// values themselves.
type ProjectStage struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	ProjectID  string    `json:"project_id" gorm:"size:36;not null;index"`
	Name       string    `json:"name" gorm:"size:255;not null"`
	StartMonth time.Time `json:"start_month" gorm:"type:date;not null"`
	EndMonth   time.Time `json:"end_month" gorm:"type:date;not null"`
	ColorToken string    `json:"color_token" gorm:"size:32;not null"`
	SequenceNo int       `json:"sequence_no" gorm:"not null"`
}

func (ProjectStage) TableName() string {
	return "project_stages"
}

// Task belongs to one project and one stage. Deactivated tasks reject
// new effort writes but keep their history.
type Task struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	ProjectID  string `json:"project_id" gorm:"size:36;not null;index;uniqueIndex:uq_tasks_project_code"`
	StageID    string `json:"stage_id" gorm:"size:36;not null"`
	Code       string `json:"code" gorm:"size:64;not null;uniqueIndex:uq_tasks_project_code"`
	Name       string `json:"name" gorm:"size:255;not null"`
	SequenceNo int    `json:"sequence_no" gorm:"not null"`
	Active     bool   `json:"active" gorm:"not null;default:true"`
}

func (Task) TableName() string {
	return "tasks"
}

// Performer is a business-unit-scoped actor, independent of any single
// project.
type Performer struct {
	ID             string `json:"id" gorm:"primaryKey;size:36"`
	BusinessUnitID string `json:"business_unit_id" gorm:"size:36;not null;index"`
	ExternalRef    string `json:"external_ref" gorm:"size:128"`
	DisplayName    string `json:"display_name" gorm:"size:255;not null"`
	Active         bool   `json:"active" gorm:"not null;default:true"`
}

func (Performer) TableName() string {
	return "performers"
}

// TaskPerformerAssignment links a performer to a task. The pair must
// exist before any effort cell for it can be written.
type TaskPerformerAssignment struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	TaskID      string `json:"task_id" gorm:"size:36;not null;index;uniqueIndex:uq_task_performer"`
	PerformerID string `json:"performer_id" gorm:"size:36;not null;index;uniqueIndex:uq_task_performer"`
}

func (TaskPerformerAssignment) TableName() string {
	return "task_performer_assignments"
}

// EffortMonthlyEntry is the single writable source of truth of the
// matrix. One row per (project, task, performer, month); a zero value
// means "no effort", not absence.
type EffortMonthlyEntry struct {
	ID                string          `json:"id" gorm:"primaryKey;size:36"`
	ProjectID         string          `json:"project_id" gorm:"size:36;not null;index:ix_effort_project_month;uniqueIndex:uq_effort_cell"`
	TaskID            string          `json:"task_id" gorm:"size:36;not null;uniqueIndex:uq_effort_cell"`
	PerformerID       string          `json:"performer_id" gorm:"size:36;not null;index;uniqueIndex:uq_effort_cell"`
	MonthStart        time.Time       `json:"month_start" gorm:"type:date;not null;index:ix_effort_project_month;uniqueIndex:uq_effort_cell"`
	PlannedPersonDays decimal.Decimal `json:"planned_person_days" gorm:"type:decimal(10,2);not null;default:0"`
	ActualPersonDays  decimal.Decimal `json:"actual_person_days" gorm:"type:decimal(10,2);not null;default:0"`
}

func (EffortMonthlyEntry) TableName() string {
	return "effort_monthly_entries"
}
