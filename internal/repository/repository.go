package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories bundles every repository over one gorm handle.
type Repositories struct {
	BusinessUnit   *BusinessUnitRepository
	User           *UserRepository
	RoleAssignment *RoleAssignmentRepository
	AuditEvent     *AuditEventRepository

	Project    *ProjectRepository
	Stage      *StageRepository
	Task       *TaskRepository
	Performer  *PerformerRepository
	Assignment *AssignmentRepository
	Effort     *EffortRepository
	Snapshot   *SnapshotRepository

	Rate             *RateRepository
	FinancialRequest *FinancialRequestRepository
	Invoice          *InvoiceRepository
	Revenue          *RevenueRepository
}

// NewRepositories wires the full set.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		BusinessUnit:   NewBusinessUnitRepository(db),
		User:           NewUserRepository(db),
		RoleAssignment: NewRoleAssignmentRepository(db),
		AuditEvent:     NewAuditEventRepository(db),

		Project:    NewProjectRepository(db),
		Stage:      NewStageRepository(db),
		Task:       NewTaskRepository(db),
		Performer:  NewPerformerRepository(db),
		Assignment: NewAssignmentRepository(db),
		Effort:     NewEffortRepository(db),
		Snapshot:   NewSnapshotRepository(db),

		Rate:             NewRateRepository(db),
		FinancialRequest: NewFinancialRequestRepository(db),
		Invoice:          NewInvoiceRepository(db),
		Revenue:          NewRevenueRepository(db),
	}
}
