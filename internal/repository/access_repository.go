package repository

import (
	"context"
	"errors"

	"github.com/atalarczyk/PPLAN/internal/entity"
	"gorm.io/gorm"
)

// BusinessUnitRepository persists tenants.
type BusinessUnitRepository struct {
	db *gorm.DB
}

func NewBusinessUnitRepository(db *gorm.DB) *BusinessUnitRepository {
	return &BusinessUnitRepository{db: db}
}

func (r *BusinessUnitRepository) FindByID(ctx context.Context, id string) (*entity.BusinessUnit, error) {
	var bu entity.BusinessUnit
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&bu).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bu, nil
}

func (r *BusinessUnitRepository) FindByCode(ctx context.Context, code string) (*entity.BusinessUnit, error) {
	var bu entity.BusinessUnit
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&bu).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bu, nil
}

func (r *BusinessUnitRepository) Create(ctx context.Context, bu *entity.BusinessUnit) error {
	return r.db.WithContext(ctx).Create(bu).Error
}

func (r *BusinessUnitRepository) Update(ctx context.Context, bu *entity.BusinessUnit) error {
	return r.db.WithContext(ctx).Save(bu).Error
}

// List returns units, optionally restricted to a set of IDs for
// non-global callers.
func (r *BusinessUnitRepository) List(ctx context.Context, ids []string) ([]entity.BusinessUnit, error) {
	var units []entity.BusinessUnit
	query := r.db.WithContext(ctx).Order("code ASC")
	if ids != nil {
		query = query.Where("id IN ?", ids)
	}
	err := query.Find(&units).Error
	return units, err
}

// UserRepository persists principals.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByExternalOID(ctx context.Context, oid string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("external_oid = ?", oid).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *UserRepository) List(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).Order("display_name ASC").Find(&users).Error
	return users, err
}

// RoleAssignmentRepository persists role grants.
type RoleAssignmentRepository struct {
	db *gorm.DB
}

func NewRoleAssignmentRepository(db *gorm.DB) *RoleAssignmentRepository {
	return &RoleAssignmentRepository{db: db}
}

// ListActiveByUser returns the assignments that feed scope resolution.
func (r *RoleAssignmentRepository) ListActiveByUser(ctx context.Context, userID string) ([]entity.RoleAssignment, error) {
	var assignments []entity.RoleAssignment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Find(&assignments).Error
	return assignments, err
}

func (r *RoleAssignmentRepository) ListByBusinessUnit(ctx context.Context, businessUnitID string) ([]entity.RoleAssignment, error) {
	var assignments []entity.RoleAssignment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("business_unit_id = ? AND active = ?", businessUnitID, true).
		Find(&assignments).Error
	return assignments, err
}

func (r *RoleAssignmentRepository) FindByID(ctx context.Context, id string) (*entity.RoleAssignment, error) {
	var assignment entity.RoleAssignment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *RoleAssignmentRepository) Create(ctx context.Context, assignment *entity.RoleAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *RoleAssignmentRepository) Update(ctx context.Context, assignment *entity.RoleAssignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

// AuditEventRepository is append-only.
type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Create(ctx context.Context, event *entity.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *AuditEventRepository) ListByBusinessUnit(ctx context.Context, businessUnitID string, limit, offset int) ([]entity.AuditEvent, int64, error) {
	var events []entity.AuditEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.AuditEvent{}).
		Where("business_unit_id = ?", businessUnitID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}
