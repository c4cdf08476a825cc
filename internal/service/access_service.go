package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atalarczyk/PPLAN/internal/access"
	"github.com/atalarczyk/PPLAN/internal/entity"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ScopeResolver turns a user ID into its current authorization scope.
// Services depend on this interface so tests can substitute fixed
// scopes.
type ScopeResolver interface {
	Resolve(ctx context.Context, userID string) (access.Scope, error)
}

// AccessService resolves scopes and administers users, business units
// and role assignments. Resolved assignment lists are cached in redis
// with a short TTL and dropped eagerly on every role change.
type AccessService struct {
	users       *repository.UserRepository
	units       *repository.BusinessUnitRepository
	assignments *repository.RoleAssignmentRepository
	audit       *repository.AuditEventRepository
	rdb         *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewAccessService(repos *repository.Repositories, rdb *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *AccessService {
	return &AccessService{
		users:       repos.User,
		units:       repos.BusinessUnit,
		assignments: repos.RoleAssignment,
		audit:       repos.AuditEvent,
		rdb:         rdb,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func scopeCacheKey(userID string) string {
	return "pplan:scope:" + userID
}

// Resolve loads the user's active assignments, via cache when redis is
// configured. A cache miss or a broken cache entry falls through to the
// database.
func (s *AccessService) Resolve(ctx context.Context, userID string) (access.Scope, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, scopeCacheKey(userID)).Bytes(); err == nil {
			var cached []access.Assignment
			if err := json.Unmarshal(raw, &cached); err == nil {
				return access.Scope{UserID: userID, Assignments: cached}, nil
			}
		}
	}

	rows, err := s.assignments.ListActiveByUser(ctx, userID)
	if err != nil {
		return access.Scope{}, err
	}
	assignments := make([]access.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, access.Assignment{
			Role:           access.Role(row.Role),
			BusinessUnitID: row.BusinessUnitID,
		})
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(assignments); err == nil {
			if err := s.rdb.Set(ctx, scopeCacheKey(userID), raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("Scope cache write failed", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}

	return access.Scope{UserID: userID, Assignments: assignments}, nil
}

func (s *AccessService) invalidateScope(ctx context.Context, userID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, scopeCacheKey(userID)).Err(); err != nil {
		s.logger.Warn("Scope cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Require resolves the caller's scope and checks one capability in one
// business unit.
func (s *AccessService) Require(ctx context.Context, userID string, c access.Capability, businessUnitID string) (access.Scope, error) {
	scope, err := s.Resolve(ctx, userID)
	if err != nil {
		return access.Scope{}, err
	}
	if !scope.Allows(c, businessUnitID) {
		return access.Scope{}, access.ErrScopeDenied
	}
	return scope, nil
}

// EnsureUser upserts the principal on login, keyed by the external
// identity. The display name and email follow whatever the identity
// provider currently says.
func (s *AccessService) EnsureUser(ctx context.Context, externalOID, email, displayName string) (*entity.User, error) {
	now := time.Now().UTC()
	user, err := s.users.FindByExternalOID(ctx, externalOID)
	if err == nil {
		user.Email = email
		user.DisplayName = displayName
		user.LastLoginAt = &now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != repository.ErrNotFound {
		return nil, err
	}

	user = &entity.User{
		ID:          uuid.New().String(),
		ExternalOID: externalOID,
		Email:       email,
		DisplayName: displayName,
		Status:      "active",
		LastLoginAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CurrentUser returns the principal plus its resolved scope, for the
// /auth/me surface.
func (s *AccessService) CurrentUser(ctx context.Context, userID string) (*entity.User, access.Scope, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, access.Scope{}, err
	}
	scope, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, access.Scope{}, err
	}
	return user, scope, nil
}

// ListBusinessUnits returns the units the caller can see: all of them
// for a global scope, otherwise only assigned ones.
func (s *AccessService) ListBusinessUnits(ctx context.Context, userID string) ([]entity.BusinessUnit, error) {
	scope, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids, global := scope.BusinessUnitIDs()
	if global {
		return s.units.List(ctx, nil)
	}
	if len(ids) == 0 {
		return []entity.BusinessUnit{}, nil
	}
	return s.units.List(ctx, ids)
}

// CreateBusinessUnitRequest creates a tenant. Super admin only.
type CreateBusinessUnitRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func (s *AccessService) CreateBusinessUnit(ctx context.Context, actorID string, req CreateBusinessUnitRequest) (*entity.BusinessUnit, error) {
	scope, err := s.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !scope.IsSuperAdmin() {
		return nil, access.ErrScopeDenied
	}
	if _, err := s.units.FindByCode(ctx, req.Code); err == nil {
		return nil, fmt.Errorf("%w: business unit code %s already exists", ErrConflict, req.Code)
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	bu := &entity.BusinessUnit{
		ID:        uuid.New().String(),
		Code:      req.Code,
		Name:      req.Name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.units.Create(ctx, bu); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, actorID, bu.ID, "business_unit", bu.ID, "create", nil, bu)
	return bu, nil
}

// AssignRoleRequest grants one role. BusinessUnitID must be empty for
// super_admin and set for every other role.
type AssignRoleRequest struct {
	UserID         string  `json:"user_id" binding:"required"`
	Role           string  `json:"role" binding:"required"`
	BusinessUnitID *string `json:"business_unit_id"`
}

func (s *AccessService) AssignRole(ctx context.Context, actorID string, req AssignRoleRequest) (*entity.RoleAssignment, error) {
	role := access.Role(req.Role)
	if !access.ValidRole(role) {
		return nil, validationf("unknown role %q", req.Role)
	}
	if role == access.RoleSuperAdmin {
		if req.BusinessUnitID != nil {
			return nil, validationf("super_admin is global and takes no business unit")
		}
	} else if req.BusinessUnitID == nil {
		return nil, validationf("role %s requires a business unit", req.Role)
	}

	// Granting super_admin needs a global scope; everything else needs
	// admin_assign in the target unit.
	scope, err := s.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if role == access.RoleSuperAdmin {
		if !scope.IsSuperAdmin() {
			return nil, access.ErrScopeDenied
		}
	} else if !scope.Allows(access.CapAdminAssign, *req.BusinessUnitID) {
		return nil, access.ErrScopeDenied
	}

	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if err == repository.ErrNotFound {
			return nil, validationf("user %s does not exist", req.UserID)
		}
		return nil, err
	}
	if req.BusinessUnitID != nil {
		if _, err := s.units.FindByID(ctx, *req.BusinessUnitID); err != nil {
			if err == repository.ErrNotFound {
				return nil, validationf("business unit %s does not exist", *req.BusinessUnitID)
			}
			return nil, err
		}
	}

	now := time.Now().UTC()
	assignment := &entity.RoleAssignment{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		BusinessUnitID: req.BusinessUnitID,
		Role:           req.Role,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, err
	}
	s.invalidateScope(ctx, req.UserID)

	auditBU := ""
	if req.BusinessUnitID != nil {
		auditBU = *req.BusinessUnitID
	}
	recordAudit(ctx, s.audit, actorID, auditBU, "role_assignment", assignment.ID, "create", nil, assignment)
	return assignment, nil
}

// RevokeRole deactivates an assignment instead of deleting it, keeping
// the grant history.
func (s *AccessService) RevokeRole(ctx context.Context, actorID, assignmentID string) error {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return err
	}

	scope, err := s.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	if assignment.BusinessUnitID == nil {
		if !scope.IsSuperAdmin() {
			return access.ErrScopeDenied
		}
	} else if !scope.Allows(access.CapAdminAssign, *assignment.BusinessUnitID) {
		return access.ErrScopeDenied
	}

	before := *assignment
	assignment.Active = false
	assignment.UpdatedAt = time.Now().UTC()
	if err := s.assignments.Update(ctx, assignment); err != nil {
		return err
	}
	s.invalidateScope(ctx, assignment.UserID)

	auditBU := ""
	if assignment.BusinessUnitID != nil {
		auditBU = *assignment.BusinessUnitID
	}
	recordAudit(ctx, s.audit, actorID, auditBU, "role_assignment", assignment.ID, "revoke", before, assignment)
	return nil
}

// ListAssignments returns the active grants inside one business unit.
func (s *AccessService) ListAssignments(ctx context.Context, actorID, businessUnitID string) ([]entity.RoleAssignment, error) {
	if _, err := s.Require(ctx, actorID, access.CapAdminView, businessUnitID); err != nil {
		return nil, err
	}
	return s.assignments.ListByBusinessUnit(ctx, businessUnitID)
}

// ListUsers returns every principal. Needs admin_view somewhere; the
// user directory itself is not unit-scoped.
func (s *AccessService) ListUsers(ctx context.Context, actorID string) ([]entity.User, error) {
	scope, err := s.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	allowed := scope.IsSuperAdmin()
	if !allowed {
		ids, _ := scope.BusinessUnitIDs()
		for _, id := range ids {
			if scope.Allows(access.CapAdminView, id) {
				allowed = true
				break
			}
		}
	}
	if !allowed {
		return nil, access.ErrScopeDenied
	}
	return s.users.List(ctx)
}

// ListAuditEvents pages through a unit's audit trail.
func (s *AccessService) ListAuditEvents(ctx context.Context, actorID, businessUnitID string, limit, offset int) ([]entity.AuditEvent, int64, error) {
	if _, err := s.Require(ctx, actorID, access.CapAdminView, businessUnitID); err != nil {
		return nil, 0, err
	}
	return s.audit.ListByBusinessUnit(ctx, businessUnitID, limit, offset)
}
