package entity

import (
	"time"
)

// BusinessUnit is the tenant boundary. Every project, performer and
// non-global role assignment hangs off exactly one unit.
type BusinessUnit struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	Active    bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BusinessUnit) TableName() string {
	return "business_units"
}

// User is an authenticated principal. Identity comes from the JWT
// layer; authorization always goes through role assignments.
type User struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	ExternalOID string     `json:"external_oid" gorm:"column:external_oid;size:128;not null;uniqueIndex"`
	Email       string     `json:"email" gorm:"size:320;not null;uniqueIndex"`
	DisplayName string     `json:"display_name" gorm:"size:255;not null"`
	Status      string     `json:"status" gorm:"size:32;not null;default:active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// RoleAssignment binds a user to a role, scoped to a business unit.
// A super_admin assignment has a NULL business unit; every other role
// must carry one.
type RoleAssignment struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	UserID         string    `json:"user_id" gorm:"size:36;not null;index"`
	BusinessUnitID *string   `json:"business_unit_id" gorm:"size:36;index"`
	Role           string    `json:"role" gorm:"size:32;not null"`
	Active         bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	User         *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	BusinessUnit *BusinessUnit `json:"business_unit,omitempty" gorm:"foreignKey:BusinessUnitID"`
}

func (RoleAssignment) TableName() string {
	return "role_assignments"
}

// AuditEvent records who changed what inside a business unit scope.
type AuditEvent struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	ActorUserID    string    `json:"actor_user_id" gorm:"size:36;not null"`
	BusinessUnitID string    `json:"business_unit_id" gorm:"size:36;not null;index"`
	EntityName     string    `json:"entity_name" gorm:"size:128;not null"`
	EntityID       string    `json:"entity_id" gorm:"size:128;not null"`
	ActionType     string    `json:"action_type" gorm:"size:64;not null"`
	BeforePayload  JSONB     `json:"before_payload" gorm:"type:jsonb"`
	AfterPayload   JSONB     `json:"after_payload" gorm:"type:jsonb"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
