package handler

import (
	"github.com/atalarczyk/PPLAN/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler covers business units, users, role assignments and the
// audit trail.
type AdminHandler struct {
	svc *service.AccessService
}

func NewAdminHandler(svc *service.AccessService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// GET /api/v1/business-units
func (h *AdminHandler) ListBusinessUnits(c *gin.Context) {
	units, err := h.svc.ListBusinessUnits(c.Request.Context(), GetUserID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": units})
}

// POST /api/v1/business-units
func (h *AdminHandler) CreateBusinessUnit(c *gin.Context) {
	var req service.CreateBusinessUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	bu, err := h.svc.CreateBusinessUnit(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, bu)
}

// GET /api/v1/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context(), GetUserID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": users})
}

// GET /api/v1/business-units/:id/role-assignments
func (h *AdminHandler) ListRoleAssignments(c *gin.Context) {
	assignments, err := h.svc.ListAssignments(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": assignments})
}

// POST /api/v1/role-assignments
func (h *AdminHandler) AssignRole(c *gin.Context) {
	var req service.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	assignment, err := h.svc.AssignRole(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, assignment)
}

// DELETE /api/v1/role-assignments/:id
func (h *AdminHandler) RevokeRole(c *gin.Context) {
	if err := h.svc.RevokeRole(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, nil)
}

// GET /api/v1/business-units/:id/audit-events
func (h *AdminHandler) ListAuditEvents(c *gin.Context) {
	page, pageSize := GetPagination(c)
	events, total, err := h.svc.ListAuditEvents(c.Request.Context(), GetUserID(c), c.Param("id"),
		pageSize, (page-1)*pageSize)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{
		"items": events,
		"total": total,
		"page":  page,
	})
}
