package handler

import (
	"github.com/atalarczyk/PPLAN/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler exposes the identity surface. Token issuance lives at the
// identity provider; this API only syncs principals and reports the
// caller's scope.
type AuthHandler struct {
	svc *service.AccessService
}

func NewAuthHandler(svc *service.AccessService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Sync upserts the caller from its token claims.
// POST /api/v1/auth/sync
func (h *AuthHandler) Sync(c *gin.Context) {
	oid := c.GetString("external_oid")
	email := c.GetString("user_email")
	name := c.GetString("user_name")
	if oid == "" {
		BadRequest(c, "token carries no external identity")
		return
	}

	user, err := h.svc.EnsureUser(c.Request.Context(), oid, email, name)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, user)
}

// Me returns the caller plus its resolved assignments.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, scope, err := h.svc.CurrentUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{
		"user":        user,
		"assignments": scope.Assignments,
	})
}
