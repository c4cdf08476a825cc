package handler

import (
	"github.com/atalarczyk/PPLAN/internal/service"
	"github.com/gin-gonic/gin"
)

// MatrixHandler serves the effort matrix and its snapshots.
type MatrixHandler struct {
	svc *service.PlanningService
}

func NewMatrixHandler(svc *service.PlanningService) *MatrixHandler {
	return &MatrixHandler{svc: svc}
}

// Read assembles the matrix for an optional month window.
// GET /api/v1/projects/:id/matrix?from=YYYY-MM&to=YYYY-MM
func (h *MatrixHandler) Read(c *gin.Context) {
	from, err := monthQueryParam(c, "from")
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	to, err := monthQueryParam(c, "to")
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	view, err := h.svc.ReadMatrix(c.Request.Context(), GetUserID(c), c.Param("id"), from, to)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, view)
}

// BulkUpsert applies a batch of effort cells. Valid rows are persisted
// even when others fail; the response reports both counts and per-row
// reasons.
// PUT /api/v1/projects/:id/matrix/entries
func (h *MatrixHandler) BulkUpsert(c *gin.Context) {
	var req struct {
		Entries []service.EffortRow `json:"entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.svc.BulkUpsertEntries(c.Request.Context(), GetUserID(c), c.Param("id"), req.Entries)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, result)
}

// Snapshots reads the stored monthly series for an optional window.
// GET /api/v1/projects/:id/snapshots?from=YYYY-MM&to=YYYY-MM
func (h *MatrixHandler) Snapshots(c *gin.Context) {
	from, err := monthQueryParam(c, "from")
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	to, err := monthQueryParam(c, "to")
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	window, err := h.svc.ListSnapshots(c.Request.Context(), GetUserID(c), c.Param("id"), from, to)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, window)
}

// Recompute forces a snapshot rebuild.
// POST /api/v1/projects/:id/snapshots/recompute
func (h *MatrixHandler) Recompute(c *gin.Context) {
	if err := h.svc.RecomputeSnapshots(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, nil)
}
