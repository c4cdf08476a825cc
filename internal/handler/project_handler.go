package handler

import (
	"github.com/atalarczyk/PPLAN/internal/service"
	"github.com/gin-gonic/gin"
)

// ProjectHandler covers projects, stages, tasks, performers and
// task-performer assignments.
type ProjectHandler struct {
	svc *service.PlanningService
}

func NewProjectHandler(svc *service.PlanningService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// List projects of one business unit.
// GET /api/v1/projects?business_unit_id=..&status=..
func (h *ProjectHandler) List(c *gin.Context) {
	businessUnitID := c.Query("business_unit_id")
	if businessUnitID == "" {
		BadRequest(c, "business_unit_id is required")
		return
	}
	projects, err := h.svc.ListProjects(c.Request.Context(), GetUserID(c), businessUnitID, c.Query("status"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": projects})
}

// POST /api/v1/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	project, err := h.svc.CreateProject(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, project)
}

// GET /api/v1/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.svc.GetProject(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, project)
}

// PATCH /api/v1/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	project, err := h.svc.UpdateProject(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, project)
}

// POST /api/v1/projects/:id/stages
func (h *ProjectHandler) CreateStage(c *gin.Context) {
	var req service.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	stage, err := h.svc.CreateStage(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, stage)
}

// DELETE /api/v1/projects/:id/stages/:stageId
func (h *ProjectHandler) DeleteStage(c *gin.Context) {
	err := h.svc.DeleteStage(c.Request.Context(), GetUserID(c), c.Param("id"), c.Param("stageId"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, nil)
}

// POST /api/v1/projects/:id/tasks
func (h *ProjectHandler) CreateTask(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, err := h.svc.CreateTask(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, task)
}

// PATCH /api/v1/projects/:id/tasks/:taskId
func (h *ProjectHandler) UpdateTask(c *gin.Context) {
	var req service.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, err := h.svc.UpdateTask(c.Request.Context(), GetUserID(c), c.Param("id"), c.Param("taskId"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, task)
}

// DELETE /api/v1/projects/:id/tasks/:taskId
func (h *ProjectHandler) DeleteTask(c *gin.Context) {
	err := h.svc.DeleteTask(c.Request.Context(), GetUserID(c), c.Param("id"), c.Param("taskId"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, nil)
}

// GET /api/v1/performers?business_unit_id=..&active_only=true
func (h *ProjectHandler) ListPerformers(c *gin.Context) {
	businessUnitID := c.Query("business_unit_id")
	if businessUnitID == "" {
		BadRequest(c, "business_unit_id is required")
		return
	}
	performers, err := h.svc.ListPerformers(c.Request.Context(), GetUserID(c), businessUnitID,
		c.Query("active_only") == "true")
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": performers})
}

// POST /api/v1/performers
func (h *ProjectHandler) CreatePerformer(c *gin.Context) {
	var req service.CreatePerformerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	performer, err := h.svc.CreatePerformer(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, performer)
}

// PATCH /api/v1/performers/:id
func (h *ProjectHandler) UpdatePerformer(c *gin.Context) {
	var req service.UpdatePerformerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	performer, err := h.svc.UpdatePerformer(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, performer)
}

// POST /api/v1/projects/:id/tasks/:taskId/performers/:performerId
func (h *ProjectHandler) AssignPerformer(c *gin.Context) {
	assignment, err := h.svc.AssignPerformer(c.Request.Context(), GetUserID(c),
		c.Param("id"), c.Param("taskId"), c.Param("performerId"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, assignment)
}

// DELETE /api/v1/projects/:id/tasks/:taskId/performers/:performerId
func (h *ProjectHandler) UnassignPerformer(c *gin.Context) {
	err := h.svc.UnassignPerformer(c.Request.Context(), GetUserID(c),
		c.Param("id"), c.Param("taskId"), c.Param("performerId"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, nil)
}
