package handler

import (
	"net/http"

	"github.com/atalarczyk/PPLAN/internal/service"
	"github.com/gin-gonic/gin"
)

// ReportHandler serves reports, dashboards and file exports.
type ReportHandler struct {
	svc    *service.ReportService
	export *service.ExportService
}

func NewReportHandler(svc *service.ReportService, export *service.ExportService) *ReportHandler {
	return &ReportHandler{svc: svc, export: export}
}

// Build returns one report variant.
// GET /api/v1/projects/:id/reports?group_by=performer|task&measure=effort|cost&from=&to=
func (h *ReportHandler) Build(c *gin.Context) {
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

	groupBy := c.DefaultQuery("group_by", service.GroupByPerformer)
	measure := c.DefaultQuery("measure", service.MeasureEffort)
	filter := service.ReportFilter{
		From:         from,
		To:           to,
		PerformerIDs: c.QueryArray("performer_id"),
		TaskIDs:      c.QueryArray("task_id"),
	}

	report, err := h.svc.BuildReport(c.Request.Context(), GetUserID(c), c.Param("id"), groupBy, measure, filter)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, report)
}

// Export streams a report as CSV or XLSX.
// GET /api/v1/projects/:id/reports/export?format=csv|xlsx&encoding=utf-8|cp1250&...
func (h *ReportHandler) Export(c *gin.Context) {
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

	filter := service.ReportFilter{
		From:         from,
		To:           to,
		PerformerIDs: c.QueryArray("performer_id"),
		TaskIDs:      c.QueryArray("task_id"),
	}
	file, err := h.export.ExportReport(c.Request.Context(), GetUserID(c), c.Param("id"),
		c.DefaultQuery("group_by", service.GroupByPerformer),
		c.DefaultQuery("measure", service.MeasureEffort),
		c.DefaultQuery("format", service.FormatCSV),
		c.DefaultQuery("encoding", service.EncodingUTF8),
		filter)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// ProjectDashboard returns one project's financial picture.
// GET /api/v1/projects/:id/dashboard
func (h *ReportHandler) ProjectDashboard(c *gin.Context) {
	dashboard, err := h.svc.GetProjectDashboard(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, dashboard)
}

// UnitDashboard rolls up every project of a business unit.
// GET /api/v1/business-units/:id/dashboard
func (h *ReportHandler) UnitDashboard(c *gin.Context) {
	dashboard, err := h.svc.GetUnitDashboard(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, dashboard)
}
