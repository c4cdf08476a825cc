package handler

import (
	"github.com/atalarczyk/PPLAN/internal/service"
	"github.com/gin-gonic/gin"
)

// FinanceHandler covers performer rates and the monetary registers.
type FinanceHandler struct {
	svc *service.FinanceService
}

func NewFinanceHandler(svc *service.FinanceService) *FinanceHandler {
	return &FinanceHandler{svc: svc}
}

// GET /api/v1/rates?business_unit_id=..
func (h *FinanceHandler) ListRates(c *gin.Context) {
	businessUnitID := c.Query("business_unit_id")
	if businessUnitID == "" {
		BadRequest(c, "business_unit_id is required")
		return
	}
	rates, err := h.svc.ListRates(c.Request.Context(), GetUserID(c), businessUnitID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": rates})
}

// UpsertRates creates a batch of rates atomically; any overlap rejects
// the whole batch.
// POST /api/v1/rates
func (h *FinanceHandler) UpsertRates(c *gin.Context) {
	var req struct {
		BusinessUnitID string              `json:"business_unit_id" binding:"required"`
		Rates          []service.RateInput `json:"rates" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rates, err := h.svc.UpsertRates(c.Request.Context(), GetUserID(c), req.BusinessUnitID, req.Rates)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, gin.H{"items": rates})
}

// DELETE /api/v1/rates/:id
func (h *FinanceHandler) DeleteRate(c *gin.Context) {
	if err := h.svc.DeleteRate(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, nil)
}

// GET /api/v1/projects/:id/financial-requests
func (h *FinanceHandler) ListFinancialRequests(c *gin.Context) {
	rows, err := h.svc.ListFinancialRequests(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": rows})
}

// POST /api/v1/projects/:id/financial-requests
func (h *FinanceHandler) CreateFinancialRequest(c *gin.Context) {
	var req service.RegisterRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	row, err := h.svc.CreateFinancialRequest(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, row)
}

// DELETE /api/v1/projects/:id/financial-requests/:rowId
func (h *FinanceHandler) DeleteFinancialRequest(c *gin.Context) {
	if err := h.svc.DeleteFinancialRequest(c.Request.Context(), GetUserID(c), c.Param("id"), c.Param("rowId")); err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, nil)
}

// GET /api/v1/projects/:id/invoices
func (h *FinanceHandler) ListInvoices(c *gin.Context) {
	rows, err := h.svc.ListInvoices(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": rows})
}

// POST /api/v1/projects/:id/invoices
func (h *FinanceHandler) CreateInvoice(c *gin.Context) {
	var req service.RegisterRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	row, err := h.svc.CreateInvoice(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, row)
}

// DELETE /api/v1/projects/:id/invoices/:rowId
func (h *FinanceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.svc.DeleteInvoice(c.Request.Context(), GetUserID(c), c.Param("id"), c.Param("rowId")); err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, nil)
}

// GET /api/v1/projects/:id/revenues
func (h *FinanceHandler) ListRevenues(c *gin.Context) {
	rows, err := h.svc.ListRevenues(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": rows})
}

// POST /api/v1/projects/:id/revenues
func (h *FinanceHandler) CreateRevenue(c *gin.Context) {
	var req service.RegisterRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	row, err := h.svc.CreateRevenue(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, row)
}

// DELETE /api/v1/projects/:id/revenues/:rowId
func (h *FinanceHandler) DeleteRevenue(c *gin.Context) {
	if err := h.svc.DeleteRevenue(c.Request.Context(), GetUserID(c), c.Param("id"), c.Param("rowId")); err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, nil)
}
