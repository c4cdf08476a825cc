package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/atalarczyk/PPLAN/internal/access"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/atalarczyk/PPLAN/internal/service"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the HTTP layer.
type Handlers struct {
	Auth    *AuthHandler
	Project *ProjectHandler
	Matrix  *MatrixHandler
	Finance *FinanceHandler
	Report  *ReportHandler
	Admin   *AdminHandler
}

// NewHandlers creates the handler set.
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Auth:    NewAuthHandler(svc.Access),
		Project: NewProjectHandler(svc.Planning),
		Matrix:  NewMatrixHandler(svc.Planning),
		Finance: NewFinanceHandler(svc.Finance),
		Report:  NewReportHandler(svc.Report, svc.Export),
		Admin:   NewAdminHandler(svc.Access),
	}
}

// Response is the uniform envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success responds 200.
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created responds 201.
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error responds with a business code whose first three digits are the
// HTTP status.
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData responds like Error but attaches structured detail,
// used for per-row validation failures.
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func Unprocessable(c *gin.Context, message string) {
	Error(c, 42200, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RespondServiceError maps business error kinds onto the envelope.
func RespondServiceError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "resource not found")
	case errors.Is(err, access.ErrScopeDenied):
		Forbidden(c, "insufficient permissions for this business unit")
	case errors.As(err, &validationErr):
		ErrorWithData(c, 42200, validationErr.Message, validationErr.Details)
	case errors.Is(err, service.ErrValidation):
		Unprocessable(c, err.Error())
	case errors.Is(err, service.ErrInconsistentRange):
		Error(c, 40901, err.Error())
	case errors.Is(err, service.ErrConflict):
		Conflict(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID reads the authenticated user from the context.
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination reads page/page_size query params with defaults.
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// monthQueryParam parses an optional YYYY-MM or YYYY-MM-DD query param.
func monthQueryParam(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New(name + " must be YYYY-MM or YYYY-MM-DD")
}
