package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/atalarczyk/PPLAN/internal/access"
	"github.com/atalarczyk/PPLAN/internal/entity"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/atalarczyk/PPLAN/internal/service"
	"github.com/atalarczyk/PPLAN/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type matrixTestEnv struct {
	db        *gorm.DB
	router    *gin.Engine
	token     string
	project   *entity.Project
	task      *entity.Task
	performer *entity.Performer
}

// jsonDecimal reads a decimal JSON field. Values coming back from
// Postgres keep their column scale, so compare numerically.
func jsonDecimal(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	if !ok {
		t.Fatalf("Expected a decimal string, got %T (%v)", v, v)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Bad decimal %q: %v", s, err)
	}
	return d
}

func setupMatrixTest(t *testing.T) *matrixTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	logger := zap.NewNop()

	accessSvc := service.NewAccessService(repos, nil, time.Minute, logger)
	planningSvc := service.NewPlanningService(db, repos, accessSvc, 20, logger)
	financeSvc := service.NewFinanceService(db, repos, accessSvc, planningSvc, logger)
	reportSvc := service.NewReportService(repos, accessSvc, 20, logger)
	exportSvc := service.NewExportService(reportSvc, nil, "", logger)

	h := NewHandlers(&service.Services{
		Access:   accessSvc,
		Planning: planningSvc,
		Finance:  financeSvc,
		Report:   reportSvc,
		Export:   exportSvc,
	})

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/projects/:id/matrix", h.Matrix.Read)
	api.PUT("/projects/:id/matrix/entries", h.Matrix.BulkUpsert)
	api.GET("/projects/:id/snapshots", h.Matrix.Snapshots)
	api.GET("/projects/:id/reports", h.Report.Build)

	user := testutil.SeedTestUser(t, db, "user-matrix-1", "Matrix Editor", "editor@pplan.test")
	unit := testutil.SeedBusinessUnit(t, db, "bu-matrix", "BU-M", "Matrix Unit")
	testutil.SeedRoleAssignment(t, db, "ra-matrix", user.ID, string(access.RoleEditor), unit.ID)

	project := &entity.Project{
		ID:             "proj-m1",
		BusinessUnitID: unit.ID,
		Code:           "M-001",
		Name:           "Matrix Project",
		StartMonth:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndMonth:       time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:         entity.ProjectStatusActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	stage := &entity.ProjectStage{
		ID: "stage-m1", ProjectID: project.ID, Name: "Build",
		StartMonth: project.StartMonth, EndMonth: project.EndMonth,
		ColorToken: "green", SequenceNo: 1,
	}
	if err := db.Create(stage).Error; err != nil {
		t.Fatalf("Failed to seed stage: %v", err)
	}
	task := &entity.Task{
		ID: "task-m1", ProjectID: project.ID, StageID: stage.ID,
		Code: "T-001", Name: "Implementation", SequenceNo: 1, Active: true,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}
	performer := &entity.Performer{
		ID: "perf-m1", BusinessUnitID: unit.ID, DisplayName: "Anna Nowak", Active: true,
	}
	if err := db.Create(performer).Error; err != nil {
		t.Fatalf("Failed to seed performer: %v", err)
	}
	assignment := &entity.TaskPerformerAssignment{
		ID: "assign-m1", TaskID: task.ID, PerformerID: performer.ID,
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("Failed to seed assignment: %v", err)
	}
	rate := &entity.PerformerRate{
		ID:                 "rate-m1",
		BusinessUnitID:     unit.ID,
		PerformerID:        performer.ID,
		RateUnit:           entity.RateUnitDay,
		RateValue:          decimal.NewFromInt(500),
		EffectiveFromMonth: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Create(rate).Error; err != nil {
		t.Fatalf("Failed to seed rate: %v", err)
	}

	return &matrixTestEnv{
		db:        db,
		router:    router,
		token:     testutil.GenerateTestToken(user.ID, user.DisplayName, user.Email),
		project:   project,
		task:      task,
		performer: performer,
	}
}

func TestMatrixBulkUpsertEndpoint(t *testing.T) {
	env := setupMatrixTest(t)

	body := map[string]interface{}{
		"entries": []map[string]interface{}{
			{
				"task_id":             env.task.ID,
				"performer_id":        env.performer.ID,
				"month":               "2025-02-01T00:00:00Z",
				"planned_person_days": "4",
				"actual_person_days":  "3",
			},
			{
				"task_id":             env.task.ID,
				"performer_id":        env.performer.ID,
				"month":               "2026-02-01T00:00:00Z",
				"planned_person_days": "2",
			},
		},
	}
	w := testutil.DoRequest(env.router, "PUT",
		"/api/v1/projects/"+env.project.ID+"/matrix/entries", body, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["accepted"].(float64) != 1 {
		t.Errorf("Expected 1 accepted row, got %v", data["accepted"])
	}
	if data["failed"].(float64) != 1 {
		t.Errorf("Expected 1 failed row, got %v", data["failed"])
	}
}

func TestMatrixReadEndpoint(t *testing.T) {
	env := setupMatrixTest(t)

	body := map[string]interface{}{
		"entries": []map[string]interface{}{{
			"task_id":             env.task.ID,
			"performer_id":        env.performer.ID,
			"month":               "2025-03-01T00:00:00Z",
			"planned_person_days": "5",
		}},
	}
	w := testutil.DoRequest(env.router, "PUT",
		"/api/v1/projects/"+env.project.ID+"/matrix/entries", body, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Batch write failed: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.router, "GET",
		"/api/v1/projects/"+env.project.ID+"/matrix?from=2024-11&to=2025-12", nil, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["clipped"].(bool) != true {
		t.Error("Expected the window to be clipped")
	}
	months := data["months"].([]interface{})
	if len(months) != 4 {
		t.Errorf("Expected 4 months, got %d", len(months))
	}
	cells := data["cells"].([]interface{})
	if len(cells) != 1 {
		t.Fatalf("Expected 1 cell, got %d", len(cells))
	}
	cell := cells[0].(map[string]interface{})
	if !jsonDecimal(t, cell["planned_cost"]).Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected planned cost 2500, got %v", cell["planned_cost"])
	}
}

func TestMatrixEndpointsAuth(t *testing.T) {
	env := setupMatrixTest(t)

	w := testutil.DoRequest(env.router, "GET",
		"/api/v1/projects/"+env.project.ID+"/matrix", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a token, got %d", w.Code)
	}

	// A valid token for a user with no role resolves to an empty scope.
	stranger := testutil.SeedTestUser(t, env.db, "user-stranger", "No Role", "none@pplan.test")
	token := testutil.GenerateTestToken(stranger.ID, stranger.DisplayName, stranger.Email)
	w = testutil.DoRequest(env.router, "GET",
		"/api/v1/projects/"+env.project.ID+"/matrix", nil, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 without a role, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40300 {
		t.Errorf("Expected code 40300, got %v", resp["code"])
	}
}

func TestMatrixUnknownProject(t *testing.T) {
	env := setupMatrixTest(t)

	w := testutil.DoRequest(env.router, "GET",
		"/api/v1/projects/no-such-project/matrix", nil, env.token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSnapshotsEndpoint(t *testing.T) {
	env := setupMatrixTest(t)

	body := map[string]interface{}{
		"entries": []map[string]interface{}{{
			"task_id":             env.task.ID,
			"performer_id":        env.performer.ID,
			"month":               "2025-01-01T00:00:00Z",
			"planned_person_days": "4",
			"actual_person_days":  "4",
		}},
	}
	w := testutil.DoRequest(env.router, "PUT",
		"/api/v1/projects/"+env.project.ID+"/matrix/entries", body, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Batch write failed: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.router, "GET",
		"/api/v1/projects/"+env.project.ID+"/snapshots", nil, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	snapshots := data["snapshots"].([]interface{})
	if len(snapshots) != 4 {
		t.Fatalf("Expected 4 snapshot rows, got %d", len(snapshots))
	}
	first := snapshots[0].(map[string]interface{})
	if !jsonDecimal(t, first["actual_cost"]).Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Expected actual cost 2000, got %v", first["actual_cost"])
	}
	if first["margin_percent"] != nil {
		t.Errorf("Expected nil margin_percent without revenue, got %v", first["margin_percent"])
	}
}

func TestReportEndpoint(t *testing.T) {
	env := setupMatrixTest(t)

	body := map[string]interface{}{
		"entries": []map[string]interface{}{{
			"task_id":             env.task.ID,
			"performer_id":        env.performer.ID,
			"month":               "2025-02-01T00:00:00Z",
			"planned_person_days": "6",
			"actual_person_days":  "5",
		}},
	}
	w := testutil.DoRequest(env.router, "PUT",
		"/api/v1/projects/"+env.project.ID+"/matrix/entries", body, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Batch write failed: %d %s", w.Code, w.Body.String())
	}

	url := fmt.Sprintf("/api/v1/projects/%s/reports?group_by=performer&measure=cost", env.project.ID)
	w = testutil.DoRequest(env.router, "GET", url, nil, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	rows := data["rows"].([]interface{})
	if len(rows) != 1 {
		t.Fatalf("Expected 1 report row, got %d", len(rows))
	}
	row := rows[0].(map[string]interface{})
	total := row["total"].(map[string]interface{})
	if !jsonDecimal(t, total["planned"]).Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected planned total 3000, got %v", total["planned"])
	}
}
