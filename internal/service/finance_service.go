package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atalarczyk/PPLAN/internal/access"
	"github.com/atalarczyk/PPLAN/internal/entity"
	"github.com/atalarczyk/PPLAN/internal/planning"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FinanceService owns performer rates and the monetary registers.
// Invoice and revenue writes recompute the project snapshots in the
// same transaction; rates do not, because a rate change can affect many
// projects and callers trigger recomputes per project instead.
type FinanceService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	scopes   ScopeResolver
	planning *PlanningService
	logger   *zap.Logger
}

func NewFinanceService(db *gorm.DB, repos *repository.Repositories, scopes ScopeResolver, planningSvc *PlanningService, logger *zap.Logger) *FinanceService {
	return &FinanceService{
		db:       db,
		repos:    repos,
		scopes:   scopes,
		planning: planningSvc,
		logger:   logger,
	}
}

func (s *FinanceService) requireUnit(ctx context.Context, userID, businessUnitID string, c access.Capability) error {
	scope, err := s.scopes.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !scope.Allows(c, businessUnitID) {
		return access.ErrScopeDenied
	}
	return nil
}

func (s *FinanceService) requireProject(ctx context.Context, userID, projectID string, c access.Capability) (*entity.Project, error) {
	project, err := s.repos.Project.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUnit(ctx, userID, project.BusinessUnitID, c); err != nil {
		return nil, err
	}
	return project, nil
}

// RateInput is one rate row of a batch.
type RateInput struct {
	PerformerID        string          `json:"performer_id" binding:"required"`
	ProjectID          *string         `json:"project_id"`
	RateUnit           string          `json:"rate_unit" binding:"required"`
	RateValue          decimal.Decimal `json:"rate_value"`
	EffectiveFromMonth time.Time       `json:"effective_from_month" binding:"required"`
	EffectiveToMonth   *time.Time      `json:"effective_to_month"`
}

func validateRateInput(in RateInput) error {
	if in.RateUnit != entity.RateUnitDay && in.RateUnit != entity.RateUnitFTEMonth {
		return validationf("unknown rate unit %q", in.RateUnit)
	}
	if in.RateValue.IsNegative() {
		return validationf("rate value must be >= 0")
	}
	if err := requireFirstOfMonth("effective_from_month", in.EffectiveFromMonth); err != nil {
		return err
	}
	if in.EffectiveToMonth != nil {
		if err := requireFirstOfMonth("effective_to_month", *in.EffectiveToMonth); err != nil {
			return err
		}
		if planning.NormalizeMonth(in.EffectiveFromMonth).After(planning.NormalizeMonth(*in.EffectiveToMonth)) {
			return validationf("effective_from_month is after effective_to_month")
		}
	}
	return nil
}

// sameRateScope reports whether two rate rows compete: same performer
// and same project scope (both defaults, or both overrides of the same
// project).
func sameRateScope(a entity.PerformerRate, b RateInput) bool {
	if a.PerformerID != b.PerformerID {
		return false
	}
	if (a.ProjectID == nil) != (b.ProjectID == nil) {
		return false
	}
	if a.ProjectID != nil && *a.ProjectID != *b.ProjectID {
		return false
	}
	return true
}

// UpsertRates creates a batch of rates atomically. Unlike effort
// batches, rates are admin reference data: any overlap with an existing
// rate of the same scope, or between two rows of the batch, rejects the
// whole request.
func (s *FinanceService) UpsertRates(ctx context.Context, actorID, businessUnitID string, inputs []RateInput) ([]entity.PerformerRate, error) {
	if err := s.requireUnit(ctx, actorID, businessUnitID, access.CapFinanceEdit); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return []entity.PerformerRate{}, nil
	}

	for i, in := range inputs {
		if err := validateRateInput(in); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		performer, err := s.repos.Performer.FindByID(ctx, in.PerformerID)
		if err != nil {
			if err == repository.ErrNotFound {
				return nil, validationf("row %d: performer %s does not exist", i, in.PerformerID)
			}
			return nil, err
		}
		if performer.BusinessUnitID != businessUnitID {
			return nil, validationf("row %d: performer %s belongs to another business unit", i, in.PerformerID)
		}
		if in.ProjectID != nil {
			project, err := s.repos.Project.FindByID(ctx, *in.ProjectID)
			if err != nil || project.BusinessUnitID != businessUnitID {
				return nil, validationf("row %d: project %s does not exist in this business unit", i, *in.ProjectID)
			}
		}
	}

	// Overlap within the batch.
	for i := range inputs {
		for j := i + 1; j < len(inputs); j++ {
			a, b := inputs[i], inputs[j]
			if a.PerformerID != b.PerformerID {
				continue
			}
			if (a.ProjectID == nil) != (b.ProjectID == nil) {
				continue
			}
			if a.ProjectID != nil && *a.ProjectID != *b.ProjectID {
				continue
			}
			if planning.RangesOverlap(a.EffectiveFromMonth, a.EffectiveToMonth, b.EffectiveFromMonth, b.EffectiveToMonth) {
				return nil, fmt.Errorf("%w: rows %d and %d overlap for performer %s", ErrConflict, i, j, a.PerformerID)
			}
		}
	}

	// Overlap against persisted rates.
	for i, in := range inputs {
		existing, err := s.repos.Rate.ListByPerformer(ctx, in.PerformerID)
		if err != nil {
			return nil, err
		}
		for _, row := range existing {
			if !sameRateScope(row, in) {
				continue
			}
			if planning.RangesOverlap(row.EffectiveFromMonth, row.EffectiveToMonth, in.EffectiveFromMonth, in.EffectiveToMonth) {
				return nil, fmt.Errorf("%w: row %d overlaps existing rate %s", ErrConflict, i, row.ID)
			}
		}
	}

	rates := make([]entity.PerformerRate, len(inputs))
	for i, in := range inputs {
		var toMonth *time.Time
		if in.EffectiveToMonth != nil {
			normalized := planning.NormalizeMonth(*in.EffectiveToMonth)
			toMonth = &normalized
		}
		rates[i] = entity.PerformerRate{
			ID:                 uuid.New().String(),
			BusinessUnitID:     businessUnitID,
			PerformerID:        in.PerformerID,
			ProjectID:          in.ProjectID,
			RateUnit:           in.RateUnit,
			RateValue:          in.RateValue,
			EffectiveFromMonth: planning.NormalizeMonth(in.EffectiveFromMonth),
			EffectiveToMonth:   toMonth,
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.repos.Rate.CreateBatch(ctx, tx, rates)
	})
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, businessUnitID, "performer_rate", "", "bulk_create",
		nil, map[string]interface{}{"count": len(rates)})
	return rates, nil
}

func (s *FinanceService) DeleteRate(ctx context.Context, actorID, rateID string) error {
	rate, err := s.repos.Rate.FindByID(ctx, rateID)
	if err != nil {
		return err
	}
	if err := s.requireUnit(ctx, actorID, rate.BusinessUnitID, access.CapFinanceEdit); err != nil {
		return err
	}
	if err := s.repos.Rate.Delete(ctx, rateID); err != nil {
		return err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, rate.BusinessUnitID, "performer_rate", rateID, "delete", rate, nil)
	return nil
}

func (s *FinanceService) ListRates(ctx context.Context, userID, businessUnitID string) ([]entity.PerformerRate, error) {
	if err := s.requireUnit(ctx, userID, businessUnitID, access.CapProjectRead); err != nil {
		return nil, err
	}
	return s.repos.Rate.ListByBusinessUnit(ctx, businessUnitID)
}

// RegisterRowRequest is the shared shape of financial register writes.
type RegisterRowRequest struct {
	Number      string          `json:"number" binding:"required"`
	DocDate     time.Time       `json:"doc_date" binding:"required"`
	MonthStart  time.Time       `json:"month_start" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	PaymentDate *time.Time      `json:"payment_date"`
}

func (s *FinanceService) validateRegisterRow(project *entity.Project, req RegisterRowRequest) (time.Time, error) {
	if err := requireFirstOfMonth("month_start", req.MonthStart); err != nil {
		return time.Time{}, err
	}
	month := planning.NormalizeMonth(req.MonthStart)
	if !planning.MonthInRange(month, project.StartMonth, project.EndMonth) {
		return time.Time{}, validationf("month %s is outside the project range %s..%s",
			month.Format("2006-01"), project.StartMonth.Format("2006-01"), project.EndMonth.Format("2006-01"))
	}
	if req.Amount.IsNegative() {
		return time.Time{}, validationf("amount must be >= 0")
	}
	return month, nil
}

func currencyOrDefault(c string) string {
	if c == "" {
		return entity.CurrencyPLN
	}
	return c
}

// CreateFinancialRequest adds a request register row. Requests do not
// feed snapshots.
func (s *FinanceService) CreateFinancialRequest(ctx context.Context, actorID, projectID string, req RegisterRowRequest) (*entity.FinancialRequest, error) {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapFinanceEdit)
	if err != nil {
		return nil, err
	}
	month, err := s.validateRegisterRow(project, req)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = "draft"
	}
	row := &entity.FinancialRequest{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		RequestNo:   req.Number,
		RequestDate: req.DocDate,
		MonthStart:  month,
		Amount:      req.Amount,
		Currency:    currencyOrDefault(req.Currency),
		Status:      status,
	}
	if err := s.repos.FinancialRequest.Create(ctx, row); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "financial_request", row.ID, "create", nil, row)
	return row, nil
}

func (s *FinanceService) DeleteFinancialRequest(ctx context.Context, actorID, projectID, requestID string) error {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapFinanceEdit)
	if err != nil {
		return err
	}
	row, err := s.repos.FinancialRequest.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if row.ProjectID != projectID {
		return repository.ErrNotFound
	}
	if err := s.repos.FinancialRequest.Delete(ctx, requestID); err != nil {
		return err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "financial_request", requestID, "delete", row, nil)
	return nil
}

func (s *FinanceService) ListFinancialRequests(ctx context.Context, userID, projectID string) ([]entity.FinancialRequest, error) {
	if _, err := s.requireProject(ctx, userID, projectID, access.CapProjectRead); err != nil {
		return nil, err
	}
	return s.repos.FinancialRequest.ListByProject(ctx, projectID)
}

// CreateInvoice adds an invoice row and recomputes the snapshots.
func (s *FinanceService) CreateInvoice(ctx context.Context, actorID, projectID string, req RegisterRowRequest) (*entity.Invoice, error) {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapFinanceEdit)
	if err != nil {
		return nil, err
	}
	month, err := s.validateRegisterRow(project, req)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = "unpaid"
	}
	row := &entity.Invoice{
		ID:            uuid.New().String(),
		ProjectID:     projectID,
		InvoiceNo:     req.Number,
		InvoiceDate:   req.DocDate,
		MonthStart:    month,
		Amount:        req.Amount,
		Currency:      currencyOrDefault(req.Currency),
		PaymentStatus: status,
		PaymentDate:   req.PaymentDate,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.repos.Project.LockByID(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
		return s.planning.refreshSnapshots(ctx, tx, locked)
	})
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "invoice", row.ID, "create", nil, row)
	return row, nil
}

func (s *FinanceService) DeleteInvoice(ctx context.Context, actorID, projectID, invoiceID string) error {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapFinanceEdit)
	if err != nil {
		return err
	}
	row, err := s.repos.Invoice.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if row.ProjectID != projectID {
		return repository.ErrNotFound
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.repos.Project.LockByID(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("id = ?", invoiceID).Delete(&entity.Invoice{}).Error; err != nil {
			return err
		}
		return s.planning.refreshSnapshots(ctx, tx, locked)
	})
	if err != nil {
		return err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "invoice", invoiceID, "delete", row, nil)
	return nil
}

func (s *FinanceService) ListInvoices(ctx context.Context, userID, projectID string) ([]entity.Invoice, error) {
	if _, err := s.requireProject(ctx, userID, projectID, access.CapProjectRead); err != nil {
		return nil, err
	}
	return s.repos.Invoice.ListByProject(ctx, projectID)
}

// CreateRevenue adds a revenue row and recomputes the snapshots.
func (s *FinanceService) CreateRevenue(ctx context.Context, actorID, projectID string, req RegisterRowRequest) (*entity.Revenue, error) {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapFinanceEdit)
	if err != nil {
		return nil, err
	}
	month, err := s.validateRegisterRow(project, req)
	if err != nil {
		return nil, err
	}

	row := &entity.Revenue{
		ID:              uuid.New().String(),
		ProjectID:       projectID,
		RevenueNo:       req.Number,
		RecognitionDate: req.DocDate,
		MonthStart:      month,
		Amount:          req.Amount,
		Currency:        currencyOrDefault(req.Currency),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.repos.Project.LockByID(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
		return s.planning.refreshSnapshots(ctx, tx, locked)
	})
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "revenue", row.ID, "create", nil, row)
	return row, nil
}

func (s *FinanceService) DeleteRevenue(ctx context.Context, actorID, projectID, revenueID string) error {
	project, err := s.requireProject(ctx, actorID, projectID, access.CapFinanceEdit)
	if err != nil {
		return err
	}
	row, err := s.repos.Revenue.FindByID(ctx, revenueID)
	if err != nil {
		return err
	}
	if row.ProjectID != projectID {
		return repository.ErrNotFound
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.repos.Project.LockByID(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("id = ?", revenueID).Delete(&entity.Revenue{}).Error; err != nil {
			return err
		}
		return s.planning.refreshSnapshots(ctx, tx, locked)
	})
	if err != nil {
		return err
	}
	recordAudit(ctx, s.repos.AuditEvent, actorID, project.BusinessUnitID, "revenue", revenueID, "delete", row, nil)
	return nil
}

func (s *FinanceService) ListRevenues(ctx context.Context, userID, projectID string) ([]entity.Revenue, error) {
	if _, err := s.requireProject(ctx, userID, projectID, access.CapProjectRead); err != nil {
		return nil, err
	}
	return s.repos.Revenue.ListByProject(ctx, projectID)
}
