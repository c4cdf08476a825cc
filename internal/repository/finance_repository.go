package repository

import (
	"context"
	"errors"
	"time"

	"github.com/atalarczyk/PPLAN/internal/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RateRepository persists performer rates.
type RateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) FindByID(ctx context.Context, id string) (*entity.PerformerRate, error) {
	var rate entity.PerformerRate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rate, nil
}

func (r *RateRepository) Create(ctx context.Context, rate *entity.PerformerRate) error {
	return r.db.WithContext(ctx).Create(rate).Error
}

func (r *RateRepository) CreateBatch(ctx context.Context, tx *gorm.DB, rates []entity.PerformerRate) error {
	if len(rates) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&rates).Error
}

func (r *RateRepository) Update(ctx context.Context, rate *entity.PerformerRate) error {
	return r.db.WithContext(ctx).Save(rate).Error
}

func (r *RateRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.PerformerRate{}).Error
}

// ListByPerformer returns every rate row of one performer, both unit
// defaults and project overrides.
func (r *RateRepository) ListByPerformer(ctx context.Context, performerID string) ([]entity.PerformerRate, error) {
	var rates []entity.PerformerRate
	err := r.db.WithContext(ctx).
		Where("performer_id = ?", performerID).
		Order("effective_from_month ASC").
		Find(&rates).Error
	return rates, err
}

// ListForProject loads the candidate set for cost resolution: every
// rate of the given performers that is either a unit default or scoped
// to this project.
func (r *RateRepository) ListForProject(ctx context.Context, projectID string, performerIDs []string) ([]entity.PerformerRate, error) {
	if len(performerIDs) == 0 {
		return nil, nil
	}
	var rates []entity.PerformerRate
	err := r.db.WithContext(ctx).
		Where("performer_id IN ? AND (project_id IS NULL OR project_id = ?)", performerIDs, projectID).
		Find(&rates).Error
	return rates, err
}

func (r *RateRepository) ListByBusinessUnit(ctx context.Context, businessUnitID string) ([]entity.PerformerRate, error) {
	var rates []entity.PerformerRate
	err := r.db.WithContext(ctx).
		Where("business_unit_id = ?", businessUnitID).
		Order("performer_id ASC, effective_from_month ASC").
		Find(&rates).Error
	return rates, err
}

// MonthAmount is one row of a per-month SUM aggregate.
type MonthAmount struct {
	MonthStart time.Time       `gorm:"column:month_start"`
	Total      decimal.Decimal `gorm:"column:total"`
}

func monthAmountMap(rows []MonthAmount) map[time.Time]decimal.Decimal {
	m := make(map[time.Time]decimal.Decimal, len(rows))
	for _, row := range rows {
		key := time.Date(row.MonthStart.Year(), row.MonthStart.Month(), 1, 0, 0, 0, 0, time.UTC)
		m[key] = m[key].Add(row.Total)
	}
	return m
}

// FinancialRequestRepository persists the request register.
type FinancialRequestRepository struct {
	db *gorm.DB
}

func NewFinancialRequestRepository(db *gorm.DB) *FinancialRequestRepository {
	return &FinancialRequestRepository{db: db}
}

func (r *FinancialRequestRepository) FindByID(ctx context.Context, id string) (*entity.FinancialRequest, error) {
	var request entity.FinancialRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

func (r *FinancialRequestRepository) Create(ctx context.Context, request *entity.FinancialRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *FinancialRequestRepository) Update(ctx context.Context, request *entity.FinancialRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *FinancialRequestRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.FinancialRequest{}).Error
}

func (r *FinancialRequestRepository) ListByProject(ctx context.Context, projectID string) ([]entity.FinancialRequest, error) {
	var requests []entity.FinancialRequest
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("month_start ASC, request_no ASC").
		Find(&requests).Error
	return requests, err
}

// InvoiceRepository persists the invoice register.
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*entity.Invoice, error) {
	var invoice entity.Invoice
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) Update(ctx context.Context, invoice *entity.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *InvoiceRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Invoice{}).Error
}

func (r *InvoiceRepository) ListByProject(ctx context.Context, projectID string) ([]entity.Invoice, error) {
	var invoices []entity.Invoice
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("month_start ASC, invoice_no ASC").
		Find(&invoices).Error
	return invoices, err
}

// SumByMonth aggregates invoice amounts per month for snapshot
// recomputation.
func (r *InvoiceRepository) SumByMonth(ctx context.Context, tx *gorm.DB, projectID string) (map[time.Time]decimal.Decimal, error) {
	var rows []MonthAmount
	err := tx.WithContext(ctx).Model(&entity.Invoice{}).
		Select("month_start, COALESCE(SUM(amount), 0) AS total").
		Where("project_id = ?", projectID).
		Group("month_start").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return monthAmountMap(rows), nil
}

// RevenueRepository persists the revenue register.
type RevenueRepository struct {
	db *gorm.DB
}

func NewRevenueRepository(db *gorm.DB) *RevenueRepository {
	return &RevenueRepository{db: db}
}

func (r *RevenueRepository) FindByID(ctx context.Context, id string) (*entity.Revenue, error) {
	var revenue entity.Revenue
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&revenue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &revenue, nil
}

func (r *RevenueRepository) Create(ctx context.Context, revenue *entity.Revenue) error {
	return r.db.WithContext(ctx).Create(revenue).Error
}

func (r *RevenueRepository) Update(ctx context.Context, revenue *entity.Revenue) error {
	return r.db.WithContext(ctx).Save(revenue).Error
}

func (r *RevenueRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Revenue{}).Error
}

func (r *RevenueRepository) ListByProject(ctx context.Context, projectID string) ([]entity.Revenue, error) {
	var revenues []entity.Revenue
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("month_start ASC, revenue_no ASC").
		Find(&revenues).Error
	return revenues, err
}

// SumByMonth aggregates revenue amounts per month for snapshot
// recomputation.
func (r *RevenueRepository) SumByMonth(ctx context.Context, tx *gorm.DB, projectID string) (map[time.Time]decimal.Decimal, error) {
	var rows []MonthAmount
	err := tx.WithContext(ctx).Model(&entity.Revenue{}).
		Select("month_start, COALESCE(SUM(amount), 0) AS total").
		Where("project_id = ?", projectID).
		Group("month_start").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return monthAmountMap(rows), nil
}
