package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PerformerRate prices a performer's person-day. A NULL project scopes
// the rate to the whole business unit; a concrete project overrides the
// default for that project. Overlapping ranges are possible in the
// table — resolution picks the latest matching row.
type PerformerRate struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:36"`
	BusinessUnitID     string          `json:"business_unit_id" gorm:"size:36;not null"`
	PerformerID        string          `json:"performer_id" gorm:"size:36;not null;index:ix_rates_performer_effective"`
	ProjectID          *string         `json:"project_id" gorm:"size:36"`
	RateUnit           string          `json:"rate_unit" gorm:"size:16;not null"`
	RateValue          decimal.Decimal `json:"rate_value" gorm:"type:decimal(12,2);not null"`
	EffectiveFromMonth time.Time       `json:"effective_from_month" gorm:"type:date;not null;index:ix_rates_performer_effective"`
	EffectiveToMonth   *time.Time      `json:"effective_to_month" gorm:"type:date"`
}

func (PerformerRate) TableName() string {
	return "performer_rates"
}

// FinancialRequest is a monetary request register row keyed by month.
type FinancialRequest struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	ProjectID   string          `json:"project_id" gorm:"size:36;not null;index:ix_financial_requests_project_month"`
	RequestNo   string          `json:"request_no" gorm:"size:128;not null"`
	RequestDate time.Time       `json:"request_date" gorm:"type:date;not null"`
	MonthStart  time.Time       `json:"month_start" gorm:"type:date;not null;index:ix_financial_requests_project_month"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Currency    string          `json:"currency" gorm:"size:8;not null;default:PLN"`
	Status      string          `json:"status" gorm:"size:32;not null;default:draft"`
}

func (FinancialRequest) TableName() string {
	return "financial_requests"
}

// Invoice register row. Amounts feed the monthly snapshot.
type Invoice struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	ProjectID     string          `json:"project_id" gorm:"size:36;not null;index:ix_invoices_project_month"`
	InvoiceNo     string          `json:"invoice_no" gorm:"size:128;not null"`
	InvoiceDate   time.Time       `json:"invoice_date" gorm:"type:date;not null"`
	MonthStart    time.Time       `json:"month_start" gorm:"type:date;not null;index:ix_invoices_project_month"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Currency      string          `json:"currency" gorm:"size:8;not null;default:PLN"`
	PaymentStatus string          `json:"payment_status" gorm:"size:32;not null;default:unpaid"`
	PaymentDate   *time.Time      `json:"payment_date" gorm:"type:date"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// Revenue register row. Amounts feed the monthly snapshot.
type Revenue struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	ProjectID       string          `json:"project_id" gorm:"size:36;not null;index:ix_revenues_project_month"`
	RevenueNo       string          `json:"revenue_no" gorm:"size:128;not null"`
	RecognitionDate time.Time       `json:"recognition_date" gorm:"type:date;not null"`
	MonthStart      time.Time       `json:"month_start" gorm:"type:date;not null;index:ix_revenues_project_month"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Currency        string          `json:"currency" gorm:"size:8;not null;default:PLN"`
}

func (Revenue) TableName() string {
	return "revenues"
}

// ProjectMonthlySnapshot is fully derived — one row per (project,
// month), rewritten as a whole by the snapshot recalculation and never
// edited by hand. Cumulative columns are running sums from the
// project's first month.
type ProjectMonthlySnapshot struct {
	ID                      string          `json:"id" gorm:"primaryKey;size:36"`
	ProjectID               string          `json:"project_id" gorm:"size:36;not null;index:ix_snapshots_project_month;uniqueIndex:uq_snapshots_project_month"`
	MonthStart              time.Time       `json:"month_start" gorm:"type:date;not null;index:ix_snapshots_project_month;uniqueIndex:uq_snapshots_project_month"`
	PlannedPersonDays       decimal.Decimal `json:"planned_person_days" gorm:"type:decimal(12,2);not null;default:0"`
	ActualPersonDays        decimal.Decimal `json:"actual_person_days" gorm:"type:decimal(12,2);not null;default:0"`
	PlannedCost             decimal.Decimal `json:"planned_cost" gorm:"type:decimal(14,2);not null;default:0"`
	ActualCost              decimal.Decimal `json:"actual_cost" gorm:"type:decimal(14,2);not null;default:0"`
	RevenueAmount           decimal.Decimal `json:"revenue_amount" gorm:"type:decimal(14,2);not null;default:0"`
	InvoiceAmount           decimal.Decimal `json:"invoice_amount" gorm:"type:decimal(14,2);not null;default:0"`
	CumulativePlannedCost   decimal.Decimal `json:"cumulative_planned_cost" gorm:"type:decimal(14,2);not null;default:0"`
	CumulativeActualCost    decimal.Decimal `json:"cumulative_actual_cost" gorm:"type:decimal(14,2);not null;default:0"`
	CumulativeRevenue       decimal.Decimal `json:"cumulative_revenue" gorm:"type:decimal(14,2);not null;default:0"`
	CumulativeInvoiceAmount decimal.Decimal `json:"cumulative_invoice_amount" gorm:"type:decimal(14,2);not null;default:0"`
}

func (ProjectMonthlySnapshot) TableName() string {
	return "project_monthly_snapshots"
}
