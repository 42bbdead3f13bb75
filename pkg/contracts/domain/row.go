package domain

import (
	"github.com/shopspring/decimal"
)

// FlattenedRow is one line of the detailed tabular export: the cross-product
// of a deal's static attributes with one deduplicated period snapshot.
// Uniqueness key: (ClientID, DealID, PeriodYear, PeriodMonth).
type FlattenedRow struct {
	ClientID          string           `json:"client_id" csv:"client_id" validate:"required"`
	ClientFile        string           `json:"client_file" csv:"client_file" validate:"required"`
	DealID            string           `json:"deal_id" csv:"deal_id" validate:"required"`
	TransactionAmount *decimal.Decimal `json:"transaction_amount,omitempty" csv:"transaction_amount"`
	TransactionType   *string          `json:"transaction_type,omitempty" csv:"transaction_type"`
	Currency          *string          `json:"currency,omitempty" csv:"currency"`
	CollateralType    *string          `json:"collateral_type,omitempty" csv:"collateral_type"`
	SubjectRole       *string          `json:"subject_role,omitempty" csv:"subject_role"`
	CollateralValue   *decimal.Decimal `json:"collateral_value,omitempty" csv:"collateral_value"`
	PeriodMonth       *int             `json:"period_month,omitempty" csv:"period_month"`
	PeriodYear        *int             `json:"period_year,omitempty" csv:"period_year"`
	StartDate         *string          `json:"start_date,omitempty" csv:"start_date"`
	PlannedEndDate    *string          `json:"planned_end_date,omitempty" csv:"planned_end_date"`
	ActualEndDate     *string          `json:"actual_end_date,omitempty" csv:"actual_end_date"`
	DealStatus        *int             `json:"deal_status,omitempty" csv:"deal_status"`
	CurrentLimit      *decimal.Decimal `json:"current_limit,omitempty" csv:"current_limit"`
	PlannedPayment    *decimal.Decimal `json:"planned_payment,omitempty" csv:"planned_payment"`
	CurrentDebt       *decimal.Decimal `json:"current_debt,omitempty" csv:"current_debt"`
	OverdueDebt       *decimal.Decimal `json:"overdue_debt,omitempty" csv:"overdue_debt"`
	DaysOverdue       *int             `json:"days_overdue,omitempty" csv:"days_overdue"`
	PaymentMade       *int             `json:"payment_made,omitempty" csv:"payment_made"`
	ArrearsPresent    *int             `json:"arrears_present,omitempty" csv:"arrears_present"`
	CalculationDate   *string          `json:"calculation_date,omitempty" csv:"calculation_date"`
}

// RowKey identifies a FlattenedRow for deduplication. Missing period year or
// month count as zero, the same normalization PeriodKey applies.
type RowKey struct {
	ClientID string
	DealID   string
	Year     int
	Month    int
}

// Key returns the row's deduplication key.
func (r *FlattenedRow) Key() RowKey {
	year, month := r.PeriodKey()
	return RowKey{ClientID: r.ClientID, DealID: r.DealID, Year: year, Month: month}
}

// PeriodKey returns the (year, month) ordering key, zero for missing parts.
func (r *FlattenedRow) PeriodKey() (year, month int) {
	if r.PeriodYear != nil {
		year = *r.PeriodYear
	}
	if r.PeriodMonth != nil {
		month = *r.PeriodMonth
	}
	return year, month
}

// IsClosed reports whether the row carries an actual end date. Sentinel texts
// for "no value" are normalized to nil at extraction, so a non-nil date is a
// terminal-state signal.
func (r *FlattenedRow) IsClosed() bool {
	return r.ActualEndDate != nil
}

// DetailedColumns is the authoritative column order of the detailed export.
// Writers and readers of the artifact must agree on this list.
func DetailedColumns() []string {
	return []string{
		"client_id",
		"client_file",
		"deal_id",
		"transaction_amount",
		"transaction_type",
		"currency",
		"collateral_type",
		"subject_role",
		"collateral_value",
		"period_month",
		"period_year",
		"start_date",
		"planned_end_date",
		"actual_end_date",
		"deal_status",
		"current_limit",
		"planned_payment",
		"current_debt",
		"overdue_debt",
		"days_overdue",
		"payment_made",
		"arrears_present",
		"calculation_date",
	}
}
