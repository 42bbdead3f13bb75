package domain

import (
	"github.com/shopspring/decimal"
)

// ClientRecord is the Single Source of Truth for one ingested credit-bureau
// document. It is created once per source file by the extractor and never
// mutated afterwards; every downstream transform (flattening, metrics,
// validation) derives from it without writing back.
//
// Identity: ClientID equals the document's base filename without extension,
// exact and case-preserving. Deals preserve document order.
type ClientRecord struct {
	// ClientID is derived from the source document name (no normalization)
	ClientID string `json:"client_id" validate:"required"`

	// SourceFile is the document filename the record was extracted from
	SourceFile string `json:"source_file" validate:"required"`

	// Deals holds every deal block found in the document, in encounter order.
	// Empty for documents with no deal blocks and for unparsable documents.
	Deals []DealRecord `json:"deals"`
}

// DealRecord holds the deal-level attribute set of one crdeal block.
// The deal reference is unique within a client only; the same reference may
// recur across clients and must never be merged across client boundaries.
// All fields are optional: an absent attribute stays nil, no defaults.
type DealRecord struct {
	Ref                *string          `json:"ref,omitempty"`                  // dlref
	Language           *string          `json:"language,omitempty"`             // lng
	TransactionType    *string          `json:"transaction_type,omitempty"`     // dlcelcred
	CollateralType     *string          `json:"collateral_type,omitempty"`      // dlvidobes
	RedemptionPlan     *string          `json:"redemption_plan,omitempty"`      // dlporpog
	Currency           *string          `json:"currency,omitempty"`             // dlcurr
	Amount             *decimal.Decimal `json:"amount,omitempty"`               // dlamt
	Provider           *string          `json:"provider,omitempty"`             // dldonor
	ProviderNumber     *string          `json:"provider_number,omitempty"`      // dldonornum
	PrimaryDebt        *string          `json:"primary_debt,omitempty"`         // primarydebt
	SubjectRole        *string          `json:"subject_role,omitempty"`         // dlrolesub
	CollateralValue    *decimal.Decimal `json:"collateral_value,omitempty"`     // dlamtobes
	BirthDate          *string          `json:"birth_date,omitempty"`           // bdate
	TransactionTypeRef *string          `json:"transaction_type_ref,omitempty"` // dlcelcredref
	CurrencyRef        *string          `json:"currency_ref,omitempty"`         // dlcurrref
	RedemptionPlanRef  *string          `json:"redemption_plan_ref,omitempty"`  // dlporpogref
	SubjectRoleRef     *string          `json:"subject_role_ref,omitempty"`     // dlrolesubref
	CollateralTypeRef  *string          `json:"collateral_type_ref,omitempty"`  // dlvidobesref
	LanguageRef        *string          `json:"language_ref,omitempty"`         // lngref

	// History holds the deal's period snapshots in encounter order.
	// A deal with no history contributes nothing to the tabular output.
	History []PeriodRecord `json:"history"`
}

// PeriodRecord holds the period-level attribute set of one deallife block,
// a monthly snapshot of a deal's financial state. Identity within a deal is
// the (Year, Month) pair; malformed sources may repeat a pair, and the
// flattener keeps the last-encountered snapshot for each.
type PeriodRecord struct {
	DealRef           *string          `json:"deal_ref,omitempty"`            // dlref
	Month             *int             `json:"month,omitempty"`               // dlmonth
	Year              *int             `json:"year,omitempty"`                // dlyear
	StartDate         *string          `json:"start_date,omitempty"`          // dlds
	PlannedEndDate    *string          `json:"planned_end_date,omitempty"`    // dldpf
	ActualEndDate     *string          `json:"actual_end_date,omitempty"`     // dldff
	Status            *int             `json:"status,omitempty"`              // dlflstat
	StatusRef         *string          `json:"status_ref,omitempty"`          // dlflstatref
	CurrentLimit      *decimal.Decimal `json:"current_limit,omitempty"`       // dlamtlim
	PlannedPayment    *decimal.Decimal `json:"planned_payment,omitempty"`     // dlamtpaym
	CurrentDebt       *decimal.Decimal `json:"current_debt,omitempty"`        // dlamtcur
	OverdueDebt       *decimal.Decimal `json:"overdue_debt,omitempty"`        // dlamtexp
	DaysOverdue       *int             `json:"days_overdue,omitempty"`        // dldayexp
	PaymentMade       *int             `json:"payment_made,omitempty"`        // dlflpay
	PaymentMadeRef    *string          `json:"payment_made_ref,omitempty"`    // dlflpayref
	ArrearsPresent    *int             `json:"arrears_present,omitempty"`     // dlflbrk
	ArrearsPresentRef *string          `json:"arrears_present_ref,omitempty"` // dlflbrkref
	TrancheUsed       *int             `json:"tranche_used,omitempty"`        // dlfluse
	TrancheUsedRef    *string          `json:"tranche_used_ref,omitempty"`    // dlfluseref
	CalculationDate   *string          `json:"calculation_date,omitempty"`    // dldateclc
}

// UnknownDealRef is substituted for a deal's reference when the source block
// carries no dlref attribute, so the deal's rows are kept rather than dropped.
const UnknownDealRef = "UNKNOWN"

// DealID returns the deal reference, or UnknownDealRef when absent.
func (d *DealRecord) DealID() string {
	if d.Ref == nil {
		return UnknownDealRef
	}
	return *d.Ref
}

// PeriodKey returns the (year, month) ordering key of a period snapshot.
// Missing components count as zero, matching the aggregation rule that a
// snapshot without a reported year or month sorts before any dated one.
func (p *PeriodRecord) PeriodKey() (year, month int) {
	if p.Year != nil {
		year = *p.Year
	}
	if p.Month != nil {
		month = *p.Month
	}
	return year, month
}

// DealCount returns the number of deal blocks extracted for the client.
func (c *ClientRecord) DealCount() int {
	return len(c.Deals)
}

// PeriodCount returns the total number of period snapshots across all deals.
func (c *ClientRecord) PeriodCount() int {
	n := 0
	for i := range c.Deals {
		n += len(c.Deals[i].History)
	}
	return n
}
