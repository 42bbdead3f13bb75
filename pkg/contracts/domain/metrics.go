package domain

import (
	"github.com/shopspring/decimal"
)

// ClientMetrics is one row of the metrics export: the per-client reduction of
// the flattened table, computed from the latest period snapshot of each deal.
//
// Scales are fixed by the export contract: ClosedLoansRatio carries 4 decimal
// places, Expired30PlusAmount carries 2. A client with zero flattened rows has
// no ClientMetrics row at all, it never appears with zero values.
type ClientMetrics struct {
	// ClientID identifies the client, taken from the source document name
	ClientID string `json:"client_id" csv:"client_id" validate:"required"`

	// TotalLoansCount is the number of distinct deals with at least one
	// retained flattened row
	TotalLoansCount int `json:"total_loans_count" csv:"total_loans_count" validate:"min=0"`

	// ClosedLoansCount is the number of those deals whose latest period
	// snapshot carries an actual end date
	ClosedLoansCount int `json:"closed_loans_count" csv:"closed_loans_count" validate:"min=0"`

	// ClosedLoansRatio is ClosedLoansCount / TotalLoansCount, zero when the
	// client has no loans, rounded to 4 places
	ClosedLoansRatio decimal.Decimal `json:"closed_loans_ratio" csv:"closed_loans_ratio"`

	// Expired30PlusAmount is the summed overdue debt across deals whose
	// latest snapshot reports more than 30 days overdue, rounded to 2 places
	Expired30PlusAmount decimal.Decimal `json:"expired_30_plus_amount" csv:"expired_30_plus_amount"`
}

// MetricsColumns is the authoritative column order of the metrics export.
func MetricsColumns() []string {
	return []string{
		"client_id",
		"total_loans_count",
		"closed_loans_count",
		"closed_loans_ratio",
		"expired_30_plus_amount",
	}
}
