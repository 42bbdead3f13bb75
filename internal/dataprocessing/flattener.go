package dataprocessing

import (
	"context"
	"log/slog"

	"riskcli/pkg/contracts/domain"
)

// Flattener expands ClientRecords into the detailed tabular form: one row
// per deal and period snapshot, deduplicated on the row key.
type Flattener struct {
	logger *slog.Logger
}

// NewFlattener creates a new flattener
func NewFlattener(logger *slog.Logger) *Flattener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flattener{logger: logger}
}

// FlattenStats summarizes one flattening pass.
type FlattenStats struct {
	RowsEmitted         int
	DuplicatesReplaced  int
	DealsWithoutHistory int
}

// Flatten produces the deduplicated detailed rows for all clients.
//
// Each deal contributes one row per period snapshot; a deal with no history
// contributes nothing. When the same (client id, deal id, year, month) key
// occurs more than once, only the last-encountered row survives, at its
// later position. Rows otherwise follow encounter order: clients in
// processing order, deals and periods in document order.
func (f *Flattener) Flatten(ctx context.Context, clients []domain.ClientRecord) ([]domain.FlattenedRow, FlattenStats) {
	var stats FlattenStats
	var raw []domain.FlattenedRow

	for i := range clients {
		client := &clients[i]
		for j := range client.Deals {
			deal := &client.Deals[j]
			if len(deal.History) == 0 {
				stats.DealsWithoutHistory++
				continue
			}
			for k := range deal.History {
				raw = append(raw, buildRow(client, deal, &deal.History[k]))
			}
		}
	}

	rows := dedupeKeepLast(raw)
	stats.RowsEmitted = len(rows)
	stats.DuplicatesReplaced = len(raw) - len(rows)

	f.logger.InfoContext(ctx, "flattening complete",
		slog.Int("clients", len(clients)),
		slog.Int("rows", stats.RowsEmitted),
		slog.Int("duplicates_replaced", stats.DuplicatesReplaced),
		slog.Int("deals_without_history", stats.DealsWithoutHistory))

	return rows, stats
}

// buildRow combines a deal's static attributes with one period snapshot.
// Pointer fields are shared with the source records, which are immutable
// after extraction.
func buildRow(client *domain.ClientRecord, deal *domain.DealRecord, period *domain.PeriodRecord) domain.FlattenedRow {
	return domain.FlattenedRow{
		ClientID:          client.ClientID,
		ClientFile:        client.SourceFile,
		DealID:            deal.DealID(),
		TransactionAmount: deal.Amount,
		TransactionType:   deal.TransactionType,
		Currency:          deal.Currency,
		CollateralType:    deal.CollateralType,
		SubjectRole:       deal.SubjectRole,
		CollateralValue:   deal.CollateralValue,
		PeriodMonth:       period.Month,
		PeriodYear:        period.Year,
		StartDate:         period.StartDate,
		PlannedEndDate:    period.PlannedEndDate,
		ActualEndDate:     period.ActualEndDate,
		DealStatus:        period.Status,
		CurrentLimit:      period.CurrentLimit,
		PlannedPayment:    period.PlannedPayment,
		CurrentDebt:       period.CurrentDebt,
		OverdueDebt:       period.OverdueDebt,
		DaysOverdue:       period.DaysOverdue,
		PaymentMade:       period.PaymentMade,
		ArrearsPresent:    period.ArrearsPresent,
		CalculationDate:   period.CalculationDate,
	}
}

// dedupeKeepLast removes earlier occurrences of each row key, keeping the
// last occurrence at its position.
func dedupeKeepLast(raw []domain.FlattenedRow) []domain.FlattenedRow {
	if len(raw) == 0 {
		return nil
	}

	seen := make(map[domain.RowKey]bool, len(raw))
	kept := make([]domain.FlattenedRow, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		key := raw[i].Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, raw[i])
	}

	// Restore encounter order
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
