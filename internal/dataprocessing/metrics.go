package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"riskcli/pkg/contracts/domain"
)

// MetricsCalculator reduces detailed rows into per-client risk metrics.
// It is the single source of truth for the metric definitions; the
// validation engine recomputes them independently and must agree.
type MetricsCalculator struct {
	logger *slog.Logger
}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator(logger *slog.Logger) *MetricsCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsCalculator{logger: logger}
}

// CalculateFromRows produces one ClientMetrics per distinct client id in
// rows, sorted by client id. Clients with zero rows do not appear.
//
// Per client, the latest row of each deal (maximum (year, month), last
// encountered on ties) is the authoritative state:
//   - total_loans_count:   distinct deal ids
//   - closed_loans_count:  deals whose latest row has an actual end date
//   - closed_loans_ratio:  closed/total rounded to 4 places
//   - expired_30_plus_amount: sum of overdue debt over deals whose latest
//     row has days overdue > 30 and a non-null overdue debt, rounded to
//     2 places
func (m *MetricsCalculator) CalculateFromRows(ctx context.Context, rows []domain.FlattenedRow) []domain.ClientMetrics {
	m.logger.InfoContext(ctx, "calculating client metrics",
		slog.Int("row_count", len(rows)))

	latestByClient := make(map[string]map[string]domain.FlattenedRow)
	for _, row := range rows {
		deals, ok := latestByClient[row.ClientID]
		if !ok {
			deals = make(map[string]domain.FlattenedRow)
			latestByClient[row.ClientID] = deals
		}

		current, ok := deals[row.DealID]
		if !ok || !laterPeriod(&current, &row) {
			deals[row.DealID] = row
		}
	}

	metrics := make([]domain.ClientMetrics, 0, len(latestByClient))
	for clientID, deals := range latestByClient {
		metrics = append(metrics, m.calculateClient(clientID, deals))
	}

	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].ClientID < metrics[j].ClientID
	})

	m.logger.InfoContext(ctx, "client metrics calculated",
		slog.Int("client_count", len(metrics)))

	return metrics
}

// calculateClient reduces one client's latest-per-deal rows to its metrics.
func (m *MetricsCalculator) calculateClient(clientID string, latestByDeal map[string]domain.FlattenedRow) domain.ClientMetrics {
	total := len(latestByDeal)
	closed := 0
	expired := decimal.Zero

	for _, row := range latestByDeal {
		if row.IsClosed() {
			closed++
		}
		if row.DaysOverdue != nil && *row.DaysOverdue > 30 && row.OverdueDebt != nil {
			expired = expired.Add(*row.OverdueDebt)
		}
	}

	ratio := decimal.Zero
	if total > 0 {
		ratio = decimal.NewFromInt(int64(closed)).
			Div(decimal.NewFromInt(int64(total))).
			Round(4)
	}

	return domain.ClientMetrics{
		ClientID:            clientID,
		TotalLoansCount:     total,
		ClosedLoansCount:    closed,
		ClosedLoansRatio:    ratio,
		Expired30PlusAmount: expired.Round(2),
	}
}

// laterPeriod reports whether current's period strictly follows candidate's,
// in which case candidate must not replace it. Equal periods favor the
// candidate so the last-encountered row wins.
func laterPeriod(current, candidate *domain.FlattenedRow) bool {
	curYear, curMonth := current.PeriodKey()
	candYear, candMonth := candidate.PeriodKey()

	if curYear != candYear {
		return curYear > candYear
	}
	return curMonth > candMonth
}
