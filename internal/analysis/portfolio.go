package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/stat"

	"riskcli/internal/config"
	"riskcli/internal/exporter"
	"riskcli/internal/infrastructure"
	"riskcli/internal/validation"
)

// Summary aggregates the portfolio-wide figures.
type Summary struct {
	TotalClients           int    `json:"total_clients"`
	TotalDeals             int    `json:"total_deals"`
	TotalHistoricalRecords int    `json:"total_historical_records"`
	UniqueDeals            int    `json:"unique_deals"`
	AnalysisDate           string `json:"analysis_date"`
}

// ClientMetric is one client's metrics as carried into the analysis report.
type ClientMetric struct {
	ClientID            string          `json:"client_id"`
	TotalLoansCount     int             `json:"total_loans_count"`
	ClosedLoansCount    int             `json:"closed_loans_count"`
	ClosedLoansRatio    decimal.Decimal `json:"closed_loans_ratio"`
	Expired30PlusAmount decimal.Decimal `json:"expired_30_plus_amount"`
}

// PortfolioSummary carries the portfolio statistics.
type PortfolioSummary struct {
	AverageLoansPerClient  float64         `json:"average_loans_per_client"`
	OverallClosureRate     float64         `json:"overall_closure_rate"`
	ClosureRateStdDev      float64         `json:"closure_rate_std_dev"`
	TotalExpiredDebt       decimal.Decimal `json:"total_expired_debt"`
	ClientsWithExpiredDebt int             `json:"clients_with_expired_debt"`
}

// DataQuality describes the analyzed record set.
type DataQuality struct {
	RecordsProcessed int    `json:"records_processed"`
	UniqueClients    int    `json:"unique_clients"`
	EarliestPeriod   string `json:"earliest_period,omitempty"`
	LatestPeriod     string `json:"latest_period,omitempty"`
}

// RiskClient is one entry of the top-risk list.
type RiskClient struct {
	ClientID            string          `json:"client_id"`
	Expired30PlusAmount decimal.Decimal `json:"expired_30_plus_amount"`
	ShareOfTotalPercent decimal.Decimal `json:"share_of_total_percent"`
}

// Report is the analysis report artifact.
type Report struct {
	Meta             exporter.ReportMeta `json:"meta"`
	AnalysisSummary  Summary             `json:"analysis_summary"`
	ClientMetrics    []ClientMetric      `json:"client_metrics"`
	PortfolioSummary PortfolioSummary    `json:"portfolio_summary"`
	DataQuality      DataQuality         `json:"data_quality"`
	TopRiskClients   []RiskClient        `json:"top_risk_clients"`
}

// KeyFindings renders the console form of the report.
func (r *Report) KeyFindings() string {
	var b strings.Builder
	fmt.Fprintf(&b, "portfolio analysis (%s)\n", r.AnalysisSummary.AnalysisDate)
	fmt.Fprintf(&b, "  clients:                   %d\n", r.AnalysisSummary.TotalClients)
	fmt.Fprintf(&b, "  deals:                     %d\n", r.AnalysisSummary.TotalDeals)
	fmt.Fprintf(&b, "  historical records:        %d\n", r.AnalysisSummary.TotalHistoricalRecords)
	fmt.Fprintf(&b, "  overall closure rate:      %.2f%%\n", r.PortfolioSummary.OverallClosureRate*100)
	fmt.Fprintf(&b, "  total expired debt (30+):  %s\n", r.PortfolioSummary.TotalExpiredDebt.StringFixed(2))
	fmt.Fprintf(&b, "  clients with expired debt: %d\n", r.PortfolioSummary.ClientsWithExpiredDebt)
	if r.DataQuality.EarliestPeriod != "" {
		fmt.Fprintf(&b, "  period range:              %s to %s\n",
			r.DataQuality.EarliestPeriod, r.DataQuality.LatestPeriod)
	}
	for i, rc := range r.TopRiskClients {
		fmt.Fprintf(&b, "  top risk %d: %s holds %s (%s%% of expired debt)\n",
			i+1, rc.ClientID, rc.Expired30PlusAmount.StringFixed(2), rc.ShareOfTotalPercent)
	}
	return b.String()
}

// Analyzer consumes the exported artifacts and produces the portfolio
// analysis report.
type Analyzer struct {
	cfg    *config.Config
	logger *slog.Logger
	tracer trace.Tracer
	reader *validation.ArtifactReader
	writer *exporter.JSONReportWriter
}

// NewAnalyzer creates an analyzer bound to the given configuration.
func NewAnalyzer(cfg *config.Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cfg:    cfg,
		logger: infrastructure.WithComponent(logger, "analysis"),
		tracer: otel.Tracer(infrastructure.MeterName),
		reader: validation.NewArtifactReader(logger),
		writer: exporter.NewJSONReportWriter(logger),
	}
}

// Run reads both CSV artifacts, builds the report and writes it to the
// configured analysis report path.
func (a *Analyzer) Run(ctx context.Context) (*Report, error) {
	ctx = infrastructure.EnsureRunID(ctx)
	ctx, span := a.tracer.Start(ctx, "analysis.run")
	defer span.End()

	metricsRows, err := a.reader.ReadMetricsCSV(a.cfg.MetricsCSVPath())
	if err != nil {
		return nil, err
	}
	detailed, err := a.reader.ReadDetailedCSV(a.cfg.DetailedCSVPath())
	if err != nil {
		return nil, err
	}

	report := a.build(ctx, metricsRows, detailed)
	if err := a.writer.WriteReport(ctx, report, a.cfg.AnalysisReportPath()); err != nil {
		return nil, err
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"analysis.clients": report.AnalysisSummary.TotalClients,
		"analysis.records": report.AnalysisSummary.TotalHistoricalRecords,
	})
	a.logger.InfoContext(ctx, "analysis completed",
		slog.Int("clients", report.AnalysisSummary.TotalClients),
		slog.Int("records", report.AnalysisSummary.TotalHistoricalRecords),
		slog.String("report", a.cfg.AnalysisReportPath()))
	return report, nil
}

func (a *Analyzer) build(ctx context.Context, metricsRows []validation.MetricsRow, detailed *validation.DetailedArtifact) *Report {
	clientMetrics := make([]ClientMetric, len(metricsRows))
	loans := make([]float64, len(metricsRows))
	ratios := make([]float64, len(metricsRows))
	totalDeals := 0
	totalExpired := decimal.Zero
	clientsWithExpired := 0

	for i, row := range metricsRows {
		clientMetrics[i] = ClientMetric{
			ClientID:            row.ClientID,
			TotalLoansCount:     row.TotalLoansCount,
			ClosedLoansCount:    row.ClosedLoansCount,
			ClosedLoansRatio:    row.ClosedLoansRatio,
			Expired30PlusAmount: row.Expired30PlusAmount,
		}
		loans[i] = float64(row.TotalLoansCount)
		ratios[i] = row.ClosedLoansRatio.InexactFloat64()
		totalDeals += row.TotalLoansCount
		totalExpired = totalExpired.Add(row.Expired30PlusAmount)
		if row.Expired30PlusAmount.IsPositive() {
			clientsWithExpired++
		}
	}

	uniqueClients := make(map[string]struct{})
	uniqueDeals := make(map[string]struct{})
	for i := range detailed.Rows {
		row := &detailed.Rows[i]
		uniqueClients[row.ClientID] = struct{}{}
		uniqueDeals[row.ClientID+"\x00"+row.DealID] = struct{}{}
	}

	report := &Report{
		Meta: exporter.NewReportMeta(infrastructure.GetRunID(ctx), "analysis_report_v1"),
		AnalysisSummary: Summary{
			TotalClients:           len(metricsRows),
			TotalDeals:             totalDeals,
			TotalHistoricalRecords: len(detailed.Rows),
			UniqueDeals:            len(uniqueDeals),
			AnalysisDate:           time.Now().Format("2006-01-02"),
		},
		ClientMetrics: clientMetrics,
		PortfolioSummary: PortfolioSummary{
			TotalExpiredDebt:       totalExpired,
			ClientsWithExpiredDebt: clientsWithExpired,
		},
		DataQuality: DataQuality{
			RecordsProcessed: len(detailed.Rows),
			UniqueClients:    len(uniqueClients),
		},
		TopRiskClients: topRiskClients(metricsRows, totalExpired),
	}

	// gonum's mean and sample standard deviation are NaN on empty and
	// single-element inputs; NaN does not survive JSON encoding.
	if len(metricsRows) > 0 {
		report.PortfolioSummary.AverageLoansPerClient = stat.Mean(loans, nil)
		report.PortfolioSummary.OverallClosureRate = stat.Mean(ratios, nil)
	}
	if len(metricsRows) > 1 {
		report.PortfolioSummary.ClosureRateStdDev = stat.StdDev(ratios, nil)
	}

	report.DataQuality.EarliestPeriod, report.DataQuality.LatestPeriod = periodRange(detailed.Rows)
	return report
}

// periodRange finds the earliest and latest (year, month) pair across rows
// where both parts are present, formatted as YYYY-MM.
func periodRange(rows []validation.DetailedRow) (earliest, latest string) {
	var haveAny bool
	var minYear, minMonth, maxYear, maxMonth int

	for i := range rows {
		row := &rows[i]
		if row.PeriodYear == nil || row.PeriodMonth == nil {
			continue
		}
		year, month := *row.PeriodYear, *row.PeriodMonth
		if !haveAny {
			minYear, minMonth = year, month
			maxYear, maxMonth = year, month
			haveAny = true
			continue
		}
		if year < minYear || (year == minYear && month < minMonth) {
			minYear, minMonth = year, month
		}
		if year > maxYear || (year == maxYear && month > maxMonth) {
			maxYear, maxMonth = year, month
		}
	}

	if !haveAny {
		return "", ""
	}
	return fmt.Sprintf("%04d-%02d", minYear, minMonth), fmt.Sprintf("%04d-%02d", maxYear, maxMonth)
}

// topRiskClients ranks clients by expired debt, keeping the top three with a
// positive amount. Ties break on client id so the ranking is deterministic.
func topRiskClients(metricsRows []validation.MetricsRow, totalExpired decimal.Decimal) []RiskClient {
	ranked := make([]validation.MetricsRow, 0, len(metricsRows))
	for _, row := range metricsRows {
		if row.Expired30PlusAmount.IsPositive() {
			ranked = append(ranked, row)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Expired30PlusAmount.Equal(ranked[j].Expired30PlusAmount) {
			return ranked[i].Expired30PlusAmount.GreaterThan(ranked[j].Expired30PlusAmount)
		}
		return ranked[i].ClientID < ranked[j].ClientID
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}

	hundred := decimal.NewFromInt(100)
	top := make([]RiskClient, len(ranked))
	for i, row := range ranked {
		share := decimal.Zero
		if totalExpired.IsPositive() {
			share = row.Expired30PlusAmount.Div(totalExpired).Mul(hundred).Round(2)
		}
		top[i] = RiskClient{
			ClientID:            row.ClientID,
			Expired30PlusAmount: row.Expired30PlusAmount,
			ShareOfTotalPercent: share,
		}
	}
	return top
}
