package dataprocessing

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "riskcli/internal/errors"
	"riskcli/internal/files"
	"riskcli/pkg/contracts/domain"
)

// Extractor reads client credit documents and produces ClientRecords.
// One document holds all deals of a single client; the client id is the
// document's base filename without extension.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a new document extractor
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractStats summarizes one extraction run over a source directory.
type ExtractStats struct {
	TotalFiles          int
	ProcessedClients    int
	ParseErrors         int
	TotalDeals          int
	TotalPeriods        int
	ClientsWithoutDeals []string
}

// ExtractFile parses a single source document into a ClientRecord.
// A document that cannot be opened or holds malformed markup yields a
// ClientRecord with zero deals alongside a PARSING error; partial content
// read before the failure is discarded.
func (e *Extractor) ExtractFile(path string) (*domain.ClientRecord, error) {
	rec := &domain.ClientRecord{
		ClientID:   files.ClientIDFromPath(path),
		SourceFile: filepath.Base(path),
	}

	f, err := os.Open(path)
	if err != nil {
		return rec, apperrors.NewParsingError("failed to open source document", err).
			WithContext("file", path)
	}
	defer f.Close()

	if err := e.parseDocument(f, rec); err != nil {
		rec.Deals = nil
		return rec, apperrors.NewParsingError("malformed source document", err).
			WithContext("file", path)
	}

	return rec, nil
}

// ExtractDirectory parses every XML document in dir, in file-name order.
// Documents that fail to parse are skipped and counted; the batch continues.
func (e *Extractor) ExtractDirectory(ctx context.Context, dir string) ([]domain.ClientRecord, ExtractStats, error) {
	discovery := files.NewDiscovery("")
	docs, err := discovery.FindSourceDocuments(dir)
	if err != nil {
		return nil, ExtractStats{}, apperrors.NewStorageError("failed to list source documents", err).
			WithContext("directory", dir)
	}

	stats := ExtractStats{TotalFiles: len(docs)}

	e.logger.InfoContext(ctx, "extracting source documents",
		slog.String("directory", dir),
		slog.Int("document_count", len(docs)))

	records := make([]domain.ClientRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := e.ExtractFile(doc.Path)
		if err != nil {
			stats.ParseErrors++
			e.logger.WarnContext(ctx, "skipping unparsable document",
				slog.String("file", doc.Name),
				slog.String("error", err.Error()))
			continue
		}

		stats.ProcessedClients++
		stats.TotalDeals += rec.DealCount()
		stats.TotalPeriods += rec.PeriodCount()
		if rec.DealCount() == 0 {
			stats.ClientsWithoutDeals = append(stats.ClientsWithoutDeals, rec.ClientID)
		}
		records = append(records, *rec)
	}

	e.logger.InfoContext(ctx, "extraction complete",
		slog.Int("documents", stats.TotalFiles),
		slog.Int("clients", stats.ProcessedClients),
		slog.Int("parse_errors", stats.ParseErrors),
		slog.Int("deals", stats.TotalDeals),
		slog.Int("periods", stats.TotalPeriods))

	return records, stats, nil
}

// parseDocument walks the XML token stream and collects deal and period
// blocks. Elements are matched by local name at any depth, so namespaced
// or wrapped documents parse the same as flat ones.
func (e *Extractor) parseDocument(r io.Reader, rec *domain.ClientRecord) error {
	decoder := xml.NewDecoder(r)

	var deals []*domain.DealRecord
	var current *domain.DealRecord

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "crdeal":
				deal := dealFromAttrs(t.Attr)
				deals = append(deals, &deal)
				current = &deal
			case "deallife":
				// Period blocks outside a deal block carry no deal context
				// and are dropped.
				if current != nil {
					current.History = append(current.History, periodFromAttrs(t.Attr))
				}
			}
		case xml.EndElement:
			if t.Name.Local == "crdeal" {
				current = nil
			}
		}
	}

	rec.Deals = make([]domain.DealRecord, len(deals))
	for i, d := range deals {
		rec.Deals[i] = *d
	}
	return nil
}

// dealFromAttrs maps a crdeal attribute list onto a DealRecord.
// Unrecognized attributes are ignored.
func dealFromAttrs(attrs []xml.Attr) domain.DealRecord {
	var d domain.DealRecord
	for _, a := range attrs {
		value := a.Value
		switch a.Name.Local {
		case "dlref":
			d.Ref = safeString(value)
		case "lng":
			d.Language = safeString(value)
		case "dlcelcred":
			d.TransactionType = safeString(value)
		case "dlvidobes":
			d.CollateralType = safeString(value)
		case "dlporpog":
			d.RedemptionPlan = safeString(value)
		case "dlcurr":
			d.Currency = safeString(value)
		case "dlamt":
			d.Amount = safeDecimal(value)
		case "dldonor":
			d.Provider = safeString(value)
		case "dldonornum":
			d.ProviderNumber = safeString(value)
		case "primarydebt":
			d.PrimaryDebt = safeString(value)
		case "dlrolesub":
			d.SubjectRole = safeString(value)
		case "dlamtobes":
			d.CollateralValue = safeDecimal(value)
		case "bdate":
			d.BirthDate = safeString(value)
		case "dlcelcredref":
			d.TransactionTypeRef = safeString(value)
		case "dlcurrref":
			d.CurrencyRef = safeString(value)
		case "dlporpogref":
			d.RedemptionPlanRef = safeString(value)
		case "dlrolesubref":
			d.SubjectRoleRef = safeString(value)
		case "dlvidobesref":
			d.CollateralTypeRef = safeString(value)
		case "lngref":
			d.LanguageRef = safeString(value)
		}
	}
	return d
}

// periodFromAttrs maps a deallife attribute list onto a PeriodRecord.
// Unrecognized attributes are ignored.
func periodFromAttrs(attrs []xml.Attr) domain.PeriodRecord {
	var p domain.PeriodRecord
	for _, a := range attrs {
		value := a.Value
		switch a.Name.Local {
		case "dlref":
			p.DealRef = safeString(value)
		case "dlmonth":
			p.Month = safeInt(value)
		case "dlyear":
			p.Year = safeInt(value)
		case "dlds":
			p.StartDate = safeString(value)
		case "dldpf":
			p.PlannedEndDate = safeString(value)
		case "dldff":
			p.ActualEndDate = safeString(value)
		case "dlflstat":
			p.Status = safeInt(value)
		case "dlflstatref":
			p.StatusRef = safeString(value)
		case "dlamtlim":
			p.CurrentLimit = safeDecimal(value)
		case "dlamtpaym":
			p.PlannedPayment = safeDecimal(value)
		case "dlamtcur":
			p.CurrentDebt = safeDecimal(value)
		case "dlamtexp":
			p.OverdueDebt = safeDecimal(value)
		case "dldayexp":
			p.DaysOverdue = safeInt(value)
		case "dlflpay":
			p.PaymentMade = safeInt(value)
		case "dlflpayref":
			p.PaymentMadeRef = safeString(value)
		case "dlflbrk":
			p.ArrearsPresent = safeInt(value)
		case "dlflbrkref":
			p.ArrearsPresentRef = safeString(value)
		case "dlfluse":
			p.TrancheUsed = safeInt(value)
		case "dlfluseref":
			p.TrancheUsedRef = safeString(value)
		case "dldateclc":
			p.CalculationDate = safeString(value)
		}
	}
	return p
}

// isNullText reports whether a raw attribute value is a null sentinel.
// Empty, whitespace-only and "nan" (any case) all mean "no value".
func isNullText(value string) bool {
	trimmed := strings.TrimSpace(value)
	return trimmed == "" || strings.EqualFold(trimmed, "nan")
}

// safeString returns the value verbatim, or nil for null sentinels.
func safeString(value string) *string {
	if isNullText(value) {
		return nil
	}
	return &value
}

// safeInt parses integer text, tolerating decimal notation with an integral
// value ("45.0" parses to 45). Fractional or non-numeric text yields nil,
// never an error.
func safeInt(value string) *int {
	trimmed := strings.TrimSpace(value)
	if isNullText(trimmed) {
		return nil
	}

	if n, err := strconv.Atoi(trimmed); err == nil {
		return &n
	}

	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	n := int(f)
	return &n
}

// safeDecimal parses decimal text, yielding nil for null sentinels and
// unparsable values.
func safeDecimal(value string) *decimal.Decimal {
	trimmed := strings.TrimSpace(value)
	if isNullText(trimmed) {
		return nil
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil
	}
	return &d
}
