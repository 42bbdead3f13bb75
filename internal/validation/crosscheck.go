package validation

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SourceTotals is the minimal per-document reduction the cross-validation
// phase derives straight from a source document, bypassing the pipeline's
// extractor and flattener entirely.
type SourceTotals struct {
	ClientID string
	// Deals is the raw count of deal blocks, including deals without history
	Deals int
	// Expired30Plus sums overdue debt over deals whose latest history entry
	// reports more than 30 days overdue
	Expired30Plus decimal.Decimal
}

// crossDealState tracks the latest history entry seen for the current deal.
type crossDealState struct {
	sawHistory  bool
	year, month int
	daysOverdue float64
	overdueDebt decimal.Decimal
}

// listSourceDocuments returns the XML documents under dir, sorted by name.
// This deliberately does not share the pipeline's discovery code.
func listSourceDocuments(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, err
	}
	upper, err := filepath.Glob(filepath.Join(dir, "*.XML"))
	if err != nil {
		return nil, err
	}
	matches = append(matches, upper...)
	sort.Strings(matches)
	return matches, nil
}

// readSourceTotals re-reads one source document and reduces it to the two
// cross-checked figures. Null and unparsable numeric texts coerce to zero.
func readSourceTotals(path string) (SourceTotals, error) {
	totals := SourceTotals{
		ClientID:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Expired30Plus: decimal.Zero,
	}

	file, err := os.Open(path)
	if err != nil {
		return totals, err
	}
	defer file.Close()

	decoder := xml.NewDecoder(file)
	var current *crossDealState
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return totals, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "crdeal":
				totals.Deals++
				current = &crossDealState{}
			case "deallife":
				if current != nil {
					applyHistoryEntry(current, t.Attr)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "crdeal" && current != nil {
				if current.sawHistory && current.daysOverdue > 30 {
					totals.Expired30Plus = totals.Expired30Plus.Add(current.overdueDebt)
				}
				current = nil
			}
		}
	}

	return totals, nil
}

// applyHistoryEntry folds one history block into the deal state, keeping the
// entry with the maximum (year, month). Equal periods replace the held entry
// so the last-encountered block wins.
func applyHistoryEntry(state *crossDealState, attrs []xml.Attr) {
	var year, month int
	var days float64
	debt := decimal.Zero
	for _, a := range attrs {
		switch a.Name.Local {
		case "dlyear":
			year = coerceInt(a.Value)
		case "dlmonth":
			month = coerceInt(a.Value)
		case "dldayexp":
			days = coerceFloat(a.Value)
		case "dlamtexp":
			debt = coerceDecimal(a.Value)
		}
	}

	if state.sawHistory {
		if state.year > year || (state.year == year && state.month > month) {
			return
		}
	}
	state.sawHistory = true
	state.year = year
	state.month = month
	state.daysOverdue = days
	state.overdueDebt = debt
}

// coerceInt parses an integer with null-to-zero coercion.
func coerceInt(s string) int {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == float64(int64(f)) {
		return int(f)
	}
	return 0
}

// coerceFloat parses a float with null-to-zero coercion.
func coerceFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// coerceDecimal parses a decimal with null-to-zero coercion.
func coerceDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
