package validation

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const crossDoc = `<?xml version="1.0" encoding="UTF-8"?>
<credres xmlns="urn:credit:response">
  <crdeal dlref="DL001" dlamt="150000.50">
    <deallife dlref="DL001" dlyear="2023" dlmonth="5" dlamtexp="4500.25" dldayexp="45"/>
    <deallife dlref="DL001" dlyear="2023" dlmonth="6" dldff="2023-06-20" dlamtexp="100" dldayexp="10"/>
  </crdeal>
  <crdeal dlref="DL002" dlamt="5000"/>
  <crdeal dlref="DL003">
    <deallife dlref="DL003" dlyear="" dlmonth="null" dlamtexp="250.50" dldayexp="45.5"/>
  </crdeal>
</credres>`

func TestReadSourceTotals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_9.xml")
	require.NoError(t, os.WriteFile(path, []byte(crossDoc), 0644))

	totals, err := readSourceTotals(path)

	require.NoError(t, err)
	assert.Equal(t, "client_9", totals.ClientID)
	assert.Equal(t, 3, totals.Deals, "deals without history still count")
	assert.True(t, decimal.RequireFromString("250.5").Equal(totals.Expired30Plus),
		"expired %s", totals.Expired30Plus)
}

func TestReadSourceTotals_LatestEntryWins(t *testing.T) {
	tests := []struct {
		name        string
		history     string
		wantExpired string
	}{
		{
			name: "later month decides",
			history: `<deallife dlyear="2023" dlmonth="5" dlamtexp="999" dldayexp="45"/>` +
				`<deallife dlyear="2023" dlmonth="6" dlamtexp="5" dldayexp="10"/>`,
			wantExpired: "0",
		},
		{
			name: "later year outranks document order",
			history: `<deallife dlyear="2024" dlmonth="1" dlamtexp="777" dldayexp="45"/>` +
				`<deallife dlyear="2023" dlmonth="12" dlamtexp="5" dldayexp="60"/>`,
			wantExpired: "777",
		},
		{
			name: "equal period keeps last entry",
			history: `<deallife dlyear="2023" dlmonth="5" dlamtexp="999" dldayexp="45"/>` +
				`<deallife dlyear="2023" dlmonth="5" dlamtexp="111" dldayexp="60"/>`,
			wantExpired: "111",
		},
		{
			name:        "threshold is strictly above thirty days",
			history:     `<deallife dlyear="2023" dlmonth="5" dlamtexp="999" dldayexp="30"/>`,
			wantExpired: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<credres><crdeal dlref="DL001">` + tt.history + `</crdeal></credres>`
			path := filepath.Join(t.TempDir(), "client_1.xml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

			totals, err := readSourceTotals(path)

			require.NoError(t, err)
			assert.Equal(t, 1, totals.Deals)
			assert.True(t, decimal.RequireFromString(tt.wantExpired).Equal(totals.Expired30Plus),
				"expired %s, want %s", totals.Expired30Plus, tt.wantExpired)
		})
	}
}

func TestReadSourceTotals_OrphanHistoryIgnored(t *testing.T) {
	doc := `<credres>` +
		`<deallife dlyear="2023" dlmonth="5" dlamtexp="999" dldayexp="45"/>` +
		`<crdeal dlref="DL001"/>` +
		`</credres>`
	path := filepath.Join(t.TempDir(), "client_1.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	totals, err := readSourceTotals(path)

	require.NoError(t, err)
	assert.Equal(t, 1, totals.Deals)
	assert.True(t, totals.Expired30Plus.IsZero())
}

func TestReadSourceTotals_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<credres><crdeal dlref="DL001"`), 0644))

	_, err := readSourceTotals(path)

	assert.Error(t, err)
}

func TestListSourceDocuments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xml", "a.xml", "c.XML", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("<credres/>"), 0644))
	}

	paths, err := listSourceDocuments(dir)

	require.NoError(t, err)
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}
	assert.Equal(t, []string{"a.xml", "b.xml", "c.XML"}, names)
}

func TestCoerceInt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "plain integer", input: "45", want: 45},
		{name: "integral decimal notation", input: "45.0", want: 45},
		{name: "fractional coerces to zero", input: "45.7", want: 0},
		{name: "empty coerces to zero", input: "", want: 0},
		{name: "null text coerces to zero", input: "null", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coerceInt(tt.input))
		})
	}
}

func TestCoerceFloatAndDecimal(t *testing.T) {
	assert.Equal(t, 12.5, coerceFloat("12.5"))
	assert.Equal(t, float64(0), coerceFloat("garbage"))
	assert.True(t, math.IsNaN(coerceFloat("NaN")), "NaN text parses to NaN, which never exceeds a threshold")

	assert.True(t, decimal.RequireFromString("4500.25").Equal(coerceDecimal("4500.25")))
	assert.True(t, coerceDecimal("garbage").IsZero())
}
