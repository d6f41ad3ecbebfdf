// internal/export/export_test.go
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/portfolio"
)

const testOwner = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func generateTestTokens() []portfolio.TokenRecord {
	return []portfolio.TokenRecord{
		{
			Mint:          "Mint1111111111111111111111111111111111111111",
			Name:          "Zeta",
			Symbol:        "ZET",
			HasMetadata:   true,
			Decimals:      6,
			Supply:        "1000000000000",
			Balance:       decimal.NewFromInt(1_500_000),
			Source:        portfolio.SourceOwnedAccount,
			MintAuthority: testOwner,
		},
		{
			Mint:     "Mint2222222222222222222222222222222222222222",
			Name:     "Alpha",
			Symbol:   "ALP",
			Decimals: 9,
			Supply:   "5",
			Balance:  decimal.Zero,
			Source:   portfolio.SourceAuthorityScan,
		},
		{
			Mint:     "Mint3333333333333333333333333333333333333333",
			Name:     "Beta",
			Symbol:   "BET",
			Decimals: 0,
			Supply:   "10",
			Balance:  decimal.NewFromInt(3),
			Source:   portfolio.SourceManualLookup,
		},
	}
}

func newTestExporter() *TokenExporter {
	te := NewTokenExporter(zap.NewNop())
	te.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return te
}

func TestTokenExportCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := newTestExporter().Write(&buf, generateTestTokens(), Options{Format: FormatCSV, Owner: testOwner})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, CSVHeaders(), rows[0])

	// сортировка по символу
	assert.Equal(t, "ALP", rows[1][2])
	assert.Equal(t, "BET", rows[2][2])
	assert.Equal(t, "ZET", rows[3][2])
	assert.Equal(t, "1.5", rows[3][4])
	assert.Equal(t, "true", rows[3][7])
	assert.Equal(t, "OWNED_ACCOUNT", rows[3][6])
	assert.Equal(t, "true", rows[3][9])
	assert.Equal(t, "false", rows[1][9])
}

func TestTokenExportJSON(t *testing.T) {
	var buf bytes.Buffer
	_, err := newTestExporter().Write(&buf, generateTestTokens(), Options{Format: FormatJSON, Owner: testOwner})
	require.NoError(t, err)

	var out struct {
		Owner   string                  `json:"owner"`
		Tokens  []portfolio.TokenRecord `json:"tokens"`
		Summary Summary                 `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, testOwner, out.Owner)
	assert.Len(t, out.Tokens, 3)
	assert.Equal(t, 3, out.Summary.TotalTokens)
	assert.Equal(t, 1, out.Summary.CreatedTokens)
	assert.Equal(t, 1, out.Summary.BySource["AUTHORITY_SCAN"])
}

func TestTokenExportFilters(t *testing.T) {
	tests := []struct {
		name    string
		options Options
		want    []string
	}{
		{"created only", Options{Format: FormatCSV, Owner: testOwner, CreatedOnly: true}, []string{"ZET"}},
		{"non-zero only", Options{Format: FormatCSV, NonZeroOnly: true}, []string{"BET", "ZET"}},
		{"no filters", Options{Format: FormatCSV}, []string{"ALP", "BET", "ZET"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := newTestExporter().Write(&buf, generateTestTokens(), tt.options)
			require.NoError(t, err)

			rows, err := csv.NewReader(&buf).ReadAll()
			require.NoError(t, err)
			var symbols []string
			for _, row := range rows[1:] {
				symbols = append(symbols, row[2])
			}
			assert.Equal(t, tt.want, symbols)
		})
	}
}

func TestExportTokensWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := newTestExporter().ExportTokens(generateTestTokens(), Options{Format: FormatCSV, OutputDir: dir, CreatedOnly: true, Owner: testOwner})
	require.NoError(t, err)

	assert.Equal(t, "tokens_created_20260102_030405.csv", filepath.Base(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	if info.Size() == 0 {
		t.Error("Export file is empty")
	}
}

func TestExportEmptyJSONHasTokensArray(t *testing.T) {
	var buf bytes.Buffer
	_, err := newTestExporter().Write(&buf, nil, Options{})
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), `"tokens": []`))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)

	_, err = newTestExporter().Write(&bytes.Buffer{}, nil, Options{Format: "xml"})
	assert.Error(t, err)
}
