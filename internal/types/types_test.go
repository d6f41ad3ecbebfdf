// internal/types/types_test.go
package types

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals uint8
		want     uint64
		wantErr  string
	}{
		{"whole tokens", "5", 9, 5_000_000_000, ""},
		{"fraction", "1.5", 6, 1_500_000, ""},
		{"smallest unit", "0.000001", 6, 1, ""},
		{"trimmed", "  2 ", 0, 2, ""},
		{"too precise", "0.0000001", 6, 0, "too many decimal places"},
		{"zero", "0", 6, 0, "must be positive"},
		{"negative", "-1", 6, 0, "must be positive"},
		{"not a number", "abc", 6, 0, "not a number"},
		{"empty", "", 6, 0, "amount is required"},
		{"overflow", "18446744073709551616", 0, 0, "overflows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount("amount", tt.raw, tt.decimals)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToBaseUnits(t *testing.T) {
	v, err := ToBaseUnits(1_000_000, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000_000_000), v)

	_, err = ToBaseUnits(1_000_000, 14)
	assert.True(t, IsValidationError(err))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5", FormatAmount(decimal.NewFromInt(1_500_000), 6))
	assert.Equal(t, "0", FormatAmount(decimal.Zero, 9))
}

func TestParseAddress(t *testing.T) {
	pk := solana.NewWallet().PublicKey()

	got, err := ParseAddress("mint", " "+pk.String()+" ")
	require.NoError(t, err)
	assert.Equal(t, pk, got)

	_, err = ParseAddress("mint", "not-an-address")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "mint", ve.Field)

	_, err = ParseAddress("mint", "")
	assert.True(t, IsValidationError(err))
}

func TestTokenInfoValidate(t *testing.T) {
	ok := TokenInfo{Name: "Launch Token", Symbol: "LCH", URI: "https://example.com/meta.json", Decimals: 9}
	assert.NoError(t, ok.Validate())

	tests := []struct {
		name  string
		info  TokenInfo
		field string
	}{
		{"empty name", TokenInfo{Symbol: "X"}, "name"},
		{"long name", TokenInfo{Name: "0123456789012345678901234567890123", Symbol: "X"}, "name"},
		{"empty symbol", TokenInfo{Name: "X"}, "symbol"},
		{"long symbol", TokenInfo{Name: "X", Symbol: "ABCDEFGHIJK"}, "symbol"},
		{"decimals", TokenInfo{Name: "X", Symbol: "X", Decimals: 10}, "decimals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			require.ErrorAs(t, tt.info.Validate(), &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestMinAmountOut(t *testing.T) {
	expected := decimal.NewFromInt(1000)
	assert.True(t, decimal.NewFromInt(990).Equal(MinAmountOut(expected, SlippageConfig{Type: SlippagePercent, Value: 1})))
	assert.True(t, decimal.NewFromInt(1).Equal(MinAmountOut(expected, SlippageConfig{Type: SlippageNone})))

	assert.NoError(t, SlippageConfig{Type: SlippagePercent, Value: 0.5}.Validate())
	assert.Error(t, SlippageConfig{Type: SlippagePercent, Value: 100}.Validate())
	assert.Error(t, SlippageConfig{Type: "fixed"}.Validate())
}
