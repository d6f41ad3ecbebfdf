// internal/types/amount.go
package types

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL - количество лампортов в одном SOL.
const LamportsPerSOL = 1_000_000_000

var maxUint64 = decimal.NewFromUint64(math.MaxUint64)

// ParseAmount переводит человекочитаемую сумму ("1.5") в базовые единицы
// токена с decimals знаками. Дробная часть длиннее decimals отклоняется.
func ParseAmount(field, raw string, decimals uint8) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, NewValidationError(field, "amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, NewValidationError(field, "not a number")
	}
	if !d.IsPositive() {
		return 0, NewValidationError(field, "must be positive")
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, NewValidationError(field, "too many decimal places")
	}
	if scaled.GreaterThan(maxUint64) {
		return 0, NewValidationError(field, "amount overflows u64")
	}
	return scaled.BigInt().Uint64(), nil
}

// ToBaseUnits умножает целое количество токенов на 10^decimals с проверкой переполнения.
func ToBaseUnits(whole uint64, decimals uint8) (uint64, error) {
	v := decimal.NewFromUint64(whole).Shift(int32(decimals))
	if v.GreaterThan(maxUint64) {
		return 0, NewValidationError("amount", "amount overflows u64")
	}
	return v.BigInt().Uint64(), nil
}

// CheckedUint64 отбрасывает дробную часть d и проверяет, что результат
// помещается в u64.
func CheckedUint64(field string, d decimal.Decimal) (uint64, error) {
	d = d.Floor()
	if d.IsNegative() {
		return 0, NewValidationError(field, "must not be negative")
	}
	if d.GreaterThan(maxUint64) {
		return 0, NewValidationError(field, "output overflows u64")
	}
	return d.BigInt().Uint64(), nil
}

// FormatAmount переводит базовые единицы в десятичную строку.
func FormatAmount(raw decimal.Decimal, decimals uint8) string {
	return raw.Shift(-int32(decimals)).String()
}

// SOLToLamports переводит SOL в лампорты.
func SOLToLamports(field, raw string) (uint64, error) {
	return ParseAmount(field, raw, 9)
}
