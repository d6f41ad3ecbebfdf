// internal/types/slippage.go
package types

import (
	"github.com/shopspring/decimal"
)

// SlippageType определяет тип политики проскальзывания
type SlippageType string

const (
	// SlippagePercent использует процент от ожидаемого выхода
	SlippagePercent SlippageType = "percent"
	// SlippageNone не использует ограничение minAmountOut
	SlippageNone SlippageType = "none"
)

// DefaultSlippagePercent - значение по умолчанию для свопов.
const DefaultSlippagePercent = 1.0

// SlippageConfig конфигурирует политику проскальзывания
type SlippageConfig struct {
	Type  SlippageType `json:"type"`
	Value float64      `json:"value"` // 1.0 = 1%
}

// Validate проверяет диапазон процента.
func (c SlippageConfig) Validate() error {
	switch c.Type {
	case SlippageNone:
		return nil
	case SlippagePercent:
		if c.Value < 0 || c.Value >= 100 {
			return NewValidationError("slippage", "percent must be in [0, 100)")
		}
		return nil
	}
	return NewValidationError("slippage", "unknown type "+string(c.Type))
}

// MinAmountOut вычисляет минимальный выход с учётом проскальзывания
// (1% -> 99% от ожидаемого, округление вниз).
func MinAmountOut(expected decimal.Decimal, cfg SlippageConfig) decimal.Decimal {
	if cfg.Type != SlippagePercent {
		return decimal.NewFromInt(1)
	}
	multiplier := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(cfg.Value).Div(decimal.NewFromInt(100)))
	return expected.Mul(multiplier).Floor()
}
