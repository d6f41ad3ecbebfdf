// internal/types/validation.go
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Лимиты Metaplex для полей метаданных.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
	MaxDecimals     = 9
)

// ValidationError - ошибка входных данных. Проверяется до любых сетевых вызовов
// и никогда не повторяется.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError создаёт ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError проверяет тип ошибки по цепочке.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ParseAddress разбирает base58-адрес.
func ParseAddress(field, raw string) (solana.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return solana.PublicKey{}, NewValidationError(field, "address is required")
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, NewValidationError(field, "not a valid base58 address")
	}
	return pk, nil
}

// TokenInfo - пользовательские поля нового токена.
type TokenInfo struct {
	Name     string
	Symbol   string
	URI      string
	Decimals uint8
}

// Validate проверяет поля токена по лимитам Metaplex.
func (t TokenInfo) Validate() error {
	if err := ValidateMetadataFields(t.Name, t.Symbol, t.URI); err != nil {
		return err
	}
	if t.Decimals > MaxDecimals {
		return NewValidationError("decimals", fmt.Sprintf("must be between 0 and %d", MaxDecimals))
	}
	return nil
}

// ValidateMetadataFields проверяет name, symbol и uri.
func ValidateMetadataFields(name, symbol, uri string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return NewValidationError("name", "is required")
	case len(name) > MaxNameLength:
		return NewValidationError("name", fmt.Sprintf("longer than %d bytes", MaxNameLength))
	case strings.TrimSpace(symbol) == "":
		return NewValidationError("symbol", "is required")
	case len(symbol) > MaxSymbolLength:
		return NewValidationError("symbol", fmt.Sprintf("longer than %d bytes", MaxSymbolLength))
	case len(uri) > MaxURILength:
		return NewValidationError("uri", fmt.Sprintf("longer than %d bytes", MaxURILength))
	}
	return nil
}
