// internal/portfolio/record.go
package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

// Source - путь, которым токен был обнаружен. На дедупликацию не влияет.
type Source int

const (
	SourceOwnedAccount Source = iota
	SourceAuthorityScan
	SourceManualLookup
)

func (s Source) String() string {
	switch s {
	case SourceOwnedAccount:
		return "OWNED_ACCOUNT"
	case SourceAuthorityScan:
		return "AUTHORITY_SCAN"
	case SourceManualLookup:
		return "MANUAL_LOOKUP"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// MarshalText пишет источник строкой в JSON.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	for _, candidate := range []Source{SourceOwnedAccount, SourceAuthorityScan, SourceManualLookup} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown token source %q", text)
}

// Phase - стадия цикла обнаружения.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetchingSources
	PhaseEnriching
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseFetchingSources:
		return "FETCHING_SOURCES"
	case PhaseEnriching:
		return "ENRICHING"
	case PhaseDone:
		return "DONE"
	case PhaseFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// TokenRecord - токен, известный текущему пользователю.
type TokenRecord struct {
	Mint          string          `json:"mint"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	URI           string          `json:"uri"`
	HasMetadata   bool            `json:"has_metadata"`
	Decimals      uint8           `json:"decimals"`
	Supply        string          `json:"supply"`
	Balance       decimal.Decimal `json:"balance"`
	Source        Source          `json:"source"`
	MintAuthority string          `json:"mint_authority,omitempty"`
	ProgramID     string          `json:"program_id"`
	DiscoveredAt  time.Time       `json:"discovered_at"`
}

// UIBalance - баланс в целых токенах.
func (r TokenRecord) UIBalance() string {
	return types.FormatAmount(r.Balance, r.Decimals)
}

// IsCreator сообщает, является ли owner mint authority токена.
func (r TokenRecord) IsCreator(owner string) bool {
	return r.MintAuthority != "" && r.MintAuthority == owner
}
