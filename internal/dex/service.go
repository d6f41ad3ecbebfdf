// internal/dex/service.go
package dex

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-launchpad/internal/metadata"
	"github.com/rovshanmuradov/solana-launchpad/internal/wallet"
)

// Service - единый интерфейс AMM-операций.
type Service interface {
	Mode() Mode
	Capabilities() Capabilities
	LaunchSale(ctx context.Context, req LaunchRequest) (*Result, error)
	CreatePool(ctx context.Context, req CreatePoolRequest) (*Result, error)
	AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*Result, error)
	RemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (*Result, error)
	Quote(ctx context.Context, req SwapRequest) (*Quote, error)
	Swap(ctx context.Context, req SwapRequest) (*Result, error)
	ListUserPools(ctx context.Context) ([]PoolInfo, error)
	HasPool(ctx context.Context, mint solana.PublicKey) (bool, error)
}

// Submitter отправляет транзакции от имени пользователя.
type Submitter interface {
	Payer() solana.PublicKey
	SendAndConfirm(ctx context.Context, kind string, instructions []solana.Instruction, extraSigners ...solana.PrivateKey) (*transaction.Result, error)
}

// AccountResolver вычисляет ATA кошелька-владельца.
type AccountResolver interface {
	GetATA(mint solana.PublicKey) (solana.PublicKey, error)
}

// Deps - зависимости реализации AMM.
type Deps struct {
	Tokens    blockchain.TokenReader
	Finder    metadata.Finder
	Submitter Submitter
	// Кэш ATA владельца; без него адрес вычисляется каждый раз.
	Accounts AccountResolver
	// Возможности подписанта, проверяются один раз здесь.
	Signer wallet.Capabilities
	Logger *zap.Logger
}

// ParseMode разбирает режим из конфигурации.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeSimulation, ModeLive:
		return m, nil
	case "":
		return ModeSimulation, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// New создаёт реализацию AMM для режима mode.
func New(mode Mode, deps Deps) (Service, error) {
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token reader cannot be nil")
	}
	if deps.Submitter == nil {
		return nil, fmt.Errorf("submitter cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if !deps.Signer.SignTransaction {
		return nil, ErrSignerUnsupported
	}

	switch mode {
	case ModeSimulation:
		return NewSimulator(deps), nil
	case ModeLive:
		// живой пул требует настоящего клиента протокола
		return nil, ErrLiveModeUnsupported
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
