// internal/dex/types.go
package dex

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

var (
	ErrLiveModeUnsupported = errors.New("live AMM mode is not supported, use simulation")
	ErrUnknownMode         = errors.New("unknown AMM mode")
	ErrSignerUnsupported   = errors.New("signer cannot sign transactions")
	ErrPoolNotFound        = errors.New("pool not found")
)

// Mode выбирает реализацию AMM.
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeLive       Mode = "live"
)

// OperationType - вид операции, он же kind транзакции в метриках.
type OperationType string

const (
	OperationLaunch          OperationType = "launch"
	OperationCreatePool      OperationType = "create-pool"
	OperationAddLiquidity    OperationType = "add-liquidity"
	OperationRemoveLiquidity OperationType = "remove-liquidity"
	OperationSwap            OperationType = "swap"
)

// SwapDirection - направление свопа.
type SwapDirection string

const (
	TokenToSOL SwapDirection = "token_to_sol"
	SOLToToken SwapDirection = "sol_to_token"
)

// Capabilities - явный контракт реализации, проверяется при создании.
type Capabilities struct {
	Simulated       bool `json:"simulated"`
	LaunchSale      bool `json:"launch_sale"`
	CreatePool      bool `json:"create_pool"`
	AddLiquidity    bool `json:"add_liquidity"`
	RemoveLiquidity bool `json:"remove_liquidity"`
	Swap            bool `json:"swap"`
	ListPools       bool `json:"list_pools"`
}

// LaunchRequest - запуск продажи токена. Price в SOL за токен.
type LaunchRequest struct {
	Mint        solana.PublicKey
	Price       string
	TotalSupply string
}

// CreatePoolRequest - новый пул токен/SOL. Пустой InitialPrice
// выводится из соотношения SOLAmount / TokenAmount.
type CreatePoolRequest struct {
	Mint         solana.PublicKey
	TokenAmount  string
	SOLAmount    string
	InitialPrice string
}

// AddLiquidityRequest - добавление ликвидности в пул.
type AddLiquidityRequest struct {
	PoolID      string
	TokenAmount string
	SOLAmount   string
}

// RemoveLiquidityRequest - вывод Percentage процентов ликвидности (0, 100].
type RemoveLiquidityRequest struct {
	PoolID     string
	Percentage string
}

// SwapRequest - своп токена. Amount задаётся во входной валюте.
// Пустой Price означает симулированную цену.
type SwapRequest struct {
	Mint      solana.PublicKey
	Direction SwapDirection
	Amount    string
	Price     string
	Slippage  types.SlippageConfig
}

// Quote - расчёт свопа в базовых единицах выходной валюты.
type Quote struct {
	Direction   SwapDirection `json:"direction"`
	Price       string        `json:"price"`
	AmountIn    uint64        `json:"amount_in"`
	ExpectedOut uint64        `json:"expected_out"`
	MinOut      uint64        `json:"min_out"`
}

// Result - итог операции AMM.
type Result struct {
	Operation OperationType    `json:"operation"`
	Signature solana.Signature `json:"signature"`
	PoolID    string           `json:"pool_id,omitempty"`
	Quote     *Quote           `json:"quote,omitempty"`
	// Фактически внесённые суммы при добавлении ликвидности.
	TokenAmount string `json:"token_amount,omitempty"`
	SOLAmount   string `json:"sol_amount,omitempty"`
	Simulated bool             `json:"simulated"`
}

// PoolInfo - пул пользователя. Liquidity - резерв токенов, SOLReserve
// ведётся только для пулов этой сессии.
type PoolInfo struct {
	ID           string    `json:"id"`
	TokenMint    string    `json:"token_mint"`
	TokenSymbol  string    `json:"token_symbol"`
	TokenName    string    `json:"token_name"`
	LPMint       string    `json:"lp_mint"`
	Liquidity    string    `json:"liquidity"`
	SOLReserve   string    `json:"sol_reserve,omitempty"`
	InitialPrice string    `json:"initial_price,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Simulated    bool      `json:"simulated"`

	decimals uint8
}

// PoolCheck - ответ на вопрос, торгуется ли mint.
type PoolCheck struct {
	Mint    string `json:"mint"`
	HasPool bool   `json:"has_pool"`
}
