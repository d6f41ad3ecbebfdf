// internal/dex/simulator.go
package dex

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
	"github.com/rovshanmuradov/solana-launchpad/internal/metadata"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

const (
	ComputeUnitLimit = 300_000
	// Перевод самому себе, изображающий операцию пула.
	PlaceholderLamports = types.LamportsPerSOL / 1000
	// Перевод самому себе, изображающий получение SOL при свопе.
	SwapPlaceholderLamports = 100_000
	poolIDPrefix            = "pool-"
)

var (
	simulatedPriceMin   = decimal.RequireFromString("0.1")
	simulatedPriceRange = decimal.RequireFromString("0.5")
	hundred             = decimal.NewFromInt(100)
)

// Simulator - AMM без настоящего протокола: каждая операция проверяет
// входные данные и отправляет перевод самому себе. Результаты помечены
// Simulated.
type Simulator struct {
	tokens    blockchain.TokenReader
	finder    metadata.Finder
	submitter Submitter
	accounts  AccountResolver
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	pools   map[string]*PoolInfo
	// пулы, транзакция создания которых ещё не подтверждена
	pending map[string]struct{}
}

func NewSimulator(deps Deps) *Simulator {
	return &Simulator{
		tokens:    deps.Tokens,
		finder:    deps.Finder,
		submitter: deps.Submitter,
		accounts:  deps.Accounts,
		logger:    deps.Logger.Named("amm-simulator"),
		now:       time.Now,
		pools:     make(map[string]*PoolInfo),
		pending:   make(map[string]struct{}),
	}
}

func (s *Simulator) Mode() Mode {
	return ModeSimulation
}

func (s *Simulator) Capabilities() Capabilities {
	return Capabilities{
		Simulated:       true,
		LaunchSale:      true,
		CreatePool:      true,
		AddLiquidity:    true,
		RemoveLiquidity: true,
		Swap:            true,
		ListPools:       s.finder != nil,
	}
}

// LaunchSale проверяет mint и параметры продажи.
func (s *Simulator) LaunchSale(ctx context.Context, req LaunchRequest) (*Result, error) {
	if _, err := positiveDecimal("price", req.Price); err != nil {
		return nil, err
	}
	supply, err := positiveDecimal("total_supply", req.TotalSupply)
	if err != nil {
		return nil, err
	}
	if !supply.IsInteger() {
		return nil, types.NewValidationError("total_supply", "must be a whole number")
	}
	if _, err := s.mintFacts(ctx, req.Mint); err != nil {
		return nil, err
	}

	sig, err := s.submit(ctx, OperationLaunch, s.placeholder(PlaceholderLamports))
	if err != nil {
		return nil, err
	}
	return &Result{Operation: OperationLaunch, Signature: sig, Simulated: true}, nil
}

// CreatePool регистрирует симулированный пул токен/SOL.
func (s *Simulator) CreatePool(ctx context.Context, req CreatePoolRequest) (*Result, error) {
	facts, err := s.mintFacts(ctx, req.Mint)
	if err != nil {
		return nil, err
	}
	if _, err := types.ParseAmount("token_amount", req.TokenAmount, facts.Decimals); err != nil {
		return nil, err
	}
	if _, err := types.SOLToLamports("sol_amount", req.SOLAmount); err != nil {
		return nil, err
	}
	price, err := s.initialPrice(req)
	if err != nil {
		return nil, err
	}

	id := PoolID(req.Mint)
	if err := s.reserve(id); err != nil {
		return nil, err
	}
	sig, err := s.submit(ctx, OperationCreatePool, s.placeholder(PlaceholderLamports))
	if err != nil {
		s.release(id)
		return nil, err
	}

	md := s.metadata(ctx, req.Mint)
	liquidity, _ := decimal.NewFromString(req.TokenAmount)
	reserve, _ := decimal.NewFromString(req.SOLAmount)
	s.mu.Lock()
	delete(s.pending, id)
	s.pools[id] = &PoolInfo{
		ID:           id,
		TokenMint:    req.Mint.String(),
		TokenSymbol:  md.Symbol,
		TokenName:    md.Name,
		LPMint:       req.Mint.String(),
		Liquidity:    liquidity.String(),
		SOLReserve:   reserve.String(),
		InitialPrice: price.String(),
		CreatedAt:    s.now(),
		Simulated:    true,
		decimals:     facts.Decimals,
	}
	s.mu.Unlock()

	s.logger.Info("Simulated pool created",
		zap.String("pool", id),
		zap.String("signature", sig.String()))
	return &Result{Operation: OperationCreatePool, Signature: sig, PoolID: id, Simulated: true}, nil
}

// AddLiquidity добавляет ликвидность в известный пул. Для пулов этой
// сессии суммы подгоняются под текущее соотношение резервов, в Result
// возвращаются фактически внесённые суммы.
func (s *Simulator) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*Result, error) {
	pool, err := s.findPool(ctx, req.PoolID)
	if err != nil {
		return nil, err
	}
	tokenAmount, err := positiveDecimal("token_amount", req.TokenAmount)
	if err != nil {
		return nil, err
	}
	if _, err := types.SOLToLamports("sol_amount", req.SOLAmount); err != nil {
		return nil, err
	}
	solAmount, _ := decimal.NewFromString(strings.TrimSpace(req.SOLAmount))

	if pool.Simulated {
		tokenAmount, solAmount, err = s.optimalAmounts(pool, tokenAmount, solAmount)
		if err != nil {
			return nil, err
		}
	}

	sig, err := s.submit(ctx, OperationAddLiquidity, s.placeholder(PlaceholderLamports))
	if err != nil {
		return nil, err
	}
	s.updateReserves(pool.ID, func(tokens, sol decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
		return tokens.Add(tokenAmount), sol.Add(solAmount)
	})
	return &Result{
		Operation:   OperationAddLiquidity,
		Signature:   sig,
		PoolID:      pool.ID,
		TokenAmount: tokenAmount.String(),
		SOLAmount:   solAmount.String(),
		Simulated:   true,
	}, nil
}

// optimalAmounts подгоняет суммы под резервы пула. SOL округляется
// вниз до лампорта, токены - до decimals mint-а.
func (s *Simulator) optimalAmounts(pool *PoolInfo, tokenAmount, solAmount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	reserveTokens, err := decimal.NewFromString(pool.Liquidity)
	if err != nil {
		return tokenAmount, solAmount, nil
	}
	reserveSOL, err := decimal.NewFromString(pool.SOLReserve)
	if err != nil || !reserveTokens.IsPositive() || !reserveSOL.IsPositive() {
		// пустой пул принимает суммы как есть
		return tokenAmount, solAmount, nil
	}
	optTokens, optSOL, err := OptimalAddLiquidity(tokenAmount, solAmount, reserveTokens, reserveSOL)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	optTokens = optTokens.RoundDown(int32(pool.decimals))
	optSOL = optSOL.RoundDown(9)
	if !optTokens.IsPositive() || !optSOL.IsPositive() {
		return decimal.Zero, decimal.Zero, types.NewValidationError("amount", "too small for the pool ratio")
	}
	s.logger.Debug("Liquidity adjusted to pool ratio",
		zap.String("pool", pool.ID),
		zap.String("tokens", optTokens.String()),
		zap.String("sol", optSOL.String()))
	return optTokens, optSOL, nil
}

// RemoveLiquidity выводит долю ликвидности из пула.
func (s *Simulator) RemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (*Result, error) {
	pool, err := s.findPool(ctx, req.PoolID)
	if err != nil {
		return nil, err
	}
	pct, err := positiveDecimal("percentage", req.Percentage)
	if err != nil {
		return nil, err
	}
	if pct.GreaterThan(hundred) {
		return nil, types.NewValidationError("percentage", "must not exceed 100")
	}

	sig, err := s.submit(ctx, OperationRemoveLiquidity, s.placeholder(PlaceholderLamports))
	if err != nil {
		return nil, err
	}
	s.updateReserves(pool.ID, func(tokens, sol decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
		keep := hundred.Sub(pct)
		return tokens.Mul(keep).Div(hundred), sol.Mul(keep).Div(hundred).RoundDown(9)
	})
	return &Result{Operation: OperationRemoveLiquidity, Signature: sig, PoolID: pool.ID, Simulated: true}, nil
}

// Quote рассчитывает ожидаемый и минимальный выход свопа.
func (s *Simulator) Quote(ctx context.Context, req SwapRequest) (*Quote, error) {
	facts, err := s.mintFacts(ctx, req.Mint)
	if err != nil {
		return nil, err
	}
	return s.quote(req, facts)
}

func (s *Simulator) quote(req SwapRequest, facts *blockchain.MintFacts) (*Quote, error) {
	if err := req.Slippage.Validate(); err != nil {
		return nil, err
	}
	price := SimulatedPrice(req.Mint)
	if strings.TrimSpace(req.Price) != "" {
		p, err := positiveDecimal("price", req.Price)
		if err != nil {
			return nil, err
		}
		price = p
	}

	q := &Quote{Direction: req.Direction, Price: price.String()}
	var expected decimal.Decimal
	switch req.Direction {
	case TokenToSOL:
		in, err := types.ParseAmount("amount", req.Amount, facts.Decimals)
		if err != nil {
			return nil, err
		}
		q.AmountIn = in
		expected = decimal.NewFromUint64(in).Shift(-int32(facts.Decimals)).Mul(price).Shift(9)
	case SOLToToken:
		in, err := types.SOLToLamports("amount", req.Amount)
		if err != nil {
			return nil, err
		}
		q.AmountIn = in
		expected = decimal.NewFromUint64(in).Shift(-9).Div(price).Shift(int32(facts.Decimals))
	default:
		return nil, types.NewValidationError("direction", fmt.Sprintf("unknown direction %q", req.Direction))
	}

	expected = expected.Floor()
	out, err := types.CheckedUint64("amount", expected)
	if err != nil {
		return nil, err
	}
	minOut, err := types.CheckedUint64("amount", types.MinAmountOut(expected, req.Slippage))
	if err != nil {
		return nil, err
	}
	q.ExpectedOut = out
	q.MinOut = minOut
	return q, nil
}

// Swap симулирует своп: токены переводятся на собственный аккаунт,
// SOL - самому себе.
func (s *Simulator) Swap(ctx context.Context, req SwapRequest) (*Result, error) {
	facts, err := s.mintFacts(ctx, req.Mint)
	if err != nil {
		return nil, err
	}
	q, err := s.quote(req, facts)
	if err != nil {
		return nil, err
	}

	owner := s.submitter.Payer()
	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(ComputeUnitLimit).Build(),
	}
	if req.Direction == TokenToSOL {
		if !facts.ProgramID.IsZero() && !facts.ProgramID.Equals(solana.TokenProgramID) {
			return nil, types.NewValidationError("mint", "only SPL Token program mints are supported")
		}
		source, err := s.sourceAccount(ctx, owner, req.Mint, q.AmountIn)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, token.NewTransferInstruction(q.AmountIn, source, source, owner, nil).Build())
	}
	ixs = append(ixs, system.NewTransferInstruction(SwapPlaceholderLamports, owner, owner).Build())

	sig, err := s.submit(ctx, OperationSwap, ixs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Simulated swap executed",
		zap.String("mint", req.Mint.String()),
		zap.String("direction", string(req.Direction)),
		zap.Uint64("amount_in", q.AmountIn),
		zap.Uint64("expected_out", q.ExpectedOut))
	return &Result{Operation: OperationSwap, Signature: sig, Quote: q, Simulated: true}, nil
}

// sourceAccount находит ATA владельца и проверяет баланс.
func (s *Simulator) sourceAccount(ctx context.Context, owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	ata, err := s.ownerATA(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token account: %w", err)
	}
	accounts, err := s.tokens.TokenAccountsByMint(ctx, owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("read token accounts: %w", err)
	}
	for _, acc := range accounts {
		if !acc.Address.Equals(ata) {
			continue
		}
		if acc.Amount < amount {
			return solana.PublicKey{}, types.NewValidationError("amount", "insufficient token balance")
		}
		return ata, nil
	}
	return solana.PublicKey{}, types.NewValidationError("mint", "wallet has no token account for this mint")
}

func (s *Simulator) ownerATA(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	if s.accounts != nil {
		return s.accounts.GetATA(mint)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return ata, err
}

func (s *Simulator) placeholder(lamports uint64) []solana.Instruction {
	owner := s.submitter.Payer()
	return []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(ComputeUnitLimit).Build(),
		system.NewTransferInstruction(lamports, owner, owner).Build(),
	}
}

func (s *Simulator) submit(ctx context.Context, op OperationType, ixs []solana.Instruction) (solana.Signature, error) {
	res, err := s.submitter.SendAndConfirm(ctx, string(op), ixs)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%s: %w", op, err)
	}
	return res.Signature, nil
}

func (s *Simulator) mintFacts(ctx context.Context, mint solana.PublicKey) (*blockchain.MintFacts, error) {
	if mint.IsZero() {
		return nil, types.NewValidationError("mint", "address is required")
	}
	facts, err := s.tokens.GetMintFacts(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("read mint %s: %w", mint, err)
	}
	return facts, nil
}

func (s *Simulator) metadata(ctx context.Context, mint solana.PublicKey) *metadata.Metadata {
	if s.finder == nil {
		return metadata.Fallback(mint)
	}
	md, err := s.finder.Find(ctx, mint)
	if err != nil {
		return metadata.Fallback(mint)
	}
	return md
}

// SimulatedPrice - детерминированная цена mint в SOL из [0.1, 0.6).
func SimulatedPrice(mint solana.PublicKey) decimal.Decimal {
	b := mint.Bytes()
	frac := decimal.NewFromUint64(uint64(binary.BigEndian.Uint32(b[:4]))).Div(decimal.NewFromUint64(1 << 32))
	return simulatedPriceMin.Add(frac.Mul(simulatedPriceRange)).Truncate(6)
}

func positiveDecimal(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, types.NewValidationError(field, "is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, types.NewValidationError(field, "not a number")
	}
	if !d.IsPositive() {
		return decimal.Zero, types.NewValidationError(field, "must be positive")
	}
	return d, nil
}
