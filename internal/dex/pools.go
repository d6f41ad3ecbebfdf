// internal/dex/pools.go
package dex

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/metadata"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

// Порог крупнейших держателей, после которого считаем, что пул есть.
const poolHolderThreshold = 3

// PoolID строит идентификатор пула из первых 8 символов адреса.
func PoolID(mint solana.PublicKey) string {
	s := mint.String()
	return poolIDPrefix + s[:min(8, len(s))]
}

// ListUserPools возвращает пулы, созданные в этой сессии, и LP-токены
// кошелька: ненулевые аккаунты, в имени или символе которых есть "LP"
// или "Pool".
func (s *Simulator) ListUserPools(ctx context.Context) ([]PoolInfo, error) {
	s.mu.RLock()
	pools := make([]PoolInfo, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, *p)
	}
	s.mu.RUnlock()
	slices.SortFunc(pools, func(a, b PoolInfo) int { return a.CreatedAt.Compare(b.CreatedAt) })

	if s.finder == nil {
		return pools, nil
	}

	owner := s.submitter.Payer()
	accounts, err := s.tokens.OwnedTokenAccounts(ctx, owner, solana.TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("list token accounts: %w", err)
	}

	known := make(map[string]struct{}, len(pools))
	for _, p := range pools {
		known[p.ID] = struct{}{}
	}
	for _, acc := range accounts {
		if acc.Amount == 0 {
			continue
		}
		id := PoolID(acc.Mint)
		if _, ok := known[id]; ok {
			continue
		}
		md, err := s.finder.Find(ctx, acc.Mint)
		if err != nil {
			s.logger.Debug("Could not fetch metadata for potential LP token",
				zap.String("mint", acc.Mint.String()),
				zap.Error(err))
			continue
		}
		if !looksLikeLP(md) {
			continue
		}
		liquidity := acc.Amount
		facts, err := s.tokens.GetMintFacts(ctx, acc.Mint)
		if err != nil {
			continue
		}
		known[id] = struct{}{}
		pools = append(pools, PoolInfo{
			ID:          id,
			TokenMint:   acc.Mint.String(),
			TokenSymbol: md.Symbol,
			TokenName:   md.Name,
			LPMint:      acc.Mint.String(),
			Liquidity:   types.FormatAmount(decimal.NewFromUint64(liquidity), facts.Decimals),
			Simulated:   false,
		})
	}
	return pools, nil
}

func looksLikeLP(md *metadata.Metadata) bool {
	return strings.Contains(md.Name, "LP") ||
		strings.Contains(md.Symbol, "LP") ||
		strings.Contains(md.Name, "Pool")
}

// HasPool - эвристика: известные токены всегда торгуются, остальные -
// если у mint больше трёх крупных держателей.
func (s *Simulator) HasPool(ctx context.Context, mint solana.PublicKey) (bool, error) {
	if metadata.IsKnownToken(mint) {
		return true, nil
	}
	s.mu.RLock()
	_, ok := s.pools[PoolID(mint)]
	s.mu.RUnlock()
	if ok {
		return true, nil
	}

	n, err := s.tokens.CountLargestAccounts(ctx, mint)
	if err != nil {
		s.logger.Warn("Error checking token accounts", zap.String("mint", mint.String()), zap.Error(err))
		return false, nil
	}
	return n > poolHolderThreshold, nil
}

func (s *Simulator) findPool(ctx context.Context, id string) (*PoolInfo, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, types.NewValidationError("pool_id", "is required")
	}
	if !strings.HasPrefix(id, poolIDPrefix) {
		return nil, types.NewValidationError("pool_id", "malformed pool id")
	}

	s.mu.RLock()
	p, ok := s.pools[id]
	s.mu.RUnlock()
	if ok {
		copied := *p
		return &copied, nil
	}

	pools, err := s.ListUserPools(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pools {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
}

// updateReserves меняет резервы пула из этой сессии.
func (s *Simulator) updateReserves(id string, fn func(tokens, sol decimal.Decimal) (decimal.Decimal, decimal.Decimal)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[id]
	if !ok {
		return
	}
	tokens, err := decimal.NewFromString(p.Liquidity)
	if err != nil {
		tokens = decimal.Zero
	}
	sol, err := decimal.NewFromString(p.SOLReserve)
	if err != nil {
		sol = decimal.Zero
	}
	tokens, sol = fn(tokens, sol)
	p.Liquidity = tokens.String()
	p.SOLReserve = sol.String()
}

// reserve занимает id пула до подтверждения транзакции создания, чтобы
// параллельный CreatePool для того же mint не отправил вторую.
func (s *Simulator) reserve(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[id]; ok {
		return types.NewValidationError("mint", "pool already exists")
	}
	if _, ok := s.pending[id]; ok {
		return types.NewValidationError("mint", "pool creation already in progress")
	}
	s.pending[id] = struct{}{}
	return nil
}

func (s *Simulator) release(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Simulator) initialPrice(req CreatePoolRequest) (decimal.Decimal, error) {
	if strings.TrimSpace(req.InitialPrice) != "" {
		return positiveDecimal("initial_price", req.InitialPrice)
	}
	tokens, err := positiveDecimal("token_amount", req.TokenAmount)
	if err != nil {
		return decimal.Zero, err
	}
	sol, err := positiveDecimal("sol_amount", req.SOLAmount)
	if err != nil {
		return decimal.Zero, err
	}
	return sol.DivRound(tokens, 9), nil
}

// OptimalAddLiquidity подбирает суммы под соотношение пула: ограничивающий
// актив вносится полностью, второй - пропорционально.
func OptimalAddLiquidity(amountA, amountB, poolA, poolB decimal.Decimal) (optA, optB decimal.Decimal, err error) {
	if !poolA.IsPositive() || !poolB.IsPositive() {
		return decimal.Zero, decimal.Zero, types.NewValidationError("pool_ratio", "pool reserves must be positive")
	}
	if amountA.IsNegative() || amountB.IsNegative() {
		return decimal.Zero, decimal.Zero, types.NewValidationError("amount", "must not be negative")
	}
	ratioA := amountA.Div(poolA)
	ratioB := amountB.Div(poolB)
	if ratioA.LessThan(ratioB) {
		return amountA, amountA.Mul(poolB).Div(poolA), nil
	}
	return amountB.Mul(poolA).Div(poolB), amountB, nil
}
