// internal/dex/simulator_test.go
package dex

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-launchpad/internal/metadata"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
	"github.com/rovshanmuradov/solana-launchpad/internal/wallet"
)

type fakeTokens struct {
	mints   map[solana.PublicKey]*blockchain.MintFacts
	owned   []blockchain.TokenAccount
	largest map[solana.PublicKey]int
}

func (f *fakeTokens) OwnedTokenAccounts(context.Context, solana.PublicKey, solana.PublicKey) ([]blockchain.TokenAccount, error) {
	return f.owned, nil
}

func (f *fakeTokens) TokenAccountsByMint(_ context.Context, _ solana.PublicKey, mint solana.PublicKey) ([]blockchain.TokenAccount, error) {
	var out []blockchain.TokenAccount
	for _, a := range f.owned {
		if a.Mint.Equals(mint) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeTokens) GetMintFacts(_ context.Context, mint solana.PublicKey) (*blockchain.MintFacts, error) {
	facts, ok := f.mints[mint]
	if !ok {
		return nil, blockchain.ErrAccountNotFound
	}
	return facts, nil
}

func (f *fakeTokens) CountLargestAccounts(_ context.Context, mint solana.PublicKey) (int, error) {
	n, ok := f.largest[mint]
	if !ok {
		return 0, errors.New("rpc error")
	}
	return n, nil
}

type fakeSubmitter struct {
	payer solana.PublicKey
	kinds []string
	ixs   [][]solana.Instruction
	err   error
}

func (f *fakeSubmitter) Payer() solana.PublicKey { return f.payer }

func (f *fakeSubmitter) SendAndConfirm(_ context.Context, kind string, ixs []solana.Instruction, _ ...solana.PrivateKey) (*transaction.Result, error) {
	f.kinds = append(f.kinds, kind)
	f.ixs = append(f.ixs, ixs)
	if f.err != nil {
		return nil, f.err
	}
	var sig solana.Signature
	sig[0] = byte(len(f.kinds))
	return &transaction.Result{Kind: kind, Signature: sig}, nil
}

type mapFinder map[solana.PublicKey]*metadata.Metadata

func (m mapFinder) Find(_ context.Context, mint solana.PublicKey) (*metadata.Metadata, error) {
	md, ok := m[mint]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	copied := *md
	return &copied, nil
}

type fixture struct {
	owner  solana.PublicKey
	mint   solana.PublicKey
	tokens *fakeTokens
	sub    *fakeSubmitter
	finder mapFinder
	sim    *Simulator
}

func newFixture(t *testing.T) *fixture {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	f := &fixture{
		owner: owner,
		mint:  mint,
		tokens: &fakeTokens{
			mints: map[solana.PublicKey]*blockchain.MintFacts{
				mint: {Mint: mint, Decimals: 6, Supply: 1_000_000_000_000, ProgramID: solana.TokenProgramID},
			},
			owned: []blockchain.TokenAccount{
				{Address: ata, Mint: mint, Owner: owner, Amount: 5_000_000, ProgramID: solana.TokenProgramID},
			},
			largest: map[solana.PublicKey]int{},
		},
		sub:    &fakeSubmitter{payer: owner},
		finder: mapFinder{mint: {Mint: mint, Name: "Launch", Symbol: "LCH"}},
	}
	svc, err := New(ModeSimulation, Deps{
		Tokens:    f.tokens,
		Finder:    f.finder,
		Submitter: f.sub,
		Signer:    wallet.Capabilities{SignTransaction: true},
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	f.sim = svc.(*Simulator)
	return f
}

func TestNewModes(t *testing.T) {
	deps := Deps{
		Tokens:    &fakeTokens{},
		Submitter: &fakeSubmitter{},
		Signer:    wallet.Capabilities{SignTransaction: true},
		Logger:    zaptest.NewLogger(t),
	}

	svc, err := New(ModeSimulation, deps)
	require.NoError(t, err)
	assert.Equal(t, ModeSimulation, svc.Mode())
	assert.True(t, svc.Capabilities().Simulated)
	assert.False(t, svc.Capabilities().ListPools)

	_, err = New(ModeLive, deps)
	assert.ErrorIs(t, err, ErrLiveModeUnsupported)

	_, err = New("other", deps)
	assert.ErrorIs(t, err, ErrUnknownMode)

	deps.Signer = wallet.Capabilities{}
	_, err = New(ModeSimulation, deps)
	assert.ErrorIs(t, err, ErrSignerUnsupported)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Simulation ")
	require.NoError(t, err)
	assert.Equal(t, ModeSimulation, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSimulation, m)

	_, err = ParseMode("mainnet")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestLaunchSale(t *testing.T) {
	f := newFixture(t)
	res, err := f.sim.LaunchSale(context.Background(), LaunchRequest{Mint: f.mint, Price: "0.01", TotalSupply: "1000"})
	require.NoError(t, err)
	assert.True(t, res.Simulated)
	assert.Equal(t, []string{"launch"}, f.sub.kinds)

	ixs := f.sub.ixs[0]
	require.Len(t, ixs, 2)
	assert.Equal(t, solana.ComputeBudget, ixs[0].ProgramID())
	assert.Equal(t, solana.SystemProgramID, ixs[1].ProgramID())
}

func TestLaunchSaleValidation(t *testing.T) {
	f := newFixture(t)
	cases := []LaunchRequest{
		{Mint: f.mint, Price: "", TotalSupply: "1"},
		{Mint: f.mint, Price: "-1", TotalSupply: "1"},
		{Mint: f.mint, Price: "1", TotalSupply: "1.5"},
		{Mint: solana.PublicKey{}, Price: "1", TotalSupply: "1"},
	}
	for _, req := range cases {
		_, err := f.sim.LaunchSale(context.Background(), req)
		assert.True(t, types.IsValidationError(err), "%+v", req)
	}

	_, err := f.sim.LaunchSale(context.Background(), LaunchRequest{Mint: solana.NewWallet().PublicKey(), Price: "1", TotalSupply: "1"})
	assert.ErrorIs(t, err, blockchain.ErrAccountNotFound)
	assert.Empty(t, f.sub.kinds)
}

func TestPoolLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.sim.CreatePool(ctx, CreatePoolRequest{Mint: f.mint, TokenAmount: "100", SOLAmount: "1", InitialPrice: "0.01"})
	require.NoError(t, err)
	assert.Equal(t, PoolID(f.mint), res.PoolID)
	assert.Len(t, res.PoolID, len("pool-")+8)

	_, err = f.sim.CreatePool(ctx, CreatePoolRequest{Mint: f.mint, TokenAmount: "100", SOLAmount: "1", InitialPrice: "0.01"})
	assert.True(t, types.IsValidationError(err))

	_, err = f.sim.AddLiquidity(ctx, AddLiquidityRequest{PoolID: res.PoolID, TokenAmount: "50", SOLAmount: "0.5"})
	require.NoError(t, err)

	_, err = f.sim.RemoveLiquidity(ctx, RemoveLiquidityRequest{PoolID: res.PoolID, Percentage: "50"})
	require.NoError(t, err)

	pools, err := f.sim.ListUserPools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "75", pools[0].Liquidity)
	assert.Equal(t, "0.75", pools[0].SOLReserve)
	assert.Equal(t, "0.01", pools[0].InitialPrice)
	assert.Equal(t, "LCH", pools[0].TokenSymbol)
	assert.True(t, pools[0].Simulated)

	has, err := f.sim.HasPool(ctx, f.mint)
	require.NoError(t, err)
	assert.True(t, has)

	assert.Equal(t, []string{"create-pool", "add-liquidity", "remove-liquidity"}, f.sub.kinds)
}

func TestAddLiquidityFollowsPoolRatio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.sim.CreatePool(ctx, CreatePoolRequest{Mint: f.mint, TokenAmount: "100", SOLAmount: "1", InitialPrice: "0.01"})
	require.NoError(t, err)

	// SOL ограничивает: 0.5 SOL берут только 50 токенов
	res, err := f.sim.AddLiquidity(ctx, AddLiquidityRequest{PoolID: created.PoolID, TokenAmount: "100", SOLAmount: "0.5"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("50").Equal(decimal.RequireFromString(res.TokenAmount)), res.TokenAmount)
	assert.True(t, decimal.RequireFromString("0.5").Equal(decimal.RequireFromString(res.SOLAmount)), res.SOLAmount)

	pools, err := f.sim.ListUserPools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "150", pools[0].Liquidity)
	assert.Equal(t, "1.5", pools[0].SOLReserve)

	// сумма меньше минимальной единицы токена после подгонки
	_, err = f.sim.AddLiquidity(ctx, AddLiquidityRequest{PoolID: created.PoolID, TokenAmount: "0.0000001", SOLAmount: "1"})
	assert.True(t, types.IsValidationError(err))
	assert.Equal(t, []string{"create-pool", "add-liquidity"}, f.sub.kinds)
}

func TestCreatePoolDefaultsPrice(t *testing.T) {
	f := newFixture(t)
	_, err := f.sim.CreatePool(context.Background(), CreatePoolRequest{Mint: f.mint, TokenAmount: "200", SOLAmount: "1"})
	require.NoError(t, err)

	pools, err := f.sim.ListUserPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "0.005", pools[0].InitialPrice)
}

// gatedSubmitter держит первую отправку до закрытия gate.
type gatedSubmitter struct {
	*fakeSubmitter
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedSubmitter) SendAndConfirm(ctx context.Context, kind string, ixs []solana.Instruction, extra ...solana.PrivateKey) (*transaction.Result, error) {
	g.entered <- struct{}{}
	<-g.gate
	return g.fakeSubmitter.SendAndConfirm(ctx, kind, ixs, extra...)
}

func TestCreatePoolConcurrentSameMint(t *testing.T) {
	f := newFixture(t)
	gated := &gatedSubmitter{fakeSubmitter: f.sub, entered: make(chan struct{}, 1), gate: make(chan struct{})}
	sim := NewSimulator(Deps{Tokens: f.tokens, Finder: f.finder, Submitter: gated, Logger: zaptest.NewLogger(t)})
	req := CreatePoolRequest{Mint: f.mint, TokenAmount: "100", SOLAmount: "1"}

	done := make(chan error, 1)
	go func() {
		_, err := sim.CreatePool(context.Background(), req)
		done <- err
	}()
	<-gated.entered

	_, err := sim.CreatePool(context.Background(), req)
	assert.True(t, types.IsValidationError(err))

	close(gated.gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"create-pool"}, f.sub.kinds)

	_, err = sim.CreatePool(context.Background(), req)
	assert.True(t, types.IsValidationError(err))
}

func TestCreatePoolReleasesIDOnSubmitFailure(t *testing.T) {
	f := newFixture(t)
	req := CreatePoolRequest{Mint: f.mint, TokenAmount: "100", SOLAmount: "1"}

	f.sub.err = errors.New("rpc down")
	_, err := f.sim.CreatePool(context.Background(), req)
	require.Error(t, err)

	f.sub.err = nil
	res, err := f.sim.CreatePool(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, PoolID(f.mint), res.PoolID)
}

func TestLiquidityValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sim.AddLiquidity(ctx, AddLiquidityRequest{PoolID: "", TokenAmount: "1", SOLAmount: "1"})
	assert.True(t, types.IsValidationError(err))

	_, err = f.sim.AddLiquidity(ctx, AddLiquidityRequest{PoolID: "pool-missing", TokenAmount: "1", SOLAmount: "1"})
	assert.ErrorIs(t, err, ErrPoolNotFound)

	res, err := f.sim.CreatePool(ctx, CreatePoolRequest{Mint: f.mint, TokenAmount: "1", SOLAmount: "1", InitialPrice: "1"})
	require.NoError(t, err)

	for _, pct := range []string{"0", "101", "x"} {
		_, err = f.sim.RemoveLiquidity(ctx, RemoveLiquidityRequest{PoolID: res.PoolID, Percentage: pct})
		assert.True(t, types.IsValidationError(err), pct)
	}
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	slip := types.SlippageConfig{Type: types.SlippagePercent, Value: 1}

	q, err := f.sim.Quote(context.Background(), SwapRequest{Mint: f.mint, Direction: TokenToSOL, Amount: "2", Price: "0.5", Slippage: slip})
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), q.AmountIn)
	assert.Equal(t, uint64(1_000_000_000), q.ExpectedOut)
	assert.Equal(t, uint64(990_000_000), q.MinOut)

	q, err = f.sim.Quote(context.Background(), SwapRequest{Mint: f.mint, Direction: SOLToToken, Amount: "1", Price: "0.25", Slippage: slip})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), q.AmountIn)
	assert.Equal(t, uint64(4_000_000), q.ExpectedOut)

	_, err = f.sim.Quote(context.Background(), SwapRequest{Mint: f.mint, Direction: "sideways", Amount: "1", Slippage: slip})
	assert.True(t, types.IsValidationError(err))
}

func TestQuoteRejectsOutputOverflow(t *testing.T) {
	f := newFixture(t)
	slip := types.SlippageConfig{Type: types.SlippagePercent, Value: 1}

	// 1 SOL по цене 1e-15 даёт 1e21 базовых единиц токена
	_, err := f.sim.Quote(context.Background(), SwapRequest{Mint: f.mint, Direction: SOLToToken, Amount: "1", Price: "0.000000000000001", Slippage: slip})
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))
	assert.Contains(t, err.Error(), "overflows u64")

	_, err = f.sim.Quote(context.Background(), SwapRequest{Mint: f.mint, Direction: TokenToSOL, Amount: "1", Price: "100000000000", Slippage: slip})
	assert.True(t, types.IsValidationError(err))

	_, err = f.sim.Swap(context.Background(), SwapRequest{Mint: f.mint, Direction: SOLToToken, Amount: "1", Price: "0.000000000000001", Slippage: slip})
	assert.True(t, types.IsValidationError(err))
	assert.Empty(t, f.sub.kinds)

	q, err := f.sim.Quote(context.Background(), SwapRequest{Mint: f.mint, Direction: SOLToToken, Amount: "1", Price: "0.0000001", Slippage: slip})
	require.NoError(t, err)
	assert.LessOrEqual(t, q.MinOut, q.ExpectedOut)
}

func TestSimulatedPriceRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := SimulatedPrice(solana.NewWallet().PublicKey())
		assert.True(t, p.GreaterThanOrEqual(decimal.RequireFromString("0.1")), p.String())
		assert.True(t, p.LessThan(decimal.RequireFromString("0.6")), p.String())
	}
	mint := solana.NewWallet().PublicKey()
	assert.True(t, SimulatedPrice(mint).Equal(SimulatedPrice(mint)))
}

func TestSwapTokenToSOL(t *testing.T) {
	f := newFixture(t)
	res, err := f.sim.Swap(context.Background(), SwapRequest{
		Mint: f.mint, Direction: TokenToSOL, Amount: "1.5",
		Slippage: types.SlippageConfig{Type: types.SlippageNone},
	})
	require.NoError(t, err)
	assert.True(t, res.Simulated)
	require.NotNil(t, res.Quote)

	ixs := f.sub.ixs[0]
	require.Len(t, ixs, 3)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	// SetComputeUnitLimit: discriminator 2 + u32 LE
	require.Len(t, data, 5)
	assert.Equal(t, byte(2), data[0])
	assert.Equal(t, uint32(ComputeUnitLimit), binary.LittleEndian.Uint32(data[1:]))

	data, err = ixs[1].Data()
	require.NoError(t, err)
	decoded, err := token.DecodeInstruction(ixs[1].Accounts(), data)
	require.NoError(t, err)
	transfer := decoded.Impl.(*token.Transfer)
	assert.Equal(t, uint64(1_500_000), *transfer.Amount)
}

type countingResolver struct {
	ata   solana.PublicKey
	calls int
}

func (c *countingResolver) GetATA(solana.PublicKey) (solana.PublicKey, error) {
	c.calls++
	return c.ata, nil
}

func TestSwapUsesOwnerAccountCache(t *testing.T) {
	f := newFixture(t)
	resolver := &countingResolver{ata: f.tokens.owned[0].Address}
	f.sim.accounts = resolver

	_, err := f.sim.Swap(context.Background(), SwapRequest{
		Mint: f.mint, Direction: TokenToSOL, Amount: "1",
		Slippage: types.SlippageConfig{Type: types.SlippageNone},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls)

	// кэш указывает на чужой аккаунт: баланс не найден
	resolver.ata = solana.NewWallet().PublicKey()
	_, err = f.sim.Swap(context.Background(), SwapRequest{
		Mint: f.mint, Direction: TokenToSOL, Amount: "1",
		Slippage: types.SlippageConfig{Type: types.SlippageNone},
	})
	assert.True(t, types.IsValidationError(err))
}

func TestSwapInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	_, err := f.sim.Swap(context.Background(), SwapRequest{
		Mint: f.mint, Direction: TokenToSOL, Amount: "6",
		Slippage: types.SlippageConfig{Type: types.SlippageNone},
	})
	assert.True(t, types.IsValidationError(err))
	assert.Empty(t, f.sub.kinds)
}

func TestSwapSOLToToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.sim.Swap(context.Background(), SwapRequest{
		Mint: f.mint, Direction: SOLToToken, Amount: "0.1",
		Slippage: types.SlippageConfig{Type: types.SlippagePercent, Value: 1},
	})
	require.NoError(t, err)
	assert.Len(t, f.sub.ixs[0], 2)
}

func TestSwapSubmitError(t *testing.T) {
	f := newFixture(t)
	f.sub.err = errors.New("blockhash expired")
	_, err := f.sim.Swap(context.Background(), SwapRequest{
		Mint: f.mint, Direction: SOLToToken, Amount: "0.1",
		Slippage: types.SlippageConfig{Type: types.SlippageNone},
	})
	assert.ErrorIs(t, err, f.sub.err)
}

func TestListUserPoolsLPHeuristic(t *testing.T) {
	f := newFixture(t)
	lp := solana.NewWallet().PublicKey()
	plain := solana.NewWallet().PublicKey()
	empty := solana.NewWallet().PublicKey()
	f.tokens.mints[lp] = &blockchain.MintFacts{Mint: lp, Decimals: 2}
	f.tokens.mints[plain] = &blockchain.MintFacts{Mint: plain, Decimals: 2}
	f.tokens.mints[empty] = &blockchain.MintFacts{Mint: empty, Decimals: 2}
	f.tokens.owned = append(f.tokens.owned,
		blockchain.TokenAccount{Mint: lp, Amount: 250},
		blockchain.TokenAccount{Mint: plain, Amount: 100},
		blockchain.TokenAccount{Mint: empty, Amount: 0},
	)
	f.finder[lp] = &metadata.Metadata{Name: "SOL-LCH Pool", Symbol: "LCHLP"}
	f.finder[plain] = &metadata.Metadata{Name: "Plain", Symbol: "PLN"}
	f.finder[empty] = &metadata.Metadata{Name: "Empty LP", Symbol: "ELP"}

	pools, err := f.sim.ListUserPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, PoolID(lp), pools[0].ID)
	assert.Equal(t, "2.5", pools[0].Liquidity)
	assert.False(t, pools[0].Simulated)

	// пул найден эвристикой, с ним можно работать
	_, err = f.sim.AddLiquidity(context.Background(), AddLiquidityRequest{PoolID: pools[0].ID, TokenAmount: "1", SOLAmount: "1"})
	assert.NoError(t, err)
}

func TestHasPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	usdc := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	has, err := f.sim.HasPool(ctx, usdc)
	require.NoError(t, err)
	assert.True(t, has)

	wide := solana.NewWallet().PublicKey()
	narrow := solana.NewWallet().PublicKey()
	f.tokens.largest[wide] = 4
	f.tokens.largest[narrow] = 3

	has, _ = f.sim.HasPool(ctx, wide)
	assert.True(t, has)
	has, _ = f.sim.HasPool(ctx, narrow)
	assert.False(t, has)

	// ошибка RPC трактуется как "пула нет"
	has, err = f.sim.HasPool(ctx, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestOptimalAddLiquidity(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		name               string
		a, b, poolA, poolB string
		wantA, wantB       string
	}{
		{"A limits", "10", "100", "1", "2", "10", "20"},
		{"B limits", "100", "10", "1", "2", "5", "10"},
		{"exact ratio", "10", "20", "1", "2", "10", "20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, err := OptimalAddLiquidity(d(tt.a), d(tt.b), d(tt.poolA), d(tt.poolB))
			require.NoError(t, err)
			assert.True(t, a.Equal(d(tt.wantA)), a.String())
			assert.True(t, b.Equal(d(tt.wantB)), b.String())
		})
	}

	_, _, err := OptimalAddLiquidity(d("1"), d("1"), d("0"), d("1"))
	assert.True(t, types.IsValidationError(err))
}
