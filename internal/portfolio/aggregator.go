// internal/portfolio/aggregator.go
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
	"github.com/rovshanmuradov/solana-launchpad/internal/metadata"
)

// Значения по умолчанию для цикла обнаружения.
const (
	DefaultSignatureLimit = 50
	DefaultTxBatchSize    = 10
	DefaultConcurrency    = 8
	DefaultRPS            = 10
)

// ErrSourcesUnavailable - оба источника недоступны, цикл провален.
var ErrSourcesUnavailable = errors.New("token discovery sources unavailable")

type Config struct {
	SignatureLimit int
	TxBatchSize    int
	Concurrency    int
	// RPS ограничивает частоту RPC-запросов обогащения; 0 - без ограничения.
	RPS float64
}

// DefaultConfig возвращает настройки цикла обнаружения по умолчанию.
func DefaultConfig() Config {
	return Config{
		SignatureLimit: DefaultSignatureLimit,
		TxBatchSize:    DefaultTxBatchSize,
		Concurrency:    DefaultConcurrency,
		RPS:            DefaultRPS,
	}
}

func (c Config) withDefaults() Config {
	if c.SignatureLimit <= 0 {
		c.SignatureLimit = DefaultSignatureLimit
	}
	if c.TxBatchSize <= 0 {
		c.TxBatchSize = DefaultTxBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// Observer получает итоги циклов и ошибки обогащения.
type Observer interface {
	RecordDiscovery(duration time.Duration, tokens int, err error)
	RecordEnrichmentFailure(stage string)
}

type nopObserver struct{}

func (nopObserver) RecordDiscovery(time.Duration, int, error) {}
func (nopObserver) RecordEnrichmentFailure(string)            {}

// Aggregator объединяет два источника токенов в один список без дублей.
type Aggregator struct {
	tokens   blockchain.TokenReader
	history  blockchain.HistoryReader
	finder   metadata.Finder
	cfg      Config
	limiter  *rate.Limiter
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

type AggregatorOption func(*Aggregator)

func WithObserver(o Observer) AggregatorOption {
	return func(a *Aggregator) {
		if o != nil {
			a.observer = o
		}
	}
}

func NewAggregator(
	tokens blockchain.TokenReader,
	history blockchain.HistoryReader,
	finder metadata.Finder,
	cfg Config,
	logger *zap.Logger,
	opts ...AggregatorOption,
) *Aggregator {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	a := &Aggregator{
		tokens:   tokens,
		history:  history,
		finder:   finder,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.Concurrency),
		observer: nopObserver{},
		logger:   logger.Named("aggregator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// candidate - mint, прошедший дедупликацию и ожидающий обогащения.
type candidate struct {
	mint    solana.PublicKey
	balance uint64
	source  Source
	// mint-факты, уже прочитанные сканированием authority
	facts *blockchain.MintFacts
}

// Discover выполняет полный цикл обнаружения для owner.
func (a *Aggregator) Discover(ctx context.Context, owner solana.PublicKey) ([]TokenRecord, error) {
	return a.DiscoverWithPhases(ctx, owner, nil)
}

// DiscoverWithPhases - Discover, сообщающий onPhase о смене стадии цикла.
func (a *Aggregator) DiscoverWithPhases(ctx context.Context, owner solana.PublicKey, onPhase func(Phase)) ([]TokenRecord, error) {
	setPhase := func(p Phase) {
		if onPhase != nil {
			onPhase(p)
		}
	}
	start := time.Now()
	log := a.logger.With(zap.String("owner", owner.String()))

	setPhase(PhaseFetchingSources)
	var owned []blockchain.TokenAccount
	var created []*blockchain.MintFacts
	var ownedErr, scanErr error
	var g errgroup.Group
	g.Go(func() error {
		owned, ownedErr = a.OwnedAccounts(ctx, owner)
		return nil
	})
	g.Go(func() error {
		created, scanErr = a.AuthorityMints(ctx, owner)
		return nil
	})
	_ = g.Wait()

	if ownedErr != nil && scanErr != nil {
		err := fmt.Errorf("%w: %w", ErrSourcesUnavailable, errors.Join(ownedErr, scanErr))
		log.Error("Token discovery failed", zap.Error(err))
		a.observer.RecordDiscovery(time.Since(start), 0, err)
		setPhase(PhaseFailed)
		return nil, err
	}
	if ownedErr != nil {
		log.Warn("Owned account scan failed, using authority scan only", zap.Error(ownedErr))
	}
	if scanErr != nil {
		log.Warn("Authority scan failed, using owned accounts only", zap.Error(scanErr))
	}

	setPhase(PhaseEnriching)
	plan := planCandidates(owned, created)
	records, err := a.enrich(ctx, plan)
	if err != nil {
		a.observer.RecordDiscovery(time.Since(start), 0, err)
		setPhase(PhaseFailed)
		return nil, err
	}

	a.observer.RecordDiscovery(time.Since(start), len(records), nil)
	log.Info("Token discovery completed",
		zap.Int("owned_accounts", len(owned)),
		zap.Int("created_mints", len(created)),
		zap.Int("tokens", len(records)),
		zap.Duration("duration", time.Since(start)))
	setPhase(PhaseDone)
	return records, nil
}

// planCandidates дедуплицирует mint-ы синхронно, до параллельного
// обогащения: сначала владеемые аккаунты, затем созданные mint-ы. Повторное
// появление mint отбрасывается без слияния полей.
func planCandidates(owned []blockchain.TokenAccount, created []*blockchain.MintFacts) []candidate {
	seen := make(map[solana.PublicKey]struct{}, len(owned)+len(created))
	plan := make([]candidate, 0, len(owned)+len(created))

	for _, acc := range owned {
		if _, ok := seen[acc.Mint]; ok {
			continue
		}
		seen[acc.Mint] = struct{}{}
		plan = append(plan, candidate{mint: acc.Mint, balance: acc.Amount, source: SourceOwnedAccount})
	}
	for _, facts := range created {
		if _, ok := seen[facts.Mint]; ok {
			continue
		}
		seen[facts.Mint] = struct{}{}
		plan = append(plan, candidate{mint: facts.Mint, source: SourceAuthorityScan, facts: facts})
	}
	return plan
}

// enrich обогащает кандидатов параллельно. Каждый результат пишется в свой
// слот, поэтому порядок совпадает с планом. Кандидаты без mint-фактов
// отбрасываются.
func (a *Aggregator) enrich(ctx context.Context, plan []candidate) ([]TokenRecord, error) {
	slots := make([]*TokenRecord, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, c := range plan {
		g.Go(func() error {
			rec, err := a.enrichOne(gctx, c)
			if err != nil {
				if ctxErr := context.Cause(gctx); ctxErr != nil {
					return ctxErr
				}
				a.logger.Warn("Dropping token, mint unreadable",
					zap.String("mint", c.mint.String()),
					zap.Error(err))
				a.observer.RecordEnrichmentFailure("mint")
				return nil
			}
			slots[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]TokenRecord, 0, len(plan))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (a *Aggregator) enrichOne(ctx context.Context, c candidate) (*TokenRecord, error) {
	facts := c.facts
	if facts == nil {
		var err error
		facts, err = a.mintFacts(ctx, c.mint)
		if err != nil {
			return nil, err
		}
	}
	md := a.metadata(ctx, c.mint)
	return a.record(facts, md, decimal.NewFromUint64(c.balance), c.source), nil
}

func (a *Aggregator) record(facts *blockchain.MintFacts, md *metadata.Metadata, balance decimal.Decimal, source Source) *TokenRecord {
	rec := &TokenRecord{
		Mint:         facts.Mint.String(),
		Name:         md.Name,
		Symbol:       md.Symbol,
		URI:          md.URI,
		HasMetadata:  !md.IsFallback(),
		Decimals:     facts.Decimals,
		Supply:       strconv.FormatUint(facts.Supply, 10),
		Balance:      balance,
		Source:       source,
		ProgramID:    facts.ProgramID.String(),
		DiscoveredAt: a.now(),
	}
	if facts.MintAuthority != nil {
		rec.MintAuthority = facts.MintAuthority.String()
	}
	return rec
}

func (a *Aggregator) mintFacts(ctx context.Context, mint solana.PublicKey) (*blockchain.MintFacts, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return a.tokens.GetMintFacts(ctx, mint)
}

// metadata возвращает метаданные или заглушку. Отсутствие метаданных
// ожидаемо и ошибкой не считается.
func (a *Aggregator) metadata(ctx context.Context, mint solana.PublicKey) *metadata.Metadata {
	if err := a.limiter.Wait(ctx); err != nil {
		return metadata.Fallback(mint)
	}
	md, err := a.finder.Find(ctx, mint)
	if err != nil {
		a.logger.Warn("No metadata found for token",
			zap.String("mint", mint.String()),
			zap.Error(err))
		if !errors.Is(err, metadata.ErrNotFound) {
			a.observer.RecordEnrichmentFailure("metadata")
		}
		return metadata.Fallback(mint)
	}
	if md.Name == "" {
		md.Name = metadata.UnknownName
	}
	if md.Symbol == "" {
		md.Symbol = metadata.UnknownSymbol
	}
	return md
}

// OwnedAccounts собирает токенные аккаунты owner из SPL Token и Token-2022.
// Ошибка одной программы логируется, ошибка обеих возвращается.
func (a *Aggregator) OwnedAccounts(ctx context.Context, owner solana.PublicKey) ([]blockchain.TokenAccount, error) {
	var (
		all  []blockchain.TokenAccount
		errs []error
	)
	for _, program := range blockchain.TokenPrograms {
		accounts, err := a.tokens.OwnedTokenAccounts(ctx, owner, program)
		if err != nil {
			a.logger.Warn("Failed to list token accounts",
				zap.String("program", program.String()),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		all = append(all, accounts...)
	}
	if len(errs) == len(blockchain.TokenPrograms) {
		return nil, fmt.Errorf("list owned token accounts: %w", errors.Join(errs...))
	}
	return all, nil
}

// AuthorityMints ищет mint-ы, созданные owner: просматривает последние
// транзакции пачками, собирает mint-ы из postTokenBalances и оставляет те,
// где owner - mint authority.
func (a *Aggregator) AuthorityMints(ctx context.Context, owner solana.PublicKey) ([]*blockchain.MintFacts, error) {
	sigs, err := a.history.RecentSignatures(ctx, owner, a.cfg.SignatureLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch recent signatures: %w", err)
	}

	var (
		mints []solana.PublicKey
		seen  = make(map[solana.PublicKey]struct{})
	)
	for start := 0; start < len(sigs); start += a.cfg.TxBatchSize {
		end := min(start+a.cfg.TxBatchSize, len(sigs))
		batch := a.batchMints(ctx, sigs[start:end])
		for _, txMints := range batch {
			for _, m := range txMints {
				if _, ok := seen[m]; ok {
					continue
				}
				seen[m] = struct{}{}
				mints = append(mints, m)
			}
		}
	}

	created := make([]*blockchain.MintFacts, len(mints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, m := range mints {
		g.Go(func() error {
			facts, err := a.mintFacts(gctx, m)
			if err != nil {
				a.logger.Debug("Skipping mint from history",
					zap.String("mint", m.String()),
					zap.Error(err))
				return nil
			}
			if facts.HasMintAuthority(owner) {
				created[i] = facts
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*blockchain.MintFacts, 0, len(created))
	for _, f := range created {
		if f != nil {
			out = append(out, f)
		}
	}
	return out, nil
}

// batchMints параллельно читает транзакции одной пачки. Неудачные чтения
// логируются и пропускаются.
func (a *Aggregator) batchMints(ctx context.Context, sigs []blockchain.SignatureInfo) [][]solana.PublicKey {
	out := make([][]solana.PublicKey, len(sigs))
	var g errgroup.Group
	for i, sig := range sigs {
		if sig.Failed {
			continue
		}
		g.Go(func() error {
			if err := a.limiter.Wait(ctx); err != nil {
				return nil
			}
			mints, err := a.history.TransactionMints(ctx, sig.Signature)
			if err != nil {
				a.logger.Debug("Skipping transaction",
					zap.String("signature", sig.Signature.String()),
					zap.Error(err))
				return nil
			}
			out[i] = mints
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Lookup обогащает один mint и читает баланс owner. Возвращает ошибку,
// если mint не читается; отсутствие аккаунта даёт нулевой баланс.
func (a *Aggregator) Lookup(ctx context.Context, owner, mint solana.PublicKey) (*TokenRecord, error) {
	facts, err := a.mintFacts(ctx, mint)
	if err != nil {
		a.observer.RecordEnrichmentFailure("mint")
		return nil, fmt.Errorf("read mint %s: %w", mint, err)
	}
	md := a.metadata(ctx, mint)

	balance := decimal.Zero
	accounts, err := a.tokens.TokenAccountsByMint(ctx, owner, mint)
	switch {
	case err != nil:
		a.logger.Warn("No token accounts found for mint",
			zap.String("mint", mint.String()),
			zap.Error(err))
	case len(accounts) > 0:
		balance = decimal.NewFromUint64(accounts[0].Amount)
	}

	return a.record(facts, md, balance, SourceManualLookup), nil
}
