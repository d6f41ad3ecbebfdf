// internal/metadata/finder.go
package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
)

// Finder ищет метаданные токена. Возвращает ErrNotFound, если аккаунта нет.
type Finder interface {
	Find(ctx context.Context, mint solana.PublicKey) (*Metadata, error)
}

// knownTokens - метаданные популярных токенов без on-chain записи.
var knownTokens = map[string]Metadata{
	"So11111111111111111111111111111111111111112":  {Name: "Wrapped SOL", Symbol: "SOL"},
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {Name: "USD Coin", Symbol: "USDC"},
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {Name: "USDT", Symbol: "USDT"},
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": {Name: "Bonk", Symbol: "BONK"},
}

// IsKnownToken сообщает, входит ли mint в список популярных токенов.
func IsKnownToken(mint solana.PublicKey) bool {
	_, ok := knownTokens[mint.String()]
	return ok
}

// ChainFinder читает PDA метаданных напрямую из блокчейна.
type ChainFinder struct {
	reader blockchain.AccountReader
	logger *zap.Logger
}

func NewChainFinder(reader blockchain.AccountReader, logger *zap.Logger) *ChainFinder {
	return &ChainFinder{reader: reader, logger: logger.Named("metadata-finder")}
}

// Find читает и декодирует метаданные mint.
func (f *ChainFinder) Find(ctx context.Context, mint solana.PublicKey) (*Metadata, error) {
	if known, ok := knownTokens[mint.String()]; ok {
		known.Mint = mint
		return &known, nil
	}

	addr, err := FindAddress(mint)
	if err != nil {
		return nil, err
	}
	data, err := f.reader.GetAccountData(ctx, addr)
	if errors.Is(err, blockchain.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mint)
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata account %s: %w", addr, err)
	}

	md, err := Decode(data)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Metadata loaded",
		zap.String("mint", mint.String()),
		zap.String("symbol", md.Symbol))
	return md, nil
}

// CachedFinder кэширует найденные метаданные на ttl. Отсутствие метаданных
// тоже кэшируется, чтобы не опрашивать узел повторно в одном обновлении.
// ttl <= 0 отключает кэш: go-cache трактует нулевой срок как "навсегда".
type CachedFinder struct {
	next    Finder
	cache   *cache.Cache
	enabled bool
	logger  *zap.Logger
}

type cachedEntry struct {
	md       *Metadata
	notFound bool
}

func NewCachedFinder(next Finder, ttl time.Duration, logger *zap.Logger) *CachedFinder {
	c := &CachedFinder{
		next:    next,
		enabled: ttl > 0,
		logger:  logger.Named("metadata-cache"),
	}
	if c.enabled {
		c.cache = cache.New(ttl, 2*ttl)
	} else {
		c.logger.Info("Metadata cache disabled")
	}
	return c
}

// Find возвращает значение из кэша или делегирует next.
func (c *CachedFinder) Find(ctx context.Context, mint solana.PublicKey) (*Metadata, error) {
	if !c.enabled {
		return c.next.Find(ctx, mint)
	}
	key := mint.String()
	if v, ok := c.cache.Get(key); ok {
		entry := v.(cachedEntry)
		if entry.notFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, mint)
		}
		md := *entry.md
		return &md, nil
	}

	md, err := c.next.Find(ctx, mint)
	switch {
	case errors.Is(err, ErrNotFound):
		c.cache.Set(key, cachedEntry{notFound: true}, cache.DefaultExpiration)
		return nil, err
	case err != nil:
		// транспортные ошибки не кэшируем
		return nil, err
	}
	c.cache.Set(key, cachedEntry{md: md}, cache.DefaultExpiration)
	copied := *md
	return &copied, nil
}

// Invalidate удаляет запись, например после AttachMetadata.
func (c *CachedFinder) Invalidate(mint solana.PublicKey) {
	if !c.enabled {
		return
	}
	c.cache.Delete(mint.String())
}
