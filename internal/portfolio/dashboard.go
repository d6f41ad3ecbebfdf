// internal/portfolio/dashboard.go
package portfolio

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rovshanmuradov/solana-launchpad/internal/logger"
)

// RefreshTimeout ограничивает общий цикл обновления: он не привязан к
// контексту того, кто его запустил.
const RefreshTimeout = 2 * time.Minute

// Discoverer - то, что нужно Dashboard от Aggregator.
type Discoverer interface {
	DiscoverWithPhases(ctx context.Context, owner solana.PublicKey, onPhase func(Phase)) ([]TokenRecord, error)
	Lookup(ctx context.Context, owner, mint solana.PublicKey) (*TokenRecord, error)
}

// Snapshot - состояние дашборда на момент вызова.
type Snapshot struct {
	Owner       string        `json:"owner"`
	Phase       Phase         `json:"phase"`
	Tokens      []TokenRecord `json:"tokens"`
	RefreshedAt time.Time     `json:"refreshed_at"`
	LastError   string        `json:"last_error,omitempty"`
}

// Dashboard хранит последний список токенов одного владельца. HTTP и
// терминальный интерфейс вызывают его параллельно.
type Dashboard struct {
	source Discoverer
	owner  solana.PublicKey
	logger *zap.Logger

	refresh singleflight.Group

	mu          sync.RWMutex
	phase       Phase
	records     []TokenRecord
	refreshedAt time.Time
	lastErr     error
}

func NewDashboard(source Discoverer, owner solana.PublicKey, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		source: source,
		owner:  owner,
		logger: logger.Named("dashboard"),
		phase:  PhaseIdle,
	}
}

// Owner возвращает владельца дашборда.
func (d *Dashboard) Owner() solana.PublicKey {
	return d.owner
}

// Refresh перестраивает список. Параллельные вызовы объединяются в один
// цикл. Отмена ctx освобождает только этого вызывающего, цикл
// продолжается. При ошибке прежний список сохраняется.
func (d *Dashboard) Refresh(ctx context.Context) ([]TokenRecord, error) {
	ch := d.refresh.DoChan("refresh", func() (interface{}, error) {
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		log, end := logger.TrackPerformance(d.logger, "refresh")
		defer end()

		records, err := d.source.DiscoverWithPhases(cycleCtx, d.owner, d.setPhase)

		d.mu.Lock()
		defer d.mu.Unlock()
		if err != nil {
			log.Warn("Refresh failed, keeping previous list", zap.Error(err))
			d.lastErr = err
			return nil, err
		}
		d.records = records
		d.refreshedAt = time.Now()
		d.lastErr = nil
		log.Info("Token list refreshed", zap.Int("tokens", len(records)))
		return slices.Clone(records), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]TokenRecord)), nil
	}
}

// Tokens возвращает копию текущего списка.
func (d *Dashboard) Tokens() []TokenRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.records)
}

// Lookup ищет mint вручную и добавляет его, если его ещё нет в списке.
// added == false означает, что список не изменился.
func (d *Dashboard) Lookup(ctx context.Context, mint solana.PublicKey) (rec TokenRecord, added bool, err error) {
	found, err := d.source.Lookup(ctx, d.owner, mint)
	if err != nil {
		return TokenRecord{}, false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.records {
		if existing.Mint == found.Mint {
			return existing, false, nil
		}
	}
	d.records = append(d.records, *found)
	d.logger.Info("Token added by lookup",
		zap.String("mint", found.Mint),
		zap.Bool("creator", found.IsCreator(d.owner.String())))
	return *found, true, nil
}

// Phase возвращает стадию последнего цикла.
func (d *Dashboard) Phase() Phase {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.phase
}

// Snapshot возвращает согласованную копию состояния.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Snapshot{
		Owner:       d.owner.String(),
		Phase:       d.phase,
		Tokens:      slices.Clone(d.records),
		RefreshedAt: d.refreshedAt,
	}
	if d.lastErr != nil {
		s.LastError = d.lastErr.Error()
	}
	return s
}

func (d *Dashboard) setPhase(p Phase) {
	d.mu.Lock()
	d.phase = p
	d.mu.Unlock()
}
