// internal/app/app.go
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/api"
	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-launchpad/internal/config"
	"github.com/rovshanmuradov/solana-launchpad/internal/dex"
	"github.com/rovshanmuradov/solana-launchpad/internal/export"
	"github.com/rovshanmuradov/solana-launchpad/internal/logger"
	"github.com/rovshanmuradov/solana-launchpad/internal/metadata"
	"github.com/rovshanmuradov/solana-launchpad/internal/metrics"
	"github.com/rovshanmuradov/solana-launchpad/internal/portfolio"
	"github.com/rovshanmuradov/solana-launchpad/internal/token"
	"github.com/rovshanmuradov/solana-launchpad/internal/wallet"
)

// Options - параметры запуска процесса.
type Options struct {
	ConfigPath string
	// Console выключается для TUI.
	Console bool
	// LogBuffer получает копию записей лога, может быть nil.
	LogBuffer *logger.LogBuffer
}

// App держит все клиенты процесса. Глобальных синглтонов нет: каждый
// компонент получает зависимости отсюда.
type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Collector
	Client    *solbc.Client
	Wallet    *wallet.Wallet
	Finder    *metadata.CachedFinder
	Tokens    *token.Service
	Dashboard *portfolio.Dashboard
	AMM       dex.Service
	Exporter  *export.TokenExporter
}

// New загружает конфигурацию и собирает граф зависимостей.
// Сетевых вызовов при сборке нет.
func New(opts Options) (*App, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Debug = cfg.DebugLogging
	logCfg.Console = opts.Console
	logCfg.Buffer = opts.LogBuffer
	appLogger, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	a, err := build(cfg, appLogger)
	if err != nil {
		_ = appLogger.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, appLogger *logger.Logger) (*App, error) {
	log := appLogger.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	pool, err := rpc.NewPool(cfg.RPCList, log, rpc.WithObserver(collector))
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc pool: %w", err)
	}
	client := solbc.NewClient(pool, log)

	w, err := wallet.Load(cfg.PrivateKey, cfg.WalletFile, cfg.WalletName)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	txManager := transaction.NewManager(
		client,
		w,
		log,
		transaction.Config{ConfirmTimeout: cfg.ConfirmTimeout()},
		collector,
	)

	finder := metadata.NewCachedFinder(metadata.NewChainFinder(client, log), cfg.MetadataTTL(), log)

	tokens := token.NewService(
		client,
		txManager,
		cfg.RetryPolicy(),
		log,
		token.WithMetadataCache(finder),
		token.WithAccounts(w),
		token.WithRetryObserver(collector),
	)

	aggregator := portfolio.NewAggregator(
		client,
		client,
		finder,
		cfg.DiscoveryPolicy(),
		log,
		portfolio.WithObserver(collector),
	)
	dashboard := portfolio.NewDashboard(aggregator, w.PublicKey(), log)

	amm, err := dex.New(cfg.AMMMode(), dex.Deps{
		Tokens:    client,
		Finder:    finder,
		Submitter: txManager,
		Accounts:  w,
		Signer:    w.Capabilities(),
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create amm service: %w", err)
	}

	log.Info("Launchpad initialized",
		zap.String("cluster", cfg.Cluster),
		zap.Strings("rpc", pool.URLs()),
		zap.String("wallet", w.PublicKey().String()),
		zap.String("amm_mode", string(amm.Mode())),
	)

	return &App{
		Config:    cfg,
		Logger:    appLogger,
		Registry:  reg,
		Metrics:   collector,
		Client:    client,
		Wallet:    w,
		Finder:    finder,
		Tokens:    tokens,
		Dashboard: dashboard,
		AMM:       amm,
		Exporter:  export.NewTokenExporter(log),
	}, nil
}

// Server собирает HTTP API поверх App.
func (a *App) Server() *api.Server {
	deps := api.Deps{
		Dashboard: a.Dashboard,
		Tokens:    a.Tokens,
		AMM:       a.AMM,
		Metrics:   promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		Logger:    a.Logger.Logger,
	}
	return api.NewServer(deps, api.Config{
		Addr:        a.Config.Server.Addr,
		CORSOrigins: a.Config.Server.CORSOrigins,
	})
}

// Close сбрасывает и закрывает лог.
func (a *App) Close() error {
	return a.Logger.Close()
}
