// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/solana-launchpad/internal/dex"
	"github.com/rovshanmuradov/solana-launchpad/internal/portfolio"
	"github.com/rovshanmuradov/solana-launchpad/internal/retry"
)

// EnvPrefix - префикс переменных окружения.
const EnvPrefix = "LAUNCHPAD"

type RetryConfig struct {
	MaxRetries       int `mapstructure:"max_retries"`
	InitialBackoffMs int `mapstructure:"initial_backoff_ms"`
}

type DiscoveryConfig struct {
	SignatureLimit int     `mapstructure:"signature_limit"`
	TxBatchSize    int     `mapstructure:"tx_batch_size"`
	Concurrency    int     `mapstructure:"concurrency"`
	RPS            float64 `mapstructure:"rps"`
}

type AMMConfig struct {
	Mode string `mapstructure:"mode"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type Config struct {
	RPCList           []string        `mapstructure:"rpc_list"`
	Cluster           string          `mapstructure:"cluster"`
	PrivateKey        string          `mapstructure:"private_key"`
	WalletFile        string          `mapstructure:"wallet_file"`
	WalletName        string          `mapstructure:"wallet_name"`
	DebugLogging      bool            `mapstructure:"debug_logging"`
	LogFile           string          `mapstructure:"log_file"`
	// 0 отключает кэш метаданных.
	MetadataCacheTTL  int             `mapstructure:"metadata_cache_ttl_sec"`
	ConfirmTimeoutSec int             `mapstructure:"confirm_timeout_sec"`
	Retry             RetryConfig     `mapstructure:"retry"`
	Discovery         DiscoveryConfig `mapstructure:"discovery"`
	AMM               AMMConfig       `mapstructure:"amm"`
	Server            ServerConfig    `mapstructure:"server"`
}

const (
	DefaultCluster          = "devnet"
	DefaultLogFile          = "logs/launchpad.log"
	DefaultMetadataCacheTTL = 300
	DefaultConfirmTimeout   = 60
	DefaultServerAddr       = ":8080"
)

var clusterRPC = map[string]string{
	"devnet":       solanarpc.DevNet_RPC,
	"testnet":      solanarpc.TestNet_RPC,
	"mainnet-beta": solanarpc.MainNetBeta_RPC,
	"localnet":     solanarpc.LocalNet_RPC,
}

// LoadConfig читает конфигурацию из path (JSON или YAML), затем применяет
// переменные окружения LAUNCHPAD_*. Пустой path - только значения по
// умолчанию и окружение.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyListEnv(v, &cfg)

	if len(cfg.RPCList) == 0 {
		if endpoint, ok := clusterRPC[cfg.Cluster]; ok {
			cfg.RPCList = []string{endpoint}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"rpc_list":                  []string{},
		"cluster":                   DefaultCluster,
		"private_key":               "",
		"wallet_file":               "",
		"wallet_name":               "",
		"debug_logging":             false,
		"log_file":                  DefaultLogFile,
		"metadata_cache_ttl_sec":    DefaultMetadataCacheTTL,
		"confirm_timeout_sec":       DefaultConfirmTimeout,
		"retry.max_retries":         retry.DefaultMaxRetries,
		"retry.initial_backoff_ms":  int(retry.DefaultInitialBackoff / time.Millisecond),
		"discovery.signature_limit": portfolio.DefaultSignatureLimit,
		"discovery.tx_batch_size":   portfolio.DefaultTxBatchSize,
		"discovery.concurrency":     portfolio.DefaultConcurrency,
		"discovery.rps":             portfolio.DefaultRPS,
		"amm.mode":                  string(dex.ModeSimulation),
		"server.addr":               DefaultServerAddr,
		"server.cors_origins":       []string{},
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// applyListEnv разбирает списки из окружения через запятую.
func applyListEnv(v *viper.Viper, cfg *Config) {
	if list := splitList(v.GetString("RPC_LIST")); len(list) > 0 {
		cfg.RPCList = list
	}
	if list := splitList(v.GetString("SERVER_CORS_ORIGINS")); len(list) > 0 {
		cfg.Server.CORSOrigins = list
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

// Validate проверяет значения конфигурации.
func (c *Config) Validate() error {
	if len(c.RPCList) == 0 {
		return errors.New("rpc_list is empty and cluster has no default endpoint")
	}
	for _, rpcURL := range c.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid rpc url %q: %w", rpcURL, err)
		}
	}
	if _, ok := clusterRPC[c.Cluster]; !ok {
		return fmt.Errorf("unknown cluster %q", c.Cluster)
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return err
	}
	if err := c.validateNumericParams(); err != nil {
		return err
	}
	if _, err := dex.ParseMode(c.AMM.Mode); err != nil {
		return err
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is empty")
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			continue
		}
		if err := validateURL(origin, "http"); err != nil {
			return fmt.Errorf("invalid cors origin %q: %w", origin, err)
		}
	}
	return nil
}

func (c *Config) validateNumericParams() error {
	if c.Discovery.SignatureLimit <= 0 || c.Discovery.SignatureLimit > 1000 {
		return errors.New("discovery.signature_limit must be in 1..1000")
	}
	if c.Discovery.TxBatchSize <= 0 {
		return errors.New("invalid discovery.tx_batch_size")
	}
	if c.Discovery.Concurrency <= 0 {
		return errors.New("invalid discovery.concurrency")
	}
	if c.Discovery.RPS < 0 {
		return errors.New("invalid discovery.rps")
	}
	if c.MetadataCacheTTL < 0 {
		return errors.New("invalid metadata_cache_ttl_sec")
	}
	if c.ConfirmTimeoutSec <= 0 {
		return errors.New("invalid confirm_timeout_sec")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// RetryPolicy возвращает политику повторов для привязки метаданных.
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxRetries:     c.Retry.MaxRetries,
		InitialBackoff: time.Duration(c.Retry.InitialBackoffMs) * time.Millisecond,
	}
}

// DiscoveryPolicy возвращает настройки цикла обнаружения токенов.
func (c *Config) DiscoveryPolicy() portfolio.Config {
	return portfolio.Config{
		SignatureLimit: c.Discovery.SignatureLimit,
		TxBatchSize:    c.Discovery.TxBatchSize,
		Concurrency:    c.Discovery.Concurrency,
		RPS:            c.Discovery.RPS,
	}
}

func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSec) * time.Second
}

func (c *Config) MetadataTTL() time.Duration {
	return time.Duration(c.MetadataCacheTTL) * time.Second
}

// AMMMode возвращает проверенный режим AMM.
func (c *Config) AMMMode() dex.Mode {
	m, _ := dex.ParseMode(c.AMM.Mode)
	return m
}
