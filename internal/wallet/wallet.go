// internal/wallet/wallet.go
package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoWallets      = errors.New("no valid wallets loaded")
	ErrWalletNotFound = errors.New("wallet not found")
)

// Capabilities описывает, что умеет подписант. Проверяется один раз при
// создании сервисов, а не при каждом вызове.
type Capabilities struct {
	SignTransaction bool
}

// Wallet представляет кошелёк Solana с локальным ключом.
type Wallet struct {
	Name       string
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey

	ataMu    sync.RWMutex
	ataCache map[solana.PublicKey]solana.PublicKey
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа (64 байта).
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return FromPrivateKey(solana.PrivateKey(privateKeyBytes)), nil
}

// FromPrivateKey оборачивает готовый ключ.
func FromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{
		privateKey: key,
		publicKey:  key.PublicKey(),
		ataCache:   make(map[solana.PublicKey]solana.PublicKey),
	}
}

// PublicKey возвращает адрес кошелька.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.publicKey
}

// Capabilities - локальный ключ подписывает любую транзакцию.
func (w *Wallet) Capabilities() Capabilities {
	return Capabilities{SignTransaction: true}
}

// SignTransaction подписывает транзакцию ключом кошелька и дополнительными ключами.
func (w *Wallet) SignTransaction(tx *solana.Transaction, extra ...solana.PrivateKey) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.publicKey) {
			return &w.privateKey
		}
		for i := range extra {
			if extra[i].PublicKey().Equals(key) {
				return &extra[i]
			}
		}
		return nil
	})
	return err
}

// GetATA возвращает адрес ассоциированного токен-аккаунта (ATA) для mint.
// Если адрес уже был вычислен ранее, возвращается значение из кеша.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	w.ataMu.RLock()
	ata, ok := w.ataCache[mint]
	w.ataMu.RUnlock()
	if ok {
		return ata, nil
	}

	ata, _, err := solana.FindAssociatedTokenAddress(w.publicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	w.ataMu.Lock()
	w.ataCache[mint] = ata
	w.ataMu.Unlock()
	return ata, nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.publicKey.String()
}

// walletFile - структура YAML-файла с кошельками.
type walletFile struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// LoadWallets загружает кошельки из YAML-файла. Некорректные записи пропускаются.
func LoadWallets(path string) (map[string]*Wallet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file walletFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	wallets := make(map[string]*Wallet)
	for _, entry := range file.Wallets {
		if entry.Name == "" || entry.PrivateKey == "" {
			continue
		}
		w, err := NewWallet(entry.PrivateKey)
		if err != nil {
			continue
		}
		w.Name = entry.Name
		wallets[entry.Name] = w
	}
	if len(wallets) == 0 {
		return nil, ErrNoWallets
	}
	return wallets, nil
}

// Load выбирает кошелёк: ключ из конфигурации важнее файла.
func Load(privateKey, path, name string) (*Wallet, error) {
	if privateKey != "" {
		return NewWallet(privateKey)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: neither private key nor wallet file configured", ErrWalletNotFound)
	}
	wallets, err := LoadWallets(path)
	if err != nil {
		return nil, err
	}
	if name != "" {
		w, ok := wallets[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrWalletNotFound, name)
		}
		return w, nil
	}
	if len(wallets) > 1 {
		return nil, fmt.Errorf("%w: wallet file has %d wallets, set wallet_name", ErrWalletNotFound, len(wallets))
	}
	for _, w := range wallets {
		return w, nil
	}
	return nil, ErrNoWallets
}
