// internal/blockchain/types.go
package blockchain

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Определение ошибок
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNotMint         = errors.New("account is not an initialized mint")
	ErrConfirmTimeout  = errors.New("transaction confirmation timeout")
	ErrTransactionFail = errors.New("transaction failed on chain")
)

// Token2022ProgramID - программа Token Extensions, в solana-go константы нет.
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// TokenPrograms - программы, аккаунты которых считаются токенными.
var TokenPrograms = []solana.PublicKey{solana.TokenProgramID, Token2022ProgramID}

// MintAccountSize - размер аккаунта SPL mint без расширений.
const MintAccountSize = 82

// TokenAccount - токенный аккаунт владельца.
type TokenAccount struct {
	Address   solana.PublicKey
	Mint      solana.PublicKey
	Owner     solana.PublicKey
	Amount    uint64
	ProgramID solana.PublicKey
}

// MintFacts - неизменяемые и текущие параметры mint-аккаунта.
type MintFacts struct {
	Mint            solana.PublicKey
	Decimals        uint8
	Supply          uint64
	MintAuthority   *solana.PublicKey
	FreezeAuthority *solana.PublicKey
	ProgramID       solana.PublicKey
}

// HasMintAuthority сообщает, является ли pk текущим mint authority.
func (m *MintFacts) HasMintAuthority(pk solana.PublicKey) bool {
	return m != nil && m.MintAuthority != nil && m.MintAuthority.Equals(pk)
}

// SignatureInfo - запись истории транзакций адреса.
type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
	Failed    bool
	BlockTime *time.Time
}

// TokenReader читает состояние токенов.
type TokenReader interface {
	// Токенные аккаунты владельца в программе programID.
	OwnedTokenAccounts(ctx context.Context, owner, programID solana.PublicKey) ([]TokenAccount, error)
	// Токенные аккаунты владельца для одного mint.
	TokenAccountsByMint(ctx context.Context, owner, mint solana.PublicKey) ([]TokenAccount, error)
	// Decimals, supply и authority mint-аккаунта.
	GetMintFacts(ctx context.Context, mint solana.PublicKey) (*MintFacts, error)
	// Количество крупнейших держателей mint (до 20).
	CountLargestAccounts(ctx context.Context, mint solana.PublicKey) (int, error)
}

// HistoryReader читает историю транзакций.
type HistoryReader interface {
	RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]SignatureInfo, error)
	// Mint-адреса из postTokenBalances транзакции.
	TransactionMints(ctx context.Context, signature solana.Signature) ([]solana.PublicKey, error)
}

// AccountReader читает произвольные аккаунты.
type AccountReader interface {
	// Данные аккаунта; ErrAccountNotFound если его нет.
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
}

// Sender строит и отправляет транзакции.
type Sender interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Ожидание подтверждения транзакции.
	WaitForConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) error
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	TokenReader
	HistoryReader
	AccountReader
	Sender
}
