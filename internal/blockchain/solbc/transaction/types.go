// internal/blockchain/solbc/transaction/types.go
package transaction

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrMissingSignature   = errors.New("transaction is missing a required signature")
	ErrInvalidBlockhash   = errors.New("invalid blockhash")
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrTooLarge           = errors.New("transaction exceeds packet size")
)

// MaxPacketSize - предельный размер сериализованной транзакции.
const MaxPacketSize = 1232

// Signer подписывает транзакции ключом пользователя.
type Signer interface {
	PublicKey() solana.PublicKey
	// SignTransaction подписывает tx своим ключом и дополнительными ключами extra.
	SignTransaction(tx *solana.Transaction, extra ...solana.PrivateKey) error
}

// Recorder получает итог каждой отправки.
type Recorder interface {
	RecordTransaction(kind string, duration time.Duration, success bool)
}

type Config struct {
	ConfirmTimeout time.Duration
}

// Result - подтверждённая транзакция.
type Result struct {
	Kind        string
	Signature   solana.Signature
	Duration    time.Duration
	ConfirmedAt time.Time
}
