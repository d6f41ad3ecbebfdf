// internal/blockchain/solbc/transaction/validator.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		logger: logger.Named("tx-validator"),
	}
}

// ValidateTransaction проверяет подписанную транзакцию перед отправкой.
func (v *Validator) ValidateTransaction(tx *solana.Transaction) error {
	if err := v.ValidateBlockhash(tx); err != nil {
		return err
	}
	if err := v.ValidateInstructions(tx.Message.Instructions); err != nil {
		return err
	}
	if err := v.ValidateSignatures(tx); err != nil {
		return err
	}
	return v.ValidateSize(tx)
}

// ValidateSignatures проверяет, что каждый обязательный подписант подписал tx.
func (v *Validator) ValidateSignatures(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required || required == 0 {
		return fmt.Errorf("%w: have %d, need %d", ErrMissingSignature, len(tx.Signatures), required)
	}
	for i := 0; i < required; i++ {
		if tx.Signatures[i] == (solana.Signature{}) {
			return fmt.Errorf("%w: signer %s", ErrMissingSignature, tx.Message.AccountKeys[i])
		}
	}
	return nil
}

func (v *Validator) ValidateBlockhash(tx *solana.Transaction) error {
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return ErrInvalidBlockhash
	}
	return nil
}

func (v *Validator) ValidateInstructions(instructions []solana.CompiledInstruction) error {
	if len(instructions) == 0 {
		return ErrInvalidInstruction
	}
	return nil
}

// ValidateSize отсекает транзакции, которые узел не примет.
func (v *Validator) ValidateSize(tx *solana.Transaction) error {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize transaction: %w", err)
	}
	if len(raw) > MaxPacketSize {
		v.logger.Debug("Transaction too large", zap.Int("size", len(raw)))
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(raw))
	}
	return nil
}
