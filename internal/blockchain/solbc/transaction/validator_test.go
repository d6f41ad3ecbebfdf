// internal/blockchain/solbc/transaction/validator_test.go
package transaction

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func buildTx(t *testing.T, payer solana.PrivateKey, n int, blockhash solana.Hash) *solana.Transaction {
	t.Helper()
	ixs := make([]solana.Instruction, 0, n)
	for i := 0; i < n; i++ {
		to := solana.NewWallet().PublicKey()
		ixs = append(ixs, system.NewTransferInstruction(uint64(i+1), payer.PublicKey(), to).Build())
	}
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	return tx
}

func TestValidateTransaction(t *testing.T) {
	v := NewValidator(zaptest.NewLogger(t))
	payer := solana.NewWallet().PrivateKey
	hash := solana.Hash{1}

	t.Run("signed transaction passes", func(t *testing.T) {
		tx := buildTx(t, payer, 1, hash)
		require.NoError(t, keySigner{key: payer}.SignTransaction(tx))
		assert.NoError(t, v.ValidateTransaction(tx))
	})

	t.Run("unsigned transaction", func(t *testing.T) {
		tx := buildTx(t, payer, 1, hash)
		assert.ErrorIs(t, v.ValidateTransaction(tx), ErrMissingSignature)
	})

	t.Run("zero blockhash", func(t *testing.T) {
		tx := buildTx(t, payer, 1, solana.Hash{})
		require.NoError(t, keySigner{key: payer}.SignTransaction(tx))
		assert.ErrorIs(t, v.ValidateTransaction(tx), ErrInvalidBlockhash)
	})

	t.Run("too large for one packet", func(t *testing.T) {
		// ~32 байта на каждый новый аккаунт: 40 получателей не влезают в 1232
		tx := buildTx(t, payer, 40, hash)
		require.NoError(t, keySigner{key: payer}.SignTransaction(tx))
		err := v.ValidateTransaction(tx)
		assert.ErrorIs(t, err, ErrTooLarge)
		assert.True(t, IsValidationError(err))
	})
}
