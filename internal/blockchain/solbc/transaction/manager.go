// internal/blockchain/solbc/transaction/manager.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
)

// Manager собирает, подписывает, отправляет и подтверждает транзакции.
type Manager struct {
	client    blockchain.Sender
	signer    Signer
	logger    *zap.Logger
	config    Config
	validator *Validator
	recorder  Recorder
}

func NewManager(client blockchain.Sender, signer Signer, logger *zap.Logger, config Config, recorder Recorder) *Manager {
	return &Manager{
		client:    client,
		signer:    signer,
		logger:    logger.Named("tx-manager"),
		config:    config,
		validator: NewValidator(logger),
		recorder:  recorder,
	}
}

// Payer возвращает адрес плательщика комиссий.
func (tm *Manager) Payer() solana.PublicKey {
	return tm.signer.PublicKey()
}

// SendAndConfirm строит транзакцию из instructions, подписывает её ключом
// пользователя и extraSigners и ждёт подтверждения.
func (tm *Manager) SendAndConfirm(
	ctx context.Context,
	kind string,
	instructions []solana.Instruction,
	extraSigners ...solana.PrivateKey,
) (res *Result, err error) {
	start := time.Now()
	defer func() {
		if tm.recorder != nil {
			tm.recorder.RecordTransaction(kind, time.Since(start), err == nil)
		}
	}()

	if len(instructions) == 0 {
		return nil, ErrInvalidInstruction
	}

	blockhash, err := tm.client.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(tm.signer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("build %s transaction: %w", kind, err)
	}
	if err := tm.signer.SignTransaction(tx, extraSigners...); err != nil {
		return nil, fmt.Errorf("sign %s transaction: %w", kind, err)
	}
	if err := tm.validator.ValidateTransaction(tx); err != nil {
		tm.logger.Error("Transaction validation failed", zap.String("kind", kind), zap.Error(err))
		return nil, err
	}

	signature, err := tm.client.SendTransaction(ctx, tx)
	if err != nil {
		tm.logger.Error("Failed to send transaction", zap.String("kind", kind), zap.Error(err))
		return nil, err
	}
	tm.logger.Debug("Transaction sent", zap.String("kind", kind), zap.String("signature", signature.String()))

	if err := tm.client.WaitForConfirmation(ctx, signature, tm.config.ConfirmTimeout); err != nil {
		tm.logger.Error("Transaction confirmation failed",
			zap.String("kind", kind),
			zap.String("signature", signature.String()),
			zap.Error(err))
		return nil, err
	}

	res = &Result{
		Kind:        kind,
		Signature:   signature,
		Duration:    time.Since(start),
		ConfirmedAt: time.Now(),
	}
	tm.logger.Info("Transaction confirmed",
		zap.String("kind", kind),
		zap.String("signature", signature.String()),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// IsValidationError сообщает, что транзакция отклонена до отправки.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrInvalidBlockhash) ||
		errors.Is(err, ErrInvalidInstruction) ||
		errors.Is(err, ErrTooLarge)
}
