// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain/solbc/rpc"
)

const (
	confirmPollInterval   = 500 * time.Millisecond
	defaultConfirmTimeout = 60 * time.Second
	tokenAccountSize      = 165
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	pool       *rpc.Pool
	logger     *zap.Logger
	commitment solanarpc.CommitmentType
}

// NewClient создаёт клиент поверх пула узлов (dependency injection, без глобальных синглтонов).
func NewClient(pool *rpc.Pool, logger *zap.Logger) *Client {
	return &Client{
		pool:       pool,
		logger:     logger.Named("solbc-client"),
		commitment: solanarpc.CommitmentConfirmed,
	}
}

// IsAccountNotFoundError проверяет, является ли ошибка "not found"
func IsAccountNotFoundError(err error) bool {
	return errors.Is(err, blockchain.ErrAccountNotFound) || rpc.IsNotFound(err)
}

// OwnedTokenAccounts возвращает токенные аккаунты owner в программе programID.
func (c *Client) OwnedTokenAccounts(ctx context.Context, owner, programID solana.PublicKey) ([]blockchain.TokenAccount, error) {
	return c.tokenAccounts(ctx, owner, &solanarpc.GetTokenAccountsConfig{ProgramId: programID.ToPointer()})
}

// TokenAccountsByMint возвращает аккаунты owner для конкретного mint.
func (c *Client) TokenAccountsByMint(ctx context.Context, owner, mint solana.PublicKey) ([]blockchain.TokenAccount, error) {
	return c.tokenAccounts(ctx, owner, &solanarpc.GetTokenAccountsConfig{Mint: mint.ToPointer()})
}

func (c *Client) tokenAccounts(ctx context.Context, owner solana.PublicKey, conf *solanarpc.GetTokenAccountsConfig) ([]blockchain.TokenAccount, error) {
	var res *solanarpc.GetTokenAccountsResult
	err := c.pool.Execute(ctx, "getTokenAccountsByOwner", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		res, err = rc.GetTokenAccountsByOwner(ctx, owner, conf, &solanarpc.GetTokenAccountsOpts{
			Commitment: c.commitment,
			Encoding:   solana.EncodingBase64,
		})
		return err
	})
	if err != nil {
		c.logger.Debug("GetTokenAccountsByOwner error",
			zap.String("owner", owner.String()),
			zap.Error(err))
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	accounts := make([]blockchain.TokenAccount, 0, len(res.Value))
	for _, ka := range res.Value {
		if ka == nil || ka.Account.Data == nil {
			continue
		}
		acc, err := DecodeTokenAccount(ka.Account.Data.GetBinary())
		if err != nil {
			c.logger.Debug("Skipping undecodable token account",
				zap.String("account", ka.Pubkey.String()),
				zap.Error(err))
			continue
		}
		accounts = append(accounts, blockchain.TokenAccount{
			Address:   ka.Pubkey,
			Mint:      acc.Mint,
			Owner:     acc.Owner,
			Amount:    acc.Amount,
			ProgramID: ka.Account.Owner,
		})
	}
	return accounts, nil
}

// GetMintFacts читает и декодирует mint-аккаунт.
func (c *Client) GetMintFacts(ctx context.Context, mint solana.PublicKey) (*blockchain.MintFacts, error) {
	info, err := c.getAccountInfo(ctx, mint)
	if err != nil {
		return nil, err
	}
	owner := info.Value.Owner
	if !owner.Equals(solana.TokenProgramID) && !owner.Equals(blockchain.Token2022ProgramID) {
		return nil, fmt.Errorf("%w: %s owned by %s", blockchain.ErrNotMint, mint, owner)
	}
	facts, err := DecodeMint(info.Value.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	facts.Mint = mint
	facts.ProgramID = owner
	return facts, nil
}

// CountLargestAccounts возвращает число крупнейших держателей токена.
func (c *Client) CountLargestAccounts(ctx context.Context, mint solana.PublicKey) (int, error) {
	var res *solanarpc.GetTokenLargestAccountsResult
	err := c.pool.Execute(ctx, "getTokenLargestAccounts", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		res, err = rc.GetTokenLargestAccounts(ctx, mint, c.commitment)
		return err
	})
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}
	return len(res.Value), nil
}

// RecentSignatures возвращает последние limit подписей для address.
func (c *Client) RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]blockchain.SignatureInfo, error) {
	var res []*solanarpc.TransactionSignature
	err := c.pool.Execute(ctx, "getSignaturesForAddress", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		res, err = rc.GetSignaturesForAddressWithOpts(ctx, address, &solanarpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: c.commitment,
		})
		return err
	})
	if err != nil {
		c.logger.Debug("GetSignaturesForAddress error",
			zap.String("address", address.String()),
			zap.Error(err))
		return nil, err
	}

	out := make([]blockchain.SignatureInfo, 0, len(res))
	for _, s := range res {
		if s == nil {
			continue
		}
		info := blockchain.SignatureInfo{
			Signature: s.Signature,
			Slot:      s.Slot,
			Failed:    s.Err != nil,
		}
		if s.BlockTime != nil {
			t := s.BlockTime.Time()
			info.BlockTime = &t
		}
		out = append(out, info)
	}
	return out, nil
}

// TransactionMints возвращает mint-адреса из postTokenBalances транзакции.
func (c *Client) TransactionMints(ctx context.Context, signature solana.Signature) ([]solana.PublicKey, error) {
	maxVersion := uint64(0)
	var res *solanarpc.GetTransactionResult
	err := c.pool.Execute(ctx, "getTransaction", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		res, err = rc.GetTransaction(ctx, signature, &solanarpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     c.commitment,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if res == nil || res.Meta == nil {
		return nil, nil
	}

	mints := make([]solana.PublicKey, 0, len(res.Meta.PostTokenBalances))
	for _, b := range res.Meta.PostTokenBalances {
		mints = append(mints, b.Mint)
	}
	return mints, nil
}

// GetAccountData возвращает сырые данные аккаунта.
func (c *Client) GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	info, err := c.getAccountInfo(ctx, pubkey)
	if err != nil {
		return nil, err
	}
	return info.Value.Data.GetBinary(), nil
}

// AccountExists проверяет наличие аккаунта.
func (c *Client) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	_, err := c.getAccountInfo(ctx, pubkey)
	if IsAccountNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) getAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*solanarpc.GetAccountInfoResult, error) {
	var res *solanarpc.GetAccountInfoResult
	err := c.pool.Execute(ctx, "getAccountInfo", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		res, err = rc.GetAccountInfoWithOpts(ctx, pubkey, &solanarpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.commitment,
		})
		return err
	})
	if IsAccountNotFoundError(err) || (err == nil && (res == nil || res.Value == nil)) {
		return nil, fmt.Errorf("%w: %s", blockchain.ErrAccountNotFound, pubkey)
	}
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

// GetBalance получает баланс аккаунта в лампортах.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	var res *solanarpc.GetBalanceResult
	err := c.pool.Execute(ctx, "getBalance", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		res, err = rc.GetBalance(ctx, pubkey, c.commitment)
		return err
	})
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return res.Value, nil
}

// GetRecentBlockhash получает последний blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	var res *solanarpc.GetLatestBlockhashResult
	err := c.pool.Execute(ctx, "getLatestBlockhash", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		res, err = rc.GetLatestBlockhash(ctx, solanarpc.CommitmentFinalized)
		return err
	})
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return res.Value.Blockhash, nil
}

// GetMinimumBalanceForRentExemption возвращает rent-exempt минимум для dataSize байт.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	var lamports uint64
	err := c.pool.Execute(ctx, "getMinimumBalanceForRentExemption", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		lamports, err = rc.GetMinimumBalanceForRentExemption(ctx, dataSize, c.commitment)
		return err
	})
	return lamports, err
}

// SendTransaction отправляет подписанную транзакцию.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := c.pool.Execute(ctx, "sendTransaction", func(ctx context.Context, rc *solanarpc.Client) error {
		var err error
		sig, err = rc.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
			PreflightCommitment: c.commitment,
		})
		return err
	})
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// WaitForConfirmation ожидает подтверждения транзакции (простой polling).
func (c *Client) WaitForConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: %s", blockchain.ErrConfirmTimeout, signature)
		case <-ticker.C:
			var res *solanarpc.GetSignatureStatusesResult
			err := c.pool.Execute(ctx, "getSignatureStatuses", func(ctx context.Context, rc *solanarpc.Client) error {
				var err error
				res, err = rc.GetSignatureStatuses(ctx, false, signature)
				return err
			})
			if err != nil {
				c.logger.Warn("Error getting signature statuses", zap.Error(err))
				continue
			}
			if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
				continue
			}
			status := res.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %s: %v", blockchain.ErrTransactionFail, signature, status.Err)
			}
			if status.ConfirmationStatus == solanarpc.ConfirmationStatusFinalized ||
				status.ConfirmationStatus == solanarpc.ConfirmationStatusConfirmed {
				return nil
			}
		}
	}
}

// DecodeTokenAccount декодирует SPL token account (первые 165 байт, расширения Token-2022 игнорируются).
func DecodeTokenAccount(data []byte) (*token.Account, error) {
	if len(data) < tokenAccountSize {
		return nil, fmt.Errorf("token account data too short: %d", len(data))
	}
	var acc token.Account
	if err := bin.NewBinDecoder(data[:tokenAccountSize]).Decode(&acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// DecodeMint декодирует mint-аккаунт SPL Token / Token-2022.
func DecodeMint(data []byte) (*blockchain.MintFacts, error) {
	if len(data) < blockchain.MintAccountSize {
		return nil, fmt.Errorf("%w: data length %d", blockchain.ErrNotMint, len(data))
	}
	var mint token.Mint
	if err := bin.NewBinDecoder(data[:blockchain.MintAccountSize]).Decode(&mint); err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, blockchain.ErrNotMint
	}
	return &blockchain.MintFacts{
		Decimals:        mint.Decimals,
		Supply:          mint.Supply,
		MintAuthority:   mint.MintAuthority,
		FreezeAuthority: mint.FreezeAuthority,
	}, nil
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
