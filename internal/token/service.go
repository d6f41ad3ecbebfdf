// internal/token/service.go
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain"
	"github.com/rovshanmuradov/solana-launchpad/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-launchpad/internal/logger"
	"github.com/rovshanmuradov/solana-launchpad/internal/metadata"
	"github.com/rovshanmuradov/solana-launchpad/internal/retry"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

// InitialSupply - количество целых токенов, выпускаемых при создании.
const InitialSupply = 1_000_000

// ErrMetadataExists - у mint уже есть аккаунт метаданных.
var ErrMetadataExists = types.NewValidationError("mint", "metadata account already exists")

// Ledger - чтение состояния, нужное сервису.
type Ledger interface {
	GetMintFacts(ctx context.Context, mint solana.PublicKey) (*blockchain.MintFacts, error)
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
}

// Submitter подписывает и подтверждает транзакции от имени пользователя.
type Submitter interface {
	Payer() solana.PublicKey
	SendAndConfirm(ctx context.Context, kind string, instructions []solana.Instruction, extraSigners ...solana.PrivateKey) (*transaction.Result, error)
}

// AccountResolver вычисляет ATA кошелька-владельца (с кэшем).
type AccountResolver interface {
	GetATA(mint solana.PublicKey) (solana.PublicKey, error)
}

// RetryObserver получает каждую повторяемую ошибку.
type RetryObserver interface {
	RecordRetry(operation string)
}

// CreateResult - итог создания токена. MetadataErr заполнен, если токен
// создан, но метаданные привязать не удалось.
type CreateResult struct {
	Mint              solana.PublicKey
	TokenAccount      solana.PublicKey
	InitialSupply     uint64
	Signature         solana.Signature
	MintSignature     solana.Signature
	MetadataSignature solana.Signature
	MetadataErr       error
}

// Service выпускает токены и управляет ими.
type Service struct {
	ledger      Ledger
	submitter   Submitter
	retryCfg    retry.Config
	invalidator interface{ Invalidate(solana.PublicKey) }
	observer    RetryObserver
	accounts    AccountResolver
	logger      *zap.Logger
}

// Option настраивает Service.
type Option func(*Service)

// WithMetadataCache сбрасывает кэш метаданных после привязки.
func WithMetadataCache(c interface{ Invalidate(solana.PublicKey) }) Option {
	return func(s *Service) { s.invalidator = c }
}

// WithAccounts подключает кэш ATA владельца.
func WithAccounts(r AccountResolver) Option {
	return func(s *Service) { s.accounts = r }
}

// WithRetryObserver подключает счётчик повторов.
func WithRetryObserver(o RetryObserver) Option {
	return func(s *Service) { s.observer = o }
}

func NewService(ledger Ledger, submitter Submitter, retryCfg retry.Config, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:    ledger,
		submitter: submitter,
		retryCfg:  retryCfg,
		logger:    logger.Named("token-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateToken создаёт mint, ATA владельца, выпускает InitialSupply токенов
// и пытается привязать метаданные.
func (s *Service) CreateToken(ctx context.Context, info types.TokenInfo) (*CreateResult, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	supply, err := types.ToBaseUnits(InitialSupply, info.Decimals)
	if err != nil {
		return nil, err
	}

	owner := s.submitter.Payer()
	mintKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate mint key: %w", err)
	}
	mint := mintKey.PublicKey()
	log, end := logger.TrackPerformance(s.logger, "create-token")
	defer end()
	log = log.With(zap.String("mint", mint.String()), zap.String("symbol", info.Symbol))

	rent, err := s.ledger.GetMinimumBalanceForRentExemption(ctx, blockchain.MintAccountSize)
	if err != nil {
		return nil, fmt.Errorf("get rent exemption: %w", err)
	}

	createRes, err := s.submitter.SendAndConfirm(ctx, "create-mint", []solana.Instruction{
		system.NewCreateAccountInstruction(rent, blockchain.MintAccountSize, solana.TokenProgramID, owner, mint).Build(),
		token.NewInitializeMintInstruction(info.Decimals, owner, owner, mint, solana.SysVarRentPubkey).Build(),
	}, mintKey)
	if err != nil {
		return nil, fmt.Errorf("create mint: %w", err)
	}
	log.Info("Mint account created", zap.String("signature", createRes.Signature.String()))

	ata, err := s.tokenAccount(owner, mint)
	if err != nil {
		return nil, err
	}
	mintRes, err := s.submitter.SendAndConfirm(ctx, "initial-mint", []solana.Instruction{
		associatedtokenaccount.NewCreateInstruction(owner, owner, mint).Build(),
		token.NewMintToInstruction(supply, mint, ata, owner, nil).Build(),
	})
	if err != nil {
		return nil, fmt.Errorf("mint initial supply: %w", err)
	}

	result := &CreateResult{
		Mint:          mint,
		TokenAccount:  ata,
		InitialSupply: supply,
		Signature:     createRes.Signature,
		MintSignature: mintRes.Signature,
	}

	// Ошибка метаданных не отменяет созданный токен.
	sig, err := s.AttachMetadata(ctx, mint, info.Name, info.Symbol, info.URI)
	if err != nil {
		log.Warn("Token created without metadata", zap.Error(err))
		result.MetadataErr = err
		return result, nil
	}
	result.MetadataSignature = sig
	return result, nil
}

// AttachMetadata создаёт Metaplex-метаданные для mint через общий
// механизм повторов. Ошибки валидации не повторяются.
func (s *Service) AttachMetadata(ctx context.Context, mint solana.PublicKey, name, symbol, uri string) (solana.Signature, error) {
	if err := types.ValidateMetadataFields(name, symbol, uri); err != nil {
		return solana.Signature{}, err
	}
	owner := s.submitter.Payer()
	metaAddr, err := metadata.FindAddress(mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("derive metadata address: %w", err)
	}
	log, end := logger.TrackPerformance(s.logger, "attach-metadata")
	defer end()
	log = log.With(zap.String("mint", mint.String()))

	attempt := 0
	op := func(ctx context.Context) (solana.Signature, error) {
		attempt++
		// Повтор после потерянного подтверждения не должен писать второй раз.
		exists, err := s.ledger.AccountExists(ctx, metaAddr)
		if err != nil {
			return solana.Signature{}, err
		}
		if exists {
			if attempt > 1 {
				log.Warn("Metadata account appeared after a failed attempt",
					zap.Int("attempt", attempt))
			}
			return solana.Signature{}, retry.Permanent(ErrMetadataExists)
		}

		ix, err := metadata.NewCreateInstruction(metadata.CreateParams{
			Mint:            mint,
			MintAuthority:   owner,
			Payer:           owner,
			UpdateAuthority: owner,
			Name:            name,
			Symbol:          symbol,
			URI:             uri,
			IsMutable:       true,
		})
		if err != nil {
			return solana.Signature{}, retry.Permanent(err)
		}
		res, err := s.submitter.SendAndConfirm(ctx, "attach-metadata", []solana.Instruction{ix})
		if err != nil {
			if transaction.IsValidationError(err) {
				return solana.Signature{}, retry.Permanent(err)
			}
			return solana.Signature{}, err
		}
		return res.Signature, nil
	}

	sig, err := retry.Do(ctx, s.retryCfg, op,
		retry.WithLogger(log),
		retry.WithName("attach-metadata"),
		retry.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			if s.observer != nil {
				s.observer.RecordRetry("attach-metadata")
			}
		}),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("attach metadata to %s: %w", mint, err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(mint)
	}
	log.Info("Metadata attached", zap.String("signature", sig.String()))
	return sig, nil
}

// MintTokens выпускает amount (в целых токенах, "1.5") на ATA владельца.
func (s *Service) MintTokens(ctx context.Context, mint solana.PublicKey, amount string) (solana.Signature, error) {
	facts, err := s.splMint(ctx, mint)
	if err != nil {
		return solana.Signature{}, err
	}
	owner := s.submitter.Payer()
	if !facts.HasMintAuthority(owner) {
		return solana.Signature{}, types.NewValidationError("mint", "wallet is not the mint authority")
	}
	raw, err := types.ParseAmount("amount", amount, facts.Decimals)
	if err != nil {
		return solana.Signature{}, err
	}

	ata, ixs, err := s.ensureTokenAccount(ctx, owner, mint)
	if err != nil {
		return solana.Signature{}, err
	}
	ixs = append(ixs, token.NewMintToInstruction(raw, mint, ata, owner, nil).Build())

	res, err := s.submitter.SendAndConfirm(ctx, "mint-tokens", ixs)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("mint tokens: %w", err)
	}
	return res.Signature, nil
}

// TransferTokens переводит amount токенов на кошелёк to, создавая ATA
// получателя при необходимости.
func (s *Service) TransferTokens(ctx context.Context, mint, to solana.PublicKey, amount string) (solana.Signature, error) {
	facts, err := s.splMint(ctx, mint)
	if err != nil {
		return solana.Signature{}, err
	}
	raw, err := types.ParseAmount("amount", amount, facts.Decimals)
	if err != nil {
		return solana.Signature{}, err
	}
	owner := s.submitter.Payer()
	source, err := s.tokenAccount(owner, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	dest, ixs, err := s.ensureTokenAccount(ctx, to, mint)
	if err != nil {
		return solana.Signature{}, err
	}
	ixs = append(ixs, token.NewTransferCheckedInstruction(raw, facts.Decimals, source, mint, dest, owner, nil).Build())

	res, err := s.submitter.SendAndConfirm(ctx, "transfer-tokens", ixs)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("transfer tokens: %w", err)
	}
	return res.Signature, nil
}

// splMint читает mint и отклоняет mint-ы Token-2022: инструкции строятся
// для классической программы.
func (s *Service) splMint(ctx context.Context, mint solana.PublicKey) (*blockchain.MintFacts, error) {
	facts, err := s.ledger.GetMintFacts(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("read mint %s: %w", mint, err)
	}
	if !facts.ProgramID.IsZero() && !facts.ProgramID.Equals(solana.TokenProgramID) {
		return nil, types.NewValidationError("mint", "only SPL Token program mints are supported")
	}
	return facts, nil
}

// ensureTokenAccount возвращает ATA wallet и инструкцию его создания, если его нет.
func (s *Service) ensureTokenAccount(ctx context.Context, wallet, mint solana.PublicKey) (solana.PublicKey, []solana.Instruction, error) {
	ata, err := s.tokenAccount(wallet, mint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	exists, err := s.ledger.AccountExists(ctx, ata)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("check token account: %w", err)
	}
	if exists {
		return ata, nil, nil
	}
	s.logger.Debug("Token account missing, will create",
		zap.String("wallet", wallet.String()),
		zap.String("ata", ata.String()))
	return ata, []solana.Instruction{
		associatedtokenaccount.NewCreateInstruction(s.submitter.Payer(), wallet, mint).Build(),
	}, nil
}

// tokenAccount вычисляет ATA; для собственного кошелька через кэш.
func (s *Service) tokenAccount(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	if s.accounts != nil && wallet.Equals(s.submitter.Payer()) {
		ata, err := s.accounts.GetATA(mint)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("derive token account: %w", err)
		}
		return ata, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token account: %w", err)
	}
	return ata, nil
}
