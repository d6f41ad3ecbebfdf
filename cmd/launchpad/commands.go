// cmd/launchpad/commands.go
package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/app"
	"github.com/rovshanmuradov/solana-launchpad/internal/dex"
	"github.com/rovshanmuradov/solana-launchpad/internal/export"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

func runServe(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("serve")
	noRefresh := fs.Bool("no-refresh", false, "skip the initial token discovery")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return e.withApp(true, func(a *app.App) error {
		if !*noRefresh {
			go func() {
				if _, err := a.Dashboard.Refresh(ctx); err != nil {
					a.Logger.Warn("Initial refresh failed", zap.Error(err))
				}
			}()
		}
		return a.Server().Run(ctx)
	})
}

func runTokens(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("tokens")
	format := fs.String("format", "json", "output format: json or csv")
	created := fs.Bool("created", false, "only tokens where the wallet is mint authority")
	nonZero := fs.Bool("nonzero", false, "skip zero balances")
	outDir := fs.String("out", "", "write a timestamped file to this directory instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}

	return e.withApp(false, func(a *app.App) error {
		records, err := a.Dashboard.Refresh(ctx)
		if err != nil {
			return err
		}
		opts := export.Options{
			Format:      f,
			Owner:       a.Wallet.PublicKey().String(),
			CreatedOnly: *created,
			NonZeroOnly: *nonZero,
			OutputDir:   *outDir,
		}
		if *outDir == "" {
			_, err := a.Exporter.Write(e.stdout, records, opts)
			return err
		}
		path, err := a.Exporter.ExportTokens(records, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, path)
		return nil
	})
}

func runLookup(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("lookup")
	rawMint := fs.String("mint", "", "token mint address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := types.ParseAddress("mint", *rawMint)
	if err != nil {
		return err
	}

	return e.withApp(false, func(a *app.App) error {
		rec, _, err := a.Dashboard.Lookup(ctx, mint)
		if err != nil {
			return err
		}
		return e.printJSON(rec)
	})
}

type createOutput struct {
	Mint              string `json:"mint"`
	TokenAccount      string `json:"token_account"`
	InitialSupply     uint64 `json:"initial_supply"`
	Signature         string `json:"signature"`
	MintSignature     string `json:"mint_signature"`
	MetadataSignature string `json:"metadata_signature,omitempty"`
	MetadataError     string `json:"metadata_error,omitempty"`
}

func runCreate(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("create")
	name := fs.String("name", "", "token name")
	symbol := fs.String("symbol", "", "token symbol")
	uri := fs.String("uri", "", "metadata JSON uri")
	decimals := fs.Uint("decimals", 9, "token decimals (0-9)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *decimals > 255 {
		return types.NewValidationError("decimals", "out of range")
	}
	info := types.TokenInfo{Name: *name, Symbol: *symbol, URI: *uri, Decimals: uint8(*decimals)}
	if err := info.Validate(); err != nil {
		return err
	}

	return e.withApp(true, func(a *app.App) error {
		res, err := a.Tokens.CreateToken(ctx, info)
		if err != nil {
			return err
		}
		out := createOutput{
			Mint:          res.Mint.String(),
			TokenAccount:  res.TokenAccount.String(),
			InitialSupply: res.InitialSupply,
			Signature:     res.Signature.String(),
			MintSignature: res.MintSignature.String(),
		}
		if !res.MetadataSignature.IsZero() {
			out.MetadataSignature = res.MetadataSignature.String()
		}
		if res.MetadataErr != nil {
			out.MetadataError = res.MetadataErr.Error()
			fmt.Fprintf(e.stderr, "token created without metadata, retry with: launchpad metadata -mint %s\n", res.Mint)
		}
		return e.printJSON(out)
	})
}

func runMetadata(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("metadata")
	rawMint := fs.String("mint", "", "token mint address")
	name := fs.String("name", "", "token name")
	symbol := fs.String("symbol", "", "token symbol")
	uri := fs.String("uri", "", "metadata JSON uri")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := types.ParseAddress("mint", *rawMint)
	if err != nil {
		return err
	}
	if err := types.ValidateMetadataFields(*name, *symbol, *uri); err != nil {
		return err
	}

	return e.withApp(true, func(a *app.App) error {
		sig, err := a.Tokens.AttachMetadata(ctx, mint, *name, *symbol, *uri)
		if err != nil {
			return err
		}
		return e.printSignature(sig)
	})
}

func runMint(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("mint")
	rawMint := fs.String("mint", "", "token mint address")
	amount := fs.String("amount", "", "amount in whole tokens")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := types.ParseAddress("mint", *rawMint)
	if err != nil {
		return err
	}
	if err := required("amount", *amount); err != nil {
		return err
	}

	return e.withApp(true, func(a *app.App) error {
		sig, err := a.Tokens.MintTokens(ctx, mint, *amount)
		if err != nil {
			return err
		}
		return e.printSignature(sig)
	})
}

func runTransfer(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("transfer")
	rawMint := fs.String("mint", "", "token mint address")
	rawTo := fs.String("to", "", "recipient wallet address")
	amount := fs.String("amount", "", "amount in whole tokens")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := types.ParseAddress("mint", *rawMint)
	if err != nil {
		return err
	}
	to, err := types.ParseAddress("to", *rawTo)
	if err != nil {
		return err
	}
	if err := required("amount", *amount); err != nil {
		return err
	}

	return e.withApp(true, func(a *app.App) error {
		sig, err := a.Tokens.TransferTokens(ctx, mint, to, *amount)
		if err != nil {
			return err
		}
		return e.printSignature(sig)
	})
}

func runLaunch(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("launch")
	rawMint := fs.String("mint", "", "token mint address")
	price := fs.String("price", "", "price in SOL per token")
	supply := fs.String("supply", "", "tokens offered for sale")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := types.ParseAddress("mint", *rawMint)
	if err != nil {
		return err
	}

	return e.withApp(true, func(a *app.App) error {
		res, err := a.AMM.LaunchSale(ctx, dex.LaunchRequest{Mint: mint, Price: *price, TotalSupply: *supply})
		if err != nil {
			return err
		}
		return e.printJSON(res)
	})
}

func runPools(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("pools")
	check := fs.String("check", "", "only report whether this mint has a pool")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var mint solana.PublicKey
	if *check != "" {
		var err error
		if mint, err = types.ParseAddress("check", *check); err != nil {
			return err
		}
	}

	return e.withApp(false, func(a *app.App) error {
		if !mint.IsZero() {
			has, err := a.AMM.HasPool(ctx, mint)
			if err != nil {
				return err
			}
			return e.printJSON(dex.PoolCheck{Mint: mint.String(), HasPool: has})
		}
		pools, err := a.AMM.ListUserPools(ctx)
		if err != nil {
			return err
		}
		if pools == nil {
			pools = []dex.PoolInfo{}
		}
		return e.printJSON(pools)
	})
}

func runPoolCreate(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("pool-create")
	rawMint := fs.String("mint", "", "token mint address")
	tokenAmount := fs.String("tokens", "", "token amount to deposit")
	solAmount := fs.String("sol", "", "SOL amount to deposit")
	price := fs.String("price", "", "initial price in SOL per token (default sol/tokens)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := types.ParseAddress("mint", *rawMint)
	if err != nil {
		return err
	}

	return e.withApp(true, func(a *app.App) error {
		res, err := a.AMM.CreatePool(ctx, dex.CreatePoolRequest{
			Mint:         mint,
			TokenAmount:  *tokenAmount,
			SOLAmount:    *solAmount,
			InitialPrice: *price,
		})
		if err != nil {
			return err
		}
		return e.printJSON(res)
	})
}

func runPoolAdd(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("pool-add")
	poolID := fs.String("pool", "", "pool id")
	tokenAmount := fs.String("tokens", "", "token amount to deposit")
	solAmount := fs.String("sol", "", "SOL amount to deposit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("pool", *poolID); err != nil {
		return err
	}

	return e.withApp(true, func(a *app.App) error {
		res, err := a.AMM.AddLiquidity(ctx, dex.AddLiquidityRequest{
			PoolID:      *poolID,
			TokenAmount: *tokenAmount,
			SOLAmount:   *solAmount,
		})
		if err != nil {
			return err
		}
		return e.printJSON(res)
	})
}

func runPoolRemove(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("pool-remove")
	poolID := fs.String("pool", "", "pool id")
	percent := fs.String("percent", "100", "share of liquidity to withdraw, (0, 100]")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("pool", *poolID); err != nil {
		return err
	}

	return e.withApp(true, func(a *app.App) error {
		res, err := a.AMM.RemoveLiquidity(ctx, dex.RemoveLiquidityRequest{PoolID: *poolID, Percentage: *percent})
		if err != nil {
			return err
		}
		return e.printJSON(res)
	})
}

func runSwap(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("swap")
	rawMint := fs.String("mint", "", "token mint address")
	direction := fs.String("direction", string(dex.SOLToToken), "sol_to_token or token_to_sol")
	amount := fs.String("amount", "", "input amount (SOL or tokens)")
	price := fs.String("price", "", "price in SOL per token, empty for the simulated price")
	slippage := fs.Float64("slippage", types.DefaultSlippagePercent, "slippage tolerance in percent")
	noSlippage := fs.Bool("no-slippage", false, "do not enforce a minimum output")
	quoteOnly := fs.Bool("quote", false, "only print the quote")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := types.ParseAddress("mint", *rawMint)
	if err != nil {
		return err
	}
	req := dex.SwapRequest{
		Mint:      mint,
		Direction: dex.SwapDirection(*direction),
		Amount:    *amount,
		Price:     *price,
		Slippage:  types.SlippageConfig{Type: types.SlippagePercent, Value: *slippage},
	}
	if *noSlippage {
		req.Slippage = types.SlippageConfig{Type: types.SlippageNone}
	}
	if err := req.Slippage.Validate(); err != nil {
		return err
	}

	return e.withApp(!*quoteOnly, func(a *app.App) error {
		if *quoteOnly {
			q, err := a.AMM.Quote(ctx, req)
			if err != nil {
				return err
			}
			return e.printJSON(q)
		}
		res, err := a.AMM.Swap(ctx, req)
		if err != nil {
			return err
		}
		return e.printJSON(res)
	})
}

func (e *env) printSignature(sig solana.Signature) error {
	return e.printJSON(map[string]string{"signature": sig.String()})
}
