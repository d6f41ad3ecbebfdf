// cmd/launchpad/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/app"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

var errUsage = errors.New("usage")

// env - общие параметры всех подкоманд.
type env struct {
	configPath string
	verbose    bool
	stdout     io.Writer
	stderr     io.Writer
	open       func(app.Options) (*app.App, error)
}

// command - подкоманда CLI. run сначала разбирает флаги и только потом
// открывает App, поэтому ошибки ввода не требуют сети и кошелька.
type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"serve":       {usage: "run the HTTP API", run: runServe},
	"tokens":      {usage: "discover wallet tokens and print or export them", run: runTokens},
	"lookup":      {usage: "look up a token by mint address", run: runLookup},
	"create":      {usage: "create a token with metadata", run: runCreate},
	"metadata":    {usage: "attach metadata to an existing mint", run: runMetadata},
	"mint":        {usage: "mint more tokens to the wallet", run: runMint},
	"transfer":    {usage: "transfer tokens to another wallet", run: runTransfer},
	"launch":      {usage: "launch a token sale (simulated AMM)", run: runLaunch},
	"pools":       {usage: "list wallet pools or check a mint for a pool", run: runPools},
	"pool-create": {usage: "create a token/SOL pool (simulated AMM)", run: runPoolCreate},
	"pool-add":    {usage: "add liquidity to a pool", run: runPoolAdd},
	"pool-remove": {usage: "remove liquidity from a pool", run: runPoolRemove},
	"swap":        {usage: "quote or execute a swap (simulated AMM)", run: runSwap},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	e := &env{stdout: stdout, stderr: stderr, open: app.New}

	global := flag.NewFlagSet("launchpad", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.StringVar(&e.configPath, "config", "", "path to config file (yaml or json); LAUNCHPAD_* env vars apply either way")
	global.BoolVar(&e.verbose, "v", false, "print logs to the console")
	global.Usage = func() { printUsage(stderr, global) }
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		global.Usage()
		return errUsage
	}
	return cmd.run(ctx, e, rest[1:])
}

func printUsage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: launchpad [-config path] [-v] <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].usage)
	}
	fmt.Fprintln(w, "\nGlobal flags:")
	global.PrintDefaults()
}

// newFlagSet создаёт набор флагов подкоманды.
func (e *env) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// withApp открывает App, выполняет fn и закрывает лог.
func (e *env) withApp(console bool, fn func(a *app.App) error) error {
	a, err := e.open(app.Options{ConfigPath: e.configPath, Console: console || e.verbose})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(e.stderr, "failed to close logger: %v\n", err)
		}
	}()

	if err := fn(a); err != nil {
		a.Logger.Error("Command failed", zap.Error(err))
		return err
	}
	return nil
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// required проверяет обязательные строковые флаги.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return types.NewValidationError(pairs[i], "is required")
		}
	}
	return nil
}
