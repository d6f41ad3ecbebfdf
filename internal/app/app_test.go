// internal/app/app_test.go
package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-launchpad/internal/dex"
	"github.com/rovshanmuradov/solana-launchpad/internal/logger"
	"github.com/rovshanmuradov/solana-launchpad/internal/wallet"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body += "log_file: " + filepath.Join(dir, "logs", "app.log") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewBuildsGraph(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	path := writeConfig(t, "rpc_list:\n  - http://127.0.0.1:8899\nprivate_key: "+key.String()+"\n")
	buf := logger.NewLogBuffer(10)

	a, err := New(Options{ConfigPath: path, LogBuffer: buf})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, key.PublicKey(), a.Wallet.PublicKey())
	assert.Equal(t, key.PublicKey(), a.Dashboard.Owner())
	assert.Equal(t, dex.ModeSimulation, a.AMM.Mode())
	assert.Equal(t, []string{"http://127.0.0.1:8899"}, a.Config.RPCList)
	assert.NotNil(t, a.Server())

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	entries := buf.GetRecentLogs(10)
	require.NotEmpty(t, entries)
	assert.Equal(t, "Launchpad initialized", entries[len(entries)-1].Message)
}

func TestNewRequiresWallet(t *testing.T) {
	path := writeConfig(t, "cluster: devnet\n")

	_, err := New(Options{ConfigPath: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
}

func TestNewRejectsLiveAMM(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	path := writeConfig(t, "private_key: "+key.String()+"\namm:\n  mode: live\n")

	_, err := New(Options{ConfigPath: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, dex.ErrLiveModeUnsupported)
}

func TestNewInvalidConfig(t *testing.T) {
	path := writeConfig(t, "cluster: moonnet\n")

	_, err := New(Options{ConfigPath: path})
	assert.Error(t, err)
}
