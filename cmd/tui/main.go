// cmd/tui/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/app"
	"github.com/rovshanmuradov/solana-launchpad/internal/logger"
	"github.com/rovshanmuradov/solana-launchpad/internal/ui"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file (optional, LAUNCHPAD_* env vars also apply)")
	flag.Parse()

	// Create context with signal handling
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Консоль занята экраном: лог пишется в файл и в буфер панели логов
	logs := logger.NewLogBuffer(200)
	a, err := app.New(app.Options{ConfigPath: *configPath, LogBuffer: logs})
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer func() {
		_ = a.Close()
	}()

	a.Logger.Info("Starting token dashboard", zap.String("owner", a.Wallet.PublicKey().String()))

	program := tea.NewProgram(
		ui.NewModel(a.Dashboard, logs, a.Logger.Logger),
		tea.WithAltScreen(),
		tea.WithContext(rootCtx),
	)

	if _, err := program.Run(); err != nil && rootCtx.Err() == nil {
		a.Logger.Error("TUI application failed", zap.Error(err))
	}
	a.Logger.Info("Shutting down token dashboard")
}
