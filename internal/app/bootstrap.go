package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/asterfi/0xLIQD-Bybit/internal/infra"
	"github.com/asterfi/0xLIQD-Bybit/internal/storage"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config  *infra.Config
	Store   *storage.Store
	DataDir string

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, sets up logging and opens the state store.
func (b *Bootstrap) Initialize() error {
	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("Bootstrapping",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("mode", cfg.Trading.Mode))

	// 3. Data isolation per mode: _workspace/data/{mode}/state.db
	mode := strings.ToLower(cfg.Trading.Mode)
	if mode == "" {
		mode = "paper"
	}

	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	b.DataDir = dataDir

	// 4. Singleton instance lock: two engines sharing one state DB would
	// both believe they are the single writer.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 5. State store (WAL-mode SQLite)
	dbPath := filepath.Join(dataDir, "state.db")
	store, err := storage.NewStore(dbPath)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("State store initialized", slog.String("path", dbPath), slog.String("mode", mode))

	return nil
}

// Shutdown releases the store and the instance lock.
func (b *Bootstrap) Shutdown() {
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Warn("Store close failed", slog.Any("error", err))
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}
