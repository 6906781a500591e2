package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"market_voice/internal/domain"
	"market_voice/internal/infra"
	"market_voice/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Downloader *infra.IconDownloader
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Market Voice...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Initialize Icon Downloader
	downloader, err := infra.NewIconDownloader()
	if err != nil {
		return err
	}
	b.Downloader = downloader
	slog.Info("✅ Icon downloader ready")

	return nil
}

// SyncSymbols reconciles the database with the configured watch list and
// fetches missing currency icons in the background. Pairs removed from
// the watch list stay in the DB but are marked inactive.
func (b *Bootstrap) SyncSymbols(ctx context.Context) {
	slog.Info("🔄 Starting symbol synchronization...")

	specs := b.Config.SymbolSpecs()

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, spec := range specs {
		wg.Add(1)
		go func(spec domain.SymbolSpec) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			// 1. Upsert to DB
			info := &domain.SymbolInfo{
				Symbol:    spec.Symbol,
				JPName:    spec.JPName,
				Digits:    spec.Digits,
				IsActive:  true,
				UpdatedAt: time.Now(),
			}

			// Check if exists to preserve IsFavorite
			if existing, _ := b.Storage.GetSymbol(spec.Symbol); existing != nil {
				info.IsFavorite = existing.IsFavorite
				info.IconPath = existing.IconPath
				info.LastSyncedAt = existing.LastSyncedAt
			}

			if err := b.Storage.UpsertSymbol(info); err != nil {
				slog.Error("Failed to upsert symbol", slog.String("symbol", spec.Symbol), slog.Any("error", err))
			}

			// 2. Download Icon (if missing)
			path, err := b.Downloader.DownloadIcon(spec.Symbol)
			if err != nil {
				slog.Warn("Failed to download icon", slog.String("symbol", spec.Symbol), slog.Any("error", err))
			} else if path != "" {
				info.IconPath = path
				info.LastSyncedAt = time.Now()
				b.Storage.UpsertSymbol(info)
			}
		}(spec)
	}

	wg.Wait()

	keep := make([]string, 0, len(specs))
	for _, spec := range specs {
		keep = append(keep, spec.Symbol)
	}
	if err := b.Storage.DeactivateMissing(keep); err != nil {
		slog.Error("Failed to deactivate removed symbols", slog.Any("error", err))
	}

	slog.Info("✨ Symbol synchronization completed")
}
