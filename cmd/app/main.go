package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market_voice/internal/app"
	"market_voice/internal/broker"
	"market_voice/internal/domain"
	"market_voice/internal/engine"
	"market_voice/internal/infra/mt5"
	"market_voice/internal/server"
	"market_voice/internal/service"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background Symbol/Icon Sync
	go bootstrap.SyncSymbols(ctx)

	// 5. Price Feed (MT5 bridge). A dead feed at startup is fatal: there
	// is nothing to announce without prices.
	specs := cfg.SymbolSpecs()
	symbols := make([]string, 0, len(specs))
	for _, spec := range specs {
		symbols = append(symbols, spec.Symbol)
	}

	source := mt5.NewClient(cfg.Feed.BridgeURL, symbols, cfg.RequestTimeout())
	if err := source.Connect(ctx); err != nil {
		slog.Error("❌ Price feed unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer source.Disconnect()

	// 6. Core Pipeline: detector -> queue -> worker -> broker
	detector := domain.NewDetector(specs, cfg.Thresholds())
	queue := engine.NewSpeechQueue()
	hub := broker.New()

	worker := engine.NewSpeechWorker(queue, hub, cfg.SpeechCooldown())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	monitor := service.NewPriceMonitor(source, detector, queue, hub, service.MonitorConfig{
		UpdateInterval:  cfg.UpdateInterval(),
		RecoverInterval: cfg.RecoverInterval(),
		SeverityMessage: cfg.SeverityMessage,
	})
	go monitor.Run(ctx)

	// 7. Listeners
	initConfig := map[string]any{
		"update_interval":  cfg.Feed.UpdateIntervalSec,
		"speech_interval":  cfg.Speech.IntervalSec,
		"small_threshold":  cfg.Movement.SmallThreshold,
		"medium_threshold": cfg.Movement.MediumThreshold,
		"large_threshold":  cfg.Movement.LargeThreshold,
		"symbols":          symbols,
	}

	speechSrv := server.NewSpeechServer(
		fmt.Sprintf("%s:%d", cfg.Server.WSHost, cfg.Server.WSPort), hub, queue)
	dashboardSrv := server.NewDashboardServer(
		fmt.Sprintf("%s:%d", cfg.Server.WSHost, cfg.Server.DashboardPort), hub, monitor, initConfig)
	webSrv := server.NewWebServer(
		fmt.Sprintf("%s:%d", cfg.Server.WSHost, cfg.Server.HTTPPort), bootstrap.Downloader.BasePath(), queue)

	speechSrv.Start()
	dashboardSrv.Start()
	webSrv.Start()

	slog.InfoContext(ctx, "✨ Market Voice fully operational. Press Ctrl+C to exit.",
		slog.Int("symbols", len(symbols)))

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	speechSrv.Shutdown(shutdownCtx)
	dashboardSrv.Shutdown(shutdownCtx)
	webSrv.Shutdown(shutdownCtx)

	queue.Close()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
	}

	hub.CloseAll()
}
