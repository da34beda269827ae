package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/app"
	"github.com/asterfi/0xLIQD-Bybit/internal/engine"
	"github.com/asterfi/0xLIQD-Bybit/internal/execution"
	"github.com/asterfi/0xLIQD-Bybit/internal/infra/bybit"
	"github.com/asterfi/0xLIQD-Bybit/internal/monitor"
	"github.com/asterfi/0xLIQD-Bybit/internal/position"
	"github.com/asterfi/0xLIQD-Bybit/internal/volatility"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Secrets may live in .env during development; missing file is fine.
	_ = godotenv.Load()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	cfg := bootstrap.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Exchange gateway: the scriptable mock in paper mode, live REST
	// otherwise.
	var gateway execution.ExchangeGateway
	if strings.ToLower(cfg.Trading.Mode) == "real" {
		gateway = bybit.NewClient(
			cfg.API.Bybit.RestURL,
			cfg.API.Bybit.Category,
			cfg.API.Bybit.AccessKey,
			cfg.API.Bybit.SecretKey,
			cfg.API.Bybit.RecvWindow,
		)
	} else {
		gateway = execution.NewMockGateway()
		slog.Info("Paper mode: using mock exchange gateway")
	}

	book := position.NewBook()
	mon := monitor.NewMonitor(book, cfg.Monitor.LoadThreshold)
	atr := volatility.NewEngine(gateway, mon)
	exec := execution.NewEngine(gateway, book, mon)

	dca := engine.New(cfg.DCA, atr, book, exec, bootstrap.Store, mon, nil)
	if err := dca.Recover(ctx); err != nil {
		slog.Error("State recovery failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Health sampling
	sampleInterval := time.Duration(cfg.Monitor.SampleIntervalSec) * time.Second
	if sampleInterval <= 0 {
		sampleInterval = 30 * time.Second
	}
	mon.Start(ctx, sampleInterval)
	defer mon.Stop()

	// Prometheus exposition
	if addr := cfg.Monitor.MetricsAddr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("Metrics server started", slog.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
	}

	// Order stream (live mode only; the mock gateway produces no stream)
	if strings.ToLower(cfg.Trading.Mode) == "real" {
		worker := bybit.NewOrderWorker(
			cfg.API.Bybit.WSURL,
			cfg.API.Bybit.AccessKey,
			cfg.API.Bybit.SecretKey,
			dca.Inbox(),
		)
		if err := worker.Connect(ctx); err != nil {
			slog.Error("Failed to connect order stream", slog.Any("error", err))
			os.Exit(1)
		}
		defer worker.Disconnect()
	}

	go dca.Run(ctx)

	slog.Info("Scaled ATR DCA engine operational. Press Ctrl+C to exit.")
	<-ctx.Done()

	slog.Info("Shutting down gracefully...")
	dca.DumpState(filepath.Join(bootstrap.DataDir, "last_state.json"))
}
