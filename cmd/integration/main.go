// Paper-mode smoke harness: runs one full DCA ladder lifecycle against the
// in-memory mock exchange, with no credentials, network, or persistence.
// Useful for verifying the wiring end to end before touching a real account.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
	"github.com/asterfi/0xLIQD-Bybit/internal/engine"
	"github.com/asterfi/0xLIQD-Bybit/internal/execution"
	"github.com/asterfi/0xLIQD-Bybit/internal/monitor"
	"github.com/asterfi/0xLIQD-Bybit/internal/position"
	"github.com/asterfi/0xLIQD-Bybit/internal/volatility"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	slog.Info("Starting paper smoke run...")

	gateway := execution.NewMockGateway()
	gateway.Candles = syntheticCandles(15)

	book := position.NewBook()
	mon := monitor.NewMonitor(book, 80)
	atr := volatility.NewEngine(gateway, mon)
	exec := execution.NewEngine(gateway, book, mon)

	cfg := domain.DefaultDCAConfig()
	cfg.NumOrders = 3

	eng := engine.New(cfg, atr, book, exec, nil, mon, nil)
	ctx := context.Background()

	// STEP 1: trigger a long ladder.
	pos, err := eng.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideLong, 50000, 0.01)
	if err != nil {
		slog.Error("Initialize failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Ladder created",
		slog.String("id", pos.ID),
		slog.Float64("atr", pos.Volatility),
		slog.Int("levels", len(pos.Levels)))
	for _, lvl := range pos.Levels {
		fmt.Printf("  level %d: price=%.2f size=%.4f deviation=%.2f (%.3f%%)\n",
			lvl.Ordinal, lvl.OrderPrice, lvl.OrderSize, lvl.Deviation, lvl.DeviationPct)
	}

	// STEP 2: fill every rung as if the market walked through the ladder.
	for i := 0; i < cfg.NumOrders; i++ {
		current, _ := book.Get(pos.ID)
		if current.ActiveOrderID == "" {
			slog.Error("No working order", slog.Int("rung", i+1))
			os.Exit(1)
		}
		eng.HandleOrderUpdate(ctx, domain.OrderUpdate{
			Kind:      domain.OrderUpdateFill,
			OrderID:   current.ActiveOrderID,
			Symbol:    current.Symbol,
			FillPrice: current.Levels[i].OrderPrice,
			FilledQty: current.Levels[i].OrderSize,
		})
	}

	// STEP 3: verify the terminal state.
	final, _ := book.Get(pos.ID)
	if final.Status != domain.PositionCompleted {
		slog.Error("Ladder did not complete", slog.String("status", string(final.Status)))
		os.Exit(1)
	}

	stats := mon.Stats()
	slog.Info("Ladder completed",
		slog.Float64("avg_entry", final.AvgEntryPrice),
		slog.Float64("total_allocated", final.TotalAllocated),
		slog.Int64("orders_placed", stats.OrdersPlaced),
		slog.Int64("orders_filled", stats.OrdersFilled))
	slog.Info("Smoke run passed")
}

// syntheticCandles builds a gently oscillating series so the ATR is small
// but nonzero.
func syntheticCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		swing := float64(50 + 25*(i%3))
		out[i] = domain.Candle{
			OpenUnix: int64(i) * 3600,
			Open:     50000,
			High:     50000 + swing,
			Low:      50000 - swing,
			Close:    50000,
		}
	}
	return out
}
