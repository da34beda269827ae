// atrprobe fetches live candles from the public Bybit kline endpoint,
// computes the current ATR and prints the ladder a trigger would produce at
// the latest close. Read-only: no keys, no orders.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
	"github.com/asterfi/0xLIQD-Bybit/internal/infra/bybit"
	"github.com/asterfi/0xLIQD-Bybit/internal/ladder"
	"github.com/asterfi/0xLIQD-Bybit/internal/volatility"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "instrument to probe")
	timeframe := flag.String("timeframe", "1h", "candle timeframe (1m..1w)")
	length := flag.Int("length", 14, "ATR period")
	side := flag.String("side", "long", "ladder side: long or short")
	baseSize := flag.Float64("size", 0.01, "base order size")
	flag.Parse()

	cfg := domain.DefaultDCAConfig()
	cfg.Timeframe = *timeframe
	cfg.ATRLength = *length
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid parameters: %v\n", err)
		os.Exit(1)
	}
	if !domain.Side(*side).Valid() {
		fmt.Fprintf(os.Stderr, "invalid side %q, want long or short\n", *side)
		os.Exit(1)
	}

	client := bybit.NewClient("", "linear", "", "", 0)
	atr := volatility.NewEngine(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	value, err := atr.Calculate(ctx, *symbol, volatility.Params{
		Timeframe: cfg.Timeframe,
		Length:    cfg.ATRLength,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ATR computation failed: %v\n", err)
		os.Exit(1)
	}

	candles, err := client.GetCandles(ctx, *symbol, cfg.Timeframe, 1)
	if err != nil || len(candles) == 0 {
		fmt.Fprintf(os.Stderr, "failed to fetch latest close: %v\n", err)
		os.Exit(1)
	}
	base := candles[len(candles)-1].Close

	fmt.Printf("%s %s ATR(%d) = %.4f  (%.3f%% of price)\n",
		*symbol, cfg.Timeframe, cfg.ATRLength, value, value/base*100)
	fmt.Printf("ladder preview at base %.2f, side=%s:\n", base, *side)

	levels := ladder.Generate(domain.Side(*side), base, *baseSize, value, ladder.ScalingConfig{
		ATRDeviation: cfg.ATRDeviation,
		StepScale:    cfg.StepScale,
		VolumeScale:  cfg.VolumeScale,
		NumOrders:    cfg.NumOrders,
	})
	for _, lvl := range levels {
		fmt.Printf("  %d: price=%.2f size=%.4f deviation=%.2f (%.3f%%)\n",
			lvl.Ordinal, lvl.OrderPrice, lvl.OrderSize, lvl.Deviation, lvl.DeviationPct)
	}
}
