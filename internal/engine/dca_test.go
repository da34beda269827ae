package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
	"github.com/asterfi/0xLIQD-Bybit/internal/execution"
	"github.com/asterfi/0xLIQD-Bybit/internal/monitor"
	"github.com/asterfi/0xLIQD-Bybit/internal/position"
	"github.com/asterfi/0xLIQD-Bybit/internal/storage"
	"github.com/asterfi/0xLIQD-Bybit/internal/volatility"
)

type testRig struct {
	gateway *execution.MockGateway
	book    *position.Book
	mon     *monitor.Monitor
	engine  *DCAEngine
}

func testCandles() []domain.Candle {
	out := make([]domain.Candle, 15)
	for i := range out {
		out[i] = domain.Candle{
			OpenUnix: int64(i) * 3600,
			Open:     100,
			High:     101 + float64(i%3),
			Low:      99 - float64(i%2),
			Close:    100,
		}
	}
	return out
}

func testConfig() domain.DCAConfig {
	cfg := domain.DefaultDCAConfig()
	cfg.NumOrders = 3
	return cfg
}

func newTestRig(t *testing.T, store *storage.Store, equity EquitySource) *testRig {
	t.Helper()

	gateway := execution.NewMockGateway()
	gateway.Candles = testCandles()

	book := position.NewBook()
	mon := monitor.NewMonitor(book, 80)
	atr := volatility.NewEngine(gateway, mon)
	exec := execution.NewEngine(gateway, book, mon)

	return &testRig{
		gateway: gateway,
		book:    book,
		mon:     mon,
		engine:  New(testConfig(), atr, book, exec, store, mon, equity),
	}
}

func TestInitializeDCAPosition(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	pos, err := rig.engine.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideLong, 100, 10)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if len(pos.Levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(pos.Levels))
	}
	if pos.Volatility <= 0 {
		t.Errorf("volatility = %v, want > 0", pos.Volatility)
	}
	if pos.Status != domain.PositionActive {
		t.Errorf("status = %s, want active", pos.Status)
	}

	// The first rung is working, the rest untouched.
	if pos.Levels[0].Status != domain.LevelActive {
		t.Errorf("level 1 status = %s, want active", pos.Levels[0].Status)
	}
	for _, lvl := range pos.Levels[1:] {
		if lvl.Status != domain.LevelPending {
			t.Errorf("level %d status = %s, want pending", lvl.Ordinal, lvl.Status)
		}
	}

	if rig.gateway.SubmitCount() != 1 {
		t.Errorf("submissions = %d, want 1", rig.gateway.SubmitCount())
	}

	stats := rig.mon.Stats()
	if stats.PositionsStarted != 1 || stats.OrdersPlaced != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestInitializeDuplicateRejected(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	first, err := rig.engine.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideLong, 100, 10)
	if err != nil {
		t.Fatal(err)
	}

	_, err = rig.engine.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideLong, 101, 5)
	if !errors.Is(err, domain.ErrDuplicatePosition) {
		t.Fatalf("error = %v, want ErrDuplicatePosition", err)
	}

	// The original ladder is untouched and no extra order went out.
	current, _ := rig.book.Get(first.ID)
	if current.BasePrice != 100 || current.ActiveOrderID != first.ActiveOrderID {
		t.Error("original position modified by rejected duplicate")
	}
	if rig.gateway.SubmitCount() != 1 {
		t.Errorf("submissions = %d, want 1", rig.gateway.SubmitCount())
	}

	// A different side is its own ladder.
	if _, err := rig.engine.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideShort, 100, 10); err != nil {
		t.Errorf("short ladder rejected: %v", err)
	}
}

func TestInitializeValidation(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		side  domain.Side
		price float64
		size  float64
	}{
		{"Bad Side", domain.Side("sideways"), 100, 10},
		{"Zero Price", domain.SideLong, 0, 10},
		{"Negative Size", domain.SideLong, 100, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rig.engine.InitializeDCAPosition(ctx, "BTCUSDT", tt.side, tt.price, tt.size)
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error = %v, want ConfigError", err)
			}
		})
	}

	if rig.gateway.SubmitCount() != 0 {
		t.Errorf("submissions = %d for invalid triggers", rig.gateway.SubmitCount())
	}
}

func TestFillsAdvanceToCompletion(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	pos, err := rig.engine.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideLong, 100, 10)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		current, _ := rig.book.Get(pos.ID)
		orderID := current.ActiveOrderID
		if orderID == "" {
			t.Fatalf("no working order before fill %d", i+1)
		}

		rig.engine.HandleOrderUpdate(ctx, domain.OrderUpdate{
			Kind:      domain.OrderUpdateFill,
			OrderID:   orderID,
			Symbol:    "BTCUSDT",
			FillPrice: current.Levels[i].OrderPrice,
			FilledQty: current.Levels[i].OrderSize,
		})
	}

	final, _ := rig.book.Get(pos.ID)
	if final.Status != domain.PositionCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if len(final.ExecutedOrdinals) != 3 {
		t.Errorf("executed = %v, want 3 fills", final.ExecutedOrdinals)
	}
	if final.AvgEntryPrice <= 0 || final.AvgEntryPrice >= 100 {
		t.Errorf("avg entry = %v, want below base for a long ladder", final.AvgEntryPrice)
	}

	// One order per rung, no re-placements.
	if rig.gateway.SubmitCount() != 3 {
		t.Errorf("submissions = %d, want 3", rig.gateway.SubmitCount())
	}

	stats := rig.mon.Stats()
	if stats.OrdersFilled != 3 || stats.PositionsCompleted != 1 {
		t.Errorf("stats = %+v", stats)
	}

	// The key is free for the next ladder.
	if _, err := rig.engine.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideLong, 100, 10); err != nil {
		t.Errorf("new ladder after completion rejected: %v", err)
	}
}

func TestCancelActiveLevel(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	pos, err := rig.engine.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideLong, 100, 10)
	if err != nil {
		t.Fatal(err)
	}

	if !rig.engine.CancelActiveLevel(ctx, pos.ID) {
		t.Fatal("cancel reported failure")
	}

	current, _ := rig.book.Get(pos.ID)
	if current.Levels[0].Status != domain.LevelCancelled {
		t.Errorf("level 1 status = %s, want cancelled", current.Levels[0].Status)
	}
	if current.Status != domain.PositionActive {
		t.Errorf("position status = %s, want active (pending rungs remain)", current.Status)
	}
	if len(rig.gateway.Cancelled) != 1 {
		t.Errorf("gateway cancels = %d, want 1", len(rig.gateway.Cancelled))
	}

	// No working order left to cancel.
	if rig.engine.CancelActiveLevel(ctx, pos.ID) {
		t.Error("second cancel reported success")
	}
}

func TestUnknownOrderUpdateIgnored(t *testing.T) {
	rig := newTestRig(t, nil, nil)

	// Must not panic or mutate anything.
	rig.engine.HandleOrderUpdate(context.Background(), domain.OrderUpdate{
		Kind:    domain.OrderUpdateFill,
		OrderID: "ghost",
	})

	if rig.book.CountActive() != 0 {
		t.Error("untracked update created state")
	}
}

type fixedEquity struct {
	value float64
	err   error
}

func (f *fixedEquity) Equity(ctx context.Context) (float64, error) {
	return f.value, f.err
}

func TestAllocationCap(t *testing.T) {
	// The three-rung ladder notional is a few thousand; an account with 100
	// equity and a 50% cap cannot fund it.
	rig := newTestRig(t, nil, &fixedEquity{value: 100})

	_, err := rig.engine.InitializeDCAPosition(context.Background(), "BTCUSDT", domain.SideLong, 100, 10)
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
	if rig.gateway.SubmitCount() != 0 {
		t.Errorf("submissions = %d for over-budget ladder", rig.gateway.SubmitCount())
	}
	if rig.book.CountActive() != 0 {
		t.Error("over-budget ladder stored")
	}
}

func TestAllocationCapSkippedOnEquityError(t *testing.T) {
	// A broken equity feed must not block trading; the cap is advisory then.
	rig := newTestRig(t, nil, &fixedEquity{err: errors.New("wallet endpoint down")})

	if _, err := rig.engine.InitializeDCAPosition(context.Background(), "BTCUSDT", domain.SideLong, 100, 10); err != nil {
		t.Fatalf("initialize with failing equity source: %v", err)
	}
}

func TestRecoverResumesLadder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := storage.NewStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}

	rig := newTestRig(t, store, nil)
	pos, err := rig.engine.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideLong, 100, 10)
	if err != nil {
		t.Fatal(err)
	}
	rig.engine.persistNow(ctx)
	store.Close()

	// Fresh process against the same database.
	reopened, err := storage.NewStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	restored := newTestRig(t, reopened, nil)
	if err := restored.engine.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}

	if restored.book.CountActive() != 1 {
		t.Fatalf("active = %d after recover, want 1", restored.book.CountActive())
	}
	if restored.book.CountActiveOrders() != 1 {
		t.Fatalf("working orders = %d after recover, want 1", restored.book.CountActiveOrders())
	}

	// The restored engine keeps tracking the pre-restart order: its fill
	// advances the ladder and places rung 2.
	recovered, _ := restored.book.Get(pos.ID)
	restored.engine.HandleOrderUpdate(ctx, domain.OrderUpdate{
		Kind:      domain.OrderUpdateFill,
		OrderID:   recovered.ActiveOrderID,
		Symbol:    "BTCUSDT",
		FillPrice: recovered.Levels[0].OrderPrice,
		FilledQty: recovered.Levels[0].OrderSize,
	})

	after, _ := restored.book.Get(pos.ID)
	if after.Levels[0].Status != domain.LevelFilled {
		t.Errorf("level 1 status = %s, want filled", after.Levels[0].Status)
	}
	if after.Levels[1].Status != domain.LevelActive {
		t.Errorf("level 2 status = %s, want active", after.Levels[1].Status)
	}

	// The duplicate guard survives the restart.
	_, err = restored.engine.InitializeDCAPosition(ctx, "BTCUSDT", domain.SideLong, 100, 10)
	if !errors.Is(err, domain.ErrDuplicatePosition) {
		t.Errorf("error = %v, want ErrDuplicatePosition", err)
	}
}
