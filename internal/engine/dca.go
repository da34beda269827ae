// Package engine ties the volatility engine, the level generator, the
// position book and the order execution engine into the scaled ATR DCA
// lifecycle: trigger -> ladder -> sequential placement -> fills -> done.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
	"github.com/asterfi/0xLIQD-Bybit/internal/execution"
	"github.com/asterfi/0xLIQD-Bybit/internal/infra"
	"github.com/asterfi/0xLIQD-Bybit/internal/ladder"
	"github.com/asterfi/0xLIQD-Bybit/internal/monitor"
	"github.com/asterfi/0xLIQD-Bybit/internal/position"
	"github.com/asterfi/0xLIQD-Bybit/internal/storage"
	"github.com/asterfi/0xLIQD-Bybit/internal/volatility"

	"github.com/google/uuid"
)

const (
	inboxSize          = 1024
	housekeepingPeriod = time.Minute
)

// EquitySource supplies account equity for the allocation cap. Nil disables
// the cap check.
type EquitySource interface {
	Equity(ctx context.Context) (float64, error)
}

// DCAEngine is the orchestrating façade. External triggers call
// InitializeDCAPosition; order updates from the exchange stream flow in
// through Inbox and drive the ladder forward.
type DCAEngine struct {
	cfg  domain.DCAConfig
	atr  *volatility.Engine
	book *position.Book
	exec *execution.Engine

	store  *storage.Store
	mon    *monitor.Monitor
	equity EquitySource

	// keyLocks serializes logical operations per (symbol, side) so a fill
	// and a fresh trigger on the same ladder can never interleave.
	keyLocks *infra.KeyedMutex

	inbox chan domain.OrderUpdate

	// persistCh coalesces snapshot requests: a cap-1 channel means a burst
	// of mutations produces one write, never a backlog.
	persistCh chan struct{}
}

// New creates the DCA engine. store and equity may be nil (tests, paper
// runs without persistence).
func New(cfg domain.DCAConfig, atr *volatility.Engine, book *position.Book,
	exec *execution.Engine, store *storage.Store, mon *monitor.Monitor, equity EquitySource) *DCAEngine {

	return &DCAEngine{
		cfg:       cfg,
		atr:       atr,
		book:      book,
		exec:      exec,
		store:     store,
		mon:       mon,
		equity:    equity,
		keyLocks:  infra.NewKeyedMutex(),
		inbox:     make(chan domain.OrderUpdate, inboxSize),
		persistCh: make(chan struct{}, 1),
	}
}

// Inbox returns the channel the order stream worker feeds.
func (e *DCAEngine) Inbox() chan<- domain.OrderUpdate {
	return e.inbox
}

// Recover reloads persisted state: positions (with their working orders
// re-indexed so tracking resumes without re-placing), live cache entries
// and lifetime statistics.
func (e *DCAEngine) Recover(ctx context.Context) error {
	if e.store == nil {
		slog.Info("No store configured, starting fresh")
		return nil
	}

	positions, err := e.store.LoadPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}
	e.book.Restore(positions)

	cache, err := e.store.LoadCache(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cache: %w", err)
	}
	e.atr.LoadCache(cache)

	stats, err := e.store.LoadStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if stats != nil {
		e.mon.MergeStats(*stats)
	}

	slog.Info("State recovered",
		slog.Int("positions", len(positions)),
		slog.Int("cache_entries", len(cache)),
		slog.Int("active", e.book.CountActive()),
		slog.Int("working_orders", e.book.CountActiveOrders()))
	return nil
}

// InitializeDCAPosition computes volatility, generates the ladder, stores
// the position and places the first level. Fails with ErrDuplicatePosition
// when an active ladder already exists for (symbol, side); nothing is
// mutated in that case.
func (e *DCAEngine) InitializeDCAPosition(ctx context.Context, symbol string, side domain.Side, basePrice, baseSize float64) (*domain.PositionState, error) {
	if !side.Valid() {
		return nil, &domain.ConfigError{Field: "side", Reason: fmt.Sprintf("unrecognized %q", side)}
	}
	if basePrice <= 0 || baseSize <= 0 {
		return nil, &domain.ConfigError{Field: "base", Reason: "price and size must be positive"}
	}

	key := symbol + "|" + string(side)
	e.keyLocks.Lock(key)
	defer e.keyLocks.Unlock(key)

	// Fast duplicate check before spending a candle fetch on a ladder that
	// cannot start. Create re-checks under the book lock.
	if existing, ok := e.book.GetActive(symbol, side); ok {
		return nil, fmt.Errorf("%w: %s held by %s", domain.ErrDuplicatePosition, key, existing.ID)
	}

	atrValue, err := e.atr.Calculate(ctx, symbol, volatility.Params{
		Timeframe: e.cfg.Timeframe,
		Length:    e.cfg.ATRLength,
	})
	if err != nil {
		return nil, err
	}

	levels := ladder.Generate(side, basePrice, baseSize, atrValue, ladder.ScalingConfig{
		ATRDeviation: e.cfg.ATRDeviation,
		StepScale:    e.cfg.StepScale,
		VolumeScale:  e.cfg.VolumeScale,
		NumOrders:    e.cfg.NumOrders,
	})

	if err := e.checkAllocation(ctx, levels); err != nil {
		return nil, err
	}

	pos := &domain.PositionState{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		BasePrice:  basePrice,
		BaseSize:   baseSize,
		Volatility: atrValue,
		Levels:     levels,
		Status:     domain.PositionActive,
	}

	if err := e.book.Create(pos); err != nil {
		return nil, err
	}
	e.mon.IncPositionsStarted()
	e.requestPersist()

	slog.Info("DCA position initialized",
		slog.String("id", pos.ID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Float64("base_price", basePrice),
		slog.Float64("atr", atrValue),
		slog.Int("levels", len(levels)))

	// Place the first rung. A submission failure marks the level failed
	// and surfaces; the position itself stays recorded.
	if _, err := e.exec.PlaceLevel(ctx, pos, levels[0]); err != nil {
		e.requestPersist()
		return nil, err
	}
	e.requestPersist()

	snapshot, _ := e.book.Get(pos.ID)
	return snapshot, nil
}

// HandleOrderUpdate applies one exchange order event. Unknown order ids are
// ignored (stale updates after recovery or operator cancels).
func (e *DCAEngine) HandleOrderUpdate(ctx context.Context, update domain.OrderUpdate) {
	pos, ok := e.book.PositionForOrder(update.OrderID)
	if !ok {
		slog.Debug("Order update for untracked order", slog.String("order_id", update.OrderID))
		return
	}

	key := pos.Key()
	e.keyLocks.Lock(key)
	defer e.keyLocks.Unlock(key)

	switch update.Kind {
	case domain.OrderUpdateFill:
		e.handleFill(ctx, update)
	case domain.OrderUpdateCancel:
		if _, ok := e.book.ApplyCancel(update.OrderID); ok {
			e.requestPersist()
		}
	default:
		slog.Warn("Unknown order update kind", slog.String("kind", string(update.Kind)))
	}
}

// handleFill advances the ladder: record the fill, then place the next
// pending level while still holding the per-key lock.
func (e *DCAEngine) handleFill(ctx context.Context, update domain.OrderUpdate) {
	res, ok := e.book.ApplyFill(update)
	if !ok {
		return
	}
	e.mon.IncOrdersFilled()
	e.requestPersist()

	slog.Info("Level filled",
		slog.String("position", res.Position.ID),
		slog.String("symbol", res.Position.Symbol),
		slog.Int("ordinal", res.FilledLevel.Ordinal),
		slog.Float64("fill_price", update.FillPrice),
		slog.Float64("qty", update.FilledQty),
		slog.Float64("avg_entry", res.Position.AvgEntryPrice))

	if res.Completed {
		e.mon.IncPositionsCompleted()
		return
	}

	if res.NextOrdinal > 0 {
		next := levelSnapshot(res.Position, res.NextOrdinal)
		if next == nil {
			return
		}
		if _, err := e.exec.PlaceLevel(ctx, res.Position, *next); err != nil {
			slog.Error("Failed to place next level",
				slog.String("position", res.Position.ID),
				slog.Int("ordinal", res.NextOrdinal),
				slog.Any("error", err))
		}
		e.requestPersist()
	}
}

// CancelActiveLevel is the operator-invoked cancel for a position's working
// order. Cancellation is terminal for the slot; the ladder is not advanced.
func (e *DCAEngine) CancelActiveLevel(ctx context.Context, positionID string) bool {
	pos, ok := e.book.Get(positionID)
	if !ok {
		return false
	}

	key := pos.Key()
	e.keyLocks.Lock(key)
	defer e.keyLocks.Unlock(key)

	level := pos.ActiveLevel()
	if level == nil {
		return false
	}

	if !e.exec.CancelLevel(ctx, pos, *level) {
		e.requestPersist()
		return false
	}
	if _, ok := e.book.ApplyCancel(level.OrderID); ok {
		e.requestPersist()
	}
	return true
}

// Run consumes the order update inbox and runs housekeeping (expiry sweep,
// retention purge, persistence writer) until ctx is cancelled.
func (e *DCAEngine) Run(ctx context.Context) {
	slog.Info("DCA engine started")

	ticker := time.NewTicker(housekeepingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("DCA engine stopping...")
			e.flushPersist()
			return
		case update := <-e.inbox:
			e.HandleOrderUpdate(ctx, update)
		case <-e.persistCh:
			e.persistNow(ctx)
		case <-ticker.C:
			e.sweepExpired(ctx)
			e.purgeRetained()
		}
	}
}

// sweepExpired cancels working orders older than the fill timeout: a ladder
// rung that sat unfilled past the timeout is cancelled and its slot closed.
func (e *DCAEngine) sweepExpired(ctx context.Context) {
	if e.cfg.FillTimeoutMinutes <= 0 {
		return
	}

	timeout := time.Duration(e.cfg.FillTimeoutMinutes) * time.Minute
	for _, stale := range e.book.StaleActiveLevels(timeout) {
		slog.Info("Expiring stale level",
			slog.String("position", stale.PositionID),
			slog.String("symbol", stale.Symbol),
			slog.Int("ordinal", stale.Level.Ordinal),
			slog.String("order_id", stale.Level.OrderID))
		e.CancelActiveLevel(ctx, stale.PositionID)
	}
}

// purgeRetained drops completed positions past the retention window.
func (e *DCAEngine) purgeRetained() {
	if e.cfg.RetentionMinutes <= 0 {
		return
	}
	retention := time.Duration(e.cfg.RetentionMinutes) * time.Minute
	if e.book.PurgeCompleted(retention) > 0 {
		e.requestPersist()
	}
}

// checkAllocation rejects ladders whose full notional would exceed the
// configured share of account equity. Skipped when no equity source is
// wired (paper runs, tests).
func (e *DCAEngine) checkAllocation(ctx context.Context, levels []domain.Level) error {
	if e.equity == nil {
		return nil
	}

	equity, err := e.equity.Equity(ctx)
	if err != nil || equity <= 0 {
		slog.Warn("Equity lookup failed, skipping allocation cap", slog.Any("error", err))
		return nil
	}

	notional := 0.0
	for _, l := range levels {
		notional += l.OrderPrice * l.OrderSize
	}

	budget := equity * e.cfg.MaxTotalAllocationPct / 100
	if notional > budget {
		return &domain.ConfigError{
			Field:  "max_total_allocation_pct",
			Reason: fmt.Sprintf("ladder notional %.2f exceeds budget %.2f", notional, budget),
		}
	}
	return nil
}

// requestPersist schedules an asynchronous snapshot. Writes coalesce; a
// failure is logged and non-fatal, in-memory state stays authoritative.
func (e *DCAEngine) requestPersist() {
	select {
	case e.persistCh <- struct{}{}:
	default:
	}
}

func (e *DCAEngine) persistNow(ctx context.Context) {
	if e.store == nil {
		return
	}
	err := e.store.SaveState(ctx, e.book.SnapshotAll(), e.atr.CacheSnapshot(), e.mon.Stats())
	if err != nil {
		slog.Error("State snapshot failed", slog.Any("error", err))
	}
}

// flushPersist performs a final synchronous snapshot on shutdown.
func (e *DCAEngine) flushPersist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.persistNow(ctx)
}

// DumpState writes a post-mortem JSON dump of all positions and counters.
func (e *DCAEngine) DumpState(path string) {
	if err := storage.WriteStateDump(path, e.book.SnapshotAll(), e.mon.Stats()); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}

func levelSnapshot(pos *domain.PositionState, ordinal int) *domain.Level {
	for i := range pos.Levels {
		if pos.Levels[i].Ordinal == ordinal {
			l := pos.Levels[i]
			return &l
		}
	}
	return nil
}
