package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
	"github.com/asterfi/0xLIQD-Bybit/internal/infra"
	"github.com/asterfi/0xLIQD-Bybit/internal/position"
)

const maxSubmitAttempts = 3

// Recorder receives execution samples and counters. Implemented by the
// health monitor; nil disables sampling.
type Recorder interface {
	RecordOrderLatency(d time.Duration)
	IncOrdersPlaced()
	IncOrdersFailed()
	IncOrdersCancelled()
}

// Engine drives level transitions in the position book by talking to the
// exchange. All orders are limit orders normalized against the instrument
// tick/step constraints.
type Engine struct {
	gateway ExchangeGateway
	book    *position.Book
	breaker *infra.CircuitBreaker
	limiter *infra.RateLimiter
	rec     Recorder

	// constraints cache, used when the live query fails.
	consMu      sync.RWMutex
	constraints map[string]domain.InstrumentConstraints

	// sleep is injectable so retry tests do not take minutes.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates the order execution engine.
func NewEngine(gateway ExchangeGateway, book *position.Book, rec Recorder) *Engine {
	return &Engine{
		gateway:     gateway,
		book:        book,
		breaker:     infra.DefaultCircuitBreaker("exchange"),
		limiter:     infra.GetOrderLimiter(),
		rec:         rec,
		constraints: make(map[string]domain.InstrumentConstraints),
		sleep:       sleepCtx,
	}
}

// PlaceLevel submits the level's limit order. On success the level is
// marked active in the book and the order id returned. Transient errors are
// retried up to 3 attempts with exponential backoff plus jitter; a
// rate-limit rejection gets one cooled-down extra attempt before falling
// back to the standard policy. Exhausted retries mark the level failed and
// surface a SubmitError.
func (e *Engine) PlaceLevel(ctx context.Context, pos *domain.PositionState, level domain.Level) (string, error) {
	cons := e.constraintsFor(ctx, pos.Symbol)

	req := SubmitRequest{
		Symbol: pos.Symbol,
		Side:   orderSide(pos.Side),
		Price:  NormalizePrice(level.OrderPrice, cons),
		Qty:    NormalizeQty(level.OrderSize, cons),
	}

	started := time.Now()
	orderID, err := e.submitWithRetry(ctx, req)
	if err != nil {
		e.book.MarkLevelFailed(pos.ID, level.Ordinal)
		if e.rec != nil {
			e.rec.IncOrdersFailed()
		}
		return "", err
	}

	if err := e.book.MarkLevelPlaced(pos.ID, level.Ordinal, orderID); err != nil {
		// The book rejected the transition (ladder raced). The exchange
		// order exists, so undo it rather than leave an untracked order.
		slog.Warn("Order placed but book rejected transition, cancelling",
			slog.String("position", pos.ID),
			slog.Int("ordinal", level.Ordinal),
			slog.Any("error", err))
		e.cancelQuietly(ctx, pos.Symbol, orderID)
		return "", err
	}

	if e.rec != nil {
		e.rec.RecordOrderLatency(time.Since(started))
		e.rec.IncOrdersPlaced()
	}

	slog.Info("Level placed",
		slog.String("position", pos.ID),
		slog.String("symbol", pos.Symbol),
		slog.Int("ordinal", level.Ordinal),
		slog.String("price", req.Price),
		slog.String("qty", req.Qty),
		slog.String("order_id", orderID))

	return orderID, nil
}

// CancelLevel cancels the level's working order. It never returns an
// error: failures are recorded as level status cancel_failed so cleanup and
// reporting are not blocked by a single stuck cancel.
func (e *Engine) CancelLevel(ctx context.Context, pos *domain.PositionState, level domain.Level) bool {
	if level.OrderID == "" || level.Status != domain.LevelActive {
		return false
	}

	e.limiter.Wait()
	resp, err := e.gateway.CancelOrder(ctx, pos.Symbol, level.OrderID)
	if err != nil || resp.Code != 0 {
		slog.Warn("Cancel failed",
			slog.String("position", pos.ID),
			slog.String("order_id", level.OrderID),
			slog.Int("code", resp.Code),
			slog.Any("error", err))
		e.book.MarkLevelCancelFailed(pos.ID, level.Ordinal)
		return false
	}

	if e.rec != nil {
		e.rec.IncOrdersCancelled()
	}
	return true
}

// submitWithRetry runs the retry policy: per attempt, rate-limit errors get
// one cooled-down retry of the same operation before counting against the
// standard 3-attempt exponential backoff.
func (e *Engine) submitWithRetry(ctx context.Context, req SubmitRequest) (string, error) {
	var lastErr error
	cooledDown := false

	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		orderID, err := e.trySubmit(ctx, req)
		if err == nil {
			return orderID, nil
		}
		lastErr = err

		if IsRateLimit(err) && !cooledDown {
			cooledDown = true
			wait := infra.RateLimitCooldown()
			slog.Warn("Rate limited, cooling down",
				slog.String("symbol", req.Symbol),
				slog.Duration("wait", wait))
			if err := e.sleep(ctx, wait); err != nil {
				return "", err
			}
			attempt-- // the cooled-down retry does not consume an attempt
			continue
		}

		if attempt < maxSubmitAttempts {
			wait := infra.BackoffWithJitter(attempt - 1)
			slog.Warn("Order submission failed, retrying",
				slog.String("symbol", req.Symbol),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", err))
			if err := e.sleep(ctx, wait); err != nil {
				return "", err
			}
		}
	}

	return "", &domain.SubmitError{Symbol: req.Symbol, Attempts: maxSubmitAttempts, Err: lastErr}
}

// trySubmit performs one gated submission attempt.
func (e *Engine) trySubmit(ctx context.Context, req SubmitRequest) (string, error) {
	if !e.breaker.Allow() {
		return "", fmt.Errorf("exchange circuit breaker open")
	}

	e.limiter.Wait()
	resp, err := e.gateway.SubmitOrder(ctx, req)
	if err != nil {
		e.breaker.RecordFailure()
		return "", err
	}
	if resp.Code != 0 || resp.OrderID == "" {
		e.breaker.RecordFailure()
		return "", fmt.Errorf("exchange rejected order: code=%d msg=%s", resp.Code, resp.Message)
	}

	e.breaker.RecordSuccess()
	return resp.OrderID, nil
}

// constraintsFor resolves instrument constraints: live query, then cached
// snapshot, then the conservative default.
func (e *Engine) constraintsFor(ctx context.Context, symbol string) domain.InstrumentConstraints {
	cons, err := e.gateway.GetInstrumentConstraints(ctx, symbol)
	if err == nil && cons.StepSize > 0 && cons.TickSize > 0 {
		e.consMu.Lock()
		e.constraints[symbol] = cons
		e.consMu.Unlock()
		return cons
	}

	e.consMu.RLock()
	cached, ok := e.constraints[symbol]
	e.consMu.RUnlock()
	if ok {
		slog.Warn("Instrument query failed, using cached constraints",
			slog.String("symbol", symbol), slog.Any("error", err))
		return cached
	}

	slog.Warn("Instrument query failed, using default constraints",
		slog.String("symbol", symbol), slog.Any("error", err))
	return DefaultConstraints
}

// cancelQuietly is best-effort; used only to undo a half-committed place.
func (e *Engine) cancelQuietly(ctx context.Context, symbol, orderID string) {
	if _, err := e.gateway.CancelOrder(ctx, symbol, orderID); err != nil {
		slog.Warn("Best-effort cancel failed",
			slog.String("symbol", symbol),
			slog.String("order_id", orderID),
			slog.Any("error", err))
	}
}

// orderSide maps ladder direction to the exchange order side. A long DCA
// ladder buys dips; a short ladder sells rallies.
func orderSide(side domain.Side) string {
	if side == domain.SideShort {
		return "Sell"
	}
	return "Buy"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
