// Package position owns every DCA position and enforces the lifecycle
// invariants: duplicate prevention per (symbol, side), the sequential-ladder
// rule of at most one working order per position, and single-writer access
// with copy-out reads.
package position

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
)

// FillResult describes what a fill did to a position, returned to the
// caller so it can advance the ladder without re-reading state.
type FillResult struct {
	Position    *domain.PositionState // snapshot after the fill
	FilledLevel domain.Level
	NextOrdinal int  // ordinal of the next pending level, 0 when none
	Completed   bool // position transitioned to completed by this fill
}

// Book is the single-writer table of all DCA positions. Readers get deep
// copies; mutation happens only through Book methods under one mutex.
type Book struct {
	mu sync.RWMutex

	byID         map[string]*domain.PositionState
	activeByKey  map[string]string // symbol|side -> position id
	activeOrders map[string]string // exchange order id -> position id

	onLevelFilled       []func(pos *domain.PositionState, level domain.Level)
	onPositionCompleted []func(pos *domain.PositionState)

	now func() time.Time
}

// NewBook creates an empty position book.
func NewBook() *Book {
	return &Book{
		byID:         make(map[string]*domain.PositionState),
		activeByKey:  make(map[string]string),
		activeOrders: make(map[string]string),
		now:          time.Now,
	}
}

// OnLevelFilled registers a subscriber invoked after every level fill.
// Subscribers receive snapshots and run outside the book lock.
func (b *Book) OnLevelFilled(fn func(pos *domain.PositionState, level domain.Level)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onLevelFilled = append(b.onLevelFilled, fn)
}

// OnPositionCompleted registers a subscriber invoked when a position
// finishes its ladder.
func (b *Book) OnPositionCompleted(fn func(pos *domain.PositionState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPositionCompleted = append(b.onPositionCompleted, fn)
}

// Create inserts a new active position. Fails with ErrDuplicatePosition
// when an active position already exists for the (symbol, side) pair;
// nothing is mutated in that case.
func (b *Book) Create(p *domain.PositionState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := p.Key()
	if existingID, ok := b.activeByKey[key]; ok {
		return fmt.Errorf("%w: %s held by %s", domain.ErrDuplicatePosition, key, existingID)
	}

	stored := p.Clone()
	stored.Status = domain.PositionActive
	if stored.StartedAtUnix == 0 {
		stored.StartedAtUnix = b.now().Unix()
	}

	b.byID[stored.ID] = stored
	b.activeByKey[key] = stored.ID
	return nil
}

// MarkLevelPlaced records a successful order submission for a level. It
// enforces the sequential-ladder invariant: placing while another level is
// active is rejected.
func (b *Book) MarkLevelPlaced(positionID string, ordinal int, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.byID[positionID]
	if !ok {
		return fmt.Errorf("unknown position %s", positionID)
	}
	if p.ActiveOrderID != "" {
		return fmt.Errorf("position %s already has active order %s", positionID, p.ActiveOrderID)
	}

	level := levelByOrdinal(p, ordinal)
	if level == nil {
		return fmt.Errorf("position %s has no level %d", positionID, ordinal)
	}
	if level.Status != domain.LevelPending {
		return fmt.Errorf("level %d of %s is %s, not pending", ordinal, positionID, level.Status)
	}

	level.MarkPlaced(orderID, b.now())
	p.ActiveOrderID = orderID
	b.activeOrders[orderID] = positionID
	return nil
}

// MarkLevelFailed records an exhausted-retry submission failure. The slot
// is terminal; the ladder is not advanced automatically.
func (b *Book) MarkLevelFailed(positionID string, ordinal int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.byID[positionID]
	if !ok {
		return
	}
	if level := levelByOrdinal(p, ordinal); level != nil && !level.Status.IsTerminal() {
		b.detachOrder(p, level)
		level.Status = domain.LevelFailed
	}
	b.completeIfExhaustedLocked(p)
}

// MarkLevelCancelFailed records a cancel attempt the exchange rejected.
// Recorded as state rather than raised so housekeeping is never blocked by
// a single stuck cancel.
func (b *Book) MarkLevelCancelFailed(positionID string, ordinal int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.byID[positionID]
	if !ok {
		return
	}
	if level := levelByOrdinal(p, ordinal); level != nil && level.Status == domain.LevelActive {
		b.detachOrder(p, level)
		level.Status = domain.LevelCancelFailed
	}
	b.completeIfExhaustedLocked(p)
}

// completeIfExhaustedLocked completes a position with nothing working and
// nothing pending. A ladder whose last slot went terminal without a fill is
// done; leaving it active would hold the (symbol, side) key forever.
func (b *Book) completeIfExhaustedLocked(p *domain.PositionState) {
	if p.ActiveLevel() == nil && p.NextPendingLevel() == nil && p.IsActive() {
		b.completeLocked(p)
	}
}

// ApplyFill transitions the level tracking orderID to filled, appends it to
// the executed sequence, updates allocation and the size-weighted average
// entry, and completes the position when the ladder is exhausted.
// Returns ok=false when no position tracks the order (stale/unknown fill).
func (b *Book) ApplyFill(update domain.OrderUpdate) (FillResult, bool) {
	b.mu.Lock()

	positionID, ok := b.activeOrders[update.OrderID]
	if !ok {
		b.mu.Unlock()
		return FillResult{}, false
	}
	p := b.byID[positionID]
	level := p.LevelByOrderID(update.OrderID)
	if level == nil || level.Status != domain.LevelActive {
		b.mu.Unlock()
		return FillResult{}, false
	}

	b.detachOrder(p, level)
	level.MarkFilled(update.FillPrice, update.FilledQty, b.now())
	p.ExecutedOrdinals = append(p.ExecutedOrdinals, level.Ordinal)
	p.TotalAllocated += update.FilledQty
	p.RecomputeAvgEntry()

	res := FillResult{FilledLevel: *level}
	if next := p.NextPendingLevel(); next != nil {
		res.NextOrdinal = next.Ordinal
	} else {
		b.completeLocked(p)
		res.Completed = true
	}
	res.Position = p.Clone()

	filledSubs := append([]func(*domain.PositionState, domain.Level){}, b.onLevelFilled...)
	completedSubs := append([]func(*domain.PositionState){}, b.onPositionCompleted...)
	b.mu.Unlock()

	for _, fn := range filledSubs {
		fn(res.Position, res.FilledLevel)
	}
	if res.Completed {
		for _, fn := range completedSubs {
			fn(res.Position)
		}
	}

	return res, true
}

// ApplyCancel marks the level tracking orderID as cancelled. Cancellation
// is terminal for the slot: the ladder is not advanced automatically.
// Returns the position snapshot for persistence, ok=false for unknown ids.
func (b *Book) ApplyCancel(orderID string) (*domain.PositionState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	positionID, ok := b.activeOrders[orderID]
	if !ok {
		return nil, false
	}
	p := b.byID[positionID]
	level := p.LevelByOrderID(orderID)
	if level == nil || level.Status != domain.LevelActive {
		return nil, false
	}

	b.detachOrder(p, level)
	level.Status = domain.LevelCancelled

	b.completeIfExhaustedLocked(p)

	return p.Clone(), true
}

// Get returns a snapshot of the position by id.
func (b *Book) Get(positionID string) (*domain.PositionState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.byID[positionID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// GetActive returns a snapshot of the active position for (symbol, side).
func (b *Book) GetActive(symbol string, side domain.Side) (*domain.PositionState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	id, ok := b.activeByKey[symbol+"|"+string(side)]
	if !ok {
		return nil, false
	}
	return b.byID[id].Clone(), true
}

// PositionForOrder resolves which position tracks an exchange order id.
func (b *Book) PositionForOrder(orderID string) (*domain.PositionState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	id, ok := b.activeOrders[orderID]
	if !ok {
		return nil, false
	}
	return b.byID[id].Clone(), true
}

// SnapshotAll returns deep copies of every retained position, keyed by id.
func (b *Book) SnapshotAll() map[string]*domain.PositionState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]*domain.PositionState, len(b.byID))
	for id, p := range b.byID {
		out[id] = p.Clone()
	}
	return out
}

// CountActive returns the number of active positions.
func (b *Book) CountActive() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.activeByKey)
}

// CountActiveOrders returns the number of working exchange orders.
func (b *Book) CountActiveOrders() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.activeOrders)
}

// StaleActiveLevels returns (positionID, level snapshot) pairs for levels
// that have been working longer than timeout. Used by the expiry sweep.
func (b *Book) StaleActiveLevels(timeout time.Duration) []StaleLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cutoff := b.now().Add(-timeout).Unix()
	var out []StaleLevel
	for id, p := range b.byID {
		if !p.IsActive() {
			continue
		}
		if level := p.ActiveLevel(); level != nil && level.PlacedAtUnix > 0 && level.PlacedAtUnix < cutoff {
			out = append(out, StaleLevel{PositionID: id, Symbol: p.Symbol, Level: *level})
		}
	}
	return out
}

// StaleLevel identifies one over-age working order.
type StaleLevel struct {
	PositionID string
	Symbol     string
	Level      domain.Level
}

// PurgeCompleted drops completed positions older than the retention window
// and returns how many were removed.
func (b *Book) PurgeCompleted(retention time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-retention).Unix()
	purged := 0
	for id, p := range b.byID {
		if p.Status == domain.PositionCompleted && p.CompletedAtUnix > 0 && p.CompletedAtUnix < cutoff {
			delete(b.byID, id)
			purged++
		}
	}
	if purged > 0 {
		slog.Info("Purged completed positions", slog.Int("count", purged))
	}
	return purged
}

// Restore seeds the book from persisted state. Levels still marked active
// are re-indexed into the working-order table so the engine resumes
// tracking without re-placing orders.
func (b *Book) Restore(positions map[string]*domain.PositionState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, p := range positions {
		stored := p.Clone()
		b.byID[id] = stored
		if stored.IsActive() {
			b.activeByKey[stored.Key()] = id
			if level := stored.ActiveLevel(); level != nil && level.OrderID != "" {
				stored.ActiveOrderID = level.OrderID
				b.activeOrders[level.OrderID] = id
			}
		}
	}
}

// completeLocked transitions a position to completed. Caller holds b.mu.
func (b *Book) completeLocked(p *domain.PositionState) {
	p.Status = domain.PositionCompleted
	p.CompletedAtUnix = b.now().Unix()
	delete(b.activeByKey, p.Key())
	slog.Info("Position completed",
		slog.String("id", p.ID),
		slog.String("symbol", p.Symbol),
		slog.Int("filled_levels", len(p.ExecutedOrdinals)),
		slog.Float64("avg_entry", p.AvgEntryPrice))
}

// detachOrder removes the level's order from the working index. Caller
// holds b.mu.
func (b *Book) detachOrder(p *domain.PositionState, level *domain.Level) {
	if level.OrderID != "" {
		delete(b.activeOrders, level.OrderID)
	}
	if p.ActiveOrderID == level.OrderID {
		p.ActiveOrderID = ""
	}
}

func levelByOrdinal(p *domain.PositionState, ordinal int) *domain.Level {
	for i := range p.Levels {
		if p.Levels[i].Ordinal == ordinal {
			return &p.Levels[i]
		}
	}
	return nil
}
