package domain

// PerformanceStats are process-wide counters. They are persisted and merged
// with prior values on restart; reset only by explicit operator action.
type PerformanceStats struct {
	PositionsStarted   int64 `json:"positions_started"`
	PositionsCompleted int64 `json:"positions_completed"`
	OrdersPlaced       int64 `json:"orders_placed"`
	OrdersFilled       int64 `json:"orders_filled"`
	OrdersFailed       int64 `json:"orders_failed"`
	OrdersCancelled    int64 `json:"orders_cancelled"`
	CacheHits          int64 `json:"cache_hits"`
	CacheMisses        int64 `json:"cache_misses"`
}

// Merge adds prior persisted counters into s. Used once at startup so a
// restart does not zero lifetime statistics.
func (s *PerformanceStats) Merge(prior PerformanceStats) {
	s.PositionsStarted += prior.PositionsStarted
	s.PositionsCompleted += prior.PositionsCompleted
	s.OrdersPlaced += prior.OrdersPlaced
	s.OrdersFilled += prior.OrdersFilled
	s.OrdersFailed += prior.OrdersFailed
	s.OrdersCancelled += prior.OrdersCancelled
	s.CacheHits += prior.CacheHits
	s.CacheMisses += prior.CacheMisses
}

// CacheHitRate returns hits/(hits+misses) in [0,1], or 0 when no lookups.
func (s *PerformanceStats) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}
